// Package store persists the workflow engine's records: the lightweight
// task index, the session state, and individual task documents. All file
// access goes through FileSystem, which wraps an afero filesystem and
// retries allow-listed transient faults with backoff.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"

	"github.com/devloophq/devloop/internal/resilience"
	"github.com/devloophq/devloop/types"
)

// FileSystem is the persistence abstraction consumed by the stores.
// Every operation passes through the retry executor individually.
type FileSystem struct {
	fs      afero.Fs
	retrier *resilience.Retrier
}

// NewFileSystem wraps fs with the given retrier. A nil retrier gets the
// default policy.
func NewFileSystem(fs afero.Fs, retrier *resilience.Retrier) *FileSystem {
	if retrier == nil {
		retrier = resilience.NewRetrier(resilience.RetryPolicy{})
	}
	return &FileSystem{fs: fs, retrier: retrier}
}

// classifyIO maps recoverable errno values onto the transient allow-list
// so the retry executor recognizes them. Anything else passes unchanged.
func classifyIO(op string, err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EBUSY:
			return types.NewTransientIO(types.CodeResourceBusy, op, err)
		case syscall.EAGAIN:
			return types.NewTransientIO(types.CodeNotAvailable, op, err)
		case syscall.EMFILE, syscall.ENFILE:
			return types.NewTransientIO(types.CodeTooManyFiles, op, err)
		case syscall.ETIMEDOUT:
			return types.NewTransientIO(types.CodeTimedOut, op, err)
		}
	}
	return err
}

// ReadFile reads the whole file at path.
func (f *FileSystem) ReadFile(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := f.retrier.Do(ctx, func(context.Context) error {
		var readErr error
		data, readErr = afero.ReadFile(f.fs, path)
		return classifyIO("read "+path, readErr)
	})
	return data, err
}

// WriteFile writes data to path atomically: a temp file in the same
// directory is written first, then renamed over the destination.
func (f *FileSystem) WriteFile(ctx context.Context, path string, data []byte) error {
	return f.retrier.Do(ctx, func(context.Context) error {
		tmp := path + ".tmp"
		if err := afero.WriteFile(f.fs, tmp, data, 0o644); err != nil {
			return classifyIO("write "+tmp, err)
		}
		if err := f.fs.Rename(tmp, path); err != nil {
			_ = f.fs.Remove(tmp)
			return classifyIO("rename "+tmp, err)
		}
		return nil
	})
}

// Exists reports whether path exists.
func (f *FileSystem) Exists(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := f.retrier.Do(ctx, func(context.Context) error {
		var statErr error
		exists, statErr = afero.Exists(f.fs, path)
		return classifyIO("stat "+path, statErr)
	})
	return exists, err
}

// EnsureDir creates dir and any missing parents.
func (f *FileSystem) EnsureDir(ctx context.Context, dir string) error {
	return f.retrier.Do(ctx, func(context.Context) error {
		return classifyIO("mkdir "+dir, f.fs.MkdirAll(dir, 0o755))
	})
}

// Remove deletes the file at path. Missing files are not an error.
func (f *FileSystem) Remove(ctx context.Context, path string) error {
	return f.retrier.Do(ctx, func(context.Context) error {
		err := f.fs.Remove(path)
		if err != nil && os.IsNotExist(err) {
			return nil
		}
		return classifyIO("remove "+path, err)
	})
}

// List returns the names of regular files directly under dir.
func (f *FileSystem) List(ctx context.Context, dir string) ([]string, error) {
	var names []string
	err := f.retrier.Do(ctx, func(context.Context) error {
		infos, readErr := afero.ReadDir(f.fs, dir)
		if readErr != nil {
			return classifyIO("list "+dir, readErr)
		}
		names = names[:0]
		for _, info := range infos {
			if !info.IsDir() {
				names = append(names, info.Name())
			}
		}
		return nil
	})
	return names, err
}

// Append appends data to the file at path, creating it if needed.
func (f *FileSystem) Append(ctx context.Context, path string, data []byte) error {
	return f.retrier.Do(ctx, func(context.Context) error {
		file, err := f.fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return classifyIO("append "+path, err)
		}
		_, writeErr := file.Write(data)
		closeErr := file.Close()
		if writeErr != nil {
			return classifyIO("append "+path, writeErr)
		}
		return classifyIO("append "+path, closeErr)
	})
}

// Copy copies the file at src to dst.
func (f *FileSystem) Copy(ctx context.Context, src, dst string) error {
	return f.retrier.Do(ctx, func(context.Context) error {
		in, err := f.fs.Open(src)
		if err != nil {
			return classifyIO("copy "+src, err)
		}
		defer func() { _ = in.Close() }()
		if err := f.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return classifyIO("copy "+dst, err)
		}
		out, err := f.fs.Create(dst)
		if err != nil {
			return classifyIO("copy "+dst, err)
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			return classifyIO("copy "+dst, err)
		}
		return classifyIO("copy "+dst, out.Close())
	})
}

// errUnsupportedFormat reports a format outside json/yaml.
func errUnsupportedFormat(format string) error {
	return fmt.Errorf("unsupported data format: %s (supported: json, yaml)", format)
}
