// Package git provides shell-based wrappers for the git commands the
// surrounding workflow issues at phase boundaries. It shells out instead
// of using go-git so the user's SSH keys, signing config and hooks apply.
package git

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Common errors returned by git operations.
var (
	ErrGitNotInstalled  = errors.New("git is not installed or not in PATH")
	ErrNotGitRepository = errors.New("not a git repository")
)

// Commander is an interface for executing commands.
// This allows mocking in tests.
type Commander interface {
	Run(name string, args ...string) (string, error)
	RunInDir(dir, name string, args ...string) (string, error)
}

// ShellCommander executes real shell commands.
type ShellCommander struct{}

// Run executes a command in the current directory.
func (c *ShellCommander) Run(name string, args ...string) (string, error) {
	return c.RunInDir("", name, args...)
}

// RunInDir executes a command in the specified directory.
func (c *ShellCommander) RunInDir(dir, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return "", fmt.Errorf("%w: %s", err, errMsg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Git wraps the subset of git operations the workflow needs.
type Git struct {
	cmd Commander
}

// New creates a Git wrapper using the given commander; nil gets the shell.
func New(cmd Commander) *Git {
	if cmd == nil {
		cmd = &ShellCommander{}
	}
	return &Git{cmd: cmd}
}

// IsInstalled checks if the git binary is available in PATH.
func (g *Git) IsInstalled() bool {
	_, err := g.cmd.Run("git", "--version")
	return err == nil
}

// IsRepo reports whether the current directory is inside a git worktree.
func (g *Git) IsRepo() bool {
	out, err := g.cmd.Run("git", "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// CurrentBranch returns the checked-out branch name.
func (g *Git) CurrentBranch() (string, error) {
	out, err := g.cmd.Run("git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	return out, nil
}

// HasChanges reports whether the working tree has uncommitted changes.
func (g *Git) HasChanges() (bool, error) {
	out, err := g.cmd.Run("git", "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("status: %w", err)
	}
	return out != "", nil
}

// CommitAll stages everything and commits with the given message.
func (g *Git) CommitAll(message string) error {
	if !g.IsInstalled() {
		return ErrGitNotInstalled
	}
	if _, err := g.cmd.Run("git", "add", "-A"); err != nil {
		return fmt.Errorf("stage changes: %w", err)
	}
	if _, err := g.cmd.Run("git", "commit", "-m", message); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
