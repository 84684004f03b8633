// Package healing orchestrates repeated automated-fix attempts for a
// single task, running each repair through the circuit breaker and
// keeping attempt counters, aggregate statistics and an audit trail.
package healing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devloophq/devloop/store"
)

// AuditLog appends timestamped healing events to a log file. Writes are
// best-effort: a failed append never fails the healing attempt that
// produced it.
type AuditLog struct {
	fsys *store.FileSystem
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewAuditLog creates an audit log backed by the given filesystem.
func NewAuditLog(fsys *store.FileSystem, path string) *AuditLog {
	return &AuditLog{fsys: fsys, path: path, now: time.Now}
}

// WithClock overrides the log's notion of now. Test hook.
func (l *AuditLog) WithClock(now func() time.Time) *AuditLog {
	l.now = now
	return l
}

// Record appends one event line in logfmt style:
//
//	2026-08-25T10:00:00Z id=9f1c... event=breaker.transition from=closed to=open
func (l *AuditLog) Record(ctx context.Context, event string, fields map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "%s id=%s event=%s", l.now().UTC().Format(time.RFC3339), uuid.New().String(), event)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, fields[k])
	}
	b.WriteByte('\n')
	return l.fsys.Append(ctx, l.path, []byte(b.String()))
}
