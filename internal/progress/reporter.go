// Package progress renders the dumper's live progress line and final
// summary with lipgloss, the way internal/output/styles.go renders plan
// output in the teacher. Rendering is cosmetic; Reporter's own
// bookkeeping is the diagnostic, not a correctness contract (spec.md §9).
package progress

import (
	"fmt"
	"sync"
	"time"
)

// tableProgress is one table's running row/byte counters.
type tableProgress struct {
	rows         int64
	dataBytes    int64
	bytesWritten int64
}

// Reporter accumulates per-table progress and renders it on demand. Update
// is a try-lock: a Worker racing another Worker's Update (or a Render)
// simply drops its own update this cycle rather than blocking.
type Reporter struct {
	mu     sync.Mutex
	tables map[string]*tableProgress
	state  string
	start  time.Time
}

// NewReporter returns a Reporter with its clock started.
func NewReporter(start time.Time) *Reporter {
	return &Reporter{tables: make(map[string]*tableProgress), state: "DUMPING", start: start}
}

// SetState changes the reporter's displayed job state (DUMPING,
// FINALIZING, ABORTED, DONE).
func (r *Reporter) SetState(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

// Update adds rows/bytes to schema.table's running total. If another
// Update or Render holds the lock, this call returns without recording
// its counters — progress output is best-effort.
func (r *Reporter) Update(schema, table string, rows, dataBytes, bytesWritten int64) {
	if !r.mu.TryLock() {
		return
	}
	defer r.mu.Unlock()
	key := schema + "." + table
	tp, ok := r.tables[key]
	if !ok {
		tp = &tableProgress{}
		r.tables[key] = tp
	}
	tp.rows += rows
	tp.dataBytes += dataBytes
	tp.bytesWritten += bytesWritten
}

// Render returns the current progress line for display.
func (r *Reporter) Render() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var totalRows, totalBytes int64
	for _, tp := range r.tables {
		totalRows += tp.rows
		totalBytes += tp.bytesWritten
	}
	elapsed := time.Since(r.start).Round(time.Second)
	body := fmt.Sprintf("%d rows, %s written, %s elapsed", totalRows, humanBytes(totalBytes), elapsed)
	return boxFor(r.state).Render(body)
}

func humanBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
