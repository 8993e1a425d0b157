package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressFunc receives embedding progress for one content item.
type ProgressFunc func(id string, embedded, total int)

// ProgressTracker writes embedding progress lines to a terminal.
type ProgressTracker struct {
	writer io.Writer
	mu     sync.Mutex
	starts map[string]time.Time
}

// NewProgressTracker creates a tracker writing to w (typically os.Stderr).
func NewProgressTracker(w io.Writer) *ProgressTracker {
	return &ProgressTracker{writer: w, starts: make(map[string]time.Time)}
}

// Report implements ProgressFunc. The line for an item is rewritten in place
// and terminated once every chunk is embedded.
func (p *ProgressTracker) Report(id string, embedded, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start, ok := p.starts[id]
	if !ok {
		start = time.Now()
		p.starts[id] = start
	}

	percentage := 100.0
	if total > 0 {
		percentage = float64(embedded) / float64(total) * 100.0
	}
	rate := 0.0
	if elapsed := time.Since(start).Seconds(); elapsed > 0 {
		rate = float64(embedded) / elapsed
	}

	fmt.Fprintf(p.writer, "\rEmbedding %s: %d/%d (%.1f%%) - %.1f chunks/s", id, embedded, total, percentage, rate)
	if embedded >= total {
		fmt.Fprintln(p.writer)
		delete(p.starts, id)
	}
}
