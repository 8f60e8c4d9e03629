// Package progress renders a single-line terminal progress indicator for
// long-running subdir downloads.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Tracker repaints one terminal line with a spinner, a label and the count
// of completed items. It is safe to Add from multiple goroutines.
type Tracker struct {
	w         io.Writer
	label     string
	total     int
	current   int
	mu        sync.Mutex
	startTime time.Time
	done      chan struct{}
	stopped   chan struct{}
	finished  sync.Once
}

// New starts a tracker writing to w. A zero total renders a bare item count
// instead of a percentage.
func New(w io.Writer, label string, total int) *Tracker {
	t := &Tracker{
		w:         w,
		label:     label,
		total:     total,
		startTime: time.Now(),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go t.render()
	return t
}

// Add records n more completed items.
func (t *Tracker) Add(n int) {
	t.mu.Lock()
	t.current += n
	t.mu.Unlock()
}

// Done stops the tracker, returning once the final summary line has been
// written.
func (t *Tracker) Done() {
	t.finished.Do(func() { close(t.done) })
	<-t.stopped
}

func (t *Tracker) render() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-t.done:
			t.mu.Lock()
			elapsed := time.Since(t.startTime)
			fmt.Fprintf(t.w, "\r✓ %-12s %d files in %s          \n",
				t.label, t.current, elapsed.Round(time.Millisecond))
			t.mu.Unlock()
			close(t.stopped)
			return

		case <-ticker.C:
			t.mu.Lock()
			if t.total > 0 {
				percent := float64(t.current) / float64(t.total) * 100
				fmt.Fprintf(t.w, "\r%s %-12s [%d/%d] %3.0f%%  ",
					frames[frame%len(frames)], t.label, t.current, t.total, percent)
			} else {
				fmt.Fprintf(t.w, "\r%s %-12s [%d files]  ",
					frames[frame%len(frames)], t.label, t.current)
			}
			t.mu.Unlock()
			frame++
		}
	}
}
