package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestTrackerFinalLine(t *testing.T) {
	var buf bytes.Buffer
	tracker := New(&buf, "linux-64:", 3)
	tracker.Add(2)
	tracker.Add(1)
	tracker.Done()

	out := buf.String()
	if !strings.Contains(out, "linux-64:") {
		t.Errorf("output missing label: %q", out)
	}
	if !strings.Contains(out, "3 files") {
		t.Errorf("output missing file count: %q", out)
	}
}

func TestTrackerConcurrentAdd(t *testing.T) {
	var buf bytes.Buffer
	tracker := New(&buf, "noarch:", 100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Add(1)
		}()
	}
	wg.Wait()
	tracker.Done()

	if !strings.Contains(buf.String(), "100 files") {
		t.Errorf("output missing final count: %q", buf.String())
	}
}

func TestTrackerDoneIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	tracker := New(&buf, "osx-64:", 0)
	tracker.Done()
	tracker.Done()
}
