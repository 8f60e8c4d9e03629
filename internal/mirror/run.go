package mirror

import (
	"context"
	"fmt"
	"sync"

	"github.com/git-pkgs/condamirror/fetch"
)

const defaultConcurrency = 8

// Run executes download jobs with a bounded worker pool. onDone, if not
// nil, is called after each successful download and may be called from
// multiple goroutines. The first failure cancels the remaining jobs and is
// returned.
func Run(ctx context.Context, f fetch.FetcherInterface, downloads []Download, concurrency int, onDone func(Download)) error {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, job := range downloads {
		wg.Add(1)
		go func(job Download) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			if err := fetch.DownloadFile(ctx, f, job.URL, job.Dest, job.SHA256); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s/%s: %w", job.Subdir, job.Filename, err)
					cancel()
				}
				mu.Unlock()
				return
			}
			if onDone != nil {
				onDone(job)
			}
		}(job)
	}

	wg.Wait()
	return firstErr
}
