package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/inodb/vibe-burden/internal/burden"
	"github.com/inodb/vibe-burden/internal/cache"
	"github.com/inodb/vibe-burden/internal/normalize"
)

// WorkItem is one input VCF awaiting normalization.
type WorkItem struct {
	Seq      int
	Path     string
	SampleID string
}

// WorkResult holds the sample table built or reused for a WorkItem.
type WorkResult struct {
	Seq      int
	Item     WorkItem
	Table    *burden.SampleTable
	Decision cache.Decision
	Stats    normalize.Stats
	Err      error
}

// feed sends items on the returned channel until they run out or ctx is done.
func feed(ctx context.Context, items []WorkItem) <-chan WorkItem {
	ch := make(chan WorkItem)
	go func() {
		defer close(ch)
		for _, it := range items {
			select {
			case ch <- it:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// ParallelProcess runs fn on work items using a pool of workers.
// Results are sent to the returned channel in arrival order (not sequence order).
// Use OrderedCollect to consume results in sequence-number order.
// Items received after ctx is done are not processed and carry ctx.Err().
// If workers is 0, runtime.NumCPU() is used.
func ParallelProcess(ctx context.Context, items <-chan WorkItem, workers int,
	fn func(context.Context, WorkItem) WorkResult) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				var r WorkResult
				if err := ctx.Err(); err != nil {
					r = WorkResult{Err: err}
				} else {
					r = fn(ctx, item)
				}
				r.Seq, r.Item = item.Seq, item
				results <- r
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
