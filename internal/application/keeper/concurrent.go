package keeper

// concurrent.go: worker pool ticking vaults in parallel.
//
// The engine serializes calls per vault only, so distinct vaults can be
// stepped at the same time. Outcomes keep the order of the input slice.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// stepConcurrent runs Step for every vault with a pool of workers. If
// workers <= 0 it uses runtime.NumCPU().
func (k *Keeper) stepConcurrent(ctx context.Context, vaults []*domain.Vault, now time.Time, workers int) []Outcome {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(vaults))

	out := make([]Outcome, len(vaults))
	workCh := make(chan int, len(vaults))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				out[idx] = k.Step(ctx, vaults[idx], now)
			}
		}()
	}

	queued := 0
	for i := range vaults {
		if ctx.Err() != nil {
			break
		}
		workCh <- i
		queued++
	}
	close(workCh)
	wg.Wait()

	slog.Debug("keeper: tick complete", "vaults", len(vaults), "queued", queued, "workers", workers)
	return out[:queued]
}
