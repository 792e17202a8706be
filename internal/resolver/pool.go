package resolver

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jondjones-poc/cex-scan-app-sub000/internal/models"
)

// resolveInterval paces outbound resolution work across the pool so a
// batch of watched SKUs does not burst against the retailer.
const resolveInterval = 250 * time.Millisecond

// ResolveAll resolves a batch of SKUs with a bounded worker pool and a
// shared rate limit. Results keep the input order. Items abandoned by
// context cancellation come back as Unknown records.
func (r *Resolver) ResolveAll(ctx context.Context, itemIDs []string) []models.ItemRecord {
	records := make([]models.ItemRecord, len(itemIDs))
	if len(itemIDs) == 0 {
		return records
	}

	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(itemIDs) {
		workers = len(itemIDs)
	}

	limiter := rate.NewLimiter(rate.Every(resolveInterval), workers)
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					_, canonical := r.identify(itemIDs[i])
					records[i] = unknownRecord(itemIDs[i], canonical)
					continue
				}
				records[i] = r.Resolve(ctx, itemIDs[i])
			}
		}()
	}

	for i := 0; i < len(itemIDs); i++ {
		select {
		case <-ctx.Done():
			r.log.Warn("resolution batch abandoned",
				zap.Int("remaining", len(itemIDs)-i))
			for ; i < len(itemIDs); i++ {
				_, canonical := r.identify(itemIDs[i])
				records[i] = unknownRecord(itemIDs[i], canonical)
			}
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	return records
}
