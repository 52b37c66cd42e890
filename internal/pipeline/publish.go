package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
	"github.com/couchcryptid/wastewater-dashboard/internal/observability"
)

// DefaultPublishTimeout bounds a single background publish.
const DefaultPublishTimeout = 15 * time.Second

// asyncPublisher forwards datasets to a Publisher from a single background
// loop, so a slow or unreachable broker never holds up a page build. Only the
// newest pending dataset is kept, and a dataset is skipped when its content
// matches the last one published successfully.
type asyncPublisher struct {
	next    Publisher
	timeout time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics

	// pending holds at most one dataset; enqueue replaces a stale one.
	pending chan domain.ViralLoadDataset

	mu   sync.Mutex
	last string
}

func newAsyncPublisher(next Publisher, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *asyncPublisher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &asyncPublisher{
		next:    next,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
		pending: make(chan domain.ViralLoadDataset, 1),
	}
}

// enqueue never blocks.
func (a *asyncPublisher) enqueue(ds domain.ViralLoadDataset) {
	if len(ds.Records) == 0 || a.published(domain.Fingerprint(ds)) {
		return
	}
	for {
		select {
		case a.pending <- ds:
			return
		default:
		}
		// Drop the stale dataset; the loop may have taken it already.
		select {
		case <-a.pending:
		default:
		}
	}
}

// run publishes pending datasets until ctx is cancelled.
func (a *asyncPublisher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ds := <-a.pending:
			a.publish(ctx, ds)
		}
	}
}

// publish never fails the caller; errors are logged and counted, and the
// dataset is retried when a later build enqueues it again.
func (a *asyncPublisher) publish(ctx context.Context, ds domain.ViralLoadDataset) {
	fp := domain.Fingerprint(ds)
	if a.published(fp) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.next.PublishViralLoad(ctx, ds.Records); err != nil {
		a.metrics.PublishErrors.Inc()
		a.logger.Warn("publish viral load records failed", "error", err, "records", len(ds.Records))
		return
	}

	a.mu.Lock()
	a.last = fp
	a.mu.Unlock()
	a.metrics.RecordsPublished.Add(float64(len(ds.Records)))
	a.logger.Info("viral load records published", "records", len(ds.Records), "fingerprint", fp[:12])
}

func (a *asyncPublisher) published(fp string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last == fp
}
