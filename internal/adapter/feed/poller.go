package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-alert-service/internal/domain"
	"github.com/couchcryptid/storm-alert-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

// Fetcher returns the events ingested after since.
type Fetcher interface {
	Fetch(ctx context.Context, since int64) (domain.Batch, error)
}

// Sink receives fetched batches and supplies the cursor for the next fetch.
type Sink interface {
	Ingest(ctx context.Context, events []domain.Event)
	LastIngestTS() int64
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Poller fetches from the feed on a fixed interval and hands every batch to
// the sink. Failed fetches are retried with exponential backoff.
type Poller struct {
	fetcher  Fetcher
	sink     Sink
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	// cursor covers records the sink never saw because they failed to decode.
	cursor int64
}

// NewPoller creates a Poller.
func NewPoller(f Fetcher, s Sink, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Poller {
	return &Poller{
		fetcher:  f,
		sink:     s,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run polls until the context is cancelled. The first poll is immediate.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("feed poller started", "interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := initialBackoff

	for {
		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Error("feed poll failed", "error", err, "retry_in", backoff)
			if !p.sleepWithContext(ctx, backoff) {
				break
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
			continue
		}

		backoff = initialBackoff
		if !p.sleepWithContext(ctx, p.interval) {
			break
		}
	}

	p.logger.Info("feed poller stopping", "reason", ctx.Err())
	return nil
}

func (p *Poller) poll(ctx context.Context) error {
	since := max(p.sink.LastIngestTS(), p.cursor)
	batch, err := p.fetcher.Fetch(ctx, since)
	if err != nil {
		p.metrics.FeedPolls.WithLabelValues("error").Inc()
		return err
	}
	p.cursor = max(p.cursor, batch.Cursor())
	events := batch.Events

	outcome := "success"
	if len(events) == 0 {
		outcome = "empty"
	}
	p.metrics.FeedPolls.WithLabelValues(outcome).Inc()
	p.logger.Debug("feed polled", "since", since, "events", len(events))

	p.sink.Ingest(ctx, events)
	return nil
}

func (p *Poller) sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
