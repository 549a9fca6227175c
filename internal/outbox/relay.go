package outbox

import (
	"context"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/ariefcatur/go-marketplace-settlement/internal/metrics"
	"go.uber.org/zap"
)

type Publisher interface {
	Send(ctx context.Context, evs ...domain.OutboxEvent) error
}

type Relay struct {
	uow       domain.UnitOfWork
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	interval  time.Duration
	batch     int
}

func NewRelay(uow domain.UnitOfWork, p Publisher, m *metrics.Metrics, logger *zap.Logger, interval time.Duration, batch int) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	return &Relay{uow: uow, publisher: p, metrics: m, logger: logger, interval: interval, batch: batch}
}

// RelayOnce publishes one batch of pending events and returns how many were
// sent. Claimed rows stay locked until they are marked, so concurrent relays
// never publish the same batch; a failed send leaves them pending.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var sent int
	err := r.uow.Do(ctx, func(ctx context.Context, repos domain.Repos) error {
		evs, err := repos.Outbox.LockPending(ctx, r.batch)
		if err != nil || len(evs) == 0 {
			return err
		}
		if err := r.publisher.Send(ctx, evs...); err != nil {
			return err
		}
		ids := make([]string, 0, len(evs))
		for _, e := range evs {
			ids = append(ids, e.ID)
		}
		sent = len(ids)
		return repos.Outbox.MarkPublished(ctx, ids, time.Now())
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		r.metrics.OutboxPublished.Add(ctx, int64(sent))
	}
	return sent, nil
}

// Run relays until ctx is cancelled. A full batch is followed immediately by
// another pass instead of waiting for the next tick.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	r.logger.Info("outbox relay started", zap.Duration("interval", r.interval), zap.Int("batch", r.batch))
	for {
		n, err := r.RelayOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			r.logger.Warn("outbox relay failed", zap.Error(err))
		case n > 0:
			r.logger.Debug("outbox events published", zap.Int("count", n))
		}
		if n == r.batch {
			continue
		}
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-t.C:
		}
	}
}
