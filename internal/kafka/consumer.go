package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message was handled and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

const (
	handleAttempts = 3
	retryBackoff   = 200 * time.Millisecond
)

// Consumer fans messages out to a fixed set of lanes. Messages sharing a
// key always land on the same lane, so per-user events stay ordered.
type Consumer struct {
	r       *kafka.Reader
	workers int
	logger  *zap.Logger
}

func NewConsumer(brokers []string, group string, topics []string, workers int, logger *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, logger: logger}
}

// Start blocks until ctx is cancelled or the reader fails.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				c.process(ctx, h, m)
			}
		}(lanes[i])
	}
	stop := func() {
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
	}

	pick := newLanePicker(c.workers)
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case lanes[pick(m)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// process retries a failing handler a few times, then commits anyway so one
// poison message cannot stall its partition.
func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) {
	log := c.logger.With(zap.String("topic", m.Topic), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
	for attempt := 1; attempt <= handleAttempts; attempt++ {
		err := h(ctx, m)
		if err == nil {
			break
		}
		if attempt == handleAttempts {
			log.Error("message dropped after retries", zap.Error(err))
			break
		}
		log.Warn("message handler failed", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.Warn("commit failed", zap.Error(err))
	}
}

// newLanePicker maps a message key onto a lane with the same hashing the
// writer uses for partitions. Keyless messages are spread round-robin.
func newLanePicker(n int) func(kafka.Message) int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	b := &kafka.Hash{}
	return func(m kafka.Message) int { return b.Balance(m, ids...) }
}
