package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/events"
	"github.com/ariefcatur/go-marketplace-settlement/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const dedupScope = "notifier"

// Notification is what subscribers of notifications:{user_id} receive.
type Notification struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Notifier forwards settlement events to the users they concern over Redis
// pub/sub. Delivery is fire-and-forget: a failed publish is logged, never retried.
type Notifier struct {
	rdb    redis.Cmdable
	logger *zap.Logger
}

func New(rdb redis.Cmdable, logger *zap.Logger) *Notifier {
	return &Notifier{rdb: rdb, logger: logger}
}

// Handle is a kafka.Handler.
func (n *Notifier) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := events.Decode(m.Value)
	if err != nil {
		n.logger.Warn("dropping undecodable event", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, dedupScope, env.EventID)
	first, err := redisx.Claim(ctx, n.rdb, dkey, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		return nil
	}

	users, err := Recipients(env)
	if err != nil {
		n.logger.Warn("dropping event with bad payload", zap.String("event_id", env.EventID), zap.String("type", env.EventType), zap.Error(err))
		return nil
	}

	msg, err := json.Marshal(Notification{
		EventID:    env.EventID,
		Type:       env.EventType,
		OccurredAt: env.OccurredAt,
		Payload:    env.Payload,
	})
	if err != nil {
		return err
	}
	for _, u := range users {
		if err := n.rdb.Publish(ctx, fmt.Sprintf(redisx.ChannelNotifications, u), msg).Err(); err != nil {
			n.logger.Warn("notification publish failed", zap.String("user_id", u), zap.String("event_id", env.EventID), zap.Error(err))
		}
	}
	return nil
}

// Recipients lists the users an event concerns, without duplicates.
func Recipients(env events.Envelope) ([]string, error) {
	var users []string
	switch env.EventType {
	case events.EventOrderPlaced:
		p, err := events.UnwrapPayload[events.OrderPlacedPayload](env)
		if err != nil {
			return nil, err
		}
		users = []string{p.BuyerID, p.SellerID}
	case events.EventOrderStatusChanged:
		p, err := events.UnwrapPayload[events.OrderStatusChangedPayload](env)
		if err != nil {
			return nil, err
		}
		users = []string{p.BuyerID, p.SellerID}
	case events.EventWalletCredited:
		p, err := events.UnwrapPayload[events.WalletCreditedPayload](env)
		if err != nil {
			return nil, err
		}
		users = []string{p.SellerID}
	case events.EventWithdrawalRequested, events.EventWithdrawalStatusChanged:
		p, err := events.UnwrapPayload[events.WithdrawalPayload](env)
		if err != nil {
			return nil, err
		}
		users = []string{p.SellerID}
	}

	out := users[:0]
	seen := map[string]bool{}
	for _, u := range users {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out, nil
}
