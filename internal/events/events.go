package events

import (
	"encoding/json"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/google/uuid"
)

const (
	EventOrderPlaced             = "OrderPlaced"
	EventOrderStatusChanged      = "OrderStatusChanged"
	EventWalletCredited          = "WalletCredited"
	EventWithdrawalRequested     = "WithdrawalRequested"
	EventWithdrawalStatusChanged = "WithdrawalStatusChanged"
)

const (
	TopicOrderPlaced       = "marketplace.order.placed"
	TopicOrderStatus       = "marketplace.order.status"
	TopicWalletCredited    = "marketplace.wallet.credited"
	TopicWithdrawalRequest = "marketplace.withdrawal.requested"
	TopicWithdrawalStatus  = "marketplace.withdrawal.status"
)

const (
	HeaderEventType        = "x-event-type"
	HeaderEventVersion     = "x-event-version"
	CurrentEnvelopeVersion = 1
)

// AllTopics is what the notifier subscribes to.
var AllTopics = []string{
	TopicOrderPlaced,
	TopicOrderStatus,
	TopicWalletCredited,
	TopicWithdrawalRequest,
	TopicWithdrawalStatus,
}

var topicOf = map[string]string{
	EventOrderPlaced:             TopicOrderPlaced,
	EventOrderStatusChanged:      TopicOrderStatus,
	EventWalletCredited:          TopicWalletCredited,
	EventWithdrawalRequested:     TopicWithdrawalRequest,
	EventWithdrawalStatusChanged: TopicWithdrawalStatus,
}

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID       string `json:"order_id"`
	OrderNumber   string `json:"order_number"`
	CheckoutID    string `json:"checkout_id"`
	BuyerID       string `json:"buyer_id"`
	SellerID      string `json:"seller_id,omitempty"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
}

type OrderStatusChangedPayload struct {
	OrderID  string `json:"order_id"`
	BuyerID  string `json:"buyer_id"`
	SellerID string `json:"seller_id,omitempty"`
	From     string `json:"from"`
	To       string `json:"to"`
	ActorID  string `json:"actor_id"`
	Reason   string `json:"reason,omitempty"`
}

type WalletCreditedPayload struct {
	SellerID       string    `json:"seller_id"`
	OrderID        string    `json:"order_id"`
	Gross          string    `json:"gross"`
	Net            string    `json:"net"`
	CommissionRate string    `json:"commission_rate"`
	HoldUntil      time.Time `json:"hold_until"`
}

type WithdrawalPayload struct {
	WithdrawalID string `json:"withdrawal_id"`
	SellerID     string `json:"seller_id"`
	Amount       string `json:"amount"`
	Method       string `json:"method"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
}

// New wraps payload in a v1 envelope ready for the outbox. key is the
// partition key, so all events of one aggregate stay ordered.
func New(eventType, producer, key string, payload any, at time.Time) (domain.OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.OutboxEvent{}, err
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  CurrentEnvelopeVersion,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		CorrelationID: key,
		Payload:       raw,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return domain.OutboxEvent{}, err
	}
	return domain.OutboxEvent{
		ID:        env.EventID,
		Topic:     topicOf[eventType],
		Key:       key,
		EventType: eventType,
		Payload:   b,
		CreatedAt: at,
	}, nil
}

func Decode(b []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(b, &env)
	return env, err
}

// UnwrapPayload decodes the payload of env into T.
func UnwrapPayload[T any](env Envelope) (T, error) {
	var t T
	err := json.Unmarshal(env.Payload, &t)
	return t, err
}
