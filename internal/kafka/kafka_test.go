package kafka

import (
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/ariefcatur/go-marketplace-settlement/internal/events"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestLanePickerKeepsKeyOnOneLane(t *testing.T) {
	pick := newLanePicker(4)
	first := pick(kafka.Message{Key: []byte("seller-1")})
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, pick(kafka.Message{Key: []byte("seller-1")}))
	}

	seen := map[int]bool{}
	for i := 0; i < 8; i++ {
		lane := pick(kafka.Message{})
		assert.GreaterOrEqual(t, lane, 0)
		assert.Less(t, lane, 4)
		seen[lane] = true
	}
	assert.Len(t, seen, 4)
}

func TestToMessageCarriesRoutingAndHeaders(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m := ToMessage(domain.OutboxEvent{
		Topic:     events.TopicWalletCredited,
		Key:       "seller-1",
		EventType: events.EventWalletCredited,
		Payload:   []byte(`{}`),
		CreatedAt: at,
	})
	assert.Equal(t, events.TopicWalletCredited, m.Topic)
	assert.Equal(t, []byte("seller-1"), m.Key)
	assert.Equal(t, at, m.Time)
	assert.Equal(t, events.HeaderEventType, m.Headers[0].Key)
	assert.Equal(t, events.EventWalletCredited, string(m.Headers[0].Value))
}
