package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-marketplace-settlement/internal/events"
	"github.com/ariefcatur/go-marketplace-settlement/internal/kafka"
	"github.com/ariefcatur/go-marketplace-settlement/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func subscribe(t *testing.T, rdb *redis.Client, user string) *redis.PubSub {
	t.Helper()
	sub := rdb.Subscribe(context.Background(), "notifications:"+user)
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func receive(sub *redis.PubSub, wait time.Duration) (*redis.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	return sub.ReceiveMessage(ctx)
}

func placedMessage(t *testing.T) kafkago.Message {
	t.Helper()
	ev, err := events.New(events.EventOrderPlaced, "test", "o-1", events.OrderPlacedPayload{
		OrderID:  "o-1",
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Amount:   "20.00",
	}, time.Now())
	require.NoError(t, err)
	return kafka.ToMessage(ev)
}

func TestHandleFansOutToBuyerAndSeller(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	buyer := subscribe(t, rdb, "buyer-1")
	seller := subscribe(t, rdb, "seller-1")

	n := New(rdb, zap.NewNop())
	require.NoError(t, n.Handle(context.Background(), placedMessage(t)))

	for _, sub := range []*redis.PubSub{buyer, seller} {
		msg, err := receive(sub, time.Second)
		require.NoError(t, err)
		var got Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, events.EventOrderPlaced, got.Type)
		assert.NotEmpty(t, got.EventID)
	}
}

func TestHandleDeliversOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	seller := subscribe(t, rdb, "seller-1")
	n := New(rdb, zap.NewNop())

	m := placedMessage(t)
	require.NoError(t, n.Handle(context.Background(), m))
	require.NoError(t, n.Handle(context.Background(), m))

	_, err := receive(seller, time.Second)
	require.NoError(t, err)
	_, err = receive(seller, 100*time.Millisecond)
	assert.Error(t, err)
}

func TestHandleDropsGarbage(t *testing.T) {
	mr := miniredis.RunT(t)
	n := New(redisx.New(mr.Addr()), zap.NewNop())
	assert.NoError(t, n.Handle(context.Background(), kafkago.Message{Value: []byte("not json")}))
}

func TestRecipients(t *testing.T) {
	ev, err := events.New(events.EventOrderStatusChanged, "test", "o-1", events.OrderStatusChangedPayload{
		OrderID: "o-1", BuyerID: "b", SellerID: "",
	}, time.Now())
	require.NoError(t, err)
	env, err := events.Decode(ev.Payload)
	require.NoError(t, err)

	users, err := Recipients(env)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, users)

	ev, err = events.New(events.EventWithdrawalStatusChanged, "test", "s", events.WithdrawalPayload{SellerID: "s"}, time.Now())
	require.NoError(t, err)
	env, err = events.Decode(ev.Payload)
	require.NoError(t, err)
	users, err = Recipients(env)
	require.NoError(t, err)
	assert.Equal(t, []string{"s"}, users)
}
