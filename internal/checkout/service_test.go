package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/ariefcatur/go-marketplace-settlement/internal/events"
	"github.com/ariefcatur/go-marketplace-settlement/internal/memstore"
	"github.com/ariefcatur/go-marketplace-settlement/internal/metrics"
	"github.com/ariefcatur/go-marketplace-settlement/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	secret   = "callback-secret"
	merchant = "M-42"
)

var fixed = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func address() domain.Address {
	return domain.Address{Recipient: "Ana", Phone: "+100", Line1: "1 Main St", City: "Lisbon", Country: "PT"}
}

func codService(t *testing.T, store *memstore.Store, opts Options) *Service {
	t.Helper()
	return serviceWith(t, store, payment.Config{}, opts)
}

func serviceWith(t *testing.T, store *memstore.Store, cfg payment.Config, opts Options) *Service {
	t.Helper()
	reg, err := payment.NewRegistry(cfg, func() time.Time { return fixed })
	require.NoError(t, err)
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixed }
	}
	return NewService(store, reg, metrics.Noop(), zap.NewNop(), opts)
}

func externalConfig() payment.Config {
	return payment.Config{External: payment.ExternalConfig{
		GatewayURL: "https://pay.example.com/checkout",
		MerchantID: merchant,
		Secret:     secret,
		ReturnURL:  "https://shop.example.com/api/v1/payments/callback",
	}}
}

func twoSellerCart(store *memstore.Store) {
	store.PutVariant(memstore.Variant{ID: "v1", ProductID: "p1", Stock: 10})
	store.PutVariant(memstore.Variant{ID: "v2", ProductID: "p2", Stock: 10})
	store.PutCart(domain.Cart{ID: "cart-1", BuyerID: "buyer-1", Items: []domain.CartItem{
		{VariantID: "v1", ProductID: "p1", SellerID: "S1", Quantity: 1, Price: dec("10")},
		{VariantID: "v2", ProductID: "p2", SellerID: "S2", Quantity: 2, Price: dec("10")},
	}})
}

func TestSplitKeepsFirstAppearanceOrder(t *testing.T) {
	items := []domain.CartItem{
		{VariantID: "a", SellerID: "S2"},
		{VariantID: "b", SellerID: ""},
		{VariantID: "c", SellerID: "S1"},
		{VariantID: "d", SellerID: "S2"},
	}
	buckets := Split(items)
	require.Len(t, buckets, 3)
	assert.Equal(t, "S2", buckets[0].SellerID)
	assert.Len(t, buckets[0].Items, 2)
	assert.Equal(t, "", buckets[1].SellerID)
	assert.Equal(t, "S1", buckets[2].SellerID)
}

func TestOrderNumberFormat(t *testing.T) {
	n := OrderNumber(fixed)
	require.Len(t, n, len("ORD-20260402-")+8)
	assert.True(t, strings.HasPrefix(n, "ORD-20260402-"))
	assert.NotEqual(t, n, OrderNumber(fixed))
}

func TestCheckoutSplitsCartPerSeller(t *testing.T) {
	store := memstore.New()
	twoSellerCart(store)
	svc := codService(t, store, Options{})

	res, err := svc.Checkout(context.Background(), Request{BuyerID: "buyer-1", Method: domain.MethodCashOnDelivery, Address: address()})
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
	assert.False(t, res.Deferred)

	assert.Equal(t, "S1", res.Orders[0].SellerID)
	assert.True(t, res.Orders[0].Amount.Equal(dec("10")))
	assert.Equal(t, "S2", res.Orders[1].SellerID)
	assert.True(t, res.Orders[1].Amount.Equal(dec("20")))

	for _, o := range res.Orders {
		assert.Equal(t, domain.OrderPending, o.Status)
		p, ok := store.Payment(o.ID)
		require.True(t, ok)
		assert.Equal(t, domain.PaymentPending, p.Status)
		sh, ok := store.Shipment(o.ID)
		require.True(t, ok)
		assert.Equal(t, PendingCarrier, sh.Carrier)
	}
	assert.Len(t, store.Transactions(), 2)

	cart := store.Cart("cart-1")
	assert.Equal(t, domain.CartConverted, cart.Status)
	assert.Empty(t, cart.Items)

	assert.Equal(t, 9, store.Stock("v1"))
	assert.Equal(t, 8, store.Stock("v2"))
	assert.Equal(t, 1, store.Sales("p1"))
	assert.Equal(t, 2, store.Sales("p2"))

	addrs := store.Addresses()
	require.Len(t, addrs, 1)
	assert.Equal(t, res.Orders[0].ID, addrs[0].OrderID)

	out := store.Outbox()
	require.Len(t, out, 2)
	for _, ev := range out {
		assert.Equal(t, events.EventOrderPlaced, ev.EventType)
	}
}

func TestCheckoutInsufficientStockChangesNothing(t *testing.T) {
	store := memstore.New()
	store.PutVariant(memstore.Variant{ID: "v1", ProductID: "p1", Stock: 2})
	store.PutCart(domain.Cart{ID: "cart-1", BuyerID: "buyer-1", Items: []domain.CartItem{
		{VariantID: "v1", ProductID: "p1", SellerID: "S1", Quantity: 3, Price: dec("5")},
	}})
	svc := codService(t, store, Options{})

	_, err := svc.Checkout(context.Background(), Request{BuyerID: "buyer-1", Method: domain.MethodCashOnDelivery, Address: address()})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []apperr.StockShortage{{VariantID: "v1", Required: 3, Available: 2}}, ae.Details)

	assert.Empty(t, store.Orders())
	assert.Equal(t, 2, store.Stock("v1"))
	assert.Equal(t, domain.CartOpen, store.Cart("cart-1").Status)
	assert.Len(t, store.Cart("cart-1").Items, 1)
	assert.Empty(t, store.Outbox())
}

func TestCheckoutAmountsSumToSubtotal(t *testing.T) {
	store := memstore.New()
	items := []domain.CartItem{
		{VariantID: "v1", ProductID: "p1", SellerID: "S1", Quantity: 3, Price: dec("4.99")},
		{VariantID: "v2", ProductID: "p2", SellerID: "", Quantity: 1, Price: dec("12.50")},
		{VariantID: "v3", ProductID: "p3", SellerID: "S2", Quantity: 2, Price: dec("0.33")},
		{VariantID: "v4", ProductID: "p4", SellerID: "S1", Quantity: 1, Price: dec("100")},
	}
	for _, it := range items {
		store.PutVariant(memstore.Variant{ID: it.VariantID, ProductID: it.ProductID, Stock: 10})
	}
	cart := domain.Cart{ID: "cart-9", BuyerID: "buyer-9", Items: items}
	store.PutCart(cart)
	svc := codService(t, store, Options{})

	res, err := svc.Checkout(context.Background(), Request{BuyerID: "buyer-9", Method: domain.MethodCashOnDelivery, Address: address()})
	require.NoError(t, err)
	require.Len(t, res.Orders, 3)

	total := decimal.Zero
	for _, o := range res.Orders {
		total = total.Add(o.Amount)
		lines := decimal.Zero
		for _, it := range o.Items {
			lines = lines.Add(it.LineTotal())
		}
		assert.True(t, o.Amount.Equal(lines))
	}
	assert.True(t, total.Equal(cart.Subtotal()), "total %s subtotal %s", total, cart.Subtotal())
	assert.Equal(t, "", res.Orders[1].SellerID)
}

func TestCheckoutEmptyCart(t *testing.T) {
	store := memstore.New()
	svc := codService(t, store, Options{})

	_, err := svc.Checkout(context.Background(), Request{BuyerID: "nobody", Method: domain.MethodCashOnDelivery, Address: address()})
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)

	store.PutCart(domain.Cart{ID: "c", BuyerID: "b"})
	_, err = svc.Checkout(context.Background(), Request{BuyerID: "b", Method: domain.MethodCashOnDelivery, Address: address()})
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
}

func TestCheckoutValidation(t *testing.T) {
	store := memstore.New()
	twoSellerCart(store)
	svc := codService(t, store, Options{})

	_, err := svc.Checkout(context.Background(), Request{BuyerID: "buyer-1", Method: "CARD", Address: address()})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	partial := domain.Address{Recipient: "Ana"}
	_, err = svc.Checkout(context.Background(), Request{BuyerID: "buyer-1", Method: domain.MethodCashOnDelivery, Address: partial})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// external is not configured
	_, err = svc.Checkout(context.Background(), Request{BuyerID: "buyer-1", Method: domain.MethodExternal, Address: address()})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	store.PutCart(domain.Cart{ID: "cart-q", BuyerID: "buyer-q", Items: []domain.CartItem{{VariantID: "v1", Quantity: 0, Price: dec("1")}}})
	_, err = svc.Checkout(context.Background(), Request{BuyerID: "buyer-q", Method: domain.MethodCashOnDelivery, Address: address()})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCheckoutWithoutAddress(t *testing.T) {
	store := memstore.New()
	twoSellerCart(store)
	svc := codService(t, store, Options{})

	res, err := svc.Checkout(context.Background(), Request{BuyerID: "buyer-1", Method: domain.MethodCashOnDelivery})
	require.NoError(t, err)
	assert.Len(t, res.Orders, 2)
	assert.Empty(t, store.Addresses())
	assert.Equal(t, domain.CartConverted, store.Cart("cart-1").Status)
}

func TestCheckoutRetriesTakenOrderNumber(t *testing.T) {
	store := memstore.New()
	twoSellerCart(store)
	store.PutOrder(domain.Order{ID: "existing", Number: "ORD-TAKEN"})

	calls := 0
	svc := codService(t, store, Options{NewNumber: func(time.Time) string {
		calls++
		if calls == 1 {
			return "ORD-TAKEN"
		}
		return fmt.Sprintf("ORD-FREE-%d", calls)
	}})

	res, err := svc.Checkout(context.Background(), Request{BuyerID: "buyer-1", Method: domain.MethodCashOnDelivery, Address: address()})
	require.NoError(t, err)
	assert.Equal(t, "ORD-FREE-2", res.Orders[0].Number)
	assert.Equal(t, "ORD-FREE-3", res.Orders[1].Number)
}

func TestCheckoutFailsWhenOrderNumbersExhausted(t *testing.T) {
	store := memstore.New()
	twoSellerCart(store)
	store.PutOrder(domain.Order{ID: "existing", Number: "ORD-TAKEN"})
	svc := codService(t, store, Options{OrderNumberRetries: 3, NewNumber: func(time.Time) string { return "ORD-TAKEN" }})

	_, err := svc.Checkout(context.Background(), Request{BuyerID: "buyer-1", Method: domain.MethodCashOnDelivery, Address: address()})
	require.ErrorIs(t, err, apperr.ErrConflict)

	assert.Len(t, store.Orders(), 1)
	assert.Equal(t, 10, store.Stock("v1"))
	assert.Equal(t, domain.CartOpen, store.Cart("cart-1").Status)
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	const buyers, stock = 12, 5
	store := memstore.New()
	store.PutVariant(memstore.Variant{ID: "hot", ProductID: "p-hot", Stock: stock})
	for i := 0; i < buyers; i++ {
		store.PutCart(domain.Cart{
			ID:      fmt.Sprintf("cart-%d", i),
			BuyerID: fmt.Sprintf("buyer-%d", i),
			Items:   []domain.CartItem{{VariantID: "hot", ProductID: "p-hot", SellerID: "S1", Quantity: 1, Price: dec("9.99")}},
		})
	}
	svc := codService(t, store, Options{Now: time.Now})

	var (
		wg                sync.WaitGroup
		mu                sync.Mutex
		succeeded, failed int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), Request{
				BuyerID: fmt.Sprintf("buyer-%d", i),
				Method:  domain.MethodCashOnDelivery,
				Address: address(),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if apperr.KindOf(err) == apperr.KindInsufficientStock {
				failed++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, stock, succeeded)
	assert.Equal(t, buyers-stock, failed)
	assert.Equal(t, 0, store.Stock("hot"))

	seen := map[string]bool{}
	for _, o := range store.Orders() {
		assert.False(t, seen[o.Number], "duplicate order number %s", o.Number)
		seen[o.Number] = true
	}
	assert.Len(t, seen, stock)
}

func TestBypassCompletesImmediately(t *testing.T) {
	store := memstore.New()
	twoSellerCart(store)
	svc := serviceWith(t, store, payment.Config{Environment: "development", Bypass: true}, Options{})

	res, err := svc.Checkout(context.Background(), Request{BuyerID: "buyer-1", Method: domain.MethodExternal, Address: address()})
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
	assert.True(t, strings.HasPrefix(res.TxnRef, "BYPASS-"))

	for _, o := range res.Orders {
		p, _ := store.Payment(o.ID)
		assert.Equal(t, domain.PaymentCompleted, p.Status)
		assert.Equal(t, domain.MethodExternal, p.Method)
	}
}

func deferredCheckout(t *testing.T) (*memstore.Store, *Service, Result) {
	t.Helper()
	store := memstore.New()
	twoSellerCart(store)
	svc := serviceWith(t, store, externalConfig(), Options{})

	res, err := svc.Checkout(context.Background(), Request{BuyerID: "buyer-1", Method: domain.MethodExternal, Address: address(), Notes: "leave at door"})
	require.NoError(t, err)
	return store, svc, res
}

func callbackFields(txnRef, amount, code string) map[string]string {
	f := map[string]string{
		payment.FieldMerchant:     merchant,
		payment.FieldTxnRef:       txnRef,
		payment.FieldAmount:       amount,
		payment.FieldResponseCode: code,
	}
	f[payment.FieldSignature] = payment.Sign(f, secret)
	return f
}

func TestExternalCheckoutIsDeferred(t *testing.T) {
	store, _, res := deferredCheckout(t)

	assert.True(t, res.Deferred)
	assert.Empty(t, res.Orders)
	assert.True(t, strings.HasPrefix(res.PaymentURL, "https://pay.example.com/checkout?"))
	assert.NotEmpty(t, res.TxnRef)

	pc, ok := store.Checkout(res.TxnRef)
	require.True(t, ok)
	assert.Equal(t, domain.CheckoutPending, pc.Status)
	assert.True(t, pc.Amount.Equal(dec("30")))

	assert.Empty(t, store.Orders())
	assert.Equal(t, 10, store.Stock("v1"))
	assert.Equal(t, domain.CartOpen, store.Cart("cart-1").Status)
}

func TestCallbackSuccessPlacesOrders(t *testing.T) {
	store, svc, res := deferredCheckout(t)

	cb, err := svc.HandleCallback(context.Background(), callbackFields(res.TxnRef, "30.00", "00"))
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeCompleted, cb.Outcome)
	assert.Equal(t, domain.CheckoutCompleted, cb.Status)
	require.Len(t, cb.Orders, 2)

	for _, o := range cb.Orders {
		assert.Equal(t, res.CheckoutID, o.CheckoutID)
		p, _ := store.Payment(o.ID)
		assert.Equal(t, domain.PaymentCompleted, p.Status)
		assert.Equal(t, res.TxnRef, p.TxnRef)
	}
	pc, _ := store.Checkout(res.TxnRef)
	assert.Equal(t, domain.CheckoutCompleted, pc.Status)
	assert.Equal(t, "00", pc.ProviderCode)
	assert.Equal(t, 9, store.Stock("v1"))
	assert.Equal(t, domain.CartConverted, store.Cart("cart-1").Status)

	// the provider retries: nothing new happens
	again, err := svc.HandleCallback(context.Background(), callbackFields(res.TxnRef, "30.00", "00"))
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeCompleted, again.Outcome)
	assert.Empty(t, again.Orders)
	assert.Len(t, store.Orders(), 2)
	assert.Equal(t, 9, store.Stock("v1"))
}

func TestCallbackBadSignatureTouchesNothing(t *testing.T) {
	store, svc, res := deferredCheckout(t)

	f := callbackFields(res.TxnRef, "30.00", "00")
	f[payment.FieldResponseCode] = "07"
	_, err := svc.HandleCallback(context.Background(), f)
	require.ErrorIs(t, err, apperr.ErrPaymentVerification)

	pc, _ := store.Checkout(res.TxnRef)
	assert.Equal(t, domain.CheckoutPending, pc.Status)
	assert.Empty(t, store.Orders())
}

func TestCallbackAmountMismatch(t *testing.T) {
	store, svc, res := deferredCheckout(t)

	_, err := svc.HandleCallback(context.Background(), callbackFields(res.TxnRef, "1.00", "00"))
	require.ErrorIs(t, err, apperr.ErrPaymentVerification)
	assert.Empty(t, store.Orders())
}

func TestCallbackFailureMarksCheckoutFailed(t *testing.T) {
	store, svc, res := deferredCheckout(t)

	cb, err := svc.HandleCallback(context.Background(), callbackFields(res.TxnRef, "30.00", "51"))
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeFailed, cb.Outcome)

	pc, _ := store.Checkout(res.TxnRef)
	assert.Equal(t, domain.CheckoutFailed, pc.Status)
	assert.Empty(t, store.Orders())
	assert.Equal(t, 10, store.Stock("v1"))

	// a late success for a failed checkout is ignored
	cb, err = svc.HandleCallback(context.Background(), callbackFields(res.TxnRef, "30.00", "00"))
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomeFailed, cb.Outcome)
	assert.Empty(t, store.Orders())
}

func TestCallbackPendingCodeKeepsWaiting(t *testing.T) {
	store, svc, res := deferredCheckout(t)

	cb, err := svc.HandleCallback(context.Background(), callbackFields(res.TxnRef, "30.00", "99"))
	require.NoError(t, err)
	assert.Equal(t, payment.OutcomePending, cb.Outcome)

	pc, _ := store.Checkout(res.TxnRef)
	assert.Equal(t, domain.CheckoutPending, pc.Status)
}

func TestCallbackUnknownReference(t *testing.T) {
	_, svc, _ := deferredCheckout(t)

	_, err := svc.HandleCallback(context.Background(), callbackFields("TXN-UNKNOWN", "30.00", "00"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
