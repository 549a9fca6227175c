package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/ariefcatur/go-marketplace-settlement/internal/events"
	"github.com/ariefcatur/go-marketplace-settlement/internal/metrics"
	"github.com/ariefcatur/go-marketplace-settlement/internal/payment"
	"github.com/ariefcatur/go-marketplace-settlement/internal/stock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultOrderNumberRetries = 5
	DefaultDeliveryEstimate   = 7 * 24 * time.Hour
	PendingCarrier            = "PENDING_ASSIGNMENT"
)

type Options struct {
	OrderNumberRetries int
	DeliveryEstimate   time.Duration
	Currency           string
	ServiceName        string
	Now                func() time.Time
	NewNumber          NumberFunc
}

type Request struct {
	BuyerID  string
	Method   domain.PaymentMethod
	Address  domain.Address
	Notes    string
	ClientIP string
}

// Result carries the created orders, or for a deferred payment the
// redirect the buyer must follow before any order exists.
type Result struct {
	CheckoutID string
	Orders     []domain.Order
	Deferred   bool
	PaymentURL string
	TxnRef     string
	Amount     decimal.Decimal
}

type CallbackResult struct {
	TxnRef  string
	Outcome payment.Outcome
	Status  domain.CheckoutStatus
	Orders  []domain.Order
}

type Service struct {
	uow      domain.UnitOfWork
	payments *payment.Registry
	stock    stock.Ledger
	metrics  *metrics.Metrics
	logger   *zap.Logger
	opts     Options
}

func NewService(uow domain.UnitOfWork, payments *payment.Registry, m *metrics.Metrics, logger *zap.Logger, opts Options) *Service {
	if opts.OrderNumberRetries <= 0 {
		opts.OrderNumberRetries = DefaultOrderNumberRetries
	}
	if opts.DeliveryEstimate <= 0 {
		opts.DeliveryEstimate = DefaultDeliveryEstimate
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewNumber == nil {
		opts.NewNumber = OrderNumber
	}
	return &Service{uow: uow, payments: payments, metrics: m, logger: logger, opts: opts}
}

// Checkout turns the buyer's open cart into one order per seller. Stock,
// orders, payments and the cart conversion commit together or not at all.
func (s *Service) Checkout(ctx context.Context, req Request) (Result, error) {
	res, err := s.checkout(ctx, req)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = string(apperr.KindOf(err))
	case res.Deferred:
		outcome = "deferred"
	}
	s.metrics.Checkout(ctx, string(req.Method), outcome)
	return res, err
}

func (s *Service) checkout(ctx context.Context, req Request) (Result, error) {
	if req.BuyerID == "" {
		return Result{}, apperr.Validation("buyer id is required")
	}
	if hasAddress(req.Address) {
		if err := validateAddress(req.Address); err != nil {
			return Result{}, err
		}
	}
	gw, err := s.payments.Resolve(req.Method)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = s.uow.Do(ctx, func(ctx context.Context, r domain.Repos) error {
		cart, err := r.Carts.LockOpenByBuyer(ctx, req.BuyerID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.EmptyCart()
		}
		if err != nil {
			return err
		}
		if err := validateCart(cart); err != nil {
			return err
		}

		now := s.opts.Now()
		res = Result{CheckoutID: uuid.NewString(), Amount: cart.Subtotal()}
		init, err := gw.Initiate(ctx, payment.InitRequest{
			TxnRef:    txnRef(now),
			Amount:    res.Amount,
			Currency:  s.opts.Currency,
			OrderInfo: "checkout " + res.CheckoutID,
			ClientIP:  req.ClientIP,
		})
		if err != nil {
			if apperr.KindOf(err) == apperr.KindInternal {
				return apperr.PaymentInitiation(err)
			}
			return err
		}
		res.TxnRef = init.TxnRef

		if init.Deferred {
			res.Deferred, res.PaymentURL = true, init.PaymentURL
			return r.Checkouts.Insert(ctx, &domain.PendingCheckout{
				TxnRef:     init.TxnRef,
				CheckoutID: res.CheckoutID,
				BuyerID:    req.BuyerID,
				CartID:     cart.ID,
				Amount:     res.Amount,
				Address:    req.Address,
				Notes:      req.Notes,
				Status:     domain.CheckoutPending,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}

		res.Orders, err = s.placeOrders(ctx, r, cart, placement{
			CheckoutID:    res.CheckoutID,
			BuyerID:       req.BuyerID,
			Method:        req.Method,
			PaymentStatus: init.Status,
			TxnRef:        init.TxnRef,
			Address:       req.Address,
			Notes:         req.Notes,
		})
		return err
	})
	if err != nil {
		s.logger.Warn("checkout failed", zap.String("buyer_id", req.BuyerID), zap.String("method", string(req.Method)), zap.Error(err))
		return Result{}, err
	}

	if res.Deferred {
		s.logger.Info("checkout awaiting payment", zap.String("checkout_id", res.CheckoutID), zap.String("txn_ref", res.TxnRef))
	} else {
		s.logger.Info("checkout completed",
			zap.String("checkout_id", res.CheckoutID),
			zap.Int("orders", len(res.Orders)),
			zap.String("amount", res.Amount.StringFixed(2)),
		)
	}
	return res, nil
}

// HandleCallback settles a deferred checkout from the provider's signed
// callback. The signature is checked before the store is touched, and a
// callback for a checkout that already finished changes nothing.
func (s *Service) HandleCallback(ctx context.Context, fields map[string]string) (CallbackResult, error) {
	gw, err := s.payments.Callback()
	if err != nil {
		return CallbackResult{}, err
	}
	v, err := gw.Verify(fields)
	if err != nil {
		s.logger.Warn("payment callback rejected", zap.String("txn_ref", fields[payment.FieldTxnRef]), zap.Error(err))
		return CallbackResult{}, err
	}

	res := CallbackResult{TxnRef: v.TxnRef, Outcome: v.Outcome}
	err = s.uow.Do(ctx, func(ctx context.Context, r domain.Repos) error {
		pc, err := r.Checkouts.Lock(ctx, v.TxnRef)
		if err != nil {
			return err
		}
		if !v.Amount.Equal(pc.Amount) {
			return apperr.PaymentVerification("amount %s does not match checkout amount %s", v.Amount.StringFixed(2), pc.Amount.StringFixed(2))
		}
		if pc.Status != domain.CheckoutPending {
			res.Status = pc.Status
			res.Outcome = recordedOutcome(pc.Status)
			return nil
		}

		now := s.opts.Now()
		switch v.Outcome {
		case payment.OutcomeCompleted:
			cart, err := r.Carts.LockByID(ctx, pc.CartID)
			if err != nil {
				return err
			}
			if cart.Status != domain.CartOpen || !cart.Subtotal().Equal(pc.Amount) {
				return apperr.Conflict("cart %s changed since checkout %s", cart.ID, pc.CheckoutID)
			}
			res.Orders, err = s.placeOrders(ctx, r, cart, placement{
				CheckoutID:    pc.CheckoutID,
				BuyerID:       pc.BuyerID,
				Method:        domain.MethodExternal,
				PaymentStatus: domain.PaymentCompleted,
				TxnRef:        pc.TxnRef,
				ProviderCode:  v.Code,
				Address:       pc.Address,
				Notes:         pc.Notes,
			})
			if err != nil {
				return err
			}
			res.Status = domain.CheckoutCompleted
			return r.Checkouts.UpdateStatus(ctx, pc.TxnRef, domain.CheckoutCompleted, v.Code, now)
		case payment.OutcomeFailed:
			res.Status = domain.CheckoutFailed
			return r.Checkouts.UpdateStatus(ctx, pc.TxnRef, domain.CheckoutFailed, v.Code, now)
		default:
			res.Status = domain.CheckoutPending
			return nil
		}
	})
	if err != nil {
		s.logger.Warn("payment callback failed", zap.String("txn_ref", v.TxnRef), zap.Error(err))
		return CallbackResult{}, err
	}

	s.metrics.Checkout(ctx, string(domain.MethodExternal), "callback_"+string(res.Outcome))
	s.logger.Info("payment callback handled",
		zap.String("txn_ref", res.TxnRef),
		zap.String("outcome", string(res.Outcome)),
		zap.String("reason", payment.Reason(v.Code)),
		zap.Int("orders", len(res.Orders)),
	)
	return res, nil
}

func recordedOutcome(st domain.CheckoutStatus) payment.Outcome {
	switch st {
	case domain.CheckoutCompleted:
		return payment.OutcomeCompleted
	case domain.CheckoutFailed:
		return payment.OutcomeFailed
	}
	return payment.OutcomePending
}

type placement struct {
	CheckoutID    string
	BuyerID       string
	Method        domain.PaymentMethod
	PaymentStatus domain.PaymentStatus
	TxnRef        string
	ProviderCode  string
	Address       domain.Address
	Notes         string
}

// placeOrders runs inside the caller's unit of work.
func (s *Service) placeOrders(ctx context.Context, r domain.Repos, cart *domain.Cart, p placement) ([]domain.Order, error) {
	if err := s.stock.ReserveAndDecrement(ctx, r.Stock, stock.FromCart(cart.Items)); err != nil {
		return nil, err
	}

	now := s.opts.Now()
	buckets := Split(cart.Items)
	orders := make([]domain.Order, 0, len(buckets))
	for _, b := range buckets {
		o := domain.Order{
			ID:            uuid.NewString(),
			CheckoutID:    p.CheckoutID,
			BuyerID:       p.BuyerID,
			SellerID:      b.SellerID,
			Amount:        b.Amount(),
			Status:        domain.OrderPending,
			PaymentMethod: p.Method,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.insertOrder(ctx, r, &o); err != nil {
			return nil, err
		}

		for _, it := range b.Items {
			o.Items = append(o.Items, domain.OrderItem{
				ID:         uuid.NewString(),
				OrderID:    o.ID,
				VariantID:  it.VariantID,
				ProductID:  it.ProductID,
				CategoryID: it.CategoryID,
				Quantity:   it.Quantity,
				Price:      it.Price,
			})
		}
		if err := r.Orders.InsertItems(ctx, o.Items); err != nil {
			return nil, fmt.Errorf("order items: %w", err)
		}

		pay := domain.Payment{
			ID:      uuid.NewString(),
			OrderID: o.ID,
			Method:  p.Method,
			Status:  p.PaymentStatus,
			Amount:  o.Amount,
			TxnRef:  p.TxnRef,
		}
		if err := r.Orders.InsertPayment(ctx, &pay); err != nil {
			return nil, fmt.Errorf("payment: %w", err)
		}
		if err := r.Orders.InsertTransaction(ctx, &domain.Transaction{
			ID:           uuid.NewString(),
			PaymentID:    pay.ID,
			OrderID:      o.ID,
			Status:       pay.Status,
			Amount:       pay.Amount,
			ProviderCode: p.ProviderCode,
			CreatedAt:    now,
		}); err != nil {
			return nil, fmt.Errorf("transaction: %w", err)
		}
		if err := r.Orders.InsertShipment(ctx, &domain.Shipment{
			ID:                uuid.NewString(),
			OrderID:           o.ID,
			Carrier:           PendingCarrier,
			Notes:             p.Notes,
			EstimatedDelivery: now.Add(s.opts.DeliveryEstimate),
		}); err != nil {
			return nil, fmt.Errorf("shipment: %w", err)
		}
		orders = append(orders, o)
	}

	if hasAddress(p.Address) {
		addr := p.Address
		addr.ID, addr.OrderID, addr.BuyerID = uuid.NewString(), orders[0].ID, p.BuyerID
		if err := r.Orders.InsertAddress(ctx, &addr); err != nil {
			return nil, fmt.Errorf("address: %w", err)
		}
	}
	if err := r.Carts.Convert(ctx, cart.ID); err != nil {
		return nil, fmt.Errorf("convert cart: %w", err)
	}

	for _, o := range orders {
		ev, err := events.New(events.EventOrderPlaced, s.opts.ServiceName, o.ID, events.OrderPlacedPayload{
			OrderID:       o.ID,
			OrderNumber:   o.Number,
			CheckoutID:    o.CheckoutID,
			BuyerID:       o.BuyerID,
			SellerID:      o.SellerID,
			Amount:        o.Amount.StringFixed(2),
			PaymentMethod: string(o.PaymentMethod),
		}, now)
		if err != nil {
			return nil, err
		}
		if err := r.Outbox.Enqueue(ctx, ev); err != nil {
			return nil, err
		}
	}
	s.metrics.OrdersCreated.Add(ctx, int64(len(orders)))
	return orders, nil
}

// insertOrder assigns a fresh number until the insert succeeds.
func (s *Service) insertOrder(ctx context.Context, r domain.Repos, o *domain.Order) error {
	for attempt := 1; attempt <= s.opts.OrderNumberRetries; attempt++ {
		o.Number = s.opts.NewNumber(o.CreatedAt)
		ok, err := r.Orders.Insert(ctx, o)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if ok {
			return nil
		}
		s.logger.Debug("order number taken", zap.String("number", o.Number), zap.Int("attempt", attempt))
	}
	return apperr.Conflict("no free order number after %d attempts", s.opts.OrderNumberRetries)
}

func validateCart(c *domain.Cart) error {
	if len(c.Items) == 0 {
		return apperr.EmptyCart()
	}
	for _, it := range c.Items {
		if it.Quantity <= 0 {
			return apperr.Validation("item %s has quantity %d", it.VariantID, it.Quantity)
		}
		if it.Price.IsNegative() {
			return apperr.Validation("item %s has negative price", it.VariantID)
		}
	}
	return nil
}

// hasAddress reports whether the buyer sent an address at all. Digital and
// pickup orders check out without one.
func hasAddress(a domain.Address) bool {
	return a != domain.Address{}
}

func validateAddress(a domain.Address) error {
	var missing []string
	if strings.TrimSpace(a.Recipient) == "" {
		missing = append(missing, "recipient")
	}
	if strings.TrimSpace(a.Line1) == "" {
		missing = append(missing, "line1")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.Country) == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return apperr.Validation("address is missing %s", strings.Join(missing, ", "))
	}
	return nil
}
