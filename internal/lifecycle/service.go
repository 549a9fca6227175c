package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/ariefcatur/go-marketplace-settlement/internal/events"
	"github.com/ariefcatur/go-marketplace-settlement/internal/metrics"
	"github.com/ariefcatur/go-marketplace-settlement/internal/stock"
	"github.com/ariefcatur/go-marketplace-settlement/internal/wallet"
	"go.uber.org/zap"
)

type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionShip     Action = "ship"
	ActionDeliver  Action = "deliver"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

var targets = map[Action]domain.OrderStatus{
	ActionAccept:   domain.OrderAccepted,
	ActionReject:   domain.OrderRejected,
	ActionShip:     domain.OrderShipped,
	ActionDeliver:  domain.OrderDelivered,
	ActionComplete: domain.OrderCompleted,
	ActionCancel:   domain.OrderCancelled,
}

func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(s))
	_, ok := targets[a]
	return a, ok
}

type TransitionRequest struct {
	Action         Action
	Carrier        string
	TrackingNumber string
	Reason         string
}

type Result struct {
	Order    domain.Order
	From     domain.OrderStatus
	Changed  bool
	Credited *domain.WalletTransaction
}

type Service struct {
	uow     domain.UnitOfWork
	ledger  *wallet.Ledger
	stock   stock.Ledger
	metrics *metrics.Metrics
	logger  *zap.Logger
	service string
	now     func() time.Time
}

func NewService(uow domain.UnitOfWork, ledger *wallet.Ledger, m *metrics.Metrics, logger *zap.Logger, service string, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{uow: uow, ledger: ledger, metrics: m, logger: logger, service: service, now: now}
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	var out domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, r domain.Repos) error {
		o, err := r.Orders.Get(ctx, id)
		if err != nil {
			return err
		}
		out = *o
		return nil
	})
	return out, err
}

// Transition applies a seller or admin action to an order. Reaching
// DELIVERED or COMPLETED credits the seller wallet in the same unit of work,
// at most once per order.
func (s *Service) Transition(ctx context.Context, actor domain.Actor, orderID string, req TransitionRequest) (Result, error) {
	to, ok := targets[req.Action]
	if !ok {
		return Result{}, apperr.Validation("unknown action %q", req.Action)
	}
	if req.Action == ActionShip && strings.TrimSpace(req.Carrier) == "" {
		return Result{}, apperr.Validation("carrier is required to ship")
	}

	var res Result
	err := s.uow.Do(ctx, func(ctx context.Context, r domain.Repos) error {
		o, err := r.Orders.Lock(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && (o.SellerID == "" || actor.UserID != o.SellerID) {
			return apperr.Unauthorized("order %s does not belong to %s", orderID, actor.UserID)
		}
		res.From = o.Status

		if o.Status == to && to == domain.OrderCompleted {
			res.Order = *o
			return nil
		}
		if !domain.CanTransition(o.Status, to) {
			return apperr.InvalidTransition("order", string(o.Status), string(to))
		}

		now := s.now()
		switch req.Action {
		case ActionShip:
			err = r.Orders.MarkShipped(ctx, o.ID, req.Carrier, req.TrackingNumber, now)
		case ActionDeliver:
			err = r.Orders.MarkDelivered(ctx, o.ID, now)
		case ActionReject, ActionCancel:
			err = s.stock.Restore(ctx, r.Stock, stock.FromOrder(o.Items))
		}
		if err != nil {
			return err
		}

		if err := r.Orders.UpdateStatus(ctx, o.ID, to, now); err != nil {
			return err
		}
		o.Status, o.UpdatedAt = to, now

		if to.Settles() {
			if res.Credited, err = s.ledger.CreditOrder(ctx, r, o); err != nil {
				return err
			}
		}

		ev, err := events.New(events.EventOrderStatusChanged, s.service, o.ID, events.OrderStatusChangedPayload{
			OrderID:  o.ID,
			BuyerID:  o.BuyerID,
			SellerID: o.SellerID,
			From:     string(res.From),
			To:       string(to),
			ActorID:  actor.UserID,
			Reason:   req.Reason,
		}, now)
		if err != nil {
			return err
		}
		if err := r.Outbox.Enqueue(ctx, ev); err != nil {
			return err
		}

		res.Order, res.Changed = *o, true
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if res.Changed {
		s.metrics.Transition(ctx, string(to))
		s.logger.Info("order status changed",
			zap.String("order_id", orderID),
			zap.String("from", string(res.From)),
			zap.String("to", string(to)),
			zap.String("actor_id", actor.UserID),
			zap.Bool("credited", res.Credited != nil),
		)
	}
	return res, nil
}
