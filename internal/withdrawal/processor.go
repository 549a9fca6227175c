package withdrawal

import (
	"context"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/ariefcatur/go-marketplace-settlement/internal/events"
	"github.com/ariefcatur/go-marketplace-settlement/internal/metrics"
	"github.com/ariefcatur/go-marketplace-settlement/internal/wallet"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Request struct {
	SellerID string
	Amount   decimal.Decimal
	Method   domain.WithdrawalMethod
	Details  map[string]string
}

type Processor struct {
	uow     domain.UnitOfWork
	ledger  *wallet.Ledger
	metrics *metrics.Metrics
	logger  *zap.Logger
	service string
	now     func() time.Time
}

func NewProcessor(uow domain.UnitOfWork, ledger *wallet.Ledger, m *metrics.Metrics, logger *zap.Logger, service string, now func() time.Time) *Processor {
	if now == nil {
		now = time.Now
	}
	return &Processor{uow: uow, ledger: ledger, metrics: m, logger: logger, service: service, now: now}
}

// Request reserves funds for a payout. Nothing is persisted when the
// seller's available balance does not cover the amount.
func (p *Processor) Request(ctx context.Context, req Request) (domain.Withdrawal, error) {
	if req.SellerID == "" {
		return domain.Withdrawal{}, apperr.Validation("seller id is required")
	}
	if !req.Amount.IsPositive() {
		return domain.Withdrawal{}, apperr.Validation("amount must be positive")
	}
	if req.Amount.Exponent() < -2 {
		return domain.Withdrawal{}, apperr.Validation("amount has more than two decimal places")
	}
	if !req.Method.Valid() {
		return domain.Withdrawal{}, apperr.Validation("unknown withdrawal method %q", req.Method)
	}

	var out domain.Withdrawal
	err := p.uow.Do(ctx, func(ctx context.Context, r domain.Repos) error {
		w, err := p.ledger.Lock(ctx, r, req.SellerID)
		if err != nil {
			return err
		}
		if req.Amount.GreaterThan(w.AvailableBalance) {
			return apperr.InsufficientFunds(req.Amount.StringFixed(2), w.AvailableBalance.StringFixed(2))
		}

		now := p.now()
		wd := domain.Withdrawal{
			ID:        uuid.NewString(),
			WalletID:  w.ID,
			SellerID:  req.SellerID,
			Amount:    req.Amount,
			Method:    req.Method,
			Details:   req.Details,
			Status:    domain.WithdrawalPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := r.Withdrawals.Insert(ctx, &wd); err != nil {
			return err
		}
		if err := p.ledger.ReserveForWithdrawal(ctx, r, w, &wd); err != nil {
			return err
		}
		if err := p.enqueue(ctx, r, events.EventWithdrawalRequested, &wd, ""); err != nil {
			return err
		}
		out = wd
		return nil
	})
	if err != nil {
		return domain.Withdrawal{}, err
	}

	p.metrics.Withdrawal(ctx, string(out.Status))
	p.logger.Info("withdrawal requested",
		zap.String("withdrawal_id", out.ID),
		zap.String("seller_id", out.SellerID),
		zap.String("amount", out.Amount.StringFixed(2)),
		zap.String("method", string(out.Method)),
	)
	return out, nil
}

// Transition moves a withdrawal along its state machine. Only admins drive
// payouts; the owning seller may cancel while the request is still PENDING.
func (p *Processor) Transition(ctx context.Context, actor domain.Actor, id string, to domain.WithdrawalStatus, reason string) (domain.Withdrawal, error) {
	var out domain.Withdrawal
	err := p.uow.Do(ctx, func(ctx context.Context, r domain.Repos) error {
		wd, err := r.Withdrawals.Lock(ctx, id)
		if err != nil {
			return err
		}
		if err := authorize(actor, wd, to); err != nil {
			return err
		}
		if !domain.CanTransitionWithdrawal(wd.Status, to) {
			return apperr.InvalidTransition("withdrawal", string(wd.Status), string(to))
		}

		w, err := p.ledger.Lock(ctx, r, wd.SellerID)
		if err != nil {
			return err
		}
		switch {
		case to == domain.WithdrawalCompleted:
			err = p.ledger.SettleWithdrawal(ctx, r, w, wd)
		case to.ReturnsFunds():
			err = p.ledger.RestoreWithdrawal(ctx, r, w, wd)
		}
		if err != nil {
			return err
		}

		now := p.now()
		wd.Status = to
		wd.UpdatedAt = now
		if to == domain.WithdrawalFailed || to == domain.WithdrawalCancelled {
			wd.FailureReason = reason
		}
		if to != domain.WithdrawalProcessing {
			wd.ProcessedAt = &now
		}
		if err := r.Withdrawals.Update(ctx, wd); err != nil {
			return err
		}
		if err := p.enqueue(ctx, r, events.EventWithdrawalStatusChanged, wd, reason); err != nil {
			return err
		}
		out = *wd
		return nil
	})
	if err != nil {
		return domain.Withdrawal{}, err
	}

	p.metrics.Withdrawal(ctx, string(to))
	p.logger.Info("withdrawal status changed",
		zap.String("withdrawal_id", id),
		zap.String("status", string(to)),
		zap.String("actor_id", actor.UserID),
	)
	return out, nil
}

func authorize(actor domain.Actor, wd *domain.Withdrawal, to domain.WithdrawalStatus) error {
	if actor.IsAdmin() {
		return nil
	}
	if to == domain.WithdrawalCancelled && actor.UserID == wd.SellerID && wd.Status == domain.WithdrawalPending {
		return nil
	}
	return apperr.Unauthorized("withdrawal %s cannot be moved to %s by %s", wd.ID, to, actor.UserID)
}

type Page struct {
	Items []domain.Withdrawal
	Page  int
	Limit int
	Total int
}

func (p *Processor) List(ctx context.Context, sellerID string, page, limit int) (Page, error) {
	page, limit = wallet.Normalize(page, limit)
	out := Page{Page: page, Limit: limit}
	err := p.uow.Do(ctx, func(ctx context.Context, r domain.Repos) error {
		var err error
		out.Items, out.Total, err = r.Withdrawals.ListBySeller(ctx, sellerID, limit, (page-1)*limit)
		return err
	})
	return out, err
}

func (p *Processor) enqueue(ctx context.Context, r domain.Repos, eventType string, wd *domain.Withdrawal, reason string) error {
	ev, err := events.New(eventType, p.service, wd.SellerID, events.WithdrawalPayload{
		WithdrawalID: wd.ID,
		SellerID:     wd.SellerID,
		Amount:       wd.Amount.StringFixed(2),
		Method:       string(wd.Method),
		Status:       string(wd.Status),
		Reason:       reason,
	}, p.now())
	if err != nil {
		return err
	}
	return r.Outbox.Enqueue(ctx, ev)
}
