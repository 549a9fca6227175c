package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/commission"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/ariefcatur/go-marketplace-settlement/internal/events"
	"github.com/ariefcatur/go-marketplace-settlement/internal/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultHoldWindow = 7 * 24 * time.Hour
	DefaultPageSize   = 20
	MaxPageSize       = 100
)

type Options struct {
	HoldWindow  time.Duration
	Currency    string
	ServiceName string
	Now         func() time.Time
}

// Ledger keeps seller wallets. Credits sit in pending until their hold
// expires; expired holds are released lazily whenever the wallet is locked.
type Ledger struct {
	uow         domain.UnitOfWork
	commissions *commission.Registry
	metrics     *metrics.Metrics
	logger      *zap.Logger
	holdWindow  time.Duration
	currency    string
	service     string
	now         func() time.Time
}

func NewLedger(uow domain.UnitOfWork, commissions *commission.Registry, m *metrics.Metrics, logger *zap.Logger, opts Options) *Ledger {
	if opts.HoldWindow <= 0 {
		opts.HoldWindow = DefaultHoldWindow
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		uow:         uow,
		commissions: commissions,
		metrics:     m,
		logger:      logger,
		holdWindow:  opts.HoldWindow,
		currency:    opts.Currency,
		service:     opts.ServiceName,
		now:         opts.Now,
	}
}

func (l *Ledger) HoldWindow() time.Duration { return l.holdWindow }

// CreditOrder books the seller's share of a settled order. It runs inside the
// caller's unit of work and does nothing if the order was already credited.
// Platform orders carry no seller and are not credited.
func (l *Ledger) CreditOrder(ctx context.Context, r domain.Repos, o *domain.Order) (*domain.WalletTransaction, error) {
	if o.SellerID == "" {
		return nil, nil
	}
	done, err := r.Wallets.HasCredit(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("credit check: %w", err)
	}
	if done {
		return nil, nil
	}

	var tally commission.Tally
	for _, it := range o.Items {
		rate, err := l.commissions.Rate(ctx, r.Commissions, it.CategoryID)
		if err != nil {
			return nil, err
		}
		tally.Add(it.LineTotal(), rate)
	}
	if len(o.Items) == 0 {
		tally.Add(o.Amount, decimal.Zero)
	}
	gross, net, fee := tally.Result()
	effective := decimal.Zero
	if gross.IsPositive() {
		effective = fee.Div(gross).Round(4)
	}

	w, err := l.lock(ctx, r, o.SellerID, true)
	if err != nil {
		return nil, err
	}

	now := l.now()
	holdUntil := now.Add(l.holdWindow)
	tx := &domain.WalletTransaction{
		ID:               uuid.NewString(),
		WalletID:         w.ID,
		Type:             domain.WalletCredit,
		Status:           domain.WalletTxPending,
		Amount:           net,
		GrossAmount:      gross,
		CommissionRate:   effective,
		CommissionAmount: fee,
		OrderID:          o.ID,
		HoldUntil:        &holdUntil,
		Description:      "order " + o.Number,
		CreatedAt:        now,
	}
	if err := r.Wallets.InsertTx(ctx, tx); err != nil {
		return nil, fmt.Errorf("insert credit: %w", err)
	}

	w.PendingBalance = w.PendingBalance.Add(net)
	w.Balance = w.Balance.Add(net)
	w.UpdatedAt = now
	if err := r.Wallets.UpdateBalances(ctx, w); err != nil {
		return nil, fmt.Errorf("update wallet: %w", err)
	}

	ev, err := events.New(events.EventWalletCredited, l.service, o.SellerID, events.WalletCreditedPayload{
		SellerID:       o.SellerID,
		OrderID:        o.ID,
		Gross:          gross.StringFixed(2),
		Net:            net.StringFixed(2),
		CommissionRate: effective.String(),
		HoldUntil:      holdUntil,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := r.Outbox.Enqueue(ctx, ev); err != nil {
		return nil, err
	}

	l.metrics.Credit(ctx, net.InexactFloat64())
	l.logger.Info("wallet credited",
		zap.String("seller_id", o.SellerID),
		zap.String("order_id", o.ID),
		zap.String("net", net.StringFixed(2)),
		zap.String("commission", fee.StringFixed(2)),
		zap.Time("hold_until", holdUntil),
	)
	return tx, nil
}

// Lock locks the seller's wallet and releases expired holds first, so the
// returned balances are current.
func (l *Ledger) Lock(ctx context.Context, r domain.Repos, sellerID string) (*domain.Wallet, error) {
	return l.lock(ctx, r, sellerID, false)
}

func (l *Ledger) lock(ctx context.Context, r domain.Repos, sellerID string, create bool) (*domain.Wallet, error) {
	if create {
		if err := r.Wallets.Ensure(ctx, sellerID, l.currency); err != nil {
			return nil, fmt.Errorf("ensure wallet: %w", err)
		}
	}
	w, err := r.Wallets.LockBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if err := l.releaseDue(ctx, r, w); err != nil {
		return nil, err
	}
	return w, nil
}

// releaseDue moves credits whose hold expired from pending to available.
// Released credits become COMPLETED, so they are never picked up twice.
func (l *Ledger) releaseDue(ctx context.Context, r domain.Repos, w *domain.Wallet) error {
	now := l.now()
	due, err := r.Wallets.DueCredits(ctx, w.ID, now)
	if err != nil {
		return fmt.Errorf("due credits: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	released := decimal.Zero
	for _, c := range due {
		if err := r.Wallets.SetTxStatus(ctx, c.ID, domain.WalletTxCompleted); err != nil {
			return err
		}
		if err := r.Wallets.InsertTx(ctx, &domain.WalletTransaction{
			ID:          uuid.NewString(),
			WalletID:    w.ID,
			Type:        domain.WalletRelease,
			Status:      domain.WalletTxCompleted,
			Amount:      c.Amount,
			OrderID:     c.OrderID,
			Description: "hold released",
			CreatedAt:   now,
		}); err != nil {
			return err
		}
		released = released.Add(c.Amount)
	}

	w.PendingBalance = w.PendingBalance.Sub(released)
	w.AvailableBalance = w.AvailableBalance.Add(released)
	w.UpdatedAt = now
	if err := r.Wallets.UpdateBalances(ctx, w); err != nil {
		return err
	}
	l.logger.Debug("holds released", zap.String("wallet_id", w.ID), zap.Int("count", len(due)), zap.String("amount", released.StringFixed(2)))
	return nil
}

func (l *Ledger) Balance(ctx context.Context, sellerID string) (domain.Wallet, error) {
	var out domain.Wallet
	err := l.uow.Do(ctx, func(ctx context.Context, r domain.Repos) error {
		w, err := l.Lock(ctx, r, sellerID)
		if err != nil {
			return err
		}
		out = *w
		return nil
	})
	return out, err
}

type Page struct {
	Items []domain.WalletTransaction
	Page  int
	Limit int
	Total int
}

func (l *Ledger) History(ctx context.Context, sellerID string, page, limit int) (Page, error) {
	page, limit = Normalize(page, limit)
	out := Page{Page: page, Limit: limit}
	err := l.uow.Do(ctx, func(ctx context.Context, r domain.Repos) error {
		w, err := l.Lock(ctx, r, sellerID)
		if err != nil {
			return err
		}
		out.Items, out.Total, err = r.Wallets.ListTx(ctx, w.ID, limit, (page-1)*limit)
		return err
	})
	return out, err
}

// Normalize clamps 1-based page and limit to sane values.
func Normalize(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

// ReserveForWithdrawal moves amount out of available into a HOLD entry.
// w must already be locked through Lock.
func (l *Ledger) ReserveForWithdrawal(ctx context.Context, r domain.Repos, w *domain.Wallet, wd *domain.Withdrawal) error {
	if wd.Amount.GreaterThan(w.AvailableBalance) {
		return apperr.InsufficientFunds(wd.Amount.StringFixed(2), w.AvailableBalance.StringFixed(2))
	}
	now := l.now()
	w.AvailableBalance = w.AvailableBalance.Sub(wd.Amount)
	w.Balance = w.Balance.Sub(wd.Amount)
	w.UpdatedAt = now
	if err := r.Wallets.UpdateBalances(ctx, w); err != nil {
		return err
	}
	return r.Wallets.InsertTx(ctx, &domain.WalletTransaction{
		ID:           uuid.NewString(),
		WalletID:     w.ID,
		Type:         domain.WalletHold,
		Status:       domain.WalletTxPending,
		Amount:       wd.Amount,
		WithdrawalID: wd.ID,
		Description:  "withdrawal " + string(wd.Method),
		CreatedAt:    now,
	})
}

// SettleWithdrawal finalises a paid-out withdrawal: the hold completes and a DEBIT is recorded.
func (l *Ledger) SettleWithdrawal(ctx context.Context, r domain.Repos, w *domain.Wallet, wd *domain.Withdrawal) error {
	hold, err := r.Wallets.HoldFor(ctx, wd.ID)
	if err != nil {
		return err
	}
	if err := r.Wallets.SetTxStatus(ctx, hold.ID, domain.WalletTxCompleted); err != nil {
		return err
	}
	return r.Wallets.InsertTx(ctx, &domain.WalletTransaction{
		ID:           uuid.NewString(),
		WalletID:     w.ID,
		Type:         domain.WalletDebit,
		Status:       domain.WalletTxCompleted,
		Amount:       wd.Amount,
		WithdrawalID: wd.ID,
		Description:  "withdrawal paid out",
		CreatedAt:    l.now(),
	})
}

// RestoreWithdrawal returns a held amount to available.
func (l *Ledger) RestoreWithdrawal(ctx context.Context, r domain.Repos, w *domain.Wallet, wd *domain.Withdrawal) error {
	hold, err := r.Wallets.HoldFor(ctx, wd.ID)
	if err != nil {
		return err
	}
	if hold.Status != domain.WalletTxPending {
		return apperr.Conflict("withdrawal %s hold already %s", wd.ID, hold.Status)
	}
	if err := r.Wallets.SetTxStatus(ctx, hold.ID, domain.WalletTxCancelled); err != nil {
		return err
	}
	w.AvailableBalance = w.AvailableBalance.Add(wd.Amount)
	w.Balance = w.Balance.Add(wd.Amount)
	w.UpdatedAt = l.now()
	return r.Wallets.UpdateBalances(ctx, w)
}
