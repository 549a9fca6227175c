package commission

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var one = decimal.NewFromInt(1)

// Registry resolves the platform's cut per product category.
type Registry struct {
	uow    domain.UnitOfWork
	logger *zap.Logger
}

func NewRegistry(uow domain.UnitOfWork, logger *zap.Logger) *Registry {
	return &Registry{uow: uow, logger: logger}
}

// Rate returns the configured rate for categoryID, or zero when none is set.
func (r *Registry) Rate(ctx context.Context, repo domain.CommissionRepository, categoryID string) (decimal.Decimal, error) {
	if categoryID == "" {
		return decimal.Zero, nil
	}
	c, ok, err := repo.Get(ctx, categoryID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("commission lookup %s: %w", categoryID, err)
	}
	if !ok {
		return decimal.Zero, nil
	}
	return c.Rate, nil
}

func (r *Registry) Set(ctx context.Context, c domain.Commission) error {
	if c.CategoryID == "" {
		return apperr.Validation("category id is required")
	}
	if err := ValidateRate(c.Rate); err != nil {
		return err
	}
	err := r.uow.Do(ctx, func(ctx context.Context, repos domain.Repos) error {
		return repos.Commissions.Upsert(ctx, c)
	})
	if err != nil {
		return err
	}
	r.logger.Info("commission rate updated", zap.String("category_id", c.CategoryID), zap.String("rate", c.Rate.String()))
	return nil
}

func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(one) {
		return apperr.Validation("commission rate must be between 0 and 1, got %s", rate)
	}
	return nil
}

// NetAmount is amount × (1 − rate), rounded to cents.
func NetAmount(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(one.Sub(rate)).Round(2)
}

// Tally accumulates order lines at their own rates and rounds only once, so
// an order never loses more than half a cent to rounding however many lines
// it has.
type Tally struct {
	gross decimal.Decimal
	net   decimal.Decimal
}

func (t *Tally) Add(amount, rate decimal.Decimal) {
	t.gross = t.gross.Add(amount)
	t.net = t.net.Add(amount.Mul(one.Sub(rate)))
}

// Result returns the gross amount, the net rounded to cents and the fee as
// their difference.
func (t *Tally) Result() (gross, net, fee decimal.Decimal) {
	net = t.net.Round(2)
	return t.gross, net, t.gross.Sub(net)
}
