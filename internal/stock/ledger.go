package stock

import (
	"context"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
)

type Line struct {
	VariantID string
	ProductID string
	Quantity  int
}

// Ledger owns variant stock. It never opens a transaction itself: callers
// pass the repository of the unit of work that also writes their orders, so
// the decrement becomes final only when that unit of work commits.
type Ledger struct{}

// ReserveAndDecrement locks every variant, fails with InsufficientStock
// listing all short lines before writing anything, then decrements stock and
// bumps the product sales counter.
func (Ledger) ReserveAndDecrement(ctx context.Context, repo domain.StockRepository, lines []Line) error {
	need, products, ids := aggregate(lines)

	stock, err := repo.LockVariants(ctx, ids)
	if err != nil {
		return err
	}

	var short []apperr.StockShortage
	for _, id := range ids {
		have, ok := stock[id]
		if !ok {
			return apperr.NotFound("variant", id)
		}
		if have < need[id] {
			short = append(short, apperr.StockShortage{VariantID: id, Required: need[id], Available: have})
		}
	}
	if len(short) > 0 {
		return apperr.InsufficientStock(short)
	}

	for _, id := range ids {
		if err := repo.Decrement(ctx, id, need[id]); err != nil {
			return fmt.Errorf("decrement %s: %w", id, err)
		}
	}
	for pid, qty := range products {
		if err := repo.AddSales(ctx, pid, qty); err != nil {
			return fmt.Errorf("sales counter %s: %w", pid, err)
		}
	}
	return nil
}

// Restore gives stock back for lines of an order that will not ship.
func (Ledger) Restore(ctx context.Context, repo domain.StockRepository, lines []Line) error {
	need, products, ids := aggregate(lines)
	if _, err := repo.LockVariants(ctx, ids); err != nil {
		return err
	}
	for _, id := range ids {
		if err := repo.Increment(ctx, id, need[id]); err != nil {
			return fmt.Errorf("restore %s: %w", id, err)
		}
	}
	for pid, qty := range products {
		if err := repo.AddSales(ctx, pid, -qty); err != nil {
			return fmt.Errorf("sales counter %s: %w", pid, err)
		}
	}
	return nil
}

// aggregate sums quantities per variant and returns variant ids sorted, which
// is the order rows get locked in.
func aggregate(lines []Line) (map[string]int, map[string]int, []string) {
	need := make(map[string]int, len(lines))
	products := make(map[string]int, len(lines))
	for _, l := range lines {
		need[l.VariantID] += l.Quantity
		if l.ProductID != "" {
			products[l.ProductID] += l.Quantity
		}
	}
	ids := make([]string, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return need, products, ids
}

func FromCart(items []domain.CartItem) []Line {
	out := make([]Line, 0, len(items))
	for _, it := range items {
		out = append(out, Line{VariantID: it.VariantID, ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func FromOrder(items []domain.OrderItem) []Line {
	out := make([]Line, 0, len(items))
	for _, it := range items {
		out = append(out, Line{VariantID: it.VariantID, ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}
