package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/jackc/pgx/v5"
)

type stockRepo struct{ tx pgx.Tx }

// LockVariants expects ids already sorted; locking in a stable order keeps
// concurrent multi-item checkouts from deadlocking.
func (r stockRepo) LockVariants(ctx context.Context, variantIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(variantIDs))
	for _, id := range variantIDs {
		var stock int
		err := r.tx.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id=$1 FOR UPDATE`, id).Scan(&stock)
		if noRows(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock variant %s: %w", id, err)
		}
		out[id] = stock
	}
	return out, nil
}

func (r stockRepo) Decrement(ctx context.Context, variantID string, qty int) error {
	ct, err := r.tx.Exec(ctx, `
		UPDATE product_variants SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2`, variantID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.InsufficientStock([]apperr.StockShortage{{VariantID: variantID, Required: qty}})
	}
	return nil
}

func (r stockRepo) Increment(ctx context.Context, variantID string, qty int) error {
	_, err := r.tx.Exec(ctx, `UPDATE product_variants SET stock = stock + $2, updated_at = now() WHERE id=$1`, variantID, qty)
	return err
}

func (r stockRepo) AddSales(ctx context.Context, productID string, delta int) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE products SET sales_count = GREATEST(sales_count + $2, 0), updated_at = now()
		WHERE id=$1`, productID, delta)
	return err
}
