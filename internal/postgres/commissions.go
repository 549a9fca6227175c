package postgres

import (
	"context"

	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/jackc/pgx/v5"
)

type commissionRepo struct{ tx pgx.Tx }

func (r commissionRepo) Get(ctx context.Context, categoryID string) (domain.Commission, bool, error) {
	var c domain.Commission
	err := r.tx.QueryRow(ctx, `SELECT category_id, rate, description FROM commissions WHERE category_id=$1`, categoryID).
		Scan(&c.CategoryID, &c.Rate, &c.Description)
	if noRows(err) {
		return domain.Commission{}, false, nil
	}
	if err != nil {
		return domain.Commission{}, false, err
	}
	return c, true, nil
}

func (r commissionRepo) Upsert(ctx context.Context, c domain.Commission) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO commissions(category_id, rate, description) VALUES ($1,$2,$3)
		ON CONFLICT (category_id) DO UPDATE SET rate=EXCLUDED.rate, description=EXCLUDED.description, updated_at=now()`,
		c.CategoryID, c.Rate, c.Description)
	return err
}
