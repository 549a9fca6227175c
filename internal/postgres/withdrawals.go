package postgres

import (
	"context"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/jackc/pgx/v5"
)

type withdrawalRepo struct{ tx pgx.Tx }

const withdrawalCols = `id, wallet_id, seller_id, amount, method, details, status, failure_reason, created_at, updated_at, processed_at`

func scanWithdrawal(row pgx.Row) (domain.Withdrawal, error) {
	var w domain.Withdrawal
	err := row.Scan(&w.ID, &w.WalletID, &w.SellerID, &w.Amount, &w.Method, &w.Details, &w.Status,
		&w.FailureReason, &w.CreatedAt, &w.UpdatedAt, &w.ProcessedAt)
	return w, err
}

func (r withdrawalRepo) Insert(ctx context.Context, w *domain.Withdrawal) error {
	details := w.Details
	if details == nil {
		details = map[string]string{}
	}
	_, err := r.tx.Exec(ctx, `
		INSERT INTO withdrawals(`+withdrawalCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		w.ID, w.WalletID, w.SellerID, w.Amount, w.Method, details, w.Status,
		w.FailureReason, w.CreatedAt, w.UpdatedAt, w.ProcessedAt)
	return err
}

func (r withdrawalRepo) Lock(ctx context.Context, id string) (*domain.Withdrawal, error) {
	w, err := scanWithdrawal(r.tx.QueryRow(ctx, `SELECT `+withdrawalCols+` FROM withdrawals WHERE id=$1 FOR UPDATE`, id))
	if noRows(err) {
		return nil, apperr.NotFound("withdrawal", id)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r withdrawalRepo) Update(ctx context.Context, w *domain.Withdrawal) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE withdrawals SET status=$2, failure_reason=$3, updated_at=$4, processed_at=$5
		WHERE id=$1`, w.ID, w.Status, w.FailureReason, w.UpdatedAt, w.ProcessedAt)
	return err
}

func (r withdrawalRepo) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]domain.Withdrawal, int, error) {
	var total int
	if err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawals WHERE seller_id=$1`, sellerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.tx.Query(ctx, `SELECT `+withdrawalCols+`
		FROM withdrawals WHERE seller_id=$1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, sellerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, w)
	}
	return out, total, rows.Err()
}
