package postgres

import (
	"context"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/jackc/pgx/v5"
)

type walletRepo struct{ tx pgx.Tx }

func (r walletRepo) Ensure(ctx context.Context, sellerID, currency string) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO wallets(seller_id, currency) VALUES ($1,$2)
		ON CONFLICT (seller_id) DO NOTHING`, sellerID, currency)
	return err
}

func (r walletRepo) LockBySeller(ctx context.Context, sellerID string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.tx.QueryRow(ctx, `
		SELECT id, seller_id, balance, available_balance, pending_balance, currency, updated_at
		FROM wallets WHERE seller_id=$1
		FOR UPDATE`, sellerID).Scan(
		&w.ID, &w.SellerID, &w.Balance, &w.AvailableBalance, &w.PendingBalance, &w.Currency, &w.UpdatedAt,
	)
	if noRows(err) {
		return nil, apperr.NotFound("wallet", sellerID)
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r walletRepo) UpdateBalances(ctx context.Context, w *domain.Wallet) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE wallets SET balance=$2, available_balance=$3, pending_balance=$4, updated_at=$5
		WHERE id=$1`, w.ID, w.Balance, w.AvailableBalance, w.PendingBalance, w.UpdatedAt)
	return err
}

func (r walletRepo) InsertTx(ctx context.Context, t *domain.WalletTransaction) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO wallet_transactions(id, wallet_id, type, status, amount, gross_amount, commission_rate,
		                                commission_amount, order_id, withdrawal_id, hold_until, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		t.ID, t.WalletID, t.Type, t.Status, t.Amount, t.GrossAmount, t.CommissionRate, t.CommissionAmount,
		nullable(t.OrderID), nullable(t.WithdrawalID), t.HoldUntil, t.Description, t.CreatedAt)
	if IsUniqueViolation(err) {
		return apperr.Conflict("order %s already credited", t.OrderID)
	}
	return err
}

func (r walletRepo) SetTxStatus(ctx context.Context, id string, status domain.WalletTxStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE wallet_transactions SET status=$2 WHERE id=$1`, id, status)
	return err
}

func (r walletRepo) HasCredit(ctx context.Context, orderID string) (bool, error) {
	var ok bool
	err := r.tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM wallet_transactions WHERE order_id=$1 AND type='CREDIT')`, orderID).Scan(&ok)
	return ok, err
}

const walletTxCols = `
	id, wallet_id, type, status, amount, gross_amount, commission_rate, commission_amount,
	COALESCE(order_id::text, ''), COALESCE(withdrawal_id::text, ''), hold_until, description, created_at`

func scanWalletTx(row pgx.Row) (domain.WalletTransaction, error) {
	var t domain.WalletTransaction
	err := row.Scan(&t.ID, &t.WalletID, &t.Type, &t.Status, &t.Amount, &t.GrossAmount, &t.CommissionRate,
		&t.CommissionAmount, &t.OrderID, &t.WithdrawalID, &t.HoldUntil, &t.Description, &t.CreatedAt)
	return t, err
}

func (r walletRepo) collect(ctx context.Context, query string, args ...any) ([]domain.WalletTransaction, error) {
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.WalletTransaction
	for rows.Next() {
		t, err := scanWalletTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r walletRepo) DueCredits(ctx context.Context, walletID string, now time.Time) ([]domain.WalletTransaction, error) {
	return r.collect(ctx, `SELECT `+walletTxCols+`
		FROM wallet_transactions
		WHERE wallet_id=$1 AND type='CREDIT' AND status='PENDING' AND hold_until <= $2
		ORDER BY hold_until
		FOR UPDATE`, walletID, now)
}

func (r walletRepo) HoldFor(ctx context.Context, withdrawalID string) (*domain.WalletTransaction, error) {
	t, err := scanWalletTx(r.tx.QueryRow(ctx, `SELECT `+walletTxCols+`
		FROM wallet_transactions
		WHERE withdrawal_id=$1 AND type='HOLD'
		FOR UPDATE`, withdrawalID))
	if noRows(err) {
		return nil, apperr.NotFound("withdrawal hold", withdrawalID)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r walletRepo) ListTx(ctx context.Context, walletID string, limit, offset int) ([]domain.WalletTransaction, int, error) {
	var total int
	if err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id=$1`, walletID).Scan(&total); err != nil {
		return nil, 0, err
	}
	items, err := r.collect(ctx, `SELECT `+walletTxCols+`
		FROM wallet_transactions
		WHERE wallet_id=$1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, walletID, limit, offset)
	return items, total, err
}
