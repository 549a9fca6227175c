package postgres

import (
	"context"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/jackc/pgx/v5"
)

type checkoutRepo struct{ tx pgx.Tx }

func (r checkoutRepo) Insert(ctx context.Context, pc *domain.PendingCheckout) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO pending_checkouts(txn_ref, checkout_id, buyer_id, cart_id, amount, address, notes, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`,
		pc.TxnRef, pc.CheckoutID, pc.BuyerID, pc.CartID, pc.Amount, pc.Address, pc.Notes, pc.Status, pc.CreatedAt)
	if IsUniqueViolation(err) {
		return apperr.Conflict("transaction reference %s already used", pc.TxnRef)
	}
	return err
}

func (r checkoutRepo) Lock(ctx context.Context, txnRef string) (*domain.PendingCheckout, error) {
	var pc domain.PendingCheckout
	err := r.tx.QueryRow(ctx, `
		SELECT txn_ref, checkout_id, buyer_id, cart_id, amount, address, notes, status, provider_code, created_at, updated_at
		FROM pending_checkouts WHERE txn_ref=$1
		FOR UPDATE`, txnRef).Scan(
		&pc.TxnRef, &pc.CheckoutID, &pc.BuyerID, &pc.CartID, &pc.Amount, &pc.Address,
		&pc.Notes, &pc.Status, &pc.ProviderCode, &pc.CreatedAt, &pc.UpdatedAt,
	)
	if noRows(err) {
		return nil, apperr.NotFound("checkout", txnRef)
	}
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r checkoutRepo) UpdateStatus(ctx context.Context, txnRef string, status domain.CheckoutStatus, code string, at time.Time) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE pending_checkouts SET status=$2, provider_code=$3, updated_at=$4
		WHERE txn_ref=$1`, txnRef, status, code, at)
	return err
}
