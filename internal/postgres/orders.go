package postgres

import (
	"context"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/jackc/pgx/v5"
)

type orderRepo struct{ tx pgx.Tx }

func (r orderRepo) Insert(ctx context.Context, o *domain.Order) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
		INSERT INTO orders(id, order_number, checkout_id, buyer_id, seller_id, amount, status, payment_method, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		ON CONFLICT (order_number) DO NOTHING`,
		o.ID, o.Number, o.CheckoutID, o.BuyerID, nullable(o.SellerID), o.Amount, o.Status, o.PaymentMethod, o.CreatedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r orderRepo) InsertItems(ctx context.Context, items []domain.OrderItem) error {
	for _, it := range items {
		if _, err := r.tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, variant_id, product_id, category_id, quantity, price)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, it.OrderID, it.VariantID, it.ProductID, nullable(it.CategoryID), it.Quantity, it.Price); err != nil {
			return err
		}
	}
	return nil
}

func (r orderRepo) InsertPayment(ctx context.Context, p *domain.Payment) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO payments(id, order_id, method, status, amount, txn_ref)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.OrderID, p.Method, p.Status, p.Amount, p.TxnRef)
	return err
}

func (r orderRepo) InsertTransaction(ctx context.Context, t *domain.Transaction) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO transactions(id, payment_id, order_id, status, amount, provider_code, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		t.ID, t.PaymentID, t.OrderID, t.Status, t.Amount, t.ProviderCode, t.CreatedAt)
	return err
}

func (r orderRepo) InsertShipment(ctx context.Context, s *domain.Shipment) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO shipments(id, order_id, carrier, tracking_number, notes, estimated_delivery)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		s.ID, s.OrderID, s.Carrier, s.TrackingNumber, s.Notes, s.EstimatedDelivery)
	return err
}

func (r orderRepo) InsertAddress(ctx context.Context, a *domain.Address) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO addresses(id, order_id, buyer_id, recipient, phone, line1, line2, city, region, postal_code, country)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.OrderID, a.BuyerID, a.Recipient, a.Phone, a.Line1, a.Line2, a.City, a.Region, a.PostalCode, a.Country)
	return err
}

const selectOrder = `
	SELECT id, order_number, checkout_id, buyer_id, COALESCE(seller_id::text, ''),
	       amount, status, payment_method, created_at, updated_at
	FROM orders WHERE id=$1`

func (r orderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.get(ctx, selectOrder, id)
}

func (r orderRepo) Lock(ctx context.Context, id string) (*domain.Order, error) {
	return r.get(ctx, selectOrder+` FOR UPDATE`, id)
}

func (r orderRepo) get(ctx context.Context, query, id string) (*domain.Order, error) {
	var o domain.Order
	err := r.tx.QueryRow(ctx, query, id).Scan(
		&o.ID, &o.Number, &o.CheckoutID, &o.BuyerID, &o.SellerID,
		&o.Amount, &o.Status, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt,
	)
	if noRows(err) {
		return nil, apperr.NotFound("order", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.tx.Query(ctx, `
		SELECT id, order_id, variant_id, product_id, COALESCE(category_id::text, ''), quantity, price
		FROM order_items WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.VariantID, &it.ProductID, &it.CategoryID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (r orderRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	ct, err := r.tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, id, status, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("order", id)
	}
	return nil
}

func (r orderRepo) MarkShipped(ctx context.Context, orderID, carrier, tracking string, at time.Time) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE shipments SET carrier=$2, tracking_number=$3, shipped_at=$4
		WHERE order_id=$1`, orderID, carrier, tracking, at)
	return err
}

func (r orderRepo) MarkDelivered(ctx context.Context, orderID string, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE shipments SET delivered_at=$2 WHERE order_id=$1`, orderID, at)
	return err
}
