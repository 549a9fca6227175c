package postgres

import (
	"context"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/jackc/pgx/v5"
)

type cartRepo struct{ tx pgx.Tx }

func (r cartRepo) LockOpenByBuyer(ctx context.Context, buyerID string) (*domain.Cart, error) {
	var c domain.Cart
	err := r.tx.QueryRow(ctx, `
		SELECT id, buyer_id, status FROM carts
		WHERE buyer_id=$1 AND status='OPEN'
		FOR UPDATE`, buyerID).Scan(&c.ID, &c.BuyerID, &c.Status)
	if noRows(err) {
		return nil, apperr.NotFound("cart", buyerID)
	}
	if err != nil {
		return nil, err
	}
	return &c, r.loadItems(ctx, &c)
}

func (r cartRepo) LockByID(ctx context.Context, cartID string) (*domain.Cart, error) {
	var c domain.Cart
	err := r.tx.QueryRow(ctx, `SELECT id, buyer_id, status FROM carts WHERE id=$1 FOR UPDATE`, cartID).
		Scan(&c.ID, &c.BuyerID, &c.Status)
	if noRows(err) {
		return nil, apperr.NotFound("cart", cartID)
	}
	if err != nil {
		return nil, err
	}
	return &c, r.loadItems(ctx, &c)
}

// seller and category come from the catalog at read time; price is the cart snapshot.
func (r cartRepo) loadItems(ctx context.Context, c *domain.Cart) error {
	rows, err := r.tx.Query(ctx, `
		SELECT ci.id, ci.variant_id, v.product_id,
		       COALESCE(p.seller_id::text, ''), COALESCE(p.category_id::text, ''),
		       ci.quantity, ci.price
		FROM cart_items ci
		JOIN product_variants v ON v.id = ci.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE ci.cart_id=$1
		ORDER BY ci.created_at, ci.id`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.VariantID, &it.ProductID, &it.SellerID, &it.CategoryID, &it.Quantity, &it.Price); err != nil {
			return err
		}
		c.Items = append(c.Items, it)
	}
	return rows.Err()
}

func (r cartRepo) Convert(ctx context.Context, cartID string) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `UPDATE carts SET status='CONVERTED', updated_at=now() WHERE id=$1`, cartID)
	return err
}
