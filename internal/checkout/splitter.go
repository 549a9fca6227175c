package checkout

import (
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

// Bucket is the slice of a cart that becomes one seller's order. An empty
// SellerID is the platform bucket.
type Bucket struct {
	SellerID string
	Items    []domain.CartItem
}

func (b Bucket) Amount() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Split groups cart items by seller, keeping buckets in the order their
// seller first appears in the cart.
func Split(items []domain.CartItem) []Bucket {
	idx := map[string]int{}
	var out []Bucket
	for _, it := range items {
		i, ok := idx[it.SellerID]
		if !ok {
			i = len(out)
			idx[it.SellerID] = i
			out = append(out, Bucket{SellerID: it.SellerID})
		}
		out[i].Items = append(out[i].Items, it)
	}
	return out
}
