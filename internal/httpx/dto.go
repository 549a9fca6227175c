package httpx

import (
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
)

type orderItemResp struct {
	VariantID  string `json:"variant_id"`
	ProductID  string `json:"product_id"`
	CategoryID string `json:"category_id,omitempty"`
	Quantity   int    `json:"quantity"`
	Price      string `json:"price"`
}

type orderResp struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	CheckoutID    string          `json:"checkout_id"`
	BuyerID       string          `json:"buyer_id"`
	SellerID      string          `json:"seller_id,omitempty"`
	Amount        string          `json:"amount"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []orderItemResp `json:"items,omitempty"`
}

func toOrderResp(o domain.Order) orderResp {
	out := orderResp{
		ID:            o.ID,
		OrderNumber:   o.Number,
		CheckoutID:    o.CheckoutID,
		BuyerID:       o.BuyerID,
		SellerID:      o.SellerID,
		Amount:        o.Amount.StringFixed(2),
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, orderItemResp{
			VariantID:  it.VariantID,
			ProductID:  it.ProductID,
			CategoryID: it.CategoryID,
			Quantity:   it.Quantity,
			Price:      it.Price.StringFixed(2),
		})
	}
	return out
}

func toOrderResps(orders []domain.Order) []orderResp {
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResp(o))
	}
	return out
}

type walletResp struct {
	SellerID         string    `json:"seller_id"`
	Balance          string    `json:"balance"`
	AvailableBalance string    `json:"available_balance"`
	PendingBalance   string    `json:"pending_balance"`
	Currency         string    `json:"currency"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toWalletResp(w domain.Wallet) walletResp {
	return walletResp{
		SellerID:         w.SellerID,
		Balance:          w.Balance.StringFixed(2),
		AvailableBalance: w.AvailableBalance.StringFixed(2),
		PendingBalance:   w.PendingBalance.StringFixed(2),
		Currency:         w.Currency,
		UpdatedAt:        w.UpdatedAt,
	}
}

type walletTxResp struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	Status           string     `json:"status"`
	Amount           string     `json:"amount"`
	GrossAmount      string     `json:"gross_amount,omitempty"`
	CommissionRate   string     `json:"commission_rate,omitempty"`
	CommissionAmount string     `json:"commission_amount,omitempty"`
	OrderID          string     `json:"order_id,omitempty"`
	WithdrawalID     string     `json:"withdrawal_id,omitempty"`
	HoldUntil        *time.Time `json:"hold_until,omitempty"`
	Description      string     `json:"description,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toWalletTxResp(t domain.WalletTransaction) walletTxResp {
	out := walletTxResp{
		ID:           t.ID,
		Type:         string(t.Type),
		Status:       string(t.Status),
		Amount:       t.Amount.StringFixed(2),
		OrderID:      t.OrderID,
		WithdrawalID: t.WithdrawalID,
		HoldUntil:    t.HoldUntil,
		Description:  t.Description,
		CreatedAt:    t.CreatedAt,
	}
	if t.Type == domain.WalletCredit {
		out.GrossAmount = t.GrossAmount.StringFixed(2)
		out.CommissionRate = t.CommissionRate.String()
		out.CommissionAmount = t.CommissionAmount.StringFixed(2)
	}
	return out
}

type withdrawalResp struct {
	ID            string            `json:"id"`
	SellerID      string            `json:"seller_id"`
	Amount        string            `json:"amount"`
	Method        string            `json:"method"`
	Details       map[string]string `json:"details,omitempty"`
	Status        string            `json:"status"`
	FailureReason string            `json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	ProcessedAt   *time.Time        `json:"processed_at,omitempty"`
}

func toWithdrawalResp(w domain.Withdrawal) withdrawalResp {
	return withdrawalResp{
		ID:            w.ID,
		SellerID:      w.SellerID,
		Amount:        w.Amount.StringFixed(2),
		Method:        string(w.Method),
		Details:       w.Details,
		Status:        string(w.Status),
		FailureReason: w.FailureReason,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
		ProcessedAt:   w.ProcessedAt,
	}
}

type pageResp[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}
