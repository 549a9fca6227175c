package payment

import (
	"context"

	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomePending   Outcome = "pending"
)

type InitRequest struct {
	TxnRef    string
	Amount    decimal.Decimal
	Currency  string
	OrderInfo string
	ClientIP  string
}

// Initiation tells the checkout what to do next. Deferred means the buyer
// must be redirected to PaymentURL and orders wait for the callback.
type Initiation struct {
	Deferred   bool
	PaymentURL string
	TxnRef     string
	Status     domain.PaymentStatus
}

type Verification struct {
	TxnRef  string
	Amount  decimal.Decimal
	Code    string
	Outcome Outcome
}

// Gateway is a closed set: CashOnDelivery, External and Bypass are its only
// implementations.
type Gateway interface {
	Method() domain.PaymentMethod
	Initiate(ctx context.Context, req InitRequest) (Initiation, error)
	Verify(fields map[string]string) (Verification, error)
	sealed()
}

// Provider field names of the signed-redirect protocol.
const (
	FieldMerchant     = "merchant_id"
	FieldTxnRef       = "txn_ref"
	FieldAmount       = "amount"
	FieldCurrency     = "currency"
	FieldOrderInfo    = "order_info"
	FieldReturnURL    = "return_url"
	FieldClientIP     = "client_ip"
	FieldCreatedAt    = "created_at"
	FieldResponseCode = "response_code"
	FieldSignature    = "signature"
)
