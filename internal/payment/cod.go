package payment

import (
	"context"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
)

// CashOnDelivery settles physically on delivery; payment stays PENDING.
type CashOnDelivery struct{}

func (CashOnDelivery) Method() domain.PaymentMethod { return domain.MethodCashOnDelivery }

func (CashOnDelivery) Initiate(_ context.Context, req InitRequest) (Initiation, error) {
	return Initiation{TxnRef: req.TxnRef, Status: domain.PaymentPending}, nil
}

func (CashOnDelivery) Verify(map[string]string) (Verification, error) {
	return Verification{}, apperr.PaymentVerification("cash on delivery has no provider callback")
}

func (CashOnDelivery) sealed() {}
