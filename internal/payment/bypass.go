package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

const EnvProduction = "production"

// IsProduction treats any spelling of production, including the short
// "prod", as production.
func IsProduction(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case EnvProduction, "prod":
		return true
	}
	return false
}

var ErrBypassInProduction = errors.New("payment bypass cannot be enabled in production")

// Bypass stands in for the external provider where no credentials exist.
// Checkouts complete immediately, as with cash on delivery.
type Bypass struct{}

func NewBypass(env string) (*Bypass, error) {
	if IsProduction(env) {
		return nil, ErrBypassInProduction
	}
	return &Bypass{}, nil
}

func (*Bypass) Method() domain.PaymentMethod { return domain.MethodExternal }

func (*Bypass) Initiate(_ context.Context, req InitRequest) (Initiation, error) {
	return Initiation{TxnRef: "BYPASS-" + req.TxnRef, Status: domain.PaymentCompleted}, nil
}

func (*Bypass) Verify(fields map[string]string) (Verification, error) {
	amount, _ := decimal.NewFromString(fields[FieldAmount])
	return Verification{TxnRef: fields[FieldTxnRef], Amount: amount, Code: "00", Outcome: OutcomeCompleted}, nil
}

func (*Bypass) sealed() {}
