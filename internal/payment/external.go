package payment

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

type ExternalConfig struct {
	GatewayURL string
	MerchantID string
	Secret     string
	ReturnURL  string
}

// External redirects the buyer to a hosted payment page with a signed query
// and settles on the provider's signed callback.
type External struct {
	cfg ExternalConfig
	now func() time.Time
}

func NewExternal(cfg ExternalConfig, now func() time.Time) (*External, error) {
	if cfg.GatewayURL == "" || cfg.MerchantID == "" || cfg.Secret == "" {
		return nil, errors.New("external gateway needs url, merchant id and secret")
	}
	if _, err := url.Parse(cfg.GatewayURL); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &External{cfg: cfg, now: now}, nil
}

func (g *External) Method() domain.PaymentMethod { return domain.MethodExternal }

func (g *External) Initiate(_ context.Context, req InitRequest) (Initiation, error) {
	if req.TxnRef == "" || !req.Amount.IsPositive() {
		return Initiation{}, apperr.PaymentInitiation(errors.New("transaction reference and positive amount required"))
	}
	fields := map[string]string{
		FieldMerchant:  g.cfg.MerchantID,
		FieldTxnRef:    req.TxnRef,
		FieldAmount:    req.Amount.StringFixed(2),
		FieldCurrency:  req.Currency,
		FieldOrderInfo: req.OrderInfo,
		FieldReturnURL: g.cfg.ReturnURL,
		FieldCreatedAt: g.now().UTC().Format("20060102150405"),
	}
	if req.ClientIP != "" {
		fields[FieldClientIP] = req.ClientIP
	}
	fields[FieldSignature] = Sign(fields, g.cfg.Secret)

	u, err := url.Parse(g.cfg.GatewayURL)
	if err != nil {
		return Initiation{}, apperr.PaymentInitiation(err)
	}
	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	return Initiation{
		Deferred:   true,
		PaymentURL: u.String(),
		TxnRef:     req.TxnRef,
		Status:     domain.PaymentPending,
	}, nil
}

// Verify checks the callback signature before reading anything else.
func (g *External) Verify(fields map[string]string) (Verification, error) {
	if !ValidSignature(fields, g.cfg.Secret) {
		return Verification{}, apperr.PaymentVerification("signature mismatch")
	}
	if m := fields[FieldMerchant]; m != "" && m != g.cfg.MerchantID {
		return Verification{}, apperr.PaymentVerification("unexpected merchant %q", m)
	}
	ref := fields[FieldTxnRef]
	if ref == "" {
		return Verification{}, apperr.PaymentVerification("missing %s", FieldTxnRef)
	}
	amount, err := decimal.NewFromString(fields[FieldAmount])
	if err != nil {
		return Verification{}, apperr.PaymentVerification("malformed %s", FieldAmount)
	}
	code := fields[FieldResponseCode]
	return Verification{TxnRef: ref, Amount: amount, Code: code, Outcome: Classify(code)}, nil
}

func (g *External) sealed() {}
