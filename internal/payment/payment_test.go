package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/apperr"
	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time { return time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC) }

func testExternal(t *testing.T) *External {
	t.Helper()
	g, err := NewExternal(ExternalConfig{
		GatewayURL: "https://pay.example.com/checkout",
		MerchantID: "M-001",
		Secret:     "s3cret",
		ReturnURL:  "https://shop.example.com/api/v1/payments/callback",
	}, fixedNow)
	require.NoError(t, err)
	return g
}

func TestSignMatchesManualDigest(t *testing.T) {
	fields := map[string]string{"b": "2", "a": "1", "signature": "ignored", "c": "x y"}
	sum := sha256.Sum256([]byte("a=1&b=2&c=x ys3cret"))
	want := strings.ToUpper(hex.EncodeToString(sum[:]))

	assert.Equal(t, want, Sign(fields, "s3cret"))
}

func TestSignIgnoresSignatureField(t *testing.T) {
	a := map[string]string{"amount": "10.00", "txn_ref": "T1"}
	b := map[string]string{"amount": "10.00", "txn_ref": "T1", "signature": "whatever"}
	assert.Equal(t, Sign(a, "k"), Sign(b, "k"))
	assert.NotEqual(t, Sign(a, "k"), Sign(a, "other"))
}

func TestClassify(t *testing.T) {
	cases := map[string]Outcome{
		"00": OutcomeCompleted,
		"07": OutcomeCompleted,
		"05": OutcomeFailed,
		"51": OutcomeFailed,
		"14": OutcomeFailed,
		"68": OutcomeFailed,
		"24": OutcomeFailed,
		"99": OutcomePending,
		"":   OutcomePending,
	}
	for code, want := range cases {
		assert.Equalf(t, want, Classify(code), "code %q", code)
	}
}

func TestExternalInitiateBuildsSignedRedirect(t *testing.T) {
	g := testExternal(t)
	init, err := g.Initiate(context.Background(), InitRequest{
		TxnRef:    "TXN-1",
		Amount:    decimal.RequireFromString("125.5"),
		Currency:  "USD",
		OrderInfo: "checkout TXN-1",
	})
	require.NoError(t, err)
	assert.True(t, init.Deferred)
	assert.Equal(t, "TXN-1", init.TxnRef)
	assert.Equal(t, domain.PaymentPending, init.Status)

	u, err := url.Parse(init.PaymentURL)
	require.NoError(t, err)
	assert.Equal(t, "pay.example.com", u.Host)

	q := u.Query()
	assert.Equal(t, "125.50", q.Get(FieldAmount))
	assert.Equal(t, "20260301103000", q.Get(FieldCreatedAt))

	fields := map[string]string{}
	for k := range q {
		fields[k] = q.Get(k)
	}
	assert.True(t, ValidSignature(fields, "s3cret"))
}

func TestExternalInitiateRejectsZeroAmount(t *testing.T) {
	g := testExternal(t)
	_, err := g.Initiate(context.Background(), InitRequest{TxnRef: "T", Amount: decimal.Zero})
	assert.ErrorIs(t, err, apperr.ErrPaymentInitiation)
}

func signedCallback(code string) map[string]string {
	f := map[string]string{
		FieldMerchant:     "M-001",
		FieldTxnRef:       "TXN-1",
		FieldAmount:       "125.50",
		FieldResponseCode: code,
	}
	f[FieldSignature] = Sign(f, "s3cret")
	return f
}

func TestExternalVerify(t *testing.T) {
	g := testExternal(t)

	v, err := g.Verify(signedCallback("00"))
	require.NoError(t, err)
	assert.Equal(t, "TXN-1", v.TxnRef)
	assert.True(t, v.Amount.Equal(decimal.RequireFromString("125.5")))
	assert.Equal(t, OutcomeCompleted, v.Outcome)

	v, err = g.Verify(signedCallback("51"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, v.Outcome)

	lower := signedCallback("00")
	lower[FieldSignature] = strings.ToLower(lower[FieldSignature])
	_, err = g.Verify(lower)
	assert.NoError(t, err)
}

func TestExternalVerifyRejectsTampering(t *testing.T) {
	g := testExternal(t)

	f := signedCallback("00")
	f[FieldAmount] = "1.00"
	_, err := g.Verify(f)
	assert.ErrorIs(t, err, apperr.ErrPaymentVerification)

	f = signedCallback("00")
	delete(f, FieldSignature)
	_, err = g.Verify(f)
	assert.ErrorIs(t, err, apperr.ErrPaymentVerification)
}

func TestCashOnDelivery(t *testing.T) {
	init, err := CashOnDelivery{}.Initiate(context.Background(), InitRequest{TxnRef: "X"})
	require.NoError(t, err)
	assert.False(t, init.Deferred)
	assert.Equal(t, domain.PaymentPending, init.Status)

	_, err = CashOnDelivery{}.Verify(nil)
	assert.ErrorIs(t, err, apperr.ErrPaymentVerification)
}

func TestBypassNeverInProduction(t *testing.T) {
	_, err := NewBypass(EnvProduction)
	assert.ErrorIs(t, err, ErrBypassInProduction)

	_, err = NewRegistry(Config{Environment: EnvProduction, Bypass: true}, nil)
	assert.ErrorIs(t, err, ErrBypassInProduction)

	for _, env := range []string{"Production", "PRODUCTION", "prod", " production\n"} {
		_, err = NewBypass(env)
		assert.ErrorIsf(t, err, ErrBypassInProduction, "env %q", env)
	}
	assert.False(t, IsProduction("staging"))
	assert.False(t, IsProduction("preprod"))
}

func TestBypassCompletesImmediately(t *testing.T) {
	reg, err := NewRegistry(Config{Environment: "staging", Bypass: true}, nil)
	require.NoError(t, err)
	assert.True(t, reg.BypassEnabled())

	g, err := reg.Resolve(domain.MethodExternal)
	require.NoError(t, err)
	init, err := g.Initiate(context.Background(), InitRequest{TxnRef: "T9", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.False(t, init.Deferred)
	assert.Equal(t, domain.PaymentCompleted, init.Status)
	assert.Equal(t, "BYPASS-T9", init.TxnRef)

	v, err := g.Verify(map[string]string{FieldTxnRef: "T9", FieldAmount: "5"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, v.Outcome)
}

func TestRegistryResolve(t *testing.T) {
	reg, err := NewRegistry(Config{Environment: "development"}, nil)
	require.NoError(t, err)

	g, err := reg.Resolve(domain.MethodCashOnDelivery)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodCashOnDelivery, g.Method())

	_, err = reg.Resolve(domain.MethodExternal)
	assert.ErrorIs(t, err, apperr.ErrValidation, "external gateway not configured")

	_, err = reg.Resolve("BITCOIN")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.False(t, reg.BypassEnabled())
}
