package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("WALLET_HOLD_WINDOW", "")
	t.Setenv("PAYMENT_BYPASS", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("MIGRATIONS_PATH", "")
	t.Setenv("ORDER_NUMBER_RETRIES", "")
	t.Setenv("PAYMENT_GATEWAY_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, cfg.HoldWindow)
	assert.Equal(t, 5, cfg.OrderNumberRetries)
	assert.Equal(t, "file://migrations", cfg.MigrationsPath)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.PaymentBypass)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("WALLET_HOLD_WINDOW", "72h")
	t.Setenv("PAYMENT_BYPASS", "true")
	t.Setenv("APP_ENV", "staging")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 72*time.Hour, cfg.HoldWindow)
	assert.True(t, cfg.PaymentBypass)
}

func TestBypassRejectedInProduction(t *testing.T) {
	for _, env := range []string{"production", "Production", " PROD ", "prod"} {
		t.Run(env, func(t *testing.T) {
			t.Setenv("APP_ENV", env)
			t.Setenv("PAYMENT_BYPASS", "1")

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "PAYMENT_BYPASS")
		})
	}
}

func TestMalformedValues(t *testing.T) {
	t.Setenv("WALLET_HOLD_WINDOW", "a week")
	t.Setenv("OUTBOX_BATCH", "many")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WALLET_HOLD_WINDOW")
	assert.Contains(t, err.Error(), "OUTBOX_BATCH")
}

func TestGatewayNeedsCredentials(t *testing.T) {
	cfg := Config{OrderNumberRetries: 1, OutboxBatch: 1, PaymentGatewayURL: "https://pay.example.com"}
	assert.Error(t, cfg.Validate())

	cfg.PaymentMerchantID, cfg.PaymentSecret = "m", "s"
	assert.NoError(t, cfg.Validate())
}
