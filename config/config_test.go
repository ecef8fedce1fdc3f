package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnv_Defaults(t *testing.T) {
	cfg := LoadEnv()

	assert.Equal(t, "INR", cfg.Billing.Currency)
	assert.Equal(t, 900, cfg.Billing.ReservationTTL)
	assert.False(t, cfg.Billing.OversellFallback)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("SUPPLIER_STATE", "Maharashtra")
	t.Setenv("OVERSELL_FALLBACK", "true")
	t.Setenv("ALLOW_NEGATIVE_STOCK", "not-a-bool")
	t.Setenv("RESERVATION_TTL_SECONDS", "0")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg := LoadEnv()

	assert.Equal(t, "Maharashtra", cfg.Billing.SupplierState)
	assert.True(t, cfg.Billing.OversellFallback)
	assert.False(t, cfg.Billing.AllowNegativeStock, "unparsable bool falls back to default")
	assert.Equal(t, 0, cfg.Billing.ReservationTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}
