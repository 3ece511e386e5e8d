package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/payoutsync")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("XERO_CLIENT_ID", "client-id")
	t.Setenv("XERO_CLIENT_SECRET", "client-secret")
	t.Setenv("XERO_CONTACT_ID", "contact-id")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setRequiredEnv(t)
	for _, key := range []string{"PORT", "ENVIRONMENT", "SHUTDOWN_TIMEOUT", "S3_REGION", "INVOICE_DUE_DAYS"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "eu-west-2", cfg.S3Region)
	assert.Equal(t, 7, cfg.InvoiceDueDays)
	assert.Equal(t, "5010", cfg.FeeAccountCode)
	assert.Equal(t, "5020", cfg.DiscountDeferralCode)
	assert.Equal(t, "5008", cfg.DiscountStandardCode)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("INVOICE_DUE_DAYS", "14")
	t.Setenv("FEE_ACCOUNT_CODE", "6010")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 14, cfg.InvoiceDueDays)
	assert.Equal(t, "6010", cfg.FeeAccountCode)
}

func TestLoadFromEnv_InvalidIntFallsBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "not-a-number")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoadFromEnv_MissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{name: "Missing database URL", unset: "DATABASE_URL"},
		{name: "Missing Stripe key", unset: "STRIPE_SECRET_KEY"},
		{name: "Missing Xero client id", unset: "XERO_CLIENT_ID"},
		{name: "Missing Xero contact", unset: "XERO_CONTACT_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.unset, "")

			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadFromEnv_ProductionRequirements(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET")

	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
	_, err = LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLERK_SECRET_KEY")

	t.Setenv("CLERK_SECRET_KEY", "clerk_123")
	_, err = LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET")

	t.Setenv("S3_BUCKET", "payoutsync-reports")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
}
