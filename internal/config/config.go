package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	Port            int
	Environment     string
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string

	// Xero
	XeroClientID     string
	XeroClientSecret string
	XeroRedirectURI  string
	XeroContactID    string // contact the draft invoices are raised against

	// Clerk Auth (admin routes)
	ClerkSecretKey string

	// S3 report archive
	S3Bucket    string
	S3Region    string
	AWSEndpoint string // For LocalStack in development

	// Reconciliation
	InvoiceDueDays       int    // due date offset applied to draft invoices
	FeeAccountCode       string // processor fee line
	DiscountDeferralCode string // discount lines mentioning "deferral"
	DiscountStandardCode string // all other discount lines
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:                 getEnvInt("PORT", 8080),
		Environment:          getEnv("ENVIRONMENT", "development"),
		ShutdownTimeout:      getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:  getEnv("STRIPE_WEBHOOK_SECRET", ""),
		XeroClientID:         getEnv("XERO_CLIENT_ID", ""),
		XeroClientSecret:     getEnv("XERO_CLIENT_SECRET", ""),
		XeroRedirectURI:      getEnv("XERO_REDIRECT_URI", ""),
		XeroContactID:        getEnv("XERO_CONTACT_ID", ""),
		ClerkSecretKey:       getEnv("CLERK_SECRET_KEY", ""),
		S3Bucket:             getEnv("S3_BUCKET", ""),
		S3Region:             getEnv("S3_REGION", "eu-west-2"),
		AWSEndpoint:          getEnv("AWS_ENDPOINT", ""),
		InvoiceDueDays:       getEnvInt("INVOICE_DUE_DAYS", 7),
		FeeAccountCode:       getEnv("FEE_ACCOUNT_CODE", "5010"),
		DiscountDeferralCode: getEnv("DISCOUNT_DEFERRAL_CODE", "5020"),
		DiscountStandardCode: getEnv("DISCOUNT_STANDARD_CODE", "5008"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.StripeSecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if cfg.XeroClientID == "" || cfg.XeroClientSecret == "" {
		return nil, fmt.Errorf("XERO_CLIENT_ID and XERO_CLIENT_SECRET are required")
	}
	if cfg.XeroContactID == "" {
		return nil, fmt.Errorf("XERO_CONTACT_ID is required")
	}
	if cfg.StripeWebhookSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
	}
	if cfg.ClerkSecretKey == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("CLERK_SECRET_KEY is required in production")
	}
	if cfg.S3Bucket == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("S3_BUCKET is required in production")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
