package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkemsley/payoutsync-api/internal/models"
	"github.com/dkemsley/payoutsync-api/internal/utils"
)

// MockReconciler is a mock implementation of Reconciler for testing
type MockReconciler struct {
	ReconcileFunc func(ctx context.Context, event models.PayoutEvent) (*models.RunResult, error)
	calls         chan models.PayoutEvent
}

func NewMockReconciler() *MockReconciler {
	return &MockReconciler{calls: make(chan models.PayoutEvent, 1)}
}

func (m *MockReconciler) Reconcile(ctx context.Context, event models.PayoutEvent) (*models.RunResult, error) {
	m.calls <- event
	if m.ReconcileFunc != nil {
		return m.ReconcileFunc(ctx, event)
	}
	return &models.RunResult{PayoutID: event.ID, Status: models.RunDone}, nil
}

func signWebhook(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func webhookApp(reconciler Reconciler, secret string) *fiber.App {
	handler := NewWebhookHandler(secret, reconciler, zerolog.Nop())
	app := fiber.New()
	app.Post("/webhooks/stripe", handler.HandleStripe)
	return app
}

func TestHandleStripe_PayoutPaid(t *testing.T) {
	reconciler := NewMockReconciler()
	app := webhookApp(reconciler, "whsec_test")

	payload := []byte(`{"type": "payout.paid", "data": {"object": {"id": "po_123", "arrival_date": 1767225600}}}`)
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signWebhook(payload, "whsec_test"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// The run starts in the background after the delivery is acknowledged.
	select {
	case event := <-reconciler.calls:
		assert.Equal(t, "po_123", event.ID)
		assert.Equal(t, int64(1767225600), event.SettlementDate)
	case <-time.After(time.Second):
		t.Fatal("reconciler was not invoked")
	}
}

func TestHandleStripe_InvalidSignature(t *testing.T) {
	reconciler := NewMockReconciler()
	app := webhookApp(reconciler, "whsec_test")

	payload := []byte(`{"type": "payout.paid", "data": {"object": {"id": "po_123"}}}`)
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signWebhook(payload, "whsec_other"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, reconciler.calls)
}

func TestHandleStripe_IgnoredEventType(t *testing.T) {
	reconciler := NewMockReconciler()
	app := webhookApp(reconciler, "whsec_test")

	payload := []byte(`{"type": "charge.succeeded", "data": {"object": {"id": "ch_1"}}}`)
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signWebhook(payload, "whsec_test"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, reconciler.calls)
}

func TestTriggerRun_Conflict(t *testing.T) {
	reconciler := NewMockReconciler()
	reconciler.ReconcileFunc = func(_ context.Context, event models.PayoutEvent) (*models.RunResult, error) {
		return &models.RunResult{PayoutID: event.ID, Status: models.RunDone, Skipped: true}, nil
	}

	handler := NewReconcileHandler(reconciler, nil, nil, zerolog.Nop())
	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler})
	app.Post("/reconcile/:payoutID", handler.TriggerRun)

	req := httptest.NewRequest("POST", "/reconcile/po_123", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	<-reconciler.calls
}

func TestTriggerRun_Success(t *testing.T) {
	reconciler := NewMockReconciler()

	handler := NewReconcileHandler(reconciler, nil, nil, zerolog.Nop())
	app := fiber.New(fiber.Config{ErrorHandler: utils.ErrorHandler})
	app.Post("/reconcile/:payoutID", handler.TriggerRun)

	req := httptest.NewRequest("POST", "/reconcile/po_123", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	event := <-reconciler.calls
	assert.Equal(t, "po_123", event.ID)
	assert.NotZero(t, event.SettlementDate)
}
