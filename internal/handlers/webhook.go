package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/dkemsley/payoutsync-api/internal/models"
	"github.com/dkemsley/payoutsync-api/internal/stripe"
)

// Reconciler is the slice of the payout reconciler the handlers need
type Reconciler interface {
	Reconcile(ctx context.Context, event models.PayoutEvent) (*models.RunResult, error)
}

// WebhookHandler receives processor webhook deliveries
type WebhookHandler struct {
	webhookSecret string
	reconciler    Reconciler
	logger        zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookSecret string, reconciler Reconciler, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookSecret: webhookSecret,
		reconciler:    reconciler,
		logger:        logger,
	}
}

// HandleStripe verifies and dispatches one webhook delivery
// POST /v1/webhooks/stripe
func (h *WebhookHandler) HandleStripe(c fiber.Ctx) error {
	payload := c.Body()

	if err := stripe.VerifySignature(payload, c.Get("Stripe-Signature"), h.webhookSecret, time.Now()); err != nil {
		h.logger.Warn().Err(err).Msg("rejected webhook delivery")
		return c.Status(fiber.StatusBadRequest).SendString("Invalid signature")
	}

	event, err := stripe.ParseEvent(payload)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid payload")
	}

	switch event.Type {
	case stripe.EventPayoutPaid:
		payout := event.Payout
		h.logger.Info().Str("payout_id", payout.ID).Msg("payout paid, starting reconciliation")

		// Acknowledge the delivery immediately; the run proceeds in the
		// background and lands in the run ledger either way.
		go func() {
			if _, err := h.reconciler.Reconcile(context.Background(), payout); err != nil {
				h.logger.Error().Err(err).Str("payout_id", payout.ID).Msg("reconciliation run failed")
			}
		}()

	case stripe.EventPayoutFailed:
		h.logger.Warn().Str("payout_id", event.Payout.ID).Msg("payout failed, nothing to reconcile")

	default:
		h.logger.Debug().Str("type", event.Type).Msg("ignoring webhook event type")
	}

	return c.SendStatus(fiber.StatusOK)
}
