package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/dkemsley/payoutsync-api/internal/utils"
	"github.com/dkemsley/payoutsync-api/internal/xero"
)

const stateCookie = "xero_oauth_state"

// ConnectHandler drives the one-time ledger authorization flow: redirect to
// the identity service, then exchange the callback code and persist the
// token with the organisation's tenant id.
type ConnectHandler struct {
	auth   *xero.Authenticator
	client *xero.Client
	logger zerolog.Logger
}

// NewConnectHandler creates a new connect handler
func NewConnectHandler(auth *xero.Authenticator, client *xero.Client, logger zerolog.Logger) *ConnectHandler {
	return &ConnectHandler{auth: auth, client: client, logger: logger}
}

// Connect starts the authorization flow
// GET /v1/xero/connect
func (h *ConnectHandler) Connect(c fiber.Ctx) error {
	state, err := randomState()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "failed to generate state")
	}

	c.Cookie(&fiber.Cookie{
		Name:     stateCookie,
		Value:    state,
		HTTPOnly: true,
		MaxAge:   600,
	})

	return c.Redirect().To(h.auth.AuthCodeURL(state))
}

// Callback completes the authorization flow
// GET /v1/xero/callback?code=...&state=...
func (h *ConnectHandler) Callback(c fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "no authorization code found")
	}

	// Check given state against the previously stored one to mitigate CSRF
	state := c.Query("state")
	if state == "" || state != c.Cookies(stateCookie) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "invalid state")
	}
	c.ClearCookie(stateCookie)

	token, err := h.auth.ExchangeCode(c.Context(), code)
	if err != nil {
		h.logger.Error().Err(err).Msg("authorization code exchange failed")
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "authorization failed")
	}

	conns, err := h.client.GetConnections(c.Context(), token)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to resolve connected organisation")
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "failed to resolve organisation")
	}
	if len(conns) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadGateway, "token is not authorised for any organisation")
	}

	if err := h.auth.Save(c.Context(), token, conns[0].TenantID); err != nil {
		h.logger.Error().Err(err).Msg("failed to persist token")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "failed to persist token")
	}

	h.logger.Info().Str("tenant", conns[0].TenantName).Msg("ledger connection established")
	return utils.SuccessResponse(c, fiber.Map{
		"message": fmt.Sprintf("connected to %s", conns[0].TenantName),
	})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
