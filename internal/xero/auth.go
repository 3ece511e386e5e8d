// Package xero is the accounting-platform adapter: the OAuth2 token flow and
// the handful of Accounting API calls the reconciler needs. The engine never
// sees Xero's wire format; translation happens entirely in this package.
package xero

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// OAuth2 endpoints for the Xero identity service
var oauthEndpoint = oauth2.Endpoint{
	AuthURL:  "https://login.xero.com/identity/connect/authorize",
	TokenURL: "https://identity.xero.com/connect/token",
}

// Scopes requested during the connect flow. offline_access is what makes
// refresh tokens available for unattended runs.
var oauthScopes = []string{
	"offline_access",
	"accounting.transactions",
	"accounting.settings.read",
}

// ErrNotConnected is returned when no token has been stored yet; the
// operator must complete the connect flow first
var ErrNotConnected = errors.New("xero: no stored token, complete the connect flow first")

// StoredToken is the persisted OAuth2 state for the single connected
// organisation
type StoredToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	TenantID     string
}

// TokenStore persists OAuth2 tokens across process restarts
type TokenStore interface {
	GetToken(ctx context.Context) (*StoredToken, error)
	SaveToken(ctx context.Context, token StoredToken) error
}

// Authenticator owns the OAuth2 configuration and hands out token sources
// that persist refreshed tokens back to the store
type Authenticator struct {
	config *oauth2.Config
	store  TokenStore
}

// NewAuthenticator creates an authenticator for the given client credentials
func NewAuthenticator(clientID, clientSecret, redirectURI string, store TokenStore) *Authenticator {
	return &Authenticator{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint:     oauthEndpoint,
			Scopes:       oauthScopes,
		},
		store: store,
	}
}

// AuthCodeURL builds the authorize redirect for the connect flow. state must
// be checked on callback to block CSRF.
func (a *Authenticator) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeCode trades a code for a token without persisting, so the caller
// can first resolve the tenant id with the fresh token
func (a *Authenticator) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return token, nil
}

// Save persists a token and tenant id pair
func (a *Authenticator) Save(ctx context.Context, token *oauth2.Token, tenantID string) error {
	return a.store.SaveToken(ctx, StoredToken{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
		TenantID:     tenantID,
	})
}

// TokenSource returns a source backed by the stored token that refreshes
// through the identity service and writes refreshed tokens back to the
// store. This is the only retrying network path in the service.
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, string, error) {
	stored, err := a.store.GetToken(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("loading stored token: %w", err)
	}
	if stored == nil {
		return nil, "", ErrNotConnected
	}

	seed := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		Expiry:       stored.Expiry,
	}

	src := &persistingTokenSource{
		inner:    a.config.TokenSource(ctx, seed),
		store:    a.store,
		tenantID: stored.TenantID,
		last:     seed.AccessToken,
		ctx:      ctx,
	}
	return src, stored.TenantID, nil
}

// persistingTokenSource saves tokens to the store whenever the inner source
// rotates them, so a refresh survives process restarts
type persistingTokenSource struct {
	inner    oauth2.TokenSource
	store    TokenStore
	tenantID string
	ctx      context.Context

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.inner.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken != s.last {
		if err := s.store.SaveToken(s.ctx, StoredToken{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			Expiry:       token.Expiry,
			TenantID:     s.tenantID,
		}); err != nil {
			return nil, fmt.Errorf("persisting refreshed token: %w", err)
		}
		s.last = token.AccessToken
	}
	return token, nil
}
