package auth

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// TokenProvider exchanges ambient service credentials for a short-lived
// OIDC identity token scoped to an audience.
type TokenProvider interface {
	FetchIdentityToken(ctx context.Context, audience string) (string, error)
}

// GoogleTokenProvider obtains identity tokens from the metadata server or
// the service account configured in the environment.
type GoogleTokenProvider struct{}

// NewGoogleTokenProvider creates a new Google identity token provider
func NewGoogleTokenProvider() *GoogleTokenProvider {
	return &GoogleTokenProvider{}
}

// FetchIdentityToken returns a fresh identity token for the given audience.
// Tokens are deliberately not cached: an invocation lives for seconds and a
// stale token against IAP costs a full request round trip to discover.
func (p *GoogleTokenProvider) FetchIdentityToken(ctx context.Context, audience string) (string, error) {
	ts, err := idtoken.NewTokenSource(ctx, audience)
	if err != nil {
		return "", fmt.Errorf("failed to create identity token source: %w", err)
	}
	token, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("failed to fetch identity token: %w", err)
	}
	return token.AccessToken, nil
}
