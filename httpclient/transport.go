package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// TokenProvider supplies bearer tokens. *oauth2client.TokenManager implements it.
type TokenProvider interface {
	GetTokenWithContext(ctx context.Context) (string, error)
}

// OAuth2Transport is an http.RoundTripper that adds an OAuth2 Bearer token to
// every outgoing request.
//
// It wraps an existing transport (typically http.DefaultTransport) and injects the
// Authorization header before each request. Responses, including 401s, are
// returned exactly as the base transport produced them.
type OAuth2Transport struct {
	// Base is the underlying HTTP transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// TokenManager provides OAuth2 access tokens.
	TokenManager TokenProvider
}

// RoundTrip implements http.RoundTripper interface.
// It fetches a valid OAuth2 token and sends a copy of req carrying
// "Authorization: Bearer <token>" through the base transport.
// If no token can be obtained, nothing is sent.
func (t *OAuth2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.TokenManager == nil {
		closeRequestBody(req)
		return nil, errors.New("httpclient: TokenManager is nil")
	}

	// Get a valid access token using the request context
	token, err := t.TokenManager.GetTokenWithContext(req.Context())
	if err != nil {
		closeRequestBody(req)
		return nil, fmt.Errorf("httpclient: failed to get token: %w", err)
	}

	// RoundTrippers must not modify the caller's request.
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", "Bearer "+token)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	return base.RoundTrip(reqClone)
}

// closeRequestBody honors the RoundTripper contract of closing the body on error.
func closeRequestBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}

// NewOAuth2Transport creates a new OAuth2Transport with the given token provider.
// The base transport defaults to http.DefaultTransport if not specified.
func NewOAuth2Transport(tp TokenProvider, base http.RoundTripper) *OAuth2Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &OAuth2Transport{
		Base:         base,
		TokenManager: tp,
	}
}
