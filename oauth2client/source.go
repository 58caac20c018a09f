package oauth2client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Source performs one token acquisition against an authority.
// Implementations do not cache; TokenManager owns caching and renewal.
type Source interface {
	Token(ctx context.Context, scopes []string) (*oauth2.Token, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, scopes []string) (*oauth2.Token, error)

// Token calls f(ctx, scopes).
func (f SourceFunc) Token(ctx context.Context, scopes []string) (*oauth2.Token, error) {
	return f(ctx, scopes)
}

type clientCredentialsSource struct {
	creds      Credentials
	httpClient *http.Client
}

// NewClientCredentialsSource returns a Source that requests tokens from the
// authority's v2.0 token endpoint using the OAuth2 client-credentials grant.
// If httpClient is nil, the client found in the request context (oauth2.HTTPClient)
// or http.DefaultClient is used.
func NewClientCredentialsSource(creds Credentials, httpClient *http.Client) Source {
	return &clientCredentialsSource{creds: creds, httpClient: httpClient}
}

func (s *clientCredentialsSource) Token(ctx context.Context, scopes []string) (*oauth2.Token, error) {
	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}

	config := &clientcredentials.Config{
		ClientID:     s.creds.ClientID,
		ClientSecret: s.creds.ClientSecret,
		TokenURL:     s.creds.TokenURL(),
		Scopes:       scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	token, err := config.Token(ctx)
	if err != nil {
		return nil, s.authError(err)
	}
	return token, nil
}

func (s *clientCredentialsSource) authError(err error) *AuthenticationError {
	authErr := &AuthenticationError{Authority: s.creds.Authority, Unreachable: isUnreachable(err), Err: err}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response != nil {
			authErr.StatusCode = retrieveErr.Response.StatusCode
		}
		authErr.Code = retrieveErr.ErrorCode
		authErr.Description = retrieveErr.ErrorDescription
	}
	return authErr
}

// expiryFromJWT reads the exp claim of an access token without verifying it.
// Opaque tokens yield the zero time.
func expiryFromJWT(accessToken string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
