package oauth2client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/confidential"
	msalerrors "github.com/AzureAD/microsoft-authentication-library-for-go/apps/errors"
	"golang.org/x/oauth2"
)

type msalSource struct {
	client    confidential.Client
	authority string
}

// NewMSALSource returns a Source backed by an MSAL confidential client that
// authenticates with the client secret from creds.
//
// Options are passed to confidential.New, e.g. confidential.WithHTTPClient.
// The authority is not contacted until the first acquisition.
func NewMSALSource(creds Credentials, opts ...confidential.Option) (Source, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	cred, err := confidential.NewCredFromSecret(creds.ClientSecret)
	if err != nil {
		return nil, &ConfigurationError{Fields: []string{"client secret"}, Reason: err.Error()}
	}

	client, err := confidential.New(creds.AuthorityBase(), creds.ClientID, cred, opts...)
	if err != nil {
		return nil, fmt.Errorf("oauth2: create MSAL client: %w", err)
	}

	return &msalSource{client: client, authority: creds.Authority}, nil
}

func (s *msalSource) Token(ctx context.Context, scopes []string) (*oauth2.Token, error) {
	result, err := s.client.AcquireTokenByCredential(ctx, scopes)
	if err != nil {
		return nil, s.authError(err)
	}

	return &oauth2.Token{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		Expiry:      result.ExpiresOn,
	}, nil
}

// authError maps an MSAL failure. MSAL embeds the authority's error body in the
// CallErr message; the response body itself may already be drained.
func (s *msalSource) authError(err error) *AuthenticationError {
	authErr := &AuthenticationError{Authority: s.authority, Unreachable: isUnreachable(err), Err: err}

	var callErr msalerrors.CallErr
	if !errors.As(err, &callErr) {
		return authErr
	}
	if callErr.Resp != nil {
		authErr.StatusCode = callErr.Resp.StatusCode
		authErr.Unreachable = false
		if callErr.Resp.Body != nil {
			data, readErr := io.ReadAll(io.LimitReader(callErr.Resp.Body, 1<<20))
			if readErr == nil {
				authErr.Code, authErr.Description = decodeOAuthError(data)
			}
		}
	}
	if authErr.Code == "" && callErr.Err != nil {
		authErr.Code, authErr.Description = decodeOAuthError([]byte(callErr.Err.Error()))
	}
	return authErr
}
