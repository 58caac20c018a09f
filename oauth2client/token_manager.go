package oauth2client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// DefaultExpiryLeeway is how long before its stated expiry a token is renewed.
// It absorbs clock skew and the latency of requests already in flight.
const DefaultExpiryLeeway = time.Minute

const acquireKey = "token"

// Logger is an interface for optional logging in TokenManager.
// Implementations can log token acquisition events if desired.
type Logger interface {
	Printf(format string, args ...any)
}

// TokenManager produces bearer tokens for a fixed scope set, caching each token
// until shortly before it expires. It is safe for concurrent access.
type TokenManager struct {
	creds        Credentials
	source       Source
	httpClient   *http.Client
	token        *oauth2.Token
	mu           sync.RWMutex
	group        singleflight.Group
	ctx          context.Context // fallback context for GetToken
	expiryLeeway time.Duration
	now          func() time.Time
	logger       Logger // optional logger
}

// Option is a functional option for configuring TokenManager.
type Option func(*TokenManager)

// WithLogger sets a custom logger for token acquisition events.
// If not set, no logging will occur.
func WithLogger(logger Logger) Option {
	return func(tm *TokenManager) {
		tm.logger = logger
	}
}

// WithLoggingEnabled enables logging using the default Go log package.
// This is a convenience option that sets the logger to log.Default().
func WithLoggingEnabled() Option {
	return func(tm *TokenManager) {
		tm.logger = log.Default()
	}
}

// WithSource replaces the default client-credentials source.
func WithSource(source Source) Option {
	return func(tm *TokenManager) {
		tm.source = source
	}
}

// WithHTTPClient sets the client used by the default source to reach the authority.
func WithHTTPClient(client *http.Client) Option {
	return func(tm *TokenManager) {
		tm.httpClient = client
	}
}

// WithExpiryLeeway overrides DefaultExpiryLeeway. Negative values are treated as zero.
func WithExpiryLeeway(d time.Duration) Option {
	return func(tm *TokenManager) {
		if d < 0 {
			d = 0
		}
		tm.expiryLeeway = d
	}
}

// WithClock sets the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(tm *TokenManager) {
		if now != nil {
			tm.now = now
		}
	}
}

// NewTokenManager creates a token manager for the given credentials.
//
// Parameters:
//   - ctx: Context whose values are used by GetToken (cancellation is ignored)
//   - creds: Application credentials; every field must be set
//   - opts: Optional configuration options
//
// Returns a *ConfigurationError if creds are incomplete. No network I/O happens here.
func NewTokenManager(ctx context.Context, creds Credentials, opts ...Option) (*TokenManager, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	// Keep token requests independent from caller cancellations while preserving values.
	if ctx == nil {
		ctx = context.Background()
	} else {
		ctx = context.WithoutCancel(ctx)
	}

	creds.Scopes = nonEmpty(creds.Scopes)

	tm := &TokenManager{
		creds:        creds,
		ctx:          ctx,
		expiryLeeway: DefaultExpiryLeeway,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(tm)
	}

	if tm.source == nil {
		tm.source = NewClientCredentialsSource(creds, tm.httpClient)
	}

	return tm, nil
}

// GetTokenWithContext returns a valid access token, acquiring a new one if necessary.
//
// At most one acquisition is in flight per TokenManager; concurrent callers wait for
// and share its result. If ctx ends first, the caller gets ctx.Err() while the
// acquisition runs to completion and caches its token for subsequent callers.
//
// Acquisition failures are returned as *AuthenticationError and nothing is cached.
func (tm *TokenManager) GetTokenWithContext(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// Fast path: check if we have a valid token without write lock
	if token, ok := tm.cachedToken(); ok {
		return token, nil
	}

	acquireCtx := context.WithoutCancel(ctx)
	ch := tm.group.DoChan(acquireKey, func() (any, error) {
		// Another flight may have finished between the fast path and here.
		if token, ok := tm.cachedToken(); ok {
			return token, nil
		}
		return tm.acquire(acquireCtx)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("oauth2: waiting for token: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// GetToken returns a valid access token using the context given to NewTokenManager.
//
// Deprecated: Use GetTokenWithContext instead to properly handle context cancellation and deadlines.
func (tm *TokenManager) GetToken() (string, error) {
	return tm.GetTokenWithContext(tm.ctx)
}

// Invalidate discards the cached token so the next call acquires a new one.
func (tm *TokenManager) Invalidate() {
	tm.mu.Lock()
	tm.token = nil
	tm.mu.Unlock()
}

// Scopes returns a copy of the scopes requested from the authority.
func (tm *TokenManager) Scopes() []string {
	return append([]string(nil), tm.creds.Scopes...)
}

func (tm *TokenManager) acquire(ctx context.Context) (string, error) {
	token, err := tm.source.Token(ctx, tm.creds.Scopes)
	if err == nil && (token == nil || token.AccessToken == "") {
		err = errors.New("authority returned an empty access token")
	}
	if err != nil {
		var authErr *AuthenticationError
		if !errors.As(err, &authErr) {
			authErr = &AuthenticationError{Authority: tm.creds.Authority, Unreachable: isUnreachable(err), Err: err}
		}
		if tm.logger != nil {
			tm.logger.Printf("oauth2: token acquisition failed: %v", authErr)
		}
		return "", authErr
	}

	if token.Expiry.IsZero() {
		token.Expiry = expiryFromJWT(token.AccessToken)
	}

	tm.mu.Lock()
	tm.token = token
	tm.mu.Unlock()

	if tm.logger != nil {
		if token.Expiry.IsZero() {
			tm.logger.Printf("oauth2: obtained new access token (no expiry)")
		} else {
			tm.logger.Printf("oauth2: obtained new access token (expires: %s)", token.Expiry.Format(time.RFC3339))
		}
	}

	return token.AccessToken, nil
}

func (tm *TokenManager) cachedToken() (string, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	if !tm.tokenValid() {
		return "", false
	}
	return tm.token.AccessToken, true
}

// tokenValid reports whether the cached token is still usable with the leeway window.
// Callers must hold tm.mu.
func (tm *TokenManager) tokenValid() bool {
	if tm.token == nil || tm.token.AccessToken == "" {
		return false
	}
	if tm.token.Expiry.IsZero() {
		return true
	}
	return tm.now().Add(tm.expiryLeeway).Before(tm.token.Expiry)
}
