package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/codehedgehog/msgraph-console/oauth2client"
)

// Builder provides a fluent interface for constructing HTTP clients
// with optional OAuth2 authentication and TLS/mTLS support.
type Builder struct {
	// OAuth2 configuration
	tokenManager TokenProvider
	err          error

	// TLS configuration
	tlsEnabled    bool
	tlsCAFile     string
	tlsCertFile   string
	tlsKeyFile    string
	tlsSkipVerify bool

	// HTTP client configuration
	timeout         time.Duration
	baseTransport   http.RoundTripper
	followRedirects bool
}

// NewBuilder creates a new HTTP client builder.
func NewBuilder() *Builder {
	return &Builder{
		timeout:         30 * time.Second, // Default 30s timeout
		followRedirects: true,
	}
}

// WithTokenManager sets the token provider used for automatic authentication.
// Pass a shared *oauth2client.TokenManager to reuse one token cache across clients.
func (b *Builder) WithTokenManager(tp TokenProvider) *Builder {
	b.tokenManager = tp
	return b
}

// WithOAuth2 enables OAuth2 client credentials authentication by creating a new TokenManager.
// Invalid credentials are reported by Build.
//
// Parameters:
//   - ctx: Context for token requests
//   - creds: Application credentials and scopes
//   - opts: TokenManager options (e.g. oauth2client.WithLoggingEnabled)
func (b *Builder) WithOAuth2(ctx context.Context, creds oauth2client.Credentials, opts ...oauth2client.Option) *Builder {
	tm, err := oauth2client.NewTokenManager(ctx, creds, opts...)
	if err != nil {
		b.err = err
		return b
	}
	b.tokenManager = tm
	return b
}

// WithTLS enables TLS for the connection.
//
// Parameters:
//   - caFile: Path to CA certificate for server verification (optional, uses system roots if empty)
//   - certFile: Path to client certificate for mTLS (optional, must be paired with keyFile)
//   - keyFile: Path to client private key for mTLS (optional, must be paired with certFile)
func (b *Builder) WithTLS(caFile, certFile, keyFile string) *Builder {
	b.tlsEnabled = true
	b.tlsCAFile = caFile
	b.tlsCertFile = certFile
	b.tlsKeyFile = keyFile
	return b
}

// WithInsecureSkipVerify disables TLS certificate verification (NOT RECOMMENDED for production).
// This should only be used for testing or development purposes.
func (b *Builder) WithInsecureSkipVerify() *Builder {
	b.tlsSkipVerify = true
	return b
}

// WithTimeout sets the request timeout for the HTTP client.
// Default is 30 seconds if not specified.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithBaseTransport sets a custom base transport.
// This is useful for adding custom middleware or using a custom connection pool.
func (b *Builder) WithBaseTransport(transport http.RoundTripper) *Builder {
	b.baseTransport = transport
	return b
}

// WithoutRedirects disables automatic redirect following.
// By default, the client follows up to 10 redirects.
func (b *Builder) WithoutRedirects() *Builder {
	b.followRedirects = false
	return b
}

// Build constructs the HTTP client with the configured options.
//
// Returns:
//   - *http.Client: Configured HTTP client
//   - error: Error if configuration is invalid
func (b *Builder) Build() (*http.Client, error) {
	if b.err != nil {
		return nil, fmt.Errorf("httpclient: OAuth2 config failed: %w", b.err)
	}

	transport, err := b.resolveBaseTransport()
	if err != nil {
		return nil, err
	}

	// Wrap with OAuth2 transport if token manager is set
	if b.tokenManager != nil {
		transport = NewOAuth2Transport(b.tokenManager, transport)
	}

	// Build HTTP client
	client := &http.Client{
		Transport: transport,
		Timeout:   b.timeout,
	}

	// Configure redirect policy
	if !b.followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return client, nil
}

// resolveBaseTransport returns the configured base transport, or a clone of
// http.DefaultTransport carrying the TLS settings.
func (b *Builder) resolveBaseTransport() (http.RoundTripper, error) {
	if b.baseTransport != nil {
		return b.baseTransport, nil
	}

	defaultTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		// A custom default transport is used as is; TLS options do not apply to it.
		return http.DefaultTransport, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if b.tlsEnabled || b.tlsSkipVerify {
		var err error
		tlsConfig, err = b.buildTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("httpclient: TLS config failed: %w", err)
		}
	}

	cloned := defaultTransport.Clone()
	cloned.TLSClientConfig = tlsConfig
	return cloned, nil
}

// buildTLSConfig constructs the TLS configuration for the HTTP client.
func (b *Builder) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: b.tlsSkipVerify, // #nosec G402
	}

	// Load CA certificate for server verification
	if b.tlsCAFile != "" {
		caCert, err := os.ReadFile(b.tlsCAFile)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}

		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = certPool
	}

	// Load client certificate for mTLS (if both cert and key are provided)
	if b.tlsCertFile != "" && b.tlsKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(b.tlsCertFile, b.tlsKeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	} else if b.tlsCertFile != "" || b.tlsKeyFile != "" {
		return nil, errors.New("both TLS cert and key files must be provided for mTLS")
	}

	return tlsConfig, nil
}

// NewHTTPClient is a convenience function that creates a simple HTTP client with OAuth2 authentication.
// For more configuration options, use Builder instead.
//
// Example:
//
//	tm, err := oauth2client.NewTokenManager(ctx, creds)
//	client := httpclient.NewHTTPClient(tm)
//	resp, err := client.Get("https://graph.microsoft.com/v1.0/users?$top=5")
func NewHTTPClient(tp TokenProvider) *http.Client {
	transport := NewOAuth2Transport(tp, nil)
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}
