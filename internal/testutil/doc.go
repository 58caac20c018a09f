// Package testutil provides test helpers for the msgraph-console packages.
//
// It includes utilities to spin up IPv4-only local HTTP servers (avoiding IPv6 in sandboxes),
// mock OAuth2 token endpoints without real sockets, a settable clock, access-token minting,
// and self-signed certificates for TLS/mTLS tests.
//
// # Utilities
//
//   - NewLocalHTTPServer: start httptest server bound to 127.0.0.1
//   - MockOAuth2Server, TokenJSON and StaticJSONResponse: stub token endpoints and count requests
//   - RoundTripFunc: inline http.RoundTripper implementations
//   - Clock: manually advanced time source
//   - NewAccessToken: HS256 JWT with a chosen exp claim
//   - WriteTestCACert / WriteTestCertAndKey: generate temporary CA and leaf certificates for tests
package testutil
