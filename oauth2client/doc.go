// Package oauth2client acquires and caches OAuth2 access tokens for an application
// authenticating as itself (client-credentials grant).
//
// TokenManager validates Credentials up front, acquires a token on first use, and
// renews it shortly before expiry. Concurrent callers share a single in-flight
// acquisition. Tokens live only in memory for the lifetime of the TokenManager.
//
// # Features
//
//   - Client-credentials flow with caching and early renewal (DefaultExpiryLeeway)
//   - Single-flight acquisition shared by concurrent callers
//   - Pluggable Source: generic OAuth2 token endpoint or an MSAL confidential client
//   - ConfigurationError for unusable credentials, AuthenticationError for rejected
//     or failed acquisitions (with Temporary to tell transient failures apart)
//   - gRPC unary and stream client interceptors that inject Bearer tokens
//   - Optional logging (WithLogger, WithLoggingEnabled)
//
// # Quick Start
//
//	tm, err := oauth2client.NewTokenManager(ctx, oauth2client.Credentials{
//	    ClientID:     "client-id",
//	    ClientSecret: "client-secret",
//	    Authority:    oauth2client.AuthorityFromTenant("", "contoso.onmicrosoft.com"),
//	    RedirectURI:  "https://localhost",
//	    Scopes:       []string{"https://graph.microsoft.com/.default"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client := http.Client{Transport: httpclient.NewOAuth2Transport(tm, nil)}
//
// To acquire tokens through MSAL instead of a plain token request:
//
//	src, err := oauth2client.NewMSALSource(creds)
//	tm, err := oauth2client.NewTokenManager(ctx, creds, oauth2client.WithSource(src))
package oauth2client
