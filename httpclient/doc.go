// Package httpclient builds HTTP clients that authenticate every request with an
// OAuth2 Bearer token.
//
// OAuth2Transport is an http.RoundTripper that asks a TokenProvider (normally an
// oauth2client.TokenManager) for a token before each request and sets the
// Authorization header on the request it passes to the wrapped transport. Because it
// is itself a RoundTripper it composes with any other transport. It never inspects or
// retries responses; a 401 reaches the caller untouched.
//
// Builder assembles an http.Client with optional OAuth2 token injection, TLS 1.2+
// (custom CA, mTLS, insecure for tests), timeouts, a base transport override, and
// redirect handling.
//
// # Quick Start
//
//	client, err := httpclient.NewBuilder().
//	    WithOAuth2(ctx, oauth2client.Credentials{
//	        ClientID:     "client-id",
//	        ClientSecret: "client-secret",
//	        Authority:    "https://login.microsoftonline.com/contoso/v2.0",
//	        RedirectURI:  "https://localhost",
//	        Scopes:       []string{"https://graph.microsoft.com/.default"},
//	    }).
//	    WithTimeout(60 * time.Second).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Get("https://graph.microsoft.com/v1.0/users?$top=5")
//
// # Manual Transport Wrapping
//
//	transport := httpclient.NewOAuth2Transport(tm, nil)
//	client := &http.Client{Transport: transport}
//
// All components are safe for concurrent use if the provided TokenProvider is.
package httpclient
