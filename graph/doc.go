// Package graph is a small Microsoft Graph client.
//
// It issues plain requests through whatever *http.Client it is given; pair it with an
// httpclient.OAuth2Transport to have every request carry a bearer token. The client
// does not retry: a 401 surfaces as an *APIError for the caller to act on.
package graph
