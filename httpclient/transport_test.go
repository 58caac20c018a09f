package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codehedgehog/msgraph-console/internal/testutil"
	"github.com/codehedgehog/msgraph-console/oauth2client"
)

// fakeProvider hands out tokens from a fixed list and counts calls.
type fakeProvider struct {
	mu     sync.Mutex
	tokens []string
	err    error
	calls  int
}

func (p *fakeProvider) GetTokenWithContext(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return "", p.err
	}
	return p.tokens[(p.calls-1)%len(p.tokens)], nil
}

func okResponse(req *http.Request, body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func newTokenManager(tb testing.TB, server *testutil.MockOAuth2Server, opts ...oauth2client.Option) *oauth2client.TokenManager {
	tb.Helper()

	creds := oauth2client.Credentials{
		ClientID:     "client",
		ClientSecret: "secret",
		Authority:    server.Authority("tenant"),
		RedirectURI:  "https://localhost",
		Scopes:       []string{"https://graph.example.com/.default"},
	}
	opts = append([]oauth2client.Option{oauth2client.WithHTTPClient(server.Client())}, opts...)
	tm, err := oauth2client.NewTokenManager(context.Background(), creds, opts...)
	if err != nil {
		tb.Fatalf("NewTokenManager failed: %v", err)
	}
	return tm
}

func TestNewOAuth2Transport(t *testing.T) {
	tp := &fakeProvider{tokens: []string{"a"}}
	transport := NewOAuth2Transport(tp, nil)

	if transport.TokenManager != tp {
		t.Error("TokenManager not set correctly")
	}
	if transport.Base == nil {
		t.Error("Base should default to a transport")
	}

	customTransport := &http.Transport{}
	if NewOAuth2Transport(tp, customTransport).Base != customTransport {
		t.Error("Base should be set to custom transport")
	}
}

func TestOAuth2Transport_RoundTrip(t *testing.T) {
	authServer := testutil.NewMockOAuth2Server(t, nil)
	tm := newTokenManager(t, authServer)

	baseTransport := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer mock-access-token" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		return okResponse(req, "success"), nil
	})

	client := &http.Client{Transport: NewOAuth2Transport(tm, baseTransport)}

	resp, err := client.Get("https://graph.example.com/v1.0/users")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "success" {
		t.Errorf("unexpected response body: %s", body)
	}
}

func TestOAuth2Transport_RoundTrip_NilTokenManager(t *testing.T) {
	transport := &OAuth2Transport{}

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)

	resp, err := transport.RoundTrip(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		t.Fatal("expected error for nil TokenManager")
	}
	if !strings.Contains(err.Error(), "TokenManager is nil") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOAuth2Transport_RoundTrip_TokenFetchError(t *testing.T) {
	authServer := testutil.NewMockOAuth2Server(t, testutil.JSONResponse(http.StatusUnauthorized, `{"error": "invalid_client"}`))
	tm := newTokenManager(t, authServer)

	sent := false
	transport := NewOAuth2Transport(tm, testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		sent = true
		return okResponse(req, ""), nil
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)

	resp, err := transport.RoundTrip(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		t.Fatal("expected error when token fetch fails")
	}
	if sent {
		t.Error("request must not be sent without a token")
	}

	var authErr *oauth2client.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError in chain, got %v", err)
	}
	if authErr.Code != "invalid_client" {
		t.Errorf("unexpected code: %s", authErr.Code)
	}
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func TestOAuth2Transport_RoundTrip_ClosesBodyOnTokenError(t *testing.T) {
	transport := NewOAuth2Transport(&fakeProvider{err: errors.New("no token")}, nil)

	body := &trackingBody{Reader: strings.NewReader("{}")}
	req, _ := http.NewRequest(http.MethodPost, "https://graph.example.com/v1.0/users", body)

	if _, err := transport.RoundTrip(req); err == nil {
		t.Fatal("expected error")
	}
	if !body.closed {
		t.Error("request body should be closed on error")
	}
}

func TestOAuth2Transport_RoundTrip_PassesThroughResponse(t *testing.T) {
	unauthorized := &http.Response{
		StatusCode: http.StatusUnauthorized,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(`{"error": {"code": "InvalidAuthenticationToken"}}`)),
	}

	calls := 0
	tp := &fakeProvider{tokens: []string{"a"}}
	transport := NewOAuth2Transport(tp, testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		unauthorized.Request = req
		return unauthorized, nil
	}))

	req, _ := http.NewRequest(http.MethodGet, "https://graph.example.com/v1.0/me", nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp != unauthorized {
		t.Error("response should be returned unmodified")
	}
	if calls != 1 || tp.calls != 1 {
		t.Errorf("401 must not be retried: %d sends, %d token calls", calls, tp.calls)
	}
}

func TestOAuth2Transport_RoundTrip_PassesThroughTransportError(t *testing.T) {
	sendErr := errors.New("connection reset by peer")
	transport := NewOAuth2Transport(&fakeProvider{tokens: []string{"a"}}, testutil.RoundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, sendErr
	}))

	req, _ := http.NewRequest(http.MethodGet, "https://graph.example.com/v1.0/users", nil)
	_, err := transport.RoundTrip(req)
	if err != sendErr {
		t.Errorf("expected the base transport error unchanged, got %v", err)
	}
}

func TestOAuth2Transport_RoundTrip_DefaultTransportUsed(t *testing.T) {
	called := false
	prevTransport := http.DefaultTransport
	http.DefaultTransport = testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		called = true
		return okResponse(req, "default"), nil
	})
	defer func() { http.DefaultTransport = prevTransport }()

	client := &http.Client{Transport: &OAuth2Transport{TokenManager: &fakeProvider{tokens: []string{"a"}}}}

	resp, err := client.Get("https://graph.example.com/v1.0/users")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if !called {
		t.Fatal("expected default transport to be used")
	}
}

func TestOAuth2Transport_RoundTrip_RequestNotModified(t *testing.T) {
	transport := NewOAuth2Transport(&fakeProvider{tokens: []string{"a"}}, testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		return okResponse(req, ""), nil
	}))

	originalReq, _ := http.NewRequest(http.MethodGet, "https://graph.example.com/v1.0/users", nil)
	originalReq.Header.Set("X-Custom-Header", "test-value")

	resp, err := (&http.Client{Transport: transport}).Do(originalReq)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if originalReq.Header.Get("Authorization") != "" {
		t.Error("original request should not be modified")
	}
}

func TestOAuth2Transport_RoundTrip_PreservesOtherHeaders(t *testing.T) {
	transport := NewOAuth2Transport(&fakeProvider{tokens: []string{"a"}}, testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("X-Custom-Header") != "test-value" {
			t.Error("custom header not preserved")
		}
		if req.Header.Get("Content-Type") != "application/json" {
			t.Error("content-type header not preserved")
		}
		if got := req.Header.Values("Authorization"); len(got) != 1 || got[0] != "Bearer a" {
			t.Errorf("expected exactly one Authorization header, got %v", got)
		}
		return okResponse(req, ""), nil
	}))

	req, _ := http.NewRequest(http.MethodPost, "https://graph.example.com/v1.0/users", strings.NewReader("{}"))
	req.Header.Set("X-Custom-Header", "test-value")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer stale")

	resp, err := (&http.Client{Transport: transport}).Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
}

func TestOAuth2Transport_RoundTrip_RenewedToken(t *testing.T) {
	var (
		mu sync.Mutex
		n  int
	)
	authServer := testutil.NewMockOAuth2Server(t, func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		n++
		token := fmt.Sprintf("T%d", n)
		mu.Unlock()
		return testutil.StaticJSONResponse(testutil.TokenJSON(token, 3600))(req)
	})
	clock := testutil.NewClock(time.Now())
	tm := newTokenManager(t, authServer, oauth2client.WithClock(clock.Now))

	var seen []string
	client := &http.Client{Transport: NewOAuth2Transport(tm, testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		seen = append(seen, req.Header.Get("Authorization"))
		return okResponse(req, ""), nil
	}))}

	get := func() {
		resp, err := client.Get("https://graph.example.com/v1.0/users")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
	}

	get()
	get()
	clock.Advance(2 * time.Hour)
	get()

	want := []string{"Bearer T1", "Bearer T1", "Bearer T2"}
	if strings.Join(seen, ",") != strings.Join(want, ",") {
		t.Errorf("expected headers %v, got %v", want, seen)
	}
	if authServer.Count() != 2 {
		t.Errorf("expected 2 token requests, got %d", authServer.Count())
	}
}

func TestOAuth2Transport_RoundTrip_Concurrent(t *testing.T) {
	authServer := testutil.NewMockOAuth2Server(t, func(req *http.Request) (*http.Response, error) {
		time.Sleep(20 * time.Millisecond)
		return testutil.StaticJSONResponse(testutil.TokenJSON("shared", 3600))(req)
	})
	tm := newTokenManager(t, authServer)

	client := &http.Client{Transport: NewOAuth2Transport(tm, testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer shared" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		return okResponse(req, ""), nil
	}))}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get("https://graph.example.com/v1.0/users")
			if err != nil {
				t.Errorf("request failed: %v", err)
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()

	if authServer.Count() != 1 {
		t.Errorf("expected 1 token request, got %d", authServer.Count())
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(&fakeProvider{tokens: []string{"a"}})

	if client.Timeout == 0 {
		t.Error("timeout should be set")
	}
	if _, ok := client.Transport.(*OAuth2Transport); !ok {
		t.Error("transport should be OAuth2Transport")
	}
}

func BenchmarkOAuth2Transport_RoundTrip_Parallel(b *testing.B) {
	authServer := testutil.NewMockOAuth2Server(b, nil)
	tm := newTokenManager(b, authServer)
	transport := NewOAuth2Transport(tm, testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		return okResponse(req, ""), nil
	}))
	client := &http.Client{Transport: transport}

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			resp, _ := client.Get("https://graph.example.com/v1.0/users")
			if resp != nil {
				resp.Body.Close()
			}
		}
	})
}
