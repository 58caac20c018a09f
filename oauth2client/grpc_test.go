package oauth2client

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/codehedgehog/msgraph-console/internal/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestTokenManager_UnaryClientInterceptor(t *testing.T) {
	server := sequenceServer(t, 3600)
	tm := newTestManager(t, server)

	var gotAuth []string
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		gotAuth = md.Get("authorization")
		return nil
	}

	interceptor := tm.UnaryClientInterceptor()
	if err := interceptor(context.Background(), "/test.Service/Method", nil, nil, nil, invoker); err != nil {
		t.Fatalf("interceptor failed: %v", err)
	}

	if len(gotAuth) != 1 || gotAuth[0] != "Bearer T1" {
		t.Errorf("unexpected authorization metadata: %v", gotAuth)
	}
}

func TestTokenManager_StreamClientInterceptor(t *testing.T) {
	server := sequenceServer(t, 3600)
	tm := newTestManager(t, server)

	var gotAuth []string
	streamer := func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		md, _ := metadata.FromOutgoingContext(ctx)
		gotAuth = md.Get("authorization")
		return nil, nil
	}

	interceptor := tm.StreamClientInterceptor()
	if _, err := interceptor(context.Background(), &grpc.StreamDesc{}, nil, "/test.Service/Stream", streamer); err != nil {
		t.Fatalf("interceptor failed: %v", err)
	}

	if len(gotAuth) != 1 || gotAuth[0] != "Bearer T1" {
		t.Errorf("unexpected authorization metadata: %v", gotAuth)
	}
}

func TestTokenManager_Interceptors_TokenError(t *testing.T) {
	server := testutil.NewMockOAuth2Server(t, testutil.JSONResponse(http.StatusUnauthorized, `{"error": "invalid_client"}`))
	tm := newTestManager(t, server)

	invoked := false
	invoker := func(context.Context, string, any, any, *grpc.ClientConn, ...grpc.CallOption) error {
		invoked = true
		return nil
	}
	err := tm.UnaryClientInterceptor()(context.Background(), "/test.Service/Method", nil, nil, nil, invoker)

	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if invoked {
		t.Error("RPC must not be sent without a token")
	}

	streamed := false
	streamer := func(context.Context, *grpc.StreamDesc, *grpc.ClientConn, string, ...grpc.CallOption) (grpc.ClientStream, error) {
		streamed = true
		return nil, nil
	}
	if _, err := tm.StreamClientInterceptor()(context.Background(), &grpc.StreamDesc{}, nil, "/test.Service/Stream", streamer); err == nil {
		t.Fatal("expected stream interceptor error")
	}
	if streamed {
		t.Error("stream must not be created without a token")
	}
}
