package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/autopeer-io/ota-agent/pkg/options"
)

type fakeAgent struct {
	triggers atomic.Int32
	notReady error
}

func (a *fakeAgent) Status() Status {
	return Status{
		Device:  "dev-1",
		Version: "v1.0.7",
		Cycles:  3,
		Last:    &OutcomeStatus{Kind: "NoUpdate", Cycle: "c-3"},
	}
}

func (a *fakeAgent) Trigger() { a.triggers.Add(1) }

func (a *fakeAgent) Ready() error { return a.notReady }

func TestRouter(t *testing.T) {
	agent := &fakeAgent{}
	srv := httptest.NewServer(NewRouter(agent))
	defer srv.Close()

	tests := []struct {
		name   string
		method string
		path   string
		code   int
		body   string
	}{
		{"healthz", http.MethodGet, "/healthz", http.StatusOK, "ok"},
		{"readyz", http.MethodGet, "/readyz", http.StatusOK, "ok"},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "cpeer_ota_hub_connectivity_status"},
		{"status", http.MethodGet, "/status", http.StatusOK, `"device":"dev-1"`},
		{"check", http.MethodPost, "/check", http.StatusAccepted, "scheduled"},
		{"check needs POST", http.MethodGet, "/check", http.StatusMethodNotAllowed, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, srv.URL+tc.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.code, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), tc.body)
		})
	}

	assert.Equal(t, int32(1), agent.triggers.Load())
}

func TestStatusDocument(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(&fakeAgent{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "v1.0.7", doc["version"])
	assert.Equal(t, "NoUpdate", doc["lastOutcome"].(map[string]any)["kind"])
	assert.NotContains(t, doc, "slots")
}

func TestReadyzNotReady(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(&fakeAgent{notReady: errors.New("slot store unavailable")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "slot store unavailable")
}

func TestHTTPServerShutdown(t *testing.T) {
	opts := options.NewHttpOptions()
	opts.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewHTTPServer(opts, NewRouter(&fakeAgent{})).Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestGRPCHealth(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	opts := options.NewGrpcOptions()
	srv := NewGRPCServer(opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())
	srv.SetServing(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check())

	cancel()
	require.NoError(t, <-done)
}
