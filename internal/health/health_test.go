package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHandler_Healthy(t *testing.T) {
	h := NewHandler("collector", map[string]Checker{
		"store": func(context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "collector", resp.Service)
	assert.Equal(t, "ok", resp.Checks["store"])
	assert.NotZero(t, resp.Timestamp)
}

func TestHandler_FailingCheck(t *testing.T) {
	h := NewHandler("collector", map[string]Checker{
		"store": func(context.Context) error { return errors.New("store: not connected") },
		"nats":  func(context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "store: not connected", resp.Checks["store"])
	assert.Equal(t, "ok", resp.Checks["nats"])
}

func TestHandler_NoChecks(t *testing.T) {
	resp := NewHandler("agent", nil).Check(context.Background())
	assert.Equal(t, "healthy", resp.Status)
	assert.Nil(t, resp.Checks)
}

func TestGRPCServer_ServingStatus(t *testing.T) {
	g := NewGRPCServer("remotewatch.collector", zaptest.NewLogger(t))
	require.NoError(t, g.Listen("127.0.0.1:0"))

	go g.Serve()
	defer g.Stop()

	conn, err := grpc.NewClient(g.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "remotewatch.collector"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	g.SetServing(true)

	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
