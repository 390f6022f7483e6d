package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/config"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/store"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type staticProcesses []string

func (p staticProcesses) ProcessNames(context.Context) ([]string, error) {
	return p, nil
}

type closedPorts struct{}

func (closedPorts) IsListening(context.Context, int) (bool, error) {
	return false, nil
}

type noOwners struct{}

func (noOwners) OwnerOf(context.Context, int) (string, error) {
	return "", errors.New("no owner")
}

func testCapabilities(processes ...string) Capabilities {
	return Capabilities{
		Processes: staticProcesses(processes),
		Ports:     closedPorts{},
		Owners:    noOwners{},
		Registry:  system.NoopRegistry{Reason: system.ReasonNotWindows},
	}
}

func collectorConfig() *config.CollectorConfig {
	return &config.CollectorConfig{
		HTTPPort:         "0",
		GRPCPort:         "0",
		PresenceWindow:   30 * time.Second,
		Store:            store.Options{Backend: "memory"},
		SubscriberBuffer: 16,
		HistoryLimit:     100,
		ReportsLimit:     1000,
	}
}

func agentConfig(serverURL string) *config.AgentConfig {
	return &config.AgentConfig{
		ServerURL:                   serverURL,
		ScanInterval:                time.Hour,
		UserID:                      "agent-under-test",
		EnableReporting:             serverURL != "",
		ReportTimeout:               2 * time.Second,
		EnableAlerts:                true,
		PortCheckTimeout:            100 * time.Millisecond,
		PolicyCriticalPorts:         "3389,5900",
		PolicyPortHighCount:         3,
		PolicyRegistryCriticalCount: 3,
		PolicyRegistryHighCount:     2,
	}
}

func startCollector(t *testing.T) (*CollectorOrchestrator, string) {
	t.Helper()

	o := NewCollectorOrchestrator(collectorConfig(), zaptest.NewLogger(t))
	require.NoError(t, o.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-done
		assert.NoError(t, o.Stop())
	})

	_, port, err := net.SplitHostPort(o.HTTPAddr())
	require.NoError(t, err)
	return o, "http://127.0.0.1:" + port
}

func TestCollector_ServesReportsAndHealth(t *testing.T) {
	o, baseURL := startCollector(t)

	body := `{"identity":{"id":"pc-1","hostName":"pc-1","userName":"u","platform":"windows"},` +
		`"status":"threat","severity":"critical","findings":[],"submittedAt":"2025-06-01T12:00:00Z"}`

	resp, err := http.Post(baseURL+"/api/client/report", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	var ack models.Ack
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	resp.Body.Close()
	assert.True(t, ack.Success)
	assert.Equal(t, uint64(1), ack.Sequence)

	resp, err = http.Get(baseURL + "/api/admin/stats")
	require.NoError(t, err)
	var stats models.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, 1, stats.ThreatsDetected)

	resp, err = http.Get(baseURL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, port, err := net.SplitHostPort(o.GRPCAddr())
	require.NoError(t, err)
	conn, err := grpc.NewClient("127.0.0.1:"+port, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	assert.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		res, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: collectorService})
		return err == nil && res.Status == healthpb.HealthCheckResponse_SERVING
	}, 5*time.Second, 50*time.Millisecond)
}

func TestCollector_StartFailsWhenStoreUnreachable(t *testing.T) {
	cfg := collectorConfig()
	cfg.Store = store.Options{Backend: "postgres", PostgresURL: "postgres://nobody@127.0.0.1:1/none?connect_timeout=1"}

	o := NewCollectorOrchestrator(cfg, zaptest.NewLogger(t))
	err := o.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report store")
	assert.NoError(t, o.Stop())
}

func TestAgent_ScanOnceReportsToCollector(t *testing.T) {
	collector, baseURL := startCollector(t)

	var alerts bytes.Buffer
	agent := NewAgentOrchestrator(agentConfig(baseURL), zaptest.NewLogger(t),
		WithCapabilities(testCapabilities("explorer.exe", "TeamViewer.exe")),
		WithAlertOutput(&alerts),
	)
	require.NoError(t, agent.Start())
	defer agent.Stop()

	v := agent.ScanOnce(context.Background())
	assert.True(t, v.Overall)
	assert.Equal(t, models.SeverityCritical, v.Severity)
	assert.Contains(t, alerts.String(), "REMOTE DESKTOP ACCESS DETECTED")

	view, history, err := collector.ingestor.Client(context.Background(), "agent-under-test", 10)
	require.NoError(t, err)
	assert.True(t, view.Online)
	assert.Equal(t, models.StatusThreat, view.LastReport.Status)
	require.Len(t, history, 1)
	assert.Equal(t, models.SeverityCritical, history[0].Report.Severity)
}

func TestAgent_CleanScanWithoutReporting(t *testing.T) {
	var alerts bytes.Buffer
	agent := NewAgentOrchestrator(agentConfig(""), zaptest.NewLogger(t),
		WithCapabilities(testCapabilities("explorer.exe")),
		WithAlertOutput(&alerts),
	)
	require.NoError(t, agent.Start())
	defer agent.Stop()

	v := agent.ScanOnce(context.Background())
	assert.False(t, v.Overall)
	assert.Equal(t, models.SeverityLow, v.Severity)
	assert.Empty(t, alerts.String())
	assert.Equal(t, "agent-under-test", agent.Identity().ID)
}

func TestAgent_RunUntilCancelled(t *testing.T) {
	agent := NewAgentOrchestrator(agentConfig(""), zaptest.NewLogger(t),
		WithCapabilities(testCapabilities()),
		WithAlertOutput(&bytes.Buffer{}),
	)
	require.NoError(t, agent.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return agent.Scheduler().Stats().ScanCount >= 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	require.NoError(t, agent.Stop())
	assert.False(t, agent.Scheduler().IsActive())
}

func TestAgent_StartFailsOnBadCatalog(t *testing.T) {
	cfg := agentConfig("")
	cfg.CatalogPath = "/does/not/exist.yaml"

	agent := NewAgentOrchestrator(cfg, zaptest.NewLogger(t), WithCapabilities(testCapabilities()))
	assert.Error(t, agent.Start())
}

func TestAgent_LocalScanOnceReachesObserversOnce(t *testing.T) {
	cfg := agentConfig("")
	cfg.EnableLocalAPI = true

	agent := NewAgentOrchestrator(cfg, zaptest.NewLogger(t),
		WithCapabilities(testCapabilities("TeamViewer.exe")),
		WithAlertOutput(&bytes.Buffer{}),
	)
	require.NoError(t, agent.Start())
	defer agent.Stop()

	srv := httptest.NewServer(agent.localAPI)
	defer srv.Close()

	sub := agent.verdicts.Subscribe()
	defer agent.verdicts.Unsubscribe(sub)

	resp, err := http.Post(srv.URL+"/api/scan-once", "application/json", nil)
	require.NoError(t, err)
	var v models.ScanVerdict
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	resp.Body.Close()
	assert.True(t, v.Overall)

	require.Len(t, sub.C, 1)
	got := <-sub.C
	assert.Equal(t, v.Summary, got.Summary)
	assert.Empty(t, sub.C)
}
