package metrics

import (
	"testing"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAgent_ObserveScan(t *testing.T) {
	m := NewAgent()
	v := models.NewVerdict([]models.DetectionFinding{
		{Source: models.SourceProcess, Matched: true, Items: []string{"TeamViewer"}, Severity: models.SeverityCritical},
		{Source: models.SourceNetwork},
	}, time.Now())

	m.ObserveScan(v, 10*time.Millisecond)
	m.IncSkippedTick()
	m.IncTransmit(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues("threat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FindingsMatched.WithLabelValues("process", "critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedTicks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransmitFailures))
}

func TestAgent_IndependentRegistries(t *testing.T) {
	a := NewAgent()
	b := NewAgent()

	a.IncSkippedTick()

	assert.Equal(t, 0.0, testutil.ToFloat64(b.SkippedTicks))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var a *Agent
	var c *Collector

	assert.NotPanics(t, func() {
		a.ObserveScan(models.ScanVerdict{}, time.Second)
		a.IncTransmit(true)
		c.IncIngested(models.ClientReport{})
		c.AddBroadcastDropped(3)
		c.RegisterPresence(func() int { return 0 }, func() int { return 0 })
	})
}

func TestCollector_Presence(t *testing.T) {
	c := NewCollector()
	c.RegisterPresence(func() int { return 4 }, func() int { return 2 })

	count, err := testutil.GatherAndCount(c.Registry(), "remotewatch_collector_clients_online")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
