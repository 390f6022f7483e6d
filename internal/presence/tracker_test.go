package presence

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func report(id string, status models.ReportStatus) models.ClientReport {
	return models.ClientReport{
		Identity: &models.EndpointIdentity{ID: id, HostName: id + "-host"},
		Status:   status,
	}
}

func TestIsOnline_Boundary(t *testing.T) {
	now := time.Now()
	window := 30 * time.Second

	assert.True(t, IsOnline(now.Add(-(window - time.Millisecond)), now, window))
	assert.False(t, IsOnline(now.Add(-(window + time.Millisecond)), now, window))
	assert.False(t, IsOnline(now.Add(-window), now, window))
}

func TestTracker_OnlineRecomputedOnRead(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr, err := NewTracker(30*time.Second, 0, WithClock(func() time.Time { return current }))
	require.NoError(t, err)

	view := tr.Upsert(report("a", models.StatusClean), current)
	assert.True(t, view.Online)

	current = current.Add(29*time.Second + 999*time.Millisecond)
	got, ok := tr.Get("a")
	require.True(t, ok)
	assert.True(t, got.Online)

	current = current.Add(2 * time.Millisecond)
	got, _ = tr.Get("a")
	assert.False(t, got.Online)

	// Stale records stay
	assert.Equal(t, 1, tr.Len())
	assert.Len(t, tr.List(), 1)
}

func TestTracker_UpsertReplacesLastReport(t *testing.T) {
	tr, err := NewTracker(time.Minute, 0)
	require.NoError(t, err)

	first := time.Now().Add(-10 * time.Second)
	tr.Upsert(report("a", models.StatusClean), first)
	second := time.Now()
	tr.Upsert(report("a", models.StatusThreat), second)

	got, ok := tr.Get("a")
	require.True(t, ok)
	assert.Equal(t, models.StatusThreat, got.LastReport.Status)
	assert.Equal(t, second, got.LastSeen)
	assert.Equal(t, "a-host", got.Identity.HostName)
}

func TestTracker_Stats(t *testing.T) {
	now := time.Now()
	tr, err := NewTracker(30*time.Second, 0, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	tr.Upsert(report("a", models.StatusClean), now)
	tr.Upsert(report("b", models.StatusThreat), now.Add(-time.Minute))
	tr.Upsert(report("c", models.StatusThreat), now)

	stats := tr.Stats()
	assert.Equal(t, models.Stats{TotalClients: 3, OnlineClients: 2, ThreatsDetected: 2, CleanSystems: 1}, stats)
}

func TestTracker_ListSorted(t *testing.T) {
	tr, _ := NewTracker(0, 0)
	tr.Upsert(report("b", models.StatusClean), time.Now())
	tr.Upsert(report("a", models.StatusClean), time.Now())

	list := tr.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Identity.ID)
	assert.Equal(t, DefaultWindow, tr.Window())
}

func TestTracker_BoundedEvictsLeastRecentlySeen(t *testing.T) {
	tr, err := NewTracker(time.Minute, 2)
	require.NoError(t, err)

	tr.Upsert(report("a", models.StatusClean), time.Now())
	tr.Upsert(report("b", models.StatusClean), time.Now())
	_, _ = tr.Get("a") // reads do not refresh recency
	tr.Upsert(report("c", models.StatusClean), time.Now())

	_, ok := tr.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, tr.Len())
}

func TestTracker_ConcurrentUpserts(t *testing.T) {
	tr, _ := NewTracker(time.Minute, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				tr.Upsert(report(fmt.Sprintf("id-%d", i), models.StatusClean), time.Now())
				tr.List()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, tr.Len())
}
