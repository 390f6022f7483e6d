package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/metrics"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func cleanScan(delay time.Duration, counter *atomic.Int32) ScanFunc {
	return func(context.Context) models.ScanVerdict {
		counter.Add(1)
		time.Sleep(delay)
		return models.NewVerdict(nil, time.Now())
	}
}

func TestStop_WhenNotStartedIsNoop(t *testing.T) {
	var n atomic.Int32
	s := New(cleanScan(0, &n), time.Second, nil, nil)

	assert.NotPanics(t, func() {
		s.Stop()
		s.Stop()
	})
	assert.False(t, s.IsActive())
}

func TestStart_RunsImmediatelyAndPeriodically(t *testing.T) {
	var n atomic.Int32
	s := New(cleanScan(0, &n), 20*time.Millisecond, zaptest.NewLogger(t), nil)

	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.False(t, s.IsActive())
	stats := s.Stats()
	assert.GreaterOrEqual(t, stats.ScanCount, int64(3))
	assert.NotNil(t, stats.LastVerdict)
	assert.Equal(t, int64(20), stats.IntervalMs)
}

func TestStart_Twice(t *testing.T) {
	var n atomic.Int32
	s := New(cleanScan(0, &n), time.Hour, nil, nil)

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.ErrorIs(t, s.Start(), ErrAlreadyRunning)
}

func TestOverlappingTicksAreSkipped(t *testing.T) {
	var running, maxRunning atomic.Int32
	scan := func(context.Context) models.ScanVerdict {
		cur := running.Add(1)
		for {
			prev := maxRunning.Load()
			if cur <= prev || maxRunning.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(60 * time.Millisecond)
		running.Add(-1)
		return models.ScanVerdict{}
	}

	m := metrics.NewAgent()
	s := New(scan, 10*time.Millisecond, nil, m)

	require.NoError(t, s.Start())
	time.Sleep(150 * time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), maxRunning.Load())
	assert.Greater(t, s.Stats().SkippedTicks, int64(0))
	assert.Greater(t, testutil.ToFloat64(m.SkippedTicks), 0.0)
}

func TestStop_WaitsForInFlightScan(t *testing.T) {
	var finished atomic.Bool
	scan := func(context.Context) models.ScanVerdict {
		time.Sleep(80 * time.Millisecond)
		finished.Store(true)
		return models.ScanVerdict{}
	}

	s := New(scan, time.Hour, nil, nil)
	require.NoError(t, s.Start())
	time.Sleep(10 * time.Millisecond)

	s.Stop()

	assert.True(t, finished.Load())
}

func TestConsumersReceiveVerdicts(t *testing.T) {
	var n atomic.Int32
	var mu sync.Mutex
	var got []models.ScanVerdict

	s := New(cleanScan(0, &n), time.Hour, nil, nil)
	s.AddConsumer(func(_ context.Context, v models.ScanVerdict) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestRestartResetsCount(t *testing.T) {
	var n atomic.Int32
	s := New(cleanScan(0, &n), time.Hour, nil, nil)

	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool { return s.Stats().ScanCount == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Eventually(t, func() bool { return n.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), s.Stats().ScanCount)
}
