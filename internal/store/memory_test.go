package store

import (
	"context"
	"testing"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Connect(context.Background()))
	runStoreContract(t, s)
}

func TestMemoryStore_SequenceStartsAtOne(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Connect(ctx))

	now := time.Now()
	first, err := s.Append(ctx, testReport("a", now, models.StatusClean), now)
	require.NoError(t, err)
	second, err := s.Append(ctx, testReport("b", now, models.StatusClean), now)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStore_LatestTieBreaksOnSequence(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Connect(ctx))

	now := time.Now()
	_, err := s.Append(ctx, testReport("a", now, models.StatusThreat), now)
	require.NoError(t, err)
	second, err := s.Append(ctx, testReport("a", now, models.StatusClean), now)
	require.NoError(t, err)

	latest, err := s.LatestPerIdentity(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, second.Sequence, latest[0].Sequence)
}

func TestMemoryStore_HealthAfterClose(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	assert.ErrorIs(t, s.HealthCheck(ctx), ErrNotConnected)

	require.NoError(t, s.Connect(ctx))
	assert.NoError(t, s.HealthCheck(ctx))

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.HealthCheck(ctx), ErrNotConnected)
}
