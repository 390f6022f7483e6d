package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnectedFileStore(t *testing.T, path string) *FileStore {
	t.Helper()
	s := NewFileStore(path)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFileStore_Contract(t *testing.T) {
	s := newConnectedFileStore(t, filepath.Join(t.TempDir(), "reports.jsonl"))
	runStoreContract(t, s)
}

func TestFileStore_CreatesDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "reports.jsonl")
	newConnectedFileStore(t, path)

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStore_ReplaysAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reports.jsonl")
	now := time.Now().UTC().Truncate(time.Millisecond)

	s := NewFileStore(path)
	require.NoError(t, s.Connect(ctx))
	for _, id := range []string{"a", "b", "a"} {
		_, err := s.Append(ctx, testReport(id, now, models.StatusThreat), now)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	reopened := newConnectedFileStore(t, path)

	all, err := reopened.All(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint64(3), all[0].Sequence)
	assert.Equal(t, "a", all[0].Report.IdentityID())
	assert.Equal(t, models.SeverityCritical, all[0].Report.Severity)
	assert.True(t, now.Equal(all[0].Report.SubmittedAt))

	next, err := reopened.Append(ctx, testReport("c", now, models.StatusClean), now)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), next.Sequence)

	latest, err := reopened.LatestPerIdentity(ctx)
	require.NoError(t, err)
	assert.Len(t, latest, 3)
}

func TestFileStore_CorruptLog(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	good := NewFileStore(filepath.Join(dir, "good.jsonl"))
	require.NoError(t, good.Connect(ctx))
	now := time.Now()
	_, err := good.Append(ctx, testReport("a", now, models.StatusClean), now)
	require.NoError(t, err)
	require.NoError(t, good.Close())

	raw, err := os.ReadFile(good.Path())
	require.NoError(t, err)

	t.Run("sequence gap", func(t *testing.T) {
		path := filepath.Join(dir, "gap.jsonl")
		// the same line twice repeats sequence 1
		require.NoError(t, os.WriteFile(path, append(append([]byte{}, raw...), raw...), 0o644))

		err := NewFileStore(path).Connect(ctx)
		assert.ErrorIs(t, err, ErrCorruptLog)
	})

	t.Run("garbage line", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.jsonl")
		require.NoError(t, os.WriteFile(path, append(append([]byte{}, raw...), []byte("{not json\n")...), 0o644))

		err := NewFileStore(path).Connect(ctx)
		assert.ErrorIs(t, err, ErrCorruptLog)
	})

	t.Run("blank lines ignored", func(t *testing.T) {
		path := filepath.Join(dir, "blank.jsonl")
		require.NoError(t, os.WriteFile(path, append([]byte("\n"), raw...), 0o644))

		s := newConnectedFileStore(t, path)
		all, err := s.All(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestFileStore_UnrecoverableWriteClosesStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reports.jsonl")
	now := time.Now()

	s := NewFileStore(path)
	require.NoError(t, s.Connect(ctx))
	_, err := s.Append(ctx, testReport("a", now, models.StatusClean), now)
	require.NoError(t, err)

	// a read-only handle fails both the write and the truncate that undoes it
	readOnly, err := os.Open(path)
	require.NoError(t, err)
	s.mu.Lock()
	require.NoError(t, s.file.Close())
	s.file = readOnly
	s.mu.Unlock()

	_, err = s.Append(ctx, testReport("b", now, models.StatusClean), now)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConnected)
	assert.Contains(t, err.Error(), "store closed")

	assert.ErrorIs(t, s.HealthCheck(ctx), ErrNotConnected)
	_, err = s.Append(ctx, testReport("c", now, models.StatusClean), now)
	assert.ErrorIs(t, err, ErrNotConnected)

	reopened := newConnectedFileStore(t, path)
	all, err := reopened.All(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "a", all[0].Report.IdentityID())
}

func TestFileStore_DefaultPath(t *testing.T) {
	assert.Equal(t, DefaultFilePath, NewFileStore("").Path())
}
