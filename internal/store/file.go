package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
)

const DefaultFilePath = "./data/reports.jsonl"

// FileStore persists reports as JSON lines, one StoredReport per line in
// sequence order, and serves reads from an in-memory index rebuilt on Connect.
type FileStore struct {
	path string

	mu    sync.Mutex
	file  *os.File
	index *MemoryStore
}

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileStore{
		path:  path,
		index: NewMemoryStore(),
	}
}

func (s *FileStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open report log: %w", err)
	}

	index := NewMemoryStore()
	if err := replay(f, index); err != nil {
		f.Close()
		return err
	}

	s.file = f
	s.index = index
	return s.index.Connect(ctx)
}

func replay(r io.Reader, index *MemoryStore) error {
	reader := bufio.NewReader(r)
	line := 0

	for {
		raw, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(raw)) > 0 {
			line++
			var stored models.StoredReport
			if uerr := json.Unmarshal(raw, &stored); uerr != nil {
				return fmt.Errorf("%w: line %d: %v", ErrCorruptLog, line, uerr)
			}

			index.mu.Lock()
			want := index.nextSequenceLocked()
			if stored.Sequence != want {
				index.mu.Unlock()
				return fmt.Errorf("%w: line %d has sequence %d, want %d", ErrCorruptLog, line, stored.Sequence, want)
			}
			index.insertLocked(stored)
			index.mu.Unlock()
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read report log: %w", err)
		}
	}
}

func (s *FileStore) Append(_ context.Context, report models.ClientReport, receivedAt time.Time) (models.StoredReport, error) {
	if err := validateForAppend(report); err != nil {
		return models.StoredReport{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return models.StoredReport{}, ErrNotConnected
	}

	s.index.mu.RLock()
	seq := s.index.nextSequenceLocked()
	s.index.mu.RUnlock()

	stored := models.StoredReport{Sequence: seq, Report: report, ReceivedAt: receivedAt}
	line, err := json.Marshal(stored)
	if err != nil {
		return models.StoredReport{}, fmt.Errorf("encode report: %w", err)
	}
	line = append(line, '\n')

	info, err := s.file.Stat()
	if err != nil {
		return models.StoredReport{}, fmt.Errorf("stat report log: %w", err)
	}

	if _, err := s.file.Write(line); err != nil {
		return models.StoredReport{}, s.rollbackLocked(info.Size(), fmt.Errorf("write report log: %w", err))
	}
	if err := s.file.Sync(); err != nil {
		return models.StoredReport{}, s.rollbackLocked(info.Size(), fmt.Errorf("sync report log: %w", err))
	}

	s.index.mu.Lock()
	s.index.insertLocked(stored)
	s.index.mu.Unlock()

	return stored, nil
}

// rollbackLocked drops any partial line written after size. If the log cannot
// be truncated the store closes itself, since the next append would land
// behind a torn line and the log would no longer replay.
func (s *FileStore) rollbackLocked(size int64, cause error) error {
	if err := s.file.Truncate(size); err != nil {
		s.file.Close()
		s.file = nil
		return errors.Join(cause, fmt.Errorf("truncate report log, store closed: %w", err))
	}
	return cause
}

func (s *FileStore) HistoryFor(ctx context.Context, identityID string, limit int) ([]models.StoredReport, error) {
	if err := s.HealthCheck(ctx); err != nil {
		return nil, err
	}
	return s.currentIndex().HistoryFor(ctx, identityID, limit)
}

func (s *FileStore) All(ctx context.Context, limit int) ([]models.StoredReport, error) {
	if err := s.HealthCheck(ctx); err != nil {
		return nil, err
	}
	return s.currentIndex().All(ctx, limit)
}

func (s *FileStore) LatestPerIdentity(ctx context.Context) ([]models.StoredReport, error) {
	if err := s.HealthCheck(ctx); err != nil {
		return nil, err
	}
	return s.currentIndex().LatestPerIdentity(ctx)
}

func (s *FileStore) HealthCheck(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return ErrNotConnected
	}
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) currentIndex() *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}
