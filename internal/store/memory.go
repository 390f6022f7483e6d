package store

import (
	"context"
	"sync"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
)

// MemoryStore keeps every report in process memory. It is also the index the
// file backend replays into.
type MemoryStore struct {
	mu        sync.RWMutex
	reports   []models.StoredReport
	byID      map[string][]int
	latest    map[string]int
	connected bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string][]int),
		latest: make(map[string]int),
	}
}

func (s *MemoryStore) Connect(context.Context) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Append(_ context.Context, report models.ClientReport, receivedAt time.Time) (models.StoredReport, error) {
	if err := validateForAppend(report); err != nil {
		return models.StoredReport{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := models.StoredReport{
		Sequence:   s.nextSequenceLocked(),
		Report:     report,
		ReceivedAt: receivedAt,
	}
	s.insertLocked(stored)
	return stored, nil
}

func (s *MemoryStore) HistoryFor(_ context.Context, identityID string, limit int) ([]models.StoredReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.byID[identityID]
	out := make([]models.StoredReport, 0, capFor(len(idx), limit))
	for i := len(idx) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.reports[idx[i]])
	}
	return out, nil
}

func (s *MemoryStore) All(_ context.Context, limit int) ([]models.StoredReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.StoredReport, 0, capFor(len(s.reports), limit))
	for i := len(s.reports) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.reports[i])
	}
	return out, nil
}

func (s *MemoryStore) LatestPerIdentity(context.Context) ([]models.StoredReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.StoredReport, 0, len(s.latest))
	for _, i := range s.latest {
		out = append(out, s.reports[i])
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) HealthCheck(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return ErrNotConnected
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored reports.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

func (s *MemoryStore) nextSequenceLocked() uint64 {
	return uint64(len(s.reports)) + 1
}

// insertLocked requires stored.Sequence == nextSequenceLocked().
func (s *MemoryStore) insertLocked(stored models.StoredReport) {
	s.reports = append(s.reports, stored)
	pos := len(s.reports) - 1

	id := stored.Report.IdentityID()
	s.byID[id] = append(s.byID[id], pos)

	if cur, ok := s.latest[id]; !ok || newer(stored, s.reports[cur]) {
		s.latest[id] = pos
	}
}

func capFor(n, limit int) int {
	if limit > 0 && limit < n {
		return limit
	}
	return n
}
