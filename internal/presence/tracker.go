// Package presence tracks the last report and last-seen time of every endpoint.
package presence

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultWindow = 30 * time.Second

// IsOnline reports whether an endpoint last seen at lastSeen is still online at now.
func IsOnline(lastSeen, now time.Time, window time.Duration) bool {
	return now.Sub(lastSeen) < window
}

// Tracker never expires records; online is recomputed on every read. With a
// positive max the least recently seen endpoint is evicted once the bound is hit.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*models.PresenceRecord
	bounded *lru.Cache[string, *models.PresenceRecord]
	window  time.Duration
	now     func() time.Time
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(window time.Duration, maxEndpoints int, opts ...Option) (*Tracker, error) {
	if window <= 0 {
		window = DefaultWindow
	}

	t := &Tracker{
		window: window,
		now:    time.Now,
	}

	if maxEndpoints > 0 {
		cache, err := lru.New[string, *models.PresenceRecord](maxEndpoints)
		if err != nil {
			return nil, fmt.Errorf("presence cache: %w", err)
		}
		t.bounded = cache
	} else {
		t.records = make(map[string]*models.PresenceRecord)
	}

	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Upsert records report as the latest from its identity, seen at seenAt.
func (t *Tracker) Upsert(report models.ClientReport, seenAt time.Time) models.ClientView {
	var identity models.EndpointIdentity
	if report.Identity != nil {
		identity = *report.Identity
	}

	rec := &models.PresenceRecord{
		Identity:   identity,
		LastReport: report,
		LastSeen:   seenAt,
	}

	t.mu.Lock()
	if t.bounded != nil {
		t.bounded.Add(identity.ID, rec)
	} else {
		t.records[identity.ID] = rec
	}
	t.mu.Unlock()

	return rec.View(IsOnline(seenAt, t.now(), t.window))
}

func (t *Tracker) Get(id string) (models.ClientView, bool) {
	t.mu.RLock()
	rec, ok := t.lookup(id)
	t.mu.RUnlock()

	if !ok {
		return models.ClientView{}, false
	}
	return rec.View(IsOnline(rec.LastSeen, t.now(), t.window)), true
}

// List returns every known endpoint ordered by identity id.
func (t *Tracker) List() []models.ClientView {
	now := t.now()
	records := t.snapshot()

	views := make([]models.ClientView, 0, len(records))
	for _, rec := range records {
		views = append(views, rec.View(IsOnline(rec.LastSeen, now, t.window)))
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].Identity.ID < views[j].Identity.ID
	})
	return views
}

func (t *Tracker) Stats() models.Stats {
	now := t.now()
	var stats models.Stats

	for _, rec := range t.snapshot() {
		stats.TotalClients++
		if IsOnline(rec.LastSeen, now, t.window) {
			stats.OnlineClients++
		}
		switch rec.LastReport.Status {
		case models.StatusThreat:
			stats.ThreatsDetected++
		case models.StatusClean:
			stats.CleanSystems++
		}
	}
	return stats
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.bounded != nil {
		return t.bounded.Len()
	}
	return len(t.records)
}

func (t *Tracker) OnlineCount() int {
	return t.Stats().OnlineClients
}

func (t *Tracker) Window() time.Duration {
	return t.window
}

func (t *Tracker) lookup(id string) (models.PresenceRecord, bool) {
	if t.bounded != nil {
		rec, ok := t.bounded.Peek(id)
		if !ok {
			return models.PresenceRecord{}, false
		}
		return *rec, true
	}
	rec, ok := t.records[id]
	if !ok {
		return models.PresenceRecord{}, false
	}
	return *rec, true
}

func (t *Tracker) snapshot() []models.PresenceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.bounded != nil {
		keys := t.bounded.Keys()
		out := make([]models.PresenceRecord, 0, len(keys))
		for _, k := range keys {
			if rec, ok := t.bounded.Peek(k); ok {
				out = append(out, *rec)
			}
		}
		return out
	}

	out := make([]models.PresenceRecord, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	return out
}
