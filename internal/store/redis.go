package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisAddr   = "localhost:6379"
	DefaultRedisPrefix = "remotewatch"
)

// appendScript assigns the sequence and writes every index in one step.
//
// KEYS: seq, data, all, identity, latest, latest_ts
// ARGV: payload, identity id, submittedAt in unix micros
var appendScript = redis.NewScript(`
local seq = redis.call('INCR', KEYS[1])
redis.call('HSET', KEYS[2], seq, ARGV[1])
redis.call('ZADD', KEYS[3], seq, seq)
redis.call('ZADD', KEYS[4], seq, seq)
local cur = redis.call('HGET', KEYS[6], ARGV[2])
if (not cur) or tonumber(ARGV[3]) >= tonumber(cur) then
  redis.call('HSET', KEYS[5], ARGV[2], seq)
  redis.call('HSET', KEYS[6], ARGV[2], ARGV[3])
end
return seq
`)

// RedisStore keeps report payloads in a hash keyed by sequence, with sorted
// sets for global and per-identity ordering.
type RedisStore struct {
	addr     string
	password string
	db       int
	prefix   string

	mu  sync.RWMutex
	rdb *redis.Client
}

func NewRedisStore(addr, password string, db int, prefix string) *RedisStore {
	if addr == "" {
		addr = DefaultRedisAddr
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		addr:     addr,
		password: password,
		db:       db,
		prefix:   prefix,
	}
}

func (s *RedisStore) Connect(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     s.addr,
		Password: s.password,
		DB:       s.db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	s.mu.Lock()
	s.rdb = rdb
	s.mu.Unlock()
	return nil
}

func (s *RedisStore) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *RedisStore) Append(ctx context.Context, report models.ClientReport, receivedAt time.Time) (models.StoredReport, error) {
	if err := validateForAppend(report); err != nil {
		return models.StoredReport{}, err
	}

	rdb, err := s.client()
	if err != nil {
		return models.StoredReport{}, err
	}

	// Sequence is the hash field, not part of the payload
	payload, err := json.Marshal(models.StoredReport{Report: report, ReceivedAt: receivedAt})
	if err != nil {
		return models.StoredReport{}, fmt.Errorf("failed to marshal report: %w", err)
	}

	id := report.IdentityID()
	keys := []string{
		s.key("seq"),
		s.key("data"),
		s.key("all"),
		s.key("identity", id),
		s.key("latest"),
		s.key("latest_ts"),
	}

	seq, err := appendScript.Run(ctx, rdb, keys, payload, id, report.SubmittedAt.UnixMicro()).Int64()
	if err != nil {
		return models.StoredReport{}, fmt.Errorf("failed to store report: %w", err)
	}

	return models.StoredReport{Sequence: uint64(seq), Report: report, ReceivedAt: receivedAt}, nil
}

func (s *RedisStore) HistoryFor(ctx context.Context, identityID string, limit int) ([]models.StoredReport, error) {
	return s.rangeOf(ctx, s.key("identity", identityID), limit)
}

func (s *RedisStore) All(ctx context.Context, limit int) ([]models.StoredReport, error) {
	return s.rangeOf(ctx, s.key("all"), limit)
}

func (s *RedisStore) rangeOf(ctx context.Context, set string, limit int) ([]models.StoredReport, error) {
	rdb, err := s.client()
	if err != nil {
		return nil, err
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	seqs, err := rdb.ZRevRange(ctx, set, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read report index: %w", err)
	}
	return s.load(ctx, rdb, seqs)
}

func (s *RedisStore) LatestPerIdentity(ctx context.Context) ([]models.StoredReport, error) {
	rdb, err := s.client()
	if err != nil {
		return nil, err
	}

	latest, err := rdb.HGetAll(ctx, s.key("latest")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read latest index: %w", err)
	}

	seqs := make([]string, 0, len(latest))
	for _, seq := range latest {
		seqs = append(seqs, seq)
	}

	out, err := s.load(ctx, rdb, seqs)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *RedisStore) load(ctx context.Context, rdb *redis.Client, seqs []string) ([]models.StoredReport, error) {
	if len(seqs) == 0 {
		return []models.StoredReport{}, nil
	}

	values, err := rdb.HMGet(ctx, s.key("data"), seqs...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get reports: %w", err)
	}

	out := make([]models.StoredReport, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: report %s missing from data hash", ErrCorruptLog, seqs[i])
		}

		seq, err := strconv.ParseUint(seqs[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad sequence %q", ErrCorruptLog, seqs[i])
		}

		var stored models.StoredReport
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report %d: %w", seq, err)
		}
		stored.Sequence = seq
		out = append(out, stored)
	}
	return out, nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	rdb, err := s.client()
	if err != nil {
		return err
	}
	return rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rdb == nil {
		return nil
	}
	err := s.rdb.Close()
	s.rdb = nil
	return err
}

func (s *RedisStore) client() (*redis.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rdb == nil {
		return nil, ErrNotConnected
	}
	return s.rdb, nil
}
