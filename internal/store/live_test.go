package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Live backend tests run only when the backend is reachable.

func connectOrSkip(t *testing.T, s ReportStore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		t.Skipf("backend not available, skipping test: %v", err)
	}
	t.Cleanup(func() { s.Close() })
}

func TestRedisStore_Contract(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = DefaultRedisAddr
	}
	// DB 1 and a throwaway prefix keep test keys apart from real data
	s := NewRedisStore(addr, "", 1, "remotewatch-test-"+uuid.NewString()[:8])
	connectOrSkip(t, s)
	runStoreContract(t, s)
}

func TestMongoStore_Contract(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		uri = DefaultMongoURI + "/?serverSelectionTimeoutMS=2000"
	}
	s := NewMongoStore(uri, "remotewatch_test", "reports_"+uuid.NewString()[:8])
	connectOrSkip(t, s)
	t.Cleanup(func() {
		if s.coll != nil {
			_ = s.coll.Drop(context.Background())
		}
	})
	runStoreContract(t, s)
}

func TestPostgresStore_Contract(t *testing.T) {
	url := os.Getenv("TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TEST_POSTGRES_URL not set, skipping test")
	}
	s := NewPostgresStore(url)
	connectOrSkip(t, s)
	runStoreContract(t, s)
}

func TestMySQLStore_Contract(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set, skipping test")
	}
	s := NewMySQLStore(dsn)
	connectOrSkip(t, s)
	runStoreContract(t, s)
}
