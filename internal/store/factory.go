package store

import (
	"fmt"
	"strings"
)

func NewStore(opts Options) (ReportStore, error) {
	switch strings.ToLower(opts.Backend) {
	case "memory":
		return NewMemoryStore(), nil
	case "file", "":
		return NewFileStore(opts.FilePath), nil
	case "mongo", "mongodb":
		return NewMongoStore(opts.MongoURI, opts.MongoDatabase, opts.MongoCollection), nil
	case "redis":
		return NewRedisStore(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix), nil
	case "postgres", "postgresql":
		return NewPostgresStore(opts.PostgresURL), nil
	case "mysql":
		return NewMySQLStore(opts.MySQLDSN), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, opts.Backend)
	}
}
