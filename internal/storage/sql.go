package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
)

// Default pgxpool connection limits, overridable via environment
// variables: CACHE_DB_MAX_CONNS, CACHE_DB_MIN_CONNS,
// CACHE_DB_MAX_CONN_LIFETIME, CACHE_DB_MAX_CONN_IDLE_TIME,
// CACHE_DB_HEALTH_CHECK_PERIOD.
const (
	defaultMaxConns          = 25
	defaultMinConns          = 5
	defaultMaxConnLifetime   = 1 * time.Hour
	defaultMaxConnIdleTime   = 30 * time.Minute
	defaultHealthCheckPeriod = 1 * time.Minute
)

// SQLConfig configures a SQLBackend.
type SQLConfig struct {
	// DatabaseURL is a standard Postgres connection string.
	DatabaseURL string
	// Table is the name of the cache table. Defaults to "scholarflux_cache".
	Table string
	// TTL expires entries older than this. Zero disables the sweep.
	TTL time.Duration
	// SweepSchedule is a cron expression controlling how often expired
	// entries are purged. Defaults to "@every 5m".
	SweepSchedule string
}

// SQLBackend is a Postgres-backed Backend storing each cache record as
// a JSONB document keyed by cache key, with an optional cron-driven
// TTL sweep removing stale rows.
type SQLBackend struct {
	pool  *pgxpool.Pool
	table string
	ttl   time.Duration
	cron  *cron.Cron
}

// NewSQLBackend connects to Postgres, ensures the cache table exists,
// and (if cfg.TTL is set) schedules a periodic sweep of expired rows.
func NewSQLBackend(ctx context.Context, cfg SQLConfig) (*SQLBackend, error) {
	table := cfg.Table
	if table == "" {
		table = "scholarflux_cache"
	}

	pool, err := newPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("sql backend: %w", err)
	}

	s := &SQLBackend{pool: pool, table: table, ttl: cfg.TTL}

	if _, err := pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			cache_key  TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, table)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}

	if cfg.TTL > 0 {
		schedule := cfg.SweepSchedule
		if schedule == "" {
			schedule = "@every 5m"
		}
		c := cron.New()
		if _, err := c.AddFunc(schedule, s.sweepExpired); err != nil {
			pool.Close()
			return nil, fmt.Errorf("schedule cache sweep: %w", err)
		}
		c.Start()
		s.cron = c
	}

	return s, nil
}

// Close stops the sweep scheduler and closes the connection pool.
func (s *SQLBackend) Close() {
	if s.cron != nil {
		s.cron.Stop()
	}
	s.pool.Close()
}

func (s *SQLBackend) sweepExpired() {
	if s.ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cutoff := time.Now().Add(-s.ttl)
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE updated_at < $1`, s.table), cutoff)
	if err != nil {
		slog.Error("cache sweep failed", slog.String("error", err.Error()))
		return
	}
	if n := tag.RowsAffected(); n > 0 {
		slog.Debug("cache sweep removed expired entries", slog.Int64("count", n))
	}
}

func (s *SQLBackend) Retrieve(ctx context.Context, key string) (map[string]any, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE cache_key = $1`, s.table), key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("retrieve %s: %w", key, err)
	}
	return decodeRecord(raw)
}

func (s *SQLBackend) RetrieveAll(ctx context.Context) (map[string]map[string]any, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT cache_key, data FROM %s`, s.table))
	if err != nil {
		return nil, fmt.Errorf("retrieve all: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]any)
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		out[key] = rec
	}
	return out, rows.Err()
}

func (s *SQLBackend) RetrieveKeys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT cache_key FROM %s ORDER BY cache_key`, s.table))
	if err != nil {
		return nil, fmt.Errorf("retrieve keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan cache key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLBackend) Update(ctx context.Context, key string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode cache record %s: %w", key, err)
	}
	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (cache_key, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (cache_key) DO UPDATE SET data = $2, updated_at = now()`, s.table), key, raw)
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	return nil
}

func (s *SQLBackend) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE cache_key = $1`, s.table), key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLBackend) DeleteAll(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE TABLE %s`, s.table))
	if err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	return nil
}

func (s *SQLBackend) Verify(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE cache_key = $1)`, s.table), key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("verify %s: %w", key, err)
	}
	return exists, nil
}

func (s *SQLBackend) IsAvailable(ctx context.Context) bool {
	return s.pool.Ping(ctx) == nil
}

func decodeRecord(raw []byte) (map[string]any, error) {
	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode cache record: %w", err)
	}
	return rec, nil
}

// newPool creates a pgxpool.Pool from a Postgres connection string,
// applying environment-configurable pool limits with sensible defaults.
func newPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	config.MaxConns = int32(envInt("CACHE_DB_MAX_CONNS", defaultMaxConns))
	config.MinConns = int32(envInt("CACHE_DB_MIN_CONNS", defaultMinConns))
	config.MaxConnLifetime = envDuration("CACHE_DB_MAX_CONN_LIFETIME", defaultMaxConnLifetime)
	config.MaxConnIdleTime = envDuration("CACHE_DB_MAX_CONN_IDLE_TIME", defaultMaxConnIdleTime)
	config.HealthCheckPeriod = envDuration("CACHE_DB_HEALTH_CHECK_PERIOD", defaultHealthCheckPeriod)

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env var, using default", slog.String("key", key), slog.String("value", v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration env var, using default", slog.String("key", key), slog.String("value", v))
		return defaultVal
	}
	return d
}
