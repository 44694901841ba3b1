package store

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civic-scout/scout/pkg/graph"
)

// Config holds Postgres connection settings, mirroring the teacher's
// database.Config shape.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns int32
}

// Postgres is the pgx-backed Store implementation. It talks to the
// database with hand-written SQL rather than a generated query builder:
// the ent schemas under pkg/graph/schema describe the model, but without
// running `go generate` there is no client to call into, so every
// operation here is a plain parameterized query over pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a connection pool, pings it, and applies migrations.
func NewPostgres(ctx context.Context, cfg Config) (*Postgres, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dsn: %v", graph.ErrGraphUnavailable, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: open pool: %v", graph.ErrGraphUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", graph.ErrGraphUnavailable, err)
	}

	if err := RunMigrations(dsn, cfg.Database); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// LoadConfigFromEnv loads Postgres connection settings from the
// environment, mirroring pkg/database's own LoadConfigFromEnv shape.
func LoadConfigFromEnv() (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("SCOUT_DB_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SCOUT_DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnvOrDefault("SCOUT_DB_MAX_CONNS", "10"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SCOUT_DB_MAX_CONNS: %w", err)
	}

	cfg := Config{
		Host:     getEnvOrDefault("SCOUT_DB_HOST", "localhost"),
		Port:     port,
		User:     getEnvOrDefault("SCOUT_DB_USER", "scout"),
		Password: os.Getenv("SCOUT_DB_PASSWORD"),
		Database: getEnvOrDefault("SCOUT_DB_NAME", "scout"),
		SSLMode:  getEnvOrDefault("SCOUT_DB_SSLMODE", "disable"),
		MaxConns: int32(maxConns),
	}
	if cfg.Password == "" {
		return Config{}, fmt.Errorf("SCOUT_DB_PASSWORD is required")
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func isNoRows(err error) bool {
	return err == pgx.ErrNoRows
}
