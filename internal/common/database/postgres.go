package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mockexam-workers/internal/common/config"

	_ "github.com/lib/pq"
)

type PostgresClient struct {
	DB *sql.DB
}

func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

const counterChecksSchema = `CREATE TABLE IF NOT EXISTS booking_counter_checks (
	check_id          UUID PRIMARY KEY,
	mock_exam_id      TEXT NOT NULL,
	redis_count       BIGINT NOT NULL,
	hubspot_count     BIGINT NOT NULL,
	drift             BIGINT NOT NULL,
	in_sync           BOOLEAN NOT NULL,
	redis_key_present BOOLEAN NOT NULL,
	checked_at        TIMESTAMPTZ NOT NULL
)`

const counterChecksIndex = `CREATE INDEX IF NOT EXISTS idx_booking_counter_checks_exam
	ON booking_counter_checks (mock_exam_id, checked_at DESC)`

// EnsureSchema creates the audit tables when missing.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{counterChecksSchema, counterChecksIndex} {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
