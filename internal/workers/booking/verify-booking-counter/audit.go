package verifybookingcounter

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresAuditStore keeps the history of counter checks in
// booking_counter_checks.
type PostgresAuditStore struct {
	db *sql.DB
}

func NewPostgresAuditStore(db *sql.DB) *PostgresAuditStore {
	return &PostgresAuditStore{db: db}
}

const insertCheckQuery = `INSERT INTO booking_counter_checks
	(check_id, mock_exam_id, redis_count, hubspot_count, drift, in_sync, redis_key_present, checked_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (s *PostgresAuditStore) RecordCheck(ctx context.Context, check *Output) error {
	_, err := s.db.ExecContext(ctx, insertCheckQuery,
		check.CheckID,
		check.MockExamID,
		check.RedisCount,
		check.HubSpotCount,
		check.Drift,
		check.InSync,
		check.RedisKeyPresent,
		check.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert counter check: %w", err)
	}
	return nil
}

const recentChecksQuery = `SELECT check_id, mock_exam_id, redis_count, hubspot_count, drift, in_sync, redis_key_present, checked_at
	FROM booking_counter_checks
	WHERE mock_exam_id = $1
	ORDER BY checked_at DESC
	LIMIT $2`

// RecentChecks returns the newest checks for an exam, newest first.
func (s *PostgresAuditStore) RecentChecks(ctx context.Context, mockExamID string, limit int) ([]Output, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, recentChecksQuery, mockExamID, limit)
	if err != nil {
		return nil, fmt.Errorf("query counter checks: %w", err)
	}
	defer rows.Close()

	checks := []Output{}
	for rows.Next() {
		var c Output
		if err := rows.Scan(&c.CheckID, &c.MockExamID, &c.RedisCount, &c.HubSpotCount,
			&c.Drift, &c.InSync, &c.RedisKeyPresent, &c.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan counter check: %w", err)
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counter checks: %w", err)
	}
	return checks, nil
}
