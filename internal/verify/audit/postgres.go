package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresStore writes snapshots to an outbox table. A relay (or the Kafka
// publisher running off the same recorder) moves them downstream; the table
// itself is already ordered per correlation id by the serial position column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, snap Snapshot) error {
	query := `
		INSERT INTO audit_outbox (id, correlation_id, operation, stage, result_code, message, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		snap.CorrelationID,
		snap.Operation,
		string(snap.Stage),
		snap.ResultCode,
		snap.Message,
		snap.Payload,
		ts,
	)
	if err != nil {
		return fmt.Errorf("insert audit snapshot: %w", err)
	}
	return nil
}

// ListByCorrelation returns one key's snapshots in persistence order.
func (s *PostgresStore) ListByCorrelation(ctx context.Context, correlationID string) ([]Snapshot, error) {
	query := `
		SELECT correlation_id, operation, stage, result_code, message, payload, created_at
		FROM audit_outbox
		WHERE correlation_id = $1
		ORDER BY position ASC
	`
	rows, err := s.db.QueryContext(ctx, query, correlationID)
	if err != nil {
		return nil, fmt.Errorf("query audit snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var stage string
		if err := rows.Scan(&snap.CorrelationID, &snap.Operation, &stage,
			&snap.ResultCode, &snap.Message, &snap.Payload, &snap.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit snapshot: %w", err)
		}
		snap.Stage = Stage(stage)
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit snapshots: %w", err)
	}
	return snaps, nil
}
