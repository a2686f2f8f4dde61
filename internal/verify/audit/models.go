// Package audit records the best-effort verification trail: progressively
// richer snapshots of each request keyed by a correlation id. Snapshots for
// the same key are persisted in arrival order; recording never fails the
// triggering request.
package audit

import (
	"context"
	"time"
)

// Stage marks how far the pipeline had advanced when the snapshot was taken.
type Stage string

const (
	StageRequest   Stage = "request"
	StageContext   Stage = "context"
	StageDecrypted Stage = "decrypted"
	StageResult    Stage = "result"
	StageResponse  Stage = "response"
	StageError     Stage = "error"
)

// Snapshot is one trail entry. Payload carries the stage's data as JSON;
// ResultCode and Message are set on response and error snapshots.
type Snapshot struct {
	CorrelationID string
	Operation     string
	Stage         Stage
	ResultCode    string
	Message       string
	Payload       []byte
	Timestamp     time.Time
}

// Store persists snapshots. Implementations must keep the arrival order of
// snapshots sharing a correlation id.
type Store interface {
	Append(ctx context.Context, snap Snapshot) error
}
