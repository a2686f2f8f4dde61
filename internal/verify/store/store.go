// Package store holds the persistence contracts the verification pipeline
// consumes, with in-memory, Postgres and Redis-cached implementations.
package store

import (
	"context"

	"idgate/internal/verify/models"
)

// ContextStore resolves caller credentials to an institution+application
// context. Resolution fails closed: unknown token pairs return
// sentinel.ErrNotFound.
type ContextStore interface {
	Resolve(ctx context.Context, agencyToken, applicationToken string) (models.Context, error)
}

// IdentityStore owns the canonical identity records.
type IdentityStore interface {
	FindByCI(ctx context.Context, ci string) (*models.IdentityRecord, error)
	FindBySubject(ctx context.Context, subjectID string) (*models.IdentityRecord, error)
	Create(ctx context.Context, rec models.IdentityRecord) error
	Update(ctx context.Context, rec models.IdentityRecord) error
	// Deregister flips the registration flag off and clears the stored photo.
	Deregister(ctx context.Context, subjectID string) error
}

// QRHistoryStore records redemption attempts and serves the history query.
type QRHistoryStore interface {
	Insert(ctx context.Context, rec models.QRHistoryRecord) (int64, error)
	// MarkOutcome settles a pending row. The subject id is recorded when the
	// token decoded far enough to reveal one; empty leaves it untouched.
	MarkOutcome(ctx context.Context, id int64, status models.QRHistoryStatus, subjectID string) error
	Query(ctx context.Context, q models.HistoryQuery) (models.HistoryPage, error)
}
