package repository

import (
	"context"
	"errors"

	"github.com/chainofevents/publisher/internal/domain"
)

// ErrDuplicatePost is returned by Insert when the datastore's uniqueness
// constraint rejected the record. Concurrent invocations racing past the
// existence check surface here; callers treat it as "already posted", not
// as a failure.
var ErrDuplicatePost = errors.New("post record already exists for this key")

// PostRepository stores the proof-of-publish records. One append-only table
// per platform; rows are never updated or deleted by the publisher.
type PostRepository interface {
	// FindBySlot returns the record for (platform, postDate, slotIndex),
	// or nil when none exists.
	FindBySlot(ctx context.Context, platform domain.Platform, postDate string, slotIndex int) (*domain.PostRecord, error)

	// FindByEvent returns the record for (platform, postDate, eventID)
	// from any slot, or nil when none exists.
	FindByEvent(ctx context.Context, platform domain.Platform, postDate string, eventID string) (*domain.PostRecord, error)

	// Insert persists a new record, filling ID and PostedAt. A uniqueness
	// violation is reported as ErrDuplicatePost.
	Insert(ctx context.Context, record *domain.PostRecord) error

	// InitSchema creates the per-platform tables and their uniqueness
	// constraints if they don't exist.
	InitSchema(ctx context.Context) error

	// Ping checks if the database connection is alive.
	Ping(ctx context.Context) error

	// Close closes the repository and releases resources.
	Close() error
}
