package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/tinoosan/posting/internal/ledger"
)

// IdempotencyStore binds client supplied keys to the draft they created.
type IdempotencyStore interface {
	// GetEntryByIdempotencyKey resolves an entry by idempotency key for the org.
	GetEntryByIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string) (ledger.JournalEntry, bool, error)
	// SaveIdempotencyKey stores the mapping; the first binding wins.
	SaveIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string, entryID uuid.UUID) error
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}
