package repository

import (
	"context"
	"errors"

	"github.com/stackbound/identity-api/internal/domain/entity"
)

var (
	// ErrDuplicateEmail is returned by Create when another identity already
	// holds the normalized email.
	ErrDuplicateEmail = errors.New("identity: duplicate email")
	// ErrNotFound is returned by lookups and Update when no identity matches.
	ErrNotFound = errors.New("identity: not found")
	// ErrUnavailable wraps I/O level failures of the backing medium. The
	// operation had no partial effect and may be retried by the caller.
	ErrUnavailable = errors.New("identity: store unavailable")
)

// IdentityRepository defines the persistence contract for identities.
//
// Implementations must make Create and Update mutually exclusive so that the
// uniqueness check and the write are linearizable: two concurrent Create
// calls for the same email can never both succeed. Reads may run
// concurrently but must observe either the pre- or post-state of an
// in-flight mutation, never a torn write.
type IdentityRepository interface {
	// Init prepares the backing medium. Idempotent; called once at startup.
	Init(ctx context.Context) error
	// GetByEmail finds by normalized email, case-insensitive exact match.
	GetByEmail(ctx context.Context, email string) (*entity.Identity, error)
	GetByID(ctx context.Context, id string) (*entity.Identity, error)
	// Create assigns a fresh id and timestamps, persists the candidate and
	// returns the stored record.
	Create(ctx context.Context, cand entity.Identity) (*entity.Identity, error)
	// Update merges the given fields into an existing record and refreshes
	// UpdatedAt.
	Update(ctx context.Context, id string, fields entity.ProfileUpdate) (*entity.Identity, error)
}
