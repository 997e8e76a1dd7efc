package account_out

import (
	"context"

	"github.com/google/uuid"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
)

// AccountRepository persists accounts under compare-and-swap (pkg/infra/db/mongodb.VersionedRepository).
type AccountRepository interface {
	Create(ctx context.Context, account account_entities.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (account_entities.Account, error)
	Update(ctx context.Context, account account_entities.Account) error

	// FindByActiveAuthPubkey looks up an account whose ACTIVE auth keys
	// contain pubkey in the given role ("app", "hw", or "recovery"), for
	// the global pubkey-uniqueness invariant (spec.md §3, §8).
	FindByActiveAuthPubkey(ctx context.Context, role string, pubkey []byte) (account_entities.Account, bool, error)
}

// PendingDestinationKeyIndex is consulted during recovery creation to
// enforce that a destination key does not collide with another account's
// in-flight recovery destination (spec.md §3, §4.6 step 2). Implemented by
// pkg/domain/recovery's repository; declared here to avoid a package cycle.
type PendingDestinationKeyIndex interface {
	FindByPendingDestinationPubkey(ctx context.Context, role string, pubkey []byte) (accountID uuid.UUID, found bool, err error)
}
