package recovery_out

import (
	"context"
	"time"

	"github.com/google/uuid"

	recovery_entities "github.com/coldkeep/custody-api/pkg/domain/recovery/entities"
)

// Repository persists recoveries under compare-and-swap, plus the lookups
// the create/cancel/contest/complete lifecycle needs (spec.md §4.6).
type Repository interface {
	Create(ctx context.Context, r recovery_entities.Recovery) error
	Update(ctx context.Context, r recovery_entities.Recovery) error
	GetByID(ctx context.Context, id uuid.UUID) (recovery_entities.Recovery, error)

	// FindPendingByAccount returns the account's single in-flight Pending
	// recovery, if any (spec.md §5's at-most-one-Pending invariant).
	FindPendingByAccount(ctx context.Context, accountID uuid.UUID) (recovery_entities.Recovery, bool, error)

	// FindLatestCompletedByAccount supports complete()'s idempotence check:
	// a second identical complete after success is a no-op success.
	FindLatestCompletedByAccount(ctx context.Context, accountID uuid.UUID) (recovery_entities.Recovery, bool, error)

	// FindByPendingDestinationPubkey implements account_out.PendingDestinationKeyIndex
	// so account creation/upgrade can reject collisions with an in-flight
	// recovery's destination key.
	FindByPendingDestinationPubkey(ctx context.Context, role string, pubkey []byte) (accountID uuid.UUID, found bool, err error)

	// HasRecentCanceledInContest reports whether the account has a
	// CanceledInContest recovery contested at or after since, gating
	// creation behind comms-verification per spec.md §4.6 step 4.
	HasRecentCanceledInContest(ctx context.Context, accountID uuid.UUID, since time.Time) (bool, error)
}
