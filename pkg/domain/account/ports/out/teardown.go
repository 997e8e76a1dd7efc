package account_out

import (
	"context"

	"github.com/google/uuid"
)

// RecoveryTeardown is consulted by AccountService.DeleteAccount to cancel
// any in-flight recovery for the deleted account (spec.md §4.3). Bound to
// pkg/domain/recovery at wiring time to avoid a package cycle.
type RecoveryTeardown interface {
	CancelAllForAccount(ctx context.Context, accountID uuid.UUID) error
}

// RelationshipTeardown removes relationship rows where the deleted account
// is a trusted contact (spec.md §4.3). Bound to pkg/domain/relationship.
type RelationshipTeardown interface {
	DeleteAllForTrustedContact(ctx context.Context, accountID uuid.UUID) error
}
