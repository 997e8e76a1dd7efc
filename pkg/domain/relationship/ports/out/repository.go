package relationship_out

import (
	"context"

	"github.com/google/uuid"

	relationship_entities "github.com/coldkeep/custody-api/pkg/domain/relationship/entities"
)

// Repository persists relationships under compare-and-swap, plus the two
// lookups the lifecycle needs beyond GetByID (spec.md §4.7).
type Repository interface {
	Create(ctx context.Context, r relationship_entities.Relationship) error
	Update(ctx context.Context, r relationship_entities.Relationship) error
	GetByID(ctx context.Context, id uuid.UUID) (relationship_entities.Relationship, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// FindByCustomer returns every relationship where accountID is the
	// customer (invitations, unendorsed/endorsed trusted contacts).
	FindByCustomer(ctx context.Context, accountID uuid.UUID) ([]relationship_entities.Relationship, error)

	// FindByTrustedContact returns every relationship where accountID has
	// accepted as the trusted contact (Unendorsed or Endorsed).
	FindByTrustedContact(ctx context.Context, accountID uuid.UUID) ([]relationship_entities.Relationship, error)
}

// ClaimGuard is consulted before deleting a Beneficiary-role relationship:
// deletion is rejected while an incomplete inheritance claim exists in
// either direction (spec.md §4.7). Implemented by pkg/domain/inheritance's
// service; declared here to avoid a package cycle, and left unresolved
// (nil) until that domain is wired, in which case deletion proceeds
// without the inheritance caveat.
type ClaimGuard interface {
	HasIncompleteClaim(ctx context.Context, relationshipID uuid.UUID) (asBenefactor, asBeneficiary bool, err error)
}
