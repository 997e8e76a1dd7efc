package inheritance_out

import (
	"context"

	"github.com/google/uuid"

	inheritance_entities "github.com/coldkeep/custody-api/pkg/domain/inheritance/entities"
)

// Repository persists claims under compare-and-swap, plus the lookups the
// start/lock/complete/cancel lifecycle needs (spec.md §4.8).
type Repository interface {
	Create(ctx context.Context, c inheritance_entities.Claim) error
	Update(ctx context.Context, c inheritance_entities.Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (inheritance_entities.Claim, error)

	// FindNonTerminalByRelationship enforces "no other non-terminal claim
	// on the relationship" (spec.md §4.8 start()).
	FindNonTerminalByRelationship(ctx context.Context, relationshipID uuid.UUID) (inheritance_entities.Claim, bool, error)

	// FindPackageByRelationship supports lock()'s package-attach step and
	// package-upload's idempotent-on-relationship_id rule.
	FindPackageByRelationship(ctx context.Context, relationshipID uuid.UUID) (inheritance_entities.Package, bool, error)
	UpsertPackage(ctx context.Context, relationshipID uuid.UUID, pkg inheritance_entities.Package) error
}

// HSMSigner co-signs a benefactor's sweep PSBT with the server's share of
// the benefactor's active keyset (spec.md §4.8 complete() WithPsbt step).
type HSMSigner interface {
	CoSignPSBT(ctx context.Context, keysetID string, psbt []byte) ([]byte, error)
}

// Broadcaster submits a finalized transaction to the Bitcoin network.
type Broadcaster interface {
	Broadcast(ctx context.Context, rawTx []byte) (txid string, err error)
}

// Screener reports whether an output address is on the blocked-address
// set (spec.md §4.11).
type Screener interface {
	IsBlocked(address string) bool
}
