package txverify_out

import (
	"context"

	"github.com/google/uuid"

	txverify_entities "github.com/coldkeep/custody-api/pkg/domain/txverify/entities"
)

// Repository persists verification requests under compare-and-swap
// (spec.md §4.9, indexed by (account_id, status) per spec.md §6).
type Repository interface {
	Create(ctx context.Context, v txverify_entities.Verification) error
	Update(ctx context.Context, v txverify_entities.Verification) error
	GetByID(ctx context.Context, id uuid.UUID) (txverify_entities.Verification, error)
}

// HSMGrantor signs the grant digest with the HSM's out-of-band
// confirmation grant key. Implemented by the same client that signs
// inheritance co-sign requests, on a different gRPC method.
type HSMGrantor interface {
	SignDigest(ctx context.Context, keysetID string, digest []byte) ([]byte, error)
}
