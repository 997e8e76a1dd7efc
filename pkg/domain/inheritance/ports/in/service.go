package inheritance_in

import (
	"context"

	"github.com/google/uuid"

	inheritance_entities "github.com/coldkeep/custody-api/pkg/domain/inheritance/entities"
)

// StartRequest begins a claim against an Endorsed, Beneficiary-role
// relationship (spec.md §4.8 start()).
type StartRequest struct {
	BeneficiaryAccountID uuid.UUID
	RelationshipID       uuid.UUID
}

// LockRequest supplies the fresh destination auth keys and their
// signatures over ExpectedLockChallenge (spec.md §4.8 lock()).
type LockRequest struct {
	ClaimID            uuid.UUID
	BeneficiaryAccountID uuid.UUID
	DestAppPubkey      []byte
	DestHwPubkey       []byte
	DestRecoveryPubkey []byte
	AppSig             []byte
	HwSig              []byte
}

// CompleteRequest drives either complete() variant (spec.md §4.8). Psbt
// nil selects WithoutPsbt.
type CompleteRequest struct {
	ClaimID              uuid.UUID
	BeneficiaryAccountID uuid.UUID
	Psbt                 []byte
}

// PackageUploadRequest is the benefactor's pre-lock upload (spec.md §4.8
// "package upload").
type PackageUploadRequest struct {
	BenefactorAccountID uuid.UUID
	RelationshipID      uuid.UUID
	SealedDEK           string
	SealedMobileKey     string
}

// Service implements the inheritance claim lifecycle.
type Service interface {
	Start(ctx context.Context, req StartRequest) (inheritance_entities.Claim, error)
	Lock(ctx context.Context, req LockRequest) (inheritance_entities.Claim, error)
	Complete(ctx context.Context, req CompleteRequest) (inheritance_entities.Claim, error)

	// Cancel is callable by either party, only while Pending.
	Cancel(ctx context.Context, actingAccountID, claimID uuid.UUID) (inheritance_entities.Claim, error)

	UploadPackage(ctx context.Context, req PackageUploadRequest) error

	GetByID(ctx context.Context, claimID uuid.UUID) (inheritance_entities.Claim, error)

	// HasIncompleteClaim implements relationship_out.ClaimGuard.
	HasIncompleteClaim(ctx context.Context, relationshipID uuid.UUID) (asBenefactor, asBeneficiary bool, err error)
}
