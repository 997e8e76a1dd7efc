package account_in

import (
	"context"

	"github.com/google/uuid"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
)

// CreateFullAccountRequest is the input to CreateFullAccount.
type CreateFullAccountRequest struct {
	AppPubkey      []byte
	HwPubkey       []byte
	RecoveryPubkey []byte
	Network        account_entities.Network
	AppDpub        string
	HwDpub         string
	IsTestAccount  bool
}

// CreateLiteAccountRequest is the input to CreateLiteAccount.
type CreateLiteAccountRequest struct {
	RecoveryPubkey []byte
	IsTestAccount  bool
}

// CreatedAccount is returned by create/upgrade operations.
type CreatedAccount struct {
	AccountID  uuid.UUID
	KeysetID   uuid.UUID
	ServerDpub string
}

// UpgradeLiteToFullRequest is the input to UpgradeLiteToFull.
type UpgradeLiteToFullRequest struct {
	AppPubkey []byte
	HwPubkey  []byte
	Network   account_entities.Network
	AppDpub   string
	HwDpub    string
}

// AddPhoneTouchpointRequest carries a phone submission.
type AddPhoneTouchpointRequest struct {
	CountryCode string
	E164        string
}

// AddEmailTouchpointRequest carries an email submission.
type AddEmailTouchpointRequest struct {
	Address string
}

// AddPushTouchpointRequest carries a device-token submission, idempotent on
// (platform, token) per SPEC_FULL.md's onboarding-routes supplement.
type AddPushTouchpointRequest struct {
	Platform string
	Token    string
	ARN      string
}

// CreateInactiveSpendingKeysetRequest is the input to creating a new,
// not-yet-active spending keyset (e.g. ahead of a rotation).
type CreateInactiveSpendingKeysetRequest struct {
	Network account_entities.Network
	AppDpub string
	HwDpub  string
}

// RotateAuthKeysRequest carries the new auth keys set by the caller
// (recovery-completion flows call this internally; see pkg/domain/recovery).
type RotateAuthKeysRequest struct {
	AppPubkey      []byte
	HwPubkey       []byte
	RecoveryPubkey []byte
}

// KeyProof is the result of verifying app/hw signatures for a request,
// satisfied by pkg/domain/keyproof.Proof.
type KeyProof interface {
	RequireBoth() bool
}

// Service implements every account operation in spec.md §4.3.
type Service interface {
	CreateFullAccount(ctx context.Context, req CreateFullAccountRequest) (CreatedAccount, error)
	CreateLiteAccount(ctx context.Context, req CreateLiteAccountRequest) (CreatedAccount, error)
	UpgradeLiteToFull(ctx context.Context, accountID uuid.UUID, req UpgradeLiteToFullRequest) (CreatedAccount, error)
	FetchAccount(ctx context.Context, accountID uuid.UUID) (account_entities.Account, error)

	AddPushTouchpoint(ctx context.Context, accountID uuid.UUID, req AddPushTouchpointRequest) (uuid.UUID, error)
	FetchOrCreatePhoneTouchpoint(ctx context.Context, accountID uuid.UUID, req AddPhoneTouchpointRequest) (uuid.UUID, error)
	FetchOrCreateEmailTouchpoint(ctx context.Context, accountID uuid.UUID, req AddEmailTouchpointRequest) (uuid.UUID, error)
	ActivateTouchpoint(ctx context.Context, accountID, touchpointID uuid.UUID, proof KeyProof) error

	CreateInactiveSpendingKeyset(ctx context.Context, accountID uuid.UUID, req CreateInactiveSpendingKeysetRequest) (uuid.UUID, string, error)
	RotateToSpendingKeyset(ctx context.Context, accountID, keysetID uuid.UUID) error

	CompleteOnboarding(ctx context.Context, accountID uuid.UUID) error
	DeleteAccount(ctx context.Context, accountID uuid.UUID) error
	RotateAuthKeys(ctx context.Context, accountID uuid.UUID, req RotateAuthKeysRequest) (uuid.UUID, error)
}
