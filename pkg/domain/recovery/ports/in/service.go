package recovery_in

import (
	"context"
	"time"

	"github.com/google/uuid"

	recovery_entities "github.com/coldkeep/custody-api/pkg/domain/recovery/entities"
)

// CreateRequest asks to begin a Delay-and-Notify recovery (spec.md §4.6).
// Exactly one of AppSigned/HwSigned must be true, and it must correspond
// to the non-lost factor; the service rejects anything else.
type CreateRequest struct {
	AccountID          uuid.UUID
	LostFactor         string // "app" or "hw"
	DestAppPubkey      []byte
	DestHwPubkey       []byte
	DestRecoveryPubkey []byte
	AppSigned          bool
	HwSigned           bool

	// DelayPeriodOverride is only honored for test accounts, rejected on
	// non-test accounts per spec.md §4.6 step 5.
	DelayPeriodOverride *time.Duration

	// VerificationCode is required only when the account has a recent
	// (<=30d) CanceledInContest recovery (spec.md §4.6 step 4).
	VerificationCode string
}

// Service implements the full recovery lifecycle.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (recovery_entities.Recovery, error)

	// CancelOrContest resolves to a cancel or a contest depending on
	// whether signingFactor equals the pending recovery's lost factor.
	CancelOrContest(ctx context.Context, accountID uuid.UUID, signingFactor string) (recovery_entities.Recovery, error)

	// Complete verifies both destination signatures over challenge and,
	// once the delay has elapsed, rotates the account's auth keys.
	Complete(ctx context.Context, accountID uuid.UUID, challenge, appSig, hwSig []byte) (uuid.UUID, error)

	GetPending(ctx context.Context, accountID uuid.UUID) (recovery_entities.Recovery, bool, error)

	// CancelAllForAccount implements account_out.RecoveryTeardown.
	CancelAllForAccount(ctx context.Context, accountID uuid.UUID) error
}
