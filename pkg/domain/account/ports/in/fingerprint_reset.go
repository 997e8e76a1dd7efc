package account_in

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FingerprintResetService gates resetting an account's hardware biometric
// enrollment behind a delay-and-notify window (spec.md §4.12): a thief with
// momentary physical access to the hardware device can't reset its
// fingerprint sensor and walk away with it immediately.
type FingerprintResetService interface {
	// Begin starts the delay window, returning the instance id the app
	// polls/continues with and the time it becomes eligible to continue.
	Begin(ctx context.Context, accountID uuid.UUID) (instanceID uuid.UUID, completeAt time.Time, err error)

	// Continue applies the reset once the delay has elapsed.
	Continue(ctx context.Context, accountID, instanceID uuid.UUID) error

	// Cancel repudiates a reset that wasn't requested by the account
	// holder, while still Pending.
	Cancel(ctx context.Context, accountID, instanceID uuid.UUID) error
}
