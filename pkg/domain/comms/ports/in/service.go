// Package comms_in defines the inbound comms-verification contract
// (spec.md §4.4): Initiate/Verify/Consume against a tagged scope.
package comms_in

import (
	"context"

	"github.com/google/uuid"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	comms_entities "github.com/coldkeep/custody-api/pkg/domain/comms/entities"
)

// InitiateRequest asks for a fresh code bound to (AccountID, Scope). Only
// the touchpoints in Touchpoints receive the code; the account's other
// touchpoints are not looked up, including when Touchpoints is empty.
type InitiateRequest struct {
	AccountID   uuid.UUID
	Scope       comms_entities.Scope
	Touchpoints []account_entities.Touchpoint
}

type InitiateResult struct {
	CodeID    uuid.UUID
	ExpiresAt string
}

type VerifyRequest struct {
	AccountID uuid.UUID
	Scope     comms_entities.Scope
	Code      string
	// Window is how long the verified mark stays valid after a successful
	// verify; defaults to the comms config's verification code TTL if zero.
	Window *int64 // seconds, optional override
}

// Service is the comms-verification inbound port (spec.md §4.4).
type Service interface {
	// Initiate generates a code, bcrypt-hashes it for storage, and
	// dispatches it over every touchpoint in the request (or every active
	// phone/email touchpoint the caller resolves). Rate-limited per
	// (account_id, scope) per config.Comms.RateLimitWindow.
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)

	// Verify checks code against the latest issuance for (account_id,
	// scope). On success the pair is marked verified until now+window.
	Verify(ctx context.Context, req VerifyRequest) error

	// Consume drains an existing verified mark for (account_id, scope),
	// failing if none is active. Single-use: a second Consume call fails.
	Consume(ctx context.Context, accountID uuid.UUID, scope comms_entities.Scope) error
}
