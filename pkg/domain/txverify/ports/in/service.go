package txverify_in

import (
	"context"
	"time"

	"github.com/google/uuid"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	txverify_entities "github.com/coldkeep/custody-api/pkg/domain/txverify/entities"
)

// UpdatePolicyRequest updates an account's tx-verification policy. Both
// proofs are required (spec.md §6, §4.12).
type UpdatePolicyRequest struct {
	Kind       account_entities.TxVerificationPolicyKind
	AmountSats int64
	AmountFiat int64
	Currency   string
	AppSigned  bool
	HwSigned   bool
}

// InitiateRequest starts an out-of-band confirmation for one PSBT.
type InitiateRequest struct {
	AccountID    uuid.UUID
	Psbt         []byte
	FiatCurrency string
	BitcoinUnit  string
}

// InitiatedVerification is returned by Initiate.
type InitiatedVerification struct {
	ID               uuid.UUID
	ConfirmationURL  string
	ExpiresAt        time.Time
}

// Service implements out-of-band transaction verification (spec.md §4.9).
type Service interface {
	UpdatePolicy(ctx context.Context, accountID uuid.UUID, req UpdatePolicyRequest) error
	Initiate(ctx context.Context, req InitiateRequest) (InitiatedVerification, error)
	VerifyWithConfirmationToken(ctx context.Context, id uuid.UUID, token string) (txverify_entities.Verification, error)
	GetByID(ctx context.Context, id uuid.UUID) (txverify_entities.Verification, error)

	// Consume marks a Success verification Consumed and returns its grant.
	// Single-use: a second call fails (spec.md §4.9's consumption rule).
	// Called by the Mobile-Pay signer (pkg/domain/mobilepay) when a sign
	// request supplies a grant.
	Consume(ctx context.Context, id uuid.UUID) ([]byte, error)
}
