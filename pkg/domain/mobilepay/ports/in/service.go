package mobilepay_in

import (
	"context"

	"github.com/google/uuid"
)

// SetupRequest updates an account's SpendingLimit (spec.md §4.10 Setup),
// gated on both key-proofs like every other privileged account mutation.
type SetupRequest struct {
	Active         bool
	AmountSats     int64
	Currency       string
	TimeZoneOffset float64
	AppSigned      bool
	HwSigned       bool
}

// SignRequest is the Mobile-Pay co-sign contract (spec.md §4.10 Sign).
type SignRequest struct {
	AccountID      uuid.UUID
	KeysetID       uuid.UUID
	Psbt           []byte
	VerificationID *uuid.UUID // optional out-of-band grant to consume
}

// SignResult is the finalized, broadcast transaction.
type SignResult struct {
	Txid    string
	RawTxHex string
}

type Service interface {
	SetupSpendingLimit(ctx context.Context, accountID uuid.UUID, req SetupRequest) error
	Sign(ctx context.Context, req SignRequest) (SignResult, error)
}
