package mobilepay_out

import (
	"context"

	"github.com/google/uuid"

	mobilepay_entities "github.com/coldkeep/custody-api/pkg/domain/mobilepay/entities"
	txverify_entities "github.com/coldkeep/custody-api/pkg/domain/txverify/entities"
)

// Repository persists the daily-spend ledger under compare-and-swap.
type Repository interface {
	Create(ctx context.Context, d mobilepay_entities.DailySpend) error
	Update(ctx context.Context, d mobilepay_entities.DailySpend) error
	GetByID(ctx context.Context, id uuid.UUID) (mobilepay_entities.DailySpend, error)

	// FindByAccountDate resolves (or reports the absence of) the account's
	// record for its current local day, per spec.md §4.10's daily-spend key.
	FindByAccountDate(ctx context.Context, accountID uuid.UUID, dateLocal string) (mobilepay_entities.DailySpend, bool, error)
}

// HSMSigner co-signs an app-signed PSBT with the server's share of the
// account's spending keyset (spec.md §4.10 step 10).
type HSMSigner interface {
	CoSignPSBT(ctx context.Context, keysetID string, psbt []byte) ([]byte, error)
}

// Broadcaster submits a finalized transaction to the Bitcoin network.
type Broadcaster interface {
	Broadcast(ctx context.Context, rawTx []byte) (txid string, err error)
}

// Screener reports whether an output address is on the blocked-address set
// (spec.md §4.11).
type Screener interface {
	IsBlocked(address string) bool
}

// ExchangeRate converts a satoshi amount into the minor units of a fiat
// currency, for comparing a transaction's net-send against a SpendingLimit
// denominated in that currency (spec.md §4.10 step 7).
type ExchangeRate interface {
	ConvertSatsToFiat(ctx context.Context, amountSats int64, currency string) (int64, error)
}

// GrantConsumer resolves and single-use-consumes an out-of-band
// transaction-verification grant (spec.md §4.10 step 6). Satisfied
// structurally by txverify_in.Service; kept narrow here so this domain
// doesn't need the rest of that service's surface.
type GrantConsumer interface {
	GetByID(ctx context.Context, id uuid.UUID) (txverify_entities.Verification, error)
	Consume(ctx context.Context, id uuid.UUID) ([]byte, error)
}
