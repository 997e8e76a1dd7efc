package notification_out

import (
	"context"

	"github.com/google/uuid"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	notification_entities "github.com/coldkeep/custody-api/pkg/domain/notification/entities"
)

// Producer hands a notification off to the FIFO-by-account transport
// (spec.md §5); keying every message on account_id is what gives ordering
// per account without a global ordering guarantee.
type Producer interface {
	Publish(ctx context.Context, n notification_entities.Notification) error
}

// Sink delivers a notification to a single touchpoint. Concrete adapters
// are named after the vendor they stand in for (Twilio for SMS, Iterable
// for push/email) even though the adapters themselves are in-memory fakes
// — wiring the real vendor SDKs is explicitly out of scope.
type Sink interface {
	Send(ctx context.Context, touchpoint account_entities.Touchpoint, n notification_entities.Notification) error
}

// AccountLookup is the narrow slice of account_out.AccountRepository the
// notification domain needs to resolve touchpoints without importing the
// whole account port surface.
type AccountLookup interface {
	GetAccount(ctx context.Context, accountID uuid.UUID) (account_entities.Account, error)
}
