package notification_out

import (
	"context"
	"time"

	"github.com/google/uuid"

	notification_entities "github.com/coldkeep/custody-api/pkg/domain/notification/entities"
)

// Repository persists scheduled and immediate notification records (C13's
// CAS pattern, same as account and comms).
type Repository interface {
	Create(ctx context.Context, n notification_entities.Notification) error
	Update(ctx context.Context, n notification_entities.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (notification_entities.Notification, error)

	// FindByIdempotencyKey backs the create-time dedup check spec.md §4.5
	// requires on (account_id, payload_type, execution_date_time).
	FindByIdempotencyKey(ctx context.Context, accountID uuid.UUID, payloadType notification_entities.PayloadType, executionDateTime time.Time) (notification_entities.Notification, bool, error)

	// FindDue returns every undelivered row whose execution_date_time has
	// arrived, earliest first, for the scheduler worker to drain.
	FindDue(ctx context.Context, before time.Time, limit int) ([]notification_entities.Notification, error)
}

// PreferencesRepository persists the per-account subscription toggles.
type PreferencesRepository interface {
	Get(ctx context.Context, accountID uuid.UUID) (notification_entities.SubscriptionPreferences, bool, error)
	Upsert(ctx context.Context, prefs notification_entities.SubscriptionPreferences) error
}
