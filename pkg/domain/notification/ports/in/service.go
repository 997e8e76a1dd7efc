package notification_in

import (
	"context"
	"time"

	"github.com/google/uuid"

	notification_entities "github.com/coldkeep/custody-api/pkg/domain/notification/entities"
)

// ScheduleRequest asks for a notification to fire at a future time.
// Delay-and-Notify and Inheritance are the two callers (spec.md §4.6,
// §4.8): a recovery split into a daily "pending" stream up to
// delay_end_time and a "completed" stream from delay_end_time onward.
type ScheduleRequest struct {
	AccountID         uuid.UUID
	PayloadType       notification_entities.PayloadType
	Data              map[string]interface{}
	ExecutionDateTime time.Time
}

// ImmediateRequest asks for synchronous fan-out right now.
type ImmediateRequest struct {
	AccountID   uuid.UUID
	PayloadType notification_entities.PayloadType
	Data        map[string]interface{}
}

// Service is the C6 notification engine: scheduled + immediate fan-out,
// subscription preferences, and the drain worker for due schedules.
type Service interface {
	Schedule(ctx context.Context, req ScheduleRequest) (notification_entities.Notification, error)
	SendImmediate(ctx context.Context, req ImmediateRequest) (notification_entities.Notification, error)

	// Drain dispatches every due scheduled notification as of now, and
	// returns how many it delivered. Callers run this on a timer.
	Drain(ctx context.Context, now time.Time) (int, error)

	GetPreferences(ctx context.Context, accountID uuid.UUID) (notification_entities.SubscriptionPreferences, error)
	SetPreferences(ctx context.Context, prefs notification_entities.SubscriptionPreferences) error

	// EnableAccountSecurity enables the AccountSecurity category for
	// accountID. It is a no-op if a preferences row already exists.
	// Touchpoint activation does not call it.
	EnableAccountSecurity(ctx context.Context, accountID uuid.UUID) error
}
