package comms_out

import (
	"context"
	"time"

	"github.com/google/uuid"

	comms_entities "github.com/coldkeep/custody-api/pkg/domain/comms/entities"
)

// Repository persists verification codes under CAS (spec.md §13) and
// answers the queries Service needs for rate limiting and lookup.
type Repository interface {
	Create(ctx context.Context, code comms_entities.VerificationCode) error
	GetByID(ctx context.Context, id uuid.UUID) (comms_entities.VerificationCode, error)
	Update(ctx context.Context, code comms_entities.VerificationCode) error

	// FindLatest returns the most recently created code for
	// (accountID, scopeKey), if any.
	FindLatest(ctx context.Context, accountID uuid.UUID, scopeKey string) (comms_entities.VerificationCode, bool, error)

	// CountSince counts initiations for (accountID, scopeKey) created at or
	// after since, the sliding-window rate-limit input.
	CountSince(ctx context.Context, accountID uuid.UUID, scopeKey string, since time.Time) (int, error)
}
