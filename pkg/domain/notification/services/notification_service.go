// Package notification_services implements the C6 notification engine.
package notification_services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	common "github.com/coldkeep/custody-api/pkg/domain"
	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	notification_entities "github.com/coldkeep/custody-api/pkg/domain/notification/entities"
	notification_in "github.com/coldkeep/custody-api/pkg/domain/notification/ports/in"
	notification_out "github.com/coldkeep/custody-api/pkg/domain/notification/ports/out"
)

const drainBatchSize = 100

type Service struct {
	repo     notification_out.Repository
	prefs    notification_out.PreferencesRepository
	producer notification_out.Producer
	sinks    map[account_entities.TouchpointKind]notification_out.Sink
	accounts notification_out.AccountLookup
	clock    common.Clock
}

func NewService(
	repo notification_out.Repository,
	prefs notification_out.PreferencesRepository,
	producer notification_out.Producer,
	sinks map[account_entities.TouchpointKind]notification_out.Sink,
	accounts notification_out.AccountLookup,
	clock common.Clock,
) *Service {
	return &Service{repo: repo, prefs: prefs, producer: producer, sinks: sinks, accounts: accounts, clock: clock}
}

var _ notification_in.Service = (*Service)(nil)

// Schedule persists a future notification, deduping on the (account,
// payload type, execution time) idempotency key spec.md §4.5 names.
func (s *Service) Schedule(ctx context.Context, req notification_in.ScheduleRequest) (notification_entities.Notification, error) {
	existing, found, err := s.repo.FindByIdempotencyKey(ctx, req.AccountID, req.PayloadType, req.ExecutionDateTime)
	if err != nil {
		return notification_entities.Notification{}, err
	}
	if found {
		return existing, nil
	}

	now := s.clock.Now()
	n := notification_entities.Notification{
		ID:                uuid.New(),
		AccountID:         req.AccountID,
		PayloadType:       req.PayloadType,
		Category:          notification_entities.CategoryFor(req.PayloadType),
		Fanout:            notification_entities.FanoutScheduled,
		Data:              req.Data,
		ExecutionDateTime: req.ExecutionDateTime,
		CreatedAt:         now,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return notification_entities.Notification{}, err
	}

	return n, nil
}

// SendImmediate persists and dispatches a notification synchronously.
func (s *Service) SendImmediate(ctx context.Context, req notification_in.ImmediateRequest) (notification_entities.Notification, error) {
	now := s.clock.Now()
	n := notification_entities.Notification{
		ID:                uuid.New(),
		AccountID:         req.AccountID,
		PayloadType:       req.PayloadType,
		Category:          notification_entities.CategoryFor(req.PayloadType),
		Fanout:            notification_entities.FanoutImmediate,
		Data:              req.Data,
		ExecutionDateTime: now,
		CreatedAt:         now,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return notification_entities.Notification{}, err
	}

	if err := s.dispatch(ctx, n); err != nil {
		return n, err
	}

	return s.repo.GetByID(ctx, n.ID)
}

// Drain dispatches every scheduled notification due as of now. Failures
// on one row are logged and skipped so a single bad record can't stall the
// rest of the batch; delivery is at-least-once, consumers downstream must
// already tolerate duplicates (spec.md §4.5).
func (s *Service) Drain(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.FindDue(ctx, now, drainBatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, n := range due {
		if err := s.dispatch(ctx, n); err != nil {
			slog.ErrorContext(ctx, "notification dispatch failed", "id", n.ID, "payload_type", n.PayloadType, "err", err)
			continue
		}
		delivered++
	}

	return delivered, nil
}

// dispatch publishes to the FIFO-by-account transport, fans out to every
// eligible touchpoint's sink, and marks the row delivered.
func (s *Service) dispatch(ctx context.Context, n notification_entities.Notification) error {
	if err := s.producer.Publish(ctx, n); err != nil {
		return err
	}

	prefs, err := s.GetPreferences(ctx, n.AccountID)
	if err != nil {
		return err
	}

	if !prefs.Allows(n.Category) {
		return s.markDelivered(ctx, n)
	}

	account, err := s.accounts.GetAccount(ctx, n.AccountID)
	if err != nil {
		return err
	}

	for _, tp := range account.Touchpoints {
		if !tp.Active {
			continue
		}
		sink, ok := s.sinks[tp.Kind]
		if !ok {
			continue
		}
		if err := sink.Send(ctx, tp, n); err != nil {
			slog.ErrorContext(ctx, "sink send failed", "touchpoint", tp.ID, "kind", tp.Kind, "err", err)
		}
	}

	return s.markDelivered(ctx, n)
}

func (s *Service) markDelivered(ctx context.Context, n notification_entities.Notification) error {
	n.MarkDelivered(s.clock.Now())
	return s.repo.Update(ctx, n)
}

func (s *Service) GetPreferences(ctx context.Context, accountID uuid.UUID) (notification_entities.SubscriptionPreferences, error) {
	prefs, found, err := s.prefs.Get(ctx, accountID)
	if err != nil {
		return notification_entities.SubscriptionPreferences{}, err
	}
	if !found {
		return notification_entities.DefaultSubscriptionPreferences(accountID), nil
	}
	return prefs, nil
}

func (s *Service) SetPreferences(ctx context.Context, prefs notification_entities.SubscriptionPreferences) error {
	prefs.AccountSecurity = true
	prefs.UpdatedAt = s.clock.Now()
	return s.prefs.Upsert(ctx, prefs)
}

func (s *Service) EnableAccountSecurity(ctx context.Context, accountID uuid.UUID) error {
	_, found, err := s.prefs.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	prefs := notification_entities.DefaultSubscriptionPreferences(accountID)
	prefs.UpdatedAt = s.clock.Now()
	return s.prefs.Upsert(ctx, prefs)
}
