package notification_services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	common "github.com/coldkeep/custody-api/pkg/domain"
	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	notification_entities "github.com/coldkeep/custody-api/pkg/domain/notification/entities"
	notification_in "github.com/coldkeep/custody-api/pkg/domain/notification/ports/in"
	notification_out "github.com/coldkeep/custody-api/pkg/domain/notification/ports/out"
	notification_services "github.com/coldkeep/custody-api/pkg/domain/notification/services"
)

type fakeRepo struct {
	byKey map[string]notification_entities.Notification
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byKey: map[string]notification_entities.Notification{}}
}

func (r *fakeRepo) Create(_ context.Context, n notification_entities.Notification) error {
	n.Version = 1
	r.byKey[n.IdempotencyKey()] = n
	return nil
}

func (r *fakeRepo) Update(_ context.Context, n notification_entities.Notification) error {
	r.byKey[n.IdempotencyKey()] = n
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (notification_entities.Notification, error) {
	for _, n := range r.byKey {
		if n.ID == id {
			return n, nil
		}
	}
	return notification_entities.Notification{}, common.NewErrNotFound("", "id", id)
}

func (r *fakeRepo) FindByIdempotencyKey(_ context.Context, accountID uuid.UUID, payloadType notification_entities.PayloadType, executionDateTime time.Time) (notification_entities.Notification, bool, error) {
	n := notification_entities.Notification{AccountID: accountID, PayloadType: payloadType, ExecutionDateTime: executionDateTime}
	existing, ok := r.byKey[n.IdempotencyKey()]
	return existing, ok, nil
}

func (r *fakeRepo) FindDue(_ context.Context, before time.Time, limit int) ([]notification_entities.Notification, error) {
	var due []notification_entities.Notification
	for _, n := range r.byKey {
		if n.Due(before) {
			due = append(due, n)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

type fakePrefs struct {
	byAccount map[uuid.UUID]notification_entities.SubscriptionPreferences
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{byAccount: map[uuid.UUID]notification_entities.SubscriptionPreferences{}}
}

func (p *fakePrefs) Get(_ context.Context, accountID uuid.UUID) (notification_entities.SubscriptionPreferences, bool, error) {
	prefs, ok := p.byAccount[accountID]
	return prefs, ok, nil
}

func (p *fakePrefs) Upsert(_ context.Context, prefs notification_entities.SubscriptionPreferences) error {
	p.byAccount[prefs.AccountID] = prefs
	return nil
}

type fakeProducer struct {
	published []notification_entities.Notification
}

func (p *fakeProducer) Publish(_ context.Context, n notification_entities.Notification) error {
	p.published = append(p.published, n)
	return nil
}

type fakeSink struct {
	sent []account_entities.Touchpoint
}

func (s *fakeSink) Send(_ context.Context, tp account_entities.Touchpoint, _ notification_entities.Notification) error {
	s.sent = append(s.sent, tp)
	return nil
}

type fakeAccounts struct {
	byID map[uuid.UUID]account_entities.Account
}

func (a *fakeAccounts) GetAccount(_ context.Context, accountID uuid.UUID) (account_entities.Account, error) {
	acct, ok := a.byID[accountID]
	if !ok {
		return account_entities.Account{}, common.NewErrNotFound(common.ResourceTypeAccount, "id", accountID)
	}
	return acct, nil
}

func newTestService(repo *fakeRepo, prefs *fakePrefs, producer *fakeProducer, sink *fakeSink, accounts *fakeAccounts, clock common.Clock) notification_in.Service {
	sinks := map[account_entities.TouchpointKind]notification_out.Sink{
		account_entities.TouchpointPhone: sink,
		account_entities.TouchpointEmail: sink,
		account_entities.TouchpointPush:  sink,
	}
	return notification_services.NewService(repo, prefs, producer, sinks, accounts, clock)
}

func TestSendImmediate_PublishesAndDispatchesToActiveTouchpoints(t *testing.T) {
	repo := newFakeRepo()
	prefs := newFakePrefs()
	producer := &fakeProducer{}
	sink := &fakeSink{}
	accountID := uuid.New()
	accounts := &fakeAccounts{byID: map[uuid.UUID]account_entities.Account{
		accountID: {
			ID: accountID,
			Touchpoints: []account_entities.Touchpoint{
				{ID: uuid.New(), Kind: account_entities.TouchpointPhone, E164: "+15555550100", Active: true},
				{ID: uuid.New(), Kind: account_entities.TouchpointEmail, Address: "a@example.com", Active: false},
			},
		},
	}}
	clock := common.NewFixedClock(time.Now().UTC())

	svc := newTestService(repo, prefs, producer, sink, accounts, clock)

	n, err := svc.SendImmediate(context.Background(), notification_in.ImmediateRequest{
		AccountID:   accountID,
		PayloadType: notification_entities.PayloadRecoveryPendingDelayPeriod,
	})

	require.NoError(t, err)
	require.Len(t, producer.published, 1)
	require.Len(t, sink.sent, 1, "only the active touchpoint should receive a send")
	require.True(t, n.Delivered)
}

func TestSendImmediate_SkipsDispatchWhenCategoryDisallowed(t *testing.T) {
	repo := newFakeRepo()
	prefs := newFakePrefs()
	producer := &fakeProducer{}
	sink := &fakeSink{}
	accountID := uuid.New()
	prefs.byAccount[accountID] = notification_entities.SubscriptionPreferences{AccountID: accountID, MoneyMovement: false}
	accounts := &fakeAccounts{byID: map[uuid.UUID]account_entities.Account{
		accountID: {ID: accountID, Touchpoints: []account_entities.Touchpoint{
			{ID: uuid.New(), Kind: account_entities.TouchpointPush, Platform: "ios", Active: true},
		}},
	}}
	clock := common.NewFixedClock(time.Now().UTC())

	svc := newTestService(repo, prefs, producer, sink, accounts, clock)

	_, err := svc.SendImmediate(context.Background(), notification_in.ImmediateRequest{
		AccountID:   accountID,
		PayloadType: notification_entities.PayloadMoneyMovementSent,
	})

	require.NoError(t, err)
	require.Len(t, producer.published, 1, "still published to the transport")
	require.Empty(t, sink.sent, "but not fanned out to a disallowed category's touchpoints")
}

func TestSchedule_IsIdempotentOnAccountPayloadTypeAndTime(t *testing.T) {
	repo := newFakeRepo()
	prefs := newFakePrefs()
	producer := &fakeProducer{}
	sink := &fakeSink{}
	accounts := &fakeAccounts{byID: map[uuid.UUID]account_entities.Account{}}
	clock := common.NewFixedClock(time.Now().UTC())

	svc := newTestService(repo, prefs, producer, sink, accounts, clock)

	accountID := uuid.New()
	execTime := clock.Now().Add(24 * time.Hour)

	req := notification_in.ScheduleRequest{
		AccountID:         accountID,
		PayloadType:       notification_entities.PayloadRecoveryPendingDelayPeriod,
		ExecutionDateTime: execTime,
	}

	first, err := svc.Schedule(context.Background(), req)
	require.NoError(t, err)

	second, err := svc.Schedule(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID, "a duplicate schedule call returns the existing row")
}

func TestDrain_DeliversOnlyDueRows(t *testing.T) {
	repo := newFakeRepo()
	prefs := newFakePrefs()
	producer := &fakeProducer{}
	sink := &fakeSink{}
	accountID := uuid.New()
	accounts := &fakeAccounts{byID: map[uuid.UUID]account_entities.Account{
		accountID: {ID: accountID},
	}}
	clock := common.NewFixedClock(time.Now().UTC())

	svc := newTestService(repo, prefs, producer, sink, accounts, clock)

	_, err := svc.Schedule(context.Background(), notification_in.ScheduleRequest{
		AccountID:         accountID,
		PayloadType:       notification_entities.PayloadRecoveryCompletedDelayPeriod,
		ExecutionDateTime: clock.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	_, err = svc.Schedule(context.Background(), notification_in.ScheduleRequest{
		AccountID:         accountID,
		PayloadType:       notification_entities.PayloadRecoveryCanceled,
		ExecutionDateTime: clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	delivered, err := svc.Drain(context.Background(), clock.Now())
	require.NoError(t, err)
	require.Equal(t, 1, delivered)
}

func TestEnableAccountSecurity_IsNoOpOnceSet(t *testing.T) {
	repo := newFakeRepo()
	prefs := newFakePrefs()
	producer := &fakeProducer{}
	sink := &fakeSink{}
	accounts := &fakeAccounts{byID: map[uuid.UUID]account_entities.Account{}}
	clock := common.NewFixedClock(time.Now().UTC())

	svc := newTestService(repo, prefs, producer, sink, accounts, clock)

	accountID := uuid.New()
	require.NoError(t, svc.EnableAccountSecurity(context.Background(), accountID))

	got, err := svc.GetPreferences(context.Background(), accountID)
	require.NoError(t, err)
	require.True(t, got.AccountSecurity)
	require.True(t, got.MoneyMovement)
}
