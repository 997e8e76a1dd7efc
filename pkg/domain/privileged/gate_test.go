package privileged_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	common "github.com/coldkeep/custody-api/pkg/domain"
	privileged_entities "github.com/coldkeep/custody-api/pkg/domain/privileged/entities"
	"github.com/coldkeep/custody-api/pkg/domain/privileged"
)

type testMutation struct {
	Note string
}

type fakeRepo struct {
	byID map[uuid.UUID]privileged_entities.Instance[testMutation]
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[uuid.UUID]privileged_entities.Instance[testMutation]{}}
}

func (r *fakeRepo) Create(_ context.Context, i privileged_entities.Instance[testMutation]) error {
	i.Version = 1
	r.byID[i.ID] = i
	return nil
}

func (r *fakeRepo) Update(_ context.Context, i privileged_entities.Instance[testMutation]) error {
	current, ok := r.byID[i.ID]
	if !ok || current.Version != i.Version {
		return common.NewErrConflict("instance version mismatch")
	}
	i.Version = current.Version + 1
	r.byID[i.ID] = i
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (privileged_entities.Instance[testMutation], error) {
	i, ok := r.byID[id]
	if !ok {
		return privileged_entities.Instance[testMutation]{}, common.NewErrNotFound(common.ResourceTypePrivilegedOp, "id", id)
	}
	return i, nil
}

var _ privileged.Repository[testMutation] = (*fakeRepo)(nil)

func TestKeyProof_RequiresBothProofs(t *testing.T) {
	applied := false
	apply := func(testMutation) error { applied = true; return nil }

	err := privileged.KeyProof(true, false, testMutation{Note: "x"}, apply)
	require.Error(t, err)
	require.True(t, common.IsForbiddenError(err))
	require.False(t, applied)

	err = privileged.KeyProof(false, true, testMutation{Note: "x"}, apply)
	require.Error(t, err)
	require.True(t, common.IsForbiddenError(err))
	require.False(t, applied)
}

func TestKeyProof_HappyPath(t *testing.T) {
	var seen testMutation
	apply := func(m testMutation) error { seen = m; return nil }

	err := privileged.KeyProof(true, true, testMutation{Note: "go"}, apply)
	require.NoError(t, err)
	require.Equal(t, "go", seen.Note)
}

func TestDelayNotify_ContinueBeforeDelayElapsed_Rejected(t *testing.T) {
	repo := newFakeRepo()
	accountID := uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	inst, err := privileged.BeginDelayNotify(context.Background(), repo, accountID, testMutation{Note: "reset"}, 24*time.Hour, now)
	require.NoError(t, err)

	applied := false
	_, err = privileged.ContinueDelayNotify(context.Background(), repo, inst.ID, now.Add(time.Hour), func(testMutation) error {
		applied = true
		return nil
	})
	require.Error(t, err)
	require.True(t, common.IsBadRequestError(err))
	require.False(t, applied)
}

func TestDelayNotify_ContinueAfterDelayElapsed_Applies(t *testing.T) {
	repo := newFakeRepo()
	accountID := uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	inst, err := privileged.BeginDelayNotify(context.Background(), repo, accountID, testMutation{Note: "reset"}, 24*time.Hour, now)
	require.NoError(t, err)

	var seen testMutation
	completed, err := privileged.ContinueDelayNotify(context.Background(), repo, inst.ID, now.Add(25*time.Hour), func(m testMutation) error {
		seen = m
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "reset", seen.Note)
	require.Equal(t, privileged_entities.StatusComplete, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	stored, err := repo.GetByID(context.Background(), inst.ID)
	require.NoError(t, err)
	require.Equal(t, privileged_entities.StatusComplete, stored.Status)
}

func TestDelayNotify_ContinueAlreadyComplete_Rejected(t *testing.T) {
	repo := newFakeRepo()
	accountID := uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	inst, err := privileged.BeginDelayNotify(context.Background(), repo, accountID, testMutation{}, time.Hour, now)
	require.NoError(t, err)

	_, err = privileged.ContinueDelayNotify(context.Background(), repo, inst.ID, now.Add(2*time.Hour), func(testMutation) error { return nil })
	require.NoError(t, err)

	_, err = privileged.ContinueDelayNotify(context.Background(), repo, inst.ID, now.Add(3*time.Hour), func(testMutation) error { return nil })
	require.Error(t, err)
	require.True(t, common.IsBadRequestError(err))
}

func TestCancelPending_WhilePending_Succeeds(t *testing.T) {
	repo := newFakeRepo()
	accountID := uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	inst, err := privileged.BeginDelayNotify(context.Background(), repo, accountID, testMutation{}, time.Hour, now)
	require.NoError(t, err)

	err = privileged.CancelPending(context.Background(), repo, inst.ID, now.Add(time.Minute))
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), inst.ID)
	require.NoError(t, err)
	require.Equal(t, privileged_entities.StatusCanceled, stored.Status)
	require.NotNil(t, stored.CanceledAt)
}

func TestCancelPending_AfterComplete_Rejected(t *testing.T) {
	repo := newFakeRepo()
	accountID := uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	inst, err := privileged.BeginDelayNotify(context.Background(), repo, accountID, testMutation{}, time.Hour, now)
	require.NoError(t, err)

	_, err = privileged.ContinueDelayNotify(context.Background(), repo, inst.ID, now.Add(2*time.Hour), func(testMutation) error { return nil })
	require.NoError(t, err)

	err = privileged.CancelPending(context.Background(), repo, inst.ID, now.Add(3*time.Hour))
	require.Error(t, err)
	require.True(t, common.IsBadRequestError(err))
}

func TestOutOfBand_ConfirmWrongCode_Rejected(t *testing.T) {
	repo := newFakeRepo()
	accountID := uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	inst, err := privileged.BeginOutOfBand(context.Background(), repo, accountID, testMutation{Note: "invite"}, now)
	require.NoError(t, err)
	require.NotEmpty(t, inst.ConfirmationCode)
	require.NotEmpty(t, inst.CancelToken)

	applied := false
	_, err = privileged.ConfirmOutOfBand(context.Background(), repo, inst.ID, "wrong-code", now.Add(time.Minute), func(testMutation) error {
		applied = true
		return nil
	})
	require.Error(t, err)
	require.True(t, common.IsBadRequestError(err))
	require.False(t, applied)
}

func TestOutOfBand_ConfirmRightCode_Applies(t *testing.T) {
	repo := newFakeRepo()
	accountID := uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	inst, err := privileged.BeginOutOfBand(context.Background(), repo, accountID, testMutation{Note: "invite"}, now)
	require.NoError(t, err)

	var seen testMutation
	completed, err := privileged.ConfirmOutOfBand(context.Background(), repo, inst.ID, inst.ConfirmationCode, now.Add(time.Minute), func(m testMutation) error {
		seen = m
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "invite", seen.Note)
	require.Equal(t, privileged_entities.StatusComplete, completed.Status)
}

func TestOutOfBand_CancelWrongToken_Rejected(t *testing.T) {
	repo := newFakeRepo()
	accountID := uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	inst, err := privileged.BeginOutOfBand(context.Background(), repo, accountID, testMutation{}, now)
	require.NoError(t, err)

	err = privileged.CancelOutOfBand(context.Background(), repo, inst.ID, "wrong-token", now.Add(time.Minute))
	require.Error(t, err)
	require.True(t, common.IsBadRequestError(err))

	stored, err := repo.GetByID(context.Background(), inst.ID)
	require.NoError(t, err)
	require.Equal(t, privileged_entities.StatusPending, stored.Status)
}

func TestOutOfBand_CancelRightToken_Succeeds(t *testing.T) {
	repo := newFakeRepo()
	accountID := uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	inst, err := privileged.BeginOutOfBand(context.Background(), repo, accountID, testMutation{}, now)
	require.NoError(t, err)

	err = privileged.CancelOutOfBand(context.Background(), repo, inst.ID, inst.CancelToken, now.Add(time.Minute))
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), inst.ID)
	require.NoError(t, err)
	require.Equal(t, privileged_entities.StatusCanceled, stored.Status)
}
