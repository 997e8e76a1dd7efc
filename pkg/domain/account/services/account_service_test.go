package account_services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	common "github.com/coldkeep/custody-api/pkg/domain"
	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_in "github.com/coldkeep/custody-api/pkg/domain/account/ports/in"
	account_services "github.com/coldkeep/custody-api/pkg/domain/account/services"
)

// fakeRepo is an in-memory account_out.AccountRepository for service tests.
type fakeRepo struct {
	byID map[uuid.UUID]account_entities.Account
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[uuid.UUID]account_entities.Account{}}
}

func (r *fakeRepo) Create(_ context.Context, a account_entities.Account) error {
	if _, exists := r.byID[a.ID]; exists {
		return common.NewErrAlreadyExists("", "_id", a.ID)
	}
	a.Version = 1
	r.byID[a.ID] = a
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (account_entities.Account, error) {
	a, ok := r.byID[id]
	if !ok {
		return account_entities.Account{}, common.NewErrNotFound(common.ResourceTypeAccount, "id", id)
	}
	return a, nil
}

func (r *fakeRepo) Update(_ context.Context, a account_entities.Account) error {
	current, ok := r.byID[a.ID]
	if !ok || current.Version != a.Version {
		return common.NewErrConflict("version mismatch")
	}
	a.Version++
	r.byID[a.ID] = a
	return nil
}

func (r *fakeRepo) FindByActiveAuthPubkey(_ context.Context, role string, pubkey []byte) (account_entities.Account, bool, error) {
	if len(pubkey) == 0 {
		return account_entities.Account{}, false, nil
	}
	for _, a := range r.byID {
		active, ok := a.ActiveAuthKeys()
		if !ok {
			continue
		}
		var candidate []byte
		switch role {
		case "app":
			candidate = active.AppPubkey
		case "hw":
			candidate = active.HwPubkey
		case "recovery":
			candidate = active.RecoveryPubkey
		}
		if string(candidate) == string(pubkey) {
			return a, true, nil
		}
	}
	return account_entities.Account{}, false, nil
}

// fakeServerKeys is an account_out.ServerKeyProvider test double.
type fakeServerKeys struct{}

func (fakeServerKeys) DeriveServerDpub(network account_entities.Network) (string, error) {
	return "server-dpub-" + string(network), nil
}

func newTestService(repo *fakeRepo, clock common.Clock) account_in.Service {
	return account_services.NewService(repo, nil, fakeServerKeys{}, nil, nil, clock)
}

func TestCreateFullAccount_IsIdempotentOnAppPubkey(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, common.NewFixedClock(time.Unix(0, 0).UTC()))

	req := account_in.CreateFullAccountRequest{
		AppPubkey:      []byte("app-key-1"),
		HwPubkey:       []byte("hw-key-1"),
		RecoveryPubkey: []byte("recovery-key-1"),
		Network:        account_entities.NetworkBitcoin,
		AppDpub:        "app-dpub",
		HwDpub:         "hw-dpub",
	}

	first, err := svc.CreateFullAccount(context.Background(), req)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, first.AccountID)

	second, err := svc.CreateFullAccount(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first.AccountID, second.AccountID)
	require.Equal(t, first.KeysetID, second.KeysetID)
}

func TestCreateFullAccount_RejectsTestAccountOnMainnet(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, common.NewFixedClock(time.Unix(0, 0).UTC()))

	_, err := svc.CreateFullAccount(context.Background(), account_in.CreateFullAccountRequest{
		AppPubkey:     []byte("app-key"),
		HwPubkey:      []byte("hw-key"),
		Network:       account_entities.NetworkBitcoin,
		IsTestAccount: true,
	})
	require.Error(t, err)
}

func TestCreateFullAccount_RejectsAppPubkeyReuseAcrossAccounts(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, common.NewFixedClock(time.Unix(0, 0).UTC()))

	shared := []byte("shared-app-key")
	_, err := svc.CreateFullAccount(context.Background(), account_in.CreateFullAccountRequest{
		AppPubkey: shared, HwPubkey: []byte("hw-1"), Network: account_entities.NetworkBitcoin,
	})
	require.NoError(t, err)

	_, err = svc.CreateFullAccount(context.Background(), account_in.CreateFullAccountRequest{
		AppPubkey: shared, HwPubkey: []byte("hw-2"), Network: account_entities.NetworkBitcoin,
	})
	require.Error(t, err)
}

func TestUpgradeLiteToFull_CarriesRecoveryKeyForward(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, common.NewFixedClock(time.Unix(0, 0).UTC()))

	lite, err := svc.CreateLiteAccount(context.Background(), account_in.CreateLiteAccountRequest{
		RecoveryPubkey: []byte("recovery-key"),
	})
	require.NoError(t, err)

	upgraded, err := svc.UpgradeLiteToFull(context.Background(), lite.AccountID, account_in.UpgradeLiteToFullRequest{
		AppPubkey: []byte("app-key"), HwPubkey: []byte("hw-key"), Network: account_entities.NetworkBitcoin,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, upgraded.KeysetID)

	acct, err := repo.GetByID(context.Background(), lite.AccountID)
	require.NoError(t, err)
	require.Equal(t, account_entities.KindFull, acct.Kind)
	keys, ok := acct.ActiveAuthKeys()
	require.True(t, ok)
	require.Equal(t, []byte("recovery-key"), keys.RecoveryPubkey)
}

func TestRotateToSpendingKeyset_RejectsNetworkHop(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, common.NewFixedClock(time.Unix(0, 0).UTC()))

	created, err := svc.CreateFullAccount(context.Background(), account_in.CreateFullAccountRequest{
		AppPubkey: []byte("app-key"), HwPubkey: []byte("hw-key"), Network: account_entities.NetworkBitcoin,
	})
	require.NoError(t, err)

	keysetID, _, err := svc.CreateInactiveSpendingKeyset(context.Background(), created.AccountID, account_in.CreateInactiveSpendingKeysetRequest{
		Network: account_entities.NetworkTestnet, AppDpub: "app-dpub-2", HwDpub: "hw-dpub-2",
	})
	require.NoError(t, err)

	err = svc.RotateToSpendingKeyset(context.Background(), created.AccountID, keysetID)
	require.Error(t, err)
}

func TestRotateAuthKeys_ClearsPushTouchpoints(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, common.NewFixedClock(time.Unix(0, 0).UTC()))

	created, err := svc.CreateFullAccount(context.Background(), account_in.CreateFullAccountRequest{
		AppPubkey: []byte("app-key"), HwPubkey: []byte("hw-key"), Network: account_entities.NetworkBitcoin,
	})
	require.NoError(t, err)

	_, err = svc.AddPushTouchpoint(context.Background(), created.AccountID, account_in.AddPushTouchpointRequest{
		Platform: "apns", Token: "tok", ARN: "arn:aws:sns:...",
	})
	require.NoError(t, err)

	_, err = svc.RotateAuthKeys(context.Background(), created.AccountID, account_in.RotateAuthKeysRequest{
		AppPubkey: []byte("new-app-key"), HwPubkey: []byte("new-hw-key"),
	})
	require.NoError(t, err)

	acct, err := repo.GetByID(context.Background(), created.AccountID)
	require.NoError(t, err)
	require.Empty(t, acct.Touchpoints)
}

func TestDeleteAccount_TearsDownTouchpoints(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, common.NewFixedClock(time.Unix(0, 0).UTC()))

	created, err := svc.CreateLiteAccount(context.Background(), account_in.CreateLiteAccountRequest{
		RecoveryPubkey: []byte("recovery-key"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAccount(context.Background(), created.AccountID))

	acct, err := repo.GetByID(context.Background(), created.AccountID)
	require.NoError(t, err)
	require.Empty(t, acct.Touchpoints)
}
