package txverify_services_test

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	common "github.com/coldkeep/custody-api/pkg/domain"
	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_out "github.com/coldkeep/custody-api/pkg/domain/account/ports/out"
	txverify_entities "github.com/coldkeep/custody-api/pkg/domain/txverify/entities"
	txverify_in "github.com/coldkeep/custody-api/pkg/domain/txverify/ports/in"
	txverify_out "github.com/coldkeep/custody-api/pkg/domain/txverify/ports/out"
	txverify_services "github.com/coldkeep/custody-api/pkg/domain/txverify/services"
)

type fakeAccounts struct {
	byID map[uuid.UUID]account_entities.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byID: map[uuid.UUID]account_entities.Account{}}
}

func (a *fakeAccounts) Create(_ context.Context, acct account_entities.Account) error {
	a.byID[acct.ID] = acct
	return nil
}

func (a *fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (account_entities.Account, error) {
	acct, ok := a.byID[id]
	if !ok {
		return account_entities.Account{}, common.NewErrNotFound(common.ResourceTypeAccount, "id", id)
	}
	return acct, nil
}

func (a *fakeAccounts) Update(_ context.Context, acct account_entities.Account) error {
	a.byID[acct.ID] = acct
	return nil
}

func (a *fakeAccounts) FindByActiveAuthPubkey(_ context.Context, _ string, _ []byte) (account_entities.Account, bool, error) {
	return account_entities.Account{}, false, nil
}

var _ account_out.AccountRepository = (*fakeAccounts)(nil)

type fakeRepo struct {
	byID map[uuid.UUID]txverify_entities.Verification
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[uuid.UUID]txverify_entities.Verification{}}
}

func (r *fakeRepo) Create(_ context.Context, v txverify_entities.Verification) error {
	v.Version = 1
	r.byID[v.ID] = v
	return nil
}

func (r *fakeRepo) Update(_ context.Context, v txverify_entities.Verification) error {
	current, ok := r.byID[v.ID]
	if !ok || current.Version != v.Version {
		return common.NewErrConflict("version mismatch")
	}
	v.Version++
	r.byID[v.ID] = v
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (txverify_entities.Verification, error) {
	v, ok := r.byID[id]
	if !ok {
		return txverify_entities.Verification{}, common.NewErrNotFound(common.ResourceTypeTxVerification, "id", id)
	}
	return v, nil
}

var _ txverify_out.Repository = (*fakeRepo)(nil)

type fakeHSM struct {
	grant []byte
	err   error
	calls int
}

func (h *fakeHSM) SignDigest(_ context.Context, _ string, digest []byte) ([]byte, error) {
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	if h.grant != nil {
		return h.grant, nil
	}
	return append([]byte("grant:"), digest...), nil
}

var _ txverify_out.HSMGrantor = (*fakeHSM)(nil)

func testAccount() account_entities.Account {
	return account_entities.Account{ID: uuid.New(), Kind: account_entities.KindFull}
}

func newTestService(repo *fakeRepo, accounts *fakeAccounts, hsm *fakeHSM, clock common.Clock) *txverify_services.Service {
	return txverify_services.NewService(repo, accounts, hsm, common.TxVerifyConfig{
		RequestTTL:          15 * time.Minute,
		ConfirmationBaseURL: "https://confirm.example.com",
	}, clock)
}

// samplePsbt is a minimal valid PSBT: magic bytes + an empty global
// unsigned-transaction map terminator, enough for psbt.NewFromRawBytes to
// parse an (empty) unsigned transaction.
var samplePsbtB64 = "cHNidP8BAAoCAAAAAAAAAAAAAA=="

func TestUpdatePolicy_RequiresBothProofs(t *testing.T) {
	repo := newFakeRepo()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())
	acct := testAccount()
	accounts.byID[acct.ID] = acct

	svc := newTestService(repo, accounts, &fakeHSM{}, clock)

	err := svc.UpdatePolicy(context.Background(), acct.ID, txverify_in.UpdatePolicyRequest{
		Kind:      account_entities.TxVerificationAlways,
		AppSigned: true,
		HwSigned:  false,
	})
	require.True(t, common.IsForbiddenError(err))
}

func TestUpdatePolicy_HappyPath_BumpsVersion(t *testing.T) {
	repo := newFakeRepo()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())
	acct := testAccount()
	accounts.byID[acct.ID] = acct

	svc := newTestService(repo, accounts, &fakeHSM{}, clock)

	req := txverify_in.UpdatePolicyRequest{
		Kind:       account_entities.TxVerificationThreshold,
		AmountSats: 10_000,
		AmountFiat: 1_000,
		Currency:   "USD",
		AppSigned:  true,
		HwSigned:   true,
	}
	require.NoError(t, svc.UpdatePolicy(context.Background(), acct.ID, req))

	updated, err := accounts.GetByID(context.Background(), acct.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.TxVerificationPolicy)
	require.Equal(t, int64(1), updated.TxVerificationPolicy.PolicyVersion)

	require.NoError(t, svc.UpdatePolicy(context.Background(), acct.ID, req))
	updated, err = accounts.GetByID(context.Background(), acct.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), updated.TxVerificationPolicy.PolicyVersion)
}

func TestInitiate_HappyPath(t *testing.T) {
	repo := newFakeRepo()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())
	acct := testAccount()
	accounts.byID[acct.ID] = acct

	svc := newTestService(repo, accounts, &fakeHSM{}, clock)

	psbt, err := decodeSamplePsbt()
	require.NoError(t, err)

	initiated, err := svc.Initiate(context.Background(), txverify_in.InitiateRequest{
		AccountID:    acct.ID,
		Psbt:         psbt,
		FiatCurrency: "USD",
		BitcoinUnit:  "SATOSHI",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, initiated.ID)
	require.Contains(t, initiated.ConfirmationURL, initiated.ID.String())
	require.Equal(t, clock.Now().Add(15*time.Minute), initiated.ExpiresAt)

	stored, err := repo.GetByID(context.Background(), initiated.ID)
	require.NoError(t, err)
	require.Equal(t, txverify_entities.StatusPending, stored.Status)
	require.NotEmpty(t, stored.ConfirmationToken)
}

func TestVerifyWithConfirmationToken_HappyPath(t *testing.T) {
	repo := newFakeRepo()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())
	acct := testAccount()
	accounts.byID[acct.ID] = acct

	hsm := &fakeHSM{}
	svc := newTestService(repo, accounts, hsm, clock)

	psbt, err := decodeSamplePsbt()
	require.NoError(t, err)

	initiated, err := svc.Initiate(context.Background(), txverify_in.InitiateRequest{
		AccountID: acct.ID,
		Psbt:      psbt,
	})
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), initiated.ID)
	require.NoError(t, err)

	verified, err := svc.VerifyWithConfirmationToken(context.Background(), initiated.ID, stored.ConfirmationToken)
	require.NoError(t, err)
	require.Equal(t, txverify_entities.StatusSuccess, verified.Status)
	require.NotEmpty(t, verified.SignedHWGrant)
	require.Equal(t, 1, hsm.calls)
}

func TestVerifyWithConfirmationToken_RejectsWrongToken(t *testing.T) {
	repo := newFakeRepo()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())
	acct := testAccount()
	accounts.byID[acct.ID] = acct

	svc := newTestService(repo, accounts, &fakeHSM{}, clock)

	psbt, err := decodeSamplePsbt()
	require.NoError(t, err)

	initiated, err := svc.Initiate(context.Background(), txverify_in.InitiateRequest{
		AccountID: acct.ID,
		Psbt:      psbt,
	})
	require.NoError(t, err)

	_, err = svc.VerifyWithConfirmationToken(context.Background(), initiated.ID, "wrong-token")
	require.True(t, common.IsForbiddenError(err))
}

func TestVerifyWithConfirmationToken_RejectsExpired(t *testing.T) {
	repo := newFakeRepo()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())
	acct := testAccount()
	accounts.byID[acct.ID] = acct

	svc := newTestService(repo, accounts, &fakeHSM{}, clock)

	psbt, err := decodeSamplePsbt()
	require.NoError(t, err)

	initiated, err := svc.Initiate(context.Background(), txverify_in.InitiateRequest{
		AccountID: acct.ID,
		Psbt:      psbt,
	})
	require.NoError(t, err)
	stored, err := repo.GetByID(context.Background(), initiated.ID)
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)

	_, err = svc.VerifyWithConfirmationToken(context.Background(), initiated.ID, stored.ConfirmationToken)
	require.True(t, common.IsConflictError(err))
}

func TestConsume_SingleUse(t *testing.T) {
	repo := newFakeRepo()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())
	acct := testAccount()
	accounts.byID[acct.ID] = acct

	svc := newTestService(repo, accounts, &fakeHSM{}, clock)

	psbt, err := decodeSamplePsbt()
	require.NoError(t, err)

	initiated, err := svc.Initiate(context.Background(), txverify_in.InitiateRequest{
		AccountID: acct.ID,
		Psbt:      psbt,
	})
	require.NoError(t, err)
	stored, err := repo.GetByID(context.Background(), initiated.ID)
	require.NoError(t, err)

	_, err = svc.VerifyWithConfirmationToken(context.Background(), initiated.ID, stored.ConfirmationToken)
	require.NoError(t, err)

	grant, err := svc.Consume(context.Background(), initiated.ID)
	require.NoError(t, err)
	require.NotEmpty(t, grant)

	_, err = svc.Consume(context.Background(), initiated.ID)
	require.True(t, common.IsConflictError(err))
}

func decodeSamplePsbt() ([]byte, error) {
	return base64.StdEncoding.DecodeString(samplePsbtB64)
}
