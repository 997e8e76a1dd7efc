package inheritance_services_test

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	common "github.com/coldkeep/custody-api/pkg/domain"
	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_out "github.com/coldkeep/custody-api/pkg/domain/account/ports/out"
	inheritance_entities "github.com/coldkeep/custody-api/pkg/domain/inheritance/entities"
	inheritance_in "github.com/coldkeep/custody-api/pkg/domain/inheritance/ports/in"
	inheritance_out "github.com/coldkeep/custody-api/pkg/domain/inheritance/ports/out"
	inheritance_services "github.com/coldkeep/custody-api/pkg/domain/inheritance/services"
	relationship_entities "github.com/coldkeep/custody-api/pkg/domain/relationship/entities"
	relationship_out "github.com/coldkeep/custody-api/pkg/domain/relationship/ports/out"
	"github.com/coldkeep/custody-api/pkg/infra/crypto"
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

type fakeRelationships struct {
	byID map[uuid.UUID]relationship_entities.Relationship
}

func newFakeRelationships() *fakeRelationships {
	return &fakeRelationships{byID: map[uuid.UUID]relationship_entities.Relationship{}}
}

func (r *fakeRelationships) Create(_ context.Context, rel relationship_entities.Relationship) error {
	r.byID[rel.ID] = rel
	return nil
}

func (r *fakeRelationships) Update(_ context.Context, rel relationship_entities.Relationship) error {
	r.byID[rel.ID] = rel
	return nil
}

func (r *fakeRelationships) GetByID(_ context.Context, id uuid.UUID) (relationship_entities.Relationship, error) {
	rel, ok := r.byID[id]
	if !ok {
		return relationship_entities.Relationship{}, common.NewErrNotFound(common.ResourceTypeRelationship, "id", id)
	}
	return rel, nil
}

func (r *fakeRelationships) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.byID, id)
	return nil
}

func (r *fakeRelationships) FindByCustomer(_ context.Context, _ uuid.UUID) ([]relationship_entities.Relationship, error) {
	return nil, nil
}

func (r *fakeRelationships) FindByTrustedContact(_ context.Context, _ uuid.UUID) ([]relationship_entities.Relationship, error) {
	return nil, nil
}

var _ relationship_out.Repository = (*fakeRelationships)(nil)

type fakeClaimRepo struct {
	claims   map[uuid.UUID]inheritance_entities.Claim
	packages map[uuid.UUID]inheritance_entities.Package
}

func newFakeClaimRepo() *fakeClaimRepo {
	return &fakeClaimRepo{
		claims:   map[uuid.UUID]inheritance_entities.Claim{},
		packages: map[uuid.UUID]inheritance_entities.Package{},
	}
}

func (r *fakeClaimRepo) Create(_ context.Context, c inheritance_entities.Claim) error {
	c.Version = 1
	r.claims[c.ID] = c
	return nil
}

func (r *fakeClaimRepo) Update(_ context.Context, c inheritance_entities.Claim) error {
	current, ok := r.claims[c.ID]
	if !ok || current.Version != c.Version {
		return common.NewErrConflict("version mismatch")
	}
	c.Version++
	r.claims[c.ID] = c
	return nil
}

func (r *fakeClaimRepo) GetByID(_ context.Context, id uuid.UUID) (inheritance_entities.Claim, error) {
	c, ok := r.claims[id]
	if !ok {
		return inheritance_entities.Claim{}, common.NewErrNotFound(common.ResourceTypeInheritance, "id", id)
	}
	return c, nil
}

func (r *fakeClaimRepo) FindNonTerminalByRelationship(_ context.Context, relationshipID uuid.UUID) (inheritance_entities.Claim, bool, error) {
	for _, c := range r.claims {
		if c.RelationshipID == relationshipID && !c.IsTerminal() {
			return c, true, nil
		}
	}
	return inheritance_entities.Claim{}, false, nil
}

func (r *fakeClaimRepo) FindPackageByRelationship(_ context.Context, relationshipID uuid.UUID) (inheritance_entities.Package, bool, error) {
	pkg, ok := r.packages[relationshipID]
	return pkg, ok, nil
}

func (r *fakeClaimRepo) UpsertPackage(_ context.Context, relationshipID uuid.UUID, pkg inheritance_entities.Package) error {
	r.packages[relationshipID] = pkg
	return nil
}

var _ inheritance_out.Repository = (*fakeClaimRepo)(nil)

type fakeHSM struct {
	signed []byte
	err    error
}

func (h *fakeHSM) CoSignPSBT(_ context.Context, _ string, psbt []byte) ([]byte, error) {
	if h.err != nil {
		return nil, h.err
	}
	if h.signed != nil {
		return h.signed, nil
	}
	return psbt, nil
}

var _ inheritance_out.HSMSigner = (*fakeHSM)(nil)

type fakeBroadcaster struct {
	txid string
	err  error
	sent [][]byte
}

func (b *fakeBroadcaster) Broadcast(_ context.Context, rawTx []byte) (string, error) {
	b.sent = append(b.sent, rawTx)
	if b.err != nil {
		return "", b.err
	}
	if b.txid != "" {
		return b.txid, nil
	}
	return "deadbeef", nil
}

var _ inheritance_out.Broadcaster = (*fakeBroadcaster)(nil)

type fakeScreener struct {
	blocked map[string]struct{}
}

func (s *fakeScreener) IsBlocked(address string) bool {
	if s.blocked == nil {
		return false
	}
	_, ok := s.blocked[address]
	return ok
}

var _ inheritance_out.Screener = (*fakeScreener)(nil)

func endorsedBeneficiaryRelationship(benefactorID, beneficiaryID uuid.UUID) relationship_entities.Relationship {
	return relationship_entities.Relationship{
		ID:                      uuid.New(),
		CustomerAccountID:       benefactorID,
		TrustedContactAccountID: beneficiaryID,
		Status:                  relationship_entities.StatusEndorsed,
		Roles:                   []relationship_entities.Role{relationship_entities.RoleBeneficiary},
	}
}

func fullAccount(isTest bool) account_entities.Account {
	return account_entities.Account{
		ID:             uuid.New(),
		Kind:           account_entities.KindFull,
		IsTestAccount:  isTest,
		ActiveKeysetID: uuid.Nil,
	}
}

func withActiveKeyset(acct account_entities.Account) account_entities.Account {
	keyset := account_entities.SpendingKeyset{
		ID:      uuid.New(),
		Network: account_entities.NetworkBitcoin,
	}
	acct.ActiveKeysetID = keyset.ID
	acct.KeysetHistory = []account_entities.SpendingKeyset{keyset}
	return acct
}

func newTestService(
	repo *fakeClaimRepo,
	relationships *fakeRelationships,
	accounts *fakeAccounts,
	hsm inheritance_out.HSMSigner,
	broadcaster inheritance_out.Broadcaster,
	screener inheritance_out.Screener,
	clock common.Clock,
) *inheritance_services.Service {
	return inheritance_services.NewService(
		repo, relationships, accounts, hsm, broadcaster, screener,
		nil, common.InheritanceConfig{ClaimLockPeriod: 6 * 30 * 24 * time.Hour}, clock,
	)
}

func TestStart_HappyPath(t *testing.T) {
	repo := newFakeClaimRepo()
	relationships := newFakeRelationships()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())

	benefactor := fullAccount(false)
	beneficiary := fullAccount(false)
	accounts.byID[benefactor.ID] = benefactor
	accounts.byID[beneficiary.ID] = beneficiary

	rel := endorsedBeneficiaryRelationship(benefactor.ID, beneficiary.ID)
	relationships.byID[rel.ID] = rel

	svc := newTestService(repo, relationships, accounts, &fakeHSM{}, &fakeBroadcaster{}, &fakeScreener{}, clock)

	claim, err := svc.Start(context.Background(), inheritance_in.StartRequest{
		BeneficiaryAccountID: beneficiary.ID,
		RelationshipID:       rel.ID,
	})
	require.NoError(t, err)
	require.Equal(t, inheritance_entities.StatusPending, claim.Status)
	require.Equal(t, benefactor.ID, claim.BenefactorID)
	require.True(t, claim.DelayEndTime.After(clock.Now()))
}

func TestStart_RejectsWrongBeneficiary(t *testing.T) {
	repo := newFakeClaimRepo()
	relationships := newFakeRelationships()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())

	benefactor := fullAccount(false)
	beneficiary := fullAccount(false)
	imposter := fullAccount(false)
	accounts.byID[benefactor.ID] = benefactor
	accounts.byID[beneficiary.ID] = beneficiary
	accounts.byID[imposter.ID] = imposter

	rel := endorsedBeneficiaryRelationship(benefactor.ID, beneficiary.ID)
	relationships.byID[rel.ID] = rel

	svc := newTestService(repo, relationships, accounts, &fakeHSM{}, &fakeBroadcaster{}, &fakeScreener{}, clock)

	_, err := svc.Start(context.Background(), inheritance_in.StartRequest{
		BeneficiaryAccountID: imposter.ID,
		RelationshipID:       rel.ID,
	})
	require.True(t, common.IsForbiddenError(err))
}

func TestStart_RejectsNonEndorsedRelationship(t *testing.T) {
	repo := newFakeClaimRepo()
	relationships := newFakeRelationships()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())

	benefactor := fullAccount(false)
	beneficiary := fullAccount(false)
	accounts.byID[benefactor.ID] = benefactor
	accounts.byID[beneficiary.ID] = beneficiary

	rel := endorsedBeneficiaryRelationship(benefactor.ID, beneficiary.ID)
	rel.Status = relationship_entities.StatusUnendorsed
	relationships.byID[rel.ID] = rel

	svc := newTestService(repo, relationships, accounts, &fakeHSM{}, &fakeBroadcaster{}, &fakeScreener{}, clock)

	_, err := svc.Start(context.Background(), inheritance_in.StartRequest{
		BeneficiaryAccountID: beneficiary.ID,
		RelationshipID:       rel.ID,
	})
	require.True(t, common.IsForbiddenError(err))
}

func TestStart_RejectsLiteBeneficiaryAccount(t *testing.T) {
	repo := newFakeClaimRepo()
	relationships := newFakeRelationships()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())

	benefactor := fullAccount(false)
	beneficiary := fullAccount(false)
	beneficiary.Kind = account_entities.KindLite
	accounts.byID[benefactor.ID] = benefactor
	accounts.byID[beneficiary.ID] = beneficiary

	rel := endorsedBeneficiaryRelationship(benefactor.ID, beneficiary.ID)
	relationships.byID[rel.ID] = rel

	svc := newTestService(repo, relationships, accounts, &fakeHSM{}, &fakeBroadcaster{}, &fakeScreener{}, clock)

	_, err := svc.Start(context.Background(), inheritance_in.StartRequest{
		BeneficiaryAccountID: beneficiary.ID,
		RelationshipID:       rel.ID,
	})
	require.True(t, common.IsForbiddenError(err))
}

func TestStart_RejectsDuplicateNonTerminalClaim(t *testing.T) {
	repo := newFakeClaimRepo()
	relationships := newFakeRelationships()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())

	benefactor := fullAccount(false)
	beneficiary := fullAccount(false)
	accounts.byID[benefactor.ID] = benefactor
	accounts.byID[beneficiary.ID] = beneficiary

	rel := endorsedBeneficiaryRelationship(benefactor.ID, beneficiary.ID)
	relationships.byID[rel.ID] = rel

	svc := newTestService(repo, relationships, accounts, &fakeHSM{}, &fakeBroadcaster{}, &fakeScreener{}, clock)

	_, err := svc.Start(context.Background(), inheritance_in.StartRequest{
		BeneficiaryAccountID: beneficiary.ID,
		RelationshipID:       rel.ID,
	})
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), inheritance_in.StartRequest{
		BeneficiaryAccountID: beneficiary.ID,
		RelationshipID:       rel.ID,
	})
	require.True(t, common.IsConflictError(err))
}

func lockedClaimFixture(t *testing.T) (
	*inheritance_services.Service, *fakeClaimRepo, *fakeBroadcaster, *fakeHSM, *fakeScreener,
	inheritance_entities.Claim, *btcec.PrivateKey, *btcec.PrivateKey, common.Clock,
) {
	repo := newFakeClaimRepo()
	relationships := newFakeRelationships()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())

	benefactor := withActiveKeyset(fullAccount(true))
	beneficiary := fullAccount(true)
	accounts.byID[benefactor.ID] = benefactor
	accounts.byID[beneficiary.ID] = beneficiary

	rel := endorsedBeneficiaryRelationship(benefactor.ID, beneficiary.ID)
	relationships.byID[rel.ID] = rel

	hsm := &fakeHSM{}
	broadcaster := &fakeBroadcaster{}
	screener := &fakeScreener{}
	svc := newTestService(repo, relationships, accounts, hsm, broadcaster, screener, clock)

	require.NoError(t, repo.UpsertPackage(context.Background(), rel.ID, inheritance_entities.Package{
		SealedDEK:       "dek",
		SealedMobileKey: "mobile-key",
	}))

	claim, err := svc.Start(context.Background(), inheritance_in.StartRequest{
		BeneficiaryAccountID: beneficiary.ID,
		RelationshipID:       rel.ID,
	})
	require.NoError(t, err)

	clock.Advance(31 * time.Second) // clears the test-account lock period

	appPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	hwPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	destApp := appPriv.PubKey().SerializeCompressed()
	destHw := hwPriv.PubKey().SerializeCompressed()

	candidate := claim
	candidate.DestAppPubkey = destApp
	candidate.DestHwPubkey = destHw
	challenge := candidate.ExpectedLockChallenge()

	appSig, err := crypto.SignDER(appPriv.Serialize(), challenge)
	require.NoError(t, err)
	hwSig, err := crypto.SignDER(hwPriv.Serialize(), challenge)
	require.NoError(t, err)

	locked, err := svc.Lock(context.Background(), inheritance_in.LockRequest{
		ClaimID:              claim.ID,
		BeneficiaryAccountID: beneficiary.ID,
		DestAppPubkey:        destApp,
		DestHwPubkey:         destHw,
		AppSig:               appSig,
		HwSig:                hwSig,
	})
	require.NoError(t, err)
	require.Equal(t, inheritance_entities.StatusLocked, locked.Status)

	return svc, repo, broadcaster, hsm, screener, locked, appPriv, hwPriv, clock
}

func TestLock_HappyPath(t *testing.T) {
	_, _, _, _, _, locked, _, _, _ := lockedClaimFixture(t)
	require.NotNil(t, locked.BenefactorKeyset)
	require.NotNil(t, locked.PackageAttached)
}

func TestLock_RejectsBeforeDelayElapsed(t *testing.T) {
	repo := newFakeClaimRepo()
	relationships := newFakeRelationships()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())

	benefactor := withActiveKeyset(fullAccount(false))
	beneficiary := fullAccount(false)
	accounts.byID[benefactor.ID] = benefactor
	accounts.byID[beneficiary.ID] = beneficiary

	rel := endorsedBeneficiaryRelationship(benefactor.ID, beneficiary.ID)
	relationships.byID[rel.ID] = rel

	svc := newTestService(repo, relationships, accounts, &fakeHSM{}, &fakeBroadcaster{}, &fakeScreener{}, clock)

	claim, err := svc.Start(context.Background(), inheritance_in.StartRequest{
		BeneficiaryAccountID: beneficiary.ID,
		RelationshipID:       rel.ID,
	})
	require.NoError(t, err)

	_, err = svc.Lock(context.Background(), inheritance_in.LockRequest{
		ClaimID:              claim.ID,
		BeneficiaryAccountID: beneficiary.ID,
		DestAppPubkey:        []byte("app"),
		DestHwPubkey:         []byte("hw"),
		AppSig:               []byte("sig"),
		HwSig:                []byte("sig"),
	})
	require.True(t, common.IsForbiddenError(err))
}

func TestLock_RejectsWithoutUploadedPackage(t *testing.T) {
	repo := newFakeClaimRepo()
	relationships := newFakeRelationships()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())

	benefactor := withActiveKeyset(fullAccount(true))
	beneficiary := fullAccount(true)
	accounts.byID[benefactor.ID] = benefactor
	accounts.byID[beneficiary.ID] = beneficiary

	rel := endorsedBeneficiaryRelationship(benefactor.ID, beneficiary.ID)
	relationships.byID[rel.ID] = rel

	svc := newTestService(repo, relationships, accounts, &fakeHSM{}, &fakeBroadcaster{}, &fakeScreener{}, clock)

	claim, err := svc.Start(context.Background(), inheritance_in.StartRequest{
		BeneficiaryAccountID: beneficiary.ID,
		RelationshipID:       rel.ID,
	})
	require.NoError(t, err)
	clock.Advance(31 * time.Second)

	appPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	hwPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	destApp := appPriv.PubKey().SerializeCompressed()
	destHw := hwPriv.PubKey().SerializeCompressed()

	candidate := claim
	candidate.DestAppPubkey = destApp
	candidate.DestHwPubkey = destHw
	challenge := candidate.ExpectedLockChallenge()
	appSig, err := crypto.SignDER(appPriv.Serialize(), challenge)
	require.NoError(t, err)
	hwSig, err := crypto.SignDER(hwPriv.Serialize(), challenge)
	require.NoError(t, err)

	_, err = svc.Lock(context.Background(), inheritance_in.LockRequest{
		ClaimID:              claim.ID,
		BeneficiaryAccountID: beneficiary.ID,
		DestAppPubkey:        destApp,
		DestHwPubkey:         destHw,
		AppSig:               appSig,
		HwSig:                hwSig,
	})
	require.True(t, common.IsConflictError(err))
}

func TestComplete_WithoutPsbt_HappyPath(t *testing.T) {
	svc, _, broadcaster, _, _, locked, _, _, _ := lockedClaimFixture(t)

	completed, err := svc.Complete(context.Background(), inheritance_in.CompleteRequest{
		ClaimID:              locked.ID,
		BeneficiaryAccountID: locked.BeneficiaryID,
	})
	require.NoError(t, err)
	require.Equal(t, inheritance_entities.StatusCompleted, completed.Status)
	require.Equal(t, inheritance_entities.CompletionWithoutPsbt, completed.CompletionKind)
	require.Empty(t, broadcaster.sent)
}

func TestCancel_ByBenefactor_FromPending(t *testing.T) {
	repo := newFakeClaimRepo()
	relationships := newFakeRelationships()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())

	benefactor := fullAccount(false)
	beneficiary := fullAccount(false)
	accounts.byID[benefactor.ID] = benefactor
	accounts.byID[beneficiary.ID] = beneficiary

	rel := endorsedBeneficiaryRelationship(benefactor.ID, beneficiary.ID)
	relationships.byID[rel.ID] = rel

	svc := newTestService(repo, relationships, accounts, &fakeHSM{}, &fakeBroadcaster{}, &fakeScreener{}, clock)

	claim, err := svc.Start(context.Background(), inheritance_in.StartRequest{
		BeneficiaryAccountID: beneficiary.ID,
		RelationshipID:       rel.ID,
	})
	require.NoError(t, err)

	canceled, err := svc.Cancel(context.Background(), benefactor.ID, claim.ID)
	require.NoError(t, err)
	require.Equal(t, inheritance_entities.StatusCanceled, canceled.Status)
}

func TestCancel_RejectedOnceLocked(t *testing.T) {
	svc, _, _, _, _, locked, _, _, _ := lockedClaimFixture(t)

	_, err := svc.Cancel(context.Background(), locked.BenefactorID, locked.ID)
	require.True(t, common.IsForbiddenError(err))
}

func TestUploadPackage_HappyPath(t *testing.T) {
	repo := newFakeClaimRepo()
	relationships := newFakeRelationships()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())

	benefactor := fullAccount(false)
	beneficiary := fullAccount(false)
	accounts.byID[benefactor.ID] = benefactor
	accounts.byID[beneficiary.ID] = beneficiary

	rel := endorsedBeneficiaryRelationship(benefactor.ID, beneficiary.ID)
	relationships.byID[rel.ID] = rel

	svc := newTestService(repo, relationships, accounts, &fakeHSM{}, &fakeBroadcaster{}, &fakeScreener{}, clock)

	err := svc.UploadPackage(context.Background(), inheritance_in.PackageUploadRequest{
		BenefactorAccountID: benefactor.ID,
		RelationshipID:      rel.ID,
		SealedDEK:           "dek",
		SealedMobileKey:     "mobile-key",
	})
	require.NoError(t, err)

	pkg, found, err := repo.FindPackageByRelationship(context.Background(), rel.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "dek", pkg.SealedDEK)
}

func TestUploadPackage_RejectsNonEndorsedRelationship(t *testing.T) {
	repo := newFakeClaimRepo()
	relationships := newFakeRelationships()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())

	benefactor := fullAccount(false)
	beneficiary := fullAccount(false)
	accounts.byID[benefactor.ID] = benefactor
	accounts.byID[beneficiary.ID] = beneficiary

	rel := endorsedBeneficiaryRelationship(benefactor.ID, beneficiary.ID)
	rel.Status = relationship_entities.StatusUnendorsed
	relationships.byID[rel.ID] = rel

	svc := newTestService(repo, relationships, accounts, &fakeHSM{}, &fakeBroadcaster{}, &fakeScreener{}, clock)

	err := svc.UploadPackage(context.Background(), inheritance_in.PackageUploadRequest{
		BenefactorAccountID: benefactor.ID,
		RelationshipID:      rel.ID,
		SealedDEK:           "dek",
		SealedMobileKey:     "mobile-key",
	})
	require.True(t, common.IsForbiddenError(err))
}

func TestHasIncompleteClaim(t *testing.T) {
	repo := newFakeClaimRepo()
	relationships := newFakeRelationships()
	accounts := newFakeAccounts()
	clock := common.NewFixedClock(time.Now().UTC())

	benefactor := fullAccount(false)
	beneficiary := fullAccount(false)
	accounts.byID[benefactor.ID] = benefactor
	accounts.byID[beneficiary.ID] = beneficiary

	rel := endorsedBeneficiaryRelationship(benefactor.ID, beneficiary.ID)
	relationships.byID[rel.ID] = rel

	svc := newTestService(repo, relationships, accounts, &fakeHSM{}, &fakeBroadcaster{}, &fakeScreener{}, clock)

	asBenefactor, asBeneficiary, err := svc.HasIncompleteClaim(context.Background(), rel.ID)
	require.NoError(t, err)
	require.False(t, asBenefactor)
	require.False(t, asBeneficiary)

	_, err = svc.Start(context.Background(), inheritance_in.StartRequest{
		BeneficiaryAccountID: beneficiary.ID,
		RelationshipID:       rel.ID,
	})
	require.NoError(t, err)

	asBenefactor, asBeneficiary, err = svc.HasIncompleteClaim(context.Background(), rel.ID)
	require.NoError(t, err)
	require.True(t, asBenefactor)
	require.True(t, asBeneficiary)
}
