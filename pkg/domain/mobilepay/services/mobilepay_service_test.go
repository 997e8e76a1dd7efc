package mobilepay_services_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	common "github.com/coldkeep/custody-api/pkg/domain"
	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_out "github.com/coldkeep/custody-api/pkg/domain/account/ports/out"
	mobilepay_entities "github.com/coldkeep/custody-api/pkg/domain/mobilepay/entities"
	mobilepay_in "github.com/coldkeep/custody-api/pkg/domain/mobilepay/ports/in"
	mobilepay_out "github.com/coldkeep/custody-api/pkg/domain/mobilepay/ports/out"
	mobilepay_services "github.com/coldkeep/custody-api/pkg/domain/mobilepay/services"
	txverify_entities "github.com/coldkeep/custody-api/pkg/domain/txverify/entities"
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

type fakeRepo struct {
	byID map[uuid.UUID]mobilepay_entities.DailySpend
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[uuid.UUID]mobilepay_entities.DailySpend{}}
}

func (r *fakeRepo) Create(_ context.Context, d mobilepay_entities.DailySpend) error {
	d.Version = 1
	r.byID[d.ID] = d
	return nil
}

func (r *fakeRepo) Update(_ context.Context, d mobilepay_entities.DailySpend) error {
	current, ok := r.byID[d.ID]
	if !ok || current.Version != d.Version {
		return common.NewErrConflict("version mismatch")
	}
	d.Version++
	r.byID[d.ID] = d
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (mobilepay_entities.DailySpend, error) {
	d, ok := r.byID[id]
	if !ok {
		return mobilepay_entities.DailySpend{}, common.NewErrNotFound(common.ResourceTypeAccount, "id", id)
	}
	return d, nil
}

func (r *fakeRepo) FindByAccountDate(_ context.Context, accountID uuid.UUID, dateLocal string) (mobilepay_entities.DailySpend, bool, error) {
	id := mobilepay_entities.DailySpendID(accountID, dateLocal)
	d, ok := r.byID[id]
	return d, ok, nil
}

var _ mobilepay_out.Repository = (*fakeRepo)(nil)

type fakeHSM struct {
	err   error
	calls int
}

func (h *fakeHSM) CoSignPSBT(_ context.Context, _ string, psbt []byte) ([]byte, error) {
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	return psbt, nil
}

var _ mobilepay_out.HSMSigner = (*fakeHSM)(nil)

type fakeBroadcaster struct {
	calls int
}

func (b *fakeBroadcaster) Broadcast(_ context.Context, _ []byte) (string, error) {
	b.calls++
	return "deadbeef", nil
}

var _ mobilepay_out.Broadcaster = (*fakeBroadcaster)(nil)

type fakeScreener struct {
	blocked map[string]struct{}
}

func newFakeScreener(blocked ...string) *fakeScreener {
	s := &fakeScreener{blocked: map[string]struct{}{}}
	for _, addr := range blocked {
		s.blocked[addr] = struct{}{}
	}
	return s
}

func (s *fakeScreener) IsBlocked(address string) bool {
	_, ok := s.blocked[address]
	return ok
}

var _ mobilepay_out.Screener = (*fakeScreener)(nil)

// fakeExchange treats sats and fiat minor units as a 1:1 identity
// conversion, keeping test arithmetic simple.
type fakeExchange struct{}

func (fakeExchange) ConvertSatsToFiat(_ context.Context, amountSats int64, _ string) (int64, error) {
	return amountSats, nil
}

var _ mobilepay_out.ExchangeRate = (*fakeExchange)(nil)

type fakeGrants struct {
	byID         map[uuid.UUID]txverify_entities.Verification
	consumeCalls int
}

func newFakeGrants() *fakeGrants {
	return &fakeGrants{byID: map[uuid.UUID]txverify_entities.Verification{}}
}

func (g *fakeGrants) GetByID(_ context.Context, id uuid.UUID) (txverify_entities.Verification, error) {
	v, ok := g.byID[id]
	if !ok {
		return txverify_entities.Verification{}, common.NewErrNotFound(common.ResourceTypeTxVerification, "id", id)
	}
	return v, nil
}

func (g *fakeGrants) Consume(_ context.Context, id uuid.UUID) ([]byte, error) {
	g.consumeCalls++
	v := g.byID[id]
	return append([]byte("grant:"), v.PSBTDigest...), nil
}

var _ mobilepay_out.GrantConsumer = (*fakeGrants)(nil)

const testNetwork = account_entities.NetworkRegtest

var testAppPriv, testAppPub = func() (*btcec.PrivateKey, []byte) {
	seed := sha256.Sum256([]byte("mobilepay-test-app-key"))
	priv, pub := btcec.PrivKeyFromBytes(seed[:])
	return priv, pub.SerializeCompressed()
}()

func testAccount(keysetID uuid.UUID) account_entities.Account {
	authID := uuid.New()
	return account_entities.Account{
		ID:               uuid.New(),
		Kind:             account_entities.KindFull,
		ActiveAuthKeysID: authID,
		AuthKeysHistory: []account_entities.AuthKeys{
			{ID: authID, AppPubkey: testAppPub, HwPubkey: []byte("hw-pubkey")},
		},
		ActiveKeysetID: keysetID,
		KeysetHistory: []account_entities.SpendingKeyset{
			{ID: keysetID, Network: testNetwork},
		},
	}
}

func payToHashScript(t *testing.T, seed string) ([]byte, string) {
	t.Helper()
	hash := btcutil.Hash160([]byte(seed))
	addr, err := btcutil.NewAddressPubKeyHash(hash, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return script, addr.EncodeAddress()
}

// buildSignedPsbt builds a one-input, one-output PSBT whose single input is
// signed under testAppPub, matching what verifySingleAppSignature expects:
// exactly one partial signature per input, verifying under the account's
// app key. The input carries a P2WPKH WitnessUtxo for testAppPub so
// psbt.Finalize can finalize it. sweep marks the output as the signing
// wallet's own change (Bip32Derivation present), excluding it from net-send.
func buildSignedPsbt(t *testing.T, outputValue int64, outputScript []byte, sweep bool) []byte {
	t.Helper()

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Hash: chainhash.Hash{}, Index: 0}})
	tx.AddTxOut(wire.NewTxOut(outputValue, outputScript))

	pkt, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)

	if sweep {
		pkt.Outputs[0].Bip32Derivation = []*psbt.Bip32Derivation{
			{PubKey: testAppPub, Bip32Path: []uint32{0}},
		}
	}

	witnessAddr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(testAppPub), &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	witnessScript, err := txscript.PayToAddrScript(witnessAddr)
	require.NoError(t, err)
	pkt.Inputs[0].WitnessUtxo = wire.NewTxOut(outputValue+1_000, witnessScript)

	var preimage bytes.Buffer
	require.NoError(t, tx.Serialize(&preimage))
	preimage.WriteByte(0)

	sigDER, err := crypto.SignDER(testAppPriv.Serialize(), preimage.Bytes())
	require.NoError(t, err)

	pkt.Inputs[0].PartialSigs = []*psbt.PartialSig{
		{PubKey: testAppPub, Signature: append(sigDER, 0x01)},
	}

	var buf bytes.Buffer
	require.NoError(t, pkt.Serialize(&buf))
	return buf.Bytes()
}

func psbtDigestFor(t *testing.T, rawPsbt []byte) []byte {
	t.Helper()
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(rawPsbt), false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, pkt.UnsignedTx.Serialize(&buf))
	sum := sha256.Sum256(buf.Bytes())
	return sum[:]
}

func newTestService(
	repo *fakeRepo,
	accounts *fakeAccounts,
	hsm *fakeHSM,
	broadcaster *fakeBroadcaster,
	screener *fakeScreener,
	grants *fakeGrants,
	cfg common.MobilePayConfig,
	clock common.Clock,
) *mobilepay_services.Service {
	return mobilepay_services.NewService(repo, accounts, hsm, broadcaster, screener, fakeExchange{}, grants, cfg, clock)
}

func defaultConfig() common.MobilePayConfig {
	return common.MobilePayConfig{Enabled: true}
}

func TestSetupSpendingLimit_RequiresBothProofs(t *testing.T) {
	accounts := newFakeAccounts()
	acct := testAccount(uuid.New())
	accounts.byID[acct.ID] = acct

	svc := newTestService(newFakeRepo(), accounts, &fakeHSM{}, &fakeBroadcaster{}, newFakeScreener(), newFakeGrants(), defaultConfig(), common.NewFixedClock(time.Now().UTC()))

	err := svc.SetupSpendingLimit(context.Background(), acct.ID, mobilepay_in.SetupRequest{
		Active:     true,
		AmountSats: 100_000,
		Currency:   "USD",
		AppSigned:  true,
		HwSigned:   false,
	})
	require.True(t, common.IsForbiddenError(err))
}

func TestSetupSpendingLimit_HappyPath(t *testing.T) {
	accounts := newFakeAccounts()
	acct := testAccount(uuid.New())
	accounts.byID[acct.ID] = acct

	svc := newTestService(newFakeRepo(), accounts, &fakeHSM{}, &fakeBroadcaster{}, newFakeScreener(), newFakeGrants(), defaultConfig(), common.NewFixedClock(time.Now().UTC()))

	err := svc.SetupSpendingLimit(context.Background(), acct.ID, mobilepay_in.SetupRequest{
		Active:         true,
		AmountSats:     500_000,
		Currency:       "USD",
		TimeZoneOffset: -8,
		AppSigned:      true,
		HwSigned:       true,
	})
	require.NoError(t, err)

	updated, err := accounts.GetByID(context.Background(), acct.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.SpendingLimit)
	require.True(t, updated.SpendingLimit.Active)
	require.Equal(t, int64(500_000), updated.SpendingLimit.AmountSats)
}

func TestSign_MobilePayDisabled(t *testing.T) {
	keysetID := uuid.New()
	accounts := newFakeAccounts()
	acct := testAccount(keysetID)
	accounts.byID[acct.ID] = acct

	cfg := defaultConfig()
	cfg.Enabled = false
	svc := newTestService(newFakeRepo(), accounts, &fakeHSM{}, &fakeBroadcaster{}, newFakeScreener(), newFakeGrants(), cfg, common.NewFixedClock(time.Now().UTC()))

	_, err := svc.Sign(context.Background(), mobilepay_in.SignRequest{AccountID: acct.ID, KeysetID: keysetID})
	require.True(t, common.IsForbiddenError(err))
}

func TestSign_UnknownKeysetId(t *testing.T) {
	keysetID := uuid.New()
	accounts := newFakeAccounts()
	acct := testAccount(keysetID)
	accounts.byID[acct.ID] = acct

	svc := newTestService(newFakeRepo(), accounts, &fakeHSM{}, &fakeBroadcaster{}, newFakeScreener(), newFakeGrants(), defaultConfig(), common.NewFixedClock(time.Now().UTC()))

	_, err := svc.Sign(context.Background(), mobilepay_in.SignRequest{AccountID: acct.ID, KeysetID: uuid.New()})
	require.True(t, common.IsBadRequestError(err))
}

func TestSign_InvalidSignature_WrongKey(t *testing.T) {
	keysetID := uuid.New()
	accounts := newFakeAccounts()
	acct := testAccount(keysetID)
	accounts.byID[acct.ID] = acct

	destScript, _ := payToHashScript(t, "destination-1")
	rawPsbt := buildSignedPsbt(t, 10_000, destScript, false)

	// Corrupt the account's active app key so the signature no longer
	// verifies against it.
	acct.AuthKeysHistory[0].AppPubkey = []byte("not-the-real-key")
	accounts.byID[acct.ID] = acct

	hsm := &fakeHSM{}
	svc := newTestService(newFakeRepo(), accounts, hsm, &fakeBroadcaster{}, newFakeScreener(), newFakeGrants(), defaultConfig(), common.NewFixedClock(time.Now().UTC()))

	_, err := svc.Sign(context.Background(), mobilepay_in.SignRequest{AccountID: acct.ID, KeysetID: keysetID, Psbt: rawPsbt})
	require.True(t, common.IsBadRequestError(err))
	require.Equal(t, 0, hsm.calls)
}

func TestSign_PassesAdmission_ThenFailsAtCoSign(t *testing.T) {
	keysetID := uuid.New()
	accounts := newFakeAccounts()
	acct := testAccount(keysetID)
	acct.SpendingLimit = &account_entities.SpendingLimit{Active: true, AmountSats: 1_000_000, Currency: "USD"}
	accounts.byID[acct.ID] = acct

	destScript, _ := payToHashScript(t, "destination-2")
	rawPsbt := buildSignedPsbt(t, 10_000, destScript, false)

	hsm := &fakeHSM{err: context.DeadlineExceeded}
	broadcaster := &fakeBroadcaster{}
	svc := newTestService(newFakeRepo(), accounts, hsm, broadcaster, newFakeScreener(), newFakeGrants(), defaultConfig(), common.NewFixedClock(time.Now().UTC()))

	_, err := svc.Sign(context.Background(), mobilepay_in.SignRequest{AccountID: acct.ID, KeysetID: keysetID, Psbt: rawPsbt})
	require.Error(t, err)
	require.Equal(t, 1, hsm.calls)
	require.Equal(t, 0, broadcaster.calls)
}

func TestSign_SpendingLimitExceeded_RejectsBeforeHSM(t *testing.T) {
	keysetID := uuid.New()
	accounts := newFakeAccounts()
	acct := testAccount(keysetID)
	acct.SpendingLimit = &account_entities.SpendingLimit{Active: true, AmountSats: 1_000, Currency: "USD"}
	accounts.byID[acct.ID] = acct

	destScript, _ := payToHashScript(t, "destination-3")
	rawPsbt := buildSignedPsbt(t, 10_000, destScript, false)

	hsm := &fakeHSM{}
	svc := newTestService(newFakeRepo(), accounts, hsm, &fakeBroadcaster{}, newFakeScreener(), newFakeGrants(), defaultConfig(), common.NewFixedClock(time.Now().UTC()))

	_, err := svc.Sign(context.Background(), mobilepay_in.SignRequest{AccountID: acct.ID, KeysetID: keysetID, Psbt: rawPsbt})
	require.True(t, common.IsBadRequestError(err))
	require.Equal(t, 0, hsm.calls)
}

func TestSign_SweepBypassesLimit_ReachesHSM(t *testing.T) {
	keysetID := uuid.New()
	accounts := newFakeAccounts()
	acct := testAccount(keysetID)
	acct.SpendingLimit = &account_entities.SpendingLimit{Active: true, AmountSats: 1, Currency: "USD"}
	accounts.byID[acct.ID] = acct

	destScript, _ := payToHashScript(t, "destination-4")
	rawPsbt := buildSignedPsbt(t, 500_000, destScript, true) // sweep: own change, excluded from net-send

	hsm := &fakeHSM{err: context.DeadlineExceeded}
	svc := newTestService(newFakeRepo(), accounts, hsm, &fakeBroadcaster{}, newFakeScreener(), newFakeGrants(), defaultConfig(), common.NewFixedClock(time.Now().UTC()))

	_, err := svc.Sign(context.Background(), mobilepay_in.SignRequest{AccountID: acct.ID, KeysetID: keysetID, Psbt: rawPsbt})
	require.Error(t, err)
	require.Equal(t, 1, hsm.calls) // reached HSM: the tiny limit never got checked
}

func TestSign_SanctionsBlocked_RejectsBeforeHSM(t *testing.T) {
	keysetID := uuid.New()
	accounts := newFakeAccounts()
	acct := testAccount(keysetID)
	accounts.byID[acct.ID] = acct

	destScript, destAddr := payToHashScript(t, "destination-blocked")
	rawPsbt := buildSignedPsbt(t, 10_000, destScript, false)

	hsm := &fakeHSM{}
	svc := newTestService(newFakeRepo(), accounts, hsm, &fakeBroadcaster{}, newFakeScreener(destAddr), newFakeGrants(), defaultConfig(), common.NewFixedClock(time.Now().UTC()))

	_, err := svc.Sign(context.Background(), mobilepay_in.SignRequest{AccountID: acct.ID, KeysetID: keysetID, Psbt: rawPsbt})
	require.True(t, common.IsBlockedError(err))
	require.Equal(t, 0, hsm.calls)
}

func TestSign_VerificationRequired_RejectsBeforeHSM(t *testing.T) {
	keysetID := uuid.New()
	accounts := newFakeAccounts()
	acct := testAccount(keysetID)
	acct.TxVerificationPolicy = &account_entities.TxVerificationPolicy{Kind: account_entities.TxVerificationAlways, Currency: "USD"}
	accounts.byID[acct.ID] = acct

	destScript, _ := payToHashScript(t, "destination-5")
	rawPsbt := buildSignedPsbt(t, 10_000, destScript, false)

	hsm := &fakeHSM{}
	svc := newTestService(newFakeRepo(), accounts, hsm, &fakeBroadcaster{}, newFakeScreener(), newFakeGrants(), defaultConfig(), common.NewFixedClock(time.Now().UTC()))

	_, err := svc.Sign(context.Background(), mobilepay_in.SignRequest{AccountID: acct.ID, KeysetID: keysetID, Psbt: rawPsbt})
	require.True(t, common.IsBadRequestError(err))
	require.Equal(t, 0, hsm.calls)
}

func TestSign_ValidGrantBypassesLimitAndVerification_ReachesHSM(t *testing.T) {
	keysetID := uuid.New()
	accounts := newFakeAccounts()
	acct := testAccount(keysetID)
	acct.SpendingLimit = &account_entities.SpendingLimit{Active: true, AmountSats: 1, Currency: "USD"}
	acct.TxVerificationPolicy = &account_entities.TxVerificationPolicy{Kind: account_entities.TxVerificationAlways, Currency: "USD", PolicyVersion: 1}
	accounts.byID[acct.ID] = acct

	destScript, _ := payToHashScript(t, "destination-6")
	rawPsbt := buildSignedPsbt(t, 500_000, destScript, false)
	digest := psbtDigestFor(t, rawPsbt)

	grants := newFakeGrants()
	verificationID := uuid.New()
	grants.byID[verificationID] = txverify_entities.Verification{
		ID:            verificationID,
		AccountID:     acct.ID,
		PSBTDigest:    digest,
		PolicyVersion: 1,
	}

	hsm := &fakeHSM{err: context.DeadlineExceeded}
	svc := newTestService(newFakeRepo(), accounts, hsm, &fakeBroadcaster{}, newFakeScreener(), grants, defaultConfig(), common.NewFixedClock(time.Now().UTC()))

	_, err := svc.Sign(context.Background(), mobilepay_in.SignRequest{
		AccountID:      acct.ID,
		KeysetID:       keysetID,
		Psbt:           rawPsbt,
		VerificationID: &verificationID,
	})
	require.Error(t, err)
	require.Equal(t, 1, hsm.calls)
	require.Equal(t, 1, grants.consumeCalls)
}

func TestSign_RetryOfIdenticalPsbt_ShortCircuitsWithoutReHSMOrDoubleCount(t *testing.T) {
	keysetID := uuid.New()
	accounts := newFakeAccounts()
	acct := testAccount(keysetID)
	acct.SpendingLimit = &account_entities.SpendingLimit{Active: true, AmountSats: 10_000, Currency: "USD"}
	accounts.byID[acct.ID] = acct

	destScript, _ := payToHashScript(t, "destination-retry")
	rawPsbt := buildSignedPsbt(t, 10_000, destScript, false)

	hsm := &fakeHSM{}
	broadcaster := &fakeBroadcaster{}
	repo := newFakeRepo()
	clock := common.NewFixedClock(time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC))
	svc := newTestService(repo, accounts, hsm, broadcaster, newFakeScreener(), newFakeGrants(), defaultConfig(), clock)

	first, err := svc.Sign(context.Background(), mobilepay_in.SignRequest{AccountID: acct.ID, KeysetID: keysetID, Psbt: rawPsbt})
	require.NoError(t, err)
	require.Equal(t, 1, hsm.calls)
	require.Equal(t, 1, broadcaster.calls)

	// A second, identical request (same PSBT) would, if the limit check ran
	// again, sum the ledger's already-recorded net-send a second time and
	// trip the 10,000 sat limit. The digest-keyed pre-check must return the
	// first response before that happens.
	second, err := svc.Sign(context.Background(), mobilepay_in.SignRequest{AccountID: acct.ID, KeysetID: keysetID, Psbt: rawPsbt})
	require.NoError(t, err)
	require.Equal(t, first.Txid, second.Txid)
	require.Equal(t, first.RawTxHex, second.RawTxHex)
	require.Equal(t, 1, hsm.calls)
	require.Equal(t, 1, broadcaster.calls)

	spend, found, err := repo.FindByAccountDate(context.Background(), acct.ID, "2026-07-29")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(10_000), spend.TotalNetSentSats)
}

func TestSign_InvalidGrant_WrongAccount_Rejects(t *testing.T) {
	keysetID := uuid.New()
	accounts := newFakeAccounts()
	acct := testAccount(keysetID)
	accounts.byID[acct.ID] = acct

	destScript, _ := payToHashScript(t, "destination-7")
	rawPsbt := buildSignedPsbt(t, 10_000, destScript, false)
	digest := psbtDigestFor(t, rawPsbt)

	grants := newFakeGrants()
	verificationID := uuid.New()
	grants.byID[verificationID] = txverify_entities.Verification{
		ID:         verificationID,
		AccountID:  uuid.New(), // different account
		PSBTDigest: digest,
	}

	hsm := &fakeHSM{}
	svc := newTestService(newFakeRepo(), accounts, hsm, &fakeBroadcaster{}, newFakeScreener(), grants, defaultConfig(), common.NewFixedClock(time.Now().UTC()))

	_, err := svc.Sign(context.Background(), mobilepay_in.SignRequest{
		AccountID:      acct.ID,
		KeysetID:       keysetID,
		Psbt:           rawPsbt,
		VerificationID: &verificationID,
	})
	require.True(t, common.IsBadRequestError(err))
	require.Equal(t, 0, hsm.calls)
	require.Equal(t, 0, grants.consumeCalls)
}
