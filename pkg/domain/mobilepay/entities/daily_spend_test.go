package mobilepay_entities_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	mobilepay_entities "github.com/coldkeep/custody-api/pkg/domain/mobilepay/entities"
)

func TestDailySpendID_DeterministicPerAccountAndDate(t *testing.T) {
	accountID := uuid.New()

	first := mobilepay_entities.DailySpendID(accountID, "2026-07-29")
	second := mobilepay_entities.DailySpendID(accountID, "2026-07-29")
	require.Equal(t, first, second)

	differentDate := mobilepay_entities.DailySpendID(accountID, "2026-07-30")
	require.NotEqual(t, first, differentDate)

	differentAccount := mobilepay_entities.DailySpendID(uuid.New(), "2026-07-29")
	require.NotEqual(t, first, differentAccount)
}

func TestDailySpend_WithRecordedTx_AccumulatesWithoutMutatingReceiver(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	original := mobilepay_entities.DailySpend{
		ID:               uuid.New(),
		TotalNetSentSats: 1_000,
		SignedTxs:        []mobilepay_entities.SignedTx{{Txid: "tx-a", NetSentSats: 1_000, PsbtDigest: "digest-a"}},
		UpdatedAt:        now.Add(-time.Hour),
	}

	later := now
	next := original.WithRecordedTx("tx-b", "digest-b", "feedface", 2_500, later)

	require.Len(t, next.SignedTxs, 2)
	require.Equal(t, int64(3_500), next.TotalNetSentSats)
	require.Equal(t, later, next.UpdatedAt)

	// original must be untouched: WithRecordedTx is a value-receiver,
	// copy-returning method.
	require.Len(t, original.SignedTxs, 1)
	require.Equal(t, int64(1_000), original.TotalNetSentSats)
	require.Equal(t, now.Add(-time.Hour), original.UpdatedAt)
}

func TestDailySpend_WithRecordedTx_DoesNotAliasUnderlyingArray(t *testing.T) {
	base := mobilepay_entities.DailySpend{SignedTxs: []mobilepay_entities.SignedTx{{Txid: "tx-a", NetSentSats: 1}}}

	at := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	branchA := base.WithRecordedTx("tx-b", "digest-b", "feedface", 1, at)
	branchB := base.WithRecordedTx("tx-c", "digest-c", "feedface", 1, at)

	require.Len(t, branchA.SignedTxs, 2)
	require.Len(t, branchB.SignedTxs, 2)
	require.Equal(t, "tx-b", branchA.SignedTxs[1].Txid)
	require.Equal(t, "tx-c", branchB.SignedTxs[1].Txid)
}

func TestDailySpend_FindTx(t *testing.T) {
	spend := mobilepay_entities.DailySpend{
		SignedTxs: []mobilepay_entities.SignedTx{{Txid: "tx-a", NetSentSats: 500}},
	}

	found, ok := spend.FindTx("tx-a")
	require.True(t, ok)
	require.Equal(t, int64(500), found.NetSentSats)

	_, ok = spend.FindTx("tx-nonexistent")
	require.False(t, ok)
}

func TestDailySpend_FindTx_EmptyLedger(t *testing.T) {
	var spend mobilepay_entities.DailySpend

	_, ok := spend.FindTx("anything")
	require.False(t, ok)
}

func TestDailySpend_FindByDigest(t *testing.T) {
	spend := mobilepay_entities.DailySpend{
		SignedTxs: []mobilepay_entities.SignedTx{
			{Txid: "tx-a", NetSentSats: 500, PsbtDigest: "digest-a", RawTxHex: "deadbeef"},
		},
	}

	found, ok := spend.FindByDigest("digest-a")
	require.True(t, ok)
	require.Equal(t, "tx-a", found.Txid)
	require.Equal(t, "deadbeef", found.RawTxHex)

	_, ok = spend.FindByDigest("digest-nonexistent")
	require.False(t, ok)
}
