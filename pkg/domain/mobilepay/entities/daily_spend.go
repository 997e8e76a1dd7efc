// Package mobilepay_entities holds the daily-spend ledger Mobile-Pay
// admission is gated against (spec.md §4.10, §5).
package mobilepay_entities

import (
	"time"

	"github.com/google/uuid"
)

// dailySpendNamespace is a fixed namespace UUID so DailySpendID is
// deterministic for a given (account_id, date_local) pair, letting the
// sign endpoint upsert the day's record without a prior lookup.
var dailySpendNamespace = uuid.MustParse("8f5f6b2a-8f0a-4c1a-9c8b-9a0f2b6c3d1e")

// DailySpendID derives the deterministic id for an account's local-day
// spend record.
func DailySpendID(accountID uuid.UUID, dateLocal string) uuid.UUID {
	return uuid.NewSHA1(dailySpendNamespace, []byte(accountID.String()+"|"+dateLocal))
}

// SignedTx is one previously co-signed and broadcast (or broadcast-attempted)
// transaction counted against the day's limit. PsbtDigest and RawTxHex are
// kept alongside so a retried sign request for the same PSBT can return the
// original response instead of re-running admission and re-broadcasting.
type SignedTx struct {
	Txid        string `bson:"txid" json:"txid"`
	NetSentSats int64  `bson:"net_sent_sats" json:"net_sent_sats"`
	PsbtDigest  string `bson:"psbt_digest,omitempty" json:"-"`
	RawTxHex    string `bson:"raw_tx_hex,omitempty" json:"-"`
}

// DailySpend is the (account_id, date_local) CAS row spec.md §4.10 and §5
// describe: writes are idempotent on txid so a retried sign request doesn't
// double-count, and the record is written before the broadcast attempt so a
// generic broadcast failure still leaves the spend counted.
type DailySpend struct {
	ID              uuid.UUID  `bson:"_id" json:"id"`
	Version         int64      `bson:"version" json:"-"`
	AccountID       uuid.UUID  `bson:"account_id" json:"account_id"`
	DateLocal       string     `bson:"date_local" json:"date_local"`
	SignedTxs       []SignedTx `bson:"signed_txs" json:"signed_txs"`
	TotalNetSentSats int64     `bson:"total_net_sent_sats" json:"total_net_sent_sats"`
	CreatedAt       time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at" json:"updated_at"`
}

func (d DailySpend) GetID() uuid.UUID    { return d.ID }
func (d DailySpend) GetVersion() int64   { return d.Version }
func (d *DailySpend) SetVersion(v int64) { d.Version = v }

// FindTx looks up a previously recorded txid, for the sign endpoint's
// retry-safe short-circuit.
func (d DailySpend) FindTx(txid string) (SignedTx, bool) {
	for _, tx := range d.SignedTxs {
		if tx.Txid == txid {
			return tx, true
		}
	}
	return SignedTx{}, false
}

// FindByDigest looks up a previously recorded signature by the PSBT digest
// that produced it, letting the sign endpoint short-circuit a retry of the
// identical PSBT before re-running admission or re-broadcasting.
func (d DailySpend) FindByDigest(psbtDigest string) (SignedTx, bool) {
	for _, tx := range d.SignedTxs {
		if tx.PsbtDigest == psbtDigest {
			return tx, true
		}
	}
	return SignedTx{}, false
}

// WithRecordedTx returns a copy of d with txid appended to the ledger and
// the running total advanced. Callers must have already checked FindTx to
// avoid double-counting a retry.
func (d DailySpend) WithRecordedTx(txid, psbtDigest, rawTxHex string, netSentSats int64, now time.Time) DailySpend {
	next := d
	next.SignedTxs = append(append([]SignedTx{}, d.SignedTxs...), SignedTx{
		Txid:        txid,
		NetSentSats: netSentSats,
		PsbtDigest:  psbtDigest,
		RawTxHex:    rawTxHex,
	})
	next.TotalNetSentSats = d.TotalNetSentSats + netSentSats
	next.UpdatedAt = now
	return next
}
