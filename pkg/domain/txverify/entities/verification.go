// Package txverify_entities holds the out-of-band transaction-verification
// request lifecycle (spec.md §4.9): Pending -> Success{signed_hw_grant},
// single-use once consumed by the Mobile-Pay signer.
package txverify_entities

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusSuccess  Status = "SUCCESS"
	StatusConsumed Status = "CONSUMED"
	StatusExpired  Status = "EXPIRED"
)

// GenerateConfirmationToken returns a URL-safe, base64-encoded random
// token handed to the user on the out-of-band confirmation link.
func GenerateConfirmationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Verification is one row in the Pending -> Success|Expired state machine.
type Verification struct {
	ID                uuid.UUID `bson:"_id" json:"id"`
	Version           int64     `bson:"version" json:"-"`
	AccountID         uuid.UUID `bson:"account_id" json:"account_id"`
	Status            Status    `bson:"status" json:"status"`
	ConfirmationToken string    `bson:"confirmation_token" json:"-"`

	PSBT          string `bson:"psbt" json:"-"`
	PSBTDigest    []byte `bson:"psbt_digest" json:"-"`
	FiatCurrency  string `bson:"fiat_currency" json:"fiat_currency"`
	BitcoinUnit   string `bson:"bitcoin_unit" json:"bitcoin_unit"`
	PolicyVersion int64  `bson:"policy_version" json:"-"`

	// Populated on verify_with_confirmation_token success.
	SignedHWGrant []byte `bson:"signed_hw_grant,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (v Verification) GetID() uuid.UUID    { return v.ID }
func (v Verification) GetVersion() int64   { return v.Version }
func (v *Verification) SetVersion(ver int64) { v.Version = ver }

// IsExpired reports whether the request's window has lapsed.
func (v Verification) IsExpired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// GrantDigest is the deterministic binding signed by the HSM's grant key:
// sha256(account_id || policy_version || psbt_digest || expiry), pinning
// this grant to this account, this policy version, this PSBT and this
// expiry (spec.md §9 open question).
func (v Verification) GrantDigest() []byte {
	return BuildGrantDigest(v.AccountID, v.PolicyVersion, v.PSBTDigest, v.ExpiresAt)
}

// BuildGrantDigest computes the grant digest from its four fields without
// needing the Verification row that holds them; Verification.GrantDigest
// calls it.
func BuildGrantDigest(accountID uuid.UUID, policyVersion int64, psbtDigest []byte, expiry time.Time) []byte {
	buf := make([]byte, 0, 16+8+len(psbtDigest)+8)
	buf = append(buf, accountID[:]...)
	buf = appendInt64(buf, policyVersion)
	buf = append(buf, psbtDigest...)
	buf = appendInt64(buf, expiry.Unix())
	sum := sha256.Sum256(buf)
	return sum[:]
}

func appendInt64(buf []byte, v int64) []byte {
	var tmp [8]byte
	for i := 7; i >= 0; i-- {
		tmp[i] = byte(v)
		v >>= 8
	}
	return append(buf, tmp[:]...)
}
