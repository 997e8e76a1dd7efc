// Package account_entities holds the three account kinds and their
// supporting value objects (spec.md §3).
package account_entities

import (
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the three account shapes.
type Kind string

const (
	KindFull     Kind = "FULL"
	KindLite     Kind = "LITE"
	KindSoftware Kind = "SOFTWARE"
)

// Network is the Bitcoin network a spending keyset targets.
type Network string

const (
	NetworkBitcoin Network = "bitcoin"
	NetworkTestnet Network = "testnet"
	NetworkSignet  Network = "signet"
	NetworkRegtest Network = "regtest"
)

// IsTestNetwork reports whether network implies a test account per
// spec.md §3's is_test_account invariant.
func (n Network) IsTestNetwork() bool {
	return n == NetworkTestnet || n == NetworkSignet || n == NetworkRegtest
}

// AuthKeys is one historical or active set of the three auth pubkeys.
type AuthKeys struct {
	ID             uuid.UUID `bson:"_id" json:"id"`
	AppPubkey      []byte    `bson:"app_pubkey" json:"app_pubkey"`
	HwPubkey       []byte    `bson:"hw_pubkey" json:"hw_pubkey"`
	RecoveryPubkey []byte    `bson:"recovery_pubkey,omitempty" json:"recovery_pubkey,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

// SpendingKeyset is one historical or active 2-of-3 multisig descriptor.
type SpendingKeyset struct {
	ID        uuid.UUID `bson:"_id" json:"id"`
	Network   Network   `bson:"network" json:"network"`
	AppDpub   string    `bson:"app_dpub" json:"app_dpub"`
	HwDpub    string    `bson:"hw_dpub" json:"hw_dpub"`
	ServerDpub string   `bson:"server_dpub" json:"server_dpub"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// TouchpointKind tags the touchpoint variant.
type TouchpointKind string

const (
	TouchpointPhone TouchpointKind = "PHONE"
	TouchpointEmail TouchpointKind = "EMAIL"
	TouchpointPush  TouchpointKind = "PUSH"
)

// Touchpoint is a contact channel on an account: phone, email, or push
// device token. Identity is on (kind, normalized payload); repeat
// submissions return the existing id (spec.md §3).
type Touchpoint struct {
	ID          uuid.UUID      `bson:"_id" json:"id"`
	Kind        TouchpointKind `bson:"kind" json:"kind"`
	CountryCode string         `bson:"country_code,omitempty" json:"country_code,omitempty"`
	E164        string         `bson:"e164,omitempty" json:"e164,omitempty"`
	Address     string         `bson:"address,omitempty" json:"address,omitempty"`
	Platform    string         `bson:"platform,omitempty" json:"platform,omitempty"`
	Token       string         `bson:"token,omitempty" json:"token,omitempty"`
	ARN         string         `bson:"arn,omitempty" json:"arn,omitempty"`
	Active      bool           `bson:"active" json:"active"`
	CreatedAt   time.Time      `bson:"created_at" json:"created_at"`
}

// NormalizedKey identifies a touchpoint for dedup purposes, per (kind,
// normalized payload).
func (t Touchpoint) NormalizedKey() string {
	switch t.Kind {
	case TouchpointPhone:
		return string(TouchpointPhone) + ":" + t.E164
	case TouchpointEmail:
		return string(TouchpointEmail) + ":" + t.Address
	case TouchpointPush:
		return string(TouchpointPush) + ":" + t.Platform + ":" + t.Token
	default:
		return ""
	}
}

// SpendingLimit governs Mobile-Pay admission (spec.md §3, §4.10).
type SpendingLimit struct {
	Active         bool    `bson:"active" json:"active"`
	AmountSats     int64   `bson:"amount_sats" json:"amount_sats"`
	Currency       string  `bson:"currency" json:"currency"`
	TimeZoneOffset float64 `bson:"time_zone_offset" json:"time_zone_offset"`
}

// TxVerificationPolicyKind discriminates the PolicyUpdate variants gating
// out-of-band transaction verification (spec.md §4.9).
type TxVerificationPolicyKind string

const (
	TxVerificationNever     TxVerificationPolicyKind = "NEVER"
	TxVerificationAlways    TxVerificationPolicyKind = "ALWAYS"
	TxVerificationThreshold TxVerificationPolicyKind = "THRESHOLD"
)

// TxVerificationPolicy is the account's current tx-verification policy.
// PolicyVersion increments on every update and is pinned into every HW
// grant digest this account's policy produces (spec.md §4.9, §9).
type TxVerificationPolicy struct {
	Kind           TxVerificationPolicyKind `bson:"kind" json:"kind"`
	AmountSats     int64                    `bson:"amount_sats,omitempty" json:"amount_sats,omitempty"`
	AmountFiat     int64                    `bson:"amount_fiat,omitempty" json:"amount_fiat,omitempty"`
	Currency       string                   `bson:"currency,omitempty" json:"currency,omitempty"`
	PolicyVersion  int64                    `bson:"policy_version" json:"policy_version"`
}

// RequiresVerification reports whether a transaction worth amountFiat in the
// policy's configured currency must be confirmed out-of-band before the
// Mobile-Pay signer will co-sign it. Never skips the check unconditionally,
// Always requires it unconditionally, Threshold requires it only once the
// transaction's fiat value exceeds the configured amount.
func (p TxVerificationPolicy) RequiresVerification(amountFiat int64) bool {
	switch p.Kind {
	case TxVerificationNever:
		return false
	case TxVerificationAlways:
		return true
	case TxVerificationThreshold:
		return amountFiat > p.AmountFiat
	default:
		return true
	}
}

// Account is the aggregate root for all three kinds. Full accounts
// populate everything; Lite accounts only the recovery key; Software is
// reserved for keyless onboarding (same id shape, per spec.md §3).
type Account struct {
	ID                uuid.UUID                `bson:"_id" json:"id"`
	Version           int64                    `bson:"version" json:"-"`
	Kind              Kind                     `bson:"kind" json:"kind"`
	ActiveAuthKeysID  uuid.UUID                `bson:"active_auth_keys_id" json:"active_auth_keys_id"`
	AuthKeysHistory   []AuthKeys               `bson:"auth_keys_history" json:"-"`
	ActiveKeysetID    uuid.UUID                `bson:"active_keyset_id,omitempty" json:"active_keyset_id,omitempty"`
	KeysetHistory     []SpendingKeyset         `bson:"keyset_history,omitempty" json:"-"`
	Touchpoints       []Touchpoint             `bson:"touchpoints" json:"touchpoints"`
	SpendingLimit     *SpendingLimit           `bson:"spending_limit,omitempty" json:"spending_limit,omitempty"`
	TxVerificationPolicy *TxVerificationPolicy `bson:"tx_verification_policy,omitempty" json:"tx_verification_policy,omitempty"`
	OnboardingComplete bool                    `bson:"onboarding_complete" json:"onboarding_complete"`
	IsTestAccount     bool                     `bson:"is_test_account" json:"is_test_account"`
	CreatedAt         time.Time                `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time                `bson:"updated_at" json:"updated_at"`
}

func (a Account) GetID() uuid.UUID    { return a.ID }
func (a Account) GetVersion() int64   { return a.Version }
func (a *Account) SetVersion(v int64) { a.Version = v }

// ActiveAuthKeys resolves the currently active auth keys entry.
func (a Account) ActiveAuthKeys() (AuthKeys, bool) {
	return a.findAuthKeys(a.ActiveAuthKeysID)
}

func (a Account) findAuthKeys(id uuid.UUID) (AuthKeys, bool) {
	for _, k := range a.AuthKeysHistory {
		if k.ID == id {
			return k, true
		}
	}
	return AuthKeys{}, false
}

// ActiveKeyset resolves the currently active spending keyset.
func (a Account) ActiveKeyset() (SpendingKeyset, bool) {
	return a.findKeyset(a.ActiveKeysetID)
}

func (a Account) findKeyset(id uuid.UUID) (SpendingKeyset, bool) {
	for _, k := range a.KeysetHistory {
		if k.ID == id {
			return k, true
		}
	}
	return SpendingKeyset{}, false
}

// FindKeysetByID looks up any keyset the account has ever held, active or
// historical.
func (a Account) FindKeysetByID(id uuid.UUID) (SpendingKeyset, bool) {
	return a.findKeyset(id)
}

// HasHeldKeyset reports whether the account has ever had keysetID active,
// current or historical — spec.md §4.10 step 3 allows signing older UTXOs
// during rotation.
func (a Account) HasHeldKeyset(keysetID uuid.UUID) bool {
	_, ok := a.findKeyset(keysetID)
	return ok
}

// ActivePhoneTouchpoint returns the single active phone touchpoint, if any.
func (a Account) ActivePhoneTouchpoint() (Touchpoint, bool) {
	for _, tp := range a.Touchpoints {
		if tp.Kind == TouchpointPhone && tp.Active {
			return tp, true
		}
	}
	return Touchpoint{}, false
}

// ActiveEmailTouchpoint returns the single active email touchpoint, if any.
func (a Account) ActiveEmailTouchpoint() (Touchpoint, bool) {
	for _, tp := range a.Touchpoints {
		if tp.Kind == TouchpointEmail && tp.Active {
			return tp, true
		}
	}
	return Touchpoint{}, false
}

// FindTouchpoint looks up a touchpoint by its normalized key.
func (a Account) FindTouchpoint(normalizedKey string) (Touchpoint, bool) {
	for _, tp := range a.Touchpoints {
		if tp.NormalizedKey() == normalizedKey {
			return tp, true
		}
	}
	return Touchpoint{}, false
}
