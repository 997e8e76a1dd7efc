// Package recovery_entities holds the Delay-and-Notify recovery state
// machine (spec.md §4.6): Pending -> Complete | Canceled | CanceledInContest.
package recovery_entities

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending           Status = "PENDING"
	StatusCanceled          Status = "CANCELED"
	StatusCanceledInContest Status = "CANCELED_IN_CONTEST"
	StatusComplete          Status = "COMPLETE"
)

// challengePrefix is the fixed string every complete() challenge starts
// with, per spec.md §4.6.
const challengePrefix = "CompleteDelayNotify"

// Recovery is one row in the state machine. Each transition rewrites this
// row in place through the repository's compare-and-swap Update, which
// bumps Version; earlier states of the row are not kept.
type Recovery struct {
	ID                 uuid.UUID  `bson:"_id" json:"id"`
	Version            int64      `bson:"version" json:"-"`
	AccountID          uuid.UUID  `bson:"account_id" json:"account_id"`
	LostFactor         string     `bson:"lost_factor" json:"lost_factor"`
	Status             Status     `bson:"status" json:"status"`
	DestAppPubkey      []byte     `bson:"dest_app_pubkey,omitempty" json:"-"`
	DestHwPubkey       []byte     `bson:"dest_hw_pubkey,omitempty" json:"-"`
	DestRecoveryPubkey []byte     `bson:"dest_recovery_pubkey,omitempty" json:"-"`
	DelayEndTime       time.Time  `bson:"delay_end_time" json:"delay_end_time"`
	CreatedAt          time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `bson:"updated_at" json:"updated_at"`
	CanceledAt         *time.Time `bson:"canceled_at,omitempty" json:"canceled_at,omitempty"`
	ContestedAt        *time.Time `bson:"contested_at,omitempty" json:"contested_at,omitempty"`
	CompletedAt        *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CompletedChallenge []byte     `bson:"completed_challenge,omitempty" json:"-"`
	NewAuthKeysID      uuid.UUID  `bson:"new_auth_keys_id,omitempty" json:"new_auth_keys_id,omitempty"`
}

func (r Recovery) GetID() uuid.UUID    { return r.ID }
func (r Recovery) GetVersion() int64   { return r.Version }
func (r *Recovery) SetVersion(v int64) { r.Version = v }

// OppositeFactor returns the non-lost auth factor role for a lost factor
// of "app" or "hw".
func OppositeFactor(lostFactor string) string {
	if lostFactor == "app" {
		return "hw"
	}
	return "app"
}

// SameDestination reports whether a create request is an exact duplicate
// of this pending recovery's destination keys, per spec.md §4.6 step 1's
// idempotent-on-exact-duplicate rule.
func (r Recovery) SameDestination(appPubkey, hwPubkey, recoveryPubkey []byte) bool {
	return bytes.Equal(r.DestAppPubkey, appPubkey) &&
		bytes.Equal(r.DestHwPubkey, hwPubkey) &&
		bytes.Equal(r.DestRecoveryPubkey, recoveryPubkey)
}

// CanComplete reports whether the delay period has elapsed.
func (r Recovery) CanComplete(now time.Time) bool {
	return !now.Before(r.DelayEndTime)
}

// ExpectedChallenge builds challenge = "CompleteDelayNotify" || hw_pub ||
// app_pub || recovery_pub? over this recovery's destination keys, the
// exact byte layout spec.md §4.6's complete() verifies against.
func (r Recovery) ExpectedChallenge() []byte {
	challenge := append([]byte(challengePrefix), r.DestHwPubkey...)
	challenge = append(challenge, r.DestAppPubkey...)
	if len(r.DestRecoveryPubkey) > 0 {
		challenge = append(challenge, r.DestRecoveryPubkey...)
	}
	return challenge
}
