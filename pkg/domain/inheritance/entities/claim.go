// Package inheritance_entities holds the inheritance claim state machine
// (spec.md §4.8): Pending -> Canceled | Locked -> Completed{WithPsbt |
// WithoutPsbt}.
package inheritance_entities

import (
	"time"

	"github.com/google/uuid"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCanceled  Status = "CANCELED"
	StatusLocked    Status = "LOCKED"
	StatusCompleted Status = "COMPLETED"
)

// CompletionKind distinguishes the two complete() variants once a claim
// reaches Completed.
type CompletionKind string

const (
	CompletionWithPsbt    CompletionKind = "WITH_PSBT"
	CompletionWithoutPsbt CompletionKind = "WITHOUT_PSBT"
)

// lockChallengePrefix is the fixed string every lock() challenge starts
// with, mirroring recovery's ExpectedChallenge layout (spec.md §4.8).
const lockChallengePrefix = "LockInheritanceClaim"

// Package is the benefactor's pre-uploaded sealed material, attached to
// the claim at lock time (spec.md §4.8's "package upload").
type Package struct {
	SealedDEK       string `bson:"sealed_dek" json:"sealed_dek"`
	SealedMobileKey string `bson:"sealed_mobile_key" json:"sealed_mobile_key"`
}

// Claim is one row in the state machine, keyed by the benefactor/
// beneficiary relationship it claims against.
type Claim struct {
	ID             uuid.UUID `bson:"_id" json:"id"`
	Version        int64     `bson:"version" json:"-"`
	RelationshipID uuid.UUID `bson:"relationship_id" json:"relationship_id"`
	BenefactorID   uuid.UUID `bson:"benefactor_id" json:"benefactor_id"`
	BeneficiaryID  uuid.UUID `bson:"beneficiary_id" json:"beneficiary_id"`
	Status         Status    `bson:"status" json:"status"`

	DelayEndTime time.Time `bson:"delay_end_time" json:"delay_end_time"`

	// Populated at lock().
	DestAppPubkey      []byte                          `bson:"dest_app_pubkey,omitempty" json:"-"`
	DestHwPubkey       []byte                          `bson:"dest_hw_pubkey,omitempty" json:"-"`
	DestRecoveryPubkey []byte                          `bson:"dest_recovery_pubkey,omitempty" json:"-"`
	PackageAttached    *Package                        `bson:"package_attached,omitempty" json:"package_attached,omitempty"`
	BenefactorKeyset   *account_entities.SpendingKeyset `bson:"benefactor_keyset,omitempty" json:"benefactor_keyset,omitempty"`
	LockedAt           *time.Time                      `bson:"locked_at,omitempty" json:"locked_at,omitempty"`

	// Populated at complete().
	CompletionKind CompletionKind `bson:"completion_kind,omitempty" json:"completion_kind,omitempty"`
	TxID           string         `bson:"txid,omitempty" json:"txid,omitempty"`
	CompletedAt    *time.Time     `bson:"completed_at,omitempty" json:"completed_at,omitempty"`

	CanceledAt *time.Time `bson:"canceled_at,omitempty" json:"canceled_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (c Claim) GetID() uuid.UUID    { return c.ID }
func (c Claim) GetVersion() int64   { return c.Version }
func (c *Claim) SetVersion(v int64) { c.Version = v }

// IsTerminal reports whether the claim can no longer transition.
func (c Claim) IsTerminal() bool {
	return c.Status == StatusCanceled || c.Status == StatusCompleted
}

// CanLock reports whether the delay period has elapsed.
func (c Claim) CanLock(now time.Time) bool {
	return !now.Before(c.DelayEndTime)
}

// ExpectedLockChallenge builds challenge = "LockInheritanceClaim" ||
// hw_pub || app_pub || recovery_pub? over the claim's fresh destination
// keys, the exact byte layout lock() verifies signatures against.
func (c Claim) ExpectedLockChallenge() []byte {
	challenge := append([]byte(lockChallengePrefix), c.DestHwPubkey...)
	challenge = append(challenge, c.DestAppPubkey...)
	if len(c.DestRecoveryPubkey) > 0 {
		challenge = append(challenge, c.DestRecoveryPubkey...)
	}
	return challenge
}
