// Package privileged_entities holds the generic admission-instance row the
// DelayNotify and OutOfBand privileged-action variants persist (spec.md
// §4.12): a Pending row that becomes Complete once its condition (delay
// elapsed, or code confirmed) is met, or Canceled by the user.
package privileged_entities

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusComplete Status = "COMPLETE"
	StatusCanceled Status = "CANCELED"
)

// GenerateCode returns a URL-safe random confirmation code, the same
// crypto/rand + unpadded-base64 shape txverify's confirmation token uses.
func GenerateCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Instance is one row in a privileged mutation's admission state machine,
// generic over the mutation payload M so every gated mutation (spending
// limit setup, reset-fingerprint, beneficiary deletion, …) can reuse the
// same persisted shape instead of hand-rolling its own Pending/Complete
// row. A DelayNotify instance uses CompleteAt and leaves ConfirmationCode/
// CancelToken empty; an OutOfBand instance uses ConfirmationCode and
// CancelToken and leaves CompleteAt zero.
type Instance[M any] struct {
	ID        uuid.UUID `bson:"_id" json:"id"`
	Version   int64     `bson:"version" json:"-"`
	AccountID uuid.UUID `bson:"account_id" json:"account_id"`
	Mutation  M         `bson:"mutation" json:"-"`
	Status    Status    `bson:"status" json:"status"`

	CompleteAt time.Time `bson:"complete_at,omitempty" json:"complete_at,omitempty"`

	ConfirmationCode string `bson:"confirmation_code,omitempty" json:"-"`
	CancelToken      string `bson:"cancel_token,omitempty" json:"-"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CanceledAt  *time.Time `bson:"canceled_at,omitempty" json:"canceled_at,omitempty"`
}

func (i Instance[M]) GetID() uuid.UUID    { return i.ID }
func (i Instance[M]) GetVersion() int64   { return i.Version }
func (i *Instance[M]) SetVersion(v int64) { i.Version = v }

// DelayElapsed reports whether a DelayNotify instance's wait is over.
func (i Instance[M]) DelayElapsed(now time.Time) bool {
	return !now.Before(i.CompleteAt)
}
