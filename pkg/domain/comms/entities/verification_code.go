package comms_entities

import (
	"time"

	"github.com/google/uuid"
)

// VerificationCode is a single initiate() issuance: a bcrypt hash of the
// delivered code, bound to (account_id, scope_key), with its own TTL and
// attempt budget. Verified codes leave a verified-until mark that consume()
// drains; the code row itself is never reused across initiate() calls.
type VerificationCode struct {
	ID           uuid.UUID  `bson:"_id" json:"id"`
	Version      int64      `bson:"version" json:"version"`
	AccountID    uuid.UUID  `bson:"account_id" json:"account_id"`
	ScopeKey     string     `bson:"scope_key" json:"scope_key"`
	CodeHash     []byte     `bson:"code_hash" json:"-"`
	Attempts     int        `bson:"attempts" json:"attempts"`
	MaxAttempts  int        `bson:"max_attempts" json:"max_attempts"`
	ExpiresAt    time.Time  `bson:"expires_at" json:"expires_at"`
	VerifiedUntil *time.Time `bson:"verified_until,omitempty" json:"verified_until,omitempty"`
	Consumed     bool       `bson:"consumed" json:"consumed"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
}

func (c VerificationCode) GetID() uuid.UUID { return c.ID }

func (c VerificationCode) GetVersion() int64 { return c.Version }

func (c *VerificationCode) SetVersion(v int64) { c.Version = v }

// IsExpired reports whether the code's issuance window has lapsed as of now.
func (c VerificationCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// AttemptsRemaining is zero once MaxAttempts is reached.
func (c VerificationCode) AttemptsRemaining() int {
	remaining := c.MaxAttempts - c.Attempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

// VerifiedAt reports whether now falls within a prior successful verify()'s
// window.
func (c VerificationCode) VerifiedAt(now time.Time) bool {
	return c.VerifiedUntil != nil && now.Before(*c.VerifiedUntil) && !c.Consumed
}
