// Package comms_entities holds the comms-verification domain objects: the
// tagged scope a code is bound to, and the code itself.
package comms_entities

import "github.com/google/uuid"

// ScopeKind tags what a verification code authorizes once consumed.
type ScopeKind string

const (
	ScopeAddTouchpoint      ScopeKind = "ADD_TOUCHPOINT"
	ScopeDelayNotifyRecovery ScopeKind = "DELAY_NOTIFY_RECOVERY"
	ScopeResetFingerprint    ScopeKind = "RESET_FINGERPRINT"
	ScopeInheritanceClaim    ScopeKind = "INHERITANCE_CLAIM"
)

// Scope is the tagged variant comms-verification binds a code to.
// TouchpointID is only set for ScopeAddTouchpoint.
type Scope struct {
	Kind         ScopeKind  `bson:"kind" json:"kind"`
	TouchpointID *uuid.UUID `bson:"touchpoint_id,omitempty" json:"touchpoint_id,omitempty"`
}

// Key renders the scope as the string stored alongside account_id in a
// verification code's (account_id, scope_key) identity.
func (s Scope) Key() string {
	if s.Kind == ScopeAddTouchpoint && s.TouchpointID != nil {
		return string(s.Kind) + ":" + s.TouchpointID.String()
	}
	return string(s.Kind)
}

func NewAddTouchpointScope(touchpointID uuid.UUID) Scope {
	return Scope{Kind: ScopeAddTouchpoint, TouchpointID: &touchpointID}
}

func NewScope(kind ScopeKind) Scope {
	return Scope{Kind: kind}
}
