// Package notification_entities holds the scheduled/immediate notification
// record and the subscription-preference value object (spec.md §4.5).
package notification_entities

import (
	"time"

	"github.com/google/uuid"
)

// PayloadType tags the event a notification carries, driving both the
// message template and (for some types) which category gates it.
type PayloadType string

const (
	PayloadCommsVerification              PayloadType = "CommsVerification"
	PayloadRecoveryPendingDelayPeriod      PayloadType = "RecoveryPendingDelayPeriod"
	PayloadRecoveryCompletedDelayPeriod    PayloadType = "RecoveryCompletedDelayPeriod"
	PayloadRecoveryCanceled                PayloadType = "RecoveryCanceled"
	PayloadRecoveryContested               PayloadType = "RecoveryContested"
	PayloadInheritanceClaimPendingInitiated PayloadType = "InheritanceClaimPendingInitiated"
	PayloadInheritanceClaimAlmostOver      PayloadType = "InheritanceClaimAlmostOver"
	PayloadInheritanceClaimPeriodCompleted PayloadType = "InheritanceClaimPeriodCompleted"
	PayloadInheritanceClaimCanceled        PayloadType = "InheritanceClaimCanceled"
	PayloadRelationshipInvitationAccepted  PayloadType = "RelationshipInvitationAccepted"
	PayloadMoneyMovementSent               PayloadType = "MoneyMovementSent"
)

// Category is one of the three subscription buckets a customer toggles
// independently (spec.md §4.5).
type Category string

const (
	CategoryAccountSecurity Category = "AccountSecurity"
	CategoryMoneyMovement   Category = "MoneyMovement"
	CategoryProductMarketing Category = "ProductMarketing"
)

// categoryByPayload is the static routing table from event to subscription
// bucket. Security-relevant payloads are pinned to AccountSecurity
// regardless of caller input so a customer can never silence them by
// mis-tagging a request.
var categoryByPayload = map[PayloadType]Category{
	PayloadCommsVerification:              CategoryAccountSecurity,
	PayloadRecoveryPendingDelayPeriod:      CategoryAccountSecurity,
	PayloadRecoveryCompletedDelayPeriod:    CategoryAccountSecurity,
	PayloadRecoveryCanceled:                CategoryAccountSecurity,
	PayloadRecoveryContested:               CategoryAccountSecurity,
	PayloadInheritanceClaimPendingInitiated: CategoryAccountSecurity,
	PayloadInheritanceClaimAlmostOver:      CategoryAccountSecurity,
	PayloadInheritanceClaimPeriodCompleted: CategoryAccountSecurity,
	PayloadInheritanceClaimCanceled:        CategoryAccountSecurity,
	PayloadRelationshipInvitationAccepted:  CategoryAccountSecurity,
	PayloadMoneyMovementSent:               CategoryMoneyMovement,
}

// CategoryFor resolves the subscription bucket a payload type belongs to,
// defaulting unknown types to ProductMarketing (the most easily silenced
// bucket) rather than erroring.
func CategoryFor(p PayloadType) Category {
	if c, ok := categoryByPayload[p]; ok {
		return c
	}
	return CategoryProductMarketing
}

// Fanout distinguishes the two delivery modes spec.md §4.5 describes.
type Fanout string

const (
	FanoutScheduled Fanout = "SCHEDULED"
	FanoutImmediate Fanout = "IMMEDIATE"
)

// Notification is a single persisted delivery record, scheduled or
// immediate. Delivery is at-least-once; consumers key idempotency on
// (AccountID, PayloadType, ExecutionDateTime) per spec.md §4.5.
type Notification struct {
	ID                uuid.UUID              `bson:"_id" json:"id"`
	Version           int64                  `bson:"version" json:"-"`
	AccountID         uuid.UUID              `bson:"account_id" json:"account_id"`
	PayloadType       PayloadType            `bson:"payload_type" json:"payload_type"`
	Category          Category               `bson:"category" json:"category"`
	Fanout            Fanout                 `bson:"fanout" json:"fanout"`
	Data              map[string]interface{} `bson:"data,omitempty" json:"data,omitempty"`
	ExecutionDateTime time.Time              `bson:"execution_date_time" json:"execution_date_time"`
	Delivered         bool                   `bson:"delivered" json:"delivered"`
	DeliveredAt       *time.Time             `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	CreatedAt         time.Time              `bson:"created_at" json:"created_at"`
}

func (n Notification) GetID() uuid.UUID    { return n.ID }
func (n Notification) GetVersion() int64   { return n.Version }
func (n *Notification) SetVersion(v int64) { n.Version = v }

// IdempotencyKey is the dedup key spec.md §4.5 names: a second schedule
// call with the same key is a no-op against an already-recorded row.
func (n Notification) IdempotencyKey() string {
	return n.AccountID.String() + ":" + string(n.PayloadType) + ":" + n.ExecutionDateTime.Format(time.RFC3339Nano)
}

// Due reports whether a scheduled notification's execution time has
// arrived and it hasn't already gone out.
func (n Notification) Due(now time.Time) bool {
	return !n.Delivered && !n.ExecutionDateTime.After(now)
}

// MarkDelivered records a successful fan-out at now.
func (n *Notification) MarkDelivered(now time.Time) {
	n.Delivered = true
	n.DeliveredAt = &now
}

// SubscriptionPreferences is the per-account set of opt-in toggles.
// AccountSecurity is implicitly true from the moment an account has any
// active push or email touchpoint (spec.md §4.5); it is still stored so a
// customer may not explicitly disable it from the service layer, only the
// other two categories are ever user-togglable.
type SubscriptionPreferences struct {
	AccountID        uuid.UUID `bson:"_id" json:"account_id"`
	Version          int64     `bson:"version" json:"-"`
	AccountSecurity  bool      `bson:"account_security" json:"account_security"`
	MoneyMovement    bool      `bson:"money_movement" json:"money_movement"`
	ProductMarketing bool      `bson:"product_marketing" json:"product_marketing"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}

func (p SubscriptionPreferences) GetID() uuid.UUID    { return p.AccountID }
func (p SubscriptionPreferences) GetVersion() int64   { return p.Version }
func (p *SubscriptionPreferences) SetVersion(v int64) { p.Version = v }

// Allows reports whether category c is enabled for delivery. Unknown
// accounts (no stored row yet) default every category to true, matching
// the onboarding default before a customer has touched their settings.
func (p SubscriptionPreferences) Allows(c Category) bool {
	switch c {
	case CategoryAccountSecurity:
		return true
	case CategoryMoneyMovement:
		return p.MoneyMovement
	case CategoryProductMarketing:
		return p.ProductMarketing
	default:
		return true
	}
}

// DefaultSubscriptionPreferences is the row implied for an account that
// has never written one: security is always on, the other two default on
// until the customer opts out.
func DefaultSubscriptionPreferences(accountID uuid.UUID) SubscriptionPreferences {
	return SubscriptionPreferences{
		AccountID:        accountID,
		AccountSecurity:  true,
		MoneyMovement:    true,
		ProductMarketing: true,
	}
}
