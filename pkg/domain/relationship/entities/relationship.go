// Package relationship_entities holds the social-recovery/inheritance
// relationship lifecycle (spec.md §4.7): Invitation -> Unendorsed -> Endorsed,
// deletable at any stage subject to incomplete-claim caveats.
package relationship_entities

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
)

// Role tags what a trusted contact is permitted to do once endorsed.
type Role string

const (
	RoleSocialRecoveryContact Role = "SOCIAL_RECOVERY_CONTACT"
	RoleBeneficiary           Role = "BENEFICIARY"
)

func ValidRole(r Role) bool {
	return r == RoleSocialRecoveryContact || r == RoleBeneficiary
}

type Status string

const (
	StatusInvitation Status = "INVITATION"
	StatusUnendorsed Status = "UNENDORSED"
	StatusEndorsed   Status = "ENDORSED"
)

// crockfordAlphabet excludes I, L, O, U to avoid visual ambiguity in a
// human-typed short code.
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// GenerateCode returns a code_bit_length-driven short code rendered over
// the Crockford alphabet, one character per 5 bits rounded up (spec.md
// §4.7). Only the code is returned, not the bit length.
func GenerateCode(bitLength int) (string, error) {
	charCount := (bitLength + 4) / 5 // 5 bits per Crockford character
	buf := make([]byte, charCount)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, charCount)
	for i, b := range buf {
		code[i] = crockfordAlphabet[int(b)%len(crockfordAlphabet)]
	}
	return string(code), nil
}

// Relationship is one row in the lifecycle. The same row is mutated in
// place across transitions (unlike recovery, which never reaches a
// terminal "deleted" state) since deletion removes the row outright.
type Relationship struct {
	ID                      uuid.UUID `bson:"_id" json:"id"`
	Version                 int64     `bson:"version" json:"-"`
	CustomerAccountID       uuid.UUID `bson:"customer_account_id" json:"customer_account_id"`
	TrustedContactAccountID uuid.UUID `bson:"trusted_contact_account_id,omitempty" json:"trusted_contact_account_id,omitempty"`
	Alias                   string    `bson:"alias" json:"alias"`
	CustomerAlias           string    `bson:"customer_alias,omitempty" json:"customer_alias,omitempty"`
	Roles                   []Role    `bson:"roles" json:"roles"`
	Status                  Status    `bson:"status" json:"status"`

	CodeHash                              []byte    `bson:"code_hash,omitempty" json:"-"`
	CodeBitLength                         int       `bson:"code_bit_length,omitempty" json:"code_bit_length,omitempty"`
	ExpiresAt                             time.Time `bson:"expires_at" json:"expires_at"`
	ProtectedCustomerEnrollmentPakePubkey string    `bson:"protected_customer_enrollment_pake_pubkey" json:"protected_customer_enrollment_pake_pubkey"`
	TrustedContactEnrollmentPakePubkey    string    `bson:"trusted_contact_enrollment_pake_pubkey,omitempty" json:"trusted_contact_enrollment_pake_pubkey,omitempty"`
	EnrollmentPakeConfirmation            string    `bson:"enrollment_pake_confirmation,omitempty" json:"enrollment_pake_confirmation,omitempty"`
	SealedDelegatedDecryptionPubkey       string    `bson:"sealed_delegated_decryption_pubkey,omitempty" json:"sealed_delegated_decryption_pubkey,omitempty"`
	DelegatedDecryptionPubkeyCertificate  string    `bson:"delegated_decryption_pubkey_certificate,omitempty" json:"delegated_decryption_pubkey_certificate,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

func (r Relationship) GetID() uuid.UUID    { return r.ID }
func (r Relationship) GetVersion() int64   { return r.Version }
func (r *Relationship) SetVersion(v int64) { r.Version = v }

// HasRole reports whether role is among the relationship's roles.
func (r Relationship) HasRole(role Role) bool {
	for _, candidate := range r.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// IsExpired reports whether the invitation code has expired as of now.
// Only meaningful while Status is Invitation.
func (r Relationship) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
