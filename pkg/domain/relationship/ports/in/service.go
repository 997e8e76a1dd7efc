package relationship_in

import (
	"context"

	"github.com/google/uuid"

	relationship_entities "github.com/coldkeep/custody-api/pkg/domain/relationship/entities"
)

// CreateInvitationRequest asks the customer's account to invite a trusted
// contact. AppSigned/HwSigned must both be true (spec.md §4.7: creation
// requires both key proofs).
type CreateInvitationRequest struct {
	CustomerAccountID                     uuid.UUID
	Alias                                 string
	Roles                                 []relationship_entities.Role
	ProtectedCustomerEnrollmentPakePubkey string
	AppSigned                             bool
	HwSigned                              bool
}

// CreateInvitationResult carries the one-time plaintext code alongside the
// persisted (hash-only) relationship row.
type CreateInvitationResult struct {
	Relationship relationship_entities.Relationship
	Code         string
}

// AcceptInvitationRequest is submitted by the trusted contact, authenticated
// with a recovery access token for the account accepting the invitation.
type AcceptInvitationRequest struct {
	RelationshipID                     uuid.UUID
	TrustedContactAccountID            uuid.UUID
	Code                               string
	CustomerAlias                      string
	TrustedContactEnrollmentPakePubkey string
	EnrollmentPakeConfirmation         string
	SealedDelegatedDecryptionPubkey    string
}

// Endorsement is one relationship the customer certifies after acceptance.
type Endorsement struct {
	RelationshipID                       uuid.UUID
	DelegatedDecryptionPubkeyCertificate string
}

// RelationshipsView groups a query result the way spec.md §4.7's
// get_relationships does: by the caller's vantage point.
type RelationshipsView struct {
	Invitations               []relationship_entities.Relationship
	UnendorsedTrustedContacts []relationship_entities.Relationship
	EndorsedTrustedContacts   []relationship_entities.Relationship
	Customers                 []relationship_entities.Relationship
}

// Service implements the full relationship lifecycle.
type Service interface {
	CreateInvitation(ctx context.Context, req CreateInvitationRequest) (CreateInvitationResult, error)

	AcceptInvitation(ctx context.Context, req AcceptInvitationRequest) (relationship_entities.Relationship, error)

	// EndorseRelationships requires both key proofs (spec.md §4.7); any
	// entry not currently Unendorsed and owned by customerAccountID is
	// skipped rather than failing the whole batch.
	EndorseRelationships(ctx context.Context, customerAccountID uuid.UUID, appSigned, hwSigned bool, endorsements []Endorsement) error

	// ReissueInvitation requires both key proofs and invalidates the prior
	// code on a still-Invitation row.
	ReissueInvitation(ctx context.Context, customerAccountID uuid.UUID, relationshipID uuid.UUID, appSigned, hwSigned bool) (CreateInvitationResult, error)

	// DeleteRelationship is callable by either party; rejected when the
	// relationship carries the Beneficiary role and an incomplete claim
	// exists in either direction.
	DeleteRelationship(ctx context.Context, actingAccountID, relationshipID uuid.UUID) error

	// GetRelationships groups accountID's relationships by vantage point,
	// optionally filtered to a single role.
	GetRelationships(ctx context.Context, accountID uuid.UUID, roleFilter *relationship_entities.Role) (RelationshipsView, error)

	// GetInvitationForCode takes a plaintext invitation code and an optional
	// role. Codes are stored only as bcrypt hashes and are not looked up by
	// value, so every call returns a NotFound error.
	GetInvitationForCode(ctx context.Context, code string, expectedRole *relationship_entities.Role) (relationship_entities.Relationship, error)

	// DeleteAllForTrustedContact implements account_out.RelationshipTeardown.
	DeleteAllForTrustedContact(ctx context.Context, accountID uuid.UUID) error
}
