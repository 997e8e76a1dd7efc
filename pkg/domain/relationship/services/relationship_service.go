// Package relationship_services implements relationship_in.Service
// (spec.md §4.7): invitation, acceptance, endorsement, reissue, deletion,
// and vantage-point queries over the social-recovery/inheritance
// relationship lifecycle.
package relationship_services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	common "github.com/coldkeep/custody-api/pkg/domain"
	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_out "github.com/coldkeep/custody-api/pkg/domain/account/ports/out"
	notification_entities "github.com/coldkeep/custody-api/pkg/domain/notification/entities"
	notification_in "github.com/coldkeep/custody-api/pkg/domain/notification/ports/in"
	relationship_entities "github.com/coldkeep/custody-api/pkg/domain/relationship/entities"
	relationship_in "github.com/coldkeep/custody-api/pkg/domain/relationship/ports/in"
	relationship_out "github.com/coldkeep/custody-api/pkg/domain/relationship/ports/out"
)

type Service struct {
	repo          relationship_out.Repository
	accounts      account_out.AccountRepository
	claims        relationship_out.ClaimGuard
	notifications notification_in.Service
	config        common.RelationshipConfig
	clock         common.Clock
}

// NewService's claims dependency is optional (nil until the inheritance
// domain is wired): deletion skips the incomplete-claim caveat entirely
// when nil, rather than failing closed, since a Beneficiary-role
// relationship without an inheritance domain has no claims to protect.
func NewService(
	repo relationship_out.Repository,
	accounts account_out.AccountRepository,
	claims relationship_out.ClaimGuard,
	notifications notification_in.Service,
	config common.RelationshipConfig,
	clock common.Clock,
) *Service {
	return &Service{repo: repo, accounts: accounts, claims: claims, notifications: notifications, config: config, clock: clock}
}

var _ relationship_in.Service = (*Service)(nil)

func (s *Service) CreateInvitation(ctx context.Context, req relationship_in.CreateInvitationRequest) (relationship_in.CreateInvitationResult, error) {
	if !req.AppSigned || !req.HwSigned {
		return relationship_in.CreateInvitationResult{}, common.NewErrForbidden("KeyProofRequired")
	}
	if req.Alias == "" {
		return relationship_in.CreateInvitationResult{}, common.NewErrBadRequest("InvalidTrustedContactAlias")
	}
	if len(req.Roles) == 0 {
		return relationship_in.CreateInvitationResult{}, common.NewErrBadRequest("InvalidTrustedContactRoles")
	}
	for _, role := range req.Roles {
		if !relationship_entities.ValidRole(role) {
			return relationship_in.CreateInvitationResult{}, common.NewErrBadRequest("InvalidTrustedContactRoles")
		}
	}

	acct, err := s.accounts.GetByID(ctx, req.CustomerAccountID)
	if err != nil {
		return relationship_in.CreateInvitationResult{}, err
	}
	if acct.Kind != account_entities.KindFull {
		return relationship_in.CreateInvitationResult{}, common.NewErrForbidden("InvalidAccountKind")
	}

	code, codeHash, err := s.issueCode()
	if err != nil {
		return relationship_in.CreateInvitationResult{}, err
	}

	now := s.clock.Now()
	rel := relationship_entities.Relationship{
		ID:                                     uuid.New(),
		CustomerAccountID:                      req.CustomerAccountID,
		Alias:                                  req.Alias,
		Roles:                                  req.Roles,
		Status:                                 relationship_entities.StatusInvitation,
		CodeHash:                               codeHash,
		CodeBitLength:                          s.config.CodeBitLength,
		ExpiresAt:                              now.Add(s.config.InvitationTTL),
		ProtectedCustomerEnrollmentPakePubkey: req.ProtectedCustomerEnrollmentPakePubkey,
		CreatedAt:                              now,
		UpdatedAt:                              now,
	}

	if err := s.repo.Create(ctx, rel); err != nil {
		return relationship_in.CreateInvitationResult{}, err
	}

	return relationship_in.CreateInvitationResult{Relationship: rel, Code: code}, nil
}

func (s *Service) issueCode() (code string, hash []byte, err error) {
	code, err = relationship_entities.GenerateCode(s.config.CodeBitLength)
	if err != nil {
		return "", nil, err
	}
	hash, err = bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}
	return code, hash, nil
}

func (s *Service) AcceptInvitation(ctx context.Context, req relationship_in.AcceptInvitationRequest) (relationship_entities.Relationship, error) {
	rel, err := s.repo.GetByID(ctx, req.RelationshipID)
	if err != nil {
		return relationship_entities.Relationship{}, err
	}
	if rel.Status != relationship_entities.StatusInvitation {
		return relationship_entities.Relationship{}, common.NewErrConflict("InvitationNotPending")
	}
	if rel.IsExpired(s.clock.Now()) {
		return relationship_entities.Relationship{}, common.NewErrBadRequest("InvitationExpired")
	}
	if req.TrustedContactAccountID == rel.CustomerAccountID {
		return relationship_entities.Relationship{}, common.NewErrForbidden("CannotAcceptOwnInvitation")
	}
	if bcrypt.CompareHashAndPassword(rel.CodeHash, []byte(req.Code)) != nil {
		return relationship_entities.Relationship{}, common.NewErrBadRequest("InvalidInvitationCode")
	}

	now := s.clock.Now()
	rel.Status = relationship_entities.StatusUnendorsed
	rel.TrustedContactAccountID = req.TrustedContactAccountID
	rel.CustomerAlias = req.CustomerAlias
	rel.TrustedContactEnrollmentPakePubkey = req.TrustedContactEnrollmentPakePubkey
	rel.EnrollmentPakeConfirmation = req.EnrollmentPakeConfirmation
	rel.SealedDelegatedDecryptionPubkey = req.SealedDelegatedDecryptionPubkey
	rel.UpdatedAt = now

	if err := s.repo.Update(ctx, rel); err != nil {
		return relationship_entities.Relationship{}, err
	}

	if s.notifications != nil {
		if _, err := s.notifications.SendImmediate(ctx, notification_in.ImmediateRequest{
			AccountID:   rel.CustomerAccountID,
			PayloadType: notification_entities.PayloadRelationshipInvitationAccepted,
			Data:        map[string]interface{}{"relationship_id": rel.ID.String()},
		}); err != nil {
			slog.ErrorContext(ctx, "relationship accepted notification failed", "relationship_id", rel.ID, "err", err)
		}
	}

	return rel, nil
}

func (s *Service) EndorseRelationships(ctx context.Context, customerAccountID uuid.UUID, appSigned, hwSigned bool, endorsements []relationship_in.Endorsement) error {
	if !appSigned || !hwSigned {
		return common.NewErrForbidden("KeyProofRequired")
	}

	now := s.clock.Now()
	for _, endorsement := range endorsements {
		rel, err := s.repo.GetByID(ctx, endorsement.RelationshipID)
		if err != nil {
			slog.WarnContext(ctx, "endorse: relationship not found", "relationship_id", endorsement.RelationshipID, "err", err)
			continue
		}
		if rel.CustomerAccountID != customerAccountID || rel.Status != relationship_entities.StatusUnendorsed {
			continue
		}
		rel.Status = relationship_entities.StatusEndorsed
		rel.DelegatedDecryptionPubkeyCertificate = endorsement.DelegatedDecryptionPubkeyCertificate
		rel.UpdatedAt = now
		if err := s.repo.Update(ctx, rel); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ReissueInvitation(ctx context.Context, customerAccountID, relationshipID uuid.UUID, appSigned, hwSigned bool) (relationship_in.CreateInvitationResult, error) {
	if !appSigned || !hwSigned {
		return relationship_in.CreateInvitationResult{}, common.NewErrForbidden("KeyProofRequired")
	}

	rel, err := s.repo.GetByID(ctx, relationshipID)
	if err != nil {
		return relationship_in.CreateInvitationResult{}, err
	}
	if rel.CustomerAccountID != customerAccountID {
		return relationship_in.CreateInvitationResult{}, common.NewErrForbidden("NotRelationshipCustomer")
	}
	if rel.Status != relationship_entities.StatusInvitation {
		return relationship_in.CreateInvitationResult{}, common.NewErrConflict("InvitationNotPending")
	}

	code, codeHash, err := s.issueCode()
	if err != nil {
		return relationship_in.CreateInvitationResult{}, err
	}

	now := s.clock.Now()
	rel.CodeHash = codeHash
	rel.CodeBitLength = s.config.CodeBitLength
	rel.ExpiresAt = now.Add(s.config.InvitationTTL)
	rel.UpdatedAt = now

	if err := s.repo.Update(ctx, rel); err != nil {
		return relationship_in.CreateInvitationResult{}, err
	}

	return relationship_in.CreateInvitationResult{Relationship: rel, Code: code}, nil
}

func (s *Service) DeleteRelationship(ctx context.Context, actingAccountID, relationshipID uuid.UUID) error {
	rel, err := s.repo.GetByID(ctx, relationshipID)
	if err != nil {
		return err
	}
	if rel.CustomerAccountID != actingAccountID && rel.TrustedContactAccountID != actingAccountID {
		return common.NewErrForbidden("NotRelationshipParty")
	}

	if rel.HasRole(relationship_entities.RoleBeneficiary) && s.claims != nil {
		asBenefactor, asBeneficiary, err := s.claims.HasIncompleteClaim(ctx, relationshipID)
		if err != nil {
			return err
		}
		if asBenefactor {
			return common.NewErrBadRequest("CannotDeleteRelationshipToBeneficiaryWithPendingClaim")
		}
		if asBeneficiary {
			return common.NewErrBadRequest("CannotDeleteRelationshipToBenefactorWithPendingClaim")
		}
	}

	return s.repo.Delete(ctx, relationshipID)
}

func (s *Service) GetRelationships(ctx context.Context, accountID uuid.UUID, roleFilter *relationship_entities.Role) (relationship_in.RelationshipsView, error) {
	asCustomer, err := s.repo.FindByCustomer(ctx, accountID)
	if err != nil {
		return relationship_in.RelationshipsView{}, err
	}
	asTrustedContact, err := s.repo.FindByTrustedContact(ctx, accountID)
	if err != nil {
		return relationship_in.RelationshipsView{}, err
	}

	view := relationship_in.RelationshipsView{}
	for _, rel := range asCustomer {
		if roleFilter != nil && !rel.HasRole(*roleFilter) {
			continue
		}
		switch rel.Status {
		case relationship_entities.StatusInvitation:
			view.Invitations = append(view.Invitations, rel)
		case relationship_entities.StatusUnendorsed:
			view.UnendorsedTrustedContacts = append(view.UnendorsedTrustedContacts, rel)
		case relationship_entities.StatusEndorsed:
			view.EndorsedTrustedContacts = append(view.EndorsedTrustedContacts, rel)
		}
	}
	for _, rel := range asTrustedContact {
		if roleFilter != nil && !rel.HasRole(*roleFilter) {
			continue
		}
		view.Customers = append(view.Customers, rel)
	}
	return view, nil
}

// DeleteAllForTrustedContact implements account_out.RelationshipTeardown,
// called when a trusted-contact account is deleted (spec.md §4.3): the
// relationship no longer has anyone to notify or endorse on the other end,
// so it's removed rather than left Unendorsed forever.
func (s *Service) DeleteAllForTrustedContact(ctx context.Context, accountID uuid.UUID) error {
	rels, err := s.repo.FindByTrustedContact(ctx, accountID)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if err := s.repo.Delete(ctx, rel.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) GetInvitationForCode(ctx context.Context, code string, expectedRole *relationship_entities.Role) (relationship_entities.Relationship, error) {
	// Codes aren't indexed by value (only their bcrypt hash is stored), and
	// no relationship id is supplied here, so no invitation is looked up or
	// re-verified: every call returns NotFound.
	return relationship_entities.Relationship{}, common.NewErrNotFound(common.ResourceTypeRelationship, "code", code)
}
