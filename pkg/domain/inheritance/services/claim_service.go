// Package inheritance_services implements inheritance_in.Service (spec.md
// §4.8): claim start/lock/complete/cancel, package upload, and the
// relationship_out.ClaimGuard the relationship domain consults before
// deleting a Beneficiary-role relationship.
package inheritance_services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	common "github.com/coldkeep/custody-api/pkg/domain"
	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_out "github.com/coldkeep/custody-api/pkg/domain/account/ports/out"
	inheritance_entities "github.com/coldkeep/custody-api/pkg/domain/inheritance/entities"
	inheritance_in "github.com/coldkeep/custody-api/pkg/domain/inheritance/ports/in"
	inheritance_out "github.com/coldkeep/custody-api/pkg/domain/inheritance/ports/out"
	notification_entities "github.com/coldkeep/custody-api/pkg/domain/notification/entities"
	notification_in "github.com/coldkeep/custody-api/pkg/domain/notification/ports/in"
	relationship_entities "github.com/coldkeep/custody-api/pkg/domain/relationship/entities"
	relationship_out "github.com/coldkeep/custody-api/pkg/domain/relationship/ports/out"
	"github.com/coldkeep/custody-api/pkg/infra/crypto"
)

// testClaimLockPeriod mirrors recovery's test-account delay override
// (spec.md §4.8's "test accounts may use a test override").
const testClaimLockPeriod = 30 * time.Second

type Service struct {
	repo          inheritance_out.Repository
	relationships relationship_out.Repository
	accounts      account_out.AccountRepository
	hsm           inheritance_out.HSMSigner
	broadcaster   inheritance_out.Broadcaster
	screener      inheritance_out.Screener
	notifications notification_in.Service
	config        common.InheritanceConfig
	clock         common.Clock
}

func NewService(
	repo inheritance_out.Repository,
	relationships relationship_out.Repository,
	accounts account_out.AccountRepository,
	hsm inheritance_out.HSMSigner,
	broadcaster inheritance_out.Broadcaster,
	screener inheritance_out.Screener,
	notifications notification_in.Service,
	config common.InheritanceConfig,
	clock common.Clock,
) *Service {
	return &Service{
		repo:          repo,
		relationships: relationships,
		accounts:      accounts,
		hsm:           hsm,
		broadcaster:   broadcaster,
		screener:      screener,
		notifications: notifications,
		config:        config,
		clock:         clock,
	}
}

var _ inheritance_in.Service = (*Service)(nil)
var _ relationship_out.ClaimGuard = (*Service)(nil)

func (s *Service) lockPeriod(acct account_entities.Account) time.Duration {
	if acct.IsTestAccount {
		return testClaimLockPeriod
	}
	if s.config.ClaimLockPeriod > 0 {
		return s.config.ClaimLockPeriod
	}
	return 6 * 30 * 24 * time.Hour
}

func (s *Service) Start(ctx context.Context, req inheritance_in.StartRequest) (inheritance_entities.Claim, error) {
	rel, err := s.relationships.GetByID(ctx, req.RelationshipID)
	if err != nil {
		return inheritance_entities.Claim{}, err
	}
	if rel.TrustedContactAccountID != req.BeneficiaryAccountID {
		return inheritance_entities.Claim{}, common.NewErrForbidden("NotRelationshipBeneficiary")
	}
	if rel.Status != relationship_entities.StatusEndorsed || !rel.HasRole(relationship_entities.RoleBeneficiary) {
		return inheritance_entities.Claim{}, common.NewErrForbidden("RelationshipNotEndorsedBeneficiary")
	}

	beneficiary, err := s.accounts.GetByID(ctx, req.BeneficiaryAccountID)
	if err != nil {
		return inheritance_entities.Claim{}, err
	}
	if beneficiary.Kind != account_entities.KindFull {
		return inheritance_entities.Claim{}, common.NewErrForbidden("InvalidAccountKind")
	}

	if existing, found, err := s.repo.FindNonTerminalByRelationship(ctx, req.RelationshipID); err != nil {
		return inheritance_entities.Claim{}, err
	} else if found {
		return existing, common.NewErrConflict("ClaimAlreadyExists")
	}

	benefactor, err := s.accounts.GetByID(ctx, rel.CustomerAccountID)
	if err != nil {
		return inheritance_entities.Claim{}, err
	}

	now := s.clock.Now()
	claim := inheritance_entities.Claim{
		ID:             uuid.New(),
		RelationshipID: req.RelationshipID,
		BenefactorID:   rel.CustomerAccountID,
		BeneficiaryID:  req.BeneficiaryAccountID,
		Status:         inheritance_entities.StatusPending,
		DelayEndTime:   now.Add(s.lockPeriod(benefactor)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, claim); err != nil {
		return inheritance_entities.Claim{}, err
	}

	s.notify(ctx, claim.BeneficiaryID, notification_entities.PayloadInheritanceClaimPendingInitiated, claim.ID)

	return claim, nil
}

func (s *Service) Lock(ctx context.Context, req inheritance_in.LockRequest) (inheritance_entities.Claim, error) {
	claim, err := s.repo.GetByID(ctx, req.ClaimID)
	if err != nil {
		return inheritance_entities.Claim{}, err
	}
	if claim.BeneficiaryID != req.BeneficiaryAccountID {
		return inheritance_entities.Claim{}, common.NewErrForbidden("NotClaimBeneficiary")
	}
	if claim.Status != inheritance_entities.StatusPending {
		return inheritance_entities.Claim{}, common.NewErrConflict("ClaimNotPending")
	}

	now := s.clock.Now()
	if !claim.CanLock(now) {
		return inheritance_entities.Claim{}, common.NewErrForbidden("DelayPeriodNotElapsed")
	}

	candidate := claim
	candidate.DestAppPubkey = req.DestAppPubkey
	candidate.DestHwPubkey = req.DestHwPubkey
	candidate.DestRecoveryPubkey = req.DestRecoveryPubkey
	challenge := candidate.ExpectedLockChallenge()

	appOK, err := crypto.VerifyDER(req.DestAppPubkey, challenge, req.AppSig)
	if err != nil {
		return inheritance_entities.Claim{}, err
	}
	hwOK, err := crypto.VerifyDER(req.DestHwPubkey, challenge, req.HwSig)
	if err != nil {
		return inheritance_entities.Claim{}, err
	}
	if !appOK || !hwOK {
		return inheritance_entities.Claim{}, common.NewErrForbidden("KeyProofRequired")
	}

	benefactor, err := s.accounts.GetByID(ctx, claim.BenefactorID)
	if err != nil {
		return inheritance_entities.Claim{}, err
	}
	keyset, ok := benefactor.ActiveKeyset()
	if !ok {
		return inheritance_entities.Claim{}, common.NewErrConflict("BenefactorHasNoActiveKeyset")
	}

	pkg, found, err := s.repo.FindPackageByRelationship(ctx, claim.RelationshipID)
	if err != nil {
		return inheritance_entities.Claim{}, err
	}
	if !found {
		return inheritance_entities.Claim{}, common.NewErrConflict("NoInheritancePackageUploaded")
	}

	claim.DestAppPubkey = req.DestAppPubkey
	claim.DestHwPubkey = req.DestHwPubkey
	claim.DestRecoveryPubkey = req.DestRecoveryPubkey
	claim.PackageAttached = &pkg
	claim.BenefactorKeyset = &keyset
	claim.Status = inheritance_entities.StatusLocked
	claim.LockedAt = &now
	claim.UpdatedAt = now

	if err := s.repo.Update(ctx, claim); err != nil {
		return inheritance_entities.Claim{}, err
	}

	s.notify(ctx, claim.BeneficiaryID, notification_entities.PayloadInheritanceClaimAlmostOver, claim.ID)

	return claim, nil
}

func (s *Service) Complete(ctx context.Context, req inheritance_in.CompleteRequest) (inheritance_entities.Claim, error) {
	claim, err := s.repo.GetByID(ctx, req.ClaimID)
	if err != nil {
		return inheritance_entities.Claim{}, err
	}
	if claim.BeneficiaryID != req.BeneficiaryAccountID {
		return inheritance_entities.Claim{}, common.NewErrForbidden("NotClaimBeneficiary")
	}

	isRBFReplace := claim.Status == inheritance_entities.StatusCompleted &&
		claim.CompletionKind == inheritance_entities.CompletionWithPsbt && len(req.Psbt) > 0
	if claim.Status != inheritance_entities.StatusLocked && !isRBFReplace {
		return inheritance_entities.Claim{}, common.NewErrConflict("ClaimNotLocked")
	}
	if claim.BenefactorKeyset == nil {
		return inheritance_entities.Claim{}, common.NewErrConflict("ClaimMissingBenefactorKeyset")
	}

	now := s.clock.Now()

	if len(req.Psbt) == 0 {
		claim.Status = inheritance_entities.StatusCompleted
		claim.CompletionKind = inheritance_entities.CompletionWithoutPsbt
		claim.CompletedAt = &now
		claim.UpdatedAt = now
		if err := s.repo.Update(ctx, claim); err != nil {
			return inheritance_entities.Claim{}, err
		}
		s.notify(ctx, claim.BeneficiaryID, notification_entities.PayloadInheritanceClaimPeriodCompleted, claim.ID)
		return claim, nil
	}

	addresses, err := outputAddresses(req.Psbt, claim.BenefactorKeyset.Network)
	if err != nil {
		return inheritance_entities.Claim{}, common.NewErrBadRequest("InvalidPsbt")
	}
	if s.screener != nil {
		for _, addr := range addresses {
			if s.screener.IsBlocked(addr) {
				return inheritance_entities.Claim{}, common.NewErrBlocked("OutputAddressBlocked")
			}
		}
	}

	signedPsbt, err := s.hsm.CoSignPSBT(ctx, claim.BenefactorKeyset.ID.String(), req.Psbt)
	if err != nil {
		return inheritance_entities.Claim{}, err
	}

	rawTx, err := finalizeAndExtract(signedPsbt)
	if err != nil {
		return inheritance_entities.Claim{}, common.NewErrBadRequest("PsbtFinalizationFailed")
	}

	txid, err := s.broadcaster.Broadcast(ctx, rawTx)
	if err != nil {
		return inheritance_entities.Claim{}, err
	}

	claim.Status = inheritance_entities.StatusCompleted
	claim.CompletionKind = inheritance_entities.CompletionWithPsbt
	claim.TxID = txid
	claim.CompletedAt = &now
	claim.UpdatedAt = now

	if err := s.repo.Update(ctx, claim); err != nil {
		return inheritance_entities.Claim{}, err
	}

	slog.InfoContext(ctx, "inheritance claim completed", "claim_id", claim.ID, "txid", txid)
	s.notify(ctx, claim.BeneficiaryID, notification_entities.PayloadInheritanceClaimPeriodCompleted, claim.ID)

	return claim, nil
}

func (s *Service) Cancel(ctx context.Context, actingAccountID, claimID uuid.UUID) (inheritance_entities.Claim, error) {
	claim, err := s.repo.GetByID(ctx, claimID)
	if err != nil {
		return inheritance_entities.Claim{}, err
	}
	if claim.BenefactorID != actingAccountID && claim.BeneficiaryID != actingAccountID {
		return inheritance_entities.Claim{}, common.NewErrForbidden("NotClaimParty")
	}
	if claim.Status != inheritance_entities.StatusPending {
		return inheritance_entities.Claim{}, common.NewErrForbidden("ClaimNoLongerCancelable")
	}

	now := s.clock.Now()
	claim.Status = inheritance_entities.StatusCanceled
	claim.CanceledAt = &now
	claim.UpdatedAt = now

	if err := s.repo.Update(ctx, claim); err != nil {
		return inheritance_entities.Claim{}, err
	}

	s.notify(ctx, claim.BeneficiaryID, notification_entities.PayloadInheritanceClaimCanceled, claim.ID)

	return claim, nil
}

func (s *Service) UploadPackage(ctx context.Context, req inheritance_in.PackageUploadRequest) error {
	rel, err := s.relationships.GetByID(ctx, req.RelationshipID)
	if err != nil {
		return err
	}
	if rel.CustomerAccountID != req.BenefactorAccountID {
		return common.NewErrForbidden("NotRelationshipCustomer")
	}
	if rel.Status != relationship_entities.StatusEndorsed || !rel.HasRole(relationship_entities.RoleBeneficiary) {
		return common.NewErrForbidden("RelationshipNotEndorsedBeneficiary")
	}

	return s.repo.UpsertPackage(ctx, req.RelationshipID, inheritance_entities.Package{
		SealedDEK:       req.SealedDEK,
		SealedMobileKey: req.SealedMobileKey,
	})
}

func (s *Service) GetByID(ctx context.Context, claimID uuid.UUID) (inheritance_entities.Claim, error) {
	return s.repo.GetByID(ctx, claimID)
}

// HasIncompleteClaim implements relationship_out.ClaimGuard.
func (s *Service) HasIncompleteClaim(ctx context.Context, relationshipID uuid.UUID) (asBenefactor, asBeneficiary bool, err error) {
	claim, found, err := s.repo.FindNonTerminalByRelationship(ctx, relationshipID)
	if err != nil {
		return false, false, err
	}
	if !found {
		return false, false, nil
	}
	return true, true, nil
}

func (s *Service) notify(ctx context.Context, accountID uuid.UUID, payload notification_entities.PayloadType, claimID uuid.UUID) {
	if s.notifications == nil {
		return
	}
	if _, err := s.notifications.SendImmediate(ctx, notification_in.ImmediateRequest{
		AccountID:   accountID,
		PayloadType: payload,
		Data:        map[string]interface{}{"claim_id": claimID.String()},
	}); err != nil {
		slog.ErrorContext(ctx, "inheritance claim notification failed", "claim_id", claimID, "payload_type", payload, "err", err)
	}
}
