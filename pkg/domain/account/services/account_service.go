// Package account_services implements pkg/domain/account/ports/in.Service.
package account_services

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/google/uuid"

	common "github.com/coldkeep/custody-api/pkg/domain"
	"github.com/coldkeep/custody-api/pkg/domain/account"
	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_in "github.com/coldkeep/custody-api/pkg/domain/account/ports/in"
	account_out "github.com/coldkeep/custody-api/pkg/domain/account/ports/out"
)

// Service implements account_in.Service (spec.md §4.3).
type Service struct {
	repo              account_out.AccountRepository
	pendingKeyIndex   account_out.PendingDestinationKeyIndex
	serverKeys        account_out.ServerKeyProvider
	recoveryTeardown  account_out.RecoveryTeardown
	relationshipTeardown account_out.RelationshipTeardown
	clock             common.Clock
}

func NewService(
	repo account_out.AccountRepository,
	pendingKeyIndex account_out.PendingDestinationKeyIndex,
	serverKeys account_out.ServerKeyProvider,
	recoveryTeardown account_out.RecoveryTeardown,
	relationshipTeardown account_out.RelationshipTeardown,
	clock common.Clock,
) *Service {
	return &Service{
		repo:                 repo,
		pendingKeyIndex:      pendingKeyIndex,
		serverKeys:           serverKeys,
		recoveryTeardown:     recoveryTeardown,
		relationshipTeardown: relationshipTeardown,
		clock:                clock,
	}
}

var _ account_in.Service = (*Service)(nil)

// checkPubkeyUniqueness enforces spec.md §3/§8: a submitted key must not
// collide with any active account's active key of the same role, nor with
// any pending recovery's destination key of that role, except the
// account's own current key when allowSelf is set.
func (s *Service) checkPubkeyUniqueness(ctx context.Context, role string, pubkey []byte, selfAccountID uuid.UUID, allowSelf bool) error {
	if len(pubkey) == 0 {
		return nil
	}

	existing, found, err := s.repo.FindByActiveAuthPubkey(ctx, role, pubkey)
	if err != nil {
		return err
	}
	if found {
		if allowSelf && existing.ID == selfAccountID {
			// reuse of one's own current key is permitted for non-lost factors
		} else {
			return newReuseError(role, "Account")
		}
	}

	if s.pendingKeyIndex != nil {
		collidingAccountID, found, err := s.pendingKeyIndex.FindByPendingDestinationPubkey(ctx, role, pubkey)
		if err != nil {
			return err
		}
		if found && collidingAccountID != selfAccountID {
			return newReuseError(role, "Recovery")
		}
	}

	return nil
}

func newReuseError(role, scope string) error {
	switch role {
	case "app":
		return common.NewErrBadRequest("AppAuthPubkeyReuse" + scope)
	case "hw":
		return common.NewErrBadRequest("HwAuthPubkeyReuse" + scope)
	default:
		return common.NewErrBadRequest("RecoveryAuthPubkeyReuse" + scope)
	}
}

func (s *Service) CreateFullAccount(ctx context.Context, req account_in.CreateFullAccountRequest) (account_in.CreatedAccount, error) {
	if req.IsTestAccount && !req.Network.IsTestNetwork() {
		return account_in.CreatedAccount{}, common.NewErrBadRequest("InvalidNetworkForNewKeyset")
	}

	// Idempotent create: if an account's active auth keys are exactly this
	// (app, hw, recovery) tuple, return it rather than erroring (spec.md S1).
	if existing, found, err := s.repo.FindByActiveAuthPubkey(ctx, "app", req.AppPubkey); err == nil && found {
		if keys, ok := existing.ActiveAuthKeys(); ok && bytes.Equal(keys.HwPubkey, req.HwPubkey) && bytes.Equal(keys.RecoveryPubkey, req.RecoveryPubkey) {
			keyset, _ := existing.ActiveKeyset()
			return account_in.CreatedAccount{AccountID: existing.ID, KeysetID: existing.ActiveKeysetID, ServerDpub: keyset.ServerDpub}, nil
		}
	}

	if err := s.checkPubkeyUniqueness(ctx, "app", req.AppPubkey, uuid.Nil, false); err != nil {
		return account_in.CreatedAccount{}, err
	}
	if err := s.checkPubkeyUniqueness(ctx, "hw", req.HwPubkey, uuid.Nil, false); err != nil {
		return account_in.CreatedAccount{}, err
	}
	if err := s.checkPubkeyUniqueness(ctx, "recovery", req.RecoveryPubkey, uuid.Nil, false); err != nil {
		return account_in.CreatedAccount{}, err
	}

	now := s.clock.Now()
	accountID := uuid.New()
	authKeysID := uuid.New()
	keysetID := uuid.New()

	serverDpub, err := s.serverKeys.DeriveServerDpub(req.Network)
	if err != nil {
		return account_in.CreatedAccount{}, err
	}

	acct := account_entities.Account{
		ID:               accountID,
		Kind:             account_entities.KindFull,
		ActiveAuthKeysID: authKeysID,
		AuthKeysHistory: []account_entities.AuthKeys{{
			ID: authKeysID, AppPubkey: req.AppPubkey, HwPubkey: req.HwPubkey,
			RecoveryPubkey: req.RecoveryPubkey, CreatedAt: now,
		}},
		ActiveKeysetID: keysetID,
		KeysetHistory: []account_entities.SpendingKeyset{{
			ID: keysetID, Network: req.Network, AppDpub: req.AppDpub,
			HwDpub: req.HwDpub, ServerDpub: serverDpub, CreatedAt: now,
		}},
		IsTestAccount: req.IsTestAccount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, acct); err != nil {
		return account_in.CreatedAccount{}, err
	}

	slog.InfoContext(ctx, "account created", "account_id", accountID, "kind", "full", "network", req.Network)

	return account_in.CreatedAccount{AccountID: accountID, KeysetID: keysetID, ServerDpub: serverDpub}, nil
}

func (s *Service) CreateLiteAccount(ctx context.Context, req account_in.CreateLiteAccountRequest) (account_in.CreatedAccount, error) {
	if err := s.checkPubkeyUniqueness(ctx, "recovery", req.RecoveryPubkey, uuid.Nil, false); err != nil {
		return account_in.CreatedAccount{}, err
	}

	if existing, found, err := s.repo.FindByActiveAuthPubkey(ctx, "recovery", req.RecoveryPubkey); err == nil && found {
		return account_in.CreatedAccount{AccountID: existing.ID}, nil
	}

	now := s.clock.Now()
	accountID := uuid.New()
	authKeysID := uuid.New()

	acct := account_entities.Account{
		ID:               accountID,
		Kind:             account_entities.KindLite,
		ActiveAuthKeysID: authKeysID,
		AuthKeysHistory: []account_entities.AuthKeys{
			{ID: authKeysID, RecoveryPubkey: req.RecoveryPubkey, CreatedAt: now},
		},
		IsTestAccount: req.IsTestAccount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, acct); err != nil {
		return account_in.CreatedAccount{}, err
	}

	slog.InfoContext(ctx, "account created", "account_id", accountID, "kind", "lite")

	return account_in.CreatedAccount{AccountID: accountID}, nil
}

func (s *Service) UpgradeLiteToFull(ctx context.Context, accountID uuid.UUID, req account_in.UpgradeLiteToFullRequest) (account_in.CreatedAccount, error) {
	acct, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return account_in.CreatedAccount{}, err
	}
	if acct.Kind != account_entities.KindLite {
		return account_in.CreatedAccount{}, common.NewErrBadRequest("AccountIsNotLite")
	}
	if acct.IsTestAccount && !req.Network.IsTestNetwork() {
		return account_in.CreatedAccount{}, common.NewErrBadRequest("InvalidNetworkForNewKeyset")
	}

	if err := s.checkPubkeyUniqueness(ctx, "app", req.AppPubkey, accountID, false); err != nil {
		return account_in.CreatedAccount{}, err
	}
	if err := s.checkPubkeyUniqueness(ctx, "hw", req.HwPubkey, accountID, false); err != nil {
		return account_in.CreatedAccount{}, err
	}

	currentKeys, _ := acct.ActiveAuthKeys()
	serverDpub, err := s.serverKeys.DeriveServerDpub(req.Network)
	if err != nil {
		return account_in.CreatedAccount{}, err
	}

	now := s.clock.Now()
	newAuthKeysID := uuid.New()
	keysetID := uuid.New()

	acct.Kind = account_entities.KindFull
	acct.ActiveAuthKeysID = newAuthKeysID
	acct.AuthKeysHistory = append(acct.AuthKeysHistory, account_entities.AuthKeys{
		ID: newAuthKeysID, AppPubkey: req.AppPubkey, HwPubkey: req.HwPubkey,
		RecoveryPubkey: currentKeys.RecoveryPubkey, CreatedAt: now,
	})
	acct.ActiveKeysetID = keysetID
	acct.KeysetHistory = append(acct.KeysetHistory, account_entities.SpendingKeyset{
		ID: keysetID, Network: req.Network, AppDpub: req.AppDpub, HwDpub: req.HwDpub,
		ServerDpub: serverDpub, CreatedAt: now,
	})
	acct.UpdatedAt = now

	if err := s.repo.Update(ctx, acct); err != nil {
		return account_in.CreatedAccount{}, err
	}

	return account_in.CreatedAccount{AccountID: accountID, KeysetID: keysetID, ServerDpub: serverDpub}, nil
}

func (s *Service) FetchAccount(ctx context.Context, accountID uuid.UUID) (account_entities.Account, error) {
	return s.repo.GetByID(ctx, accountID)
}

func (s *Service) AddPushTouchpoint(ctx context.Context, accountID uuid.UUID, req account_in.AddPushTouchpointRequest) (uuid.UUID, error) {
	acct, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return uuid.Nil, err
	}

	tp := account_entities.Touchpoint{Kind: account_entities.TouchpointPush, Platform: req.Platform, Token: req.Token, ARN: req.ARN}
	key := tp.NormalizedKey()

	if existing, found := acct.FindTouchpoint(key); found {
		return existing.ID, nil
	}

	tp.ID = uuid.New()
	tp.Active = true
	tp.CreatedAt = s.clock.Now()
	acct.Touchpoints = append(acct.Touchpoints, tp)
	acct.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, acct); err != nil {
		return uuid.Nil, err
	}
	return tp.ID, nil
}

func (s *Service) FetchOrCreatePhoneTouchpoint(ctx context.Context, accountID uuid.UUID, req account_in.AddPhoneTouchpointRequest) (uuid.UUID, error) {
	if !account.IsSupportedCountryCode(req.CountryCode) {
		return uuid.Nil, common.NewErrBadRequest("UnsupportedCountryCode")
	}
	if req.E164 == "" || req.E164[0] != '+' {
		return uuid.Nil, common.NewErrBadRequest("InvalidPhoneNumber")
	}

	acct, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return uuid.Nil, err
	}

	tp := account_entities.Touchpoint{Kind: account_entities.TouchpointPhone, CountryCode: req.CountryCode, E164: req.E164}
	key := tp.NormalizedKey()
	if existing, found := acct.FindTouchpoint(key); found {
		return existing.ID, nil
	}

	tp.ID = uuid.New()
	tp.CreatedAt = s.clock.Now()
	acct.Touchpoints = append(acct.Touchpoints, tp)
	acct.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, acct); err != nil {
		return uuid.Nil, err
	}
	return tp.ID, nil
}

func (s *Service) FetchOrCreateEmailTouchpoint(ctx context.Context, accountID uuid.UUID, req account_in.AddEmailTouchpointRequest) (uuid.UUID, error) {
	if !bytes.ContainsRune([]byte(req.Address), '@') {
		return uuid.Nil, common.NewErrBadRequest("InvalidEmailAddress")
	}

	acct, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return uuid.Nil, err
	}

	tp := account_entities.Touchpoint{Kind: account_entities.TouchpointEmail, Address: req.Address}
	key := tp.NormalizedKey()
	if existing, found := acct.FindTouchpoint(key); found {
		return existing.ID, nil
	}

	tp.ID = uuid.New()
	tp.CreatedAt = s.clock.Now()
	acct.Touchpoints = append(acct.Touchpoints, tp)
	acct.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, acct); err != nil {
		return uuid.Nil, err
	}
	return tp.ID, nil
}

// VerifyTouchpointCode marks a pending touchpoint active once the comms
// code has been verified (the actual code check happens in
// pkg/domain/comms; this is the activation step it triggers).
func (s *Service) VerifyTouchpointCode(ctx context.Context, accountID, touchpointID uuid.UUID) error {
	acct, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	return s.setTouchpointActive(ctx, acct, touchpointID)
}

func (s *Service) ActivateTouchpoint(ctx context.Context, accountID, touchpointID uuid.UUID, proof account_in.KeyProof) error {
	acct, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	// Onboarding gate (spec.md §4.3): post-onboarding activation requires
	// both key-proofs; pre-onboarding a single proof suffices.
	if acct.OnboardingComplete {
		if proof == nil || !proof.RequireBoth() {
			return common.NewErrForbidden("KeyProofRequired")
		}
	}

	return s.setTouchpointActive(ctx, acct, touchpointID)
}

func (s *Service) setTouchpointActive(ctx context.Context, acct account_entities.Account, touchpointID uuid.UUID) error {
	found := false
	for i, tp := range acct.Touchpoints {
		if tp.ID == touchpointID {
			if tp.Active {
				return common.NewErrBadRequest("TouchpointAlreadyActive")
			}
			if tp.Kind == account_entities.TouchpointPhone {
				if _, hasActive := acct.ActivePhoneTouchpoint(); hasActive {
					return common.NewErrBadRequest("TouchpointAlreadyActive")
				}
			}
			if tp.Kind == account_entities.TouchpointEmail {
				if _, hasActive := acct.ActiveEmailTouchpoint(); hasActive {
					return common.NewErrBadRequest("TouchpointAlreadyActive")
				}
			}
			acct.Touchpoints[i].Active = true
			found = true
			break
		}
	}
	if !found {
		return common.NewErrNotFound(common.ResourceTypeTouchpoint, "id", touchpointID)
	}

	acct.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, acct)
}

func (s *Service) CreateInactiveSpendingKeyset(ctx context.Context, accountID uuid.UUID, req account_in.CreateInactiveSpendingKeysetRequest) (uuid.UUID, string, error) {
	acct, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return uuid.Nil, "", err
	}

	if active, ok := acct.ActiveKeyset(); ok && active.Network != req.Network {
		if acct.IsTestAccount && !req.Network.IsTestNetwork() {
			return uuid.Nil, "", common.NewErrBadRequest("InvalidNetworkForNewKeyset")
		}
	}

	serverDpub, err := s.serverKeys.DeriveServerDpub(req.Network)
	if err != nil {
		return uuid.Nil, "", err
	}

	keysetID := uuid.New()
	acct.KeysetHistory = append(acct.KeysetHistory, account_entities.SpendingKeyset{
		ID: keysetID, Network: req.Network, AppDpub: req.AppDpub, HwDpub: req.HwDpub,
		ServerDpub: serverDpub, CreatedAt: s.clock.Now(),
	})
	acct.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, acct); err != nil {
		return uuid.Nil, "", err
	}
	return keysetID, serverDpub, nil
}

func (s *Service) RotateToSpendingKeyset(ctx context.Context, accountID, keysetID uuid.UUID) error {
	acct, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	newKeyset, ok := acct.FindKeysetByID(keysetID)
	if !ok {
		return common.NewErrNotFound(common.ResourceTypeKeyset, "id", keysetID)
	}

	if active, ok := acct.ActiveKeyset(); ok && active.Network != newKeyset.Network {
		return common.NewErrBadRequest("NetworkHoppingNotAllowed")
	}

	acct.ActiveKeysetID = keysetID
	acct.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, acct)
}

func (s *Service) CompleteOnboarding(ctx context.Context, accountID uuid.UUID) error {
	acct, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	acct.OnboardingComplete = true
	acct.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, acct)
}

func (s *Service) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	if s.recoveryTeardown != nil {
		if err := s.recoveryTeardown.CancelAllForAccount(ctx, accountID); err != nil {
			return err
		}
	}
	if s.relationshipTeardown != nil {
		if err := s.relationshipTeardown.DeleteAllForTrustedContact(ctx, accountID); err != nil {
			return err
		}
	}

	acct, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	acct.Touchpoints = nil
	acct.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, acct)
}

func (s *Service) RotateAuthKeys(ctx context.Context, accountID uuid.UUID, req account_in.RotateAuthKeysRequest) (uuid.UUID, error) {
	return RotateAuthKeysOnRepo(ctx, s.repo, s.clock, accountID, req)
}

// RotateAuthKeysOnRepo is the free-function form of RotateAuthKeys, taking
// the repository and clock directly rather than a *Service. recovery_service
// calls this at complete() time (spec.md §4.6 effect i/iv) instead of
// depending on account_in.Service, which would otherwise create a container
// cycle (account_in.Service optionally depends on account_out.RecoveryTeardown,
// implemented by the recovery service).
func RotateAuthKeysOnRepo(ctx context.Context, repo account_out.AccountRepository, clock common.Clock, accountID uuid.UUID, req account_in.RotateAuthKeysRequest) (uuid.UUID, error) {
	acct, err := repo.GetByID(ctx, accountID)
	if err != nil {
		return uuid.Nil, err
	}

	newID := uuid.New()
	acct.AuthKeysHistory = append(acct.AuthKeysHistory, account_entities.AuthKeys{
		ID: newID, AppPubkey: req.AppPubkey, HwPubkey: req.HwPubkey,
		RecoveryPubkey: req.RecoveryPubkey, CreatedAt: clock.Now(),
	})
	acct.ActiveAuthKeysID = newID
	// new auth factors force push re-registration (spec.md §4.6 complete effect iv).
	kept := acct.Touchpoints[:0]
	for _, tp := range acct.Touchpoints {
		if tp.Kind != account_entities.TouchpointPush {
			kept = append(kept, tp)
		}
	}
	acct.Touchpoints = kept
	acct.UpdatedAt = clock.Now()

	if err := repo.Update(ctx, acct); err != nil {
		return uuid.Nil, err
	}
	return newID, nil
}
