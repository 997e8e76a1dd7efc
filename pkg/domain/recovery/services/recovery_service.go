// Package recovery_services implements recovery_in.Service (spec.md §4.6).
package recovery_services

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	common "github.com/coldkeep/custody-api/pkg/domain"
	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_in "github.com/coldkeep/custody-api/pkg/domain/account/ports/in"
	account_out "github.com/coldkeep/custody-api/pkg/domain/account/ports/out"
	account_services "github.com/coldkeep/custody-api/pkg/domain/account/services"
	comms_entities "github.com/coldkeep/custody-api/pkg/domain/comms/entities"
	comms_in "github.com/coldkeep/custody-api/pkg/domain/comms/ports/in"
	notification_entities "github.com/coldkeep/custody-api/pkg/domain/notification/entities"
	notification_in "github.com/coldkeep/custody-api/pkg/domain/notification/ports/in"
	recovery_entities "github.com/coldkeep/custody-api/pkg/domain/recovery/entities"
	recovery_in "github.com/coldkeep/custody-api/pkg/domain/recovery/ports/in"
	recovery_out "github.com/coldkeep/custody-api/pkg/domain/recovery/ports/out"
	"github.com/coldkeep/custody-api/pkg/domain/userpool"
	"github.com/coldkeep/custody-api/pkg/infra/crypto"
)

// testDelayPeriod is the default delay for is_test_account recoveries
// (spec.md §4.6 step 5); TestDelayOverrideAllowed in config further allows
// an explicit caller-provided override on top of this default.
const testDelayPeriod = 20 * time.Second

// contestGateWindow is how long a CanceledInContest recovery keeps
// requiring comms-verification before a new create (spec.md §4.6 step 4).
const contestGateWindow = 30 * 24 * time.Hour

// maxDailyPendingNotifications bounds the daily-pending schedule loop so a
// misconfigured delay period can't enqueue an unbounded number of rows.
const maxDailyPendingNotifications = 30

type Service struct {
	repo          recovery_out.Repository
	accounts      account_out.AccountRepository
	userpool      userpool.Gateway
	comms         comms_in.Service
	notifications notification_in.Service
	config        common.RecoveryConfig
	clock         common.Clock
}

// NewService takes account_out.AccountRepository directly, not
// account_in.Service: account_in.Service optionally depends on
// account_out.RecoveryTeardown (this Service), so depending on it back
// would deadlock container resolution. Auth-key rotation goes through
// account_services.RotateAuthKeysOnRepo instead.
func NewService(
	repo recovery_out.Repository,
	accounts account_out.AccountRepository,
	userpoolGateway userpool.Gateway,
	comms comms_in.Service,
	notifications notification_in.Service,
	config common.RecoveryConfig,
	clock common.Clock,
) *Service {
	return &Service{
		repo:          repo,
		accounts:      accounts,
		userpool:      userpoolGateway,
		comms:         comms,
		notifications: notifications,
		config:        config,
		clock:         clock,
	}
}

var _ recovery_in.Service = (*Service)(nil)
var _ account_out.RecoveryTeardown = (*Service)(nil)

func (s *Service) Create(ctx context.Context, req recovery_in.CreateRequest) (recovery_entities.Recovery, error) {
	if req.LostFactor != "app" && req.LostFactor != "hw" {
		return recovery_entities.Recovery{}, common.NewErrBadRequest("InvalidLostFactor")
	}
	nonLostFactor := recovery_entities.OppositeFactor(req.LostFactor)

	if req.AppSigned == req.HwSigned {
		// exactly one of app_signed/hw_signed must be present (spec.md §8).
		return recovery_entities.Recovery{}, common.NewErrBadRequest("RecoveryRequiresExactlyOneSigner")
	}
	signedAsNonLost := (nonLostFactor == "app" && req.AppSigned) || (nonLostFactor == "hw" && req.HwSigned)
	if !signedAsNonLost {
		return recovery_entities.Recovery{}, common.NewErrForbidden("KeyProofRequired")
	}

	acct, err := s.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		return recovery_entities.Recovery{}, err
	}

	if existing, found, err := s.repo.FindPendingByAccount(ctx, req.AccountID); err != nil {
		return recovery_entities.Recovery{}, err
	} else if found {
		if existing.SameDestination(req.DestAppPubkey, req.DestHwPubkey, req.DestRecoveryPubkey) {
			return existing, nil
		}
		return recovery_entities.Recovery{}, common.NewErrConflict("RecoveryAlreadyExists")
	}

	currentKeys, _ := acct.ActiveAuthKeys()
	if err := s.checkDestination(ctx, req, nonLostFactor, currentKeys); err != nil {
		return recovery_entities.Recovery{}, err
	}

	now := s.clock.Now()
	since := now.Add(-contestGateWindow)
	recentContest, err := s.repo.HasRecentCanceledInContest(ctx, req.AccountID, since)
	if err != nil {
		return recovery_entities.Recovery{}, err
	}
	if recentContest {
		if err := s.verifyContestGate(ctx, req.AccountID, req.VerificationCode); err != nil {
			return recovery_entities.Recovery{}, err
		}
	}

	delay := s.delayPeriod(acct, req.DelayPeriodOverride)
	if req.DelayPeriodOverride != nil && !acct.IsTestAccount {
		return recovery_entities.Recovery{}, common.NewErrBadRequest("DelayOverrideNotAllowed")
	}

	rec := recovery_entities.Recovery{
		ID:                 uuid.New(),
		AccountID:          req.AccountID,
		LostFactor:         req.LostFactor,
		Status:             recovery_entities.StatusPending,
		DestAppPubkey:      req.DestAppPubkey,
		DestHwPubkey:       req.DestHwPubkey,
		DestRecoveryPubkey: req.DestRecoveryPubkey,
		DelayEndTime:       now.Add(delay),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return recovery_entities.Recovery{}, err
	}

	s.scheduleNotifications(ctx, rec)

	slog.InfoContext(ctx, "recovery created", "account_id", req.AccountID, "lost_factor", req.LostFactor, "delay_end_time", rec.DelayEndTime)

	return rec, nil
}

// checkDestination enforces spec.md §4.6 step 2/§7's reuse taxonomy: the
// non-lost factor's destination must equal the account's current value for
// that role (InvalidRecoveryDestination otherwise); every destination
// pubkey must not collide with another account's active key or another
// account's pending recovery destination.
func (s *Service) checkDestination(ctx context.Context, req recovery_in.CreateRequest, nonLostFactor string, currentKeys account_entities.AuthKeys) error {
	dest := map[string][]byte{"app": req.DestAppPubkey, "hw": req.DestHwPubkey, "recovery": req.DestRecoveryPubkey}
	current := map[string][]byte{"app": currentKeys.AppPubkey, "hw": currentKeys.HwPubkey, "recovery": currentKeys.RecoveryPubkey}

	for _, role := range []string{"app", "hw", "recovery"} {
		pubkey := dest[role]
		if len(pubkey) == 0 {
			continue
		}

		if role == nonLostFactor && !bytes.Equal(pubkey, current[role]) {
			return common.NewErrBadRequest("InvalidRecoveryDestination")
		}

		if existing, found, err := s.accounts.FindByActiveAuthPubkey(ctx, role, pubkey); err != nil {
			return err
		} else if found && existing.ID != req.AccountID {
			return newReuseError(role, "Account")
		}

		if collidingAccountID, found, err := s.repo.FindByPendingDestinationPubkey(ctx, role, pubkey); err != nil {
			return err
		} else if found && collidingAccountID != req.AccountID {
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

func (s *Service) verifyContestGate(ctx context.Context, accountID uuid.UUID, code string) error {
	if code == "" {
		return common.NewErrForbidden("CommsVerificationRequired")
	}
	scope := comms_entities.NewScope(comms_entities.ScopeDelayNotifyRecovery)
	if err := s.comms.Verify(ctx, comms_in.VerifyRequest{AccountID: accountID, Scope: scope, Code: code}); err != nil {
		return err
	}
	return s.comms.Consume(ctx, accountID, scope)
}

func (s *Service) delayPeriod(acct account_entities.Account, override *time.Duration) time.Duration {
	if acct.IsTestAccount {
		if s.config.TestDelayOverrideAllowed && override != nil {
			return *override
		}
		return testDelayPeriod
	}
	if s.config.DelayPeriod > 0 {
		return s.config.DelayPeriod
	}
	return 7 * 24 * time.Hour
}

// scheduleNotifications enqueues the daily "pending" stream up to
// delay_end_time plus the "completed" stream from then on (spec.md §4.6
// step 6, §4.5's split-schedule supplement). Failures are logged, not
// fatal to recovery creation.
func (s *Service) scheduleNotifications(ctx context.Context, rec recovery_entities.Recovery) {
	if s.notifications == nil {
		return
	}

	if _, err := s.notifications.SendImmediate(ctx, notification_in.ImmediateRequest{
		AccountID:   rec.AccountID,
		PayloadType: notification_entities.PayloadRecoveryPendingDelayPeriod,
		Data:        map[string]interface{}{"recovery_id": rec.ID.String(), "delay_end_time": rec.DelayEndTime},
	}); err != nil {
		slog.ErrorContext(ctx, "recovery pending notification failed", "recovery_id", rec.ID, "err", err)
	}

	t := rec.CreatedAt.Add(24 * time.Hour)
	for i := 0; i < maxDailyPendingNotifications && t.Before(rec.DelayEndTime); i, t = i+1, t.Add(24*time.Hour) {
		if _, err := s.notifications.Schedule(ctx, notification_in.ScheduleRequest{
			AccountID:         rec.AccountID,
			PayloadType:       notification_entities.PayloadRecoveryPendingDelayPeriod,
			ExecutionDateTime: t,
			Data:              map[string]interface{}{"recovery_id": rec.ID.String()},
		}); err != nil {
			slog.ErrorContext(ctx, "recovery daily pending schedule failed", "recovery_id", rec.ID, "err", err)
		}
	}

	if _, err := s.notifications.Schedule(ctx, notification_in.ScheduleRequest{
		AccountID:         rec.AccountID,
		PayloadType:       notification_entities.PayloadRecoveryCompletedDelayPeriod,
		ExecutionDateTime: rec.DelayEndTime,
		Data:              map[string]interface{}{"recovery_id": rec.ID.String()},
	}); err != nil {
		slog.ErrorContext(ctx, "recovery completed schedule failed", "recovery_id", rec.ID, "err", err)
	}
}

func (s *Service) CancelOrContest(ctx context.Context, accountID uuid.UUID, signingFactor string) (recovery_entities.Recovery, error) {
	rec, found, err := s.repo.FindPendingByAccount(ctx, accountID)
	if err != nil {
		return recovery_entities.Recovery{}, err
	}
	if !found {
		return recovery_entities.Recovery{}, common.NewErrNotFound(common.ResourceTypeRecoveryEntity, "account_id", accountID)
	}

	now := s.clock.Now()
	rec.UpdatedAt = now

	if signingFactor == rec.LostFactor {
		rec.Status = recovery_entities.StatusCanceled
		rec.CanceledAt = &now
		if err := s.repo.Update(ctx, rec); err != nil {
			return recovery_entities.Recovery{}, err
		}
		if s.notifications != nil {
			if _, err := s.notifications.SendImmediate(ctx, notification_in.ImmediateRequest{
				AccountID:   accountID,
				PayloadType: notification_entities.PayloadRecoveryCanceled,
				Data:        map[string]interface{}{"recovery_id": rec.ID.String()},
			}); err != nil {
				slog.ErrorContext(ctx, "recovery canceled notification failed", "recovery_id", rec.ID, "err", err)
			}
		}
		return rec, nil
	}

	rec.Status = recovery_entities.StatusCanceledInContest
	rec.ContestedAt = &now
	if err := s.repo.Update(ctx, rec); err != nil {
		return recovery_entities.Recovery{}, err
	}
	if s.notifications != nil {
		if _, err := s.notifications.SendImmediate(ctx, notification_in.ImmediateRequest{
			AccountID:   accountID,
			PayloadType: notification_entities.PayloadRecoveryContested,
			Data:        map[string]interface{}{"recovery_id": rec.ID.String()},
		}); err != nil {
			slog.ErrorContext(ctx, "recovery contested notification failed", "recovery_id", rec.ID, "err", err)
		}
	}
	return rec, nil
}

func (s *Service) Complete(ctx context.Context, accountID uuid.UUID, challenge, appSig, hwSig []byte) (uuid.UUID, error) {
	rec, found, err := s.repo.FindPendingByAccount(ctx, accountID)
	if err != nil {
		return uuid.Nil, err
	}
	if !found {
		if completed, ok, err := s.repo.FindLatestCompletedByAccount(ctx, accountID); err == nil && ok {
			if bytes.Equal(completed.CompletedChallenge, challenge) {
				return completed.NewAuthKeysID, nil
			}
			return uuid.Nil, common.NewErrConflict("RecoveryAlreadyCompleted")
		}
		return uuid.Nil, common.NewErrNotFound(common.ResourceTypeRecoveryEntity, "account_id", accountID)
	}

	now := s.clock.Now()
	if !rec.CanComplete(now) {
		return uuid.Nil, common.NewErrForbidden("DelayPeriodNotElapsed")
	}

	if !bytes.Equal(challenge, rec.ExpectedChallenge()) {
		return uuid.Nil, common.NewErrBadRequest("InvalidChallenge")
	}

	appOK, err := crypto.VerifyDER(rec.DestAppPubkey, challenge, appSig)
	if err != nil {
		return uuid.Nil, err
	}
	hwOK, err := crypto.VerifyDER(rec.DestHwPubkey, challenge, hwSig)
	if err != nil {
		return uuid.Nil, err
	}
	if !appOK || !hwOK {
		return uuid.Nil, common.NewErrForbidden("KeyProofRequired")
	}

	newAuthKeysID, err := account_services.RotateAuthKeysOnRepo(ctx, s.accounts, s.clock, accountID, account_in.RotateAuthKeysRequest{
		AppPubkey:      rec.DestAppPubkey,
		HwPubkey:       rec.DestHwPubkey,
		RecoveryPubkey: rec.DestRecoveryPubkey,
	})
	if err != nil {
		return uuid.Nil, err
	}

	if err := s.rotateUserPoolIdentity(ctx, accountID, rec.LostFactor, rec.DestAppPubkey, rec.DestHwPubkey); err != nil {
		return uuid.Nil, err
	}

	rec.Status = recovery_entities.StatusComplete
	rec.CompletedAt = &now
	rec.CompletedChallenge = challenge
	rec.NewAuthKeysID = newAuthKeysID
	rec.UpdatedAt = now

	if err := s.repo.Update(ctx, rec); err != nil {
		return uuid.Nil, err
	}

	slog.InfoContext(ctx, "recovery completed", "account_id", accountID, "recovery_id", rec.ID, "new_auth_keys_id", newAuthKeysID)

	return newAuthKeysID, nil
}

// rotateUserPoolIdentity writes the rotated factor's new pubkey to its split
// user-pool username and signs that username out, per spec.md §4.6
// complete() effect (ii). A legacy identity found on read is signed out too.
func (s *Service) rotateUserPoolIdentity(ctx context.Context, accountID uuid.UUID, lostFactor string, destAppPubkey, destHwPubkey []byte) error {
	if s.userpool == nil {
		return nil
	}

	factor := factorUsernameKey(lostFactor)
	resolved, err := userpool.ResolveUsername(ctx, s.userpool, accountID.String(), factor)
	if err != nil {
		return err
	}

	app, hardware, _ := userpool.Usernames(accountID.String())
	username := app
	newPubkey := destAppPubkey
	if factor == "hardware" {
		username = hardware
		newPubkey = destHwPubkey
	}

	if err := s.userpool.CreateOrUpdateUser(ctx, username, newPubkey); err != nil {
		return err
	}
	if resolved != username {
		if err := s.userpool.SignOut(ctx, resolved); err != nil {
			return err
		}
	}

	return s.userpool.SignOut(ctx, username)
}

func factorUsernameKey(factor string) string {
	if factor == "hw" {
		return "hardware"
	}
	return factor
}

func (s *Service) GetPending(ctx context.Context, accountID uuid.UUID) (recovery_entities.Recovery, bool, error) {
	return s.repo.FindPendingByAccount(ctx, accountID)
}

// CancelAllForAccount implements account_out.RecoveryTeardown, called when
// an account is deleted.
func (s *Service) CancelAllForAccount(ctx context.Context, accountID uuid.UUID) error {
	rec, found, err := s.repo.FindPendingByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	now := s.clock.Now()
	rec.Status = recovery_entities.StatusCanceled
	rec.CanceledAt = &now
	rec.UpdatedAt = now
	return s.repo.Update(ctx, rec)
}
