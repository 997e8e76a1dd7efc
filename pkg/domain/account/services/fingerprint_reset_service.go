package account_services

import (
	"context"
	"time"

	"github.com/google/uuid"

	common "github.com/coldkeep/custody-api/pkg/domain"
	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_in "github.com/coldkeep/custody-api/pkg/domain/account/ports/in"
	account_out "github.com/coldkeep/custody-api/pkg/domain/account/ports/out"
	"github.com/coldkeep/custody-api/pkg/domain/privileged"
)

// ResetFingerprintMutation is the privileged.Instance payload a fingerprint
// reset applies once its delay window elapses.
type ResetFingerprintMutation struct {
	AccountID uuid.UUID
}

var _ account_in.FingerprintResetService = (*FingerprintResetService)(nil)

// FingerprintResetService wraps the hardware-biometric reset mutation in a
// privileged.DelayNotify gate (spec.md §4.12).
type FingerprintResetService struct {
	accounts account_out.AccountRepository
	repo     privileged.Repository[ResetFingerprintMutation]
	delay    time.Duration
	clock    common.Clock
}

func NewFingerprintResetService(
	accounts account_out.AccountRepository,
	repo privileged.Repository[ResetFingerprintMutation],
	delay time.Duration,
	clock common.Clock,
) *FingerprintResetService {
	return &FingerprintResetService{accounts: accounts, repo: repo, delay: delay, clock: clock}
}

func (s *FingerprintResetService) Begin(ctx context.Context, accountID uuid.UUID) (uuid.UUID, time.Time, error) {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return uuid.Nil, time.Time{}, err
	}

	inst, err := privileged.BeginDelayNotify(ctx, s.repo, accountID, ResetFingerprintMutation{AccountID: accountID}, s.delay, s.clock.Now())
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}
	return inst.ID, inst.CompleteAt, nil
}

func (s *FingerprintResetService) Continue(ctx context.Context, accountID, instanceID uuid.UUID) error {
	_, err := privileged.ContinueDelayNotify(ctx, s.repo, instanceID, s.clock.Now(), func(m ResetFingerprintMutation) error {
		return s.applyReset(ctx, m.AccountID)
	})
	return err
}

func (s *FingerprintResetService) Cancel(ctx context.Context, accountID, instanceID uuid.UUID) error {
	return privileged.CancelPending(ctx, s.repo, instanceID, s.clock.Now())
}

// applyReset invalidates every push touchpoint's device token, forcing the
// app to re-register the device after its biometric sensor is reset.
func (s *FingerprintResetService) applyReset(ctx context.Context, accountID uuid.UUID) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	for i, tp := range acct.Touchpoints {
		if tp.Kind == account_entities.TouchpointPush {
			acct.Touchpoints[i].Active = false
		}
	}
	acct.UpdatedAt = s.clock.Now()

	return s.accounts.Update(ctx, acct)
}
