// Package comms_services implements comms-verification (spec.md §4.4):
// issuing and checking short codes bound to (account, scope).
package comms_services

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	common "github.com/coldkeep/custody-api/pkg/domain"
	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	comms_entities "github.com/coldkeep/custody-api/pkg/domain/comms/entities"
	comms_in "github.com/coldkeep/custody-api/pkg/domain/comms/ports/in"
	comms_out "github.com/coldkeep/custody-api/pkg/domain/comms/ports/out"
)

const maxVerifyAttempts = 5

// Service implements comms_in.Service against a Repository and a
// Dispatcher, both injected (spec.md §4.4).
type Service struct {
	repo       comms_out.Repository
	dispatcher comms_out.Dispatcher
	clock      common.Clock
	config     common.CommsConfig
}

func NewService(repo comms_out.Repository, dispatcher comms_out.Dispatcher, clock common.Clock, config common.CommsConfig) *Service {
	return &Service{repo: repo, dispatcher: dispatcher, clock: clock, config: config}
}

var _ comms_in.Service = (*Service)(nil)

// Initiate generates a fresh code, bcrypt-hashes it before persisting, and
// dispatches it over every touchpoint supplied in req.Touchpoints; no
// touchpoints are looked up from the account.
func (s *Service) Initiate(ctx context.Context, req comms_in.InitiateRequest) (comms_in.InitiateResult, error) {
	scopeKey := req.Scope.Key()

	windowStart := s.clock.Now().Add(-s.config.RateLimitWindow)
	count, err := s.repo.CountSince(ctx, req.AccountID, scopeKey, windowStart)
	if err != nil {
		return comms_in.InitiateResult{}, fmt.Errorf("comms: count recent initiations: %w", err)
	}
	if count >= s.config.MaxAttemptsPerWindow {
		return comms_in.InitiateResult{}, common.NewErrForbidden("TooManyVerificationAttempts")
	}

	length := s.config.VerificationCodeLength
	if length <= 0 {
		length = 6
	}

	code, err := generateNumericCode(length)
	if err != nil {
		return comms_in.InitiateResult{}, fmt.Errorf("comms: generate code: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return comms_in.InitiateResult{}, fmt.Errorf("comms: hash code: %w", err)
	}

	now := s.clock.Now()
	record := comms_entities.VerificationCode{
		ID:          uuid.New(),
		AccountID:   req.AccountID,
		ScopeKey:    scopeKey,
		CodeHash:    hash,
		MaxAttempts: maxVerifyAttempts,
		ExpiresAt:   now.Add(s.config.VerificationCodeTTL),
		CreatedAt:   now,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return comms_in.InitiateResult{}, err
	}

	if err := s.dispatch(ctx, req.Touchpoints, code); err != nil {
		return comms_in.InitiateResult{}, err
	}

	return comms_in.InitiateResult{
		CodeID:    record.ID,
		ExpiresAt: record.ExpiresAt.Format(time.RFC3339),
	}, nil
}

func (s *Service) dispatch(ctx context.Context, touchpoints []account_entities.Touchpoint, code string) error {
	if s.dispatcher == nil {
		return nil
	}
	for _, tp := range touchpoints {
		if !tp.Active {
			continue
		}
		if tp.Kind != account_entities.TouchpointPhone && tp.Kind != account_entities.TouchpointEmail {
			continue
		}
		if err := s.dispatcher.Send(ctx, tp, code); err != nil {
			return fmt.Errorf("comms: dispatch to touchpoint %s: %w", tp.ID, err)
		}
	}
	return nil
}

// Verify checks code against the latest issuance for (account_id, scope).
// A correct code within the TTL marks the pair verified for
// config.Comms.VerificationCodeTTL beyond now; an incorrect code consumes
// one attempt, exhausting AttemptsRemaining eventually expires the code
// for guessing.
func (s *Service) Verify(ctx context.Context, req comms_in.VerifyRequest) error {
	scopeKey := req.Scope.Key()

	record, ok, err := s.repo.FindLatest(ctx, req.AccountID, scopeKey)
	if err != nil {
		return fmt.Errorf("comms: find latest code: %w", err)
	}
	if !ok {
		return common.NewErrNotFound(common.ResourceTypeVerificationCode, "account_id,scope", req.AccountID.String()+","+scopeKey)
	}

	now := s.clock.Now()

	if record.Consumed {
		return common.NewErrConflict("verification code already consumed")
	}
	if record.IsExpired(now) {
		return common.NewErrBadRequest("CodeExpired")
	}
	if record.AttemptsRemaining() <= 0 {
		return common.NewErrForbidden("TooManyVerificationAttempts")
	}

	record.Attempts++

	if bcrypt.CompareHashAndPassword(record.CodeHash, []byte(req.Code)) != nil {
		if err := s.repo.Update(ctx, record); err != nil {
			return fmt.Errorf("comms: record failed attempt: %w", err)
		}
		return common.NewErrBadRequest("IncorrectVerificationCode")
	}

	window := s.config.VerificationCodeTTL
	if req.Window != nil {
		window = time.Duration(*req.Window) * time.Second
	}
	verifiedUntil := now.Add(window)
	record.VerifiedUntil = &verifiedUntil

	return s.repo.Update(ctx, record)
}

// Consume drains a verified mark for (account_id, scope). Single-use: the
// record is flagged Consumed so a second call fails even inside the
// original window.
func (s *Service) Consume(ctx context.Context, accountID uuid.UUID, scope comms_entities.Scope) error {
	record, ok, err := s.repo.FindLatest(ctx, accountID, scope.Key())
	if err != nil {
		return fmt.Errorf("comms: find latest code: %w", err)
	}
	if !ok || !record.VerifiedAt(s.clock.Now()) {
		return common.NewErrForbidden("CommsVerificationRequired")
	}

	record.Consumed = true
	return s.repo.Update(ctx, record)
}

func generateNumericCode(length int) (string, error) {
	const digits = "0123456789"
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	code := make([]byte, length)
	for i, b := range raw {
		code[i] = digits[int(b)%len(digits)]
	}
	return string(code), nil
}
