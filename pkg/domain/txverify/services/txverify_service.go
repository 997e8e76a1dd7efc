// Package txverify_services implements out-of-band transaction
// verification: a Pending request with a URL-safe confirmation_token,
// verified on a separate device into a single-use, HSM-signed grant
// (spec.md §4.9).
package txverify_services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_out "github.com/coldkeep/custody-api/pkg/domain/account/ports/out"
	common "github.com/coldkeep/custody-api/pkg/domain"
	txverify_entities "github.com/coldkeep/custody-api/pkg/domain/txverify/entities"
	txverify_in "github.com/coldkeep/custody-api/pkg/domain/txverify/ports/in"
	txverify_out "github.com/coldkeep/custody-api/pkg/domain/txverify/ports/out"
)

var _ txverify_in.Service = (*Service)(nil)

// grantKeysetID is the HSM keyset selector for the out-of-band
// confirmation grant key, distinct from any account's spending keyset.
const grantKeysetID = "tx-verify-grant"

type Service struct {
	repo     txverify_out.Repository
	accounts account_out.AccountRepository
	hsm      txverify_out.HSMGrantor
	config   common.TxVerifyConfig
	clock    common.Clock
}

func NewService(repo txverify_out.Repository, accounts account_out.AccountRepository, hsm txverify_out.HSMGrantor, config common.TxVerifyConfig, clock common.Clock) *Service {
	return &Service{repo: repo, accounts: accounts, hsm: hsm, config: config, clock: clock}
}

// UpdatePolicy sets the account's tx-verification policy, bumping
// PolicyVersion so outstanding grants signed under the old policy can
// still be told apart from ones signed under the new one.
func (s *Service) UpdatePolicy(ctx context.Context, accountID uuid.UUID, req txverify_in.UpdatePolicyRequest) error {
	if !req.AppSigned || !req.HwSigned {
		return common.NewErrForbidden("KeyProofRequired")
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	version := int64(1)
	if acct.TxVerificationPolicy != nil {
		version = acct.TxVerificationPolicy.PolicyVersion + 1
	}

	acct.TxVerificationPolicy = &account_entities.TxVerificationPolicy{
		Kind:          req.Kind,
		AmountSats:    req.AmountSats,
		AmountFiat:    req.AmountFiat,
		Currency:      req.Currency,
		PolicyVersion: version,
	}
	acct.UpdatedAt = s.clock.Now()

	return s.accounts.Update(ctx, acct)
}

// Initiate persists a Pending verification for psbt and returns the link
// the user opens on a separate device.
func (s *Service) Initiate(ctx context.Context, req txverify_in.InitiateRequest) (txverify_in.InitiatedVerification, error) {
	acct, err := s.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		return txverify_in.InitiatedVerification{}, err
	}

	digest, err := psbtDigest(req.Psbt)
	if err != nil {
		return txverify_in.InitiatedVerification{}, common.NewErrBadRequest(err.Error())
	}

	token, err := txverify_entities.GenerateConfirmationToken()
	if err != nil {
		return txverify_in.InitiatedVerification{}, fmt.Errorf("txverify: generate confirmation token: %w", err)
	}

	policyVersion := int64(0)
	if acct.TxVerificationPolicy != nil {
		policyVersion = acct.TxVerificationPolicy.PolicyVersion
	}

	now := s.clock.Now()
	v := txverify_entities.Verification{
		ID:                uuid.New(),
		AccountID:         req.AccountID,
		Status:            txverify_entities.StatusPending,
		ConfirmationToken: token,
		PSBT:              string(req.Psbt),
		PSBTDigest:        digest,
		FiatCurrency:      req.FiatCurrency,
		BitcoinUnit:       req.BitcoinUnit,
		PolicyVersion:     policyVersion,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.config.RequestTTL),
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, v); err != nil {
		return txverify_in.InitiatedVerification{}, err
	}

	return txverify_in.InitiatedVerification{
		ID:              v.ID,
		ConfirmationURL: fmt.Sprintf("%s/tx-verify/%s?token=%s", s.config.ConfirmationBaseURL, v.ID, token),
		ExpiresAt:       v.ExpiresAt,
	}, nil
}

// VerifyWithConfirmationToken transitions Pending -> Success, asking the
// HSM to sign the grant digest (spec.md §4.9, §9).
func (s *Service) VerifyWithConfirmationToken(ctx context.Context, id uuid.UUID, token string) (txverify_entities.Verification, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return txverify_entities.Verification{}, err
	}

	if v.Status != txverify_entities.StatusPending {
		return txverify_entities.Verification{}, common.NewErrConflict("VerificationNotPending")
	}

	now := s.clock.Now()
	if v.IsExpired(now) {
		v.Status = txverify_entities.StatusExpired
		v.UpdatedAt = now
		_ = s.repo.Update(ctx, v)
		return txverify_entities.Verification{}, common.NewErrConflict("VerificationExpired")
	}

	if token == "" || token != v.ConfirmationToken {
		return txverify_entities.Verification{}, common.NewErrForbidden("ConfirmationTokenMismatch")
	}

	grant, err := s.hsm.SignDigest(ctx, grantKeysetID, v.GrantDigest())
	if err != nil {
		return txverify_entities.Verification{}, fmt.Errorf("txverify: sign grant: %w", err)
	}

	v.Status = txverify_entities.StatusSuccess
	v.SignedHWGrant = grant
	v.UpdatedAt = now

	if err := s.repo.Update(ctx, v); err != nil {
		return txverify_entities.Verification{}, err
	}

	return v, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (txverify_entities.Verification, error) {
	return s.repo.GetByID(ctx, id)
}

// Consume marks a Success verification Consumed, single-use per spec.md
// §4.9: a second call on an already-Consumed row fails.
func (s *Service) Consume(ctx context.Context, id uuid.UUID) ([]byte, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if v.Status != txverify_entities.StatusSuccess {
		return nil, common.NewErrConflict("VerificationAlreadyConsumedOrNotReady")
	}

	grant := v.SignedHWGrant
	v.Status = txverify_entities.StatusConsumed
	v.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}

	return grant, nil
}
