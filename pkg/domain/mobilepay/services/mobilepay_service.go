// Package mobilepay_services implements the Mobile-Pay co-signing policy
// engine (spec.md §4.10): a PSBT admission pipeline gating daily spend,
// sanctions, and out-of-band verification ahead of a remote HSM co-sign and
// broadcast.
package mobilepay_services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_out "github.com/coldkeep/custody-api/pkg/domain/account/ports/out"
	common "github.com/coldkeep/custody-api/pkg/domain"
	mobilepay_entities "github.com/coldkeep/custody-api/pkg/domain/mobilepay/entities"
	mobilepay_in "github.com/coldkeep/custody-api/pkg/domain/mobilepay/ports/in"
	mobilepay_out "github.com/coldkeep/custody-api/pkg/domain/mobilepay/ports/out"
)

var _ mobilepay_in.Service = (*Service)(nil)

// Service runs the Mobile-Pay admission pipeline and co-sign/broadcast flow.
type Service struct {
	repo     mobilepay_out.Repository
	accounts account_out.AccountRepository
	hsm      mobilepay_out.HSMSigner
	broadcaster mobilepay_out.Broadcaster
	screener mobilepay_out.Screener
	exchange mobilepay_out.ExchangeRate
	grants   mobilepay_out.GrantConsumer
	config   common.MobilePayConfig
	clock    common.Clock
}

func NewService(
	repo mobilepay_out.Repository,
	accounts account_out.AccountRepository,
	hsm mobilepay_out.HSMSigner,
	broadcaster mobilepay_out.Broadcaster,
	screener mobilepay_out.Screener,
	exchange mobilepay_out.ExchangeRate,
	grants mobilepay_out.GrantConsumer,
	config common.MobilePayConfig,
	clock common.Clock,
) *Service {
	return &Service{
		repo:        repo,
		accounts:    accounts,
		hsm:         hsm,
		broadcaster: broadcaster,
		screener:    screener,
		exchange:    exchange,
		grants:      grants,
		config:      config,
		clock:       clock,
	}
}

// SetupSpendingLimit handles PUT /mobile-pay (spec.md §4.10 Setup).
func (s *Service) SetupSpendingLimit(ctx context.Context, accountID uuid.UUID, req mobilepay_in.SetupRequest) error {
	if !req.AppSigned || !req.HwSigned {
		return common.NewErrForbidden("KeyProofRequired")
	}

	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	acct.SpendingLimit = &account_entities.SpendingLimit{
		Active:         req.Active,
		AmountSats:     req.AmountSats,
		Currency:       req.Currency,
		TimeZoneOffset: req.TimeZoneOffset,
	}
	acct.UpdatedAt = s.clock.Now()

	return s.accounts.Update(ctx, acct)
}

// Sign runs the full admission pipeline and, on success, co-signs,
// finalizes, and broadcasts the transaction (spec.md §4.10 Sign).
func (s *Service) Sign(ctx context.Context, req mobilepay_in.SignRequest) (mobilepay_in.SignResult, error) {
	if !s.config.Enabled {
		return mobilepay_in.SignResult{}, common.NewErrForbidden("MobilePayDisabled")
	}

	acct, err := s.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		return mobilepay_in.SignResult{}, err
	}
	if acct.Kind != account_entities.KindFull {
		return mobilepay_in.SignResult{}, common.NewErrNotFound(common.ResourceTypeAccount, "id", req.AccountID)
	}

	if !acct.HasHeldKeyset(req.KeysetID) {
		return mobilepay_in.SignResult{}, common.NewErrBadRequest("UnknownKeysetId")
	}

	active, ok := acct.ActiveAuthKeys()
	if !ok {
		return mobilepay_in.SignResult{}, common.NewErrBadRequest("AccountHasNoActiveAuthKeys")
	}

	pkt, err := verifySingleAppSignature(req.Psbt, active.AppPubkey)
	if err != nil {
		return mobilepay_in.SignResult{}, common.NewErrBadRequest(err.Error())
	}

	keyset, _ := acct.FindKeysetByID(req.KeysetID)
	netSend := netSendSats(pkt)

	digest, err := psbtDigest(req.Psbt)
	if err != nil {
		return mobilepay_in.SignResult{}, common.NewErrBadRequest(err.Error())
	}
	digestHex := hexEncode(digest)

	dateLocal := localDate(s.clock.Now(), acct.SpendingLimit)
	if prior, found, err := s.repo.FindByAccountDate(ctx, req.AccountID, dateLocal); err != nil {
		return mobilepay_in.SignResult{}, err
	} else if found {
		if tx, already := prior.FindByDigest(digestHex); already {
			return mobilepay_in.SignResult{Txid: tx.Txid, RawTxHex: tx.RawTxHex}, nil
		}
	}

	var grant []byte
	grantConsumed := false
	if req.VerificationID != nil {
		grant, err = s.consumeGrant(ctx, *req.VerificationID, req.AccountID, digest, acct)
		if err != nil {
			return mobilepay_in.SignResult{}, err
		}
		grantConsumed = true
	}
	_ = grant

	if !grantConsumed && netSend > 0 && acct.SpendingLimit != nil && acct.SpendingLimit.Active {
		if err := s.checkSpendingLimit(ctx, acct, dateLocal, netSend); err != nil {
			return mobilepay_in.SignResult{}, err
		}
	}

	addresses, err := outputAddresses(pkt, keyset.Network)
	if err != nil {
		return mobilepay_in.SignResult{}, common.NewErrBadRequest(err.Error())
	}
	for _, addr := range addresses {
		if s.screener.IsBlocked(addr) {
			return mobilepay_in.SignResult{}, common.NewErrBlocked("AddressBlocked")
		}
	}

	if !grantConsumed && acct.TxVerificationPolicy != nil {
		fiatNetSend, convErr := s.exchange.ConvertSatsToFiat(ctx, netSend, acct.TxVerificationPolicy.Currency)
		if convErr == nil && acct.TxVerificationPolicy.RequiresVerification(fiatNetSend) {
			return mobilepay_in.SignResult{}, common.NewErrBadRequest("VerificationRequired")
		}
	}

	if rate, ok := feeRateSatsPerVByte(pkt); ok && s.config.MaxFeeRateSatPerVByte > 0 && rate > float64(s.config.MaxFeeRateSatPerVByte) {
		return mobilepay_in.SignResult{}, common.NewErrBadRequest("FeeRateTooHigh")
	}

	var rawPsbt bytes.Buffer
	if err := pkt.Serialize(&rawPsbt); err != nil {
		return mobilepay_in.SignResult{}, fmt.Errorf("mobilepay: serialize psbt before co-sign: %w", err)
	}

	coSigned, err := s.hsm.CoSignPSBT(ctx, req.KeysetID.String(), rawPsbt.Bytes())
	if err != nil {
		return mobilepay_in.SignResult{}, fmt.Errorf("mobilepay: co-sign: %w", err)
	}

	finalPkt, err := parsePacket(coSigned)
	if err != nil {
		return mobilepay_in.SignResult{}, fmt.Errorf("mobilepay: parse co-signed psbt: %w", err)
	}

	rawTx, txid, err := finalizeAndExtract(finalPkt)
	if err != nil {
		return mobilepay_in.SignResult{}, fmt.Errorf("mobilepay: finalize: %w", err)
	}

	now := s.clock.Now()
	rawTxHex := hexEncode(rawTx)

	if err := s.recordSpend(ctx, req.AccountID, dateLocal, txid, digestHex, rawTxHex, netSend, now); err != nil {
		return mobilepay_in.SignResult{}, err
	}

	if _, err := s.broadcaster.Broadcast(ctx, rawTx); err != nil {
		return mobilepay_in.SignResult{}, err
	}

	return mobilepay_in.SignResult{Txid: txid, RawTxHex: rawTxHex}, nil
}

func (s *Service) consumeGrant(ctx context.Context, verificationID, accountID uuid.UUID, psbtDigestBytes []byte, acct account_entities.Account) ([]byte, error) {
	v, err := s.grants.GetByID(ctx, verificationID)
	if err != nil {
		return nil, common.NewErrBadRequest("InvalidVerificationGrant")
	}
	if v.AccountID != accountID || !bytes.Equal(v.PSBTDigest, psbtDigestBytes) {
		return nil, common.NewErrBadRequest("InvalidVerificationGrant")
	}

	wantPolicyVersion := int64(0)
	if acct.TxVerificationPolicy != nil {
		wantPolicyVersion = acct.TxVerificationPolicy.PolicyVersion
	}
	if v.PolicyVersion != wantPolicyVersion {
		return nil, common.NewErrBadRequest("InvalidVerificationGrant")
	}

	grant, err := s.grants.Consume(ctx, verificationID)
	if err != nil {
		return nil, common.NewErrBadRequest("InvalidVerificationGrant")
	}

	return grant, nil
}

func (s *Service) checkSpendingLimit(ctx context.Context, acct account_entities.Account, dateLocal string, netSend int64) error {
	fiatNetSend, err := s.exchange.ConvertSatsToFiat(ctx, netSend, acct.SpendingLimit.Currency)
	if err != nil {
		return fmt.Errorf("mobilepay: convert net send to fiat: %w", err)
	}
	fiatLimit, err := s.exchange.ConvertSatsToFiat(ctx, acct.SpendingLimit.AmountSats, acct.SpendingLimit.Currency)
	if err != nil {
		return fmt.Errorf("mobilepay: convert limit to fiat: %w", err)
	}

	spend, found, err := s.repo.FindByAccountDate(ctx, acct.ID, dateLocal)
	if err != nil {
		return err
	}
	todaySpent := int64(0)
	if found {
		todaySpent = spend.TotalNetSentSats
	}
	fiatTodaySpent, err := s.exchange.ConvertSatsToFiat(ctx, todaySpent, acct.SpendingLimit.Currency)
	if err != nil {
		return fmt.Errorf("mobilepay: convert today's spend to fiat: %w", err)
	}

	if fiatTodaySpent+fiatNetSend > fiatLimit {
		return common.NewErrBadRequest("TransactionAboveLimit")
	}

	return nil
}

// recordSpend writes the daily-spend entry before the broadcast attempt
// (spec.md §5: deliberately ahead of the side effect, to avoid
// double-counting on a retried broadcast). A txid already on file is a
// no-op, letting a retried sign request short-circuit safely. Sign's own
// FindByDigest pre-check is what actually protects a retry from re-running
// admission and re-broadcasting; this txid check only guards the ledger
// write itself against a second write for the same transaction.
func (s *Service) recordSpend(ctx context.Context, accountID uuid.UUID, dateLocal, txid, psbtDigest, rawTxHex string, netSend int64, now time.Time) error {
	spend, found, err := s.repo.FindByAccountDate(ctx, accountID, dateLocal)
	if err != nil {
		return err
	}
	if !found {
		spend = mobilepay_entities.DailySpend{
			ID:        mobilepay_entities.DailySpendID(accountID, dateLocal),
			AccountID: accountID,
			DateLocal: dateLocal,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, already := spend.FindTx(txid); !already {
			spend = spend.WithRecordedTx(txid, psbtDigest, rawTxHex, netSend, now)
		}
		return s.repo.Create(ctx, spend)
	}

	if _, already := spend.FindTx(txid); already {
		return nil
	}

	return s.repo.Update(ctx, spend.WithRecordedTx(txid, psbtDigest, rawTxHex, netSend, now))
}
