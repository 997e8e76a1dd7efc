package controllers

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golobby/container/v3"
	"github.com/google/uuid"

	account_in "github.com/coldkeep/custody-api/pkg/domain/account/ports/in"
	"github.com/coldkeep/custody-api/pkg/domain/keyproof"
	mobilepay_in "github.com/coldkeep/custody-api/pkg/domain/mobilepay/ports/in"
)

// MobilePayController handles the Mobile-Pay co-signing HTTP surface
// (spec.md §4.10, §6's mobile-pay and sign-transaction routes).
type MobilePayController struct {
	service  mobilepay_in.Service
	accounts account_in.Service
	verifier *keyproof.Verifier
	helper   *ControllerHelper
}

func NewMobilePayController(c container.Container) *MobilePayController {
	ctrl := &MobilePayController{helper: NewControllerHelper()}

	if err := c.Resolve(&ctrl.service); err != nil {
		slog.Error("Failed to resolve mobilepay_in.Service", "err", err)
	}
	if err := c.Resolve(&ctrl.accounts); err != nil {
		slog.Error("Failed to resolve account_in.Service", "err", err)
	}
	_ = c.Resolve(&ctrl.verifier) // optional: degrades to rejecting proof-gated ops

	return ctrl
}

type setupSpendingLimitRequest struct {
	Limit struct {
		Active         bool    `json:"active"`
		AmountSats     int64   `json:"amount_sats"`
		Currency       string  `json:"currency"`
		TimeZoneOffset float64 `json:"time_zone_offset"`
	} `json:"limit"`
	AppSignature string `json:"app_signature"`
	HwSignature  string `json:"hardware_signature"`
}

// SetupSpendingLimit handles PUT /api/accounts/{id}/mobile-pay.
func (ctrl *MobilePayController) SetupSpendingLimit(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req setupSpendingLimitRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	appSigned, hwSigned, err := ctrl.verifyActiveProof(r, accountID, req.AppSignature, req.HwSignature)
	if ctrl.helper.HandleError(w, r, err, "verify key proof") {
		return
	}

	err = ctrl.service.SetupSpendingLimit(r.Context(), accountID, mobilepay_in.SetupRequest{
		Active:         req.Limit.Active,
		AmountSats:     req.Limit.AmountSats,
		Currency:       req.Limit.Currency,
		TimeZoneOffset: req.Limit.TimeZoneOffset,
		AppSigned:      appSigned,
		HwSigned:       hwSigned,
	})
	if ctrl.helper.HandleError(w, r, err, "setup mobile-pay spending limit") {
		return
	}

	ctrl.helper.WriteOK(w, r, map[string]interface{}{})
}

type signTransactionRequest struct {
	Psbt  string `json:"psbt"`
	Grant string `json:"grant,omitempty"`
}

// SignTransaction handles POST /api/accounts/{id}/keysets/{ksid}/sign-transaction.
func (ctrl *MobilePayController) SignTransaction(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}
	keysetID, err := parseIDParam(r, "ksid")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req signTransactionRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	psbt, err := base64.StdEncoding.DecodeString(req.Psbt)
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, "psbt must be base64-encoded")
		return
	}

	var verificationID *uuid.UUID
	if req.Grant != "" {
		id, err := uuid.Parse(req.Grant)
		if err != nil {
			ctrl.helper.WriteBadRequest(w, r, "grant must be a verification id")
			return
		}
		verificationID = &id
	}

	result, err := ctrl.service.Sign(r.Context(), mobilepay_in.SignRequest{
		AccountID:      accountID,
		KeysetID:       keysetID,
		Psbt:           psbt,
		VerificationID: verificationID,
	})
	if ctrl.helper.HandleError(w, r, err, "sign mobile-pay transaction") {
		return
	}

	ctrl.helper.WriteOK(w, r, map[string]interface{}{"tx": result.RawTxHex, "txid": result.Txid})
}

// verifyActiveProof checks app/hw signatures over the bearer access token
// against the account's currently active auth keys. Mirrors the same
// method on RecoveryController/RelationshipController/TxVerifyController.
func (ctrl *MobilePayController) verifyActiveProof(r *http.Request, accountID uuid.UUID, appSigB64, hwSigB64 string) (appSigned, hwSigned bool, err error) {
	if ctrl.verifier == nil || ctrl.accounts == nil {
		return false, false, nil
	}

	acct, err := ctrl.accounts.FetchAccount(r.Context(), accountID)
	if err != nil {
		return false, false, err
	}
	active, ok := acct.ActiveAuthKeys()
	if !ok {
		return false, false, nil
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	appSig, _ := base64.StdEncoding.DecodeString(appSigB64)
	hwSig, _ := base64.StdEncoding.DecodeString(hwSigB64)

	proof, err := ctrl.verifier.Verify(token, appSig, hwSig, keyproof.AccountKeys{
		AppPubKey: active.AppPubkey,
		HwPubKey:  active.HwPubkey,
	})
	if err != nil {
		return false, false, err
	}

	return proof.AppSigned, proof.HwSigned, nil
}
