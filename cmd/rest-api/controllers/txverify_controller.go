package controllers

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golobby/container/v3"
	"github.com/google/uuid"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_in "github.com/coldkeep/custody-api/pkg/domain/account/ports/in"
	"github.com/coldkeep/custody-api/pkg/domain/keyproof"
	txverify_in "github.com/coldkeep/custody-api/pkg/domain/txverify/ports/in"
)

// TxVerifyController handles the out-of-band transaction-verification
// HTTP surface (spec.md §4.9, §6's `tx-verify` table).
type TxVerifyController struct {
	service  txverify_in.Service
	accounts account_in.Service
	verifier *keyproof.Verifier
	helper   *ControllerHelper
}

func NewTxVerifyController(c container.Container) *TxVerifyController {
	ctrl := &TxVerifyController{helper: NewControllerHelper()}

	if err := c.Resolve(&ctrl.service); err != nil {
		slog.Error("Failed to resolve txverify_in.Service", "err", err)
	}
	if err := c.Resolve(&ctrl.accounts); err != nil {
		slog.Error("Failed to resolve account_in.Service", "err", err)
	}
	_ = c.Resolve(&ctrl.verifier) // optional: degrades to rejecting proof-gated ops

	return ctrl
}

type updatePolicyRequest struct {
	Policy struct {
		Kind       string `json:"kind"`
		AmountSats int64  `json:"amount_sats"`
		AmountFiat int64  `json:"amount_fiat"`
		Currency   string `json:"currency"`
	} `json:"policy"`
	AppSignature string `json:"app_signature"`
	HwSignature  string `json:"hardware_signature"`
}

// UpdatePolicy handles PUT /api/accounts/{id}/tx-verify/policy.
func (ctrl *TxVerifyController) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req updatePolicyRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	appSigned, hwSigned, err := ctrl.verifyActiveProof(r, accountID, req.AppSignature, req.HwSignature)
	if ctrl.helper.HandleError(w, r, err, "verify key proof") {
		return
	}

	err = ctrl.service.UpdatePolicy(r.Context(), accountID, txverify_in.UpdatePolicyRequest{
		Kind:       account_entities.TxVerificationPolicyKind(req.Policy.Kind),
		AmountSats: req.Policy.AmountSats,
		AmountFiat: req.Policy.AmountFiat,
		Currency:   req.Policy.Currency,
		AppSigned:  appSigned,
		HwSigned:   hwSigned,
	})
	if ctrl.helper.HandleError(w, r, err, "update tx-verify policy") {
		return
	}

	ctrl.helper.WriteOK(w, r, map[string]interface{}{})
}

type createVerificationRequest struct {
	Psbt         string `json:"psbt"`
	FiatCurrency string `json:"fiat_currency"`
	BitcoinUnit  string `json:"bitcoin_unit"`
}

// CreateVerificationRequest handles POST /api/accounts/{id}/tx-verify/requests.
func (ctrl *TxVerifyController) CreateVerificationRequest(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req createVerificationRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	psbt, err := base64.StdEncoding.DecodeString(req.Psbt)
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, "psbt must be base64-encoded")
		return
	}

	initiated, err := ctrl.service.Initiate(r.Context(), txverify_in.InitiateRequest{
		AccountID:    accountID,
		Psbt:         psbt,
		FiatCurrency: req.FiatCurrency,
		BitcoinUnit:  req.BitcoinUnit,
	})
	if ctrl.helper.HandleError(w, r, err, "initiate tx verification") {
		return
	}

	ctrl.helper.WriteCreated(w, r, map[string]interface{}{
		"confirmation_url": initiated.ConfirmationURL,
		"expires_at":       initiated.ExpiresAt,
	})
}

type verifyConfirmationTokenRequest struct {
	ConfirmationToken string `json:"confirmation_token"`
}

// VerifyConfirmationToken handles the out-of-band confirmation link a
// verification request's confirmation_url points to: unauthenticated,
// gated only on possession of the token itself (spec.md §4.9).
func (ctrl *TxVerifyController) VerifyConfirmationToken(w http.ResponseWriter, r *http.Request) {
	verificationID, err := parseIDParam(r, "rid")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req verifyConfirmationTokenRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	v, err := ctrl.service.VerifyWithConfirmationToken(r.Context(), verificationID, req.ConfirmationToken)
	if ctrl.helper.HandleError(w, r, err, "verify confirmation token") {
		return
	}

	ctrl.helper.WriteOK(w, r, map[string]interface{}{"verification": v})
}

// verifyActiveProof checks app/hw signatures over the bearer access token
// against the account's currently active auth keys. Mirrors the same
// method on RecoveryController/RelationshipController.
func (ctrl *TxVerifyController) verifyActiveProof(r *http.Request, accountID uuid.UUID, appSigB64, hwSigB64 string) (appSigned, hwSigned bool, err error) {
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
