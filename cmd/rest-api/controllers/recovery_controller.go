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
	recovery_in "github.com/coldkeep/custody-api/pkg/domain/recovery/ports/in"
)

// RecoveryController handles the Delay-and-Notify recovery HTTP surface
// (spec.md §4.6, §6's `/api/accounts/{id}/delay-notify` table).
type RecoveryController struct {
	service  recovery_in.Service
	accounts account_in.Service
	verifier *keyproof.Verifier
	helper   *ControllerHelper
}

func NewRecoveryController(c container.Container) *RecoveryController {
	ctrl := &RecoveryController{helper: NewControllerHelper()}

	if err := c.Resolve(&ctrl.service); err != nil {
		slog.Error("Failed to resolve recovery_in.Service", "err", err)
	}
	if err := c.Resolve(&ctrl.accounts); err != nil {
		slog.Error("Failed to resolve account_in.Service", "err", err)
	}
	_ = c.Resolve(&ctrl.verifier) // optional: degrades to rejecting proof-gated ops

	return ctrl
}

type delayNotifyCreateRequest struct {
	LostFactor  string `json:"lost_factor"`
	Destination struct {
		App      string `json:"app"`
		Hw       string `json:"hardware"`
		Recovery string `json:"recovery"`
	} `json:"destination"`
	AppSignature     string `json:"app_signature"`
	HwSignature      string `json:"hardware_signature"`
	VerificationCode string `json:"verification_code"`
}

// CreateDelayNotify handles POST /api/accounts/{id}/delay-notify. The
// caller proves possession of the non-lost factor by signing the bearer
// access token; the proof is checked against the account's active auth
// keys.
func (ctrl *RecoveryController) CreateDelayNotify(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req delayNotifyCreateRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	appSigned, hwSigned, err := ctrl.verifyActiveProof(r, accountID, req.AppSignature, req.HwSignature)
	if ctrl.helper.HandleError(w, r, err, "verify key proof") {
		return
	}

	rec, err := ctrl.service.Create(r.Context(), recovery_in.CreateRequest{
		AccountID:          accountID,
		LostFactor:         strings.ToLower(req.LostFactor),
		DestAppPubkey:      decodePubkey(req.Destination.App),
		DestHwPubkey:       decodePubkey(req.Destination.Hw),
		DestRecoveryPubkey: decodePubkey(req.Destination.Recovery),
		AppSigned:          appSigned,
		HwSigned:           hwSigned,
		VerificationCode:   req.VerificationCode,
	})
	if ctrl.helper.HandleError(w, r, err, "create delay-notify recovery") {
		return
	}

	ctrl.helper.WriteCreated(w, r, rec)
}

// CancelDelayNotify handles DELETE /api/accounts/{id}/delay-notify: a
// cancel or a contest depending on which factor signed the request.
func (ctrl *RecoveryController) CancelDelayNotify(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req struct {
		AppSignature string `json:"app_signature"`
		HwSignature  string `json:"hardware_signature"`
	}
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	appSigned, hwSigned, err := ctrl.verifyActiveProof(r, accountID, req.AppSignature, req.HwSignature)
	if ctrl.helper.HandleError(w, r, err, "verify key proof") {
		return
	}
	if appSigned == hwSigned {
		ctrl.helper.WriteBadRequest(w, r, "request must be signed by exactly one active factor")
		return
	}

	signingFactor := "app"
	if hwSigned {
		signingFactor = "hw"
	}

	rec, err := ctrl.service.CancelOrContest(r.Context(), accountID, signingFactor)
	if ctrl.helper.HandleError(w, r, err, "cancel or contest delay-notify recovery") {
		return
	}

	ctrl.helper.WriteOK(w, r, rec)
}

// CompleteDelayNotify handles POST /api/accounts/{id}/delay-notify/complete.
// challenge/app_signature/hardware_signature are base64 over the
// destination keys computed per spec.md §4.6's fixed challenge layout.
func (ctrl *RecoveryController) CompleteDelayNotify(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req struct {
		Challenge    string `json:"challenge"`
		AppSignature string `json:"app_signature"`
		HwSignature  string `json:"hardware_signature"`
	}
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	challenge, _ := base64.StdEncoding.DecodeString(req.Challenge)
	appSig, _ := base64.StdEncoding.DecodeString(req.AppSignature)
	hwSig, _ := base64.StdEncoding.DecodeString(req.HwSignature)

	newAuthKeysID, err := ctrl.service.Complete(r.Context(), accountID, challenge, appSig, hwSig)
	if ctrl.helper.HandleError(w, r, err, "complete delay-notify recovery") {
		return
	}

	ctrl.helper.WriteOK(w, r, map[string]interface{}{"auth_keys_id": newAuthKeysID})
}

// GetDelayNotify handles GET /api/accounts/{id}/delay-notify.
func (ctrl *RecoveryController) GetDelayNotify(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	rec, found, err := ctrl.service.GetPending(r.Context(), accountID)
	if ctrl.helper.HandleError(w, r, err, "fetch pending delay-notify recovery") {
		return
	}
	if !found {
		ctrl.helper.WriteOK(w, r, map[string]interface{}{"pending": false})
		return
	}

	ctrl.helper.WriteOK(w, r, rec)
}

// verifyActiveProof checks app/hw signatures over the bearer access token
// against the account's currently active auth keys.
func (ctrl *RecoveryController) verifyActiveProof(r *http.Request, accountID uuid.UUID, appSigB64, hwSigB64 string) (appSigned, hwSigned bool, err error) {
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
