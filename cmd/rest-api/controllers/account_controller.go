package controllers

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golobby/container/v3"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_in "github.com/coldkeep/custody-api/pkg/domain/account/ports/in"
	"github.com/coldkeep/custody-api/pkg/domain/keyproof"
)

// AccountController handles account/keyset/touchpoint HTTP operations
// (spec.md §6, the `/api/accounts` table).
type AccountController struct {
	service  account_in.Service
	verifier *keyproof.Verifier
	helper   *ControllerHelper
}

func NewAccountController(c container.Container) *AccountController {
	ctrl := &AccountController{helper: NewControllerHelper()}

	if err := c.Resolve(&ctrl.service); err != nil {
		slog.Error("Failed to resolve account_in.Service", "err", err)
	}
	_ = c.Resolve(&ctrl.verifier) // optional: key-proof checks degrade to rejecting proof-gated ops

	return ctrl
}

type authKeysRequest struct {
	App      string `json:"app"`
	Hw       string `json:"hw"`
	Recovery string `json:"recovery"`
}

type spendingKeysRequest struct {
	Network string `json:"network"`
	AppDpub string `json:"app_dpub"`
	HwDpub  string `json:"hw_dpub"`
}

type createAccountRequest struct {
	Auth          authKeysRequest      `json:"auth"`
	Spending      *spendingKeysRequest `json:"spending"`
	IsTestAccount bool                 `json:"is_test_account"`
}

func decodePubkey(s string) []byte {
	if s == "" {
		return nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b
	}
	return []byte(s)
}

// CreateAccount handles POST /api/accounts. The request is Full when
// auth.app/auth.hw and spending are present, Lite otherwise.
func (ctrl *AccountController) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	if req.Auth.App != "" && req.Auth.Hw != "" && req.Spending != nil {
		created, err := ctrl.service.CreateFullAccount(r.Context(), account_in.CreateFullAccountRequest{
			AppPubkey:      decodePubkey(req.Auth.App),
			HwPubkey:       decodePubkey(req.Auth.Hw),
			RecoveryPubkey: decodePubkey(req.Auth.Recovery),
			Network:        account_entities.Network(req.Spending.Network),
			AppDpub:        req.Spending.AppDpub,
			HwDpub:         req.Spending.HwDpub,
			IsTestAccount:  req.IsTestAccount,
		})
		if ctrl.helper.HandleError(w, r, err, "create full account") {
			return
		}
		ctrl.helper.WriteCreated(w, r, created)
		return
	}

	created, err := ctrl.service.CreateLiteAccount(r.Context(), account_in.CreateLiteAccountRequest{
		RecoveryPubkey: decodePubkey(req.Auth.Recovery),
		IsTestAccount:  req.IsTestAccount,
	})
	if ctrl.helper.HandleError(w, r, err, "create lite account") {
		return
	}
	ctrl.helper.WriteCreated(w, r, created)
}

// UpgradeAccount handles POST /api/accounts/{id}/upgrade.
func (ctrl *AccountController) UpgradeAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req createAccountRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}
	if req.Spending == nil {
		ctrl.helper.WriteBadRequest(w, r, "spending is required")
		return
	}

	created, err := ctrl.service.UpgradeLiteToFull(r.Context(), accountID, account_in.UpgradeLiteToFullRequest{
		AppPubkey: decodePubkey(req.Auth.App),
		HwPubkey:  decodePubkey(req.Auth.Hw),
		Network:   account_entities.Network(req.Spending.Network),
		AppDpub:   req.Spending.AppDpub,
		HwDpub:    req.Spending.HwDpub,
	})
	if ctrl.helper.HandleError(w, r, err, "upgrade lite to full account") {
		return
	}
	ctrl.helper.WriteOK(w, r, created)
}

// FetchAccount handles GET /api/accounts/{id}.
func (ctrl *AccountController) FetchAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	acct, err := ctrl.service.FetchAccount(r.Context(), accountID)
	if ctrl.helper.HandleError(w, r, err, "fetch account") {
		return
	}
	ctrl.helper.WriteOK(w, r, acct)
}

type addTouchpointRequest struct {
	Type        string `json:"type"`
	PhoneNumber string `json:"phone_number"`
	CountryCode string `json:"country_code"`
	Email       string `json:"email_address"`
}

// AddTouchpoint handles POST /api/accounts/{id}/touchpoints.
func (ctrl *AccountController) AddTouchpoint(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req addTouchpointRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	var touchpointID uuid.UUID
	switch strings.ToLower(req.Type) {
	case "phone":
		touchpointID, err = ctrl.service.FetchOrCreatePhoneTouchpoint(r.Context(), accountID, account_in.AddPhoneTouchpointRequest{
			CountryCode: req.CountryCode,
			E164:        req.PhoneNumber,
		})
	case "email":
		touchpointID, err = ctrl.service.FetchOrCreateEmailTouchpoint(r.Context(), accountID, account_in.AddEmailTouchpointRequest{
			Address: req.Email,
		})
	default:
		ctrl.helper.WriteBadRequest(w, r, "type must be Phone or Email")
		return
	}

	if ctrl.helper.HandleError(w, r, err, "add touchpoint") {
		return
	}
	ctrl.helper.WriteCreated(w, r, map[string]uuid.UUID{"touchpoint_id": touchpointID})
}

// ActivateTouchpoint handles POST /api/accounts/{id}/touchpoints/{tid}/activate.
// Requires both app and hardware signatures over the bearer access token
// (spec.md §4.1); comms-verification (the /verify step) must already have
// succeeded out of band.
func (ctrl *AccountController) ActivateTouchpoint(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}
	touchpointID, err := parseIDParam(r, "tid")
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

	proof, err := ctrl.verifyProof(r, accountID, req.AppSignature, req.HwSignature)
	if ctrl.helper.HandleError(w, r, err, "verify key proof") {
		return
	}

	if err := ctrl.service.ActivateTouchpoint(r.Context(), accountID, touchpointID, proof); ctrl.helper.HandleError(w, r, err, "activate touchpoint") {
		return
	}
	ctrl.helper.WriteOK(w, r, map[string]bool{"activated": true})
}

// AddDeviceToken handles POST /api/accounts/{id}/device-token.
func (ctrl *AccountController) AddDeviceToken(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req struct {
		DeviceToken string `json:"device_token"`
		Platform    string `json:"platform"`
	}
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	touchpointID, err := ctrl.service.AddPushTouchpoint(r.Context(), accountID, account_in.AddPushTouchpointRequest{
		Platform: req.Platform,
		Token:    req.DeviceToken,
	})
	if ctrl.helper.HandleError(w, r, err, "add device token") {
		return
	}
	ctrl.helper.WriteCreated(w, r, map[string]uuid.UUID{"touchpoint_id": touchpointID})
}

type spendingKeysetRequest struct {
	Network account_entities.Network `json:"network"`
	AppDpub string                   `json:"app_dpub"`
	HwDpub  string                   `json:"hw_dpub"`
}

// CreateKeyset handles POST /api/accounts/{id}/keysets.
func (ctrl *AccountController) CreateKeyset(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req struct {
		Spending spendingKeysetRequest `json:"spending"`
	}
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	keysetID, serverDpub, err := ctrl.service.CreateInactiveSpendingKeyset(r.Context(), accountID, account_in.CreateInactiveSpendingKeysetRequest{
		Network: req.Spending.Network,
		AppDpub: req.Spending.AppDpub,
		HwDpub:  req.Spending.HwDpub,
	})
	if ctrl.helper.HandleError(w, r, err, "create inactive spending keyset") {
		return
	}
	ctrl.helper.WriteCreated(w, r, map[string]interface{}{
		"keyset_id": keysetID,
		"spending":  map[string]string{"server_dpub": serverDpub},
	})
}

// RotateKeyset handles PUT /api/accounts/{id}/keysets/{ksid}.
func (ctrl *AccountController) RotateKeyset(w http.ResponseWriter, r *http.Request) {
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

	if err := ctrl.service.RotateToSpendingKeyset(r.Context(), accountID, keysetID); ctrl.helper.HandleError(w, r, err, "rotate to spending keyset") {
		return
	}
	ctrl.helper.WriteOK(w, r, map[string]bool{})
}

// proofResult adapts keyproof.Proof to account_in.KeyProof.
type proofResult struct {
	appSigned, hwSigned bool
}

func (p proofResult) RequireBoth() bool { return p.appSigned && p.hwSigned }

// verifyProof fetches the account's current auth keys and verifies
// app/hw signatures (base64 DER) over the request's bearer token.
func (ctrl *AccountController) verifyProof(r *http.Request, accountID uuid.UUID, appSigB64, hwSigB64 string) (account_in.KeyProof, error) {
	if ctrl.verifier == nil {
		return proofResult{}, nil
	}

	acct, err := ctrl.service.FetchAccount(r.Context(), accountID)
	if err != nil {
		return nil, err
	}
	active, ok := acct.ActiveAuthKeys()
	if !ok {
		return proofResult{}, nil
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	appSig, _ := base64.StdEncoding.DecodeString(appSigB64)
	hwSig, _ := base64.StdEncoding.DecodeString(hwSigB64)

	proof, err := ctrl.verifier.Verify(token, appSig, hwSig, keyproof.AccountKeys{
		AppPubKey: active.AppPubkey,
		HwPubKey:  active.HwPubkey,
	})
	if err != nil {
		return nil, err
	}

	return proofResult{appSigned: proof.AppSigned, hwSigned: proof.HwSigned}, nil
}

func parseIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := mux.Vars(r)[name]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, err
	}
	return id, nil
}
