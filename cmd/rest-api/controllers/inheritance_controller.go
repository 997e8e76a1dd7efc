package controllers

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/golobby/container/v3"
	"github.com/google/uuid"

	account_in "github.com/coldkeep/custody-api/pkg/domain/account/ports/in"
	inheritance_in "github.com/coldkeep/custody-api/pkg/domain/inheritance/ports/in"
	"github.com/coldkeep/custody-api/pkg/domain/keyproof"
)

// InheritanceController handles the inheritance claim HTTP surface
// (spec.md §4.8, §6's `/api/accounts/{id}/recovery/inheritance` table).
type InheritanceController struct {
	service  inheritance_in.Service
	accounts account_in.Service
	verifier *keyproof.Verifier
	helper   *ControllerHelper
}

func NewInheritanceController(c container.Container) *InheritanceController {
	ctrl := &InheritanceController{helper: NewControllerHelper()}

	if err := c.Resolve(&ctrl.service); err != nil {
		slog.Error("Failed to resolve inheritance_in.Service", "err", err)
	}
	if err := c.Resolve(&ctrl.accounts); err != nil {
		slog.Error("Failed to resolve account_in.Service", "err", err)
	}
	_ = c.Resolve(&ctrl.verifier) // optional: no handler of this controller checks a key proof

	return ctrl
}

type createClaimRequest struct {
	RecoveryRelationshipID uuid.UUID `json:"recovery_relationship_id"`
}

// CreateClaim handles POST /api/accounts/{id}/recovery/inheritance/claims.
func (ctrl *InheritanceController) CreateClaim(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req createClaimRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	claim, err := ctrl.service.Start(r.Context(), inheritance_in.StartRequest{
		BeneficiaryAccountID: accountID,
		RelationshipID:       req.RecoveryRelationshipID,
	})
	if ctrl.helper.HandleError(w, r, err, "start inheritance claim") {
		return
	}

	ctrl.helper.WriteCreated(w, r, map[string]interface{}{"claim": claim})
}

type uploadPackagesRequest struct {
	Packages []struct {
		RelationshipID  uuid.UUID `json:"relationship_id"`
		SealedDEK       string    `json:"sealed_dek"`
		SealedMobileKey string    `json:"sealed_mobile_key"`
	} `json:"packages"`
}

// UploadPackages handles POST /api/accounts/{id}/recovery/inheritance/packages.
func (ctrl *InheritanceController) UploadPackages(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req uploadPackagesRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	for _, pkg := range req.Packages {
		err := ctrl.service.UploadPackage(r.Context(), inheritance_in.PackageUploadRequest{
			BenefactorAccountID: accountID,
			RelationshipID:      pkg.RelationshipID,
			SealedDEK:           pkg.SealedDEK,
			SealedMobileKey:     pkg.SealedMobileKey,
		})
		if ctrl.helper.HandleError(w, r, err, "upload inheritance package") {
			return
		}
	}

	ctrl.helper.WriteOK(w, r, map[string]interface{}{})
}

// LockClaim handles PUT .../claims/{cid}/lock.
func (ctrl *InheritanceController) LockClaim(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}
	claimID, err := parseIDParam(r, "cid")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req struct {
		Destination struct {
			App      string `json:"app"`
			Hw       string `json:"hardware"`
			Recovery string `json:"recovery"`
		} `json:"destination"`
		AppSignature string `json:"app_signature"`
		HwSignature  string `json:"hardware_signature"`
	}
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	appSig, _ := base64.StdEncoding.DecodeString(req.AppSignature)
	hwSig, _ := base64.StdEncoding.DecodeString(req.HwSignature)

	claim, err := ctrl.service.Lock(r.Context(), inheritance_in.LockRequest{
		ClaimID:              claimID,
		BeneficiaryAccountID: accountID,
		DestAppPubkey:        decodePubkey(req.Destination.App),
		DestHwPubkey:         decodePubkey(req.Destination.Hw),
		DestRecoveryPubkey:   decodePubkey(req.Destination.Recovery),
		AppSig:               appSig,
		HwSig:                hwSig,
	})
	if ctrl.helper.HandleError(w, r, err, "lock inheritance claim") {
		return
	}

	ctrl.helper.WriteOK(w, r, map[string]interface{}{"claim": claim})
}

// CompleteClaim handles PUT .../claims/{cid}/complete.
func (ctrl *InheritanceController) CompleteClaim(w http.ResponseWriter, r *http.Request) {
	ctrl.complete(w, r, true)
}

// CompleteClaimWithoutPsbt handles PUT .../claims/{cid}/complete-without-psbt.
func (ctrl *InheritanceController) CompleteClaimWithoutPsbt(w http.ResponseWriter, r *http.Request) {
	ctrl.complete(w, r, false)
}

func (ctrl *InheritanceController) complete(w http.ResponseWriter, r *http.Request, expectPsbt bool) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}
	claimID, err := parseIDParam(r, "cid")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var psbt []byte
	if expectPsbt {
		var req struct {
			Psbt string `json:"psbt"`
		}
		if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
			return
		}
		psbt, _ = base64.StdEncoding.DecodeString(req.Psbt)
	}

	claim, err := ctrl.service.Complete(r.Context(), inheritance_in.CompleteRequest{
		ClaimID:              claimID,
		BeneficiaryAccountID: accountID,
		Psbt:                 psbt,
	})
	if ctrl.helper.HandleError(w, r, err, "complete inheritance claim") {
		return
	}

	ctrl.helper.WriteOK(w, r, map[string]interface{}{"claim": claim})
}

// CancelClaim handles POST .../claims/{cid}/cancel.
func (ctrl *InheritanceController) CancelClaim(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}
	claimID, err := parseIDParam(r, "cid")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	claim, err := ctrl.service.Cancel(r.Context(), accountID, claimID)
	if ctrl.helper.HandleError(w, r, err, "cancel inheritance claim") {
		return
	}

	ctrl.helper.WriteOK(w, r, map[string]interface{}{"claim": claim})
}
