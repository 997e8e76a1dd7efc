package controllers

import (
	"log/slog"
	"net/http"

	"github.com/golobby/container/v3"

	account_in "github.com/coldkeep/custody-api/pkg/domain/account/ports/in"
)

// FingerprintResetController handles the hardware biometric reset HTTP
// surface (spec.md §4.12's DelayNotify-gated reset-fingerprint mutation).
type FingerprintResetController struct {
	service account_in.FingerprintResetService
	helper  *ControllerHelper
}

func NewFingerprintResetController(c container.Container) *FingerprintResetController {
	ctrl := &FingerprintResetController{helper: NewControllerHelper()}

	if err := c.Resolve(&ctrl.service); err != nil {
		slog.Error("Failed to resolve account_in.FingerprintResetService", "err", err)
	}

	return ctrl
}

// Begin handles POST /api/accounts/{id}/reset-fingerprint.
func (ctrl *FingerprintResetController) Begin(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	instanceID, completeAt, err := ctrl.service.Begin(r.Context(), accountID)
	if ctrl.helper.HandleError(w, r, err, "begin fingerprint reset") {
		return
	}

	ctrl.helper.WriteCreated(w, r, map[string]interface{}{
		"reset_fingerprint_instance_id": instanceID,
		"complete_at":                   completeAt,
	})
}

// Continue handles POST /api/accounts/{id}/reset-fingerprint/{rid}/continue.
func (ctrl *FingerprintResetController) Continue(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}
	instanceID, err := parseIDParam(r, "rid")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	err = ctrl.service.Continue(r.Context(), accountID, instanceID)
	if ctrl.helper.HandleError(w, r, err, "continue fingerprint reset") {
		return
	}

	ctrl.helper.WriteOK(w, r, map[string]interface{}{})
}

// Cancel handles DELETE /api/accounts/{id}/reset-fingerprint/{rid}.
func (ctrl *FingerprintResetController) Cancel(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}
	instanceID, err := parseIDParam(r, "rid")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	err = ctrl.service.Cancel(r.Context(), accountID, instanceID)
	if ctrl.helper.HandleError(w, r, err, "cancel fingerprint reset") {
		return
	}

	ctrl.helper.WriteOK(w, r, map[string]interface{}{})
}
