package controllers

import (
	"log/slog"
	"net/http"

	"github.com/golobby/container/v3"

	comms_entities "github.com/coldkeep/custody-api/pkg/domain/comms/entities"
	comms_in "github.com/coldkeep/custody-api/pkg/domain/comms/ports/in"
)

// CommsController handles the comms-verification step embedded in other
// domains' routes (spec.md §4.4), starting with touchpoint verification.
type CommsController struct {
	service comms_in.Service
	helper  *ControllerHelper
}

func NewCommsController(c container.Container) *CommsController {
	ctrl := &CommsController{helper: NewControllerHelper()}
	if err := c.Resolve(&ctrl.service); err != nil {
		slog.Warn("comms_in.Service not available", "err", err)
	}
	return ctrl
}

// VerifyTouchpoint handles POST /api/accounts/{id}/touchpoints/{tid}/verify:
// checks the submitted code against the AddTouchpoint(tid) scope and, on
// success, consumes the verified mark. The /activate handler does not check
// for this mark.
func (ctrl *CommsController) VerifyTouchpoint(w http.ResponseWriter, r *http.Request) {
	if ctrl.service == nil {
		ctrl.helper.WriteBadRequest(w, r, "comms verification unavailable")
		return
	}

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
		VerificationCode string `json:"verification_code"`
	}
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	scope := comms_entities.NewAddTouchpointScope(touchpointID)

	err = ctrl.service.Verify(r.Context(), comms_in.VerifyRequest{
		AccountID: accountID,
		Scope:     scope,
		Code:      req.VerificationCode,
	})
	if ctrl.helper.HandleError(w, r, err, "verify touchpoint code") {
		return
	}

	if err := ctrl.service.Consume(r.Context(), accountID, scope); ctrl.helper.HandleError(w, r, err, "consume touchpoint verification") {
		return
	}

	ctrl.helper.WriteOK(w, r, map[string]bool{"verified": true})
}
