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
	relationship_entities "github.com/coldkeep/custody-api/pkg/domain/relationship/entities"
	relationship_in "github.com/coldkeep/custody-api/pkg/domain/relationship/ports/in"
)

// RelationshipController handles the social-recovery/inheritance
// relationship HTTP surface (spec.md §4.7, §6's `/api/accounts/{id}/recovery/relationships` table).
type RelationshipController struct {
	service  relationship_in.Service
	accounts account_in.Service
	verifier *keyproof.Verifier
	helper   *ControllerHelper
}

func NewRelationshipController(c container.Container) *RelationshipController {
	ctrl := &RelationshipController{helper: NewControllerHelper()}

	if err := c.Resolve(&ctrl.service); err != nil {
		slog.Error("Failed to resolve relationship_in.Service", "err", err)
	}
	if err := c.Resolve(&ctrl.accounts); err != nil {
		slog.Error("Failed to resolve account_in.Service", "err", err)
	}
	_ = c.Resolve(&ctrl.verifier) // optional: degrades to rejecting proof-gated ops

	return ctrl
}

type createInvitationRequest struct {
	TrustedContactAlias                   string   `json:"trusted_contact_alias"`
	Roles                                  []string `json:"roles"`
	ProtectedCustomerEnrollmentPakePubkey  string   `json:"protected_customer_enrollment_pake_pubkey"`
	AppSignature                           string   `json:"app_signature"`
	HwSignature                            string   `json:"hardware_signature"`
}

// CreateInvitation handles POST /api/accounts/{id}/recovery/relationships.
func (ctrl *RelationshipController) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req createInvitationRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	appSigned, hwSigned, err := ctrl.verifyActiveProof(r, accountID, req.AppSignature, req.HwSignature)
	if ctrl.helper.HandleError(w, r, err, "verify key proof") {
		return
	}

	roles := make([]relationship_entities.Role, 0, len(req.Roles))
	for _, role := range req.Roles {
		roles = append(roles, relationship_entities.Role(strings.ToUpper(role)))
	}

	result, err := ctrl.service.CreateInvitation(r.Context(), relationship_in.CreateInvitationRequest{
		CustomerAccountID:                     accountID,
		Alias:                                  req.TrustedContactAlias,
		Roles:                                  roles,
		ProtectedCustomerEnrollmentPakePubkey: req.ProtectedCustomerEnrollmentPakePubkey,
		AppSigned:                             appSigned,
		HwSigned:                              hwSigned,
	})
	if ctrl.helper.HandleError(w, r, err, "create relationship invitation") {
		return
	}

	ctrl.helper.WriteCreated(w, r, map[string]interface{}{
		"relationship_id": result.Relationship.ID,
		"code":             result.Code,
	})
}

type updateRelationshipRequest struct {
	Action                              string `json:"action"`
	Code                                string `json:"code"`
	CustomerAlias                       string `json:"customer_alias"`
	TrustedContactEnrollmentPakePubkey string `json:"trusted_contact_enrollment_pake_pubkey"`
	EnrollmentPakeConfirmation         string `json:"enrollment_pake_confirmation"`
	SealedDelegatedDecryptionPubkey    string `json:"sealed_delegated_decryption_pubkey"`
	AppSignature                       string `json:"app_signature"`
	HwSignature                        string `json:"hardware_signature"`
}

// UpdateRelationship handles PUT /api/accounts/{id}/recovery/relationships/{rid}:
// Accept (trusted contact accepts an invitation) or Reissue (customer
// refreshes an expired/lost code), discriminated by "action".
func (ctrl *RelationshipController) UpdateRelationship(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}
	relationshipID, err := parseIDParam(r, "rid")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req updateRelationshipRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	switch strings.ToLower(req.Action) {
	case "reissue":
		appSigned, hwSigned, err := ctrl.verifyActiveProof(r, accountID, req.AppSignature, req.HwSignature)
		if ctrl.helper.HandleError(w, r, err, "verify key proof") {
			return
		}
		result, err := ctrl.service.ReissueInvitation(r.Context(), accountID, relationshipID, appSigned, hwSigned)
		if ctrl.helper.HandleError(w, r, err, "reissue relationship invitation") {
			return
		}
		ctrl.helper.WriteOK(w, r, map[string]interface{}{
			"relationship_id": result.Relationship.ID,
			"code":             result.Code,
		})
	default:
		rel, err := ctrl.service.AcceptInvitation(r.Context(), relationship_in.AcceptInvitationRequest{
			RelationshipID:                     relationshipID,
			TrustedContactAccountID:             accountID,
			Code:                                req.Code,
			CustomerAlias:                       req.CustomerAlias,
			TrustedContactEnrollmentPakePubkey: req.TrustedContactEnrollmentPakePubkey,
			EnrollmentPakeConfirmation:         req.EnrollmentPakeConfirmation,
			SealedDelegatedDecryptionPubkey:    req.SealedDelegatedDecryptionPubkey,
		})
		if ctrl.helper.HandleError(w, r, err, "accept relationship invitation") {
			return
		}
		ctrl.helper.WriteOK(w, r, rel)
	}
}

type endorseRelationshipsRequest struct {
	Endorsements []struct {
		RelationshipID                       string `json:"relationship_id"`
		DelegatedDecryptionPubkeyCertificate string `json:"delegated_decryption_pubkey_certificate"`
	} `json:"endorsements"`
	AppSignature string `json:"app_signature"`
	HwSignature  string `json:"hardware_signature"`
}

// EndorseRelationships handles POST /api/accounts/{id}/recovery/relationships/endorse.
func (ctrl *RelationshipController) EndorseRelationships(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var req endorseRelationshipsRequest
	if ctrl.helper.DecodeJSONRequest(w, r, &req) != nil {
		return
	}

	appSigned, hwSigned, err := ctrl.verifyActiveProof(r, accountID, req.AppSignature, req.HwSignature)
	if ctrl.helper.HandleError(w, r, err, "verify key proof") {
		return
	}

	endorsements := make([]relationship_in.Endorsement, 0, len(req.Endorsements))
	for _, e := range req.Endorsements {
		id, err := uuid.Parse(e.RelationshipID)
		if err != nil {
			ctrl.helper.WriteBadRequest(w, r, "invalid relationship_id")
			return
		}
		endorsements = append(endorsements, relationship_in.Endorsement{
			RelationshipID:                       id,
			DelegatedDecryptionPubkeyCertificate: e.DelegatedDecryptionPubkeyCertificate,
		})
	}

	if err := ctrl.service.EndorseRelationships(r.Context(), accountID, appSigned, hwSigned, endorsements); ctrl.helper.HandleError(w, r, err, "endorse relationships") {
		return
	}
	ctrl.helper.WriteOK(w, r, map[string]bool{})
}

// DeleteRelationship handles DELETE /api/accounts/{id}/recovery/relationships/{rid}.
func (ctrl *RelationshipController) DeleteRelationship(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}
	relationshipID, err := parseIDParam(r, "rid")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	if err := ctrl.service.DeleteRelationship(r.Context(), accountID, relationshipID); ctrl.helper.HandleError(w, r, err, "delete relationship") {
		return
	}
	ctrl.helper.WriteNoContent(w, r)
}

// GetRelationships handles GET /api/accounts/{id}/recovery/relationships.
func (ctrl *RelationshipController) GetRelationships(w http.ResponseWriter, r *http.Request) {
	accountID, err := parseIDParam(r, "id")
	if err != nil {
		ctrl.helper.WriteBadRequest(w, r, err.Error())
		return
	}

	var roleFilter *relationship_entities.Role
	if raw := r.URL.Query().Get("role"); raw != "" {
		role := relationship_entities.Role(strings.ToUpper(raw))
		roleFilter = &role
	}

	view, err := ctrl.service.GetRelationships(r.Context(), accountID, roleFilter)
	if ctrl.helper.HandleError(w, r, err, "get relationships") {
		return
	}
	ctrl.helper.WriteOK(w, r, view)
}

// verifyActiveProof checks app/hw signatures over the bearer access token
// against the account's currently active auth keys.
func (ctrl *RelationshipController) verifyActiveProof(r *http.Request, accountID uuid.UUID, appSigB64, hwSigB64 string) (appSigned, hwSigned bool, err error) {
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
