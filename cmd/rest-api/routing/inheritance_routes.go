package routing

import (
	"context"

	"github.com/golobby/container/v3"
	"github.com/gorilla/mux"

	"github.com/coldkeep/custody-api/cmd/rest-api/controllers"
)

// registerInheritanceRoutes wires the
// `/api/accounts/{id}/recovery/inheritance` table (spec.md §4.8, §6).
func registerInheritanceRoutes(ctx context.Context, c container.Container, r *mux.Router) {
	inheritance := controllers.NewInheritanceController(c)

	r.HandleFunc("/api/accounts/{id}/recovery/inheritance/claims", inheritance.CreateClaim).Methods("POST")
	r.HandleFunc("/api/accounts/{id}/recovery/inheritance/packages", inheritance.UploadPackages).Methods("POST")
	r.HandleFunc("/api/accounts/{id}/recovery/inheritance/claims/{cid}/lock", inheritance.LockClaim).Methods("PUT")
	r.HandleFunc("/api/accounts/{id}/recovery/inheritance/claims/{cid}/complete", inheritance.CompleteClaim).Methods("PUT")
	r.HandleFunc("/api/accounts/{id}/recovery/inheritance/claims/{cid}/complete-without-psbt", inheritance.CompleteClaimWithoutPsbt).Methods("PUT")
	r.HandleFunc("/api/accounts/{id}/recovery/inheritance/claims/{cid}/cancel", inheritance.CancelClaim).Methods("POST")
}
