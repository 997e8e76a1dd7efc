package routing

import (
	"context"

	"github.com/golobby/container/v3"
	"github.com/gorilla/mux"

	"github.com/coldkeep/custody-api/cmd/rest-api/controllers"
)

// registerTxVerifyRoutes wires the out-of-band transaction-verification
// surface (spec.md §4.9, §6).
func registerTxVerifyRoutes(ctx context.Context, c container.Container, r *mux.Router) {
	txverify := controllers.NewTxVerifyController(c)

	r.HandleFunc("/api/accounts/{id}/tx-verify/policy", txverify.UpdatePolicy).Methods("PUT")
	r.HandleFunc("/api/accounts/{id}/tx-verify/requests", txverify.CreateVerificationRequest).Methods("POST")
	r.HandleFunc("/api/accounts/{id}/tx-verify/requests/{rid}/verify", txverify.VerifyConfirmationToken).Methods("POST")
}
