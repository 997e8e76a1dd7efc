package routing

import (
	"context"

	"github.com/golobby/container/v3"
	"github.com/gorilla/mux"

	"github.com/coldkeep/custody-api/cmd/rest-api/controllers"
)

// registerMobilePayRoutes wires the Mobile-Pay co-signing surface (spec.md
// §4.10, §6's mobile-pay and sign-transaction routes).
func registerMobilePayRoutes(ctx context.Context, c container.Container, r *mux.Router) {
	mobilepay := controllers.NewMobilePayController(c)

	r.HandleFunc("/api/accounts/{id}/mobile-pay", mobilepay.SetupSpendingLimit).Methods("PUT")
	r.HandleFunc("/api/accounts/{id}/keysets/{ksid}/sign-transaction", mobilepay.SignTransaction).Methods("POST")
}
