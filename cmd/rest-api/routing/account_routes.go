package routing

import (
	"context"

	"github.com/golobby/container/v3"
	"github.com/gorilla/mux"

	"github.com/coldkeep/custody-api/cmd/rest-api/controllers"
)

// registerAccountRoutes wires the `/api/accounts` table (spec.md §6):
// creation, upgrade, touchpoints, device tokens, and keyset rotation.
func registerAccountRoutes(ctx context.Context, c container.Container, r *mux.Router) {
	account := controllers.NewAccountController(c)
	comms := controllers.NewCommsController(c)

	r.HandleFunc("/api/accounts", account.CreateAccount).Methods("POST")
	r.HandleFunc("/api/accounts/{id}", account.FetchAccount).Methods("GET")
	r.HandleFunc("/api/accounts/{id}/upgrade", account.UpgradeAccount).Methods("POST")

	r.HandleFunc("/api/accounts/{id}/keysets", account.CreateKeyset).Methods("POST")
	r.HandleFunc("/api/accounts/{id}/keysets/{ksid}", account.RotateKeyset).Methods("PUT")

	r.HandleFunc("/api/accounts/{id}/touchpoints", account.AddTouchpoint).Methods("POST")
	r.HandleFunc("/api/accounts/{id}/touchpoints/{tid}/verify", comms.VerifyTouchpoint).Methods("POST")
	r.HandleFunc("/api/accounts/{id}/touchpoints/{tid}/activate", account.ActivateTouchpoint).Methods("POST")
	r.HandleFunc("/api/accounts/{id}/device-token", account.AddDeviceToken).Methods("POST")
}
