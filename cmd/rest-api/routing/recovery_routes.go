package routing

import (
	"context"

	"github.com/golobby/container/v3"
	"github.com/gorilla/mux"

	"github.com/coldkeep/custody-api/cmd/rest-api/controllers"
)

// registerRecoveryRoutes wires the `/api/accounts/{id}/delay-notify` table
// (spec.md §4.6, §6).
func registerRecoveryRoutes(ctx context.Context, c container.Container, r *mux.Router) {
	recovery := controllers.NewRecoveryController(c)

	r.HandleFunc("/api/accounts/{id}/delay-notify", recovery.CreateDelayNotify).Methods("POST")
	r.HandleFunc("/api/accounts/{id}/delay-notify", recovery.GetDelayNotify).Methods("GET")
	r.HandleFunc("/api/accounts/{id}/delay-notify", recovery.CancelDelayNotify).Methods("DELETE")
	r.HandleFunc("/api/accounts/{id}/delay-notify/complete", recovery.CompleteDelayNotify).Methods("POST")
}
