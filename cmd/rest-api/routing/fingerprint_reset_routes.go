package routing

import (
	"context"

	"github.com/golobby/container/v3"
	"github.com/gorilla/mux"

	"github.com/coldkeep/custody-api/cmd/rest-api/controllers"
)

// registerFingerprintResetRoutes wires the DelayNotify-gated hardware
// biometric reset (spec.md §4.12).
func registerFingerprintResetRoutes(ctx context.Context, c container.Container, r *mux.Router) {
	reset := controllers.NewFingerprintResetController(c)

	r.HandleFunc("/api/accounts/{id}/reset-fingerprint", reset.Begin).Methods("POST")
	r.HandleFunc("/api/accounts/{id}/reset-fingerprint/{rid}/continue", reset.Continue).Methods("POST")
	r.HandleFunc("/api/accounts/{id}/reset-fingerprint/{rid}", reset.Cancel).Methods("DELETE")
}
