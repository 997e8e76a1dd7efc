package routing

import (
	"context"

	"github.com/golobby/container/v3"
	"github.com/gorilla/mux"

	"github.com/coldkeep/custody-api/cmd/rest-api/controllers"
)

// registerRelationshipRoutes wires the
// `/api/accounts/{id}/recovery/relationships` table (spec.md §4.7, §6).
func registerRelationshipRoutes(ctx context.Context, c container.Container, r *mux.Router) {
	relationships := controllers.NewRelationshipController(c)

	r.HandleFunc("/api/accounts/{id}/recovery/relationships", relationships.CreateInvitation).Methods("POST")
	r.HandleFunc("/api/accounts/{id}/recovery/relationships", relationships.GetRelationships).Methods("GET")
	r.HandleFunc("/api/accounts/{id}/recovery/relationships/endorse", relationships.EndorseRelationships).Methods("POST")
	r.HandleFunc("/api/accounts/{id}/recovery/relationships/{rid}", relationships.UpdateRelationship).Methods("PUT")
	r.HandleFunc("/api/accounts/{id}/recovery/relationships/{rid}", relationships.DeleteRelationship).Methods("DELETE")
}
