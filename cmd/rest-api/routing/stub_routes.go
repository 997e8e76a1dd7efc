package routing

import (
	"context"

	"github.com/golobby/container/v3"
	"github.com/gorilla/mux"
)

// registerKeyProofRoutes is a no-op: key-proof verification (spec.md §4.1)
// is a request-level check every proof-gated handler runs inline, not a
// route of its own.
func registerKeyProofRoutes(ctx context.Context, c container.Container, r *mux.Router) {}
