package routing

import (
	"context"

	"github.com/golobby/container/v3"
	"github.com/gorilla/mux"
)

// registerCommsRoutes is a no-op: comms-verification (spec.md §4.4) has no
// standalone HTTP surface of its own. Every caller reaches it through the
// domain route that needs a code checked (touchpoint verification today,
// recovery/inheritance resumption once those domains are wired).
func registerCommsRoutes(ctx context.Context, c container.Container, r *mux.Router) {}
