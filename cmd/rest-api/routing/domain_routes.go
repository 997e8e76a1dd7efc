package routing

import (
	"context"

	"github.com/golobby/container/v3"
	"github.com/gorilla/mux"
)

// registerDomainRoutes is split out from NewRouter so each domain's route
// block can be added independently as its controller is built.
func registerDomainRoutes(ctx context.Context, c container.Container, r *mux.Router) {
	registerAccountRoutes(ctx, c, r)
	registerKeyProofRoutes(ctx, c, r)
	registerCommsRoutes(ctx, c, r)
	registerRecoveryRoutes(ctx, c, r)
	registerRelationshipRoutes(ctx, c, r)
	registerInheritanceRoutes(ctx, c, r)
	registerTxVerifyRoutes(ctx, c, r)
	registerMobilePayRoutes(ctx, c, r)
	registerFingerprintResetRoutes(ctx, c, r)
}
