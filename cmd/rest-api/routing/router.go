package routing

import (
	"context"
	"net/http"

	"github.com/golobby/container/v3"
	"github.com/gorilla/mux"

	"github.com/coldkeep/custody-api/cmd/rest-api/controllers"
	"github.com/coldkeep/custody-api/cmd/rest-api/middlewares"
)

const (
	Health  string = "/health"
	Metrics string = "/metrics"
)

// NewRouter wires every HTTP route. Populated incrementally as each domain
// component grows its own controller; health and metrics are wired first so
// the service has a working liveness surface from the start.
func NewRouter(ctx context.Context, c container.Container) http.Handler {
	rateLimitMiddleware := middlewares.NewRateLimitMiddleware()
	requestSigningMiddleware := middlewares.NewRequestSigningMiddleware()
	healthController := controllers.NewHealthController(c)

	r := mux.NewRouter()

	r.Use(middlewares.ErrorMiddleware)
	r.Use(mux.CORSMethodMiddleware(r))
	r.Use(rateLimitMiddleware.Handler)
	r.Use(requestSigningMiddleware.Handler)

	r.HandleFunc(Health, healthController.HealthCheck(ctx)).Methods("GET")
	r.HandleFunc("/health/ready", healthController.ReadinessCheck(ctx)).Methods("GET")
	r.HandleFunc("/health/live", healthController.LivenessCheck(ctx)).Methods("GET")
	r.Handle(Metrics, healthController.MetricsHandler()).Methods("GET")

	registerDomainRoutes(ctx, c, r)

	return r
}
