package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golobby/container/v3"

	"github.com/coldkeep/custody-api/cmd/rest-api/routing"
	common "github.com/coldkeep/custody-api/pkg/domain"
	notification_in "github.com/coldkeep/custody-api/pkg/domain/notification/ports/in"
	notification_clients "github.com/coldkeep/custody-api/pkg/infra/clients/notification"
	ioc "github.com/coldkeep/custody-api/pkg/infra/ioc"
	kafka "github.com/coldkeep/custody-api/pkg/infra/kafka"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	slog.SetDefault(logger)

	builder := ioc.NewContainerBuilder()

	c := builder.
		WithEnvFile().
		With(ioc.InjectMongoDB).
		WithHDKeys().
		WithUserPool().
		WithAccountDomain().
		WithKafka().
		WithNotificationDomain().
		WithCommsDomain().
		WithRecoveryDomain().
		WithRelationshipDomain().
		WithInheritanceDomain().
		WithTxVerifyDomain().
		WithMobilePayDomain().
		Build()

	defer builder.Close(c)

	startNotificationWorkers(ctx, c)

	router := routing.NewRouter(ctx, c)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	slog.InfoContext(ctx, "Starting server on port "+port)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handler for Kubernetes SIGTERM
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-shutdownChan
		slog.InfoContext(ctx, "Received shutdown signal", "signal", sig.String())

		// Give Kubernetes time to update endpoints
		slog.InfoContext(ctx, "Waiting for Kubernetes endpoint update...")
		time.Sleep(5 * time.Second)

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		slog.InfoContext(ctx, "Shutting down server gracefully...")
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "Server shutdown error", "error", err)
		}

		// Cancel main context to stop background jobs
		cancel()
		slog.InfoContext(ctx, "Server shutdown complete")
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.ErrorContext(ctx, "Server error", "err", err)
		os.Exit(1)
	}

}

// startNotificationWorkers launches the two background loops the
// notification service needs beyond request-time calls: the scheduler
// drain (spec.md §4.5's "worker drains by earliest time") and an audit
// consumer reading the same topic the producer writes to. Both stop when
// ctx is canceled.
func startNotificationWorkers(ctx context.Context, c container.Container) {
	var svc notification_in.Service
	if err := c.Resolve(&svc); err != nil {
		slog.Warn("notification_in.Service not available, skipping background workers", "err", err)
		return
	}

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				delivered, err := svc.Drain(ctx, time.Now())
				if err != nil {
					slog.ErrorContext(ctx, "notification drain failed", "err", err)
					continue
				}
				if delivered > 0 {
					slog.InfoContext(ctx, "notification drain delivered", "count", delivered)
				}
			}
		}
	}()

	var client *kafka.Client
	if err := c.Resolve(&client); err != nil {
		slog.Warn("kafka.Client not available, skipping notification audit consumer", "err", err)
		return
	}

	var config common.Config
	if err := c.Resolve(&config); err != nil {
		slog.Warn("common.Config not available, skipping notification audit consumer", "err", err)
		return
	}

	go func() {
		audit := notification_clients.NewAuditConsumer(client, "custody-api-notification-audit", config.Kafka.NotificationTopic)
		if err := audit.Start(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "notification audit consumer stopped", "err", err)
		}
	}()
}
