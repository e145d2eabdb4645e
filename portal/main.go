package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rugtrack-labs/rugtrack-go/internal/platform/auditlog"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/auth"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/env"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/httpserver"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/postgres"
	repopg "github.com/rugtrack-labs/rugtrack-go/internal/repo/postgres"
	jobsvc "github.com/rugtrack-labs/rugtrack-go/internal/service/jobs"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("RUGTRACK_PORTAL_HTTP_ADDR", ":8082")
	shutdownTimeout, err := env.Duration("RUGTRACK_PORTAL_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	portalSecret := env.String("RUGTRACK_PORTAL_TOKEN_SECRET", "")
	if portalSecret == "" {
		logger.Error("RUGTRACK_PORTAL_TOKEN_SECRET is required")
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	service := jobsvc.New(
		repopg.NewJobStore(db),
		repopg.NewRugStore(db),
		repopg.NewEstimateStore(db),
		repopg.NewPaymentStore(db),
		repopg.NewServiceItemStore(db),
		repopg.NewPhotoStore(db),
		repopg.NewAuditStore(db, nil),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("portal"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"portal",
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
		),
	)

	api := newPortalAPI(logger, service)
	api.register(mux)

	skipPrefixes := []string{"/healthz", "/readyz"}

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: auth.PortalTokenAuthenticator{Secret: portalSecret},
		Authorize:     auth.ClientAuthorizer(),
		TenantResolve: auth.RequireTenantIDResolver(skipPrefixes),
		Audit: func(ctx context.Context, event auth.DenyEvent) error {
			auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return auditlog.InsertAuthDeny(auditCtx, db, "portal", event)
		},
		SkipPrefixes: skipPrefixes,
	}.Wrap(mux)

	cfg := httpserver.Config{
		Service:         "portal",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "portal", handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
