package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rugtrack-labs/rugtrack-go/internal/auditexport"
	"github.com/rugtrack-labs/rugtrack-go/internal/catalog"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/auditlog"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/auth"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/env"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/httpserver"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/objectstore"
	"github.com/rugtrack-labs/rugtrack-go/internal/platform/postgres"
	repopg "github.com/rugtrack-labs/rugtrack-go/internal/repo/postgres"
	jobsvc "github.com/rugtrack-labs/rugtrack-go/internal/service/jobs"
	photosvc "github.com/rugtrack-labs/rugtrack-go/internal/service/photos"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("RUGTRACK_JOBS_HTTP_ADDR", ":8081")
	shutdownTimeout, err := env.Duration("RUGTRACK_JOBS_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
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

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	storeClient, err := objectstore.NewMinIOClient(storeCfg)
	if err != nil {
		logger.Error("object store client init failed", "error", err)
		os.Exit(2)
	}
	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := objectstore.EnsureBuckets(startupCtx, storeClient, storeCfg); err != nil {
		cancel()
		logger.Error("object store unavailable", "error", err)
		os.Exit(1)
	}
	cancel()

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}

	portalSecret := env.String("RUGTRACK_PORTAL_TOKEN_SECRET", "")
	if portalSecret == "" {
		logger.Error("RUGTRACK_PORTAL_TOKEN_SECRET is required")
		os.Exit(2)
	}
	portalTTL, err := env.Duration("RUGTRACK_PORTAL_TOKEN_TTL", 72*time.Hour)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}
	photoUploadMaxMiB, err := env.Int("RUGTRACK_PHOTO_UPLOAD_MAX_MIB", 32)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	catalogSpec, err := loadCatalog(env.String("RUGTRACK_CATALOG_PATH", ""))
	if err != nil {
		logger.Error("invalid service catalog", "error", err)
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("jobs"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"jobs",
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
			httpserver.ReadinessCheck{
				Name: "minio",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return objectstore.CheckBuckets(checkCtx, storeClient, storeCfg)
				},
			},
		),
	)

	var exporter auditexport.Exporter
	if exportPath := env.String("RUGTRACK_AUDIT_EXPORT_PATH", ""); exportPath != "" {
		exportFile, err := os.OpenFile(exportPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Error("audit export file open failed", "error", err)
			os.Exit(2)
		}
		defer func() { _ = exportFile.Close() }()
		exporter = auditexport.NewNDJSONExporter(exportFile)
	}

	auditStore := repopg.NewAuditStore(db, exporter)
	service := jobsvc.New(
		repopg.NewJobStore(db),
		repopg.NewRugStore(db),
		repopg.NewEstimateStore(db),
		repopg.NewPaymentStore(db),
		repopg.NewServiceItemStore(db),
		repopg.NewPhotoStore(db),
		auditStore,
	)

	objectStore, err := objectstore.NewMinioStore(storeClient)
	if err != nil {
		logger.Error("object store init failed", "error", err)
		os.Exit(2)
	}
	photoService := photosvc.New(objectStore, storeCfg.BucketPhotos)

	api := newJobsAPI(logger, service, photoService, repopg.NewTenantStore(db), auditStore, catalogSpec, portalSecret, portalTTL, int64(photoUploadMaxMiB))
	api.register(mux)

	skipPrefixes := []string{"/healthz", "/readyz", "/auth/"}

	// Tenant management is a platform-admin surface; those sessions may
	// not carry a tenant claim yet.
	tenantResolver := func(r *http.Request, identity auth.Identity) (string, error) {
		if strings.HasPrefix(r.URL.Path, "/v1/tenants") {
			return identity.Tenant, nil
		}
		return auth.RequireTenantIDResolver(skipPrefixes)(r, identity)
	}

	var authenticator auth.Authenticator
	if authCfg.Mode == auth.ModeOIDC {
		oidcService, err := auth.NewOIDCService(ctx, authCfg)
		if err != nil {
			logger.Error("oidc init failed", "error", err)
			os.Exit(1)
		}
		authenticator = oidcService
		if err := registerLoginEndpoints(mux, oidcService); err != nil {
			// Bearer-token auth still works without the browser flow.
			logger.Warn("login endpoints disabled", "error", err)
		}
	} else {
		authenticator = auth.NewDevAuthenticator(authCfg)
		logger.Warn("auth running in non-oidc mode", "mode", string(authCfg.Mode))
	}

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: authenticator,
		Authorize:     auth.StaffAuthorizer(),
		TenantResolve: tenantResolver,
		Audit: func(ctx context.Context, event auth.DenyEvent) error {
			auditCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return auditlog.InsertAuthDeny(auditCtx, db, "jobs", event)
		},
		SkipPrefixes: skipPrefixes,
	}.Wrap(mux)

	cfg := httpserver.Config{
		Service:         "jobs",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "jobs", handler)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func registerLoginEndpoints(mux *http.ServeMux, oidcService *auth.OIDCService) error {
	login, err := oidcService.LoginHandler()
	if err != nil {
		return err
	}
	callback, err := oidcService.CallbackHandler()
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /auth/login", login)
	mux.HandleFunc("GET /auth/callback", callback)
	mux.HandleFunc("POST /auth/logout", oidcService.LogoutHandler())
	mux.HandleFunc("GET /auth/session", oidcService.SessionHandler())
	return nil
}

// loadCatalog reads the tenant-facing service catalog. With no path
// configured the built-in defaults apply, which keeps local development
// working without a mounted config file.
func loadCatalog(path string) (catalog.Spec, error) {
	if path == "" {
		return defaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return catalog.Spec{}, err
	}
	return catalog.ParseSpec(raw)
}

func defaultCatalog() catalog.Spec {
	return catalog.Spec{
		Schema:   catalog.SpecSchemaV1,
		Currency: "USD",
		Services: []catalog.Service{
			{Code: "WASH", Name: "Full immersion wash", Unit: catalog.UnitPerRug, BaseCents: 15000, RequiresRugs: true},
			{Code: "STAIN", Name: "Stain treatment", Unit: catalog.UnitPerRug, BaseCents: 7500, RequiresRugs: true},
			{Code: "FRINGE", Name: "Fringe repair", Unit: catalog.UnitPerRug, BaseCents: 9000, RequiresRugs: true},
			{Code: "MOTH", Name: "Moth treatment", Unit: catalog.UnitPerSquareFt, BaseCents: 250, RequiresRugs: true},
			{Code: "PICKUP", Name: "Pickup and delivery", Unit: catalog.UnitFlat, BaseCents: 5000},
		},
	}
}
