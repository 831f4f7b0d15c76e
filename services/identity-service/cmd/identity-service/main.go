package main

import (
	"context"
	"net/http"
	"time"

	"github.com/coachdesk/coachdesk/libs/config"
	"github.com/coachdesk/coachdesk/libs/db"
	"github.com/coachdesk/coachdesk/libs/httpx"
	otelx "github.com/coachdesk/coachdesk/libs/otel"
	"github.com/coachdesk/coachdesk/libs/runtime"
	"github.com/coachdesk/coachdesk/services/identity-service/internal/audit"
	"github.com/coachdesk/coachdesk/services/identity-service/internal/handlers"
	"github.com/coachdesk/coachdesk/services/identity-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "identity-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("AUTH_JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	tokenTTL := config.Duration("ACCESS_TOKEN_TTL", time.Hour)

	users := storage.NewUserRepository(pool)
	auditRepo := audit.NewRepository(pool)
	identityHandler := handlers.NewIdentityHandler(users, auditRepo, jwtSecret, tokenTTL, logger)

	// Per-IP limiter on the credential endpoints; identity runs as a
	// single instance so the in-process window is enough.
	credLimiter := httpx.NewRateLimiter(config.Int("CRED_RATE_LIMIT_PER_MINUTE", 20), time.Minute).Middleware()

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.Handle("/api/v1/auth/register", credLimiter(http.HandlerFunc(identityHandler.Register)))
	mux.Handle("/api/v1/auth/login", credLimiter(http.HandlerFunc(identityHandler.Login)))
	mux.HandleFunc("/api/v1/auth/me", identityHandler.Me)
	mux.HandleFunc("/api/v1/admin/audit", identityHandler.Audit)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(64<<10),
		httpx.WithTimeout(10*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "identity")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
