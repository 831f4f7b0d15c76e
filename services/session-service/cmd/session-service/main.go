package main

import (
	"context"
	"net/http"
	"time"

	"github.com/coachdesk/coachdesk/libs/config"
	"github.com/coachdesk/coachdesk/libs/db"
	"github.com/coachdesk/coachdesk/libs/httpx"
	"github.com/coachdesk/coachdesk/libs/kafkax"
	otelx "github.com/coachdesk/coachdesk/libs/otel"
	"github.com/coachdesk/coachdesk/libs/runtime"
	"github.com/coachdesk/coachdesk/services/session-service/internal/booking"
	"github.com/coachdesk/coachdesk/services/session-service/internal/handlers"
	"github.com/coachdesk/coachdesk/services/session-service/internal/history"
	"github.com/coachdesk/coachdesk/services/session-service/internal/identity"
	"github.com/coachdesk/coachdesk/services/session-service/internal/outbox"
	"github.com/coachdesk/coachdesk/services/session-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "session-service")
	port, err := config.Port("PORT", "8084")
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

	histRepo := history.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	repo := storage.NewSessionRepository(pool, histRepo, outboxRepo)
	svc := booking.NewService(repo, logger)

	verifier, err := identity.NewVerifier(logger, jwtSecret, config.String("IDENTITY_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("identity verifier init failed; using local verifier", "err", err)
		verifier = identity.NewLocalVerifier(jwtSecret)
	}

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	sessionHandler := handlers.NewSessionHandler(svc, repo, histRepo, verifier, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/sessions", sessionHandler.List)
	mux.HandleFunc("/api/v1/sessions/book", sessionHandler.Book)
	mux.HandleFunc("/api/v1/sessions/cancel", sessionHandler.Cancel)
	mux.HandleFunc("/api/v1/sessions/history", sessionHandler.History)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "sessions")
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
