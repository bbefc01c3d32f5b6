package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/mwork/robokassa-gateway/internal/config"
	"github.com/mwork/robokassa-gateway/internal/domain/payment"
	"github.com/mwork/robokassa-gateway/internal/middleware"
	"github.com/mwork/robokassa-gateway/internal/pkg/database"
	"github.com/mwork/robokassa-gateway/internal/pkg/jwt"
	"github.com/mwork/robokassa-gateway/internal/pkg/logger"
	pkgresponse "github.com/mwork/robokassa-gateway/internal/pkg/response"
	"github.com/mwork/robokassa-gateway/internal/pkg/robokassa"
)

func main() {
	cfg := config.Load()

	logCloser, err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
		Service:     "robokassa-gateway",
	})
	if err != nil {
		log.Error().Err(err).Str("file", cfg.LogFile).Msg("Failed to open log file")
	}
	defer logCloser.Close()

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Bool("robokassa_test_mode", cfg.RoboKassaTestMode).
		Msg("Starting RoboKassa gateway")

	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	redis, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	client, err := robokassa.NewClient(robokassaConfig(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid RoboKassa merchant configuration")
	}
	log.Info().Str("merchant", client.Merchant().String()).Msg("RoboKassa merchant loaded")

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTTokenTTL)

	paymentRepo := payment.NewRepository(db)
	guard := payment.NewCallbackGuard(redis, cfg.CallbackLockTTL)
	paymentService := payment.NewService(paymentRepo, client, guard)
	paymentHandler := payment.NewHandler(paymentService)

	health := func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			pkgresponse.Error(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unavailable")
			return
		}
		pkgresponse.OK(w, map[string]string{"status": "ok"})
	}

	r := newRouter(cfg, middleware.Auth(jwtService), paymentHandler, health)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

func robokassaConfig(cfg *config.Config) robokassa.Config {
	return robokassa.Config{
		Merchant: robokassa.MerchantConfig{
			Login:         cfg.RoboKassaMerchantLogin,
			Password1:     cfg.RoboKassaPassword1,
			Password2:     cfg.RoboKassaPassword2,
			TestPassword1: cfg.RoboKassaTestPassword1,
			TestPassword2: cfg.RoboKassaTestPassword2,
			IsTest:        cfg.RoboKassaTestMode,
			HashAlgo:      cfg.RoboKassaHashAlgo,
		},
		PaymentURL:    cfg.RoboKassaPaymentURL,
		WebServiceURL: cfg.RoboKassaWebServiceURL,
		InvoiceAPIURL: cfg.RoboKassaInvoiceAPIURL,
		Timeout:       cfg.RoboKassaTimeout,
		RetryMax:      cfg.RoboKassaRetryMax,
	}
}

// newRouter mounts the operator API and the gateway callbacks. Callbacks sit outside CORS and
// auth: RoboKassa calls them server to server and they carry their own signature.
func newRouter(cfg *config.Config, authMiddleware func(http.Handler) http.Handler, paymentHandler *payment.Handler, health http.HandlerFunc) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.NotFound(w, "route not found")
	})
	r.Get("/health", health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
		r.Use(middleware.Timeout(20 * time.Second))
		r.Mount("/payments", paymentHandler.Routes(authMiddleware))
	})

	r.Mount("/webhooks/robokassa", paymentHandler.WebhookRoutes())

	return r
}
