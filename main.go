package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	commonhttp "twin-bridge/internal/common/http"
	"twin-bridge/internal/common/logging"
	"twin-bridge/internal/common/utils"
	"twin-bridge/internal/config"
	"twin-bridge/internal/dtapi"
	"twin-bridge/internal/handlers"
	"twin-bridge/internal/middleware"
	"twin-bridge/internal/oauth2"
	"twin-bridge/internal/server"
	"twin-bridge/internal/signature"
	"twin-bridge/internal/twin"
)

func main() {
	// Optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	verifier := signature.NewVerifier(&signature.Config{
		Header: cfg.SignatureHeader,
		Secret: cfg.SignatureSecret,
		Leeway: cfg.SignatureLeeway,
	}, logger)

	provider := oauth2.NewProvider(oauth2.Credentials{
		Email:  cfg.ServiceAccountEmail,
		KeyID:  cfg.ServiceAccountKeyID,
		Secret: cfg.ServiceAccountSecret,
	}, cfg.AuthEndpoint, logger)
	tokens := oauth2.NewCache(provider, logger)

	retry := utils.DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.InitialDelay = cfg.RetryInitialDelay

	api := dtapi.NewClient(tokens, dtapi.Options{
		APIBaseURL:      cfg.APIBaseURL,
		EmulatorBaseURL: cfg.EmulatorBaseURL,
		HTTPClient:      commonhttp.NewHTTPClientWithTimeout(cfg.RequestTimeout),
		Retry:           retry,
		Logger:          logger,
	})

	twins := twin.NewSynchronizer(api, logger)
	h := handlers.New(cfg, verifier, api, twins, logger)

	router := mux.NewRouter()
	router.HandleFunc("/webhook", h.HandleDataConnector).Methods("POST")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	var handler = middleware.LoggingMiddleware(router)
	var limiter *middleware.RateLimiter
	if cfg.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
		handler = limiter.Middleware(handler)
	}

	srv := server.New(handler, cfg.Port, cfg.TLSCert, cfg.TLSKey, cfg.RequestTimeout, logger)
	errCh := srv.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("Server failed", err)
		logging.MustSync()
		os.Exit(1)
	case sig := <-quit:
		logger.Info("Shutting down", logging.Field{Key: "signal", Value: sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if limiter != nil {
		limiter.Stop()
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", err)
		logging.MustSync()
		os.Exit(1)
	}

	logger.Info("Server exited")
}
