package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segyhp/pawn-engine/internal/cache"
	"github.com/segyhp/pawn-engine/internal/config"
	"github.com/segyhp/pawn-engine/internal/handler"
	"github.com/segyhp/pawn-engine/internal/logger"
	"github.com/segyhp/pawn-engine/internal/repository"
	"github.com/segyhp/pawn-engine/internal/service"
	"github.com/segyhp/pawn-engine/pkg/response"
)

// How long a request waits for another clerk's write on the same loan
const lockWait = 3 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Initialize(cfg.Logging.Level, cfg.Logging.Format)

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	repos := service.Repositories{
		Loans:     repository.NewLoanRepository(db),
		Payments:  repository.NewPaymentRepository(db),
		Audit:     repository.NewAuditRepository(db),
		Customers: repository.NewCustomerRepository(db),
	}

	pawnService := service.NewPawnService(
		repos,
		repository.NewTransactor(db),
		cache.NewLoanLocker(redisClient, cfg.GetLockTTL(), lockWait),
		cache.NewLoanCache(redisClient, cfg.GetCacheTTL()),
		cfg,
	)

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, operators are taken from request headers")
	}
	auth := handler.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)

	loanHandler := handler.NewLoanHandler(pawnService)
	healthHandler := handler.NewHealthHandler(cfg.GetHealthTimeout(), map[string]handler.Check{
		"database": db.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})

	router := setupRoutes(loanHandler, healthHandler, auth)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	go func() {
		logger.Info("Server starting", "addr", server.Addr, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.GetConnMaxLifetime())

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(loanHandler *handler.LoanHandler, healthHandler *handler.HealthHandler, auth *handler.Authenticator) *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = response.NotFoundHandler()
	router.Use(response.LoggingMiddleware)
	router.Use(response.CORSMiddleware)

	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware)
	loanHandler.RegisterRoutes(api)

	return router
}
