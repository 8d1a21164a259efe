package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/segyhp/pawn-engine/internal/cache"
	"github.com/segyhp/pawn-engine/internal/config"
	"github.com/segyhp/pawn-engine/internal/jobs"
	"github.com/segyhp/pawn-engine/internal/logger"
	"github.com/segyhp/pawn-engine/internal/repository"
	"github.com/segyhp/pawn-engine/internal/scheduler"
	"github.com/segyhp/pawn-engine/internal/service"
)

func main() {
	runOnce := flag.String("run-once", "", "run a single job and exit (due-sweep, collections-summary, all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Initialize(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting pawn scheduler", "timezone", cfg.Scheduler.Timezone)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.GetConnMaxLifetime())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pawnService := service.NewPawnService(
		service.Repositories{
			Loans:     repository.NewLoanRepository(db),
			Payments:  repository.NewPaymentRepository(db),
			Audit:     repository.NewAuditRepository(db),
			Customers: repository.NewCustomerRepository(db),
		},
		repository.NewTransactor(db),
		// the sweep waits longer than a clerk would for a busy loan
		cache.NewLoanLocker(redisClient, cfg.GetLockTTL(), 10*time.Second),
		cache.NewLoanCache(redisClient, cfg.GetCacheTTL()),
		cfg,
	)

	jobRunner := jobs.NewJobRunner(pawnService, cfg)

	if *runOnce != "" {
		if err := jobRunner.RunOnce(*runOnce); err != nil {
			logger.Error("Failed to run job", "job", *runOnce, "error", err)
			os.Exit(1)
		}
		return
	}

	sched := scheduler.NewScheduler(jobRunner)
	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down scheduler")
	<-sched.Stop().Done()
	logger.Info("Scheduler stopped")
}
