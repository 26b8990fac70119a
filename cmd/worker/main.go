package main

import (
	"log"

	"invest-wallet/internal/config"
	"invest-wallet/internal/consumers"
	"invest-wallet/internal/database"
	"invest-wallet/internal/logger"
	"invest-wallet/internal/repository"
	"invest-wallet/internal/services"
	"invest-wallet/internal/worker"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	if err := logger.Initialize(cfg.LogLevel, cfg.Production()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	pol, _, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		logger.Log.Fatal("Failed to load policy", zap.Error(err))
	}

	// Connect DB
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Log.Fatal("Database connection failed", zap.Error(err))
	}
	store := repository.NewGormLedgerStore(db)

	// Init Services
	helperService := services.NewHelperService(store)
	referralService := services.NewReferralService(store)
	commissionService := services.NewCommissionService(store, helperService, referralService, pol)
	withdrawalService := services.NewWithdrawalService(store, helperService, pol)

	// Processor
	processor := consumers.NewCommissionProcessor(commissionService, withdrawalService)

	// Redis
	redisOpts, err := config.RedisOptions(cfg.RedisURL)
	if err != nil {
		logger.Log.Fatal("Invalid REDIS_URL", zap.Error(err))
	}
	redisOpt := asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	}

	logger.Log.Info("Starting Asynq Worker...", zap.String("redis", redisOpts.Addr))
	if err := worker.StartWorker(redisOpt, processor); err != nil {
		logger.Log.Fatal("Worker stopped", zap.Error(err))
	}
}
