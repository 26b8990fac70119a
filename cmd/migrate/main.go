package main

import (
	"log"

	"invest-wallet/internal/config"
	"invest-wallet/internal/database"
	"invest-wallet/internal/logger"

	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	if err := logger.Initialize(cfg.LogLevel, cfg.Production()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Log.Fatal("Database connection failed", zap.Error(err))
	}

	logger.Log.Info("Running database migrations...")
	if err := database.Migrate(db); err != nil {
		logger.Log.Fatal("Migration failed", zap.Error(err))
	}
	logger.Log.Info("Migrations completed successfully!")
}
