package main

import (
	"log"
	"net/http"

	"invest-wallet/internal/config"
	"invest-wallet/internal/database"
	grpcServer "invest-wallet/internal/grpc"
	"invest-wallet/internal/handlers"
	"invest-wallet/internal/logger"
	"invest-wallet/internal/middleware"
	"invest-wallet/internal/ratelimit"
	"invest-wallet/internal/repository"
	"invest-wallet/internal/services"
	"invest-wallet/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	if err := logger.Initialize(cfg.LogLevel, cfg.Production()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	gin.SetMode(cfg.GinMode)

	pol, profiles, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		logger.Log.Fatal("Failed to load policy", zap.String("file", cfg.PolicyFile), zap.Error(err))
	}

	// Ledger store
	var store repository.LedgerStore
	if cfg.DBDriver == "memory" {
		logger.Log.Warn("Using in-memory ledger store, data is lost on restart")
		store = repository.NewMemoryLedgerStore()
	} else {
		db, err := database.Connect(cfg)
		if err != nil {
			logger.Log.Fatal("Database connection failed", zap.Error(err))
		}
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Database migration failed", zap.Error(err))
		}
		store = repository.NewGormLedgerStore(db)
	}

	redisOpts, err := config.RedisOptions(cfg.RedisURL)
	if err != nil {
		logger.Log.Fatal("Invalid REDIS_URL", zap.Error(err))
	}

	// Rate limiter
	var counters ratelimit.CounterStore
	switch cfg.RateLimitBackend {
	case "redis":
		client := redis.NewClient(redisOpts)
		defer client.Close()
		counters = ratelimit.NewRedisStore(client)
	default:
		memory := ratelimit.NewMemoryStore()
		if err := memory.StartSweeper(""); err != nil {
			logger.Log.Fatal("Failed to start rate limit sweeper", zap.Error(err))
		}
		defer memory.Stop()
		counters = memory
	}
	limiter := ratelimit.NewLimiter(counters, profiles)

	// Services
	helperService := services.NewHelperService(store)
	referralService := services.NewReferralService(store)
	commissionService := services.NewCommissionService(store, helperService, referralService, pol)
	walletService := services.NewWalletService(store)
	withdrawalService := services.NewWithdrawalService(store, helperService, pol)
	investmentService := services.NewInvestmentService(store, helperService)

	var queue services.CommissionQueue
	var payouts handlers.PayoutQueue
	if cfg.CommissionInline {
		queue = services.InlineCommissionQueue{Commission: commissionService}
	} else {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisOpts.Addr,
			Password: redisOpts.Password,
			DB:       redisOpts.DB,
		})
		defer asynqClient.Close()
		asynqQueue := worker.NewAsynqQueue(asynqClient)
		queue = asynqQueue
		payouts = asynqQueue
	}
	depositService := services.NewDepositService(store, helperService, queue)

	// Initialize Gin
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	corsConfig.ExposeHeaders = []string{"Retry-After", "X-RateLimit-Remaining", "X-RateLimit-Reset"}
	r.Use(cors.New(corsConfig))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome To Invest Wallet service",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &handlers.Handler{
		Wallets:        walletService,
		Withdrawals:    withdrawalService,
		Deposits:       depositService,
		Investments:    investmentService,
		Referrals:      referralService,
		Commissions:    commissionService,
		Limiter:        limiter,
		Payouts:        payouts,
		JWTSecret:      cfg.JWTSecret,
		InternalAPIKey: cfg.InternalAPIKey,
	}
	h.RegisterRoutes(r)

	// Start gRPC server
	go func() {
		err := grpcServer.StartGRPCServer(cfg.GRPCPort, &grpcServer.Server{
			Wallet:     walletService,
			Withdrawal: withdrawalService,
			Commission: commissionService,
			Limiter:    limiter,
		})
		if err != nil {
			logger.Log.Fatal("gRPC server stopped", zap.Error(err))
		}
	}()

	// Start Cron Schedulers
	if scheduler := commissionService.StartScheduler(cfg.ReconcileLookback); scheduler != nil {
		defer scheduler.Stop()
	}

	logger.Log.Info("HTTP Server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Log.Fatal("Failed to start server", zap.Error(err))
	}
}
