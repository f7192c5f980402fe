package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/chain"
	"github.com/pactify/backend/internal/config"
	"github.com/pactify/backend/internal/db"
	"github.com/pactify/backend/internal/events"
	apphttp "github.com/pactify/backend/internal/http"
	"github.com/pactify/backend/internal/http/handlers"
	"github.com/pactify/backend/internal/repositories"
	"github.com/pactify/backend/internal/services"
	"github.com/pactify/backend/internal/storage"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Chain
	chainClient, err := chain.Dial(ctx, cfg.ChainRPCURL, cfg.EscrowContractAddress, cfg.ConfirmTimeout, cfg.ConfirmPollInterval, log)
	if err != nil {
		log.Fatal("failed to connect to chain rpc", zap.Error(err))
	}
	defer chainClient.Close()

	// File storage
	fileStore, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		log.Fatal("failed to init upload dir", zap.Error(err))
	}

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	pactRepo := repositories.NewPactRepo(pool)
	goalRepo := repositories.NewGoalRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	chatRepo := repositories.NewChatRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	pactService := services.NewPactService(pactRepo, walletRepo, chainClient, fileStore, auditRepo, publisher, log)
	goalService := services.NewGoalService(goalRepo, chainClient, auditRepo, publisher, log)
	walletService := services.NewWalletService(walletRepo, userRepo, auditRepo, log)
	chatService := services.NewChatService(chatRepo, pactRepo, publisher, log)
	scoreService := services.NewScoreService(pactRepo, goalRepo)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, walletService, log)
	userHandler := handlers.NewUserHandler(userRepo, scoreService, log)
	walletHandler := handlers.NewWalletHandler(walletService, log)
	pactHandler := handlers.NewPactHandler(pactService, log)
	goalHandler := handlers.NewGoalHandler(goalService, log)
	chatHandler := handlers.NewChatHandler(chatService, log)
	auditHandler := handlers.NewAuditHandler(auditRepo, pactService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: storage.MaxUploadSize + 1<<20,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, userHandler, walletHandler, pactHandler, goalHandler, chatHandler, auditHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
