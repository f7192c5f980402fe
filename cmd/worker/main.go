package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pactify/backend/internal/chain"
	"github.com/pactify/backend/internal/config"
	"github.com/pactify/backend/internal/db"
	"github.com/pactify/backend/internal/events"
	"github.com/pactify/backend/internal/repositories"
	"github.com/pactify/backend/internal/services"
	"github.com/pactify/backend/internal/storage"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	chainClient, err := chain.Dial(ctx, cfg.ChainRPCURL, cfg.EscrowContractAddress, cfg.ConfirmTimeout, cfg.ConfirmPollInterval, log)
	if err != nil {
		log.Fatal("failed to connect to chain rpc", zap.Error(err))
	}
	defer chainClient.Close()

	fileStore, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		log.Fatal("failed to init upload dir", zap.Error(err))
	}

	// Repos
	pactRepo := repositories.NewPactRepo(pool)
	goalRepo := repositories.NewGoalRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	pactService := services.NewPactService(pactRepo, walletRepo, chainClient, fileStore, auditRepo, publisher, log)
	goalService := services.NewGoalService(goalRepo, chainClient, auditRepo, publisher, log)

	log.Info("worker started")

	reconcileTicker := time.NewTicker(cfg.ReconcileInterval)
	deadlineTicker := time.NewTicker(1 * time.Minute)
	defer reconcileTicker.Stop()
	defer deadlineTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-reconcileTicker.C:
			runReconcileSweep(ctx, pactService, cfg, log)
		case <-deadlineTicker.C:
			runGoalDeadlines(ctx, goalService, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runReconcileSweep audits pacts that have not moved recently against
// their on-chain records and repairs any divergence it finds.
func runReconcileSweep(ctx context.Context, pacts *services.PactService, cfg *config.Config, log *zap.Logger) {
	repaired, err := pacts.ReconcileStale(ctx, cfg.ReconcileStaleSeconds, cfg.ReconcileBatchSize)
	if err != nil {
		log.Error("reconcile sweep failed", zap.Error(err))
		return
	}
	if repaired > 0 {
		log.Info("reconcile sweep repaired pacts", zap.Int("count", repaired))
	}
}

func runGoalDeadlines(ctx context.Context, goals *services.GoalService, log *zap.Logger) {
	failed, err := goals.SweepOverdue(ctx)
	if err != nil {
		log.Error("goal deadline sweep failed", zap.Error(err))
		return
	}
	if failed > 0 {
		log.Info("failed overdue goals", zap.Int("count", failed))
	}
}
