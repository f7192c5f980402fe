package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/chain"
	"github.com/pactify/backend/internal/config"
	"github.com/pactify/backend/internal/db"
	"github.com/pactify/backend/internal/events"
	"github.com/pactify/backend/internal/models"
	"github.com/pactify/backend/internal/repositories"
)

const (
	redisCursorBlock = "chain-indexer:cursor:block"
	redisProcessed   = "chain-indexer:log:"
	processedTTL     = 7 * 24 * time.Hour

	// Stay behind the head to avoid reorged logs.
	confirmationDepth = 3
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.EscrowContractAddress == "" {
		log.Fatal("ESCROW_CONTRACT_ADDRESS is required")
	}

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

	pactRepo := repositories.NewPactRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)

	idx := &indexer{
		cfg:       cfg,
		chain:     chainClient,
		pacts:     pactRepo,
		audit:     auditRepo,
		publisher: publisher,
		rdb:       rdb,
		log:       log,
	}

	log.Info("chain indexer started",
		zap.String("contract", cfg.EscrowContractAddress),
		zap.Uint64("start_block", cfg.IndexerStartBlock),
	)

	ticker := time.NewTicker(cfg.IndexerPollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := idx.poll(ctx); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down chain indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// pactLedger is the repair surface of *repositories.PactRepo.
type pactLedger interface {
	GetByOnchainID(ctx context.Context, onchainID string) (*models.Pact, error)
	RepairAccepted(ctx context.Context, id uuid.UUID, txHash string) (bool, error)
	RepairWorkSubmitted(ctx context.Context, id uuid.UUID) (bool, error)
	RepairRevision(ctx context.Context, id uuid.UUID, count int, status string) (bool, error)
	RepairResolved(ctx context.Context, id uuid.UUID, outcome string) (bool, error)
}

// escrowReader is the slice of *chain.Client the replay loop needs.
type escrowReader interface {
	LatestBlock(ctx context.Context) (uint64, error)
	FilterPactLogs(ctx context.Context, from, to uint64) ([]types.Log, error)
	DecodeLog(lg types.Log) (event string, pactID common.Hash, ok bool)
	ResolvedStatus(lg types.Log) (chain.OnChainStatus, error)
	RevisionCount(lg types.Log) (uint8, error)
	PactRecord(ctx context.Context, pactID [32]byte) (*chain.OnChainPact, error)
}

type indexer struct {
	cfg       *config.Config
	chain     escrowReader
	pacts     pactLedger
	audit     *repositories.AuditRepo
	publisher events.Publisher
	rdb       *redis.Client
	log       *zap.Logger
}

// poll scans one block window past the cursor and replays every escrow
// event through the same guarded ledger writes the API uses. Logs are
// idempotent per (tx,index), so rescans after a crash are harmless.
func (x *indexer) poll(ctx context.Context) error {
	head, err := x.chain.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}
	if head < confirmationDepth {
		return nil
	}
	safeHead := head - confirmationDepth

	from := x.loadCursor(ctx)
	if from == 0 {
		from = x.cfg.IndexerStartBlock
	}
	if from > safeHead {
		return nil
	}

	to := from + x.cfg.IndexerBatchBlocks
	if to > safeHead {
		to = safeHead
	}

	logs, err := x.chain.FilterPactLogs(ctx, from, to)
	if err != nil {
		return fmt.Errorf("filter logs [%d,%d]: %w", from, to, err)
	}

	for _, lg := range logs {
		x.processLog(ctx, lg)
	}

	x.saveCursor(ctx, to+1)
	return nil
}

func (x *indexer) processLog(ctx context.Context, lg types.Log) {
	event, pactHash, ok := x.chain.DecodeLog(lg)
	if !ok {
		return
	}

	logKey := fmt.Sprintf("%s%s:%d", redisProcessed, lg.TxHash.Hex(), lg.Index)
	if x.rdb.Exists(ctx, logKey).Val() > 0 {
		return
	}

	pact, err := x.pacts.GetByOnchainID(ctx, pactHash.Hex())
	if err != nil {
		// Proposed against our contract but unknown to the ledger; leave
		// unmarked so a later rescan can retry once the record exists.
		x.log.Debug("no pact for on-chain id",
			zap.String("onchain_id", pactHash.Hex()),
			zap.String("event", event),
		)
		return
	}

	applied, err := x.applyEvent(ctx, event, pact, lg)
	if err != nil {
		x.log.Error("apply event failed",
			zap.String("pact_id", pact.ID.String()),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	if applied {
		x.log.Info("ledger repaired from event",
			zap.String("pact_id", pact.ID.String()),
			zap.String("event", event),
			zap.String("tx", lg.TxHash.Hex()),
		)
		x.auditLog(ctx, pact.ID, event, lg)
		_ = x.publisher.Publish(ctx, events.StreamPacts, events.Event{
			Type: events.EventPactRepaired,
			Payload: map[string]any{
				"pact_id": pact.ID.String(),
				"event":   event,
				"tx_hash": lg.TxHash.Hex(),
			},
		})
	}

	x.rdb.Set(ctx, logKey, event, processedTTL)
}

// applyEvent maps one contract event to its ledger repair. Zero rows
// means the interactive path already committed this transition.
//
// The cycling states (a revision sends the pact back to active, a
// resubmission back to pending_confirmation) cannot be repaired from the
// off-chain status alone: a catch-up scan can find a log the interactive
// path already applied in a round the pact has since left. Those two
// events are therefore checked against the contract's current record,
// and the revision counter is written as the absolute value the log
// carries, never an increment.
func (x *indexer) applyEvent(ctx context.Context, event string, pact *models.Pact, lg types.Log) (bool, error) {
	switch event {
	case chain.EventPactProposed:
		// Proposals originate off-chain; nothing to repair.
		return false, nil
	case chain.EventPactAccepted:
		return x.pacts.RepairAccepted(ctx, pact.ID, lg.TxHash.Hex())
	case chain.EventPactWorkSubmitted:
		rec, err := x.record(ctx, pact)
		if err != nil {
			return false, err
		}
		if rec.Status != chain.OnChainPendingConfirmation {
			// Superseded: the contract moved past this submission and the
			// later events carry the current state.
			return false, nil
		}
		return x.pacts.RepairWorkSubmitted(ctx, pact.ID)
	case chain.EventPactRevisionRequested:
		count, err := x.chain.RevisionCount(lg)
		if err != nil {
			return false, fmt.Errorf("decode revision count: %w", err)
		}
		rec, err := x.record(ctx, pact)
		if err != nil {
			return false, err
		}
		if rec.RejectionCount != count {
			// Not the latest revision; the log for the current count will
			// settle the record.
			return false, nil
		}
		target := ""
		switch rec.Status {
		case chain.OnChainActive:
			target = models.PactStatusActive
		case chain.OnChainFailed:
			target = models.PactStatusFailed
		}
		return x.pacts.RepairRevision(ctx, pact.ID, int(count), target)
	case chain.EventPactResolved:
		status, err := x.chain.ResolvedStatus(lg)
		if err != nil {
			return false, fmt.Errorf("decode resolution: %w", err)
		}
		switch status {
		case chain.OnChainCompleted:
			return x.pacts.RepairResolved(ctx, pact.ID, models.PactStatusCompleted)
		case chain.OnChainFailed:
			return x.pacts.RepairResolved(ctx, pact.ID, models.PactStatusFailed)
		default:
			return false, fmt.Errorf("unexpected resolved status %s", status)
		}
	default:
		return false, nil
	}
}

func (x *indexer) record(ctx context.Context, pact *models.Pact) (*chain.OnChainPact, error) {
	rec, err := x.chain.PactRecord(ctx, [32]byte(common.HexToHash(pact.OnchainID)))
	if err != nil {
		return nil, fmt.Errorf("read on-chain record: %w", err)
	}
	return rec, nil
}

func (x *indexer) auditLog(ctx context.Context, pactID uuid.UUID, event string, lg types.Log) {
	err := x.audit.Log(ctx, models.AuditLog{
		ActorType:  "indexer",
		Action:     "pact_repaired",
		EntityType: "pact",
		EntityID:   &pactID,
		Meta: map[string]any{
			"event":   event,
			"tx_hash": lg.TxHash.Hex(),
			"block":   lg.BlockNumber,
		},
	})
	if err != nil {
		x.log.Warn("audit log write failed", zap.Error(err))
	}
}

func (x *indexer) loadCursor(ctx context.Context) uint64 {
	val, err := x.rdb.Get(ctx, redisCursorBlock).Result()
	if err != nil || val == "" {
		return 0
	}
	block, _ := strconv.ParseUint(val, 10, 64)
	return block
}

func (x *indexer) saveCursor(ctx context.Context, block uint64) {
	x.rdb.Set(ctx, redisCursorBlock, strconv.FormatUint(block, 10), 0)
}
