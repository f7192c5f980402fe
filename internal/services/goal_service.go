package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/events"
	"github.com/pactify/backend/internal/models"
)

// GoalStore mirrors *repositories.GoalRepo.
type GoalStore interface {
	Create(ctx context.Context, g *models.Goal) error
	GetForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Goal, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Goal, error)
	MarkStaked(ctx context.Context, id, ownerID uuid.UUID, stakeWei, txHash, forfeitAddress string) (bool, error)
	Resolve(ctx context.Context, id, ownerID uuid.UUID, outcome string) (bool, error)
	FailOverdue(ctx context.Context) ([]uuid.UUID, error)
}

// StakeVerifier confirms a plain transfer. Goal stakes go straight to a
// forfeit address, so unlike pacts there is no contract event to match,
// only a successful receipt.
type StakeVerifier interface {
	WaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// GoalService manages single-party commitments. Resolution is
// self-reported; the stake, when present, is the honesty mechanism.
type GoalService struct {
	store     GoalStore
	verifier  StakeVerifier
	audit     AuditLogger
	publisher events.Publisher
	log       *zap.Logger
}

func NewGoalService(store GoalStore, verifier StakeVerifier, audit AuditLogger, publisher events.Publisher, log *zap.Logger) *GoalService {
	return &GoalService{store: store, verifier: verifier, audit: audit, publisher: publisher, log: log}
}

type CreateGoalInput struct {
	Title       string
	Description *string
	Deadline    *time.Time
}

func (s *GoalService) Create(ctx context.Context, ownerID uuid.UUID, in CreateGoalInput) (*models.Goal, error) {
	if len(in.Title) < 3 || len(in.Title) > 200 {
		return nil, fmt.Errorf("%w: title must be 3-200 characters", ErrInvalidInput)
	}
	if in.Description != nil && len(*in.Description) > 1000 {
		return nil, fmt.Errorf("%w: description too long", ErrInvalidInput)
	}
	if in.Deadline != nil && in.Deadline.Before(time.Now()) {
		return nil, fmt.Errorf("%w: deadline must be in the future", ErrInvalidInput)
	}

	g := &models.Goal{
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Deadline:    in.Deadline,
		Status:      models.GoalStatusActive,
	}
	if err := s.store.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("persist goal: %w", err)
	}

	s.auditLog(ctx, &ownerID, "user", "goal_created", g.ID, nil)
	return g, nil
}

// Stake records a confirmed stake transfer against an active goal. A goal
// can be staked at most once.
func (s *GoalService) Stake(ctx context.Context, goalID, ownerID uuid.UUID, stakeWei, txHash, forfeitAddress string) (*models.Goal, error) {
	g, err := s.getOwned(ctx, goalID, ownerID)
	if err != nil {
		return nil, err
	}
	if g.IsStaked() {
		if g.StakeTxHash != nil && strings.EqualFold(*g.StakeTxHash, txHash) {
			return g, nil
		}
		return nil, fmt.Errorf("%w: goal is already staked", ErrPrecondition)
	}
	if g.Status != models.GoalStatusActive {
		return nil, fmt.Errorf("%w: goal is %s, not active", ErrPrecondition, g.Status)
	}
	if n, ok := new(big.Int).SetString(stakeWei, 10); !ok || n.Sign() <= 0 {
		return nil, fmt.Errorf("%w: stake must be a positive integer amount", ErrInvalidInput)
	}
	if !common.IsHexAddress(forfeitAddress) {
		return nil, fmt.Errorf("%w: invalid forfeit address", ErrInvalidInput)
	}

	rcpt, err := s.verifier.WaitReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, fmt.Errorf("verify stake transfer: %w", err)
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: stake transaction reverted", ErrPrecondition)
	}

	ok, err := s.store.MarkStaked(ctx, goalID, ownerID, stakeWei, txHash, common.HexToAddress(forfeitAddress).Hex())
	if err != nil {
		return nil, fmt.Errorf("record stake: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: goal is already staked", ErrPrecondition)
	}

	s.auditLog(ctx, &ownerID, "user", "goal_staked", goalID, map[string]any{
		"stake_wei": stakeWei,
		"tx_hash":   txHash,
	})

	return s.store.GetForOwner(ctx, goalID, ownerID)
}

func (s *GoalService) Complete(ctx context.Context, goalID, ownerID uuid.UUID) (*models.Goal, error) {
	return s.resolve(ctx, goalID, ownerID, models.GoalStatusCompleted, "goal_completed")
}

func (s *GoalService) Fail(ctx context.Context, goalID, ownerID uuid.UUID) (*models.Goal, error) {
	return s.resolve(ctx, goalID, ownerID, models.GoalStatusFailed, "goal_failed")
}

func (s *GoalService) resolve(ctx context.Context, goalID, ownerID uuid.UUID, outcome, action string) (*models.Goal, error) {
	g, err := s.getOwned(ctx, goalID, ownerID)
	if err != nil {
		return nil, err
	}
	if g.Status == outcome {
		return g, nil
	}
	if g.Status != models.GoalStatusActive {
		return nil, fmt.Errorf("%w: goal is %s, not active", ErrPrecondition, g.Status)
	}

	ok, err := s.store.Resolve(ctx, goalID, ownerID, outcome)
	if err != nil {
		return nil, fmt.Errorf("resolve goal: %w", err)
	}
	if !ok {
		refreshed, gerr := s.getOwned(ctx, goalID, ownerID)
		if gerr != nil {
			return nil, gerr
		}
		if refreshed.Status == outcome {
			return refreshed, nil
		}
		return nil, fmt.Errorf("%w: goal is %s", ErrPrecondition, refreshed.Status)
	}

	s.auditLog(ctx, &ownerID, "user", action, goalID, nil)
	s.publishEvent(ctx, goalID, outcome)

	return s.store.GetForOwner(ctx, goalID, ownerID)
}

func (s *GoalService) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Goal, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListByOwner(ctx, ownerID, limit, offset)
}

func (s *GoalService) Get(ctx context.Context, goalID, ownerID uuid.UUID) (*models.Goal, error) {
	return s.getOwned(ctx, goalID, ownerID)
}

// SweepOverdue fails every active goal whose deadline has passed.
func (s *GoalService) SweepOverdue(ctx context.Context) (int, error) {
	ids, err := s.store.FailOverdue(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		s.auditLog(ctx, nil, "system", "goal_deadline_failed", id, nil)
		s.publishEvent(ctx, id, models.GoalStatusFailed)
	}
	return len(ids), nil
}

func (s *GoalService) getOwned(ctx context.Context, goalID, ownerID uuid.UUID) (*models.Goal, error) {
	g, err := s.store.GetForOwner(ctx, goalID, ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: goal not found", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GoalService) auditLog(ctx context.Context, actorID *uuid.UUID, actorType, action string, goalID uuid.UUID, meta map[string]any) {
	if err := s.audit.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      action,
		EntityType:  "goal",
		EntityID:    &goalID,
		Meta:        meta,
	}); err != nil {
		s.log.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *GoalService) publishEvent(ctx context.Context, goalID uuid.UUID, status string) {
	err := s.publisher.Publish(ctx, events.StreamGoals, events.Event{
		Type: events.EventGoalStatusChanged,
		Payload: map[string]any{
			"goal_id": goalID.String(),
			"status":  status,
		},
	})
	if err != nil {
		s.log.Debug("event publish failed", zap.Error(err))
	}
}
