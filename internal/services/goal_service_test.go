package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/models"
)

type fakeGoalStore struct {
	mu    sync.Mutex
	goals map[uuid.UUID]*models.Goal
}

func newFakeGoalStore() *fakeGoalStore {
	return &fakeGoalStore{goals: make(map[uuid.UUID]*models.Goal)}
}

func (s *fakeGoalStore) Create(_ context.Context, g *models.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = uuid.New()
	now := time.Now()
	g.CreatedAt, g.UpdatedAt = now, now
	cp := *g
	s.goals[g.ID] = &cp
	return nil
}

func (s *fakeGoalStore) GetForOwner(_ context.Context, id, ownerID uuid.UUID) (*models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.OwnerID != ownerID {
		return nil, pgx.ErrNoRows
	}
	cp := *g
	return &cp, nil
}

func (s *fakeGoalStore) ListByOwner(_ context.Context, ownerID uuid.UUID, _, _ int) ([]models.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Goal
	for _, g := range s.goals {
		if g.OwnerID == ownerID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (s *fakeGoalStore) MarkStaked(_ context.Context, id, ownerID uuid.UUID, stakeWei, txHash, forfeitAddress string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.OwnerID != ownerID || g.Status != models.GoalStatusActive || g.StakeTxHash != nil {
		return false, nil
	}
	g.StakeWei, g.StakeTxHash, g.ForfeitAddress = &stakeWei, &txHash, &forfeitAddress
	return true, nil
}

func (s *fakeGoalStore) Resolve(_ context.Context, id, ownerID uuid.UUID, outcome string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.OwnerID != ownerID || g.Status != models.GoalStatusActive {
		return false, nil
	}
	g.Status = outcome
	return true, nil
}

func (s *fakeGoalStore) FailOverdue(_ context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	now := time.Now()
	for _, g := range s.goals {
		if g.Status == models.GoalStatusActive && g.Deadline != nil && g.Deadline.Before(now) {
			g.Status = models.GoalStatusFailed
			ids = append(ids, g.ID)
		}
	}
	return ids, nil
}

type fakeReceipts struct {
	receipts map[common.Hash]*types.Receipt
}

func (f *fakeReceipts) WaitReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	r, ok := f.receipts[txHash]
	if !ok {
		return nil, errors.New("timed out waiting for receipt")
	}
	return r, nil
}

func newGoalService(store *fakeGoalStore, receipts *fakeReceipts) *GoalService {
	return NewGoalService(store, receipts, &fakeAudit{}, &fakePublisher{}, zap.NewNop())
}

func TestGoalStakeRequiresSuccessfulReceipt(t *testing.T) {
	store := newFakeGoalStore()
	receipts := &fakeReceipts{receipts: map[common.Hash]*types.Receipt{}}
	svc := newGoalService(store, receipts)

	owner := uuid.New()
	goal, err := svc.Create(context.Background(), owner, CreateGoalInput{Title: "run a marathon"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	forfeit := "0x00000000000000000000000000000000000000cc"

	// Unknown tx: verification fails, nothing recorded.
	if _, err := svc.Stake(context.Background(), goal.ID, owner, "100", "0x01", forfeit); err == nil {
		t.Fatal("expected stake verification failure")
	}

	// Reverted tx is refused.
	receipts.receipts[common.HexToHash("0x02")] = &types.Receipt{Status: types.ReceiptStatusFailed}
	if _, err := svc.Stake(context.Background(), goal.ID, owner, "100", "0x02", forfeit); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition for reverted tx, got %v", err)
	}

	receipts.receipts[common.HexToHash("0x03")] = &types.Receipt{Status: types.ReceiptStatusSuccessful}
	staked, err := svc.Stake(context.Background(), goal.ID, owner, "100", "0x03", forfeit)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	if !staked.IsStaked() {
		t.Fatal("goal should be staked")
	}

	// Duplicate confirmation of the same tx reports success.
	if _, err := svc.Stake(context.Background(), goal.ID, owner, "100", "0x03", forfeit); err != nil {
		t.Fatalf("duplicate stake: %v", err)
	}

	// A different tx against a staked goal is refused.
	receipts.receipts[common.HexToHash("0x04")] = &types.Receipt{Status: types.ReceiptStatusSuccessful}
	if _, err := svc.Stake(context.Background(), goal.ID, owner, "100", "0x04", forfeit); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition for second stake, got %v", err)
	}
}

func TestGoalResolveIsIdempotent(t *testing.T) {
	store := newFakeGoalStore()
	svc := newGoalService(store, &fakeReceipts{})

	owner := uuid.New()
	goal, err := svc.Create(context.Background(), owner, CreateGoalInput{Title: "read ten books"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done, err := svc.Complete(context.Background(), goal.ID, owner)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != models.GoalStatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}

	// Duplicate completion reports the settled state.
	if _, err := svc.Complete(context.Background(), goal.ID, owner); err != nil {
		t.Fatalf("duplicate complete: %v", err)
	}

	// Flipping the outcome is refused.
	if _, err := svc.Fail(context.Background(), goal.ID, owner); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
}

func TestGoalDeadlineValidation(t *testing.T) {
	store := newFakeGoalStore()
	svc := newGoalService(store, &fakeReceipts{})

	past := time.Now().Add(-time.Hour)
	_, err := svc.Create(context.Background(), uuid.New(), CreateGoalInput{Title: "time travel", Deadline: &past})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for past deadline, got %v", err)
	}
}

func TestGoalSweepOverdue(t *testing.T) {
	store := newFakeGoalStore()
	svc := newGoalService(store, &fakeReceipts{})

	owner := uuid.New()
	soon := time.Now().Add(50 * time.Millisecond)
	goal, err := svc.Create(context.Background(), owner, CreateGoalInput{Title: "beat the clock", Deadline: &soon})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	failed, err := svc.SweepOverdue(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}

	got, err := svc.Get(context.Background(), goal.ID, owner)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.GoalStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
}

func TestGoalOwnershipScoping(t *testing.T) {
	store := newFakeGoalStore()
	svc := newGoalService(store, &fakeReceipts{})

	owner := uuid.New()
	goal, err := svc.Create(context.Background(), owner, CreateGoalInput{Title: "private goal"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(context.Background(), goal.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stranger, got %v", err)
	}
	if _, err := svc.Complete(context.Background(), goal.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stranger resolve, got %v", err)
	}
}
