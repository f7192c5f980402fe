package main

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/chain"
	"github.com/pactify/backend/internal/models"
)

// fakeLedger reproduces the repair guards of PactRepo in memory: status
// preconditions for the one-way transitions, and the absolute-count
// guard for revisions.
type fakeLedger struct {
	mu   sync.Mutex
	pact *models.Pact
}

func (l *fakeLedger) GetByOnchainID(_ context.Context, onchainID string) (*models.Pact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := *l.pact
	return &cp, nil
}

func (l *fakeLedger) RepairAccepted(_ context.Context, _ uuid.UUID, txHash string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pact.Status != models.PactStatusPending {
		return false, nil
	}
	l.pact.Status = models.PactStatusActive
	l.pact.AcceptanceTxHash = &txHash
	return true, nil
}

func (l *fakeLedger) RepairWorkSubmitted(_ context.Context, _ uuid.UUID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pact.Status != models.PactStatusActive {
		return false, nil
	}
	l.pact.Status = models.PactStatusPendingConfirmation
	return true, nil
}

func (l *fakeLedger) RepairRevision(_ context.Context, _ uuid.UUID, count int, status string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pact.RejectionCount >= count {
		return false, nil
	}
	switch l.pact.Status {
	case models.PactStatusPending, models.PactStatusActive, models.PactStatusPendingConfirmation:
	default:
		return false, nil
	}
	l.pact.RejectionCount = count
	if status != "" {
		l.pact.Status = status
	}
	return true, nil
}

func (l *fakeLedger) RepairResolved(_ context.Context, _ uuid.UUID, outcome string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.pact.Status {
	case models.PactStatusPending, models.PactStatusActive, models.PactStatusPendingConfirmation:
	default:
		return false, nil
	}
	l.pact.Status = outcome
	return true, nil
}

// fakeEscrow scripts the contract's current record; event payloads ride
// in the first data byte.
type fakeEscrow struct {
	record *chain.OnChainPact
}

func (e *fakeEscrow) LatestBlock(context.Context) (uint64, error) { return 0, nil }

func (e *fakeEscrow) FilterPactLogs(context.Context, uint64, uint64) ([]types.Log, error) {
	return nil, nil
}

func (e *fakeEscrow) DecodeLog(types.Log) (string, common.Hash, bool) {
	return "", common.Hash{}, false
}

func (e *fakeEscrow) ResolvedStatus(lg types.Log) (chain.OnChainStatus, error) {
	return chain.OnChainStatus(lg.Data[0]), nil
}

func (e *fakeEscrow) RevisionCount(lg types.Log) (uint8, error) {
	return lg.Data[0], nil
}

func (e *fakeEscrow) PactRecord(context.Context, [32]byte) (*chain.OnChainPact, error) {
	return e.record, nil
}

func replayFixture(status string, count int, record *chain.OnChainPact) (*indexer, *fakeLedger) {
	ledger := &fakeLedger{pact: &models.Pact{
		ID:             uuid.New(),
		CreatorID:      uuid.New(),
		PartnerID:      uuid.New(),
		Status:         status,
		RejectionCount: count,
	}}
	idx := &indexer{
		chain: &fakeEscrow{record: record},
		pacts: ledger,
		log:   zap.NewNop(),
	}
	return idx, ledger
}

// A revision the interactive path already applied must not be counted
// again when the catch-up scan reaches its log, even though the pact has
// cycled back into pending_confirmation by then.
func TestReplayedRevisionLogIsNotCountedTwice(t *testing.T) {
	idx, ledger := replayFixture(models.PactStatusPendingConfirmation, 1, &chain.OnChainPact{
		Creator:        common.HexToAddress("0xcc"),
		Status:         chain.OnChainPendingConfirmation,
		RejectionCount: 1,
	})

	applied, err := idx.applyEvent(context.Background(), chain.EventPactRevisionRequested,
		ledger.pact, types.Log{Data: []byte{1}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied {
		t.Fatal("replayed revision log must be a no-op")
	}
	if ledger.pact.RejectionCount != 1 {
		t.Fatalf("rejection count = %d, want 1", ledger.pact.RejectionCount)
	}
	if ledger.pact.Status != models.PactStatusPendingConfirmation {
		t.Fatalf("status = %s, want pending_confirmation", ledger.pact.Status)
	}
}

// A revision the ledger genuinely missed is written as the contract's
// absolute counter with the status the record shows now.
func TestMissedRevisionIsRepaired(t *testing.T) {
	idx, ledger := replayFixture(models.PactStatusPendingConfirmation, 0, &chain.OnChainPact{
		Creator:        common.HexToAddress("0xcc"),
		Status:         chain.OnChainActive,
		RejectionCount: 1,
	})

	applied, err := idx.applyEvent(context.Background(), chain.EventPactRevisionRequested,
		ledger.pact, types.Log{Data: []byte{1}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !applied {
		t.Fatal("expected a repair")
	}
	if ledger.pact.RejectionCount != 1 {
		t.Fatalf("rejection count = %d, want 1", ledger.pact.RejectionCount)
	}
	if ledger.pact.Status != models.PactStatusActive {
		t.Fatalf("status = %s, want active", ledger.pact.Status)
	}
}

// A redundant revision log from an earlier round is skipped outright:
// only the log matching the contract's current counter settles the row.
func TestSupersededRevisionLogIsSkipped(t *testing.T) {
	idx, ledger := replayFixture(models.PactStatusActive, 0, &chain.OnChainPact{
		Creator:        common.HexToAddress("0xcc"),
		Status:         chain.OnChainActive,
		RejectionCount: 2,
	})

	applied, err := idx.applyEvent(context.Background(), chain.EventPactRevisionRequested,
		ledger.pact, types.Log{Data: []byte{1}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied {
		t.Fatal("superseded log must not write")
	}
	if ledger.pact.RejectionCount != 0 {
		t.Fatalf("rejection count = %d, want 0 until the current log lands", ledger.pact.RejectionCount)
	}
}

// A work-submission log from a round the contract has left behind must
// not push an active pact into pending_confirmation.
func TestStaleWorkSubmittedLogIsSkipped(t *testing.T) {
	idx, ledger := replayFixture(models.PactStatusActive, 1, &chain.OnChainPact{
		Creator:        common.HexToAddress("0xcc"),
		Status:         chain.OnChainActive,
		RejectionCount: 1,
	})

	applied, err := idx.applyEvent(context.Background(), chain.EventPactWorkSubmitted,
		ledger.pact, types.Log{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied {
		t.Fatal("stale work-submission log must be a no-op")
	}
	if ledger.pact.Status != models.PactStatusActive {
		t.Fatalf("status = %s, want active", ledger.pact.Status)
	}
}

// The happy replay path still works: a submission the ledger missed is
// committed when the contract confirms that state is current.
func TestMissedWorkSubmissionIsRepaired(t *testing.T) {
	idx, ledger := replayFixture(models.PactStatusActive, 0, &chain.OnChainPact{
		Creator:        common.HexToAddress("0xcc"),
		Status:         chain.OnChainPendingConfirmation,
		RejectionCount: 0,
	})

	applied, err := idx.applyEvent(context.Background(), chain.EventPactWorkSubmitted,
		ledger.pact, types.Log{})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !applied {
		t.Fatal("expected a repair")
	}
	if ledger.pact.Status != models.PactStatusPendingConfirmation {
		t.Fatalf("status = %s, want pending_confirmation", ledger.pact.Status)
	}
}
