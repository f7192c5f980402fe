package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/chain"
	"github.com/pactify/backend/internal/events"
	"github.com/pactify/backend/internal/models"
	"github.com/pactify/backend/internal/repositories"
)

// --- fakes ---

// fakePactStore reproduces the repository's conditional-write semantics
// in memory: every mutation checks its precondition and reports whether
// a row was written.
type fakePactStore struct {
	mu    sync.Mutex
	pacts map[uuid.UUID]*models.Pact
}

func newFakePactStore() *fakePactStore {
	return &fakePactStore{pacts: make(map[uuid.UUID]*models.Pact)}
}

func (s *fakePactStore) Create(_ context.Context, p *models.Pact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	s.pacts[p.ID] = &cp
	return nil
}

func (s *fakePactStore) Get(_ context.Context, id uuid.UUID) (*models.Pact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (s *fakePactStore) GetForUser(_ context.Context, id, userID uuid.UUID) (*models.Pact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok || !p.IsMember(userID) {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (s *fakePactStore) List(_ context.Context, f repositories.PactFilter) ([]models.Pact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Pact
	for _, p := range s.pacts {
		if p.IsMember(f.UserID) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakePactStore) MarkAccepted(_ context.Context, id, partnerID uuid.UUID, txHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok || p.PartnerID != partnerID || p.Status != models.PactStatusPending {
		return false, nil
	}
	p.Status = models.PactStatusActive
	p.AcceptanceTxHash = &txHash
	return true, nil
}

func (s *fakePactStore) MarkRejected(_ context.Context, id, partnerID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok || p.PartnerID != partnerID || p.Status != models.PactStatusPending {
		return false, nil
	}
	p.Status = models.PactStatusRejected
	return true, nil
}

func (s *fakePactStore) MarkRejectionSeen(_ context.Context, id, creatorID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok || p.CreatorID != creatorID || p.Status != models.PactStatusRejected {
		return false, nil
	}
	p.Status = models.PactStatusRejectedSeen
	return true, nil
}

func (s *fakePactStore) SetSubmission(_ context.Context, id, partnerID uuid.UUID, filePath, fileName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok || p.PartnerID != partnerID || p.Status != models.PactStatusActive {
		return false, nil
	}
	if p.Submission != nil && p.Submission.ViewedBy != nil {
		return false, nil
	}
	p.Submission = &models.PactSubmission{FilePath: filePath, FileName: fileName, SubmittedAt: time.Now()}
	return true, nil
}

func (s *fakePactStore) MarkWorkSubmitted(_ context.Context, id, partnerID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok || p.PartnerID != partnerID || p.Status != models.PactStatusActive || p.Submission == nil {
		return false, nil
	}
	p.Status = models.PactStatusPendingConfirmation
	return true, nil
}

func (s *fakePactStore) MarkCompleted(_ context.Context, id, creatorID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok || p.CreatorID != creatorID || p.Status != models.PactStatusPendingConfirmation {
		return false, nil
	}
	p.Status = models.PactStatusCompleted
	return true, nil
}

func (s *fakePactStore) ApplyRevision(_ context.Context, id, creatorID uuid.UUID) (int, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok || p.CreatorID != creatorID || p.Status != models.PactStatusPendingConfirmation {
		return 0, "", pgx.ErrNoRows
	}
	p.RejectionCount++
	if p.RejectionCount >= models.MaxRejections {
		p.Status = models.PactStatusFailed
	} else {
		p.Status = models.PactStatusActive
	}
	return p.RejectionCount, p.Status, nil
}

func (s *fakePactStore) ClaimSubmissionView(_ context.Context, id, creatorID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok || p.CreatorID != creatorID || p.Submission == nil || p.Submission.ViewedBy != nil {
		return false, nil
	}
	p.Submission.ViewedBy = &creatorID
	return true, nil
}

func (s *fakePactStore) RepairAccepted(_ context.Context, id uuid.UUID, txHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok || p.Status != models.PactStatusPending {
		return false, nil
	}
	p.Status = models.PactStatusActive
	p.AcceptanceTxHash = &txHash
	return true, nil
}

func (s *fakePactStore) RepairWorkSubmitted(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok || p.Status != models.PactStatusActive {
		return false, nil
	}
	p.Status = models.PactStatusPendingConfirmation
	return true, nil
}

func (s *fakePactStore) RepairRevision(_ context.Context, id uuid.UUID, count int, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok || p.RejectionCount >= count {
		return false, nil
	}
	switch p.Status {
	case models.PactStatusPending, models.PactStatusActive, models.PactStatusPendingConfirmation:
	default:
		return false, nil
	}
	p.RejectionCount = count
	if status != "" {
		p.Status = status
	}
	return true, nil
}

func (s *fakePactStore) RepairResolved(_ context.Context, id uuid.UUID, outcome string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pacts[id]
	if !ok || models.IsTerminalPactStatus(p.Status) || p.Status == models.PactStatusRejected {
		return false, nil
	}
	p.Status = outcome
	return true, nil
}

func (s *fakePactStore) ListStale(_ context.Context, _, _ int) ([]models.Pact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Pact
	for _, p := range s.pacts {
		switch p.Status {
		case models.PactStatusPending, models.PactStatusActive, models.PactStatusPendingConfirmation:
			out = append(out, *p)
		}
	}
	return out, nil
}

// fakeChain verifies events against a scripted set of confirmed
// (txHash, event) pairs for a given pact hash.
type fakeChain struct {
	mu        sync.Mutex
	confirmed map[string]string // txHash -> event name
	record    *chain.OnChainPact
	proofs    map[string]string // event -> txHash, for FindPactEvent
	verified  int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		confirmed: make(map[string]string),
		proofs:    make(map[string]string),
	}
}

func (f *fakeChain) confirm(txHash, event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed[txHash] = event
	f.proofs[event] = txHash
}

func (f *fakeChain) VerifyPactEvent(_ context.Context, txHash, event string, _ [32]byte) (*chain.EventProof, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified++
	got, ok := f.confirmed[txHash]
	if !ok {
		return nil, chain.ErrTxFailed
	}
	if got != event {
		return nil, chain.ErrEventMismatch
	}
	return &chain.EventProof{TxHash: common.HexToHash(txHash), Event: event}, nil
}

func (f *fakeChain) PactRecord(_ context.Context, _ [32]byte) (*chain.OnChainPact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.record == nil {
		return &chain.OnChainPact{}, nil
	}
	return f.record, nil
}

func (f *fakeChain) FindPactEvent(_ context.Context, event string, _ [32]byte, _ uint64) (*chain.EventProof, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.proofs[event]
	if !ok {
		return nil, fmt.Errorf("no %s event found", event)
	}
	return &chain.EventProof{TxHash: common.HexToHash(tx), Event: event}, nil
}

type fakeWallets struct {
	addresses map[uuid.UUID]string
	err       error
}

func (f *fakeWallets) GetActiveWallet(_ context.Context, userID uuid.UUID) (*models.UserWallet, error) {
	if f.err != nil {
		return nil, f.err
	}
	addr, ok := f.addresses[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &models.UserWallet{UserID: userID, Address: addr, Verified: true, IsActive: true}, nil
}

type fakeFiles struct {
	saved   map[string][]byte
	openErr error
}

func (f *fakeFiles) Save(pactID, fileName string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	path := pactID + "/" + fileName
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[path] = data
	return path, nil
}

func (f *fakeFiles) Open(path string) (io.ReadCloser, string, error) {
	if f.openErr != nil {
		return nil, "", f.openErr
	}
	data, ok := f.saved[path]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), "application/octet-stream", nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (f *fakeAudit) Log(_ context.Context, entry models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, _ string, event events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

// escrowCreator marks a scripted on-chain record as proposed: the
// contract reports a zero creator address for ids it has never seen.
var escrowCreator = common.HexToAddress("0x00000000000000000000000000000000000000cc")

// --- harness ---

type pactFixture struct {
	svc     *PactService
	store   *fakePactStore
	chain   *fakeChain
	wallets *fakeWallets
	files   *fakeFiles
	audit   *fakeAudit

	creator uuid.UUID
	partner uuid.UUID
}

func newPactFixture(t *testing.T) *pactFixture {
	t.Helper()
	f := &pactFixture{
		store:   newFakePactStore(),
		chain:   newFakeChain(),
		files:   &fakeFiles{},
		audit:   &fakeAudit{},
		creator: uuid.New(),
		partner: uuid.New(),
	}
	f.wallets = &fakeWallets{addresses: map[uuid.UUID]string{
		f.partner: "0x00000000000000000000000000000000000000aa",
		f.creator: "0x00000000000000000000000000000000000000bb",
	}}
	f.svc = NewPactService(f.store, f.wallets, f.chain, f.files, f.audit, &fakePublisher{}, zap.NewNop())
	return f
}

func (f *pactFixture) propose(t *testing.T) *models.Pact {
	t.Helper()
	pact, addr, err := f.svc.Propose(context.Background(), f.creator, ProposePactInput{
		PartnerID: f.partner,
		Title:     "ship the landing page",
		StakeWei:  "1000000000000000000",
	})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if addr == "" {
		t.Fatal("expected partner address")
	}
	return pact
}

func (f *pactFixture) activate(t *testing.T) *models.Pact {
	t.Helper()
	pact := f.propose(t)
	f.chain.confirm("0xacc", chain.EventPactAccepted)
	pact, err := f.svc.Accept(context.Background(), pact.ID, f.partner, "0xacc")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	return pact
}

func (f *pactFixture) toPendingConfirmation(t *testing.T) *models.Pact {
	t.Helper()
	pact := f.activate(t)
	if _, err := f.svc.SubmitWork(context.Background(), pact.ID, f.partner, "work.png", strings.NewReader("png bytes")); err != nil {
		t.Fatalf("submit work: %v", err)
	}
	f.chain.confirm("0xsig", chain.EventPactWorkSubmitted)
	pact, err := f.svc.SignalCompletion(context.Background(), pact.ID, f.partner, "0xsig")
	if err != nil {
		t.Fatalf("signal completion: %v", err)
	}
	return pact
}

// --- tests ---

func TestProposeRejectsSelfPact(t *testing.T) {
	f := newPactFixture(t)
	_, _, err := f.svc.Propose(context.Background(), f.creator, ProposePactInput{
		PartnerID: f.creator,
		Title:     "solo pact",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestProposeRequiresPartnerWallet(t *testing.T) {
	f := newPactFixture(t)
	stranger := uuid.New()
	_, _, err := f.svc.Propose(context.Background(), f.creator, ProposePactInput{
		PartnerID: stranger,
		Title:     "no wallet pact",
	})
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
	if pacts, _ := f.store.List(context.Background(), repositories.PactFilter{UserID: f.creator}); len(pacts) != 0 {
		t.Fatal("no record should be persisted when the partner wallet is missing")
	}
}

func TestProposeWalletLookupOutage(t *testing.T) {
	f := newPactFixture(t)
	f.wallets.err = errors.New("dial tcp: connection refused")
	_, _, err := f.svc.Propose(context.Background(), f.creator, ProposePactInput{
		PartnerID: f.partner,
		Title:     "outage pact",
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrPrecondition) {
		t.Fatal("an infrastructure failure must not read as a missing wallet")
	}
}

func TestProposeValidatesStake(t *testing.T) {
	f := newPactFixture(t)
	for _, stake := range []string{"-1", "1.5", "abc"} {
		_, _, err := f.svc.Propose(context.Background(), f.creator, ProposePactInput{
			PartnerID: f.partner,
			Title:     "stake check",
			StakeWei:  stake,
		})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("stake %q: expected ErrInvalidInput, got %v", stake, err)
		}
	}
}

func TestAcceptVerifiesTransaction(t *testing.T) {
	f := newPactFixture(t)
	pact := f.propose(t)

	// Unconfirmed hash must not move the record.
	if _, err := f.svc.Accept(context.Background(), pact.ID, f.partner, "0xbogus"); err == nil {
		t.Fatal("expected verification failure")
	}
	got, _ := f.store.Get(context.Background(), pact.ID)
	if got.Status != models.PactStatusPending {
		t.Fatalf("status = %s, want pending after failed verification", got.Status)
	}

	f.chain.confirm("0xacc", chain.EventPactAccepted)
	accepted, err := f.svc.Accept(context.Background(), pact.ID, f.partner, "0xacc")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != models.PactStatusActive {
		t.Fatalf("status = %s, want active", accepted.Status)
	}
	if accepted.AcceptanceTxHash == nil || *accepted.AcceptanceTxHash != "0xacc" {
		t.Fatal("acceptance tx hash not recorded")
	}
}

func TestAcceptIsIdempotent(t *testing.T) {
	f := newPactFixture(t)
	pact := f.activate(t)

	verifiedBefore := f.chain.verified
	again, err := f.svc.Accept(context.Background(), pact.ID, f.partner, "0xacc")
	if err != nil {
		t.Fatalf("duplicate accept: %v", err)
	}
	if again.Status != models.PactStatusActive {
		t.Fatalf("status = %s, want active", again.Status)
	}
	if f.chain.verified != verifiedBefore {
		t.Fatal("duplicate accept must not re-verify on-chain")
	}
}

func TestAcceptDeniedForCreator(t *testing.T) {
	f := newPactFixture(t)
	pact := f.propose(t)
	if _, err := f.svc.Accept(context.Background(), pact.ID, f.creator, "0xacc"); !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
}

func TestNonMemberSeesNotFound(t *testing.T) {
	f := newPactFixture(t)
	pact := f.propose(t)
	if _, err := f.svc.Get(context.Background(), pact.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stranger, got %v", err)
	}
}

func TestRejectThenDismiss(t *testing.T) {
	f := newPactFixture(t)
	pact := f.propose(t)

	rejected, err := f.svc.Reject(context.Background(), pact.ID, f.partner)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.PactStatusRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}

	// Partner cannot dismiss; only the creator acknowledges.
	if _, err := f.svc.DismissRejected(context.Background(), pact.ID, f.partner); !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}

	seen, err := f.svc.DismissRejected(context.Background(), pact.ID, f.creator)
	if err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if seen.Status != models.PactStatusRejectedSeen {
		t.Fatalf("status = %s, want rejected_seen", seen.Status)
	}

	// Dismiss retry is a no-op success.
	if _, err := f.svc.DismissRejected(context.Background(), pact.ID, f.creator); err != nil {
		t.Fatalf("duplicate dismiss: %v", err)
	}
}

func TestSignalCompletionRequiresSubmission(t *testing.T) {
	f := newPactFixture(t)
	pact := f.activate(t)

	f.chain.confirm("0xsig", chain.EventPactWorkSubmitted)
	if _, err := f.svc.SignalCompletion(context.Background(), pact.ID, f.partner, "0xsig"); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition without submission, got %v", err)
	}
}

func TestConfirmCompletionIsTerminal(t *testing.T) {
	f := newPactFixture(t)
	pact := f.toPendingConfirmation(t)

	f.chain.confirm("0xcfm", chain.EventPactResolved)
	done, err := f.svc.ConfirmCompletion(context.Background(), pact.ID, f.creator, "0xcfm")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if done.Status != models.PactStatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}

	// Terminal: no further transitions.
	f.chain.confirm("0xrev", chain.EventPactRevisionRequested)
	if _, err := f.svc.RequestRevision(context.Background(), pact.ID, f.creator, "0xrev"); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition on completed pact, got %v", err)
	}

	// Confirm retry succeeds without another write.
	if _, err := f.svc.ConfirmCompletion(context.Background(), pact.ID, f.creator, "0xcfm"); err != nil {
		t.Fatalf("duplicate confirm: %v", err)
	}
}

func TestThirdRevisionFailsThePact(t *testing.T) {
	f := newPactFixture(t)
	pact := f.toPendingConfirmation(t)

	for round := 1; round <= models.MaxRejections; round++ {
		tx := fmt.Sprintf("0xrev%d", round)
		f.chain.confirm(tx, chain.EventPactRevisionRequested)

		got, err := f.svc.RequestRevision(context.Background(), pact.ID, f.creator, tx)
		if err != nil {
			t.Fatalf("revision %d: %v", round, err)
		}
		if got.RejectionCount != round {
			t.Fatalf("revision %d: count = %d", round, got.RejectionCount)
		}

		if round < models.MaxRejections {
			if got.Status != models.PactStatusActive {
				t.Fatalf("revision %d: status = %s, want active", round, got.Status)
			}
			// Partner resubmits and signals again.
			if _, err := f.svc.SubmitWork(context.Background(), pact.ID, f.partner, "work.png", strings.NewReader("v2")); err != nil {
				t.Fatalf("resubmit %d: %v", round, err)
			}
			sigTx := fmt.Sprintf("0xsig%d", round)
			f.chain.confirm(sigTx, chain.EventPactWorkSubmitted)
			if _, err := f.svc.SignalCompletion(context.Background(), pact.ID, f.partner, sigTx); err != nil {
				t.Fatalf("resignal %d: %v", round, err)
			}
		} else {
			if got.Status != models.PactStatusFailed {
				t.Fatalf("third revision: status = %s, want failed", got.Status)
			}
		}
	}

	// Retry after the failure commit reports the settled state.
	got, err := f.svc.RequestRevision(context.Background(), pact.ID, f.creator, "0xrev3")
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if got.Status != models.PactStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
}

func TestDownloadSubmissionFirstViewWins(t *testing.T) {
	f := newPactFixture(t)
	pact := f.toPendingConfirmation(t)

	// Partner cannot download their own submission.
	if _, _, _, err := f.svc.DownloadSubmission(context.Background(), pact.ID, f.partner); !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied for partner, got %v", err)
	}

	file, name, _, err := f.svc.DownloadSubmission(context.Background(), pact.ID, f.creator)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer file.Close()
	if name != "work.png" {
		t.Fatalf("file name = %q", name)
	}

	// Second view is refused.
	if _, _, _, err := f.svc.DownloadSubmission(context.Background(), pact.ID, f.creator); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition on second view, got %v", err)
	}
}

func TestDownloadFailureDoesNotBurnView(t *testing.T) {
	f := newPactFixture(t)
	pact := f.toPendingConfirmation(t)

	f.files.openErr = errors.New("read work.png: input/output error")
	if _, _, _, err := f.svc.DownloadSubmission(context.Background(), pact.ID, f.creator); err == nil {
		t.Fatal("expected open failure")
	}

	got, _ := f.store.Get(context.Background(), pact.ID)
	if got.Submission.ViewedBy != nil {
		t.Fatal("a failed download must not claim the single view")
	}

	// Once the file is readable the view proceeds normally.
	f.files.openErr = nil
	file, name, _, err := f.svc.DownloadSubmission(context.Background(), pact.ID, f.creator)
	if err != nil {
		t.Fatalf("download after recovery: %v", err)
	}
	defer file.Close()
	if name != "work.png" {
		t.Fatalf("file name = %q", name)
	}
}

func TestReplacingViewedSubmissionRefused(t *testing.T) {
	f := newPactFixture(t)
	pact := f.toPendingConfirmation(t)

	if _, _, _, err := f.svc.DownloadSubmission(context.Background(), pact.ID, f.creator); err != nil {
		t.Fatalf("download: %v", err)
	}

	// Revision sends the pact back to active, but the viewed submission
	// slot cannot be overwritten.
	f.chain.confirm("0xrev", chain.EventPactRevisionRequested)
	if _, err := f.svc.RequestRevision(context.Background(), pact.ID, f.creator, "0xrev"); err != nil {
		t.Fatalf("revision: %v", err)
	}
	if _, err := f.svc.SubmitWork(context.Background(), pact.ID, f.partner, "v2.png", strings.NewReader("v2")); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition replacing viewed submission, got %v", err)
	}
}

func TestReconcileRepairsMissedAcceptance(t *testing.T) {
	f := newPactFixture(t)
	pact := f.propose(t)

	// The acceptance confirmed on-chain but the ledger write never landed.
	f.chain.confirm("0xacc", chain.EventPactAccepted)
	f.chain.record = &chain.OnChainPact{Creator: escrowCreator, Status: chain.OnChainActive}

	repaired, err := f.svc.Reconcile(context.Background(), pact.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !repaired {
		t.Fatal("expected a repair")
	}

	got, _ := f.store.Get(context.Background(), pact.ID)
	if got.Status != models.PactStatusActive {
		t.Fatalf("status = %s, want active", got.Status)
	}
	if got.AcceptanceTxHash == nil {
		t.Fatal("acceptance tx hash should be recovered from the event log")
	}

	// Second run finds nothing to fix.
	repaired, err = f.svc.Reconcile(context.Background(), pact.ID)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if repaired {
		t.Fatal("reconcile must be idempotent")
	}
}

func TestReconcileRepairsResolution(t *testing.T) {
	f := newPactFixture(t)
	pact := f.toPendingConfirmation(t)

	f.chain.record = &chain.OnChainPact{Creator: escrowCreator, Status: chain.OnChainFailed}
	repaired, err := f.svc.Reconcile(context.Background(), pact.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !repaired {
		t.Fatal("expected a repair")
	}

	got, _ := f.store.Get(context.Background(), pact.ID)
	if got.Status != models.PactStatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
}

func TestReconcileRepairsMissedRevision(t *testing.T) {
	f := newPactFixture(t)
	pact := f.toPendingConfirmation(t)

	// The requestRevision tx confirmed but the ledger write never landed:
	// the contract is back to active with one strike on the counter.
	f.chain.record = &chain.OnChainPact{Creator: escrowCreator, Status: chain.OnChainActive, RejectionCount: 1}

	repaired, err := f.svc.Reconcile(context.Background(), pact.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !repaired {
		t.Fatal("expected a repair")
	}

	got, _ := f.store.Get(context.Background(), pact.ID)
	if got.Status != models.PactStatusActive {
		t.Fatalf("status = %s, want active", got.Status)
	}
	if got.RejectionCount != 1 {
		t.Fatalf("rejection count = %d, want 1", got.RejectionCount)
	}

	// Replaying the same repair must not count the strike twice.
	repaired, err = f.svc.Reconcile(context.Background(), pact.ID)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if repaired {
		t.Fatal("reconcile must be idempotent")
	}
	got, _ = f.store.Get(context.Background(), pact.ID)
	if got.RejectionCount != 1 {
		t.Fatalf("rejection count = %d after replay, want 1", got.RejectionCount)
	}
}

func TestReconcileLeavesHonestRecordAlone(t *testing.T) {
	f := newPactFixture(t)
	pact := f.propose(t)

	// Nothing on-chain yet: pending is the whole truth.
	repaired, err := f.svc.Reconcile(context.Background(), pact.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if repaired {
		t.Fatal("nothing should be repaired for an unproposed pact")
	}
}

func TestLifecycleIsAudited(t *testing.T) {
	f := newPactFixture(t)
	pact := f.toPendingConfirmation(t)

	f.chain.confirm("0xcfm", chain.EventPactResolved)
	if _, err := f.svc.ConfirmCompletion(context.Background(), pact.ID, f.creator, "0xcfm"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	want := map[string]bool{
		"pact_proposed":       false,
		"pact_accepted":       false,
		"pact_work_uploaded":  false,
		"pact_work_submitted": false,
		"pact_completed":      false,
	}
	for _, action := range f.audit.actions() {
		if _, ok := want[action]; ok {
			want[action] = true
		}
	}
	for action, seen := range want {
		if !seen {
			t.Errorf("missing audit entry %q", action)
		}
	}
}
