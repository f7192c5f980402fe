package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/chain"
	"github.com/pactify/backend/internal/events"
	"github.com/pactify/backend/internal/models"
	"github.com/pactify/backend/internal/repositories"
)

// PactStore is the ledger accessor the protocol writes through. Every
// mutation is a conditional update; false/ErrNoRows means the
// precondition no longer held. Implemented by *repositories.PactRepo.
type PactStore interface {
	Create(ctx context.Context, p *models.Pact) error
	Get(ctx context.Context, id uuid.UUID) (*models.Pact, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Pact, error)
	List(ctx context.Context, f repositories.PactFilter) ([]models.Pact, error)

	MarkAccepted(ctx context.Context, id, partnerID uuid.UUID, txHash string) (bool, error)
	MarkRejected(ctx context.Context, id, partnerID uuid.UUID) (bool, error)
	MarkRejectionSeen(ctx context.Context, id, creatorID uuid.UUID) (bool, error)
	SetSubmission(ctx context.Context, id, partnerID uuid.UUID, filePath, fileName string) (bool, error)
	MarkWorkSubmitted(ctx context.Context, id, partnerID uuid.UUID) (bool, error)
	MarkCompleted(ctx context.Context, id, creatorID uuid.UUID) (bool, error)
	ApplyRevision(ctx context.Context, id, creatorID uuid.UUID) (count int, status string, err error)
	ClaimSubmissionView(ctx context.Context, id, creatorID uuid.UUID) (bool, error)

	RepairAccepted(ctx context.Context, id uuid.UUID, txHash string) (bool, error)
	RepairWorkSubmitted(ctx context.Context, id uuid.UUID) (bool, error)
	RepairRevision(ctx context.Context, id uuid.UUID, count int, status string) (bool, error)
	RepairResolved(ctx context.Context, id uuid.UUID, outcome string) (bool, error)
	ListStale(ctx context.Context, cutoffSeconds, limit int) ([]models.Pact, error)
}

// ChainVerifier is the server-side view of the escrow contract.
// Implemented by *chain.Client.
type ChainVerifier interface {
	VerifyPactEvent(ctx context.Context, txHash, event string, pactID [32]byte) (*chain.EventProof, error)
	PactRecord(ctx context.Context, pactID [32]byte) (*chain.OnChainPact, error)
	FindPactEvent(ctx context.Context, event string, pactID [32]byte, fromBlock uint64) (*chain.EventProof, error)
}

// WalletResolver resolves a party's payable address.
type WalletResolver interface {
	GetActiveWallet(ctx context.Context, userID uuid.UUID) (*models.UserWallet, error)
}

// SubmissionStore holds attached work files.
type SubmissionStore interface {
	Save(pactID, fileName string, r io.Reader) (string, error)
	Open(path string) (io.ReadCloser, string, error)
}

// AuditLogger records transitions; failures are logged, never fatal.
type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// PactService implements the reconciliation protocol: it decides when an
// off-chain transition may be proposed, requires a confirmed on-chain leg
// for every value-bearing transition, verifies the receipt server-side,
// and commits the ledger write exactly once per confirmed transaction.
type PactService struct {
	store     PactStore
	wallets   WalletResolver
	chain     ChainVerifier
	files     SubmissionStore
	audit     AuditLogger
	publisher events.Publisher
	log       *zap.Logger
}

func NewPactService(
	store PactStore,
	wallets WalletResolver,
	chainClient ChainVerifier,
	files SubmissionStore,
	audit AuditLogger,
	publisher events.Publisher,
	log *zap.Logger,
) *PactService {
	return &PactService{
		store:     store,
		wallets:   wallets,
		chain:     chainClient,
		files:     files,
		audit:     audit,
		publisher: publisher,
		log:       log,
	}
}

type ProposePactInput struct {
	PartnerID   uuid.UUID
	Title       string
	Description *string
	StakeWei    string
}

// Propose creates a pending pact. No value is at risk yet, so there is no
// on-chain leg, but the partner's payable address must resolve first. If
// it does not, nothing is persisted.
func (s *PactService) Propose(ctx context.Context, creatorID uuid.UUID, in ProposePactInput) (*models.Pact, string, error) {
	if len(in.Title) < 3 || len(in.Title) > 200 {
		return nil, "", fmt.Errorf("%w: title must be 3-200 characters", ErrInvalidInput)
	}
	if in.Description != nil && len(*in.Description) > 1000 {
		return nil, "", fmt.Errorf("%w: description too long", ErrInvalidInput)
	}
	if in.PartnerID == creatorID {
		return nil, "", fmt.Errorf("%w: you cannot create a pact with yourself", ErrInvalidInput)
	}

	stake := in.StakeWei
	if stake == "" {
		stake = "0"
	}
	if n, ok := new(big.Int).SetString(stake, 10); !ok || n.Sign() < 0 {
		return nil, "", fmt.Errorf("%w: stake must be a non-negative integer amount", ErrInvalidInput)
	}

	wallet, err := s.wallets.GetActiveWallet(ctx, in.PartnerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", fmt.Errorf("%w: the partner has no linked wallet", ErrPrecondition)
	}
	if err != nil {
		return nil, "", fmt.Errorf("resolve partner wallet: %w", err)
	}

	id := uuid.New()
	pact := &models.Pact{
		ID:          id,
		CreatorID:   creatorID,
		PartnerID:   in.PartnerID,
		Title:       in.Title,
		Description: in.Description,
		StakeWei:    stake,
		OnchainID:   chain.PactIDHex(id.String()),
		Status:      models.PactStatusPending,
	}
	if err := s.store.Create(ctx, pact); err != nil {
		return nil, "", fmt.Errorf("persist pact: %w", err)
	}

	s.auditLog(ctx, &creatorID, "user", "pact_proposed", pact.ID, map[string]any{
		"partner_id": in.PartnerID.String(),
		"stake_wei":  stake,
	})
	s.publishStatus(ctx, pact.ID, "", models.PactStatusPending)

	return pact, wallet.Address, nil
}

// Accept commits pending -> active after independently verifying the
// partner-reported acceptPact transaction. A retry on an already-active
// pact reports success without re-firing anything.
func (s *PactService) Accept(ctx context.Context, pactID, actorID uuid.UUID, txHash string) (*models.Pact, error) {
	p, err := s.getMember(ctx, pactID, actorID)
	if err != nil {
		return nil, err
	}
	if !p.IsPartner(actorID) {
		return nil, fmt.Errorf("%w: only the partner can accept a pact", ErrDenied)
	}

	if p.Status == models.PactStatusActive {
		return p, nil // already committed
	}
	if p.Status != models.PactStatusPending {
		return nil, fmt.Errorf("%w: pact is %s, not pending", ErrPrecondition, p.Status)
	}
	if txHash == "" {
		return nil, fmt.Errorf("%w: acceptance transaction hash is required", ErrInvalidInput)
	}

	// The hash is untrusted input; the receipt and its event are the proof.
	if _, err := s.chain.VerifyPactEvent(ctx, txHash, chain.EventPactAccepted, chain.PactID(p.ID.String())); err != nil {
		return nil, fmt.Errorf("verify acceptance: %w", err)
	}

	ok, err := s.store.MarkAccepted(ctx, pactID, actorID, txHash)
	if err != nil {
		return nil, fmt.Errorf("commit acceptance: %w", err)
	}
	if !ok {
		// A concurrent commit won the race. If the effect is present this
		// is a duplicate, not a failure.
		return s.requireStatus(ctx, pactID, actorID, models.PactStatusActive)
	}

	s.auditLog(ctx, &actorID, "user", "pact_accepted", pactID, map[string]any{"tx_hash": txHash})
	s.publishStatus(ctx, pactID, models.PactStatusPending, models.PactStatusActive)

	return s.store.GetForUser(ctx, pactID, actorID)
}

// Reject declines a pending pact. No stake is locked yet, so no chain leg.
func (s *PactService) Reject(ctx context.Context, pactID, actorID uuid.UUID) (*models.Pact, error) {
	p, err := s.getMember(ctx, pactID, actorID)
	if err != nil {
		return nil, err
	}
	if !p.IsPartner(actorID) {
		return nil, fmt.Errorf("%w: only the partner can reject a pact", ErrDenied)
	}
	if p.Status == models.PactStatusRejected || p.Status == models.PactStatusRejectedSeen {
		return p, nil
	}
	if p.Status != models.PactStatusPending {
		return nil, fmt.Errorf("%w: pact is %s, not pending", ErrPrecondition, p.Status)
	}

	ok, err := s.store.MarkRejected(ctx, pactID, actorID)
	if err != nil {
		return nil, fmt.Errorf("commit rejection: %w", err)
	}
	if !ok {
		return s.requireStatus(ctx, pactID, actorID, models.PactStatusRejected)
	}

	s.auditLog(ctx, &actorID, "user", "pact_rejected", pactID, nil)
	s.publishStatus(ctx, pactID, models.PactStatusPending, models.PactStatusRejected)

	return s.store.GetForUser(ctx, pactID, actorID)
}

// DismissRejected is the creator's one-way acknowledgment of a rejection.
func (s *PactService) DismissRejected(ctx context.Context, pactID, actorID uuid.UUID) (*models.Pact, error) {
	p, err := s.getMember(ctx, pactID, actorID)
	if err != nil {
		return nil, err
	}
	if !p.IsCreator(actorID) {
		return nil, fmt.Errorf("%w: only the creator can dismiss a rejection", ErrDenied)
	}
	if p.Status == models.PactStatusRejectedSeen {
		return p, nil
	}
	if p.Status != models.PactStatusRejected {
		return nil, fmt.Errorf("%w: pact is %s, not rejected", ErrPrecondition, p.Status)
	}

	ok, err := s.store.MarkRejectionSeen(ctx, pactID, actorID)
	if err != nil {
		return nil, fmt.Errorf("commit dismissal: %w", err)
	}
	if !ok {
		return s.requireStatus(ctx, pactID, actorID, models.PactStatusRejectedSeen)
	}

	s.auditLog(ctx, &actorID, "user", "pact_rejection_seen", pactID, nil)
	s.publishStatus(ctx, pactID, models.PactStatusRejected, models.PactStatusRejectedSeen)

	return s.store.GetForUser(ctx, pactID, actorID)
}

// SubmitWork attaches the partner's file to an active pact. This is a
// pure off-chain preparation step; the status changes only when the
// signalCompletion leg confirms.
func (s *PactService) SubmitWork(ctx context.Context, pactID, actorID uuid.UUID, fileName string, file io.Reader) (*models.Pact, error) {
	p, err := s.getMember(ctx, pactID, actorID)
	if err != nil {
		return nil, err
	}
	if !p.IsPartner(actorID) {
		return nil, fmt.Errorf("%w: only the partner can submit work", ErrDenied)
	}
	if p.Status != models.PactStatusActive {
		return nil, fmt.Errorf("%w: pact is %s, work can only be submitted while active", ErrPrecondition, p.Status)
	}

	path, err := s.files.Save(pactID.String(), fileName, file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	ok, err := s.store.SetSubmission(ctx, pactID, actorID, path, fileName)
	if err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: pact no longer accepts submissions", ErrPrecondition)
	}

	s.auditLog(ctx, &actorID, "user", "pact_work_uploaded", pactID, map[string]any{"file_name": fileName})

	return s.store.GetForUser(ctx, pactID, actorID)
}

// SignalCompletion commits active -> pending_confirmation after verifying
// the partner's signalCompletion transaction. Requires attached work.
func (s *PactService) SignalCompletion(ctx context.Context, pactID, actorID uuid.UUID, txHash string) (*models.Pact, error) {
	p, err := s.getMember(ctx, pactID, actorID)
	if err != nil {
		return nil, err
	}
	if !p.IsPartner(actorID) {
		return nil, fmt.Errorf("%w: only the partner can signal completion", ErrDenied)
	}

	if p.Status == models.PactStatusPendingConfirmation {
		return p, nil
	}
	if p.Status != models.PactStatusActive {
		return nil, fmt.Errorf("%w: pact is %s, not active", ErrPrecondition, p.Status)
	}
	if p.Submission == nil {
		return nil, fmt.Errorf("%w: attach your work before signalling completion", ErrPrecondition)
	}
	if txHash == "" {
		return nil, fmt.Errorf("%w: completion transaction hash is required", ErrInvalidInput)
	}

	if _, err := s.chain.VerifyPactEvent(ctx, txHash, chain.EventPactWorkSubmitted, chain.PactID(p.ID.String())); err != nil {
		return nil, fmt.Errorf("verify completion signal: %w", err)
	}

	ok, err := s.store.MarkWorkSubmitted(ctx, pactID, actorID)
	if err != nil {
		return nil, fmt.Errorf("commit completion signal: %w", err)
	}
	if !ok {
		return s.requireStatus(ctx, pactID, actorID, models.PactStatusPendingConfirmation)
	}

	s.auditLog(ctx, &actorID, "user", "pact_work_submitted", pactID, map[string]any{"tx_hash": txHash})
	s.publishStatus(ctx, pactID, models.PactStatusActive, models.PactStatusPendingConfirmation)

	return s.store.GetForUser(ctx, pactID, actorID)
}

// ConfirmCompletion commits pending_confirmation -> completed after
// verifying the creator's confirmCompletion transaction, which releases
// the stake on-chain.
func (s *PactService) ConfirmCompletion(ctx context.Context, pactID, actorID uuid.UUID, txHash string) (*models.Pact, error) {
	p, err := s.getMember(ctx, pactID, actorID)
	if err != nil {
		return nil, err
	}
	if !p.IsCreator(actorID) {
		return nil, fmt.Errorf("%w: only the creator can confirm completion", ErrDenied)
	}

	if p.Status == models.PactStatusCompleted {
		return p, nil
	}
	if p.Status != models.PactStatusPendingConfirmation {
		return nil, fmt.Errorf("%w: pact is %s, not pending confirmation", ErrPrecondition, p.Status)
	}
	if txHash == "" {
		return nil, fmt.Errorf("%w: confirmation transaction hash is required", ErrInvalidInput)
	}

	if _, err := s.chain.VerifyPactEvent(ctx, txHash, chain.EventPactResolved, chain.PactID(p.ID.String())); err != nil {
		return nil, fmt.Errorf("verify confirmation: %w", err)
	}

	ok, err := s.store.MarkCompleted(ctx, pactID, actorID)
	if err != nil {
		return nil, fmt.Errorf("commit confirmation: %w", err)
	}
	if !ok {
		return s.requireStatus(ctx, pactID, actorID, models.PactStatusCompleted)
	}

	s.auditLog(ctx, &actorID, "user", "pact_completed", pactID, map[string]any{"tx_hash": txHash})
	s.publishStatus(ctx, pactID, models.PactStatusPendingConfirmation, models.PactStatusCompleted)

	return s.store.GetForUser(ctx, pactID, actorID)
}

// RequestRevision commits the creator's strike. The counter and its
// derived target status (third strike fails the pact and forfeits the
// stake) are computed in a single conditional update.
func (s *PactService) RequestRevision(ctx context.Context, pactID, actorID uuid.UUID, txHash string) (*models.Pact, error) {
	p, err := s.getMember(ctx, pactID, actorID)
	if err != nil {
		return nil, err
	}
	if !p.IsCreator(actorID) {
		return nil, fmt.Errorf("%w: only the creator can request a revision", ErrDenied)
	}

	// A retry after the commit lands sees active (another round) or
	// failed (third strike): both are the effect already present.
	if p.Status == models.PactStatusFailed {
		return p, nil
	}
	if p.Status == models.PactStatusActive && p.RejectionCount > 0 {
		return p, nil
	}
	if p.Status != models.PactStatusPendingConfirmation {
		return nil, fmt.Errorf("%w: pact is %s, not pending confirmation", ErrPrecondition, p.Status)
	}
	if txHash == "" {
		return nil, fmt.Errorf("%w: revision transaction hash is required", ErrInvalidInput)
	}

	if _, err := s.chain.VerifyPactEvent(ctx, txHash, chain.EventPactRevisionRequested, chain.PactID(p.ID.String())); err != nil {
		return nil, fmt.Errorf("verify revision request: %w", err)
	}

	count, status, err := s.store.ApplyRevision(ctx, pactID, actorID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race to a concurrent commit of the same strike.
		refreshed, gerr := s.store.GetForUser(ctx, pactID, actorID)
		if gerr != nil {
			return nil, s.mapStoreErr(gerr)
		}
		return refreshed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("commit revision: %w", err)
	}

	s.auditLog(ctx, &actorID, "user", "pact_revision_requested", pactID, map[string]any{
		"tx_hash":         txHash,
		"rejection_count": count,
		"new_status":      status,
	})
	s.publishStatus(ctx, pactID, models.PactStatusPendingConfirmation, status)

	return s.store.GetForUser(ctx, pactID, actorID)
}

// DownloadSubmission streams the attached work to the creator, claiming
// the single view in the same conditional update that authorizes it.
func (s *PactService) DownloadSubmission(ctx context.Context, pactID, actorID uuid.UUID) (io.ReadCloser, string, string, error) {
	p, err := s.getMember(ctx, pactID, actorID)
	if err != nil {
		return nil, "", "", err
	}
	if !p.IsCreator(actorID) {
		return nil, "", "", fmt.Errorf("%w: only the creator can view the submission", ErrDenied)
	}
	if p.Submission == nil {
		return nil, "", "", fmt.Errorf("%w: no file has been submitted for this pact", ErrPrecondition)
	}
	if p.Submission.ViewedBy != nil {
		return nil, "", "", fmt.Errorf("%w: this submission has already been viewed", ErrPrecondition)
	}

	// Open before claiming so an unreadable file does not burn the single
	// permitted view with nothing streamed.
	f, contentType, err := s.files.Open(p.Submission.FilePath)
	if err != nil {
		return nil, "", "", fmt.Errorf("open submission: %w", err)
	}

	ok, err := s.store.ClaimSubmissionView(ctx, pactID, actorID)
	if err != nil {
		f.Close()
		return nil, "", "", fmt.Errorf("claim view: %w", err)
	}
	if !ok {
		f.Close()
		return nil, "", "", fmt.Errorf("%w: this submission has already been viewed", ErrPrecondition)
	}

	s.auditLog(ctx, &actorID, "user", "pact_submission_viewed", pactID, nil)

	return f, p.Submission.FileName, contentType, nil
}

func (s *PactService) Get(ctx context.Context, pactID, userID uuid.UUID) (*models.Pact, error) {
	return s.getMember(ctx, pactID, userID)
}

func (s *PactService) List(ctx context.Context, f repositories.PactFilter) ([]models.Pact, error) {
	return s.store.List(ctx, f)
}

// Reconcile repairs a suspected-stale off-chain record from on-chain
// truth. Funds may have moved without the matching ledger write (crash or
// abandonment between confirmation and commit); this replays the missing
// transitions through the same guarded writes the interactive path uses,
// so it is safe to run any number of times.
func (s *PactService) Reconcile(ctx context.Context, pactID uuid.UUID) (bool, error) {
	p, err := s.store.Get(ctx, pactID)
	if err != nil {
		return false, s.mapStoreErr(err)
	}
	if models.IsTerminalPactStatus(p.Status) || p.Status == models.PactStatusRejected {
		return false, nil
	}

	pid := chain.PactID(p.ID.String())
	rec, err := s.chain.PactRecord(ctx, pid)
	if err != nil {
		return false, fmt.Errorf("read on-chain record: %w", err)
	}
	if !rec.Exists() {
		// Nothing was ever proposed on-chain for this id; the off-chain
		// pending record is the whole truth.
		return false, nil
	}

	repaired := false

	if p.Status == models.PactStatusPending && rec.Status >= chain.OnChainActive {
		// The acceptance tx exists but the ledger missed it; recover the
		// hash from the event log so the invariant "active implies
		// acceptance_tx_hash" holds after repair too.
		proof, err := s.chain.FindPactEvent(ctx, chain.EventPactAccepted, pid, 0)
		if err != nil {
			return repaired, fmt.Errorf("locate acceptance event: %w", err)
		}
		ok, err := s.store.RepairAccepted(ctx, pactID, proof.TxHash.Hex())
		if err != nil {
			return repaired, fmt.Errorf("repair acceptance: %w", err)
		}
		repaired = repaired || ok
		p.Status = models.PactStatusActive
	}

	if int(rec.RejectionCount) > p.RejectionCount {
		// Missed revision round(s): the counter is written as the
		// contract's absolute value and the status follows the record, so
		// replaying this any number of times converges on the same row.
		target := ""
		switch rec.Status {
		case chain.OnChainActive:
			target = models.PactStatusActive
		case chain.OnChainFailed:
			target = models.PactStatusFailed
		}
		ok, err := s.store.RepairRevision(ctx, pactID, int(rec.RejectionCount), target)
		if err != nil {
			return repaired, fmt.Errorf("repair revision: %w", err)
		}
		repaired = repaired || ok
		p.RejectionCount = int(rec.RejectionCount)
		if target != "" {
			p.Status = target
		}
	}

	if p.Status == models.PactStatusActive && rec.Status == chain.OnChainPendingConfirmation {
		ok, err := s.store.RepairWorkSubmitted(ctx, pactID)
		if err != nil {
			return repaired, fmt.Errorf("repair work submission: %w", err)
		}
		repaired = repaired || ok
		p.Status = models.PactStatusPendingConfirmation
	}

	if rec.Status == chain.OnChainCompleted || rec.Status == chain.OnChainFailed {
		outcome := models.PactStatusCompleted
		if rec.Status == chain.OnChainFailed {
			outcome = models.PactStatusFailed
		}
		ok, err := s.store.RepairResolved(ctx, pactID, outcome)
		if err != nil {
			return repaired, fmt.Errorf("repair resolution: %w", err)
		}
		repaired = repaired || ok
		p.Status = outcome
	}

	if repaired {
		s.log.Info("repaired divergent pact",
			zap.String("pact_id", pactID.String()),
			zap.String("status", p.Status),
			zap.String("onchain_status", rec.Status.String()),
		)
		s.auditLog(ctx, nil, "system", "pact_reconciled", pactID, map[string]any{
			"status":         p.Status,
			"onchain_status": rec.Status.String(),
		})
		s.publishEvent(ctx, events.EventPactRepaired, pactID, map[string]any{"status": p.Status})
	}

	return repaired, nil
}

// ReconcileStale sweeps non-terminal pacts that have not moved recently.
func (s *PactService) ReconcileStale(ctx context.Context, cutoffSeconds, limit int) (int, error) {
	pacts, err := s.store.ListStale(ctx, cutoffSeconds, limit)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for i := range pacts {
		ok, err := s.Reconcile(ctx, pacts[i].ID)
		if err != nil {
			s.log.Warn("reconcile failed",
				zap.String("pact_id", pacts[i].ID.String()),
				zap.Error(err),
			)
			continue
		}
		if ok {
			repaired++
		}
	}
	return repaired, nil
}

// --- helpers ---

func (s *PactService) getMember(ctx context.Context, pactID, userID uuid.UUID) (*models.Pact, error) {
	p, err := s.store.GetForUser(ctx, pactID, userID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return p, nil
}

func (s *PactService) mapStoreErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: pact not found", ErrNotFound)
	}
	return err
}

// requireStatus resolves a lost conditional write: if the record already
// carries the wanted status the duplicate reports success, otherwise the
// precondition genuinely failed.
func (s *PactService) requireStatus(ctx context.Context, pactID, userID uuid.UUID, want string) (*models.Pact, error) {
	p, err := s.store.GetForUser(ctx, pactID, userID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	if p.Status == want {
		return p, nil
	}
	return nil, fmt.Errorf("%w: pact is %s", ErrPrecondition, p.Status)
}

func (s *PactService) auditLog(ctx context.Context, actorID *uuid.UUID, actorType, action string, pactID uuid.UUID, meta map[string]any) {
	if err := s.audit.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      action,
		EntityType:  "pact",
		EntityID:    &pactID,
		Meta:        meta,
	}); err != nil {
		s.log.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *PactService) publishStatus(ctx context.Context, pactID uuid.UUID, oldStatus, newStatus string) {
	s.publishEvent(ctx, events.EventPactStatusChanged, pactID, map[string]any{
		"old_status": oldStatus,
		"new_status": newStatus,
	})
}

func (s *PactService) publishEvent(ctx context.Context, eventType string, pactID uuid.UUID, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["pact_id"] = pactID.String()
	if err := s.publisher.Publish(ctx, events.StreamPacts, events.Event{Type: eventType, Payload: payload}); err != nil {
		s.log.Debug("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}
