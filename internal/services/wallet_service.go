package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/chain"
	"github.com/pactify/backend/internal/models"
)

// WalletStore mirrors *repositories.WalletRepo.
type WalletStore interface {
	CreateProofPayload(ctx context.Context, userID *uuid.UUID, ttl time.Duration) (*models.WalletProofPayload, error)
	ConsumeProofPayload(ctx context.Context, payload string) (*models.WalletProofPayload, error)
	LinkWallet(ctx context.Context, w *models.UserWallet) error
	DeactivateAll(ctx context.Context, userID uuid.UUID) error
	GetActiveWallet(ctx context.Context, userID uuid.UUID) (*models.UserWallet, error)
}

// UserStore mirrors the part of *repositories.UserRepo auth needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpsertByWallet(ctx context.Context, address string) (*models.User, error)
	Touch(ctx context.Context, id uuid.UUID) error
}

// WalletService handles signature-based login and wallet linking. A
// wallet proof is a single-use nonce signed by the claimed address;
// verification consumes the nonce in the same statement that checks it.
type WalletService struct {
	wallets WalletStore
	users   UserStore
	audit   AuditLogger
	log     *zap.Logger
}

func NewWalletService(wallets WalletStore, users UserStore, audit AuditLogger, log *zap.Logger) *WalletService {
	return &WalletService{wallets: wallets, users: users, audit: audit, log: log}
}

// IssueChallenge creates a fresh nonce. userID is nil for login (the user
// may not exist yet) and set when linking an extra wallet to an account.
func (s *WalletService) IssueChallenge(ctx context.Context, userID *uuid.UUID) (*models.WalletProofPayload, error) {
	return s.wallets.CreateProofPayload(ctx, userID, chain.MaxProofAge)
}

// Authenticate verifies a login proof and returns the wallet's user,
// creating the account on first sight of the address.
func (s *WalletService) Authenticate(ctx context.Context, proof chain.WalletProof) (*models.User, *models.UserWallet, error) {
	payload, err := s.consume(ctx, proof)
	if err != nil {
		return nil, nil, err
	}
	if payload.UserID != nil {
		return nil, nil, fmt.Errorf("%w: this challenge was issued for wallet linking, not login", ErrDenied)
	}

	address := common.HexToAddress(proof.Address).Hex()
	user, err := s.users.UpsertByWallet(ctx, address)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve user: %w", err)
	}

	wallet, err := s.link(ctx, user.ID, address, proof)
	if err != nil {
		return nil, nil, err
	}

	if err := s.users.Touch(ctx, user.ID); err != nil {
		s.log.Warn("touch user failed", zap.Error(err))
	}
	s.auditLog(ctx, user.ID, "wallet_login", wallet.ID)

	return user, wallet, nil
}

// Link verifies an ownership proof and attaches the address to an
// existing account, replacing the previously active wallet.
func (s *WalletService) Link(ctx context.Context, userID uuid.UUID, proof chain.WalletProof) (*models.UserWallet, error) {
	payload, err := s.consume(ctx, proof)
	if err != nil {
		return nil, err
	}
	if payload.UserID == nil || *payload.UserID != userID {
		return nil, fmt.Errorf("%w: this challenge was not issued to you", ErrDenied)
	}

	wallet, err := s.link(ctx, userID, common.HexToAddress(proof.Address).Hex(), proof)
	if err != nil {
		return nil, err
	}

	s.auditLog(ctx, userID, "wallet_linked", wallet.ID)
	return wallet, nil
}

func (s *WalletService) Unlink(ctx context.Context, userID uuid.UUID) error {
	if err := s.wallets.DeactivateAll(ctx, userID); err != nil {
		return err
	}
	s.auditLog(ctx, userID, "wallet_unlinked", uuid.Nil)
	return nil
}

func (s *WalletService) ActiveWallet(ctx context.Context, userID uuid.UUID) (*models.UserWallet, error) {
	w, err := s.wallets.GetActiveWallet(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: no wallet linked", ErrNotFound)
	}
	return w, err
}

func (s *WalletService) consume(ctx context.Context, proof chain.WalletProof) (*models.WalletProofPayload, error) {
	if err := chain.VerifyWalletProof(proof); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDenied, err)
	}
	payload, err := s.wallets.ConsumeProofPayload(ctx, proof.Payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: challenge is unknown, expired, or already used", ErrDenied)
	}
	if err != nil {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}
	return payload, nil
}

func (s *WalletService) link(ctx context.Context, userID uuid.UUID, address string, proof chain.WalletProof) (*models.UserWallet, error) {
	// One active wallet per user: deactivate before linking.
	if err := s.wallets.DeactivateAll(ctx, userID); err != nil {
		return nil, fmt.Errorf("deactivate previous wallets: %w", err)
	}
	wallet := &models.UserWallet{
		UserID:         userID,
		Address:        address,
		ProofPayload:   proof.Payload,
		ProofSignature: proof.Signature,
		ProofTimestamp: proof.Timestamp,
		Verified:       true,
		IsActive:       true,
	}
	if err := s.wallets.LinkWallet(ctx, wallet); err != nil {
		return nil, fmt.Errorf("link wallet: %w", err)
	}
	return wallet, nil
}

func (s *WalletService) auditLog(ctx context.Context, userID uuid.UUID, action string, walletID uuid.UUID) {
	var entityID *uuid.UUID
	if walletID != uuid.Nil {
		entityID = &walletID
	}
	if err := s.audit.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      action,
		EntityType:  "wallet",
		EntityID:    entityID,
	}); err != nil {
		s.log.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}
