package models

import (
	"time"

	"github.com/google/uuid"
)

// UserWallet is a verified link between a user and an on-chain address.
// A user may link several addresses over time; at most one is active.
type UserWallet struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Address        string     `json:"address"` // checksummed 0x hex
	ProofPayload   string     `json:"-"`
	ProofSignature string     `json:"-"`
	ProofTimestamp int64      `json:"-"`
	Verified       bool       `json:"verified"`
	ConnectedAt    time.Time  `json:"connected_at"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
	IsActive       bool       `json:"is_active"`
}

// WalletProofPayload is a single-use nonce the client must sign to prove
// address ownership. UserID is nil for login-time proofs (user may not
// exist yet).
type WalletProofPayload struct {
	ID        uuid.UUID  `json:"id"`
	Payload   string     `json:"payload"`
	UserID    *uuid.UUID `json:"-"`
	CreatedAt time.Time  `json:"-"`
	ExpiresAt time.Time  `json:"-"`
	Used      bool       `json:"-"`
}
