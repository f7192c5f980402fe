package models

import (
	"time"

	"github.com/google/uuid"
)

// Pact statuses
const (
	PactStatusPending             = "pending"
	PactStatusActive              = "active"
	PactStatusPendingConfirmation = "pending_confirmation"
	PactStatusCompleted           = "completed"
	PactStatusFailed              = "failed"
	PactStatusRejected            = "rejected"
	PactStatusRejectedSeen        = "rejected_seen"
)

// MaxRejections is the revision strike limit. Reaching it fails the pact
// and forfeits the stake on-chain.
const MaxRejections = 3

// Valid state transitions: from -> []to
var ValidPactTransitions = map[string][]string{
	PactStatusPending:             {PactStatusActive, PactStatusRejected},
	PactStatusActive:              {PactStatusPendingConfirmation},
	PactStatusPendingConfirmation: {PactStatusCompleted, PactStatusActive, PactStatusFailed},
	PactStatusRejected:            {PactStatusRejectedSeen},
	PactStatusRejectedSeen:        {},
	PactStatusCompleted:           {},
	PactStatusFailed:              {},
}

func IsValidPactTransition(from, to string) bool {
	allowed, ok := ValidPactTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalPactStatus reports whether no further transition may leave the
// status. rejected is quasi-terminal: only the creator's dismissal follows.
func IsTerminalPactStatus(status string) bool {
	allowed, ok := ValidPactTransitions[status]
	return ok && len(allowed) == 0
}

type Pact struct {
	ID        uuid.UUID `json:"id"`
	CreatorID uuid.UUID `json:"creator_id"`
	PartnerID uuid.UUID `json:"partner_id"`

	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	StakeWei    string  `json:"stake_wei"` // numeric as string, "0" when unstaked

	// OnchainID is the fixed-width projection of ID used as the contract
	// key (hex, 32 bytes). Set once at creation.
	OnchainID string `json:"onchain_id"`

	Status           string  `json:"status"`
	RejectionCount   int     `json:"rejection_count"`
	AcceptanceTxHash *string `json:"acceptance_tx_hash,omitempty"`

	Submission *PactSubmission `json:"submission,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PactSubmission is the partner's attached work. ViewedBy is set at most
// once, by the first successful creator download.
type PactSubmission struct {
	FilePath    string     `json:"-"`
	FileName    string     `json:"file_name"`
	SubmittedAt time.Time  `json:"submitted_at"`
	ViewedBy    *uuid.UUID `json:"viewed_by,omitempty"`
}

// IsCreator / IsPartner scope actor checks to the persisted record, never
// to a client-asserted role.
func (p *Pact) IsCreator(userID uuid.UUID) bool { return p.CreatorID == userID }
func (p *Pact) IsPartner(userID uuid.UUID) bool { return p.PartnerID == userID }

func (p *Pact) IsMember(userID uuid.UUID) bool {
	return p.IsCreator(userID) || p.IsPartner(userID)
}
