package models

import (
	"time"

	"github.com/google/uuid"
)

// Goal statuses. Goals are single-party commitments: no review loop, just
// active -> completed | failed.
const (
	GoalStatusActive    = "active"
	GoalStatusCompleted = "completed"
	GoalStatusFailed    = "failed"
)

type Goal struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`

	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`

	Status string `json:"status"`

	// Optional stake, backed by an on-chain lock. ForfeitAddress receives
	// the stake if the goal fails.
	StakeWei       *string `json:"stake_wei,omitempty"`
	StakeTxHash    *string `json:"stake_tx_hash,omitempty"`
	ForfeitAddress *string `json:"forfeit_address,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (g *Goal) IsStaked() bool {
	return g.StakeTxHash != nil && *g.StakeTxHash != ""
}
