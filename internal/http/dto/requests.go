package dto

import "time"

// Auth

type WalletAuthRequest struct {
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

type UpdateProfileRequest struct {
	Handle      *string `json:"handle,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}

// Pacts

type CreatePactRequest struct {
	PartnerID   string  `json:"partner_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	StakeWei    string  `json:"stake_wei,omitempty"`
}

type TxHashRequest struct {
	TxHash string `json:"tx_hash"`
}

type SendMessageRequest struct {
	Body string `json:"body"`
}

// Goals

type CreateGoalRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

type StakeGoalRequest struct {
	StakeWei       string `json:"stake_wei"`
	TxHash         string `json:"tx_hash"`
	ForfeitAddress string `json:"forfeit_address"`
}
