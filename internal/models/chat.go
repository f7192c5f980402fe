package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is a message in a pact's private thread. Only the two pact
// members may read or write it.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	PactID    uuid.UUID `json:"pact_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
