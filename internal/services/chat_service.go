package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pactify/backend/internal/events"
	"github.com/pactify/backend/internal/models"
)

const maxChatBodyLen = 2000

// ChatStore mirrors *repositories.ChatRepo.
type ChatStore interface {
	Create(ctx context.Context, m *models.ChatMessage) error
	ListSince(ctx context.Context, pactID uuid.UUID, since time.Time, limit int) ([]models.ChatMessage, error)
}

// PactMembership gates the thread to its two members.
type PactMembership interface {
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Pact, error)
}

// ChatService is the per-pact private thread. Reads are poll-based;
// writes also push through the event bus for connected clients.
type ChatService struct {
	store     ChatStore
	pacts     PactMembership
	publisher events.Publisher
	log       *zap.Logger
}

func NewChatService(store ChatStore, pacts PactMembership, publisher events.Publisher, log *zap.Logger) *ChatService {
	return &ChatService{store: store, pacts: pacts, publisher: publisher, log: log}
}

func (s *ChatService) Send(ctx context.Context, pactID, senderID uuid.UUID, body string) (*models.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: message body is empty", ErrInvalidInput)
	}
	if len(body) > maxChatBodyLen {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, maxChatBodyLen)
	}
	if err := s.requireMember(ctx, pactID, senderID); err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		PactID:   pactID,
		SenderID: senderID,
		Body:     body,
	}
	if err := s.store.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	err := s.publisher.Publish(ctx, events.StreamChat, events.Event{
		Type: events.EventChatMessage,
		Payload: map[string]any{
			"pact_id":   pactID.String(),
			"sender_id": senderID.String(),
			"body":      body,
		},
	})
	if err != nil {
		s.log.Debug("event publish failed", zap.Error(err))
	}

	return msg, nil
}

func (s *ChatService) ListSince(ctx context.Context, pactID, userID uuid.UUID, since time.Time, limit int) ([]models.ChatMessage, error) {
	if err := s.requireMember(ctx, pactID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	return s.store.ListSince(ctx, pactID, since, limit)
}

func (s *ChatService) requireMember(ctx context.Context, pactID, userID uuid.UUID) error {
	p, err := s.pacts.GetForUser(ctx, pactID, userID)
	if err != nil {
		return fmt.Errorf("%w: pact not found", ErrNotFound)
	}
	if !p.IsMember(userID) {
		return fmt.Errorf("%w: you are not a member of this pact", ErrDenied)
	}
	return nil
}
