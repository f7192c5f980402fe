package events

import "context"

// Event types
const (
	EventPactStatusChanged = "pact_status_changed"
	EventPactRepaired      = "pact_repaired"
	EventGoalStatusChanged = "goal_status_changed"
	EventChatMessage       = "chat_message"
)

// Streams
const (
	StreamPacts = "events:pacts"
	StreamGoals = "events:goals"
	StreamChat  = "events:chat"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
