package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a duel lifecycle event published for spectators and analytics.
type Event struct {
	ID        uuid.UUID       `json:"id"`         // Event UUID
	SessionID string          `json:"session_id"` // Publishing session
	Type      EventType       `json:"type"`       // Event type
	Role      string          `json:"role"`       // Role of the publishing peer
	Phase     string          `json:"phase"`      // Phase after the event
	Round     int             `json:"round"`      // Round after the event
	Timestamp time.Time       `json:"timestamp"`  // Event creation time
	Data      json.RawMessage `json:"data"`       // Event-specific payload
}

// EventType represents the type of duel event
type EventType string

const (
	EventTypePhaseChanged     EventType = "PhaseChanged"
	EventTypeMatchEnded       EventType = "MatchEnded"
	EventTypePeerDisconnected EventType = "PeerDisconnected"
)

// PhaseChangedPayload is sent on every phase transition
type PhaseChangedPayload struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Round int    `json:"round"`
}

// MatchEndedPayload summarises a finished match from the publisher's view
type MatchEndedPayload struct {
	Round       int    `json:"round"`
	LocalLives  int    `json:"local_lives"`
	RemoteLives int    `json:"remote_lives"`
	Outcome     string `json:"outcome"` // win, loss or draw
}

// PeerDisconnectedPayload carries the reason the link went away
type PeerDisconnectedPayload struct {
	Reason string `json:"reason"`
}

// Publisher delivers events somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NewEvent builds an event with a fresh id and the payload marshalled.
func NewEvent(eventType EventType, sessionID string, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New(),
		SessionID: sessionID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *Event) (interface{}, error) {
	switch event.Type {
	case EventTypePhaseChanged:
		var payload PhaseChangedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeMatchEnded:
		var payload MatchEndedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypePeerDisconnected:
		var payload PeerDisconnectedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}
}
