package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent_ParsePayload(t *testing.T) {
	ev, err := NewEvent(EventTypeMatchEnded, "session-1", MatchEndedPayload{
		Round:       5,
		LocalLives:  3,
		RemoteLives: 0,
		Outcome:     "win",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, ev.ID)
	assert.Equal(t, "session-1", ev.SessionID)
	assert.False(t, ev.Timestamp.IsZero())

	payload, err := ParseEventPayload(&ev)
	require.NoError(t, err)
	assert.Equal(t, MatchEndedPayload{Round: 5, LocalLives: 3, RemoteLives: 0, Outcome: "win"}, payload)
}

func TestParseEventPayload_UnknownType(t *testing.T) {
	_, err := ParseEventPayload(&Event{Type: "Nope", Data: json.RawMessage(`{}`)})
	assert.Error(t, err)
}

func TestEvent_JSONShape(t *testing.T) {
	ev, err := NewEvent(EventTypePhaseChanged, "s", PhaseChangedPayload{From: "PLANNING", To: "BATTLE", Round: 2})
	require.NoError(t, err)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "PhaseChanged", generic["type"])
	assert.Equal(t, map[string]any{"from": "PLANNING", "to": "BATTLE", "round": float64(2)}, generic["data"])
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher()
	ev, err := NewEvent(EventTypePeerDisconnected, "s", PeerDisconnectedPayload{Reason: "peer closed"})
	require.NoError(t, err)
	assert.NoError(t, p.Publish(context.Background(), ev))
	assert.NoError(t, p.Close())
}

func TestSubject(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	assert.Equal(t, "duel.events.MatchEnded", Subject(cfg.SubjectPrefix, EventTypeMatchEnded))
}

func TestStreamConfig(t *testing.T) {
	p := &JetStreamPublisher{config: DefaultJetStreamConfig()}
	sc := p.streamConfig()
	assert.Equal(t, "DUEL_EVENTS", sc.Name)
	assert.Equal(t, []string{"duel.events.>"}, sc.Subjects)
	assert.Equal(t, jetstream.FileStorage, sc.Storage)
	assert.True(t, isStreamConfigEqual(sc, sc))

	other := sc
	other.Replicas = 3
	assert.False(t, isStreamConfigEqual(sc, other))
}
