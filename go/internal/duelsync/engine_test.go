package duelsync

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pathduel/go/internal/pubsub"
	"github.com/mcdev12/pathduel/go/internal/wire"
)

// pipeLink delivers every sent message to its peer synchronously, through a
// real encode/decode so payload values take their wire shapes.
type pipeLink struct {
	peer    *pipeLink
	topic   *pubsub.Topic[wire.MessageType, wire.Message]
	sent    []wire.Message
	sendErr error
}

func newPipe() (*pipeLink, *pipeLink) {
	a := &pipeLink{topic: pubsub.NewTopic[wire.MessageType, wire.Message]("a")}
	b := &pipeLink{topic: pubsub.NewTopic[wire.MessageType, wire.Message]("b")}
	a.peer, b.peer = b, a
	return a, b
}

func (p *pipeLink) Send(m wire.Message) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	frame, err := wire.Encode(m)
	if err != nil {
		return err
	}
	decoded, err := wire.Decode(frame)
	if err != nil {
		return err
	}
	p.sent = append(p.sent, decoded)
	p.peer.topic.Publish(decoded.Type, decoded)
	return nil
}

func (p *pipeLink) Subscribe(t wire.MessageType, fn func(wire.Message)) pubsub.Subscription {
	return p.topic.Subscribe(t, fn)
}

func TestSyncMessage_PayloadRoundTrip(t *testing.T) {
	in := SyncMessage{
		Type:     SyncTypeCurvePointMove,
		Data:     map[string]any{"index": 1, "x": 2.5, "y": 3.0},
		Sequence: 42,
	}
	out, err := FromPayload(in.ToPayload())
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFromPayload_Defaults(t *testing.T) {
	msg, err := FromPayload(map[string]any{"sync_type": "READY_STATE"})
	require.NoError(t, err)
	assert.Equal(t, SyncTypeReadyState, msg.Type)
	assert.Empty(t, msg.Data)
	assert.Equal(t, int64(0), msg.Sequence)
}

func TestFromPayload_Invalid(t *testing.T) {
	cases := map[string]map[string]any{
		"missing type":    {"data": map[string]any{}},
		"type not string": {"sync_type": 3},
		"unknown type":    {"sync_type": "TELEPORT"},
		"data not map":    {"sync_type": "FULL_SYNC", "data": "nope"},
		"bad sequence":    {"sync_type": "FULL_SYNC", "sequence": 1.5},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromPayload(p)
			assert.ErrorIs(t, err, ErrInvalidSyncMessage)
		})
	}
}

func TestEngine_SequenceIsPerSenderAndMonotonic(t *testing.T) {
	a, b := newPipe()
	ea := NewEngine(a)
	eb := NewEngine(b)

	var seen []int64
	eb.Subscribe(SyncTypeCurvePointAdd, func(m SyncMessage) { seen = append(seen, m.Sequence) })
	ea.Subscribe(SyncTypeCurvePointAdd, func(m SyncMessage) { t.Fatal("sender must not receive its own message") })

	for i := 0; i < 3; i++ {
		require.NoError(t, ea.SyncPointAdded(float64(i), 1))
	}
	assert.Equal(t, []int64{0, 1, 2}, seen)
	assert.Equal(t, int64(3), ea.Sequence())
	assert.Equal(t, int64(0), eb.Sequence())
}

func TestEngine_TypedPayloads(t *testing.T) {
	a, b := newPipe()
	ea := NewEngine(a)
	eb := NewEngine(b)

	var curve CurveData
	var move MovePointData
	var tower TowerData
	var event GameEventData
	var barrier BarrierData
	eb.Subscribe(SyncTypeFullSync, func(m SyncMessage) { require.NoError(t, m.DecodeData(&curve)) })
	eb.Subscribe(SyncTypeCurvePointMove, func(m SyncMessage) { require.NoError(t, m.DecodeData(&move)) })
	eb.Subscribe(SyncTypeTowerPlace, func(m SyncMessage) { require.NoError(t, m.DecodeData(&tower)) })
	eb.Subscribe(SyncTypeGameEvent, func(m SyncMessage) { require.NoError(t, m.DecodeData(&event)) })
	eb.Subscribe(SyncTypeBarrier, func(m SyncMessage) { require.NoError(t, m.DecodeData(&barrier)) })

	require.NoError(t, ea.SyncFullCurve(CurveData{
		ControlPoints:       []Point{{0, 10}, {5, 3}, {19, 10}},
		InterpolationMethod: "spline",
	}))
	require.NoError(t, ea.SyncPointMoved(1, 6, 4))
	require.NoError(t, ea.SyncTowerPlaced("cannon", 3, 7))
	require.NoError(t, ea.SyncGameEvent(GameEventDamage, map[string]any{"damage": 4}))
	lives, money := 6, 900
	require.NoError(t, ea.SyncBarrier(BarrierData{Transition: BarrierRoundComplete, Round: 2, Lives: &lives, Money: &money}))

	assert.Equal(t, []Point{{0, 10}, {5, 3}, {19, 10}}, curve.ControlPoints)
	assert.Equal(t, "spline", curve.InterpolationMethod)
	assert.Equal(t, MovePointData{Index: 1, X: 6, Y: 4}, move)
	assert.Equal(t, TowerData{TowerType: "cannon", X: 3, Y: 7}, tower)
	assert.Equal(t, GameEventDamage, event.EventType)
	assert.Equal(t, float64(4), event.EventData["damage"])
	assert.Equal(t, BarrierRoundComplete, barrier.Transition)
	require.NotNil(t, barrier.Lives)
	assert.Equal(t, 6, *barrier.Lives)
}

func TestEngine_MalformedPayloadIsDropped(t *testing.T) {
	a, b := newPipe()
	eb := NewEngine(b)

	calls := 0
	eb.Subscribe(SyncTypeFullSync, func(SyncMessage) { calls++ })

	require.NoError(t, a.Send(wire.NewMessage(wire.MessageTypeGameState, map[string]any{"sync_type": "NOPE"})))
	require.NoError(t, a.Send(wire.NewMessage(wire.MessageTypeGameState, map[string]any{"sync_type": "FULL_SYNC"})))
	assert.Equal(t, 1, calls)
}

func TestEngine_SendErrorIsReturned(t *testing.T) {
	a, _ := newPipe()
	boom := errors.New("link down")
	a.sendErr = boom

	e := NewEngine(a)
	err := e.SyncReadyState(true, 1)
	assert.ErrorIs(t, err, boom)
}

func TestEngine_CloseStopsDelivery(t *testing.T) {
	a, b := newPipe()
	ea := NewEngine(a)
	eb := NewEngine(b)

	calls := 0
	eb.Subscribe(SyncTypePhaseChange, func(SyncMessage) { calls++ })
	require.NoError(t, ea.SyncPhaseChange("PLANNING", 1))
	eb.Close()
	require.NoError(t, ea.SyncPhaseChange("BATTLE", 1))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.topic.Len(wire.MessageTypeGameState))
}
