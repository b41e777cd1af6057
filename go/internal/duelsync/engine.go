package duelsync

import (
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pathduel/go/internal/pubsub"
	"github.com/mcdev12/pathduel/go/internal/wire"
)

// Link is what the engine needs from a transport.
type Link interface {
	Send(m wire.Message) error
	Subscribe(msgType wire.MessageType, fn func(wire.Message)) pubsub.Subscription
}

// Engine turns domain events into GAME_STATE messages and back.
type Engine struct {
	link      Link
	seq       atomic.Int64
	observers *pubsub.Topic[SyncType, SyncMessage]
	sub       pubsub.Subscription
}

// NewEngine binds an engine to link. It registers exactly one GAME_STATE
// handler on the link.
func NewEngine(link Link) *Engine {
	e := &Engine{
		link:      link,
		observers: pubsub.NewTopic[SyncType, SyncMessage]("duelsync"),
	}
	e.sub = link.Subscribe(wire.MessageTypeGameState, e.onGameState)
	return e
}

// Subscribe registers fn for inbound sync messages of type t.
func (e *Engine) Subscribe(t SyncType, fn func(SyncMessage)) pubsub.Subscription {
	return e.observers.Subscribe(t, fn)
}

// Sequence returns the number the next outgoing message will carry.
func (e *Engine) Sequence() int64 {
	return e.seq.Load()
}

// Close detaches the engine from its link.
func (e *Engine) Close() {
	e.sub.Unsubscribe()
	e.observers.Clear()
}

func (e *Engine) onGameState(m wire.Message) {
	msg, err := FromPayload(m.Payload)
	if err != nil {
		log.Warn().
			Err(err).
			Str("sender_id", m.Sender()).
			Msg("dropping sync message")
		return
	}

	log.Debug().
		Str("sync_type", string(msg.Type)).
		Int64("sequence", msg.Sequence).
		Msg("sync message received")

	e.observers.Publish(msg.Type, msg)
}

// Send stamps the next sequence number on a message of type t and sends it.
func (e *Engine) Send(t SyncType, data any) error {
	payload, err := toData(data)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", t, err)
	}
	msg := SyncMessage{
		Type:     t,
		Data:     payload,
		Sequence: e.seq.Add(1) - 1,
	}
	if err := e.link.Send(wire.NewMessage(wire.MessageTypeGameState, msg.ToPayload())); err != nil {
		return fmt.Errorf("sync %s: %w", t, err)
	}
	return nil
}

func (e *Engine) SyncFullCurve(c CurveData) error {
	return e.Send(SyncTypeFullSync, c)
}

func (e *Engine) SyncCurveUpdate(c CurveData) error {
	return e.Send(SyncTypeCurveUpdate, c)
}

func (e *Engine) SyncPointAdded(x, y float64) error {
	return e.Send(SyncTypeCurvePointAdd, PointData{X: x, Y: y})
}

func (e *Engine) SyncPointMoved(index int, x, y float64) error {
	return e.Send(SyncTypeCurvePointMove, MovePointData{Index: index, X: x, Y: y})
}

func (e *Engine) SyncPointRemoved(index int) error {
	return e.Send(SyncTypeCurvePointRemove, RemovePointData{Index: index})
}

func (e *Engine) SyncMethodChanged(method string) error {
	return e.Send(SyncTypeCurveMethodChange, MethodData{Method: method})
}

func (e *Engine) SyncTowerPlaced(towerType string, x, y int) error {
	return e.Send(SyncTypeTowerPlace, TowerData{TowerType: towerType, X: x, Y: y})
}

func (e *Engine) SyncTowerRemoved(x, y int) error {
	return e.Send(SyncTypeTowerRemove, TowerData{X: x, Y: y})
}

func (e *Engine) SyncPhaseChange(phase string, round int) error {
	return e.Send(SyncTypePhaseChange, PhaseData{Phase: phase, Round: round})
}

func (e *Engine) SyncReadyState(ready bool, round int) error {
	return e.Send(SyncTypeReadyState, ReadyData{Ready: ready, Round: round})
}

// SyncGameEvent sends a free-form tagged event.
func (e *Engine) SyncGameEvent(eventType string, eventData map[string]any) error {
	if eventData == nil {
		eventData = map[string]any{}
	}
	return e.Send(SyncTypeGameEvent, GameEventData{EventType: eventType, EventData: eventData})
}

func (e *Engine) SyncBarrier(b BarrierData) error {
	return e.Send(SyncTypeBarrier, b)
}

func (e *Engine) SyncPlayerState(s PlayerStateData) error {
	return e.Send(SyncTypePlayerState, s)
}
