package duelsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSyncMessage wraps every failure to read a GAME_STATE payload.
var ErrInvalidSyncMessage = errors.New("invalid sync message")

// SyncType is the subtype carried inside a GAME_STATE message.
type SyncType string

const (
	SyncTypeCurveUpdate       SyncType = "CURVE_UPDATE"
	SyncTypeCurvePointAdd     SyncType = "CURVE_POINT_ADD"
	SyncTypeCurvePointMove    SyncType = "CURVE_POINT_MOVE"
	SyncTypeCurvePointRemove  SyncType = "CURVE_POINT_REMOVE"
	SyncTypeCurveMethodChange SyncType = "CURVE_METHOD_CHANGE"
	SyncTypeTowerPlace        SyncType = "TOWER_PLACE"
	SyncTypeTowerRemove       SyncType = "TOWER_REMOVE"
	SyncTypePhaseChange       SyncType = "PHASE_CHANGE"
	SyncTypeReadyState        SyncType = "READY_STATE"
	SyncTypeGameEvent         SyncType = "GAME_EVENT"
	SyncTypeFullSync          SyncType = "FULL_SYNC"
	SyncTypeBarrier           SyncType = "BARRIER"
	SyncTypePlayerState       SyncType = "PLAYER_STATE"
)

var knownSyncTypes = map[SyncType]struct{}{
	SyncTypeCurveUpdate:       {},
	SyncTypeCurvePointAdd:     {},
	SyncTypeCurvePointMove:    {},
	SyncTypeCurvePointRemove:  {},
	SyncTypeCurveMethodChange: {},
	SyncTypeTowerPlace:        {},
	SyncTypeTowerRemove:       {},
	SyncTypePhaseChange:       {},
	SyncTypeReadyState:        {},
	SyncTypeGameEvent:         {},
	SyncTypeFullSync:          {},
	SyncTypeBarrier:           {},
	SyncTypePlayerState:       {},
}

// Valid reports whether t is a known sync type.
func (t SyncType) Valid() bool {
	_, ok := knownSyncTypes[t]
	return ok
}

// SyncMessage is the payload of a GAME_STATE wire message. Sequence numbers
// are per sender and informational only.
type SyncMessage struct {
	Type     SyncType       `json:"sync_type"`
	Data     map[string]any `json:"data"`
	Sequence int64          `json:"sequence"`
}

// ToPayload converts s into a wire payload.
func (s SyncMessage) ToPayload() map[string]any {
	data := s.Data
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"sync_type": string(s.Type),
		"data":      data,
		"sequence":  s.Sequence,
	}
}

// FromPayload parses a wire payload. A missing data field reads as empty and
// a missing sequence as zero; anything else malformed is an error.
func FromPayload(p map[string]any) (SyncMessage, error) {
	raw, ok := p["sync_type"]
	if !ok {
		return SyncMessage{}, fmt.Errorf("%w: missing sync_type", ErrInvalidSyncMessage)
	}
	name, ok := raw.(string)
	if !ok {
		return SyncMessage{}, fmt.Errorf("%w: sync_type is %T", ErrInvalidSyncMessage, raw)
	}
	t := SyncType(name)
	if !t.Valid() {
		return SyncMessage{}, fmt.Errorf("%w: unknown sync_type %q", ErrInvalidSyncMessage, name)
	}

	data := map[string]any{}
	if v, ok := p["data"]; ok && v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			return SyncMessage{}, fmt.Errorf("%w: data is %T", ErrInvalidSyncMessage, v)
		}
		data = m
	}

	var seq int64
	if v, ok := p["sequence"]; ok && v != nil {
		n, err := toInt64(v)
		if err != nil {
			return SyncMessage{}, fmt.Errorf("%w: sequence: %v", ErrInvalidSyncMessage, err)
		}
		seq = n
	}

	return SyncMessage{Type: t, Data: data, Sequence: seq}, nil
}

// DecodeData unpacks Data into one of the typed payloads below.
func (s SyncMessage) DecodeData(v any) error {
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSyncMessage, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s data: %v", ErrInvalidSyncMessage, s.Type, err)
	}
	return nil
}

// toInt64 accepts the integer shapes the wire codecs produce.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// toData flattens a typed payload into the generic map carried on the wire.
func toData(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Point is a path control point, carried as [x, y].
type Point [2]float64

func (p Point) X() float64 { return p[0] }
func (p Point) Y() float64 { return p[1] }

// CurveData is a complete path: FULL_SYNC and CURVE_UPDATE.
type CurveData struct {
	ControlPoints       []Point `json:"control_points"`
	InterpolationMethod string  `json:"interpolation_method"`
}

// PointData is CURVE_POINT_ADD.
type PointData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MovePointData is CURVE_POINT_MOVE.
type MovePointData struct {
	Index int     `json:"index"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// RemovePointData is CURVE_POINT_REMOVE.
type RemovePointData struct {
	Index int `json:"index"`
}

// MethodData is CURVE_METHOD_CHANGE.
type MethodData struct {
	Method string `json:"method"`
}

// TowerData is TOWER_PLACE and TOWER_REMOVE. TowerType is empty on removal.
type TowerData struct {
	TowerType string `json:"tower_type,omitempty"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

// PhaseData is PHASE_CHANGE.
type PhaseData struct {
	Phase string `json:"phase"`
	Round int    `json:"round,omitempty"`
}

// ReadyData is READY_STATE.
type ReadyData struct {
	Ready bool `json:"ready"`
	Round int  `json:"round,omitempty"`
}

// Game event tags understood by the duel session.
const (
	GameEventDamage        = "damage"
	GameEventRoundComplete = "round_complete"
)

// GameEventData is GAME_EVENT.
type GameEventData struct {
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data"`
}

// Barrier transitions. Both peers vote; the transition fires when both votes
// for the same round are in.
const (
	BarrierSynced        = "synced"
	BarrierBattle        = "battle"
	BarrierRoundComplete = "round_complete"
)

// BarrierData is BARRIER. Lives and money are set on round_complete votes.
type BarrierData struct {
	Transition string `json:"transition"`
	Round      int    `json:"round"`
	Lives      *int   `json:"lives,omitempty"`
	Money      *int   `json:"money,omitempty"`
}

// PlayerStateData is PLAYER_STATE.
type PlayerStateData struct {
	Lives int `json:"lives"`
	Money int `json:"money"`
}
