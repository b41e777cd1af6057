package duel

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pathduel/go/internal/duelsync"
	"github.com/mcdev12/pathduel/go/internal/path"
	"github.com/mcdev12/pathduel/go/internal/pubsub"
)

// registerHandlersLocked subscribes the session to every inbound sync type.
func (s *Session) registerHandlersLocked() {
	e := s.engine
	s.syncSubs = pubsub.Multi{
		e.Subscribe(duelsync.SyncTypeFullSync, s.onFullCurve),
		e.Subscribe(duelsync.SyncTypeCurveUpdate, s.onFullCurve),
		e.Subscribe(duelsync.SyncTypeCurvePointAdd, s.onPointAdd),
		e.Subscribe(duelsync.SyncTypeCurvePointMove, s.onPointMove),
		e.Subscribe(duelsync.SyncTypeCurvePointRemove, s.onPointRemove),
		e.Subscribe(duelsync.SyncTypeCurveMethodChange, s.onMethodChange),
		e.Subscribe(duelsync.SyncTypeTowerPlace, s.onTowerPlace),
		e.Subscribe(duelsync.SyncTypeTowerRemove, s.onTowerRemove),
		e.Subscribe(duelsync.SyncTypePhaseChange, s.onPhaseChange),
		e.Subscribe(duelsync.SyncTypeReadyState, s.onReadyState),
		e.Subscribe(duelsync.SyncTypeGameEvent, s.onGameEvent),
		e.Subscribe(duelsync.SyncTypeBarrier, s.onBarrier),
		e.Subscribe(duelsync.SyncTypePlayerState, s.onPlayerState),
	}
}

// decode unpacks msg into v and logs a bad payload. Returns false when the
// message should be dropped.
func decode(msg duelsync.SyncMessage, v any) bool {
	if err := msg.DecodeData(v); err != nil {
		log.Warn().
			Err(err).
			Str("sync_type", string(msg.Type)).
			Int64("sequence", msg.Sequence).
			Msg("dropping sync message")
		return false
	}
	return true
}

// activeLocked reports whether inbound state may still be applied.
func (s *Session) activeLocked() bool {
	return s.phase.inMatch() && s.incomingPath != nil
}

func (s *Session) onFullCurve(msg duelsync.SyncMessage) {
	var data duelsync.CurveData
	if !decode(msg, &data) {
		return
	}
	points := make([]path.Point, len(data.ControlPoints))
	for i, p := range data.ControlPoints {
		points[i] = path.Point{X: p.X(), Y: p.Y()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return
	}
	if err := s.incomingPath.Replace(points, data.InterpolationMethod); err != nil {
		log.Warn().Err(err).Msg("failed to mirror opponent path")
		return
	}
	log.Debug().Int("points", len(points)).Msg("received full path")
}

func (s *Session) onPointAdd(msg duelsync.SyncMessage) {
	var data duelsync.PointData
	if !decode(msg, &data) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return
	}
	if _, err := s.incomingPath.AddPoint(data.X, data.Y); err != nil {
		log.Warn().Err(err).Float64("x", data.X).Float64("y", data.Y).Msg("failed to mirror added point")
	}
}

func (s *Session) onPointMove(msg duelsync.SyncMessage) {
	var data duelsync.MovePointData
	if !decode(msg, &data) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return
	}
	if err := s.incomingPath.MovePoint(data.Index, data.X, data.Y); err != nil {
		log.Warn().Err(err).Int("index", data.Index).Msg("failed to mirror moved point")
	}
}

func (s *Session) onPointRemove(msg duelsync.SyncMessage) {
	var data duelsync.RemovePointData
	if !decode(msg, &data) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return
	}
	if err := s.incomingPath.RemovePoint(data.Index); err != nil {
		log.Warn().Err(err).Int("index", data.Index).Msg("failed to mirror removed point")
	}
}

func (s *Session) onMethodChange(msg duelsync.SyncMessage) {
	var data duelsync.MethodData
	if !decode(msg, &data) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return
	}
	if err := s.incomingPath.SetMethod(data.Method); err != nil {
		log.Warn().Err(err).Msg("failed to mirror method change")
	}
}

func (s *Session) onTowerPlace(msg duelsync.SyncMessage) {
	var data duelsync.TowerData
	if !decode(msg, &data) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return
	}
	s.remote.Towers[Cell{X: data.X, Y: data.Y}] = data.TowerType
}

func (s *Session) onTowerRemove(msg duelsync.SyncMessage) {
	var data duelsync.TowerData
	if !decode(msg, &data) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return
	}
	delete(s.remote.Towers, Cell{X: data.X, Y: data.Y})
}

func (s *Session) onPhaseChange(msg duelsync.SyncMessage) {
	var data duelsync.PhaseData
	if !decode(msg, &data) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remotePhase = Phase(data.Phase)
}

func (s *Session) onReadyState(msg duelsync.SyncMessage) {
	var data duelsync.ReadyData
	if !decode(msg, &data) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return
	}
	if data.Round != 0 && data.Round != s.round {
		log.Debug().Int("round", data.Round).Int("current_round", s.round).Msg("ignoring stale ready state")
		return
	}
	s.remote.Ready = data.Ready
	log.Info().Bool("ready", data.Ready).Msg("opponent ready state")
	s.checkBattleLocked()
}

func (s *Session) onGameEvent(msg duelsync.SyncMessage) {
	var data duelsync.GameEventData
	if !decode(msg, &data) {
		return
	}

	switch data.EventType {
	case duelsync.GameEventDamage:
		s.onDamage(data)
	case duelsync.GameEventRoundComplete:
		// Peers without barrier support announce the round this way.
		s.mu.Lock()
		if s.activeLocked() {
			s.remoteVoteLocked(duelsync.BarrierData{
				Transition: duelsync.BarrierRoundComplete,
				Round:      s.round,
			})
		}
		s.mu.Unlock()
	default:
		s.out.push(func() { s.gameFeed.Publish(data) })
	}
}

// onDamage applies damage the opponent reported to the local player and
// reports the new totals back.
func (s *Session) onDamage(data duelsync.GameEventData) {
	amount, ok := intField(data.EventData, "damage")
	if !ok || amount <= 0 {
		log.Warn().Interface("event_data", data.EventData).Msg("ignoring malformed damage event")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return
	}
	s.local.Lives -= amount
	log.Info().Int("damage", amount).Int("lives", s.local.Lives).Msg("took damage")

	state := duelsync.PlayerStateData{Lives: s.local.Lives, Money: s.local.Money}
	s.enqueueSync(duelsync.SyncTypePlayerState, func(e *duelsync.Engine) error {
		return e.SyncPlayerState(state)
	})
}

func (s *Session) onBarrier(msg duelsync.SyncMessage) {
	var data duelsync.BarrierData
	if !decode(msg, &data) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return
	}
	s.remoteVoteLocked(data)
}

func (s *Session) onPlayerState(msg duelsync.SyncMessage) {
	var data duelsync.PlayerStateData
	if !decode(msg, &data) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeLocked() {
		return
	}
	s.remote.Lives = data.Lives
	s.remote.Money = data.Money
}

func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), v == float64(int(v))
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	default:
		return 0, false
	}
}
