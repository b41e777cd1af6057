package duel

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pathduel/go/internal/duelsync"
)

// requireLocked checks the session has a peer and is in one of phases.
func (s *Session) requireLocked(phases ...Phase) error {
	if !s.phase.inMatch() || s.engine == nil {
		return ErrNotConnected
	}
	for _, p := range phases {
		if s.phase == p {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrWrongPhase, s.phase)
}

// AddPathPoint adds a control point to the local edit path.
func (s *Session) AddPathPoint(x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(PhasePlanning); err != nil {
		return err
	}
	if _, err := s.editPath.AddPoint(x, y); err != nil {
		return err
	}
	s.enqueueSync(duelsync.SyncTypeCurvePointAdd, func(e *duelsync.Engine) error {
		return e.SyncPointAdded(x, y)
	})
	return nil
}

// MovePathPoint moves a control point of the local edit path.
func (s *Session) MovePathPoint(index int, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(PhasePlanning); err != nil {
		return err
	}
	if err := s.editPath.MovePoint(index, x, y); err != nil {
		return err
	}
	s.enqueueSync(duelsync.SyncTypeCurvePointMove, func(e *duelsync.Engine) error {
		return e.SyncPointMoved(index, x, y)
	})
	return nil
}

// RemovePathPoint removes a control point of the local edit path.
func (s *Session) RemovePathPoint(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(PhasePlanning); err != nil {
		return err
	}
	if err := s.editPath.RemovePoint(index); err != nil {
		return err
	}
	s.enqueueSync(duelsync.SyncTypeCurvePointRemove, func(e *duelsync.Engine) error {
		return e.SyncPointRemoved(index)
	})
	return nil
}

// SetPathMethod changes the interpolation method of the local edit path.
func (s *Session) SetPathMethod(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(PhasePlanning); err != nil {
		return err
	}
	if err := s.editPath.SetMethod(method); err != nil {
		return err
	}
	s.enqueueSync(duelsync.SyncTypeCurveMethodChange, func(e *duelsync.Engine) error {
		return e.SyncMethodChanged(method)
	})
	return nil
}

// ResyncPath sends the whole local edit path again.
func (s *Session) ResyncPath() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(PhaseSyncing, PhasePlanning, PhaseBattle, PhaseRoundEnd); err != nil {
		return err
	}
	curve := curveData(s.editPath)
	s.enqueueSync(duelsync.SyncTypeCurveUpdate, func(e *duelsync.Engine) error {
		return e.SyncCurveUpdate(curve)
	})
	return nil
}

// PlaceTower puts a tower on a free cell.
func (s *Session) PlaceTower(towerType string, x, y int) error {
	if towerType == "" {
		return ErrEmptyTowerType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(PhasePlanning); err != nil {
		return err
	}
	cell := Cell{X: x, Y: y}
	if _, taken := s.local.Towers[cell]; taken {
		return fmt.Errorf("%w: (%d, %d)", ErrCellOccupied, x, y)
	}
	s.local.Towers[cell] = towerType
	s.enqueueSync(duelsync.SyncTypeTowerPlace, func(e *duelsync.Engine) error {
		return e.SyncTowerPlaced(towerType, x, y)
	})
	return nil
}

// RemoveTower clears a cell.
func (s *Session) RemoveTower(x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(PhasePlanning); err != nil {
		return err
	}
	cell := Cell{X: x, Y: y}
	if _, ok := s.local.Towers[cell]; !ok {
		return fmt.Errorf("%w: (%d, %d)", ErrNoTower, x, y)
	}
	delete(s.local.Towers, cell)
	s.enqueueSync(duelsync.SyncTypeTowerRemove, func(e *duelsync.Engine) error {
		return e.SyncTowerRemoved(x, y)
	})
	return nil
}

// SetReady flags the local player ready (or not) for battle. Battle starts
// once both peers have seen both flags set.
func (s *Session) SetReady(ready bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(PhasePlanning); err != nil {
		return err
	}
	if !ready {
		if v := s.votes[voteKey{transition: duelsync.BarrierBattle, round: s.round}]; v != nil && v.local {
			return ErrReadyCommitted
		}
	}
	s.local.Ready = ready
	log.Info().Str("session_id", s.id).Bool("ready", ready).Msg("set ready state")

	round := s.round
	s.enqueueSync(duelsync.SyncTypeReadyState, func(e *duelsync.Engine) error {
		return e.SyncReadyState(ready, round)
	})
	s.checkBattleLocked()
	return nil
}

// ReportDamage tells the opponent the local player took amount damage in
// their creep wave. The opponent applies it and reports its totals back.
func (s *Session) ReportDamage(amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(PhaseBattle); err != nil {
		return err
	}
	s.enqueueSync(duelsync.SyncTypeGameEvent, func(e *duelsync.Engine) error {
		return e.SyncGameEvent(duelsync.GameEventDamage, map[string]any{"damage": amount})
	})
	return nil
}

// ReportRoundComplete ends the local battle and votes to close the round.
func (s *Session) ReportRoundComplete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(PhaseBattle); err != nil {
		return err
	}
	s.enterRoundEndLocked()
	return nil
}

// SendGameEvent forwards a free-form tagged event to the opponent.
func (s *Session) SendGameEvent(eventType string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireLocked(PhaseSyncing, PhasePlanning, PhaseBattle, PhaseRoundEnd, PhaseMatchEnd); err != nil {
		return err
	}
	s.enqueueSync(duelsync.SyncTypeGameEvent, func(e *duelsync.Engine) error {
		return e.SyncGameEvent(eventType, data)
	})
	return nil
}
