package duel

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pathduel/go/internal/duel/events"
	"github.com/mcdev12/pathduel/go/internal/duelsync"
)

// A barrier transition fires once both peers have voted for it. Votes are
// keyed by transition and round so a late vote from an earlier round can
// never move the current one.
type voteKey struct {
	transition string
	round      int
}

type vote struct {
	local  bool
	remote bool
	fired  bool

	// Lives and money as each side reported them with its round_complete
	// vote. Both peers evaluate the round from these same four numbers.
	localLives, localMoney   int
	remoteLives, remoteMoney *int
}

func (s *Session) voteLocked(k voteKey) *vote {
	v, ok := s.votes[k]
	if !ok {
		v = &vote{}
		s.votes[k] = v
	}
	return v
}

// castVoteLocked records and sends the local vote for k, once.
func (s *Session) castVoteLocked(transition string, round int) {
	k := voteKey{transition: transition, round: round}
	v := s.voteLocked(k)
	if v.local {
		return
	}
	v.local = true

	b := duelsync.BarrierData{Transition: transition, Round: round}
	if transition == duelsync.BarrierRoundComplete {
		v.localLives, v.localMoney = s.local.Lives, s.local.Money
		lives, money := v.localLives, v.localMoney
		b.Lives, b.Money = &lives, &money
	}

	log.Debug().
		Str("session_id", s.id).
		Str("transition", transition).
		Int("round", round).
		Msg("barrier vote cast")

	s.enqueueSync(duelsync.SyncTypeBarrier, func(e *duelsync.Engine) error {
		return e.SyncBarrier(b)
	})
	s.maybeFireLocked(k)
}

// remoteVoteLocked records the opponent's vote for b.
func (s *Session) remoteVoteLocked(b duelsync.BarrierData) {
	if b.Round < s.round {
		log.Debug().
			Str("transition", b.Transition).
			Int("round", b.Round).
			Int("current_round", s.round).
			Msg("ignoring stale barrier vote")
		return
	}

	k := voteKey{transition: b.Transition, round: b.Round}
	v := s.voteLocked(k)
	if v.remote {
		return
	}
	v.remote = true
	v.remoteLives, v.remoteMoney = b.Lives, b.Money

	// The opponent finished the round: acknowledge with our own vote.
	if b.Transition == duelsync.BarrierRoundComplete && b.Round == s.round && s.phase == PhaseBattle {
		s.enterRoundEndLocked()
	}
	s.maybeFireLocked(k)
}

func (s *Session) maybeFireLocked(k voteKey) {
	v := s.votes[k]
	if v == nil || v.fired || !v.local || !v.remote {
		return
	}
	if k.round != s.round {
		return
	}
	v.fired = true

	switch k.transition {
	case duelsync.BarrierSynced:
		if s.phase == PhaseSyncing {
			s.setPhaseLocked(PhasePlanning)
		}
	case duelsync.BarrierBattle:
		if s.phase == PhasePlanning {
			log.Info().Str("session_id", s.id).Int("round", s.round).Msg("starting battle")
			s.setPhaseLocked(PhaseBattle)
		}
	case duelsync.BarrierRoundComplete:
		if s.phase == PhaseRoundEnd {
			s.finishRoundLocked(v)
		}
	default:
		log.Warn().Str("transition", k.transition).Msg("unknown barrier transition")
	}
}

// checkBattleLocked votes for battle once both ready flags are set in this
// peer's view.
func (s *Session) checkBattleLocked() {
	if s.phase == PhasePlanning && s.local.Ready && s.remote.Ready {
		s.castVoteLocked(duelsync.BarrierBattle, s.round)
	}
}

func (s *Session) enterRoundEndLocked() {
	log.Info().Str("session_id", s.id).Int("round", s.round).Msg("round complete")
	s.setPhaseLocked(PhaseRoundEnd)
	s.castVoteLocked(duelsync.BarrierRoundComplete, s.round)
}

// finishRoundLocked evaluates the round the same way on both peers.
func (s *Session) finishRoundLocked(v *vote) {
	if v.remoteLives != nil {
		s.remote.Lives = *v.remoteLives
	}
	if v.remoteMoney != nil {
		s.remote.Money = *v.remoteMoney
	}
	localLives, remoteLives := v.localLives, s.remote.Lives

	rules := s.cfg.Rules
	switch {
	case s.round >= rules.MaxRounds:
		log.Info().Str("session_id", s.id).Msg("match complete")
		s.endMatchLocked(localLives, remoteLives)
	case localLives <= 0:
		log.Info().Str("session_id", s.id).Msg("local player defeated")
		s.endMatchLocked(localLives, remoteLives)
	case remoteLives <= 0:
		log.Info().Str("session_id", s.id).Msg("remote player defeated")
		s.endMatchLocked(localLives, remoteLives)
	default:
		s.round++
		s.local.Ready = false
		s.remote.Ready = false
		for k := range s.votes {
			if k.round < s.round {
				delete(s.votes, k)
			}
		}
		log.Info().Str("session_id", s.id).Int("round", s.round).Msg("starting round")
		s.setPhaseLocked(PhasePlanning)
	}
}

func (s *Session) endMatchLocked(localLives, remoteLives int) {
	s.setPhaseLocked(PhaseMatchEnd)

	outcome := "draw"
	switch {
	case localLives > remoteLives:
		outcome = "win"
	case localLives < remoteLives:
		outcome = "loss"
	}
	s.enqueueEventLocked(events.EventTypeMatchEnded, events.MatchEndedPayload{
		Round:       s.round,
		LocalLives:  localLives,
		RemoteLives: remoteLives,
		Outcome:     outcome,
	})
}
