package duel

// Phase is the lifecycle stage of a duel session.
type Phase string

const (
	PhaseLobby           Phase = "LOBBY"
	PhaseConnecting      Phase = "CONNECTING"
	PhaseWaitingOpponent Phase = "WAITING_OPPONENT"
	PhaseSyncing         Phase = "SYNCING"
	PhasePlanning        Phase = "PLANNING"
	PhaseBattle          Phase = "BATTLE"
	PhaseRoundEnd        Phase = "ROUND_END"
	PhaseMatchEnd        Phase = "MATCH_END"
	PhaseDisconnected    Phase = "DISCONNECTED"
)

// inMatch reports whether p is one of the phases that exist only while a
// peer is attached.
func (p Phase) inMatch() bool {
	switch p {
	case PhaseSyncing, PhasePlanning, PhaseBattle, PhaseRoundEnd, PhaseMatchEnd:
		return true
	default:
		return false
	}
}

// PhaseChange is handed to phase subscribers.
type PhaseChange struct {
	From  Phase
	To    Phase
	Round int
	Role  Role
}
