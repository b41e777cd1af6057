package duel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pathduel/go/internal/duel/events"
	"github.com/mcdev12/pathduel/go/internal/duelsync"
	"github.com/mcdev12/pathduel/go/internal/path"
	"github.com/mcdev12/pathduel/go/internal/pubsub"
	"github.com/mcdev12/pathduel/go/internal/transport"
)

var (
	ErrWrongPhase     = errors.New("action not allowed in the current phase")
	ErrNotConnected   = errors.New("no opponent connected")
	ErrSessionBusy    = errors.New("session is already hosting or joined")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrCellOccupied   = errors.New("a tower already stands on that cell")
	ErrNoTower        = errors.New("no tower on that cell")
	ErrReadyCommitted = errors.New("ready state already committed for this round")
	ErrEmptyTowerType = errors.New("tower type must not be empty")
)

// Config holds configuration for a duel session
type Config struct {
	// BindAddress is the interface Host listens on.
	BindAddress    string
	ConnectTimeout time.Duration
	// EventTimeout bounds a single lifecycle event publish.
	EventTimeout time.Duration
	Transport    transport.Config
	Rules        Rules
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		BindAddress:    "127.0.0.1",
		ConnectTimeout: 5 * time.Second,
		EventTimeout:   5 * time.Second,
		Transport:      transport.DefaultConfig(),
		Rules:          DefaultRules(),
	}
}

// Option customises a session.
type Option func(*Session)

// WithPublisher sends lifecycle events to p instead of the log.
func WithPublisher(p events.Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

// WithTransport makes the session use an already constructed transport.
func WithTransport(t *transport.Transport) Option {
	return func(s *Session) { s.tr = t }
}

// Session is one peer's view of a 1v1 duel. It owns its transport and keeps
// a local copy of both players. Every mutable field is guarded by mu.
type Session struct {
	id        string
	cfg       Config
	tr        *transport.Transport
	publisher events.Publisher
	out       *writeQueue

	phaseFeed *pubsub.Feed[PhaseChange]
	gameFeed  *pubsub.Feed[duelsync.GameEventData]
	connSub   pubsub.Subscription

	mu           sync.Mutex
	phase        Phase
	remotePhase  Phase
	role         Role
	round        int
	local        *Player
	remote       *Player
	editPath     *path.Path
	incomingPath *path.Path
	engine       *duelsync.Engine
	syncSubs     pubsub.Multi
	votes        map[voteKey]*vote
	cancelAccept context.CancelFunc
}

// NewSession creates a session in the lobby.
func NewSession(cfg Config, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		cfg:       cfg,
		phase:     PhaseLobby,
		phaseFeed: pubsub.NewFeed[PhaseChange]("duel.phase"),
		gameFeed:  pubsub.NewFeed[duelsync.GameEventData]("duel.game_event"),
		votes:     make(map[voteKey]*vote),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tr == nil {
		tcfg := cfg.Transport
		if tcfg.SenderID == "" {
			tcfg.SenderID = s.id
		}
		s.tr = transport.New(tcfg)
	}
	if s.publisher == nil {
		s.publisher = events.NewLogPublisher()
	}
	if s.cfg.ConnectTimeout <= 0 {
		s.cfg.ConnectTimeout = DefaultConfig().ConnectTimeout
	}
	if s.cfg.EventTimeout <= 0 {
		s.cfg.EventTimeout = DefaultConfig().EventTimeout
	}
	if s.cfg.Rules == (Rules{}) {
		s.cfg.Rules = DefaultRules()
	}

	s.out = newWriteQueue()
	s.connSub = s.tr.SubscribeConnection(s.onConnection)
	return s
}

// Host starts listening on port and returns once the socket is bound. The
// opponent is accepted in the background until ctx is done.
func (s *Session) Host(ctx context.Context, port int) error {
	if err := s.beginConnecting(); err != nil {
		return err
	}

	if err := s.tr.Listen(s.cfg.BindAddress, port); err != nil {
		s.backToLobby(err)
		return fmt.Errorf("host on port %d: %w", port, err)
	}

	acceptCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelAccept = cancel
	s.setPhaseLocked(PhaseWaitingOpponent)
	s.mu.Unlock()

	go func() {
		defer cancel()
		if err := s.tr.Accept(acceptCtx); err != nil {
			log.Warn().Err(err).Str("session_id", s.id).Msg("no opponent accepted")
			s.backToLobby(err)
		}
	}()
	return nil
}

// HostWebSocket returns the handler an opponent joins through. Mount it on
// an HTTP server; the first upgrade becomes the peer.
func (s *Session) HostWebSocket() (http.Handler, error) {
	if err := s.beginConnecting(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.setPhaseLocked(PhaseWaitingOpponent)
	s.mu.Unlock()
	return s.tr.WebSocketHandler(), nil
}

// Join dials a hosting peer. On success the session is already syncing.
func (s *Session) Join(ctx context.Context, address string, port int) error {
	if err := s.beginConnecting(); err != nil {
		return err
	}
	if err := s.tr.Connect(ctx, address, port, s.cfg.ConnectTimeout); err != nil {
		s.backToLobby(err)
		return fmt.Errorf("join %s:%d: %w", address, port, err)
	}
	return nil
}

// JoinWebSocket dials a peer hosting through HostWebSocket.
func (s *Session) JoinWebSocket(ctx context.Context, url string) error {
	if err := s.beginConnecting(); err != nil {
		return err
	}
	if err := s.tr.ConnectWebSocket(ctx, url, s.cfg.ConnectTimeout); err != nil {
		s.backToLobby(err)
		return fmt.Errorf("join %s: %w", url, err)
	}
	return nil
}

func (s *Session) beginConnecting() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseLobby {
		return fmt.Errorf("%w: phase %s", ErrSessionBusy, s.phase)
	}
	s.setPhaseLocked(PhaseConnecting)
	return nil
}

// backToLobby undoes a host or join attempt that never produced a peer.
func (s *Session) backToLobby(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseConnecting && s.phase != PhaseWaitingOpponent {
		return
	}
	log.Info().Err(cause).Str("session_id", s.id).Msg("returning to lobby")
	s.role = RoleNone
	s.cancelAccept = nil
	s.setPhaseLocked(PhaseLobby)
}

// Disconnect leaves the duel. It is safe to call more than once.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.phase == PhaseDisconnected {
		s.mu.Unlock()
		return
	}
	cancel := s.cancelAccept
	s.cancelAccept = nil
	s.setPhaseLocked(PhaseDisconnected)
	s.unbindLocked()
	s.mu.Unlock()

	log.Info().Str("session_id", s.id).Msg("disconnecting from duel")
	if cancel != nil {
		cancel()
	}
	if err := s.tr.Close(); err != nil {
		log.Debug().Err(err).Msg("close transport")
	}
}

// Close disconnects and releases the session's goroutines. Queued events
// are delivered first. Close waits for the write goroutine, so phase and game
// event callbacks must not call it directly; they use go s.Close().
func (s *Session) Close() error {
	s.Disconnect()
	s.connSub.Unsubscribe()
	s.out.close(s.cfg.EventTimeout)
	return s.publisher.Close()
}

func (s *Session) onConnection(ev transport.ConnectionEvent) {
	if ev.Connected {
		s.onConnected(ev)
		return
	}
	s.onDisconnected(ev)
}

// onConnected seeds both players and paths, binds the sync layer and opens
// the synced barrier. It runs before the transport reads any message.
func (s *Session) onConnected(ev transport.ConnectionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseConnecting && s.phase != PhaseWaitingOpponent {
		log.Warn().
			Str("session_id", s.id).
			Str("phase", string(s.phase)).
			Msg("unexpected connection, ignoring")
		return
	}

	rules := s.cfg.Rules
	s.role = RoleForSide(ev.Side)
	s.round = 1
	s.cancelAccept = nil

	s.editPath = path.NewDefault(rules.PathStartX, rules.PathEndX, rules.PathY)
	s.incomingPath = path.NewDefault(rules.PathStartX, rules.PathEndX, rules.PathY)
	if err := s.editPath.SetMethod(rules.DefaultMethod); err != nil {
		log.Warn().Err(err).Msg("keeping linear interpolation")
	}
	s.local = newPlayer(s.role, rules, s.editPath)
	s.remote = newPlayer(s.role.Opponent(), rules, s.incomingPath)
	s.votes = make(map[voteKey]*vote)

	s.engine = duelsync.NewEngine(s.tr)
	s.registerHandlersLocked()

	log.Info().
		Str("session_id", s.id).
		Str("role", s.role.String()).
		Str("remote_addr", ev.RemoteAddr).
		Msg("opponent connected")

	s.setPhaseLocked(PhaseSyncing)
	curve := curveData(s.editPath)
	s.enqueueSync(duelsync.SyncTypeFullSync, func(e *duelsync.Engine) error {
		return e.SyncFullCurve(curve)
	})
	s.castVoteLocked(duelsync.BarrierSynced, s.round)
}

func (s *Session) onDisconnected(ev transport.ConnectionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseDisconnected || s.phase == PhaseLobby {
		return
	}
	log.Info().
		Err(ev.Err).
		Str("session_id", s.id).
		Msg("opponent link lost")

	s.setPhaseLocked(PhaseDisconnected)
	s.unbindLocked()

	reason := "unknown"
	if ev.Err != nil {
		reason = ev.Err.Error()
	}
	s.enqueueEventLocked(events.EventTypePeerDisconnected, events.PeerDisconnectedPayload{Reason: reason})
}

func (s *Session) unbindLocked() {
	s.syncSubs.Unsubscribe()
	s.syncSubs = nil
	if s.engine != nil {
		s.engine.Close()
	}
}

// setPhaseLocked records a transition and queues its side effects: the
// PHASE_CHANGE sync, phase subscribers and the lifecycle event.
func (s *Session) setPhaseLocked(p Phase) {
	if s.phase == p {
		return
	}
	change := PhaseChange{From: s.phase, To: p, Round: s.round, Role: s.role}
	s.phase = p

	switch p {
	case PhasePlanning:
		if s.editPath != nil {
			s.editPath.Unlock()
		}
	case PhaseBattle:
		if s.editPath != nil {
			s.editPath.Lock()
		}
	}

	log.Info().
		Str("session_id", s.id).
		Str("from", string(change.From)).
		Str("to", string(change.To)).
		Int("round", s.round).
		Msg("phase changed")

	if p.inMatch() && s.engine != nil {
		round := s.round
		s.enqueueSync(duelsync.SyncTypePhaseChange, func(e *duelsync.Engine) error {
			return e.SyncPhaseChange(string(p), round)
		})
	}
	s.out.push(func() { s.phaseFeed.Publish(change) })
	s.enqueueEventLocked(events.EventTypePhaseChanged, events.PhaseChangedPayload{
		From:  string(change.From),
		To:    string(change.To),
		Round: change.Round,
	})
}

// enqueueSync queues a send on the write pump.
func (s *Session) enqueueSync(t duelsync.SyncType, send func(*duelsync.Engine) error) {
	e := s.engine
	if e == nil {
		return
	}
	s.out.push(func() {
		if err := send(e); err != nil {
			ev := log.Warn()
			if errors.Is(err, transport.ErrNotConnected) {
				ev = log.Debug()
			}
			ev.Err(err).Str("sync_type", string(t)).Msg("sync send failed")
		}
	})
}

func (s *Session) enqueueEventLocked(t events.EventType, payload interface{}) {
	ev, err := events.NewEvent(t, s.id, payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to build duel event")
		return
	}
	ev.Role = s.role.String()
	ev.Phase = string(s.phase)
	ev.Round = s.round

	s.out.push(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.EventTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, ev); err != nil {
			log.Warn().
				Err(err).
				Str("event_type", string(t)).
				Msg("failed to publish duel event")
		}
	})
}

// Flush waits until every queued send and notification has been handed off.
func (s *Session) Flush(timeout time.Duration) bool {
	return s.out.flush(timeout)
}

// SubscribePhase registers fn for phase transitions. Callbacks run in order
// on the session's write goroutine, never under the session lock. They must
// not block on that goroutine: calling Close from a callback stalls until
// EventTimeout.
func (s *Session) SubscribePhase(fn func(PhaseChange)) pubsub.Subscription {
	return s.phaseFeed.Subscribe(fn)
}

// SubscribeGameEvents registers fn for free-form game events from the peer.
// Callbacks run like those of SubscribePhase.
func (s *Session) SubscribeGameEvents(fn func(duelsync.GameEventData)) pubsub.Subscription {
	return s.gameFeed.Subscribe(fn)
}

func (s *Session) ID() string { return s.id }

// Addr returns the address Host bound, useful with port 0.
func (s *Session) Addr() string { return s.tr.Addr() }

// Port returns the port Host bound.
func (s *Session) Port() int { return s.tr.Port() }

func (s *Session) Transport() *transport.Transport { return s.tr }

// TransportStats returns the link counters.
func (s *Session) TransportStats() map[string]interface{} { return s.tr.Stats() }

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// RemotePhase is the last phase the opponent announced.
func (s *Session) RemotePhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remotePhase
}

// Role is RoleNone until a peer is attached.
func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *Session) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

func (s *Session) IsConnected() bool {
	s.mu.Lock()
	phase := s.phase
	s.mu.Unlock()
	return phase.inMatch() && s.tr.IsConnected()
}

// Sync returns the bound sync engine, or nil before a peer connects.
func (s *Session) Sync() *duelsync.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

func (s *Session) LocalPlayer() (PlayerView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local == nil {
		return PlayerView{}, false
	}
	return s.local.view(), true
}

func (s *Session) RemotePlayer() (PlayerView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remote == nil {
		return PlayerView{}, false
	}
	return s.remote.view(), true
}

// EditPath is the path this peer designs for the opponent's creeps.
func (s *Session) EditPath() (PathView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editPath == nil {
		return PathView{}, false
	}
	return viewPath(s.editPath), true
}

// IncomingPath is the mirror of the path the opponent designs.
func (s *Session) IncomingPath() (PathView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incomingPath == nil {
		return PathView{}, false
	}
	return viewPath(s.incomingPath), true
}

// Snapshot is a JSON friendly copy of the whole session.
type Snapshot struct {
	SessionID   string      `json:"session_id"`
	Phase       Phase       `json:"phase"`
	RemotePhase Phase       `json:"remote_phase,omitempty"`
	Role        string      `json:"role"`
	Round       int         `json:"round"`
	Connected   bool        `json:"connected"`
	Local       *PlayerView `json:"local,omitempty"`
	Remote      *PlayerView `json:"remote,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	connected := s.tr.IsConnected()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:   s.id,
		Phase:       s.phase,
		RemotePhase: s.remotePhase,
		Role:        s.role.String(),
		Round:       s.round,
		Connected:   connected && s.phase.inMatch(),
	}
	if s.local != nil {
		v := s.local.view()
		snap.Local = &v
	}
	if s.remote != nil {
		v := s.remote.view()
		snap.Remote = &v
	}
	return snap
}

func curveData(p *path.Path) duelsync.CurveData {
	pts := p.Points()
	out := make([]duelsync.Point, len(pts))
	for i, pt := range pts {
		out[i] = duelsync.Point{pt.X, pt.Y}
	}
	return duelsync.CurveData{ControlPoints: out, InterpolationMethod: p.Method()}
}
