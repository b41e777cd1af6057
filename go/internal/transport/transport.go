package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pathduel/go/internal/pubsub"
	"github.com/mcdev12/pathduel/go/internal/wire"
)

var (
	ErrNotConnected     = errors.New("transport: not connected")
	ErrAlreadyConnected = errors.New("transport: already connected")
	ErrAlreadyListening = errors.New("transport: already listening")
	ErrNotListening     = errors.New("transport: not listening")

	// Reasons carried by disconnect events.
	ErrPeerClosed       = errors.New("peer closed the connection")
	ErrClosedLocally    = errors.New("connection closed locally")
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")
)

// Side tells which end of the connection this transport is.
type Side int

const (
	SideNone Side = iota
	SideListener
	SideDialer
)

func (s Side) String() string {
	switch s {
	case SideListener:
		return "listener"
	case SideDialer:
		return "dialer"
	default:
		return "none"
	}
}

// ConnectionEvent is published once when a peer connects and once when it
// goes away.
type ConnectionEvent struct {
	Connected    bool
	Side         Side
	ConnectionID string
	RemoteAddr   string
	// Err is the disconnect reason. Nil on connect.
	Err error
}

// carrier moves whole wire frames over some byte transport.
type carrier interface {
	readFrame(stop <-chan struct{}) ([]byte, error)
	writeFrame(frame []byte) error
	remoteAddr() string
	close() error
}

var errStopped = errors.New("receive loop stopped")

// connection is the state of one accepted or dialed peer.
type connection struct {
	id      string
	side    Side
	carrier carrier
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once

	lastSeen atomic.Int64
}

func (c *connection) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// Transport is a strict one-to-one framed message link to a single peer.
// Each duel session constructs and owns its own Transport.
type Transport struct {
	cfg    Config
	framer *wire.Framer

	handlers *pubsub.Topic[wire.MessageType, wire.Message]
	connFeed *pubsub.Feed[ConnectionEvent]

	mu       sync.Mutex
	listener net.Listener
	addr     net.Addr
	cur      *connection

	sendMu sync.Mutex

	framesSent     atomic.Int64
	framesReceived atomic.Int64
	framesDropped  atomic.Int64
}

// New creates an unconnected transport
func New(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	return &Transport{
		cfg:      cfg,
		framer:   wire.NewFramer(cfg.Codec).WithMaxFrameSize(cfg.MaxFrameSize),
		handlers: pubsub.NewTopic[wire.MessageType, wire.Message]("transport"),
		connFeed: pubsub.NewFeed[ConnectionEvent]("transport.connection"),
	}
}

// Config returns the effective configuration.
func (t *Transport) Config() Config { return t.cfg }

// Listen binds the listening socket. Accept must be called to take the peer.
func (t *Transport) Listen(bindAddress string, port int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cur != nil {
		return ErrAlreadyConnected
	}
	if t.listener != nil {
		return ErrAlreadyListening
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(bindAddress, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("listen on %s:%d: %w", bindAddress, port, err)
	}
	t.listener = ln
	t.addr = ln.Addr()

	log.Info().Str("addr", ln.Addr().String()).Msg("listening for opponent")
	return nil
}

// Accept blocks until exactly one peer connects. The listener is closed as
// soon as the first connection arrives so no second peer can queue up.
func (t *Transport) Accept(ctx context.Context) error {
	t.mu.Lock()
	ln := t.listener
	t.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	nc, err := ln.Accept()
	if err != nil {
		t.mu.Lock()
		if t.listener == ln {
			t.listener = nil
		}
		t.mu.Unlock()
		ln.Close()

		if ctx.Err() != nil {
			return fmt.Errorf("accept: %w", ctx.Err())
		}
		return fmt.Errorf("accept: %w", err)
	}

	// Close may have taken the listener while Accept was returning. The
	// check and the install happen under one lock so a late peer is dropped.
	return t.attachIf(newTCPCarrier(nc, t.framer, t.cfg), SideListener, func() error {
		ln.Close()
		if t.listener != ln {
			return fmt.Errorf("accept: %w", ErrClosedLocally)
		}
		t.listener = nil
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		return nil
	})
}

// ListenAndAccept binds and then waits for the peer.
func (t *Transport) ListenAndAccept(ctx context.Context, port int, bindAddress string) error {
	if err := t.Listen(bindAddress, port); err != nil {
		return err
	}
	return t.Accept(ctx)
}

// Connect dials the peer with a bounded timeout.
func (t *Transport) Connect(ctx context.Context, address string, port int, timeout time.Duration) error {
	if t.IsConnected() {
		return ErrAlreadyConnected
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	d := net.Dialer{Timeout: timeout}
	target := net.JoinHostPort(address, strconv.Itoa(port))
	nc, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", target, err)
	}
	return t.attach(newTCPCarrier(nc, t.framer, t.cfg), SideDialer)
}

// attach installs a fresh carrier, announces it and starts the receive loop.
// The connection event goes out before the loop starts so subscribers added
// in the callback see every inbound message.
func (t *Transport) attach(c carrier, side Side) error {
	return t.attachIf(c, side, nil)
}

// attachIf is attach with a precondition checked under t.mu. A non-nil error
// from claim closes c and is returned.
func (t *Transport) attachIf(c carrier, side Side, claim func() error) error {
	t.mu.Lock()
	if claim != nil {
		if err := claim(); err != nil {
			t.mu.Unlock()
			c.close()
			return err
		}
	}
	if t.cur != nil {
		t.mu.Unlock()
		c.close()
		return ErrAlreadyConnected
	}
	conn := &connection{
		id:      uuid.NewString(),
		side:    side,
		carrier: c,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	conn.lastSeen.Store(t.cfg.Clock.Now().UnixNano())
	t.cur = conn
	t.mu.Unlock()

	log.Info().
		Str("connection_id", conn.id).
		Str("side", side.String()).
		Str("remote_addr", c.remoteAddr()).
		Msg("peer connected")

	t.connFeed.Publish(ConnectionEvent{
		Connected:    true,
		Side:         side,
		ConnectionID: conn.id,
		RemoteAddr:   c.remoteAddr(),
	})

	go t.receiveLoop(conn)
	if t.cfg.HeartbeatInterval > 0 {
		go t.heartbeatLoop(conn)
	}
	return nil
}

func (t *Transport) current() *connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}

// IsConnected reports whether a peer is attached.
func (t *Transport) IsConnected() bool {
	return t.current() != nil
}

// Side returns which end this transport is, or SideNone when unconnected.
func (t *Transport) Side() Side {
	if conn := t.current(); conn != nil {
		return conn.side
	}
	return SideNone
}

// Addr returns the bound listener address, or "" if Listen was never called.
func (t *Transport) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.addr == nil {
		return ""
	}
	return t.addr.String()
}

// Port returns the bound listener port, or 0.
func (t *Transport) Port() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tcp, ok := t.addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// RemoteAddr returns the peer address, or "" when unconnected.
func (t *Transport) RemoteAddr() string {
	if conn := t.current(); conn != nil {
		return conn.carrier.remoteAddr()
	}
	return ""
}

// Subscribe registers fn for inbound messages of the given type. Handlers run
// on the receive goroutine in arrival order.
func (t *Transport) Subscribe(msgType wire.MessageType, fn func(wire.Message)) pubsub.Subscription {
	return t.handlers.Subscribe(msgType, fn)
}

// SubscribeConnection registers fn for connect and disconnect notifications.
func (t *Transport) SubscribeConnection(fn func(ConnectionEvent)) pubsub.Subscription {
	return t.connFeed.Subscribe(fn)
}

// Send frames and writes m. It fails immediately when no peer is attached.
// A write failure drops the connection, so later calls get ErrNotConnected.
func (t *Transport) Send(m wire.Message) error {
	conn := t.current()
	if conn == nil {
		return ErrNotConnected
	}
	if m.SenderID == nil && t.cfg.SenderID != "" {
		m = m.WithSender(t.cfg.SenderID)
	}

	frame, err := t.framer.Encode(m)
	if err != nil {
		return err
	}

	t.sendMu.Lock()
	if conn.stopped() {
		t.sendMu.Unlock()
		return ErrNotConnected
	}
	err = conn.carrier.writeFrame(frame)
	t.sendMu.Unlock()

	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", conn.id).
			Str("msg_type", string(m.Type)).
			Msg("send failed, dropping connection")
		t.teardown(conn, fmt.Errorf("write: %w", err), false)
		return fmt.Errorf("send %s: %w", m.Type, err)
	}
	t.framesSent.Add(1)
	return nil
}

// receiveLoop reads frames until the connection ends. Undecodable bodies are
// dropped; anything wrong with the stream itself ends the connection.
func (t *Transport) receiveLoop(conn *connection) {
	defer close(conn.done)

	for {
		frame, err := conn.carrier.readFrame(conn.stop)
		if err != nil {
			if errors.Is(err, errStopped) || conn.stopped() {
				return
			}
			log.Info().
				Err(err).
				Str("connection_id", conn.id).
				Msg("receive loop ended")
			t.teardown(conn, err, false)
			return
		}
		conn.lastSeen.Store(t.cfg.Clock.Now().UnixNano())

		m, err := t.framer.Decode(frame)
		if err != nil {
			t.framesDropped.Add(1)
			log.Warn().
				Err(err).
				Str("connection_id", conn.id).
				Int("frame_size", len(frame)).
				Msg("dropping undecodable message")
			continue
		}
		t.framesReceived.Add(1)

		log.Debug().
			Str("connection_id", conn.id).
			Str("msg_type", string(m.Type)).
			Str("sender_id", m.Sender()).
			Msg("message received")

		t.handlers.Publish(m.Type, m)

		switch m.Type {
		case wire.MessageTypeDisconnect:
			t.teardown(conn, ErrPeerClosed, false)
			return
		case wire.MessageTypePing:
			if err := t.Send(wire.NewMessage(wire.MessageTypePong, m.Payload)); err != nil {
				return
			}
		}
	}
}

// teardown ends conn exactly once and publishes the disconnect event.
func (t *Transport) teardown(conn *connection, reason error, sayGoodbye bool) {
	conn.once.Do(func() {
		close(conn.stop)

		t.mu.Lock()
		if t.cur == conn {
			t.cur = nil
		}
		t.mu.Unlock()

		if sayGoodbye && t.sendMu.TryLock() {
			if frame, err := t.framer.Encode(wire.NewMessage(wire.MessageTypeDisconnect, map[string]any{
				"reason": "closed",
			}).WithSender(t.cfg.SenderID)); err == nil {
				if err := conn.carrier.writeFrame(frame); err != nil {
					log.Debug().Err(err).Str("connection_id", conn.id).Msg("goodbye not delivered")
				}
			}
			t.sendMu.Unlock()
		}

		if err := conn.carrier.close(); err != nil {
			log.Debug().Err(err).Str("connection_id", conn.id).Msg("close carrier")
		}

		log.Info().
			Str("connection_id", conn.id).
			Str("side", conn.side.String()).
			AnErr("reason", reason).
			Msg("peer disconnected")

		t.connFeed.Publish(ConnectionEvent{
			Connected:    false,
			Side:         conn.side,
			ConnectionID: conn.id,
			RemoteAddr:   conn.carrier.remoteAddr(),
			Err:          reason,
		})
	})
}

// Close stops listening, says goodbye to the peer if any and waits a bounded
// time for the receive loop. It is safe to call repeatedly.
func (t *Transport) Close() error {
	t.mu.Lock()
	ln := t.listener
	t.listener = nil
	conn := t.cur
	t.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	if conn == nil {
		return err
	}

	t.teardown(conn, ErrClosedLocally, true)

	timer := time.NewTimer(t.cfg.CloseTimeout)
	defer timer.Stop()
	select {
	case <-conn.done:
	case <-timer.C:
		log.Warn().
			Str("connection_id", conn.id).
			Dur("timeout", t.cfg.CloseTimeout).
			Msg("receive loop did not stop in time")
	}
	return err
}

// Stats returns counters about the link.
func (t *Transport) Stats() map[string]interface{} {
	conn := t.current()
	stats := map[string]interface{}{
		"connected":       conn != nil,
		"codec":           t.cfg.Codec.ContentType(),
		"frames_sent":     t.framesSent.Load(),
		"frames_received": t.framesReceived.Load(),
		"frames_dropped":  t.framesDropped.Load(),
	}
	if conn != nil {
		stats["connection_id"] = conn.id
		stats["side"] = conn.side.String()
		stats["remote_addr"] = conn.carrier.remoteAddr()
	}
	return stats
}
