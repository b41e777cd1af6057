package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pathduel/go/internal/wire"
)

// wsCarrier sends each wire frame, header included, as one binary WebSocket
// message. Reads are not deadline-polled: a gorilla connection is unusable
// after a read timeout, so stopping relies on close.
type wsCarrier struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
}

func newWSCarrier(ws *websocket.Conn, cfg Config) *wsCarrier {
	ws.SetReadLimit(int64(cfg.MaxFrameSize + wire.HeaderSize))
	return &wsCarrier{ws: ws, writeTimeout: cfg.WriteTimeout}
}

func (c *wsCarrier) readFrame(stop <-chan struct{}) ([]byte, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-stop:
				return nil, errStopped
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrPeerClosed
			}
			return nil, err
		}
		if kind != websocket.BinaryMessage {
			log.Debug().Int("message_type", kind).Msg("ignoring non-binary websocket message")
			continue
		}
		return data, nil
	}
}

func (c *wsCarrier) writeFrame(frame []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *wsCarrier) remoteAddr() string {
	return c.ws.RemoteAddr().String()
}

func (c *wsCarrier) close() error {
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}

// ConnectWebSocket dials a peer that hosts through WebSocketHandler.
func (t *Transport) ConnectWebSocket(ctx context.Context, url string, timeout time.Duration) error {
	if t.IsConnected() {
		return ErrAlreadyConnected
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", url, err)
	}
	return t.attach(newWSCarrier(ws, t.cfg), SideDialer)
}

// WebSocketHandler returns a handler that upgrades exactly one request into
// the peer connection. Every later request gets 409 Conflict.
func (t *Transport) WebSocketHandler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     t.cfg.CheckOrigin,
	}
	var claimed atomic.Bool

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.IsConnected() || !claimed.CompareAndSwap(false, true) {
			http.Error(w, "duel already has an opponent", http.StatusConflict)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client
			claimed.Store(false)
			log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
			return
		}

		if err := t.attach(newWSCarrier(ws, t.cfg), SideListener); err != nil {
			log.Error().Err(err).Msg("failed to attach WebSocket peer")
		}
	})
}
