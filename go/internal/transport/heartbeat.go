package transport

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pathduel/go/internal/wire"
)

// heartbeatLoop pings the peer every HeartbeatInterval and drops the
// connection once nothing has been received for HeartbeatTimeout.
func (t *Transport) heartbeatLoop(conn *connection) {
	ticker := t.cfg.Clock.NewTicker(t.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.stop:
			return
		case now := <-ticker.Chan():
			silent := now.Sub(time.Unix(0, conn.lastSeen.Load()))
			if silent > t.cfg.HeartbeatTimeout {
				log.Warn().
					Str("connection_id", conn.id).
					Dur("silent_for", silent).
					Msg("peer stopped answering heartbeats")
				t.teardown(conn, ErrHeartbeatTimeout, false)
				return
			}

			ping := wire.NewMessage(wire.MessageTypePing, map[string]any{
				"sent_at": now.UnixMilli(),
			})
			if err := t.Send(ping); err != nil {
				return
			}
		}
	}
}
