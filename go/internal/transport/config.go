package transport

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/pathduel/go/internal/wire"
)

// Config holds configuration for a peer transport
type Config struct {
	// Codec encodes message bodies. Both peers must agree on it.
	Codec wire.Codec
	// SenderID is stamped on outgoing messages that carry none.
	SenderID string

	PollInterval time.Duration
	CloseTimeout time.Duration
	WriteTimeout time.Duration
	MaxFrameSize int

	// HeartbeatInterval of zero disables PING/PONG keepalive.
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration

	Clock clockwork.Clock

	// CheckOrigin is handed to the WebSocket upgrader.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns default transport configuration
func DefaultConfig() Config {
	return Config{
		Codec:        wire.JSON(),
		PollInterval: 100 * time.Millisecond,
		CloseTimeout: 2 * time.Second,
		WriteTimeout: 10 * time.Second,
		MaxFrameSize: wire.DefaultMaxFrameSize,
		Clock:        clockwork.NewRealClock(),
		CheckOrigin: func(r *http.Request) bool {
			// Peers are not browsers; any origin may open the duel socket
			return true
		},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Codec == nil {
		c.Codec = def.Codec
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = def.CloseTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = def.MaxFrameSize
	}
	if c.HeartbeatInterval > 0 && c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = 3 * c.HeartbeatInterval
	}
	if c.Clock == nil {
		c.Clock = def.Clock
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = def.CheckOrigin
	}
	return c
}
