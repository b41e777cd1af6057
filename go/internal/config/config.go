package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pathduel/go/internal/duel"
	"github.com/mcdev12/pathduel/go/internal/duel/events"
	"github.com/mcdev12/pathduel/go/internal/wire"
)

// Config is the peer process configuration, read from the environment.
type Config struct {
	Port              int           `env:"DUEL_PORT" envDefault:"7777"`
	BindAddress       string        `env:"DUEL_BIND_ADDRESS" envDefault:"127.0.0.1"`
	ConnectTimeout    time.Duration `env:"DUEL_CONNECT_TIMEOUT" envDefault:"5s"`
	WireCodec         string        `env:"DUEL_WIRE_CODEC" envDefault:"json"`
	HeartbeatInterval time.Duration `env:"DUEL_HEARTBEAT_INTERVAL" envDefault:"0s"`
	RulesFile         string        `env:"DUEL_RULES_FILE"`

	// NatsURL enables lifecycle event publishing when set.
	NatsURL string `env:"NATS_URL"`
	// GatewayAddr enables the HTTP status gateway when set.
	GatewayAddr string `env:"GATEWAY_ADDR"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("DUEL_PORT out of range: %d", cfg.Port)
	}
	return cfg, nil
}

// SetupLogging installs the console writer and the configured level.
func SetupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Session builds the duel session configuration: codec, timeouts and the
// match rules file if one is configured.
func (c Config) Session() (duel.Config, error) {
	sc := duel.DefaultConfig()
	sc.BindAddress = c.BindAddress
	if c.ConnectTimeout > 0 {
		sc.ConnectTimeout = c.ConnectTimeout
	}

	codec, err := wire.CodecByName(c.WireCodec)
	if err != nil {
		return duel.Config{}, err
	}
	sc.Transport.Codec = codec
	sc.Transport.HeartbeatInterval = c.HeartbeatInterval

	if c.RulesFile != "" {
		rules, err := duel.LoadRules(c.RulesFile)
		if err != nil {
			return duel.Config{}, err
		}
		sc.Rules = rules
	}
	return sc, nil
}

// JetStream returns the event publisher settings for NatsURL.
func (c Config) JetStream() events.JetStreamConfig {
	js := events.DefaultJetStreamConfig()
	js.URL = c.NatsURL
	return js
}
