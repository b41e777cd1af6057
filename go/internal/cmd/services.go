package main

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pathduel/go/internal/config"
	"github.com/mcdev12/pathduel/go/internal/duel"
	"github.com/mcdev12/pathduel/go/internal/duel/events"
)

// setupSession wires the duel session to its event publisher. Without a NATS
// URL, or when NATS is unreachable, events only go to the log.
func setupSession(cfg config.Config, sessionCfg duel.Config) *duel.Session {
	var publisher events.Publisher = events.NewLogPublisher()

	if cfg.NatsURL != "" {
		js, err := events.NewJetStreamPublisher(cfg.JetStream())
		if err != nil {
			log.Warn().Err(err).Str("nats_url", cfg.NatsURL).Msg("event stream unavailable, logging events only")
		} else {
			publisher = js
		}
	}

	session := duel.NewSession(sessionCfg, duel.WithPublisher(publisher))
	log.Info().
		Str("session_id", session.ID()).
		Str("codec", sessionCfg.Transport.Codec.ContentType()).
		Int("max_rounds", sessionCfg.Rules.MaxRounds).
		Msg("duel session created")
	return session
}
