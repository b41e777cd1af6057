package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/pathduel/go/internal/config"
	"github.com/mcdev12/pathduel/go/internal/duel"
)

const usage = `usage:
  pathduel host [-port N]
  pathduel join [-port N] <address>
  pathduel ws-host
  pathduel ws-join <url>
`

var errUsage = errors.New("bad usage")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Fatal().Err(err).Msg("pathduel failed")
	}
}

func run(ctx context.Context, cfg config.Config, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	sessionCfg, err := cfg.Session()
	if err != nil {
		return err
	}
	session := setupSession(cfg, sessionCfg)
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("close session")
		}
	}()

	watchMatch(session)
	gw := setupGateway(cfg, session)

	switch cmd := args[0]; cmd {
	case "host":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		port := fs.Int("port", cfg.Port, "port to listen on")
		if err := fs.Parse(args[1:]); err != nil {
			return errUsage
		}
		if err := session.Host(ctx, *port); err != nil {
			return err
		}
		log.Info().Str("addr", session.Addr()).Msg("waiting for opponent")

	case "join":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		port := fs.Int("port", cfg.Port, "port to connect to")
		if err := fs.Parse(args[1:]); err != nil || fs.NArg() != 1 {
			return errUsage
		}
		if err := session.Join(ctx, fs.Arg(0), *port); err != nil {
			return err
		}

	case "ws-host":
		handler, err := session.HostWebSocket()
		if err != nil {
			return err
		}
		if gw == nil {
			gw = newGateway(defaultGatewayAddr, session)
		}
		gw.MountDuel(handler)

	case "ws-join":
		if len(args) != 2 {
			return errUsage
		}
		if err := session.JoinWebSocket(ctx, args[1]); err != nil {
			return err
		}

	default:
		return errUsage
	}

	if gw != nil {
		if err := gw.Listen(); err != nil {
			return err
		}
		go func() {
			if err := gw.Start(ctx); err != nil {
				log.Error().Err(err).Msg("gateway failed")
			}
		}()
	}

	return runConsole(ctx, session, os.Stdin, os.Stdout)
}

// watchMatch logs the phase changes worth a player's attention.
func watchMatch(s *duel.Session) {
	s.SubscribePhase(func(c duel.PhaseChange) {
		switch c.To {
		case duel.PhasePlanning:
			log.Info().Int("round", c.Round).Msg("plan your path, then type ready")
		case duel.PhaseBattle:
			log.Info().Int("round", c.Round).Msg("battle started")
		case duel.PhaseMatchEnd:
			log.Info().Msg("match over, type quit to leave")
		case duel.PhaseDisconnected:
			log.Warn().Msg("opponent gone, type quit to leave")
		}
	})
}
