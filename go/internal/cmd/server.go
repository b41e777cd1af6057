package main

import (
	"github.com/mcdev12/pathduel/go/internal/config"
	"github.com/mcdev12/pathduel/go/internal/gateway"
)

// The WebSocket host listens on every interface so a remote opponent can
// reach it.
const defaultGatewayAddr = ":8081"

func setupGateway(cfg config.Config, p gateway.StatusProvider) *gateway.Server {
	if cfg.GatewayAddr == "" {
		return nil
	}
	return newGateway(cfg.GatewayAddr, p)
}

func newGateway(addr string, p gateway.StatusProvider) *gateway.Server {
	gwCfg := gateway.DefaultConfig()
	gwCfg.Addr = addr
	return gateway.NewServer(gwCfg, p)
}
