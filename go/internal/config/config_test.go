package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pathduel/go/internal/duel"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.BindAddress)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "json", cfg.WireCodec)
	assert.Zero(t, cfg.HeartbeatInterval)
	assert.Empty(t, cfg.NatsURL)
	assert.Empty(t, cfg.GatewayAddr)
}

func TestParse_FromEnvironment(t *testing.T) {
	t.Setenv("DUEL_PORT", "9100")
	t.Setenv("DUEL_BIND_ADDRESS", "0.0.0.0")
	t.Setenv("DUEL_CONNECT_TIMEOUT", "750ms")
	t.Setenv("DUEL_WIRE_CODEC", "cbor")
	t.Setenv("DUEL_HEARTBEAT_INTERVAL", "2s")
	t.Setenv("NATS_URL", "nats://nats:4222")
	t.Setenv("GATEWAY_ADDR", ":8090")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, Config{
		Port:              9100,
		BindAddress:       "0.0.0.0",
		ConnectTimeout:    750 * time.Millisecond,
		WireCodec:         "cbor",
		HeartbeatInterval: 2 * time.Second,
		NatsURL:           "nats://nats:4222",
		GatewayAddr:       ":8090",
		LogLevel:          "info",
	}, cfg)

	sc, err := cfg.Session()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", sc.BindAddress)
	assert.Equal(t, "application/cbor", sc.Transport.Codec.ContentType())
	assert.Equal(t, 2*time.Second, sc.Transport.HeartbeatInterval)
	assert.Equal(t, duel.DefaultRules(), sc.Rules)

	assert.Equal(t, "nats://nats:4222", cfg.JetStream().URL)
}

func TestParse_Errors(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("DUEL_CONNECT_TIMEOUT", "soon")
		_, err := Parse()
		assert.ErrorContains(t, err, "parse env:")
	})
	t.Run("port out of range", func(t *testing.T) {
		t.Setenv("DUEL_PORT", "70000")
		_, err := Parse()
		assert.Error(t, err)
	})
}

func TestSession_UnknownCodec(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)
	cfg.WireCodec = "pickle"

	_, err = cfg.Session()
	assert.Error(t, err)
}

func TestSession_RulesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(file, []byte("max_rounds: 2\n"), 0o600))

	cfg, err := Parse()
	require.NoError(t, err)
	cfg.RulesFile = file

	sc, err := cfg.Session()
	require.NoError(t, err)
	assert.Equal(t, 2, sc.Rules.MaxRounds)

	cfg.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.Session()
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	SetupLogging("debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	SetupLogging("nonsense")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
