package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pathduel/go/internal/wire"
)

func TestWebSocket_RoundTrip(t *testing.T) {
	c, err := wire.CBOR()
	require.NoError(t, err)

	hostCfg := testConfig("host")
	hostCfg.Codec = c
	clientCfg := testConfig("client")
	clientCfg.Codec = c

	host := New(hostCfg)
	srv := httptest.NewServer(host.WebSocketHandler())
	defer srv.Close()
	defer host.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	client := New(clientCfg)
	defer client.Close()
	require.NoError(t, client.ConnectWebSocket(context.Background(), url, time.Second))
	assert.Equal(t, SideDialer, client.Side())

	require.Eventually(t, host.IsConnected, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, SideListener, host.Side())

	var atHost, atClient collector
	host.Subscribe(wire.MessageTypeGameState, atHost.add)
	client.Subscribe(wire.MessageTypeGameState, atClient.add)

	require.NoError(t, client.Send(wire.NewMessage(wire.MessageTypeGameState, map[string]any{"from": "client"})))
	require.NoError(t, host.Send(wire.NewMessage(wire.MessageTypeGameState, map[string]any{"from": "host"})))

	require.Eventually(t, func() bool { return atHost.len() == 1 && atClient.len() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "client", atHost.snapshot()[0].Payload["from"])
	assert.Equal(t, "host", atClient.snapshot()[0].Payload["from"])

	// The duel already has both players.
	intruder := New(testConfig("intruder"))
	err = intruder.ConnectWebSocket(context.Background(), url, time.Second)
	assert.Error(t, err)
	assert.False(t, intruder.IsConnected())
}

func TestWebSocket_CloseNotifiesPeer(t *testing.T) {
	host := New(testConfig("host"))
	srv := httptest.NewServer(host.WebSocketHandler())
	defer srv.Close()
	defer host.Close()

	client := New(testConfig("client"))
	require.NoError(t, client.ConnectWebSocket(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), time.Second))
	require.Eventually(t, host.IsConnected, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, client.Close())
	require.Eventually(t, func() bool { return !host.IsConnected() }, 2*time.Second, 5*time.Millisecond)
}
