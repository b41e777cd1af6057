package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pathduel/go/internal/duel"
)

func testSession(t *testing.T) *duel.Session {
	t.Helper()
	cfg := duel.DefaultConfig()
	cfg.Transport.PollInterval = 10 * time.Millisecond
	cfg.Transport.CloseTimeout = time.Second
	s := duel.NewSession(cfg)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExecute_ParseErrors(t *testing.T) {
	s := testSession(t)

	tests := []struct {
		line string
		want string
	}{
		{line: "fly", want: "unknown command"},
		{line: "add 1", want: "expected 2 arguments"},
		{line: "add x 1", want: "bad number"},
		{line: "move one 1 1", want: "bad index"},
		{line: "remove", want: "expected 1 arguments"},
		{line: "tower cannon a 1", want: "bad integer"},
		{line: "ready now", want: "expected 0 arguments"},
		{line: "event", want: "needs a tag"},
		{line: "event emote [1]", want: "JSON object"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := execute(s, tt.line)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestExecute_NeedsOpponent(t *testing.T) {
	s := testSession(t)

	for _, line := range []string{"ready", "add 1 2", "tower cannon 1 1", "damage 2", "round"} {
		_, err := execute(s, line)
		assert.ErrorIs(t, err, duel.ErrNotConnected, line)
	}
}

func TestExecute_StatusHelpQuit(t *testing.T) {
	s := testSession(t)

	reply, err := execute(s, "status")
	require.NoError(t, err)
	assert.Contains(t, reply, `"phase": "LOBBY"`)

	reply, err = execute(s, "help")
	require.NoError(t, err)
	assert.Contains(t, reply, "damage <n>")

	reply, err = execute(s, "   ")
	require.NoError(t, err)
	assert.Empty(t, reply)

	_, err = execute(s, "QUIT")
	assert.ErrorIs(t, err, errQuit)
}

func TestExecute_DrivesDuel(t *testing.T) {
	host := testSession(t)
	require.NoError(t, host.Host(context.Background(), 0))
	client := testSession(t)
	require.NoError(t, client.Join(context.Background(), "127.0.0.1", host.Port()))

	require.Eventually(t, func() bool {
		return host.Phase() == duel.PhasePlanning && client.Phase() == duel.PhasePlanning
	}, 5*time.Second, 10*time.Millisecond)

	for _, line := range []string{"add 5 3", "method spline", "tower cannon 2 2", "ready"} {
		reply, err := execute(client, line)
		require.NoError(t, err, line)
		assert.Equal(t, "ok", reply)
	}

	require.Eventually(t, func() bool {
		incoming, _ := host.IncomingPath()
		remote, _ := host.RemotePlayer()
		return len(incoming.Points) == 3 && incoming.Method == "spline" && len(remote.Towers) == 1 && remote.Ready
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunConsole(t *testing.T) {
	s := testSession(t)

	in := strings.NewReader("status\nbogus\nquit\nstatus\n")
	var out bytes.Buffer
	require.NoError(t, runConsole(context.Background(), s, in, &out))

	text := out.String()
	assert.Contains(t, text, "commands:")
	assert.Contains(t, text, `"phase": "LOBBY"`)
	assert.Contains(t, text, `error: unknown command "bogus"`)
	assert.Equal(t, 1, strings.Count(text, `"phase"`))
}

func TestRunConsole_StopsOnContext(t *testing.T) {
	s := testSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runConsole(ctx, s, strings.NewReader(""), &bytes.Buffer{}) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("console did not stop")
	}
}
