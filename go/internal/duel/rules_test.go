package duel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/pathduel/go/internal/transport"
)

func writeRules(t *testing.T, body string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(file, []byte(body), 0o600))
	return file
}

func TestLoadRules_OverridesDefaults(t *testing.T) {
	file := writeRules(t, "max_rounds: 3\nstarting_lives: 20\ndefault_method: spline\n")

	rules, err := LoadRules(file)
	require.NoError(t, err)

	want := DefaultRules()
	want.MaxRounds = 3
	want.StartingLives = 20
	want.DefaultMethod = "spline"
	assert.Equal(t, want, rules)
}

func TestLoadRules_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad yaml", body: "max_rounds: [\n"},
		{name: "zero rounds", body: "max_rounds: 0\n"},
		{name: "no lives", body: "starting_lives: 0\n"},
		{name: "negative money", body: "starting_money: -1\n"},
		{name: "inverted path", body: "path_start_x: 19\npath_end_x: 0\n"},
		{name: "unknown method", body: "default_method: bezier\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(writeRules(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultRules_Valid(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())
}

func TestRole(t *testing.T) {
	assert.Equal(t, RoleClient, RoleHost.Opponent())
	assert.Equal(t, RoleHost, RoleClient.Opponent())
	assert.Equal(t, RoleNone, RoleNone.Opponent())
	assert.Equal(t, "NONE", RoleNone.String())

	assert.Equal(t, RoleHost, RoleForSide(transport.SideListener))
	assert.Equal(t, RoleClient, RoleForSide(transport.SideDialer))
	assert.Equal(t, RoleNone, RoleForSide(transport.SideNone))
}
