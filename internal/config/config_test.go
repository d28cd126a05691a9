package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: debug\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":8080", cfg.Server.WebSocket.Address)
	assert.Equal(t, 5*time.Minute, cfg.Session.LeasePeriod)
	assert.Equal(t, 90*time.Second, cfg.Match.TurnDeadline)
	assert.True(t, cfg.Replay.Enabled)

	def := DefaultGame()
	assert.Equal(t, def, cfg.Game, "game tuning defaults match DefaultGame")
}

func TestLoad_OverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  websocket:
    address: ":9999"
game:
  map_width: 2000
  sub_ticks: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.WebSocket.Address)
	assert.Equal(t, 2000.0, cfg.Game.MapWidth)
	assert.Equal(t, 60, cfg.Game.SubTicks)
	assert.Equal(t, DefaultGame().MaxRounds, cfg.Game.MaxRounds, "unset keys keep defaults")
}

func TestLoad_RejectsInvalidTuning(t *testing.T) {
	for name, contents := range map[string]string{
		"flat power curve": "game:\n  power_exponent: 1.0\n",
		"zero sub ticks":   "game:\n  sub_ticks: 0\n",
		"negative map":     "game:\n  map_width: -5\n",
		"zero round cap":   "game:\n  max_rounds: 0\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, contents))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p",
		Name: "torusfall", SSLMode: "require",
	}
	assert.Equal(t, "postgres://u:p@db:5433/torusfall?sslmode=require", d.DSN())
}
