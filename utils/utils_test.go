package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReadTOML calls ReadTOML with a known test config, checking that file
// values win and defaults fill the rest.
func TestReadTOML(t *testing.T) {
	cfg, err := ReadTOML("testConf.toml")
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Net.Port)
	assert.Equal(t, 30, cfg.Net.TickRate)
	assert.Equal(t, 64, cfg.Net.MaxClients)
	assert.Equal(t, 3, cfg.Server.TargetInputBufferSize)
	assert.Equal(t, [3]float32{0, 0, 1000}, cfg.Server.Spawn)
	assert.Equal(t, "test", cfg.Client.Name)
	assert.Equal(t, float32(1), cfg.Plane.MaxSpeed)
	assert.Equal(t, 1, cfg.UI.Resolution.X)
	assert.Equal(t, 1, cfg.UI.Resolution.Y)
}

func TestReadTOMLRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[plane]\nmin_speed = 10\nmax_speed = 1\n"), 0o644))

	_, err := ReadTOML(path)
	require.Error(t, err)
}

func TestReadTOMLMaxClientsRange(t *testing.T) {
	for _, tc := range []struct {
		maxClients int
		ok         bool
	}{
		{0, false},
		{1, true},
		{MaxPlayerSlots, true},
		{MaxPlayerSlots + 1, false},
	} {
		path := filepath.Join(t.TempDir(), "clients.toml")
		body := fmt.Sprintf("[net]\nmax_clients = %d\n", tc.maxClients)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		_, err := ReadTOML(path)
		if tc.ok {
			assert.NoError(t, err, "max_clients = %d", tc.maxClients)
		} else {
			assert.Error(t, err, "max_clients = %d", tc.maxClients)
		}
	}
}

func TestReadTOMLMissingFileUsesDefaults(t *testing.T) {
	cfg, err := ReadTOML(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ACE_PORT", "7777")
	t.Setenv("ACE_NAME", "maverick")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Net.Port)
	assert.Equal(t, "maverick", cfg.Client.Name)

	t.Setenv("ACE_PORT", "not-a-port")
	_, err = Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestNetTick(t *testing.T) {
	cfg := DefaultConfig()
	if got, want := cfg.Net.Tick(), 16*time.Millisecond; got != want {
		t.Fatalf("Tick() = %v, want %v", got, want)
	}
	if got, want := cfg.Net.MaxWait()/cfg.Net.RetryTime(), time.Duration(10); got != want {
		t.Fatalf("retry cycles = %d, want %d", got, want)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, float32(1), Clamp(5, 0, 1))
	assert.Equal(t, float32(0), Clamp(-5, 0, 1))
	assert.Equal(t, float32(0.5), Clamp(0.5, 0, 1))
	assert.True(t, AlmostEqual(0.1+0.2, 0.3, 1e-9))
}
