package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server_url": "http://collector:9000",
		"algorithm": "ed25519",
		"max_concurrent": 20,
		"stream": {"sensor_count": 3, "frequency_hz": 2, "duration_s": 5}
	}`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "http://collector:9000", cfg.ServerURL)
	require.Equal(t, "ed25519", cfg.Algorithm)
	require.Equal(t, 20, cfg.MaxConcurrent)
	require.Equal(t, 3, cfg.Stream.SensorCount)
	// Untouched fields keep their defaults.
	require.Equal(t, 10, cfg.RequestTimeoutS)
	require.Equal(t, 32, cfg.BitLength)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ICSATTEST_SERVER_URL", "http://env:8084")
	t.Setenv("ICSATTEST_MAX_CONCURRENT", "7")
	cfg := Default()
	cfg.ApplyEnv()
	require.Equal(t, "http://env:8084", cfg.ServerURL)
	require.Equal(t, 7, cfg.MaxConcurrent)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server", func(c *Config) { c.ServerURL = "" }},
		{"bad scheme", func(c *Config) { c.ServerURL = "ftp://x" }},
		{"unknown algorithm", func(c *Config) { c.Algorithm = "rot13" }},
		{"zero concurrency", func(c *Config) { c.MaxConcurrent = 0 }},
		{"zero timeout", func(c *Config) { c.RequestTimeoutS = 0 }},
		{"odd bit length", func(c *Config) { c.BitLength = 33 }},
		{"no sensors", func(c *Config) { c.Stream.SensorCount = 0 }},
		{"no bound", func(c *Config) { c.Stream.DurationS = 0; c.Stream.TargetCount = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestDevelopmentModeIsAlwaysForcedOff(t *testing.T) {
	cfg := Default()
	cfg.DevelopmentMode = true
	require.NoError(t, cfg.Validate())
	require.False(t, cfg.DevelopmentMode)
}
