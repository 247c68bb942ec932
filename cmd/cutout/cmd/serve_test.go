package cmd

import (
	"testing"

	"github.com/MeKo-Tech/cutout/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommand(t *testing.T) {
	assert.Equal(t, "serve", serveCmd.Use)
	assert.NotEmpty(t, serveCmd.Short)
	for _, name := range []string{"host", "port", "rate-limit", "rate-burst", "max-iterations", "shutdown-timeout"} {
		assert.NotNil(t, serveCmd.Flags().Lookup(name), name)
	}
}

func TestServerConfigFromFlags(t *testing.T) {
	resetFlags(serveCmd)
	t.Cleanup(func() { resetFlags(serveCmd) })

	require.NoError(t, serveCmd.ParseFlags([]string{
		"--port", "9090", "--rate-limit", "2.5", "--max-iterations", "12", "--solver", "dinic", "--format", "json",
	}))

	cfg := config.DefaultConfig()
	sc, shutdown, err := serverConfig(serveCmd, &cfg)
	require.NoError(t, err)

	assert.Equal(t, 9090, sc.Port)
	assert.Equal(t, "localhost", sc.Host)
	assert.InDelta(t, 2.5, sc.RateLimit, 1e-9)
	assert.Equal(t, cfg.Server.RateBurst, sc.RateBurst)
	assert.Equal(t, 12, sc.MaxIterations)
	assert.Equal(t, int64(50), sc.MaxUploadMB)
	assert.Equal(t, 10, shutdown)
	assert.Equal(t, "dinic", sc.Pipeline.Solver)
	assert.Equal(t, "json", sc.Pipeline.Render.Format)
	assert.InDelta(t, 0.1, sc.Pipeline.Margin, 1e-9)
}

func TestServerConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"port zero", []string{"--port", "0"}},
		{"port too large", []string{"--port", "70000"}},
		{"bad solver", []string{"--solver", "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(serveCmd)
			t.Cleanup(func() { resetFlags(serveCmd) })
			require.NoError(t, serveCmd.ParseFlags(tt.args))

			cfg := config.DefaultConfig()
			_, _, err := serverConfig(serveCmd, &cfg)
			require.Error(t, err)
		})
	}
}
