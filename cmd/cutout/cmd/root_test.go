package cmd

import (
	"log/slog"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "cutout", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Same(t, rootCmd, GetRootCommand())
}

func TestRootCommandHelp(t *testing.T) {
	isolate(t)

	output, err := executeCommandAndCaptureOutput(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, output, "GrabCut")
	assert.Contains(t, output, "Available Commands:")
	assert.Contains(t, output, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	isolate(t)

	output, err := executeCommandAndCaptureOutput(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, output, "cutout version")
	assert.Contains(t, output, "Commit:")

	output, err = executeCommandAndCaptureOutput(t, "version")
	require.NoError(t, err)
	assert.Contains(t, output, "cutout version")
}

func TestRootCommandSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, expected := range []string{"segment", "batch", "serve", "config", "version"} {
		assert.Contains(t, names, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	isolate(t)

	output, err := executeCommandAndCaptureOutput(t, "--invalid-flag")
	require.Error(t, err)
	assert.Contains(t, output, "unknown flag")
}

func TestRootCommandNoArgs(t *testing.T) {
	isolate(t)

	output, err := executeCommandAndCaptureOutput(t)
	require.NoError(t, err)
	assert.Contains(t, output, "Usage:")
}

func TestRootCommandMissingConfigFile(t *testing.T) {
	isolate(t)

	_, err := executeCommandAndCaptureOutput(t, "--config", "does-not-exist.yaml", "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file does not exist")
}

func TestNewLogger(t *testing.T) {
	cfg := config.DefaultConfig()

	cfg.LogLevel = "error"
	assert.False(t, newLogger(&cfg).Enabled(t.Context(), slog.LevelDebug))
	assert.True(t, newLogger(&cfg).Enabled(t.Context(), slog.LevelError))

	cfg.Verbose = true
	assert.True(t, newLogger(&cfg).Enabled(t.Context(), slog.LevelDebug))
}
