package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// isolate points every search path at an empty temp dir and returns a
// loader with a private viper instance.
func isolate(t *testing.T) (*Loader, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Chdir(dir)
	return NewLoaderWithViper(viper.New()), dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	require.NotNil(t, l)
	assert.Same(t, viper.GetViper(), l.GetViper())
}

func TestLoadWithNoConfigFile(t *testing.T) {
	l, _ := isolate(t)

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
	assert.Empty(t, l.GetConfigFileUsed())
}

func TestLoadFromSearchPath(t *testing.T) {
	l, dir := isolate(t)
	writeFile(t, filepath.Join(dir, "xdg", "cutout", "cutout.yaml"), "engine:\n  iterations: 8\n")

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Engine.Iterations)
	assert.Equal(t, filepath.Join(dir, "xdg", "cutout", "cutout.yaml"), l.GetConfigFileUsed())
}

func TestLoadWithValidYAMLFile(t *testing.T) {
	l, dir := isolate(t)
	file := filepath.Join(dir, "custom.yaml")
	writeFile(t, file, `
log_level: debug
verbose: true
engine:
  components: 3
  gamma: 30
  solver: dinic
  kmeans:
    seed: 17
output:
  format: cutout
  feather: 2.5
server:
  host: 0.0.0.0
  port: 9090
batch:
  workers: 2
  margin: 0.2
`)

	cfg, err := l.LoadWithFile(file)
	require.NoError(t, err)
	assert.Equal(t, debugLevel, cfg.LogLevel)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, 3, cfg.Engine.Components)
	assert.InDelta(t, 30.0, cfg.Engine.Gamma, 0)
	assert.Equal(t, "dinic", cfg.Engine.Solver)
	assert.Equal(t, uint64(17), cfg.Engine.KMeans.Seed)
	assert.Equal(t, pipeline.FormatCutout, cfg.Output.Format)
	assert.InDelta(t, 2.5, cfg.Output.Feather, 0)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Batch.Workers)
	assert.InDelta(t, 0.2, cfg.Batch.Margin, 1e-12)

	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultConfig().Engine.Iterations, cfg.Engine.Iterations)
	assert.Equal(t, DefaultConfig().Server.MaxUploadMB, cfg.Server.MaxUploadMB)
}

func TestLoadWithInvalidYAMLFile(t *testing.T) {
	l, dir := isolate(t)
	file := filepath.Join(dir, "broken.yaml")
	writeFile(t, file, "engine: [unclosed\n")

	_, err := l.LoadWithFile(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoadWithNonExistentFile(t *testing.T) {
	l, dir := isolate(t)

	_, err := l.LoadWithFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestLoadWithValidationFailure(t *testing.T) {
	l, dir := isolate(t)
	file := filepath.Join(dir, "bad.yaml")
	writeFile(t, file, "server:\n  port: -1\n")

	_, err := l.LoadWithFile(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")

	l2 := NewLoaderWithViper(viper.New())
	cfg, err := l2.LoadWithFileWithoutValidation(file)
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Server.Port)
}

func TestLoadWithoutValidation(t *testing.T) {
	l, dir := isolate(t)
	writeFile(t, filepath.Join(dir, "cutout.yaml"), "log_level: loud\n")

	cfg, err := l.LoadWithoutValidation()
	require.NoError(t, err)
	assert.Equal(t, "loud", cfg.LogLevel)

	_, err = NewLoaderWithViper(viper.New()).Load()
	require.Error(t, err)
}

func TestEnvironmentVariableOverride(t *testing.T) {
	l, dir := isolate(t)
	writeFile(t, filepath.Join(dir, "cutout.yaml"), "server:\n  port: 9090\n")
	t.Setenv("CUTOUT_SERVER_PORT", "7070")
	t.Setenv("CUTOUT_LOG_LEVEL", "warn")
	t.Setenv("CUTOUT_ENGINE_MAX_IMAGE_SIZE", "256")
	t.Setenv("CUTOUT_ENGINE_KMEANS_SEED", "99")

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 256, cfg.Engine.MaxImageSize)
	assert.Equal(t, uint64(99), cfg.Engine.KMeans.Seed)
}

func TestGetSetConfigValues(t *testing.T) {
	l, _ := isolate(t)
	l.Set("engine.solver", "dinic")
	assert.Equal(t, "dinic", l.GetString("engine.solver"))
	assert.Equal(t, "dinic", l.Get("engine.solver"))

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "dinic", cfg.Engine.Solver)
}

func TestGetResolvedConfig(t *testing.T) {
	l, _ := isolate(t)
	_, err := l.Load()
	require.NoError(t, err)

	settings := l.GetResolvedConfig()
	require.Contains(t, settings, "engine")
	require.Contains(t, settings, "server")
}

func TestWriteYAML(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Solver = "dinic"

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, &cfg))
	assert.Contains(t, buf.String(), "solver: dinic")
	assert.Contains(t, buf.String(), "max_image_size: 1024")

	var back Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, cfg, back)
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	l, dir := isolate(t)
	file := filepath.Join(dir, "generated.yaml")

	require.NoError(t, GenerateDefaultConfigFile(file))
	err := GenerateDefaultConfigFile(file)
	require.Error(t, err, "existing file must not be overwritten")

	cfg, err := l.LoadWithFile(file)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestGenerateDefaultConfigFileWithEmptyFilename(t *testing.T) {
	_, dir := isolate(t)

	require.NoError(t, GenerateDefaultConfigFile(""))
	assert.FileExists(t, filepath.Join(dir, "cutout.yaml"))
}

func TestGetConfigSearchPaths(t *testing.T) {
	_, dir := isolate(t)

	paths := GetConfigSearchPaths()
	assert.Equal(t, []string{
		".",
		dir,
		filepath.Join(dir, "xdg", "cutout"),
		"/etc/cutout",
	}, paths)
}

func TestPrintConfigInfo(t *testing.T) {
	l, _ := isolate(t)
	var buf bytes.Buffer
	l.PrintConfigInfo(&buf)
	assert.Contains(t, buf.String(), "Environment prefix: CUTOUT")
}
