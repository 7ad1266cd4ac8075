package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 2019, cfg.Census.Year)
	assert.Equal(t, "13", cfg.Census.State)
	assert.Equal(t, []string{"089", "121"}, cfg.Census.Counties)
	assert.Equal(t, "B01003_001E", cfg.Census.TotalVar)
	assert.Equal(t, "B03003_003E", cfg.Census.SubgroupVar)
	assert.Equal(t, 10, cfg.Prune.K)
	assert.Equal(t, "https://maps.googleapis.com/maps/api/distancematrix/json", cfg.Routing.BaseURL)
	assert.Equal(t, "2020-02-04", cfg.Routing.DepartureDate)
	assert.Equal(t, "09:00:00", cfg.Routing.DepartureTime)
	assert.Equal(t, 3, cfg.Routing.MaxRetries)
	assert.Equal(t, "transit_access.db", cfg.Store.Path)
	assert.Equal(t, "travel_times.csv", cfg.Store.CSVPath)
	assert.Equal(t, 2400, cfg.Render.Width)
	assert.Equal(t, 1800, cfg.Render.Height)
	assert.True(t, cfg.Render.DrawClinics)
	assert.False(t, cfg.Render.DrawHighways)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	doc, err := yaml.Marshal(map[string]any{
		"census": map[string]any{"year": 2021, "state": "48"},
		"prune":  map[string]any{"k": 5},
		"log":    map[string]any{"level": "debug", "format": "console"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), doc, 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2021, cfg.Census.Year)
	assert.Equal(t, "48", cfg.Census.State)
	assert.Equal(t, 5, cfg.Prune.K)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, "09:00:00", cfg.Routing.DepartureTime)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	doc := "log:\n  level: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(doc), 0644))

	t.Setenv("TRANSIT_LOG_LEVEL", "warn")
	t.Setenv("TRANSIT_CENSUS_YEAR", "2018")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 2018, cfg.Census.Year)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouting", Format: "json"})
	require.Error(t, err)
}
