package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProjectConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadProjectConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "1.0", cfg.Version)
	assert.Contains(t, cfg.Skip, "**/node_modules/**")
	assert.Equal(t, int64(1<<20), cfg.MaxFileSize)
	assert.Equal(t, 8, cfg.Detectors.GodModule.MinFanIn)
}

func TestLoadProjectConfig_Yaml(t *testing.T) {
	dir := t.TempDir()
	content := `version: "1.0"
skip:
  - "**/generated/**"
max_file_size: 524288
detectors:
  god_module:
    min_fan_in: 12
  coupling:
    efferent_medium: 10
layers:
  - level: 0
    name: storage
    patterns: ["store"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".archscope.yaml"), []byte(content), 0o644))

	cfg, err := LoadProjectConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"**/generated/**"}, cfg.Skip)
	assert.Equal(t, int64(524288), cfg.MaxFileSize)
	assert.Equal(t, 12, cfg.Detectors.GodModule.MinFanIn)
	assert.Equal(t, 10, cfg.Detectors.Coupling.EfferentMedium)
	require.Len(t, cfg.Layers, 1)
	assert.Equal(t, "storage", cfg.Layers[0].Name)
}

func TestLoadProjectConfig_YmlFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".archscope.yml"), []byte(`version: "2.0"`), 0o644))

	cfg, err := LoadProjectConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "2.0", cfg.Version)
}

func TestLoadProjectConfig_InvalidYamlFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".archscope.yaml"), []byte("skip: [unclosed"), 0o644))

	_, err := LoadProjectConfig(dir)
	assert.Error(t, err)
}

func TestDetectConfig_MergesOverridesOntoDefaults(t *testing.T) {
	cfg := &ProjectConfig{}
	cfg.Detectors.GodModule.MinFanIn = 12
	cfg.Detectors.Coupling.CohesionMin = 0.4

	dc := cfg.DetectConfig()

	assert.Equal(t, 12, dc.GodModule.MinFanIn)
	assert.Equal(t, 8, dc.GodModule.MinFanOut, "unset thresholds keep their defaults")
	assert.Equal(t, 20, dc.GodModule.MinCombined)
	assert.InDelta(t, 0.4, dc.Coupling.CohesionMin, 1e-9)
	assert.Equal(t, 15, dc.Coupling.EfferentMedium)
	assert.NotEmpty(t, dc.Layers, "empty layers fall back to the built-in model")
}
