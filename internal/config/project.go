package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/archscope-hq/archscope/internal/detect"
)

// ProjectConfig represents a .archscope.yaml file in a repository. It tunes
// which files are indexed and the detector thresholds for that project.
type ProjectConfig struct {
	Version string `yaml:"version"`

	// File selection
	Skip        []string `yaml:"skip,omitempty"`
	MaxFileSize int64    `yaml:"max_file_size,omitempty"`

	// Detector thresholds; zero values fall back to defaults
	Detectors DetectorConfig `yaml:"detectors,omitempty"`

	// Custom layering model; empty uses the built-in one
	Layers []detect.Layer `yaml:"layers,omitempty"`
}

// DetectorConfig holds per-detector threshold overrides
type DetectorConfig struct {
	GodModule detect.GodModuleConfig `yaml:"god_module,omitempty"`
	Coupling  detect.CouplingConfig  `yaml:"coupling,omitempty"`
}

// DefaultProjectConfig returns sensible defaults
func DefaultProjectConfig() *ProjectConfig {
	defaults := detect.DefaultConfig()
	return &ProjectConfig{
		Version: "1.0",
		Skip: []string{
			"**/node_modules/**",
			"**/vendor/**",
			"**/.git/**",
			"**/dist/**",
			"**/build/**",
			"**/__pycache__/**",
			"**/*.min.js",
		},
		MaxFileSize: 1 << 20,
		Detectors: DetectorConfig{
			GodModule: defaults.GodModule,
			Coupling:  defaults.Coupling,
		},
	}
}

// LoadProjectConfig loads a .archscope.yaml from the given directory
func LoadProjectConfig(repoPath string) (*ProjectConfig, error) {
	configPath := filepath.Join(repoPath, ".archscope.yaml")

	// Check if config exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Also try .archscope.yml
		configPath = filepath.Join(repoPath, ".archscope.yml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return DefaultProjectConfig(), nil
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultProjectConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DetectConfig converts the project settings into the detector configuration,
// filling any unset threshold from the defaults.
func (c *ProjectConfig) DetectConfig() detect.Config {
	cfg := detect.DefaultConfig()

	if c.Detectors.GodModule.MinFanIn > 0 {
		cfg.GodModule.MinFanIn = c.Detectors.GodModule.MinFanIn
	}
	if c.Detectors.GodModule.MinFanOut > 0 {
		cfg.GodModule.MinFanOut = c.Detectors.GodModule.MinFanOut
	}
	if c.Detectors.GodModule.MinCombined > 0 {
		cfg.GodModule.MinCombined = c.Detectors.GodModule.MinCombined
	}

	if c.Detectors.Coupling.EfferentMedium > 0 {
		cfg.Coupling.EfferentMedium = c.Detectors.Coupling.EfferentMedium
	}
	if c.Detectors.Coupling.EfferentHigh > 0 {
		cfg.Coupling.EfferentHigh = c.Detectors.Coupling.EfferentHigh
	}
	if c.Detectors.Coupling.AfferentMedium > 0 {
		cfg.Coupling.AfferentMedium = c.Detectors.Coupling.AfferentMedium
	}
	if c.Detectors.Coupling.AfferentHigh > 0 {
		cfg.Coupling.AfferentHigh = c.Detectors.Coupling.AfferentHigh
	}
	if c.Detectors.Coupling.CohesionMin > 0 {
		cfg.Coupling.CohesionMin = c.Detectors.Coupling.CohesionMin
	}
	if c.Detectors.Coupling.TotalMedium > 0 {
		cfg.Coupling.TotalMedium = c.Detectors.Coupling.TotalMedium
	}
	if c.Detectors.Coupling.TotalHigh > 0 {
		cfg.Coupling.TotalHigh = c.Detectors.Coupling.TotalHigh
	}

	if len(c.Layers) > 0 {
		cfg.Layers = c.Layers
	}

	return cfg
}
