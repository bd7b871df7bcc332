// Package detect runs architectural pattern detectors over the extracted
// graph and metrics. Detectors never re-parse source and never touch storage:
// they are pure functions from already-resolved collections to findings.
package detect

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/archscope-hq/archscope/internal/model"
)

// Config holds the tunable thresholds for all detectors.
type Config struct {
	GodModule GodModuleConfig `yaml:"god_module"`
	Coupling  CouplingConfig  `yaml:"coupling"`
	Layers    []Layer         `yaml:"layers"`
}

// GodModuleConfig sets the fan-in/fan-out floor for the god-module detector.
// A file is flagged only when it is simultaneously heavily depended-upon and
// heavily dependent; one-sided hubs are deliberately excluded.
type GodModuleConfig struct {
	MinFanIn    int `yaml:"min_fan_in"`
	MinFanOut   int `yaml:"min_fan_out"`
	MinCombined int `yaml:"min_combined"`
}

// CouplingConfig sets the per-file coupling and cohesion thresholds.
type CouplingConfig struct {
	EfferentMedium int     `yaml:"efferent_medium"`
	EfferentHigh   int     `yaml:"efferent_high"`
	AfferentMedium int     `yaml:"afferent_medium"`
	AfferentHigh   int     `yaml:"afferent_high"`
	CohesionMin    float64 `yaml:"cohesion_min"`
	TotalMedium    int     `yaml:"total_medium"`
	TotalHigh      int     `yaml:"total_high"`
}

// DefaultConfig returns the reference thresholds.
func DefaultConfig() Config {
	return Config{
		GodModule: GodModuleConfig{MinFanIn: 8, MinFanOut: 8, MinCombined: 20},
		Coupling: CouplingConfig{
			EfferentMedium: 15,
			EfferentHigh:   30,
			AfferentMedium: 20,
			AfferentHigh:   40,
			CohesionMin:    0.2,
			TotalMedium:    25,
			TotalHigh:      50,
		},
		Layers: DefaultLayers(),
	}
}

// Input is the extracted graph a detection run operates on. All collections
// are already filtered and resolved; detectors perform no path resolution or
// storage access of their own.
type Input struct {
	ProjectID uuid.UUID
	Files     []model.File
	Symbols   []model.Symbol
	Edges     []model.Edge
	Config    Config
}

// Run executes all five detectors and returns the combined findings list,
// ordered by category then title for deterministic output.
func Run(in Input) []model.Finding {
	var findings []model.Finding

	findings = append(findings, detectCircular(in)...)
	findings = append(findings, detectDeadCode(in)...)
	findings = append(findings, detectGodModules(in)...)
	findings = append(findings, detectLayering(in)...)
	findings = append(findings, detectCoupling(in)...)

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Category != findings[j].Category {
			return findings[i].Category < findings[j].Category
		}
		return findings[i].Title < findings[j].Title
	})

	now := time.Now()
	for i := range findings {
		findings[i].ID = uuid.New()
		findings[i].ProjectID = in.ProjectID
		findings[i].CreatedAt = now
	}

	log.Debug().
		Str("project_id", in.ProjectID.String()).
		Int("findings", len(findings)).
		Msg("detection pass complete")

	return findings
}

// mustJSON marshals detector evidence. Evidence structs are plain data and
// cannot fail to marshal; a failure would be a programming error.
func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal finding evidence")
		return json.RawMessage(`{}`)
	}
	return data
}

// pathsByID builds the file id -> path lookup detectors share.
func pathsByID(files []model.File) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(files))
	for _, f := range files {
		out[f.ID] = f.Path
	}
	return out
}
