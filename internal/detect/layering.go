package detect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/archscope-hq/archscope/internal/model"
)

// Layer is one level in the architectural layering model. Lower levels must
// not depend on higher levels.
type Layer struct {
	Level    int      `yaml:"level"`
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"` // directory names matched against path segments
}

// DefaultLayers is the ordered classification table: data at the bottom,
// presentation at the top. Files matching no pattern are outside the layering
// model and excluded from this detector.
func DefaultLayers() []Layer {
	return []Layer{
		{Level: 0, Name: "data", Patterns: []string{"db", "data", "dao", "repository", "repositories", "storage", "persistence"}},
		{Level: 1, Name: "domain", Patterns: []string{"domain", "model", "models", "entity", "entities", "core"}},
		{Level: 2, Name: "service", Patterns: []string{"service", "services", "usecase", "usecases", "logic"}},
		{Level: 3, Name: "api", Patterns: []string{"api", "routes", "router", "controllers", "handlers", "rest"}},
		{Level: 4, Name: "presentation", Patterns: []string{"ui", "views", "pages", "components", "presentation", "cli", "web", "frontend"}},
	}
}

// ClassifyLayer matches a path against the ordered layer table by directory
// segment; the first matching layer wins. Returns nil when no pattern matches.
func ClassifyLayer(path string, layers []Layer) *Layer {
	segments := strings.Split(strings.ToLower(path), "/")
	for i := range layers {
		for _, pattern := range layers[i].Patterns {
			for _, seg := range segments {
				if seg == pattern {
					return &layers[i]
				}
			}
		}
	}
	return nil
}

// LayeringEvidence describes one offending edge.
type LayeringEvidence struct {
	SourceFile  string `json:"source_file"`
	TargetFile  string `json:"target_file"`
	SourceLayer string `json:"source_layer"`
	TargetLayer string `json:"target_layer"`
	LevelGap    int    `json:"level_gap"`
}

// detectLayering flags edges violating the layer ordering: an upward
// dependency (lower layer importing a higher one) and, less severely, a
// downward edge skipping more than one intermediate layer.
func detectLayering(in Input) []model.Finding {
	layers := in.Config.Layers
	if len(layers) == 0 {
		layers = DefaultLayers()
	}

	paths := pathsByID(in.Files)
	layerOf := make(map[uuid.UUID]*Layer, len(in.Files))
	for _, f := range in.Files {
		layerOf[f.ID] = ClassifyLayer(f.Path, layers)
	}

	type offense struct {
		evidence LayeringEvidence
		upward   bool
	}

	var offenses []offense
	seen := make(map[string]struct{})

	for _, e := range in.Edges {
		if e.TargetFileID == nil || *e.TargetFileID == e.SourceFileID {
			continue
		}
		src, tgt := layerOf[e.SourceFileID], layerOf[*e.TargetFileID]
		if src == nil || tgt == nil || src.Level == tgt.Level {
			continue
		}

		key := paths[e.SourceFileID] + "->" + paths[*e.TargetFileID]
		if _, dup := seen[key]; dup {
			continue
		}

		ev := LayeringEvidence{
			SourceFile:  paths[e.SourceFileID],
			TargetFile:  paths[*e.TargetFileID],
			SourceLayer: src.Name,
			TargetLayer: tgt.Name,
		}

		if src.Level < tgt.Level {
			ev.LevelGap = tgt.Level - src.Level
			offenses = append(offenses, offense{evidence: ev, upward: true})
			seen[key] = struct{}{}
		} else if src.Level-tgt.Level > 2 {
			ev.LevelGap = src.Level - tgt.Level
			offenses = append(offenses, offense{evidence: ev})
			seen[key] = struct{}{}
		}
	}

	sort.Slice(offenses, func(i, j int) bool {
		if offenses[i].evidence.SourceFile != offenses[j].evidence.SourceFile {
			return offenses[i].evidence.SourceFile < offenses[j].evidence.SourceFile
		}
		return offenses[i].evidence.TargetFile < offenses[j].evidence.TargetFile
	})

	var findings []model.Finding
	for _, o := range offenses {
		if o.upward {
			severity := model.SeverityMedium
			if o.evidence.LevelGap > 2 {
				severity = model.SeverityHigh
			}
			findings = append(findings, model.Finding{
				Category: model.CategoryLayering,
				Severity: severity,
				Title:    fmt.Sprintf("Upward dependency: %s -> %s", o.evidence.SourceFile, o.evidence.TargetFile),
				Description: fmt.Sprintf("%s (%s layer) depends on %s (%s layer), %d levels above it. Lower layers must not know about higher ones.",
					o.evidence.SourceFile, o.evidence.SourceLayer, o.evidence.TargetFile, o.evidence.TargetLayer, o.evidence.LevelGap),
				Evidence:   mustJSON(o.evidence),
				Suggestion: "Invert the dependency: define an interface in the lower layer and implement it above, or move the shared code down.",
			})
		} else {
			findings = append(findings, model.Finding{
				Category: model.CategoryLayering,
				Severity: model.SeverityLow,
				Title:    fmt.Sprintf("Layer skip: %s -> %s", o.evidence.SourceFile, o.evidence.TargetFile),
				Description: fmt.Sprintf("%s (%s layer) reaches down past %d levels directly into %s (%s layer).",
					o.evidence.SourceFile, o.evidence.SourceLayer, o.evidence.LevelGap, o.evidence.TargetFile, o.evidence.TargetLayer),
				Evidence:   mustJSON(o.evidence),
				Suggestion: "Route the access through the intermediate layer so each layer only talks to its neighbor.",
			})
		}
	}

	return findings
}
