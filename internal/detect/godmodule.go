package detect

import (
	"fmt"
	"sort"

	"github.com/archscope-hq/archscope/internal/metrics"
	"github.com/archscope-hq/archscope/internal/model"
)

// GodModuleEvidence carries the fan numbers behind a god-module finding.
type GodModuleEvidence struct {
	File     string `json:"file"`
	FanIn    int    `json:"fan_in"`
	FanOut   int    `json:"fan_out"`
	Combined int    `json:"combined"`
}

// detectGodModules flags files that both many files depend on and that depend
// on many files. High fan-in-only or fan-out-only hubs are not flagged; the
// combination is what makes a module a change amplifier.
func detectGodModules(in Input) []model.Finding {
	cfg := in.Config.GodModule
	fan := metrics.FanByFile(in.Edges)
	paths := pathsByID(in.Files)

	files := make([]model.File, len(in.Files))
	copy(files, in.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	var findings []model.Finding
	for _, f := range files {
		stats := fan[f.ID]
		combined := stats.Afferent + stats.Efferent

		if stats.Afferent < cfg.MinFanIn || stats.Efferent < cfg.MinFanOut || combined < cfg.MinCombined {
			continue
		}

		var severity model.Severity
		switch {
		case combined > 40:
			severity = model.SeverityHigh
		case combined > 25:
			severity = model.SeverityMedium
		default:
			severity = model.SeverityLow
		}

		findings = append(findings, model.Finding{
			Category: model.CategoryGodModule,
			Severity: severity,
			Title:    fmt.Sprintf("God module: %s", paths[f.ID]),
			Description: fmt.Sprintf("%s is depended on by %d files and itself depends on %d files (combined %d). It concentrates too much of the system.",
				paths[f.ID], stats.Afferent, stats.Efferent, combined),
			Evidence: mustJSON(GodModuleEvidence{
				File:     paths[f.ID],
				FanIn:    stats.Afferent,
				FanOut:   stats.Efferent,
				Combined: combined,
			}),
			Suggestion: "Split the module along its distinct responsibilities so consumers depend only on the part they use.",
		})
	}

	return findings
}
