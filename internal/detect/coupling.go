package detect

import (
	"fmt"
	"sort"

	"github.com/archscope-hq/archscope/internal/metrics"
	"github.com/archscope-hq/archscope/internal/model"
)

// CouplingEvidence carries the scores behind a coupling/cohesion finding.
type CouplingEvidence struct {
	File     string   `json:"file"`
	Metric   string   `json:"metric"` // efferent | afferent | cohesion | total
	Value    float64  `json:"value"`
	Cohesion *float64 `json:"cohesion,omitempty"`
}

// detectCoupling runs independent threshold checks per file: efferent
// coupling, afferent coupling, cohesion and total coupling. The checks are
// not mutually exclusive; one file can produce several findings.
func detectCoupling(in Input) []model.Finding {
	cfg := in.Config.Coupling
	fan := metrics.FanByFile(in.Edges)

	files := make([]model.File, len(in.Files))
	copy(files, in.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	var findings []model.Finding
	for _, f := range files {
		stats := fan[f.ID]
		total := stats.Efferent + stats.Afferent

		if stats.Efferent > cfg.EfferentMedium {
			severity := model.SeverityMedium
			if stats.Efferent > cfg.EfferentHigh {
				severity = model.SeverityHigh
			}
			findings = append(findings, couplingFinding(f.Path, "efferent", float64(stats.Efferent), severity,
				fmt.Sprintf("%s depends on %d other files; it breaks whenever any of them changes.", f.Path, stats.Efferent),
				"Reduce the import surface: depend on narrower interfaces or merge closely related helpers."))
		}

		if stats.Afferent > cfg.AfferentMedium {
			severity := model.SeverityMedium
			if stats.Afferent > cfg.AfferentHigh {
				severity = model.SeverityHigh
			}
			findings = append(findings, couplingFinding(f.Path, "afferent", float64(stats.Afferent), severity,
				fmt.Sprintf("%d files depend on %s; every change here has a wide blast radius.", stats.Afferent, f.Path),
				"Stabilize the interface of this file or split it so consumers depend on smaller pieces."))
		}

		if f.Cohesion != nil && *f.Cohesion >= 0 && *f.Cohesion < cfg.CohesionMin {
			findings = append(findings, model.Finding{
				Category: model.CategoryCoupling,
				Severity: model.SeverityLow,
				Title:    fmt.Sprintf("Low cohesion: %s", f.Path),
				Description: fmt.Sprintf("%s has low cohesion (%.2f): its external dependencies outweigh what it declares itself.",
					f.Path, *f.Cohesion),
				Evidence:   mustJSON(CouplingEvidence{File: f.Path, Metric: "cohesion", Value: *f.Cohesion}),
				Suggestion: "Move logic closer to the data it operates on, or inline this file into its main consumer.",
			})
		}

		if total > cfg.TotalMedium {
			severity := model.SeverityMedium
			if total > cfg.TotalHigh {
				severity = model.SeverityHigh
			}
			findings = append(findings, couplingFinding(f.Path, "total", float64(total), severity,
				fmt.Sprintf("%s has total coupling %d (in %d, out %d).", f.Path, total, stats.Afferent, stats.Efferent),
				"Untangle this file: separate what it provides from what it consumes."))
		}
	}

	return findings
}

func couplingFinding(path, metric string, value float64, severity model.Severity, description, suggestion string) model.Finding {
	return model.Finding{
		Category:    model.CategoryCoupling,
		Severity:    severity,
		Title:       fmt.Sprintf("High %s coupling: %s", metric, path),
		Description: description,
		Evidence:    mustJSON(CouplingEvidence{File: path, Metric: metric, Value: value}),
		Suggestion:  suggestion,
	}
}
