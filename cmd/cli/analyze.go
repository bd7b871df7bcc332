package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/archscope-hq/archscope/internal/config"
	"github.com/archscope-hq/archscope/internal/lang"
	"github.com/archscope-hq/archscope/internal/model"
	"github.com/archscope-hq/archscope/internal/pipeline"
	"github.com/archscope-hq/archscope/internal/walker"
)

// analyzeCmd runs a full local analysis: walk, extract, detect, print. No
// database needed; everything lives in memory for the run.
func analyzeCmd() *cobra.Command {
	var (
		format      string
		concurrency int
		severity    string
	)

	cmd := &cobra.Command{
		Use:   "analyze [path]",
		Short: "Analyze a local codebase and report architectural findings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}

			projectCfg, err := config.LoadProjectConfig(root)
			if err != nil {
				return fmt.Errorf("failed to load project config: %w", err)
			}

			store := pipeline.NewMemoryStore()
			p := pipeline.New(store, lang.NewRegistry(), pipeline.WithConcurrency(concurrency))

			src := walker.New(root,
				walker.WithSkipPatterns(projectCfg.Skip),
				walker.WithMaxFileSize(projectCfg.MaxFileSize),
			)

			projectID := uuid.New()
			result, err := p.RunWithConfig(context.Background(), projectID, src, projectCfg.DetectConfig())
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			findings := store.Findings(projectID)
			if severity != "" {
				findings = filterBySeverity(findings, model.Severity(severity))
			}

			log.Info().
				Int("extracted", result.FilesExtracted).
				Int("skipped", result.FilesSkipped).
				Int("parse_failures", result.FilesFailed).
				Dur("duration", result.Duration).
				Msg("analysis complete")

			switch format {
			case "json":
				return printJSON(findings, result)
			default:
				printTable(findings, result)
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json)")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 8, "Extraction worker count")
	cmd.Flags().StringVarP(&severity, "severity", "s", "", "Only show findings of this severity")

	return cmd
}

func filterBySeverity(findings []model.Finding, severity model.Severity) []model.Finding {
	var out []model.Finding
	for _, f := range findings {
		if f.Severity == severity {
			out = append(out, f)
		}
	}
	return out
}

func printJSON(findings []model.Finding, result *pipeline.RunResult) error {
	out := struct {
		Summary  *pipeline.RunResult `json:"summary"`
		Findings []model.Finding     `json:"findings"`
	}{Summary: result, Findings: findings}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printTable(findings []model.Finding, result *pipeline.RunResult) {
	if len(findings) == 0 {
		fmt.Println("No architectural issues found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEVERITY\tCATEGORY\tFINDING")
	for _, f := range findings {
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Severity, f.Category, f.Title)
	}
	w.Flush()

	counts := make(map[model.Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}

	order := []model.Severity{model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow, model.SeverityInfo}
	var parts []string
	for _, s := range order {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	fmt.Printf("\n%d findings (%s)\n", len(findings), joinParts(parts))

	if len(result.PerLayerStats) > 0 {
		layers := make([]string, 0, len(result.PerLayerStats))
		for name := range result.PerLayerStats {
			layers = append(layers, name)
		}
		sort.Strings(layers)
		fmt.Print("Layers: ")
		for i, name := range layers {
			if i > 0 {
				fmt.Print(", ")
			}
			fmt.Printf("%s=%d", name, result.PerLayerStats[name])
		}
		fmt.Println()
	}
}

func joinParts(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
