package detect

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/archscope-hq/archscope/internal/model"
)

// DeadCodeEvidence lists the unreferenced exports of one file.
type DeadCodeEvidence struct {
	File    string   `json:"file"`
	Symbols []string `json:"symbols"`
}

// detectDeadCode flags exported declarations that no dependency edge targets.
// Dead symbols are grouped into one finding per owning file so a file full of
// unused exports does not explode the findings list.
//
// This is a reference-edge heuristic: dynamic or reflective access is
// invisible to it and produces false positives. That limitation is inherited
// behavior, not a bug to fix here.
func detectDeadCode(in Input) []model.Finding {
	referenced := make(map[uuid.UUID]struct{})
	for _, e := range in.Edges {
		if e.TargetSymbolID != nil {
			referenced[*e.TargetSymbolID] = struct{}{}
		}
	}

	deadByFile := make(map[uuid.UUID][]string)
	for _, s := range in.Symbols {
		if !s.Exported || !s.Kind.IsDeclaration() {
			continue
		}
		if _, used := referenced[s.ID]; used {
			continue
		}
		deadByFile[s.FileID] = append(deadByFile[s.FileID], s.Name)
	}

	paths := pathsByID(in.Files)

	fileIDs := make([]uuid.UUID, 0, len(deadByFile))
	for id := range deadByFile {
		fileIDs = append(fileIDs, id)
	}
	sort.Slice(fileIDs, func(i, j int) bool { return paths[fileIDs[i]] < paths[fileIDs[j]] })

	var findings []model.Finding
	for _, fileID := range fileIDs {
		names := deadByFile[fileID]
		sort.Strings(names)

		severity := model.SeverityLow
		if len(names) > 5 {
			severity = model.SeverityMedium
		}

		findings = append(findings, model.Finding{
			Category: model.CategoryDeadCode,
			Severity: severity,
			Title:    fmt.Sprintf("%d unreferenced exports in %s", len(names), paths[fileID]),
			Description: fmt.Sprintf("%s exports %d symbols that nothing in the project references.",
				paths[fileID], len(names)),
			Evidence:   mustJSON(DeadCodeEvidence{File: paths[fileID], Symbols: names}),
			Suggestion: "Remove the unused exports or make them private. If they are consumed dynamically or by external packages, consider documenting that at the declaration.",
		})
	}

	return findings
}
