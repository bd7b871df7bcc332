package detect

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/archscope-hq/archscope/internal/model"
)

// CycleEvidence is the structured evidence for a circular-dependency finding.
type CycleEvidence struct {
	Files []string `json:"files"` // ordered cycle members, project-relative
	Size  int      `json:"size"`
}

// detectCircular finds strongly connected components of size >= 2 in the
// file-level dependency graph. Edges with targets outside the project are
// ignored; they cannot participate in a cycle.
func detectCircular(in Input) []model.Finding {
	adj := make(map[uuid.UUID][]uuid.UUID)
	for _, e := range in.Edges {
		if e.TargetFileID == nil || *e.TargetFileID == e.SourceFileID {
			continue
		}
		adj[e.SourceFileID] = append(adj[e.SourceFileID], *e.TargetFileID)
	}

	nodes := make([]uuid.UUID, 0, len(in.Files))
	for _, f := range in.Files {
		nodes = append(nodes, f.ID)
	}

	paths := pathsByID(in.Files)
	var findings []model.Finding

	for _, scc := range stronglyConnected(nodes, adj) {
		if len(scc) < 2 {
			continue
		}

		members := make([]string, 0, len(scc))
		for _, id := range scc {
			members = append(members, paths[id])
		}

		var severity model.Severity
		switch {
		case len(scc) > 5:
			severity = model.SeverityHigh
		case len(scc) > 3:
			severity = model.SeverityMedium
		default:
			severity = model.SeverityLow
		}

		findings = append(findings, model.Finding{
			Category: model.CategoryCircularDep,
			Severity: severity,
			Title:    fmt.Sprintf("Circular dependency between %d files", len(scc)),
			Description: fmt.Sprintf("Files form an import cycle: %s. Changes to any member ripple through all of them.",
				strings.Join(members, " -> ")),
			Evidence:   mustJSON(CycleEvidence{Files: members, Size: len(scc)}),
			Suggestion: "Break the cycle by extracting the shared pieces into a module all members can depend on, or invert one of the dependencies behind an interface.",
		})
	}

	return findings
}

// stronglyConnected is Tarjan's algorithm with an explicit frame stack so
// graphs with thousands of nodes cannot overflow the goroutine stack.
// The returned components partition the node set; members keep a stable,
// deterministic order (reverse discovery order within each component).
func stronglyConnected(nodes []uuid.UUID, adj map[uuid.UUID][]uuid.UUID) [][]uuid.UUID {
	type frame struct {
		node uuid.UUID
		edge int // next adjacency index to explore
	}

	index := make(map[uuid.UUID]int, len(nodes))
	lowlink := make(map[uuid.UUID]int, len(nodes))
	onStack := make(map[uuid.UUID]bool, len(nodes))
	var stack []uuid.UUID
	var components [][]uuid.UUID
	next := 0

	for _, start := range nodes {
		if _, visited := index[start]; visited {
			continue
		}

		frames := []frame{{node: start}}
		index[start] = next
		lowlink[start] = next
		next++
		stack = append(stack, start)
		onStack[start] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]
			neighbors := adj[f.node]

			if f.edge < len(neighbors) {
				w := neighbors[f.edge]
				f.edge++

				if _, visited := index[w]; !visited {
					index[w] = next
					lowlink[w] = next
					next++
					stack = append(stack, w)
					onStack[w] = true
					frames = append(frames, frame{node: w})
				} else if onStack[w] {
					if index[w] < lowlink[f.node] {
						lowlink[f.node] = index[w]
					}
				}
				continue
			}

			// Node fully explored: pop the frame, maybe pop a component.
			v := f.node
			frames = frames[:len(frames)-1]

			if len(frames) > 0 {
				parent := frames[len(frames)-1].node
				if lowlink[v] < lowlink[parent] {
					lowlink[parent] = lowlink[v]
				}
			}

			if lowlink[v] == index[v] {
				var scc []uuid.UUID
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == v {
						break
					}
				}
				components = append(components, scc)
			}
		}
	}

	return components
}
