package detect

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archscope-hq/archscope/internal/model"
)

// graph is a small test-graph builder keyed by path.
type graph struct {
	files map[string]model.File
	edges []model.Edge
}

func newGraph(paths ...string) *graph {
	g := &graph{files: make(map[string]model.File)}
	for _, p := range paths {
		g.files[p] = model.File{ID: uuid.New(), Path: p}
	}
	return g
}

func (g *graph) id(path string) uuid.UUID {
	f, ok := g.files[path]
	if !ok {
		panic("unknown path: " + path)
	}
	return f.ID
}

func (g *graph) edge(from, to string) *graph {
	target := g.id(to)
	g.edges = append(g.edges, model.Edge{
		ID:           uuid.New(),
		SourceFileID: g.id(from),
		TargetFileID: &target,
		Kind:         model.EdgeImport,
	})
	return g
}

func (g *graph) input() Input {
	files := make([]model.File, 0, len(g.files))
	for _, f := range g.files {
		files = append(files, f)
	}
	return Input{
		ProjectID: uuid.New(),
		Files:     files,
		Edges:     g.edges,
		Config:    DefaultConfig(),
	}
}

func findingsOf(findings []model.Finding, c model.Category) []model.Finding {
	var out []model.Finding
	for _, f := range findings {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

func TestDetectCircular_ThreeFileCycle(t *testing.T) {
	g := newGraph("a.ts", "b.ts", "c.ts", "d.ts").
		edge("a.ts", "b.ts").
		edge("b.ts", "c.ts").
		edge("c.ts", "a.ts").
		edge("d.ts", "a.ts") // d feeds the cycle but is not in it

	findings := detectCircular(g.input())
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, model.SeverityLow, f.Severity, "small cycles stay low until they grow")
	assert.Equal(t, "Circular dependency between 3 files", f.Title)

	var ev CycleEvidence
	require.NoError(t, json.Unmarshal(f.Evidence, &ev))
	assert.Equal(t, 3, ev.Size)
	assert.ElementsMatch(t, []string{"a.ts", "b.ts", "c.ts"}, ev.Files)
}

func TestDetectCircular_FourFileCycleIsMedium(t *testing.T) {
	g := newGraph("a.ts", "b.ts", "c.ts", "d.ts").
		edge("a.ts", "b.ts").
		edge("b.ts", "c.ts").
		edge("c.ts", "d.ts").
		edge("d.ts", "a.ts")

	findings := detectCircular(g.input())
	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityMedium, findings[0].Severity)
}

func TestDetectCircular_SixFileCycleIsHigh(t *testing.T) {
	paths := []string{"a.ts", "b.ts", "c.ts", "d.ts", "e.ts", "f.ts"}
	g := newGraph(paths...)
	for i := range paths {
		g.edge(paths[i], paths[(i+1)%len(paths)])
	}

	findings := detectCircular(g.input())
	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityHigh, findings[0].Severity)
}

func TestDetectCircular_TwoFileCycleIsLow(t *testing.T) {
	g := newGraph("a.ts", "b.ts").
		edge("a.ts", "b.ts").
		edge("b.ts", "a.ts")

	findings := detectCircular(g.input())
	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityLow, findings[0].Severity)
}

func TestDetectCircular_AcyclicGraphIsClean(t *testing.T) {
	g := newGraph("a.ts", "b.ts", "c.ts").
		edge("a.ts", "b.ts").
		edge("b.ts", "c.ts").
		edge("a.ts", "c.ts")

	assert.Empty(t, detectCircular(g.input()))
}

func TestStronglyConnected_PartitionsNodes(t *testing.T) {
	// Two disjoint cycles plus an isolated node.
	g := newGraph("a", "b", "c", "d", "e").
		edge("a", "b").edge("b", "a").
		edge("c", "d").edge("d", "c")

	adj := make(map[uuid.UUID][]uuid.UUID)
	for _, e := range g.edges {
		adj[e.SourceFileID] = append(adj[e.SourceFileID], *e.TargetFileID)
	}
	var nodes []uuid.UUID
	for _, f := range g.files {
		nodes = append(nodes, f.ID)
	}

	components := stronglyConnected(nodes, adj)

	total := 0
	seen := make(map[uuid.UUID]bool)
	for _, scc := range components {
		for _, id := range scc {
			assert.False(t, seen[id], "node appears in exactly one component")
			seen[id] = true
			total++
		}
	}
	assert.Equal(t, len(nodes), total, "components partition the node set")

	var sizes []int
	for _, scc := range components {
		sizes = append(sizes, len(scc))
	}
	assert.ElementsMatch(t, []int{2, 2, 1}, sizes)
}

func TestStronglyConnected_LongChainNoRecursion(t *testing.T) {
	// A 10k-node cycle; the explicit stack must handle it without overflowing.
	n := 10000
	nodes := make([]uuid.UUID, n)
	for i := range nodes {
		nodes[i] = uuid.New()
	}
	adj := make(map[uuid.UUID][]uuid.UUID, n)
	for i := range nodes {
		adj[nodes[i]] = []uuid.UUID{nodes[(i+1)%n]}
	}

	components := stronglyConnected(nodes, adj)
	require.Len(t, components, 1)
	assert.Len(t, components[0], n)
}

func TestDetectDeadCode(t *testing.T) {
	g := newGraph("lib.ts", "main.ts")
	libID := g.id("lib.ts")

	used := model.Symbol{ID: uuid.New(), FileID: libID, Kind: model.SymbolFunction, Name: "used", Exported: true}
	private := model.Symbol{ID: uuid.New(), FileID: libID, Kind: model.SymbolFunction, Name: "internal", Exported: false}
	importSym := model.Symbol{ID: uuid.New(), FileID: libID, Kind: model.SymbolImport, Name: "fs", Exported: false}

	var dead []model.Symbol
	for i := 0; i < 6; i++ {
		dead = append(dead, model.Symbol{
			ID: uuid.New(), FileID: libID, Kind: model.SymbolFunction,
			Name: fmt.Sprintf("unused%d", i), Exported: true,
		})
	}

	usedID := used.ID
	mainID := g.id("main.ts")
	in := g.input()
	in.Symbols = append([]model.Symbol{used, private, importSym}, dead...)
	in.Edges = append(in.Edges, model.Edge{
		ID: uuid.New(), SourceFileID: mainID, TargetFileID: &libID,
		TargetSymbolID: &usedID, Kind: model.EdgeCall,
	})

	findings := detectDeadCode(in)
	require.Len(t, findings, 1, "dead exports group into one finding per file")

	f := findings[0]
	assert.Equal(t, model.SeverityMedium, f.Severity, "more than 5 dead exports is medium")
	assert.Equal(t, "6 unreferenced exports in lib.ts", f.Title)

	var ev DeadCodeEvidence
	require.NoError(t, json.Unmarshal(f.Evidence, &ev))
	assert.Len(t, ev.Symbols, 6)
	assert.NotContains(t, ev.Symbols, "used")
	assert.NotContains(t, ev.Symbols, "internal", "private symbols are not dead code")
	assert.NotContains(t, ev.Symbols, "fs", "imports are not declarations")
}

func TestDetectGodModules(t *testing.T) {
	// hub.ts: fan-in 15, fan-out 12 -> combined 27 -> flagged, medium.
	paths := []string{"hub.ts"}
	for i := 0; i < 15; i++ {
		paths = append(paths, fmt.Sprintf("in%d.ts", i))
	}
	for i := 0; i < 12; i++ {
		paths = append(paths, fmt.Sprintf("out%d.ts", i))
	}
	g := newGraph(paths...)
	for i := 0; i < 15; i++ {
		g.edge(fmt.Sprintf("in%d.ts", i), "hub.ts")
	}
	for i := 0; i < 12; i++ {
		g.edge("hub.ts", fmt.Sprintf("out%d.ts", i))
	}

	findings := detectGodModules(g.input())
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, "God module: hub.ts", f.Title)
	assert.Equal(t, model.SeverityMedium, f.Severity)

	var ev GodModuleEvidence
	require.NoError(t, json.Unmarshal(f.Evidence, &ev))
	assert.Equal(t, 15, ev.FanIn)
	assert.Equal(t, 12, ev.FanOut)
	assert.Equal(t, 27, ev.Combined)
}

func TestDetectGodModules_OneSidedHubNotFlagged(t *testing.T) {
	// util.ts has fan-in 25 but fan-out 0: high afferent alone is not a god
	// module no matter how large.
	paths := []string{"util.ts"}
	for i := 0; i < 25; i++ {
		paths = append(paths, fmt.Sprintf("user%d.ts", i))
	}
	g := newGraph(paths...)
	for i := 0; i < 25; i++ {
		g.edge(fmt.Sprintf("user%d.ts", i), "util.ts")
	}

	assert.Empty(t, detectGodModules(g.input()))
}

func TestDetectGodModules_BelowFloorNotFlagged(t *testing.T) {
	// fan-in 7 (< 8 floor) with huge fan-out stays unflagged.
	paths := []string{"hub.ts"}
	for i := 0; i < 7; i++ {
		paths = append(paths, fmt.Sprintf("in%d.ts", i))
	}
	for i := 0; i < 30; i++ {
		paths = append(paths, fmt.Sprintf("out%d.ts", i))
	}
	g := newGraph(paths...)
	for i := 0; i < 7; i++ {
		g.edge(fmt.Sprintf("in%d.ts", i), "hub.ts")
	}
	for i := 0; i < 30; i++ {
		g.edge("hub.ts", fmt.Sprintf("out%d.ts", i))
	}

	assert.Empty(t, detectGodModules(g.input()))
}

func TestClassifyLayer(t *testing.T) {
	layers := DefaultLayers()

	tests := []struct {
		path  string
		layer string
	}{
		{"src/db/conn.ts", "data"},
		{"src/models/user.ts", "domain"},
		{"src/services/billing.ts", "service"},
		{"src/api/routes.ts", "api"},
		{"src/ui/button.tsx", "presentation"},
		{"src/helpers/misc.ts", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			l := ClassifyLayer(tt.path, layers)
			if tt.layer == "" {
				assert.Nil(t, l)
			} else {
				require.NotNil(t, l)
				assert.Equal(t, tt.layer, l.Name)
			}
		})
	}
}

func TestDetectLayering_UpwardDependency(t *testing.T) {
	g := newGraph("src/db/conn.ts", "src/ui/page.tsx").
		edge("src/db/conn.ts", "src/ui/page.tsx")

	findings := detectLayering(g.input())
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, model.SeverityHigh, f.Severity, "4-level upward gap is high")
	assert.Contains(t, f.Title, "Upward dependency:")

	var ev LayeringEvidence
	require.NoError(t, json.Unmarshal(f.Evidence, &ev))
	assert.Equal(t, "data", ev.SourceLayer)
	assert.Equal(t, "presentation", ev.TargetLayer)
	assert.Equal(t, 4, ev.LevelGap)
}

func TestDetectLayering_SmallUpwardGapIsMedium(t *testing.T) {
	g := newGraph("src/db/conn.ts", "src/services/core.ts").
		edge("src/db/conn.ts", "src/services/core.ts")

	findings := detectLayering(g.input())
	require.Len(t, findings, 1)
	assert.Equal(t, model.SeverityMedium, findings[0].Severity)
}

func TestDetectLayering_DownwardSkip(t *testing.T) {
	g := newGraph("src/ui/page.tsx", "src/db/conn.ts").
		edge("src/ui/page.tsx", "src/db/conn.ts")

	findings := detectLayering(g.input())
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, model.SeverityLow, f.Severity)
	assert.Contains(t, f.Title, "Layer skip:")
}

func TestDetectLayering_NeighborsAllowed(t *testing.T) {
	g := newGraph("src/api/routes.ts", "src/services/core.ts").
		edge("src/api/routes.ts", "src/services/core.ts")

	assert.Empty(t, detectLayering(g.input()))
}

func TestDetectLayering_UnlayeredFilesIgnored(t *testing.T) {
	g := newGraph("src/misc/a.ts", "src/ui/page.tsx").
		edge("src/misc/a.ts", "src/ui/page.tsx")

	assert.Empty(t, detectLayering(g.input()))
}

func TestDetectCoupling_Efferent(t *testing.T) {
	paths := []string{"fat.ts"}
	for i := 0; i < 16; i++ {
		paths = append(paths, fmt.Sprintf("dep%d.ts", i))
	}
	g := newGraph(paths...)
	for i := 0; i < 16; i++ {
		g.edge("fat.ts", fmt.Sprintf("dep%d.ts", i))
	}

	findings := detectCoupling(g.input())
	require.Len(t, findings, 1)
	assert.Equal(t, "High efferent coupling: fat.ts", findings[0].Title)
	assert.Equal(t, model.SeverityMedium, findings[0].Severity)
}

func TestDetectCoupling_LowCohesion(t *testing.T) {
	g := newGraph("glue.ts")
	in := g.input()

	cohesion := 0.1
	for i := range in.Files {
		in.Files[i].Cohesion = &cohesion
	}

	findings := detectCoupling(in)
	require.Len(t, findings, 1)
	assert.Equal(t, "Low cohesion: glue.ts", findings[0].Title)
	assert.Equal(t, model.SeverityLow, findings[0].Severity)
}

func TestDetectCoupling_ChecksAreIndependent(t *testing.T) {
	// 26 in + 26 out: efferent (>15), afferent (>20) and total (>25) all fire.
	paths := []string{"hub.ts"}
	for i := 0; i < 26; i++ {
		paths = append(paths, fmt.Sprintf("in%d.ts", i), fmt.Sprintf("out%d.ts", i))
	}
	g := newGraph(paths...)
	for i := 0; i < 26; i++ {
		g.edge(fmt.Sprintf("in%d.ts", i), "hub.ts")
		g.edge("hub.ts", fmt.Sprintf("out%d.ts", i))
	}

	findings := detectCoupling(g.input())

	var hubFindings []model.Finding
	for _, f := range findings {
		var ev CouplingEvidence
		require.NoError(t, json.Unmarshal(f.Evidence, &ev))
		if ev.File == "hub.ts" {
			hubFindings = append(hubFindings, f)
		}
	}
	assert.Len(t, hubFindings, 3)
}

func TestRun_DeterministicOrderAndStamping(t *testing.T) {
	g := newGraph("a.ts", "b.ts", "src/db/x.ts", "src/ui/y.tsx").
		edge("a.ts", "b.ts").
		edge("b.ts", "a.ts").
		edge("src/db/x.ts", "src/ui/y.tsx")

	in := g.input()
	first := Run(in)
	second := Run(in)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Title, second[i].Title, "stable ordering")
		assert.Equal(t, first[i].Category, second[i].Category)
		assert.NotEqual(t, uuid.Nil, first[i].ID)
		assert.Equal(t, in.ProjectID, first[i].ProjectID)
		assert.False(t, first[i].CreatedAt.IsZero())
	}

	assert.NotEmpty(t, findingsOf(first, model.CategoryCircularDep))
	assert.NotEmpty(t, findingsOf(first, model.CategoryLayering))
}
