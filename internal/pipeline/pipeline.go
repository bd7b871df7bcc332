// Package pipeline orchestrates structural extraction and pattern detection
// for one project: it walks the file source, re-extracts changed files with a
// bounded worker pool, links symbol references project-wide, refreshes
// metrics, and swaps in a fresh findings snapshot.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/archscope-hq/archscope/internal/detect"
	"github.com/archscope-hq/archscope/internal/extract"
	"github.com/archscope-hq/archscope/internal/lang"
	"github.com/archscope-hq/archscope/internal/metrics"
	"github.com/archscope-hq/archscope/internal/model"
	"github.com/archscope-hq/archscope/internal/parser"
)

// ErrRunInProgress is returned when a second run is attempted for a project
// that already has one executing. Runs for the same project never interleave.
var ErrRunInProgress = errors.New("analysis run already in progress for project")

// State is the orchestrator's position in a run.
type State string

const (
	StateIdle       State = "idle"
	StateExtracting State = "extracting_files"
	StatePersisting State = "persisting_graph"
	StateDetecting  State = "detecting_patterns"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Storage is the persistence collaborator. All operations are scoped by
// project; a failed write aborts the run.
type Storage interface {
	UpsertFile(ctx context.Context, f *model.File) error
	DeleteFile(ctx context.Context, fileID uuid.UUID) error
	UpdateFileMetrics(ctx context.Context, fileID uuid.UUID, efferent, afferent int, cohesion float64) error
	DeleteSymbolsForFile(ctx context.Context, fileID uuid.UUID) error
	DeleteEdgesForFile(ctx context.Context, fileID uuid.UUID) error
	BulkInsertSymbols(ctx context.Context, symbols []model.Symbol) error
	BulkInsertEdges(ctx context.Context, edges []model.Edge) error
	GetFilesForProject(ctx context.Context, projectID uuid.UUID) ([]model.File, error)
	GetSymbolsForProject(ctx context.Context, projectID uuid.UUID) ([]model.Symbol, error)
	GetEdgesForProject(ctx context.Context, projectID uuid.UUID) ([]model.Edge, error)
	DeleteFindingsForProject(ctx context.Context, projectID uuid.UUID) error
	BulkInsertFindings(ctx context.Context, findings []model.Finding) error
}

// FileSource yields every eligible file of a project workspace, already
// filtered by skip patterns and the size cutoff.
type FileSource interface {
	Walk(ctx context.Context, fn func(path string, content []byte, size int64) error) error
}

// RunResult summarizes one completed run.
type RunResult struct {
	FindingsCount  int            `json:"findings_count"`
	PerLayerStats  map[string]int `json:"per_layer_stats"`
	FilesExtracted int            `json:"files_extracted"`
	FilesSkipped   int            `json:"files_skipped"`
	FilesFailed    int            `json:"files_failed"`
	Duration       time.Duration  `json:"duration"`
}

// Pipeline drives extraction and detection. One Pipeline serves many projects
// concurrently; runs for the same project are serialized by a per-project
// lock.
type Pipeline struct {
	store       Storage
	registry    *lang.Registry
	concurrency int
	detectCfg   detect.Config
	locks       sync.Map // uuid.UUID -> *sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency bounds the extraction worker pool.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithDetectConfig replaces the default detector thresholds.
func WithDetectConfig(cfg detect.Config) Option {
	return func(p *Pipeline) { p.detectCfg = cfg }
}

// New creates a pipeline over the given storage and grammar registry.
func New(store Storage, registry *lang.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		registry:    registry,
		concurrency: 8,
		detectCfg:   detect.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type fileEntry struct {
	path    string
	content []byte
	size    int64
}

// Run executes the full structural-and-detection pipeline for a project. It
// is idempotent: repeated runs without file changes skip every file and
// reproduce the same findings. Partial progress is not rolled back on
// failure; files committed before the failure keep their updated state, and
// previous findings stay in place until a detection pass has fully succeeded
// in memory.
func (p *Pipeline) Run(ctx context.Context, projectID uuid.UUID, src FileSource) (*RunResult, error) {
	return p.RunWithConfig(ctx, projectID, src, p.detectCfg)
}

// RunWithConfig is Run with per-project detector thresholds, for callers that
// load a project's own configuration.
func (p *Pipeline) RunWithConfig(ctx context.Context, projectID uuid.UUID, src FileSource, detectCfg detect.Config) (*RunResult, error) {
	lock := p.lockFor(projectID)
	if !lock.TryLock() {
		return nil, ErrRunInProgress
	}
	defer lock.Unlock()

	started := time.Now()
	logger := log.With().Str("project_id", projectID.String()).Logger()

	fail := func(state State, err error) (*RunResult, error) {
		logger.Error().Err(err).Str("state", string(state)).Msg("analysis run failed")
		return nil, err
	}

	logger.Info().Str("state", string(StateExtracting)).Msg("analysis run started")

	// Snapshot the walk first: the dependency resolver needs the complete set
	// of project paths before any file can be extracted.
	var entries []fileEntry
	if err := src.Walk(ctx, func(path string, content []byte, size int64) error {
		entries = append(entries, fileEntry{path: path, content: content, size: size})
		return nil
	}); err != nil {
		return fail(StateExtracting, fmt.Errorf("failed to walk project files: %w", err))
	}

	prior, err := p.store.GetFilesForProject(ctx, projectID)
	if err != nil {
		return fail(StateExtracting, fmt.Errorf("failed to load prior files: %w", err))
	}
	priorByPath := make(map[string]model.File, len(prior))
	for _, f := range prior {
		priorByPath[f.Path] = f
	}

	known := make(map[string]struct{}, len(entries))
	fileIDs := make(map[string]uuid.UUID, len(entries))
	for _, e := range entries {
		known[e.path] = struct{}{}
		if pf, ok := priorByPath[e.path]; ok {
			fileIDs[e.path] = pf.ID
		} else {
			fileIDs[e.path] = uuid.New()
		}
	}

	// Files that disappeared from the workspace are removed with their
	// symbols and edges before anything else runs.
	for path, pf := range priorByPath {
		if _, stillThere := known[path]; stillThere {
			continue
		}
		if err := p.removeFile(ctx, pf.ID); err != nil {
			return fail(StateExtracting, err)
		}
	}

	ext, err := p.extractAll(ctx, projectID, entries, priorByPath, fileIDs, known)
	if err != nil {
		return fail(StateExtracting, err)
	}

	logger.Info().
		Str("state", string(StatePersisting)).
		Int("extracted", ext.extracted).
		Int("skipped", ext.skipped).
		Int("parse_failures", ext.failed).
		Msg("extraction complete, linking references")

	symbols, err := p.store.GetSymbolsForProject(ctx, projectID)
	if err != nil {
		return fail(StatePersisting, fmt.Errorf("failed to load symbols: %w", err))
	}
	if err := p.linkReferences(ctx, projectID, symbols, ext.refsByFile); err != nil {
		return fail(StatePersisting, err)
	}

	edges, err := p.store.GetEdgesForProject(ctx, projectID)
	if err != nil {
		return fail(StatePersisting, fmt.Errorf("failed to load edges: %w", err))
	}
	files, err := p.store.GetFilesForProject(ctx, projectID)
	if err != nil {
		return fail(StatePersisting, fmt.Errorf("failed to load files: %w", err))
	}
	if err := p.refreshMetrics(ctx, files, symbols, edges); err != nil {
		return fail(StatePersisting, err)
	}

	// Cancellation is honored between phases; a single detection pass is
	// quick relative to extraction and is not interrupted mid-flight.
	if err := ctx.Err(); err != nil {
		return fail(StateDetecting, err)
	}

	logger.Info().Str("state", string(StateDetecting)).Msg("running pattern detection")

	files, err = p.store.GetFilesForProject(ctx, projectID)
	if err != nil {
		return fail(StateDetecting, fmt.Errorf("failed to reload files: %w", err))
	}

	// Detection is a whole-graph computation: cycles and coupling are global
	// properties, so it always runs over the entire project, not just the
	// files this run touched.
	findings := detect.Run(detect.Input{
		ProjectID: projectID,
		Files:     files,
		Symbols:   symbols,
		Edges:     edges,
		Config:    detectCfg,
	})

	// Findings are swapped, not deleted first: the delete only happens once a
	// full detection pass has succeeded in memory.
	if err := p.store.DeleteFindingsForProject(ctx, projectID); err != nil {
		return fail(StateDetecting, fmt.Errorf("failed to clear findings: %w", err))
	}
	if err := p.store.BulkInsertFindings(ctx, findings); err != nil {
		return fail(StateDetecting, fmt.Errorf("failed to insert findings: %w", err))
	}

	result := &RunResult{
		FindingsCount:  len(findings),
		PerLayerStats:  layerStats(files, detectCfg.Layers),
		FilesExtracted: ext.extracted,
		FilesSkipped:   ext.skipped,
		FilesFailed:    ext.failed,
		Duration:       time.Since(started),
	}

	logger.Info().
		Str("state", string(StateDone)).
		Int("findings", result.FindingsCount).
		Dur("duration", result.Duration).
		Msg("analysis run complete")

	return result, nil
}

type extraction struct {
	extracted  int
	skipped    int
	failed     int
	refsByFile map[uuid.UUID][]extract.Ref
}

// extractAll runs per-file extraction with a bounded worker pool. Each worker
// owns its own parser adapter; tree-sitter parsers are not shared across
// goroutines.
func (p *Pipeline) extractAll(ctx context.Context, projectID uuid.UUID, entries []fileEntry,
	priorByPath map[string]model.File, fileIDs map[string]uuid.UUID, known map[string]struct{}) (*extraction, error) {

	ext := &extraction{refsByFile: make(map[uuid.UUID][]extract.Ref)}
	var mu sync.Mutex

	adapters := sync.Pool{
		New: func() interface{} { return parser.NewAdapter(p.registry) },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, e := range entries {
		e := e
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			hash := fmt.Sprintf("%016x", xxhash.Sum64(e.content))
			if pf, ok := priorByPath[e.path]; ok && pf.ContentHash == hash {
				mu.Lock()
				ext.skipped++
				mu.Unlock()
				return nil
			}

			a := adapters.Get().(*parser.Adapter)
			defer adapters.Put(a)

			refs, parseFailed, err := p.extractFile(gctx, a, projectID, e, hash, fileIDs, known)
			if err != nil {
				return err
			}

			mu.Lock()
			if parseFailed {
				ext.failed++
			} else {
				ext.extracted++
				if refs != nil {
					ext.refsByFile[fileIDs[e.path]] = refs
				}
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ext, nil
}

// extractFile re-extracts one changed or new file: the file row is replaced,
// stale symbols and edges are deleted, fresh ones inserted. A parse failure
// skips the file entirely, leaving its previously stored data untouched —
// good data is never overwritten with empty data.
func (p *Pipeline) extractFile(ctx context.Context, a *parser.Adapter, projectID uuid.UUID,
	e fileEntry, hash string, fileIDs map[string]uuid.UUID, known map[string]struct{}) ([]extract.Ref, bool, error) {

	l := lang.Detect(e.path)
	isDoc, isTest, isConfig := lang.Classify(e.path)

	now := time.Now()
	f := &model.File{
		ID:          fileIDs[e.path],
		ProjectID:   projectID,
		Path:        e.path,
		SizeBytes:   e.size,
		LineCount:   countLines(e.content),
		ContentHash: hash,
		IsDoc:       isDoc,
		IsTest:      isTest,
		IsConfig:    isConfig,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Unsupported extension: the file is still recorded, but symbol and
	// dependency extraction is skipped.
	if !l.Supported() {
		return nil, false, p.store.UpsertFile(ctx, f)
	}

	langName := string(l)
	f.Language = &langName

	tree, err := a.Parse(ctx, e.content, l)
	if err != nil {
		log.Warn().Err(err).Str("path", e.path).Msg("parse failed, keeping prior data for file")
		return nil, true, nil
	}
	defer tree.Close()
	root := tree.RootNode()

	complexity := metrics.Complexity(root, l, e.content)
	f.Complexity = &complexity

	rawSymbols := extract.Symbols(root, l, e.content)
	imports := extract.Imports(root, l, e.path, known, e.content)
	refs := extract.Refs(root, l, e.content)

	symbols := make([]model.Symbol, 0, len(rawSymbols))
	for _, rs := range rawSymbols {
		s := model.Symbol{
			ID:        uuid.New(),
			FileID:    f.ID,
			Kind:      rs.Kind,
			Name:      rs.Name,
			StartLine: rs.StartLine,
			EndLine:   rs.EndLine,
			Exported:  rs.Exported,
		}
		if rs.Signature != "" {
			sig := rs.Signature
			s.Signature = &sig
		}
		if rs.Doc != "" {
			doc := rs.Doc
			s.DocString = &doc
		}
		if rs.Kind == model.SymbolFunction && rs.Node != nil {
			c := metrics.Complexity(rs.Node, l, e.content)
			s.Complexity = &c
		}
		symbols = append(symbols, s)
	}

	edges := make([]model.Edge, 0, len(imports))
	for _, imp := range imports {
		edge := model.Edge{
			ID:           uuid.New(),
			ProjectID:    projectID,
			SourceFileID: f.ID,
			Kind:         imp.Kind,
			Specifier:    imp.Specifier,
		}
		if imp.Target != "" {
			if targetID, ok := fileIDs[imp.Target]; ok {
				id := targetID
				edge.TargetFileID = &id
			}
		}
		edges = append(edges, edge)
	}

	// Delete-then-insert, never a symbol-level merge.
	if err := p.store.UpsertFile(ctx, f); err != nil {
		return nil, false, fmt.Errorf("failed to upsert file %s: %w", e.path, err)
	}
	if err := p.store.DeleteSymbolsForFile(ctx, f.ID); err != nil {
		return nil, false, fmt.Errorf("failed to delete stale symbols for %s: %w", e.path, err)
	}
	if err := p.store.DeleteEdgesForFile(ctx, f.ID); err != nil {
		return nil, false, fmt.Errorf("failed to delete stale edges for %s: %w", e.path, err)
	}
	if len(symbols) > 0 {
		if err := p.store.BulkInsertSymbols(ctx, symbols); err != nil {
			return nil, false, fmt.Errorf("failed to insert symbols for %s: %w", e.path, err)
		}
	}
	if len(edges) > 0 {
		if err := p.store.BulkInsertEdges(ctx, edges); err != nil {
			return nil, false, fmt.Errorf("failed to insert edges for %s: %w", e.path, err)
		}
	}

	return refs, false, nil
}

// linkReferences resolves named call/extends/implements references from this
// run's re-extracted files against the project-wide symbol table and inserts
// the resulting symbol-level edges. References from unchanged files are left
// as stored; if their target file was re-indexed they may dangle until the
// next re-extraction, which the dead-code heuristic tolerates.
func (p *Pipeline) linkReferences(ctx context.Context, projectID uuid.UUID,
	symbols []model.Symbol, refsByFile map[uuid.UUID][]extract.Ref) error {

	byName := make(map[string][]model.Symbol)
	for _, s := range symbols {
		if s.Kind.IsDeclaration() {
			byName[s.Name] = append(byName[s.Name], s)
		}
	}

	var edges []model.Edge
	for fileID, refs := range refsByFile {
		for _, ref := range refs {
			for _, target := range byName[ref.Name] {
				if target.FileID == fileID {
					continue // same-file references carry no coupling signal
				}
				targetFile := target.FileID
				targetSymbol := target.ID
				edges = append(edges, model.Edge{
					ID:             uuid.New(),
					ProjectID:      projectID,
					SourceFileID:   fileID,
					TargetFileID:   &targetFile,
					TargetSymbolID: &targetSymbol,
					Kind:           ref.Kind,
					Specifier:      ref.Name,
				})
			}
		}
	}

	if len(edges) == 0 {
		return nil
	}
	if err := p.store.BulkInsertEdges(ctx, edges); err != nil {
		return fmt.Errorf("failed to insert reference edges: %w", err)
	}
	return nil
}

// refreshMetrics recomputes coupling and cohesion for every parsed file.
// These are global properties of the edge set, so they are refreshed for the
// whole project even when only a few files changed.
func (p *Pipeline) refreshMetrics(ctx context.Context, files []model.File,
	symbols []model.Symbol, edges []model.Edge) error {

	fan := metrics.FanByFile(edges)

	ownSymbols := make(map[uuid.UUID]int)
	for _, s := range symbols {
		if s.Kind.IsDeclaration() {
			ownSymbols[s.FileID]++
		}
	}

	externalDeps := make(map[uuid.UUID]map[string]struct{})
	for _, e := range edges {
		if e.Kind != model.EdgeImport {
			continue
		}
		if externalDeps[e.SourceFileID] == nil {
			externalDeps[e.SourceFileID] = make(map[string]struct{})
		}
		externalDeps[e.SourceFileID][e.Specifier] = struct{}{}
	}

	for _, f := range files {
		if f.Language == nil {
			continue
		}
		stats := fan[f.ID]
		cohesion := metrics.Cohesion(ownSymbols[f.ID], len(externalDeps[f.ID]))
		if err := p.store.UpdateFileMetrics(ctx, f.ID, stats.Efferent, stats.Afferent, cohesion); err != nil {
			return fmt.Errorf("failed to update metrics for %s: %w", f.Path, err)
		}
	}

	return nil
}

func (p *Pipeline) removeFile(ctx context.Context, fileID uuid.UUID) error {
	if err := p.store.DeleteSymbolsForFile(ctx, fileID); err != nil {
		return fmt.Errorf("failed to delete symbols for removed file: %w", err)
	}
	if err := p.store.DeleteEdgesForFile(ctx, fileID); err != nil {
		return fmt.Errorf("failed to delete edges for removed file: %w", err)
	}
	if err := p.store.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("failed to delete removed file: %w", err)
	}
	return nil
}

func (p *Pipeline) lockFor(projectID uuid.UUID) *sync.Mutex {
	actual, _ := p.locks.LoadOrStore(projectID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func layerStats(files []model.File, layers []detect.Layer) map[string]int {
	if len(layers) == 0 {
		layers = detect.DefaultLayers()
	}
	stats := make(map[string]int)
	for _, f := range files {
		if layer := detect.ClassifyLayer(f.Path, layers); layer != nil {
			stats[layer.Name]++
		}
	}
	return stats
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}
