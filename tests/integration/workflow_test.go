// Package integration provides end-to-end tests for the analysis workflow,
// running the full pipeline against a real Postgres instance.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archscope-hq/archscope/internal/db"
	"github.com/archscope-hq/archscope/internal/jobs"
	"github.com/archscope-hq/archscope/internal/lang"
	"github.com/archscope-hq/archscope/internal/model"
	"github.com/archscope-hq/archscope/internal/pipeline"
	"github.com/archscope-hq/archscope/internal/testutil"
	"github.com/archscope-hq/archscope/internal/walker"
)

func writeWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestAnalysisWorkflow(t *testing.T) {
	tdb := testutil.RequireDB(t)
	store := db.NewStoreFromPool(tdb.Pool)
	ctx := context.Background()

	project := &model.Project{Name: "workflow-test"}
	require.NoError(t, store.CreateProject(ctx, project))

	root := writeWorkspace(t, map[string]string{
		"src/services/order.ts": `import { save } from "../db/store";

export function placeOrder(): void {
  save();
}
`,
		"src/db/store.ts": `import { placeOrder } from "../services/order";

export function save(): void {}
`,
		"README.md": "# workflow\n",
	})

	p := pipeline.New(store, lang.NewRegistry(), pipeline.WithConcurrency(2))
	res, err := p.Run(ctx, project.ID, walker.New(root))
	require.NoError(t, err)

	assert.Equal(t, 3, res.FilesExtracted)
	assert.Equal(t, 0, res.FilesFailed)
	assert.Equal(t, map[string]int{"service": 1, "data": 1}, res.PerLayerStats)

	files, err := store.GetFilesForProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, files, 3)

	symbols, err := store.GetSymbolsForProject(ctx, project.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, symbols)

	// The two modules import each other and the data layer reaches up into
	// services, so both detectors fire.
	findings, err := store.ListFindings(ctx, project.ID, "", "")
	require.NoError(t, err)

	categories := make(map[model.Category]bool)
	for _, f := range findings {
		categories[f.Category] = true
	}
	assert.True(t, categories[model.CategoryCircularDep])
	assert.True(t, categories[model.CategoryLayering])

	// A second run over the unchanged workspace skips everything and lands on
	// the same findings snapshot.
	res2, err := p.Run(ctx, project.ID, walker.New(root))
	require.NoError(t, err)
	assert.Equal(t, 0, res2.FilesExtracted)
	assert.Equal(t, 3, res2.FilesSkipped)
	assert.Equal(t, res.FindingsCount, res2.FindingsCount)
}

func TestJobLifecycleWorkflow(t *testing.T) {
	tdb := testutil.RequireDB(t)
	store := db.NewStoreFromPool(tdb.Pool)
	repo := jobs.NewRepository(tdb.Pool)
	ctx := context.Background()

	project := &model.Project{Name: "job-workflow-test"}
	require.NoError(t, store.CreateProject(ctx, project))

	root := writeWorkspace(t, map[string]string{
		"main.go": "package main\n\nfunc main() {}\n",
	})

	job, err := jobs.NewJob(project.ID, jobs.AnalysisPayload{
		ProjectID:     project.ID,
		WorkspacePath: root,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, job))

	claimed, err := repo.Claim(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	var payload jobs.AnalysisPayload
	require.NoError(t, claimed.GetPayload(&payload))

	p := pipeline.New(store, lang.NewRegistry())
	_, err = p.Run(ctx, payload.ProjectID, walker.New(payload.WorkspacePath))
	require.NoError(t, err)
	require.NoError(t, repo.Complete(ctx, job.ID))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, got.Status)

	files, err := store.GetFilesForProject(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "main.go", files[0].Path)
}
