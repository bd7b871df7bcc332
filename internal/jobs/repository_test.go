package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archscope-hq/archscope/internal/testutil"
)

func testRepository(t *testing.T) (*Repository, *pgxpool.Pool) {
	t.Helper()
	tdb := testutil.RequireDB(t)
	return NewRepository(tdb.Pool), tdb.Pool
}

func insertProject(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO projects (id, name) VALUES ($1, 'job-test-project')
	`, id)
	require.NoError(t, err)
	return id
}

func createPendingJob(t *testing.T, repo *Repository, projectID uuid.UUID) *Job {
	t.Helper()
	job, err := NewJob(projectID, AnalysisPayload{ProjectID: projectID, Branch: "main"})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), job))
	return job
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo, pool := testRepository(t)
	projectID := insertProject(t, pool)

	job := createPendingJob(t, repo, projectID)

	got, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.StartedAt)

	var payload AnalysisPayload
	require.NoError(t, got.GetPayload(&payload))
	assert.Equal(t, "main", payload.Branch)
}

func TestRepository_GetByID_Missing(t *testing.T) {
	repo, _ := testRepository(t)

	got, err := repo.GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepository_ClaimIsExclusive(t *testing.T) {
	repo, pool := testRepository(t)
	projectID := insertProject(t, pool)
	job := createPendingJob(t, repo, projectID)

	claimed, err := repo.Claim(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, StatusRunning, claimed.Status)
	assert.NotNil(t, claimed.StartedAt)

	// A second worker loses the race: the job is no longer pending.
	again, err := repo.Claim(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestRepository_CompleteAndFail(t *testing.T) {
	repo, pool := testRepository(t)
	projectID := insertProject(t, pool)

	done := createPendingJob(t, repo, projectID)
	_, err := repo.Claim(context.Background(), done.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Complete(context.Background(), done.ID))

	got, err := repo.GetByID(context.Background(), done.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	broken := createPendingJob(t, repo, projectID)
	_, err = repo.Claim(context.Background(), broken.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Fail(context.Background(), broken.ID, "clone failed"))

	got, err = repo.GetByID(context.Background(), broken.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "clone failed", *got.Error)
}

func TestRepository_ListPending_OldestFirst(t *testing.T) {
	repo, pool := testRepository(t)
	projectID := insertProject(t, pool)

	first := createPendingJob(t, repo, projectID)
	second := createPendingJob(t, repo, projectID)
	_, err := repo.Claim(context.Background(), second.ID)
	require.NoError(t, err)
	third := createPendingJob(t, repo, projectID)

	pending, err := repo.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, third.ID, pending[1].ID)
}

func TestRepository_ListByProject_NewestFirst(t *testing.T) {
	repo, pool := testRepository(t)
	projectID := insertProject(t, pool)
	otherProject := insertProject(t, pool)

	createPendingJob(t, repo, projectID)
	createPendingJob(t, repo, otherProject)

	list, err := repo.ListByProject(context.Background(), projectID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, projectID, list[0].ProjectID)
}

func TestRepository_ResetStale(t *testing.T) {
	repo, pool := testRepository(t)
	projectID := insertProject(t, pool)
	job := createPendingJob(t, repo, projectID)

	_, err := repo.Claim(context.Background(), job.ID)
	require.NoError(t, err)

	// Backdate the claim so it looks abandoned.
	_, err = pool.Exec(context.Background(), `
		UPDATE analysis_jobs SET started_at = NOW() - INTERVAL '1 hour' WHERE id = $1
	`, job.ID)
	require.NoError(t, err)

	reset, err := repo.ResetStale(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, reset)

	got, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.StartedAt)
}
