// Package worker runs analysis jobs: it consumes the job queue, materializes
// the project workspace and drives the analysis pipeline over it.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/archscope-hq/archscope/internal/config"
	"github.com/archscope-hq/archscope/internal/db"
	"github.com/archscope-hq/archscope/internal/ingest"
	"github.com/archscope-hq/archscope/internal/jobs"
	archnats "github.com/archscope-hq/archscope/internal/nats"
	"github.com/archscope-hq/archscope/internal/pipeline"
	"github.com/archscope-hq/archscope/internal/walker"
)

// Worker consumes analysis jobs. NATS wakes it up when available; otherwise it
// falls back to polling the database, which stays the source of truth for job
// state either way.
type Worker struct {
	cfg        *config.Config
	workerID   string
	store      *db.Store
	repo       *jobs.Repository
	nats       *archnats.Client
	ingest     *ingest.Service
	pipeline   *pipeline.Pipeline
	consumer   jetstream.Consumer
	pollPeriod time.Duration
}

// Config configures a worker
type Config struct {
	Config     *config.Config
	WorkerID   string
	Store      *db.Store
	Repository *jobs.Repository
	NATS       *archnats.Client
	Ingest     *ingest.Service
	Pipeline   *pipeline.Pipeline
}

// New creates a new analysis worker
func New(cfg Config) *Worker {
	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = fmt.Sprintf("analysis-%s", uuid.New().String()[:8])
	}

	return &Worker{
		cfg:        cfg.Config,
		workerID:   workerID,
		store:      cfg.Store,
		repo:       cfg.Repository,
		nats:       cfg.NATS,
		ingest:     cfg.Ingest,
		pipeline:   cfg.Pipeline,
		pollPeriod: 5 * time.Second,
	}
}

// Run starts the worker processing loop
func (w *Worker) Run(ctx context.Context) error {
	logger := log.With().Str("worker_id", w.workerID).Logger()

	// Try to set up NATS consumer
	if w.nats != nil && w.nats.IsConnected() {
		consumer, err := w.nats.AnalysisConsumer(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to get consumer, falling back to polling")
		} else {
			w.consumer = consumer
			logger.Info().Msg("connected to NATS consumer")
		}
	}

	logger.Info().Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker stopping")
			return nil
		default:
			if err := w.processNext(ctx); err != nil {
				logger.Error().Err(err).Msg("error processing job")
			}
		}
	}
}

// processNext fetches and processes the next available job
func (w *Worker) processNext(ctx context.Context) error {
	if w.consumer != nil {
		return w.processFromNATS(ctx)
	}
	return w.processFromDB(ctx)
}

// processFromNATS fetches jobs via NATS JetStream
func (w *Worker) processFromNATS(ctx context.Context) error {
	msgs, err := w.consumer.Fetch(1, jetstream.FetchMaxWait(w.pollPeriod))
	if err != nil {
		if err == context.DeadlineExceeded {
			return nil // Normal timeout, no jobs available
		}
		return fmt.Errorf("failed to fetch from NATS: %w", err)
	}

	for msg := range msgs.Messages() {
		jobMsg, err := jobs.DecodeJobMessage(msg.Data())
		if err != nil {
			log.Error().Err(err).Msg("failed to decode job message")
			msg.Nak() // Negative ack to retry
			continue
		}

		job, err := w.repo.Claim(ctx, jobMsg.JobID)
		if err != nil {
			log.Error().Err(err).Str("job_id", jobMsg.JobID.String()).Msg("failed to claim job")
			msg.Nak()
			continue
		}

		if job == nil {
			// Job already claimed by another worker
			msg.Ack()
			continue
		}

		if err := w.processJob(ctx, job); err != nil {
			log.Error().Err(err).Str("job_id", job.ID.String()).Msg("job processing failed")
		}

		msg.Ack()
	}

	if msgs.Error() != nil && msgs.Error() != context.DeadlineExceeded {
		return msgs.Error()
	}

	return nil
}

// processFromDB polls the database for pending jobs
func (w *Worker) processFromDB(ctx context.Context) error {
	pending, err := w.repo.ListPending(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to list pending jobs: %w", err)
	}

	if len(pending) == 0 {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.pollPeriod):
			return nil
		}
	}

	for _, p := range pending {
		job, err := w.repo.Claim(ctx, p.ID)
		if err != nil {
			log.Warn().Err(err).Str("job_id", p.ID.String()).Msg("failed to claim job")
			continue
		}
		if job == nil {
			continue // already claimed
		}

		if err := w.processJob(ctx, job); err != nil {
			log.Error().Err(err).Str("job_id", job.ID.String()).Msg("job processing failed")
		}
	}

	return nil
}

// processJob runs one analysis job end to end
func (w *Worker) processJob(ctx context.Context, job *jobs.Job) error {
	logger := log.With().
		Str("worker_id", w.workerID).
		Str("job_id", job.ID.String()).
		Str("project_id", job.ProjectID.String()).
		Logger()

	logger.Info().Msg("processing analysis job")

	err := w.analyze(ctx, job)
	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		if failErr := w.repo.Fail(ctx, job.ID, err.Error()); failErr != nil {
			logger.Error().Err(failErr).Msg("failed to mark job as failed")
		}
		return err
	}

	if err := w.repo.Complete(ctx, job.ID); err != nil {
		logger.Error().Err(err).Msg("failed to mark job as completed")
		return err
	}

	logger.Info().Msg("job completed")
	return nil
}

// analyze materializes the workspace and runs the pipeline over it
func (w *Worker) analyze(ctx context.Context, job *jobs.Job) error {
	var payload jobs.AnalysisPayload
	if err := job.GetPayload(&payload); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	workDir := payload.WorkspacePath
	if workDir == "" {
		if payload.RepoURL == "" {
			return fmt.Errorf("job has neither workspace path nor repo URL")
		}
		result, err := w.ingest.CloneOrUpdate(ctx, job.ProjectID, payload.RepoURL, payload.Branch)
		if err != nil {
			return fmt.Errorf("failed to prepare workspace: %w", err)
		}
		workDir = result.Path

		if err := w.store.UpdateProjectCommit(ctx, job.ProjectID, result.CommitSHA); err != nil {
			log.Warn().Err(err).Msg("failed to record commit SHA")
		}
	}

	projectCfg, err := config.LoadProjectConfig(workDir)
	if err != nil {
		return fmt.Errorf("failed to load project config: %w", err)
	}

	src := walker.New(workDir,
		walker.WithSkipPatterns(projectCfg.Skip),
		walker.WithMaxFileSize(projectCfg.MaxFileSize),
	)

	result, err := w.pipeline.RunWithConfig(ctx, job.ProjectID, src, projectCfg.DetectConfig())
	if err != nil {
		return fmt.Errorf("analysis run failed: %w", err)
	}

	log.Info().
		Str("project_id", job.ProjectID.String()).
		Int("findings", result.FindingsCount).
		Int("extracted", result.FilesExtracted).
		Int("skipped", result.FilesSkipped).
		Dur("duration", result.Duration).
		Msg("analysis finished")

	return nil
}
