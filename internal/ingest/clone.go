// Package ingest materializes project repositories into local workspaces for
// analysis.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service clones and updates project repositories under a base directory.
type Service struct {
	baseDir string
}

// NewService creates an ingest service rooted at baseDir
func NewService(baseDir string) *Service {
	return &Service{baseDir: baseDir}
}

// Result contains the workspace path and checked-out commit
type Result struct {
	Path      string
	CommitSHA string
	Branch    string
}

// WorkspacePath returns the workspace directory for a project
func (s *Service) WorkspacePath(projectID uuid.UUID) string {
	return filepath.Join(s.baseDir, projectID.String())
}

// CloneOrUpdate ensures the project's repository is present and current in its
// workspace: an existing checkout is pulled, otherwise a fresh shallow clone
// is made.
func (s *Service) CloneOrUpdate(ctx context.Context, projectID uuid.UUID, repoURL, branch string) (*Result, error) {
	workDir := s.WorkspacePath(projectID)

	if _, err := os.Stat(filepath.Join(workDir, ".git")); err == nil {
		result, err := s.pull(ctx, workDir)
		if err == nil {
			return result, nil
		}
		// A broken checkout is re-cloned from scratch
		log.Warn().Err(err).Str("path", workDir).Msg("pull failed, re-cloning")
		if err := os.RemoveAll(workDir); err != nil {
			return nil, fmt.Errorf("failed to remove stale workspace: %w", err)
		}
	}

	return s.clone(ctx, workDir, repoURL, branch)
}

func (s *Service) clone(ctx context.Context, workDir, repoURL, branch string) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(workDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	log.Info().Str("url", repoURL).Str("path", workDir).Msg("cloning repository")

	opts := &git.CloneOptions{
		URL:   repoURL,
		Depth: 1, // Shallow clone for faster download
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, workDir, false, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to clone: %w", err)
	}

	return headResult(repo, workDir)
}

func (s *Service) pull(ctx context.Context, workDir string) (*Result, error) {
	repo, err := git.PlainOpen(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := worktree.PullContext(ctx, &git.PullOptions{}); err != nil && err != git.NoErrAlreadyUpToDate {
		return nil, fmt.Errorf("failed to pull: %w", err)
	}

	return headResult(repo, workDir)
}

func headResult(repo *git.Repository, workDir string) (*Result, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	result := &Result{
		Path:      workDir,
		CommitSHA: head.Hash().String(),
		Branch:    head.Name().Short(),
	}

	log.Info().
		Str("commit", result.CommitSHA[:8]).
		Str("branch", result.Branch).
		Msg("workspace ready")

	return result, nil
}
