package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/archscope-hq/archscope/internal/jobs"
	"github.com/archscope-hq/archscope/internal/model"
)

// CreateProjectRequest is the request body for creating a project
type CreateProjectRequest struct {
	Name          string `json:"name"`
	RepoURL       string `json:"repo_url,omitempty"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

// AnalyzeRequest is the request body for triggering an analysis run
type AnalyzeRequest struct {
	Branch string `json:"branch,omitempty"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	project := &model.Project{
		Name:          req.Name,
		RepoURL:       req.RepoURL,
		DefaultBranch: req.DefaultBranch,
	}

	if err := s.store.CreateProject(r.Context(), project); err != nil {
		log.Error().Err(err).Msg("failed to create project")
		respondError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	respondJSON(w, http.StatusCreated, project)
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	projects, err := s.store.ListProjects(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("failed to list projects")
		respondError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}

	respondJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectFromURL(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// analyzeProject enqueues an analysis job for the project and notifies
// workers over NATS.
func (s *Server) analyzeProject(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectFromURL(w, r)
	if !ok {
		return
	}

	var req AnalyzeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	branch := req.Branch
	if branch == "" {
		branch = project.DefaultBranch
	}

	job, err := jobs.NewJob(project.ID, jobs.AnalysisPayload{
		ProjectID: project.ID,
		RepoURL:   project.RepoURL,
		Branch:    branch,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to build job")
		return
	}

	if err := s.queue.Create(r.Context(), job); err != nil {
		log.Error().Err(err).Msg("failed to enqueue job")
		respondError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	// NATS is a wake-up signal only; workers polling the DB will still find
	// the job if publishing fails.
	if s.nats != nil && s.nats.IsConnected() {
		msg := jobs.JobMessage{JobID: job.ID, ProjectID: project.ID}
		if data, err := msg.Encode(); err == nil {
			if err := s.nats.NotifyAnalysis(r.Context(), data); err != nil {
				log.Warn().Err(err).Msg("failed to publish job notification")
			}
		}
	}

	respondJSON(w, http.StatusAccepted, job)
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectFromURL(w, r)
	if !ok {
		return
	}

	files, err := s.store.GetFilesForProject(r.Context(), project.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list files")
		respondError(w, http.StatusInternalServerError, "failed to list files")
		return
	}
	if files == nil {
		files = []model.File{}
	}

	respondJSON(w, http.StatusOK, files)
}

func (s *Server) listFindings(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectFromURL(w, r)
	if !ok {
		return
	}

	category := r.URL.Query().Get("category")
	severity := r.URL.Query().Get("severity")

	findings, err := s.store.ListFindings(r.Context(), project.ID, category, severity)
	if err != nil {
		log.Error().Err(err).Msg("failed to list findings")
		respondError(w, http.StatusInternalServerError, "failed to list findings")
		return
	}
	if findings == nil {
		findings = []model.Finding{}
	}

	respondJSON(w, http.StatusOK, findings)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	project, ok := s.projectFromURL(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	jobList, err := s.queue.ListByProject(r.Context(), project.ID, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list jobs")
		respondError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobList == nil {
		jobList = []*jobs.Job{}
	}

	respondJSON(w, http.StatusOK, jobList)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, err := s.queue.GetByID(r.Context(), jobID)
	if err != nil {
		log.Error().Err(err).Msg("failed to get job")
		respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// projectFromURL loads the project named in the URL, writing the error
// response itself when the ID is invalid or unknown.
func (s *Server) projectFromURL(w http.ResponseWriter, r *http.Request) (*model.Project, bool) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid project ID")
		return nil, false
	}

	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		log.Error().Err(err).Msg("failed to get project")
		respondError(w, http.StatusInternalServerError, "failed to get project")
		return nil, false
	}
	if project == nil {
		respondError(w, http.StatusNotFound, "project not found")
		return nil, false
	}

	return project, true
}
