package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archscope-hq/archscope/internal/model"
)

// Store provides database operations. It implements pipeline.Storage plus the
// project-level queries the API serves.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new store
func NewStore(db *DB) *Store {
	return &Store{pool: db.Pool()}
}

// NewStoreFromPool wraps an existing pool. Used by integration tests that
// manage their own connection.
func NewStoreFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateProject creates a new project
func (s *Store) CreateProject(ctx context.Context, p *model.Project) error {
	p.ID = uuid.New()
	if p.DefaultBranch == "" {
		p.DefaultBranch = "main"
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO projects (id, name, repo_url, default_branch, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.Name, p.RepoURL, p.DefaultBranch, p.CreatedAt, p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetProject gets a project by ID
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	p := &model.Project{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, repo_url, default_branch, last_commit_sha, created_at, updated_at
		FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.RepoURL, &p.DefaultBranch, &p.LastCommitSHA, &p.CreatedAt, &p.UpdatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return p, nil
}

// ListProjects lists all projects
func (s *Store) ListProjects(ctx context.Context, limit, offset int) ([]model.Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, repo_url, default_branch, last_commit_sha, created_at, updated_at
		FROM projects
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.RepoURL, &p.DefaultBranch, &p.LastCommitSHA, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

// UpdateProjectCommit records the last analyzed commit SHA
func (s *Store) UpdateProjectCommit(ctx context.Context, id uuid.UUID, sha string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE projects SET last_commit_sha = $2, updated_at = NOW() WHERE id = $1
	`, id, sha)
	if err != nil {
		return fmt.Errorf("failed to update project commit: %w", err)
	}
	return nil
}

// UpsertFile inserts or replaces a file row, keyed by (project_id, path).
func (s *Store) UpsertFile(ctx context.Context, f *model.File) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO files (id, project_id, path, language, size_bytes, line_count, content_hash,
			complexity, efferent, afferent, cohesion, is_doc, is_test, is_config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (project_id, path) DO UPDATE SET
			language = EXCLUDED.language,
			size_bytes = EXCLUDED.size_bytes,
			line_count = EXCLUDED.line_count,
			content_hash = EXCLUDED.content_hash,
			complexity = EXCLUDED.complexity,
			is_doc = EXCLUDED.is_doc,
			is_test = EXCLUDED.is_test,
			is_config = EXCLUDED.is_config,
			updated_at = EXCLUDED.updated_at
	`, f.ID, f.ProjectID, f.Path, f.Language, f.SizeBytes, f.LineCount, f.ContentHash,
		f.Complexity, f.Efferent, f.Afferent, f.Cohesion, f.IsDoc, f.IsTest, f.IsConfig, f.CreatedAt, f.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	return nil
}

// DeleteFile removes a file row
func (s *Store) DeleteFile(ctx context.Context, fileID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// UpdateFileMetrics writes the coupling and cohesion scores for one file
func (s *Store) UpdateFileMetrics(ctx context.Context, fileID uuid.UUID, efferent, afferent int, cohesion float64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE files SET efferent = $2, afferent = $3, cohesion = $4, updated_at = NOW()
		WHERE id = $1
	`, fileID, efferent, afferent, cohesion)
	if err != nil {
		return fmt.Errorf("failed to update file metrics: %w", err)
	}
	return nil
}

// GetFilesForProject returns every file of a project
func (s *Store) GetFilesForProject(ctx context.Context, projectID uuid.UUID) ([]model.File, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, path, language, size_bytes, line_count, content_hash,
			complexity, efferent, afferent, cohesion, is_doc, is_test, is_config, created_at, updated_at
		FROM files WHERE project_id = $1
		ORDER BY path
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []model.File
	for rows.Next() {
		var f model.File
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Path, &f.Language, &f.SizeBytes, &f.LineCount, &f.ContentHash,
			&f.Complexity, &f.Efferent, &f.Afferent, &f.Cohesion, &f.IsDoc, &f.IsTest, &f.IsConfig, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

// DeleteSymbolsForFile removes all symbols of a file before re-insertion
func (s *Store) DeleteSymbolsForFile(ctx context.Context, fileID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM symbols WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete symbols: %w", err)
	}
	return nil
}

// BulkInsertSymbols inserts symbols with COPY
func (s *Store) BulkInsertSymbols(ctx context.Context, symbols []model.Symbol) error {
	if len(symbols) == 0 {
		return nil
	}

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"symbols"},
		[]string{"id", "file_id", "kind", "name", "start_line", "end_line", "exported", "signature", "docstring", "complexity"},
		pgx.CopyFromSlice(len(symbols), func(i int) ([]interface{}, error) {
			sym := symbols[i]
			return []interface{}{sym.ID, sym.FileID, string(sym.Kind), sym.Name, sym.StartLine, sym.EndLine,
				sym.Exported, sym.Signature, sym.DocString, sym.Complexity}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert symbols: %w", err)
	}

	return nil
}

// GetSymbolsForProject returns every symbol of a project
func (s *Store) GetSymbolsForProject(ctx context.Context, projectID uuid.UUID) ([]model.Symbol, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.id, s.file_id, s.kind, s.name, s.start_line, s.end_line, s.exported, s.signature, s.docstring, s.complexity
		FROM symbols s
		JOIN files f ON f.id = s.file_id
		WHERE f.project_id = $1
		ORDER BY f.path, s.start_line
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []model.Symbol
	for rows.Next() {
		var sym model.Symbol
		if err := rows.Scan(&sym.ID, &sym.FileID, &sym.Kind, &sym.Name, &sym.StartLine, &sym.EndLine,
			&sym.Exported, &sym.Signature, &sym.DocString, &sym.Complexity); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}

	return symbols, rows.Err()
}

// DeleteEdgesForFile removes all edges originating from a file
func (s *Store) DeleteEdgesForFile(ctx context.Context, fileID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM edges WHERE source_file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete edges: %w", err)
	}
	return nil
}

// BulkInsertEdges inserts edges with COPY
func (s *Store) BulkInsertEdges(ctx context.Context, edges []model.Edge) error {
	if len(edges) == 0 {
		return nil
	}

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"edges"},
		[]string{"id", "project_id", "source_file_id", "target_file_id", "source_symbol_id", "target_symbol_id", "kind", "specifier"},
		pgx.CopyFromSlice(len(edges), func(i int) ([]interface{}, error) {
			e := edges[i]
			return []interface{}{e.ID, e.ProjectID, e.SourceFileID, e.TargetFileID, e.SourceSymbolID, e.TargetSymbolID,
				string(e.Kind), e.Specifier}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert edges: %w", err)
	}

	return nil
}

// GetEdgesForProject returns every edge of a project
func (s *Store) GetEdgesForProject(ctx context.Context, projectID uuid.UUID) ([]model.Edge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, source_file_id, target_file_id, source_symbol_id, target_symbol_id, kind, specifier
		FROM edges WHERE project_id = $1
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	var edges []model.Edge
	for rows.Next() {
		var e model.Edge
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.SourceFileID, &e.TargetFileID, &e.SourceSymbolID, &e.TargetSymbolID,
			&e.Kind, &e.Specifier); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}

	return edges, rows.Err()
}

// DeleteFindingsForProject clears the previous findings snapshot
func (s *Store) DeleteFindingsForProject(ctx context.Context, projectID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM findings WHERE project_id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete findings: %w", err)
	}
	return nil
}

// BulkInsertFindings inserts findings with COPY
func (s *Store) BulkInsertFindings(ctx context.Context, findings []model.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"findings"},
		[]string{"id", "project_id", "category", "severity", "title", "description", "evidence", "suggestion", "created_at"},
		pgx.CopyFromSlice(len(findings), func(i int) ([]interface{}, error) {
			f := findings[i]
			return []interface{}{f.ID, f.ProjectID, string(f.Category), string(f.Severity), f.Title, f.Description,
				[]byte(f.Evidence), f.Suggestion, f.CreatedAt}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert findings: %w", err)
	}

	return nil
}

// ListFindings returns a project's findings, optionally filtered by category
// and severity.
func (s *Store) ListFindings(ctx context.Context, projectID uuid.UUID, category, severity string) ([]model.Finding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, category, severity, title, description, evidence, suggestion, created_at
		FROM findings
		WHERE project_id = $1
			AND ($2 = '' OR category = $2)
			AND ($3 = '' OR severity = $3)
		ORDER BY category, title
	`, projectID, category, severity)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	defer rows.Close()

	var findings []model.Finding
	for rows.Next() {
		var f model.Finding
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Category, &f.Severity, &f.Title, &f.Description,
			&f.Evidence, &f.Suggestion, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		findings = append(findings, f)
	}

	return findings, rows.Err()
}
