package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/archscope-hq/archscope/internal/model"
)

// MemoryStore is an in-memory Storage used by the CLI's local mode and by
// tests. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	files    map[uuid.UUID]model.File
	symbols  map[uuid.UUID]model.Symbol
	edges    map[uuid.UUID]model.Edge
	findings map[uuid.UUID]model.Finding
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:    make(map[uuid.UUID]model.File),
		symbols:  make(map[uuid.UUID]model.Symbol),
		edges:    make(map[uuid.UUID]model.Edge),
		findings: make(map[uuid.UUID]model.Finding),
	}
}

func (m *MemoryStore) UpsertFile(_ context.Context, f *model.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[f.ID] = *f
	return nil
}

func (m *MemoryStore) DeleteFile(_ context.Context, fileID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, fileID)
	return nil
}

func (m *MemoryStore) UpdateFileMetrics(_ context.Context, fileID uuid.UUID, efferent, afferent int, cohesion float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return nil
	}
	e, a, c := efferent, afferent, cohesion
	f.Efferent = &e
	f.Afferent = &a
	f.Cohesion = &c
	m.files[fileID] = f
	return nil
}

func (m *MemoryStore) DeleteSymbolsForFile(_ context.Context, fileID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.symbols {
		if s.FileID == fileID {
			delete(m.symbols, id)
		}
	}
	return nil
}

func (m *MemoryStore) BulkInsertSymbols(_ context.Context, symbols []model.Symbol) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range symbols {
		m.symbols[s.ID] = s
	}
	return nil
}

func (m *MemoryStore) DeleteEdgesForFile(_ context.Context, fileID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.edges {
		if e.SourceFileID == fileID {
			delete(m.edges, id)
		}
	}
	return nil
}

func (m *MemoryStore) BulkInsertEdges(_ context.Context, edges []model.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range edges {
		m.edges[e.ID] = e
	}
	return nil
}

func (m *MemoryStore) GetFilesForProject(_ context.Context, projectID uuid.UUID) ([]model.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.File
	for _, f := range m.files {
		if f.ProjectID == projectID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *MemoryStore) GetSymbolsForProject(_ context.Context, projectID uuid.UUID) ([]model.Symbol, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	projectFiles := make(map[uuid.UUID]string)
	for _, f := range m.files {
		if f.ProjectID == projectID {
			projectFiles[f.ID] = f.Path
		}
	}

	var out []model.Symbol
	for _, s := range m.symbols {
		if _, ok := projectFiles[s.FileID]; ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if projectFiles[out[i].FileID] != projectFiles[out[j].FileID] {
			return projectFiles[out[i].FileID] < projectFiles[out[j].FileID]
		}
		return out[i].StartLine < out[j].StartLine
	})
	return out, nil
}

func (m *MemoryStore) GetEdgesForProject(_ context.Context, projectID uuid.UUID) ([]model.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Edge
	for _, e := range m.edges {
		if e.ProjectID == projectID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m *MemoryStore) DeleteFindingsForProject(_ context.Context, projectID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, f := range m.findings {
		if f.ProjectID == projectID {
			delete(m.findings, id)
		}
	}
	return nil
}

func (m *MemoryStore) BulkInsertFindings(_ context.Context, findings []model.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range findings {
		m.findings[f.ID] = f
	}
	return nil
}

// Findings returns the current findings snapshot for a project, ordered by
// category then title.
func (m *MemoryStore) Findings(projectID uuid.UUID) []model.Finding {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Finding
	for _, f := range m.findings {
		if f.ProjectID == projectID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Title < out[j].Title
	})
	return out
}
