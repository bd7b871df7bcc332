// Package model defines the structural data model shared by extraction,
// detection and storage: files, symbols, dependency edges and findings.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SymbolKind classifies a declared symbol
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "function"
	SymbolClass     SymbolKind = "class"
	SymbolInterface SymbolKind = "interface"
	SymbolType      SymbolKind = "type"
	SymbolEnum      SymbolKind = "enum"
	SymbolImport    SymbolKind = "import"
	SymbolExport    SymbolKind = "export"
)

// IsDeclaration reports whether the kind declares something referenceable,
// as opposed to import/export bookkeeping symbols.
func (k SymbolKind) IsDeclaration() bool {
	switch k {
	case SymbolFunction, SymbolClass, SymbolInterface, SymbolType, SymbolEnum:
		return true
	}
	return false
}

// EdgeKind classifies a dependency edge
type EdgeKind string

const (
	EdgeImport     EdgeKind = "import"
	EdgeCall       EdgeKind = "call"
	EdgeExtends    EdgeKind = "extends"
	EdgeImplements EdgeKind = "implements"
)

// Category identifies which detector produced a finding
type Category string

const (
	CategoryCircularDep Category = "circular-dependency"
	CategoryDeadCode    Category = "dead-code"
	CategoryGodModule   Category = "god-module"
	CategoryLayering    Category = "layering"
	CategoryCoupling    Category = "coupling"
)

// Severity ranks findings
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// File is one indexed source file. Identity is (project, path); the row is
// replaced wholesale whenever the content hash changes.
type File struct {
	ID          uuid.UUID `json:"id"`
	ProjectID   uuid.UUID `json:"project_id"`
	Path        string    `json:"path"`
	Language    *string   `json:"language,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	LineCount   int       `json:"line_count"`
	ContentHash string    `json:"content_hash"`
	Complexity  *int      `json:"complexity,omitempty"`
	Efferent    *int      `json:"efferent,omitempty"`
	Afferent    *int      `json:"afferent,omitempty"`
	Cohesion    *float64  `json:"cohesion,omitempty"`
	IsDoc       bool      `json:"is_doc"`
	IsTest      bool      `json:"is_test"`
	IsConfig    bool      `json:"is_config"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Symbol is a declaration extracted from one file. Symbols are created fresh
// on every extraction pass; stale rows for a changed file are deleted first.
type Symbol struct {
	ID         uuid.UUID  `json:"id"`
	FileID     uuid.UUID  `json:"file_id"`
	Kind       SymbolKind `json:"kind"`
	Name       string     `json:"name"`
	StartLine  int        `json:"start_line"` // 1-based inclusive
	EndLine    int        `json:"end_line"`
	Exported   bool       `json:"exported"`
	Signature  *string    `json:"signature,omitempty"`
	DocString  *string    `json:"docstring,omitempty"`
	Complexity *int       `json:"complexity,omitempty"`
}

// Edge is a directed dependency relation. TargetFileID is nil when the import
// points outside the project (third-party package). Edges are derived data and
// are fully replaced per source file on re-index.
type Edge struct {
	ID             uuid.UUID  `json:"id"`
	ProjectID      uuid.UUID  `json:"project_id"`
	SourceFileID   uuid.UUID  `json:"source_file_id"`
	TargetFileID   *uuid.UUID `json:"target_file_id,omitempty"`
	SourceSymbolID *uuid.UUID `json:"source_symbol_id,omitempty"`
	TargetSymbolID *uuid.UUID `json:"target_symbol_id,omitempty"`
	Kind           EdgeKind   `json:"kind"`
	Specifier      string     `json:"specifier,omitempty"`
}

// Finding is one detected architectural issue. A project's findings are a
// snapshot replaced wholesale by each detection run, never an accumulating log.
type Finding struct {
	ID          uuid.UUID       `json:"id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	Category    Category        `json:"category"`
	Severity    Severity        `json:"severity"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Evidence    json.RawMessage `json:"evidence"`
	Suggestion  string          `json:"suggestion"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Project is the analysis root every other record is scoped to.
type Project struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	RepoURL       string    `json:"repo_url,omitempty"`
	DefaultBranch string    `json:"default_branch"`
	LastCommitSHA *string   `json:"last_commit_sha,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
