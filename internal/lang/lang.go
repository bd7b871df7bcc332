// Package lang maps file paths to supported languages and owns the
// load-once grammar registry used by the parser adapter.
package lang

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies a supported source language
type Language string

const (
	Go         Language = "go"
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	TSX        Language = "tsx"
	Unknown    Language = "unknown"
)

// Supported reports whether the language has a grammar available.
func (l Language) Supported() bool {
	return l != Unknown && l != ""
}

// Detect returns the language for a file path based on its extension,
// or Unknown for anything we cannot parse. Files with Unknown language are
// still recorded but skipped by symbol and dependency extraction.
func Detect(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return Go
	case ".py":
		return Python
	case ".js", ".jsx", ".mjs", ".cjs":
		return JavaScript
	case ".ts":
		return TypeScript
	case ".tsx":
		return TSX
	default:
		return Unknown
	}
}

// SourceExtensions lists the extensions tried when resolving an import
// specifier that omits its extension, in priority order.
var SourceExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".py", ".go"}

// IndexFiles lists directory-index fallbacks for import resolution.
var IndexFiles = []string{"index.ts", "index.tsx", "index.js", "index.jsx", "__init__.py"}

// Registry lazily loads and caches one grammar per language for the lifetime
// of the registry. It is safe for concurrent use. A load failure is fatal for
// that language only and is memoized; other languages keep working.
type Registry struct {
	mu       sync.Mutex
	grammars map[Language]*sitter.Language
	failures map[Language]error
}

// NewRegistry creates an empty grammar registry. The registry is an explicit
// dependency of the parser adapter rather than a process-wide global, so tests
// and concurrent multi-project runs can own their own instance.
func NewRegistry() *Registry {
	return &Registry{
		grammars: make(map[Language]*sitter.Language),
		failures: make(map[Language]error),
	}
}

// Grammar returns the cached grammar for a language, loading it on first use.
func (r *Registry) Grammar(l Language) (*sitter.Language, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.grammars[l]; ok {
		return g, nil
	}
	if err, ok := r.failures[l]; ok {
		return nil, err
	}

	g, err := loadGrammar(l)
	if err != nil {
		r.failures[l] = err
		return nil, err
	}

	r.grammars[l] = g
	return g, nil
}

func loadGrammar(l Language) (*sitter.Language, error) {
	switch l {
	case Go:
		return golang.GetLanguage(), nil
	case Python:
		return python.GetLanguage(), nil
	case JavaScript:
		return javascript.GetLanguage(), nil
	case TypeScript:
		return typescript.GetLanguage(), nil
	case TSX:
		return tsx.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("no grammar for language: %s", l)
	}
}

// Classify returns the doc/test/config flags for a path.
func Classify(path string) (isDoc, isTest, isConfig bool) {
	base := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(base)

	switch ext {
	case ".md", ".rst", ".txt", ".adoc":
		isDoc = true
	case ".yaml", ".yml", ".json", ".toml", ".ini", ".env":
		isConfig = true
	}

	switch {
	case strings.HasSuffix(base, "_test.go"),
		strings.HasPrefix(base, "test_") && ext == ".py",
		strings.Contains(base, ".test.") || strings.Contains(base, ".spec."):
		isTest = true
	}

	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		switch strings.ToLower(seg) {
		case "docs", "doc":
			isDoc = true
		case "test", "tests", "__tests__":
			isTest = true
		}
	}

	return isDoc, isTest, isConfig
}
