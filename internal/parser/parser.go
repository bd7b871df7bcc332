// Package parser wraps tree-sitter behind a small adapter: grammars come from
// the language registry, one parser instance is kept per language, and parsing
// is a pure function of (text, language) with no I/O.
package parser

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/archscope-hq/archscope/internal/lang"
)

// Adapter parses source text into concrete syntax trees. An Adapter is NOT
// safe for concurrent use: tree-sitter parser instances are not reentrant, so
// each extraction worker owns its own Adapter. The grammar registry behind it
// may be shared freely.
type Adapter struct {
	registry *lang.Registry
	parsers  map[lang.Language]*sitter.Parser
}

// NewAdapter creates an adapter backed by the given grammar registry.
func NewAdapter(registry *lang.Registry) *Adapter {
	return &Adapter{
		registry: registry,
		parsers:  make(map[lang.Language]*sitter.Parser),
	}
}

// Parse parses source content for the given language and returns the syntax
// tree. The caller owns the tree and must Close it.
func (a *Adapter) Parse(ctx context.Context, content []byte, l lang.Language) (*sitter.Tree, error) {
	if !l.Supported() {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}

	p, ok := a.parsers[l]
	if !ok {
		grammar, err := a.registry.Grammar(l)
		if err != nil {
			return nil, fmt.Errorf("failed to load grammar for %s: %w", l, err)
		}
		p = sitter.NewParser()
		p.SetLanguage(grammar)
		a.parsers[l] = p
	}

	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}

	return tree, nil
}

// Walk visits every node under root in depth-first order using an explicit
// cursor loop. Large files produce deep trees, so recursion is avoided.
func Walk(root *sitter.Node, visit func(n *sitter.Node)) {
	cursor := sitter.NewTreeCursor(root)
	defer cursor.Close()

	for {
		visit(cursor.CurrentNode())

		if cursor.GoToFirstChild() {
			continue
		}

		for {
			if cursor.GoToNextSibling() {
				break
			}
			if !cursor.GoToParent() {
				return
			}
		}
	}
}
