// Package metrics computes per-file cyclomatic complexity and coupling and
// cohesion scores over the extracted graph. Complexity is table-driven per
// language; coupling and cohesion are pure functions of the edge set.
package metrics

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/archscope-hq/archscope/internal/lang"
	"github.com/archscope-hq/archscope/internal/model"
	"github.com/archscope-hq/archscope/internal/parser"

	"github.com/google/uuid"
)

// decisionNodes lists, per language, the node types that each add one decision
// point. Binary/boolean operator nodes are handled separately because only
// logical operators count, not every binary expression.
var decisionNodes = map[lang.Language]map[string]struct{}{
	lang.Go: {
		"if_statement":       {},
		"for_statement":      {},
		"expression_case":    {},
		"type_case":          {},
		"communication_case": {},
		"default_case":       {},
	},
	lang.Python: {
		"if_statement":           {},
		"elif_clause":            {},
		"for_statement":          {},
		"while_statement":        {},
		"except_clause":          {},
		"conditional_expression": {},
		"case_clause":            {},
	},
	lang.JavaScript: {
		"if_statement":       {},
		"for_statement":      {},
		"for_in_statement":   {},
		"while_statement":    {},
		"do_statement":       {},
		"switch_case":        {},
		"catch_clause":       {},
		"ternary_expression": {},
	},
}

func init() {
	decisionNodes[lang.TypeScript] = decisionNodes[lang.JavaScript]
	decisionNodes[lang.TSX] = decisionNodes[lang.JavaScript]
}

// operatorNodes are the node types whose operator text decides whether they
// count as a decision point.
var operatorNodes = map[string]struct{}{
	"binary_expression": {},
	"binary_operator":   {},
	"boolean_operator":  {},
}

// logicalOperators are the short-circuiting operators that add a branch.
var logicalOperators = map[string]struct{}{
	"&&":  {},
	"||":  {},
	"??":  {},
	"and": {},
	"or":  {},
}

// Complexity computes the cyclomatic complexity of a (sub)tree. It starts at 1
// and adds one per decision-point node, so the result is always >= 1.
func Complexity(root *sitter.Node, l lang.Language, src []byte) int {
	table := decisionNodes[l]
	score := 1
	if table == nil {
		return score
	}

	parser.Walk(root, func(n *sitter.Node) {
		t := n.Type()
		if _, ok := table[t]; ok {
			score++
			return
		}
		if _, ok := operatorNodes[t]; ok {
			if op := n.ChildByFieldName("operator"); op != nil {
				if _, logical := logicalOperators[op.Content(src)]; logical {
					score++
				}
			}
		}
	})

	return score
}

// Fan holds the coupling counts for one file.
type Fan struct {
	Efferent int // distinct project files this file depends on
	Afferent int // distinct project files depending on this file
}

// FanByFile computes efferent and afferent coupling for every file that
// appears in the edge set. Self-edges are excluded, as are edges whose target
// is outside the project.
func FanByFile(edges []model.Edge) map[uuid.UUID]Fan {
	out := make(map[uuid.UUID]Fan)
	targets := make(map[uuid.UUID]map[uuid.UUID]struct{})
	sources := make(map[uuid.UUID]map[uuid.UUID]struct{})

	for _, e := range edges {
		if e.TargetFileID == nil || *e.TargetFileID == e.SourceFileID {
			continue
		}
		if targets[e.SourceFileID] == nil {
			targets[e.SourceFileID] = make(map[uuid.UUID]struct{})
		}
		targets[e.SourceFileID][*e.TargetFileID] = struct{}{}

		if sources[*e.TargetFileID] == nil {
			sources[*e.TargetFileID] = make(map[uuid.UUID]struct{})
		}
		sources[*e.TargetFileID][e.SourceFileID] = struct{}{}
	}

	for id, t := range targets {
		fan := out[id]
		fan.Efferent = len(t)
		out[id] = fan
	}
	for id, s := range sources {
		fan := out[id]
		fan.Afferent = len(s)
		out[id] = fan
	}

	return out
}

// Cohesion estimates how self-contained a file is:
// clamp(1 - externalDeps/ownSymbols, 0, 1). ownSymbols counts declarations
// only (imports/exports excluded). A file declaring zero symbols scores 0
// rather than being left undefined; that convention is deliberate and stable.
func Cohesion(ownSymbols, externalDeps int) float64 {
	if ownSymbols == 0 {
		return 0
	}
	c := 1 - float64(externalDeps)/float64(ownSymbols)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
