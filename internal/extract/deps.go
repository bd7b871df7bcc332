package extract

import (
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/archscope-hq/archscope/internal/lang"
	"github.com/archscope-hq/archscope/internal/model"
	"github.com/archscope-hq/archscope/internal/parser"
)

// ImportEdge is a file-level dependency discovered from an import or re-export
// statement. Target is the resolved project-relative path, or "" when the
// specifier points outside the project (bare package name) or cannot be
// resolved; the edge is still recorded so boundary fan-out stays countable.
type ImportEdge struct {
	Specifier string
	Target    string
	Kind      model.EdgeKind
}

// Ref is a named symbol reference (call, extends, implements). Refs are linked
// to concrete symbol ids project-wide after extraction; here they are just
// names.
type Ref struct {
	Name string
	Kind model.EdgeKind
}

// Imports extracts import and re-export edges from a tree. selfPath is the
// project-relative path of the file being analyzed; known is the set of all
// project-relative file paths used for resolution.
//
// Resolution order for relative specifiers: the literal path, the path with
// each supported source extension appended, then the path as a directory with
// an index file inside it. First match wins. Non-relative specifiers are
// recorded unresolved.
func Imports(root *sitter.Node, l lang.Language, selfPath string, known map[string]struct{}, src []byte) []ImportEdge {
	var edges []ImportEdge
	seen := make(map[string]struct{})

	add := func(spec string) {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			return
		}
		if _, dup := seen[spec]; dup {
			return
		}
		seen[spec] = struct{}{}
		edges = append(edges, ImportEdge{
			Specifier: spec,
			Target:    Resolve(selfPath, spec, l, known),
			Kind:      model.EdgeImport,
		})
	}

	parser.Walk(root, func(n *sitter.Node) {
		switch l {
		case lang.Go:
			if n.Type() == "import_spec" {
				if p := n.ChildByFieldName("path"); p != nil {
					add(unquote(p.Content(src)))
				}
			}
		case lang.Python:
			switch n.Type() {
			case "import_statement":
				for i := 0; i < int(n.NamedChildCount()); i++ {
					child := n.NamedChild(i)
					if child.Type() == "dotted_name" {
						add(child.Content(src))
					} else if child.Type() == "aliased_import" {
						if name := child.ChildByFieldName("name"); name != nil {
							add(name.Content(src))
						}
					}
				}
			case "import_from_statement":
				if mod := n.ChildByFieldName("module_name"); mod != nil {
					add(mod.Content(src))
				}
			}
		case lang.JavaScript, lang.TypeScript, lang.TSX:
			switch n.Type() {
			case "import_statement", "export_statement":
				// Re-exports (`export { x } from "./m"`) count as imports.
				if source := n.ChildByFieldName("source"); source != nil {
					add(unquote(source.Content(src)))
				}
			}
		}
	})

	return edges
}

// Resolve maps an import specifier to a known project-relative file path, or
// "" when the specifier is not relative or no candidate exists.
func Resolve(selfPath, spec string, l lang.Language, known map[string]struct{}) string {
	var rel string

	switch l {
	case lang.Python:
		if !strings.HasPrefix(spec, ".") {
			return ""
		}
		rel = resolvePythonRelative(selfPath, spec)
	default:
		if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
			return ""
		}
		rel = path.Clean(path.Join(path.Dir(selfPath), spec))
	}

	if rel == "" || strings.HasPrefix(rel, "..") {
		return ""
	}

	if _, ok := known[rel]; ok {
		return rel
	}
	for _, ext := range lang.SourceExtensions {
		if _, ok := known[rel+ext]; ok {
			return rel + ext
		}
	}
	for _, index := range lang.IndexFiles {
		candidate := path.Join(rel, index)
		if _, ok := known[candidate]; ok {
			return candidate
		}
	}

	return ""
}

// resolvePythonRelative converts a dotted relative module (".sibling",
// "..pkg.mod") into a project-relative path without extension.
func resolvePythonRelative(selfPath, spec string) string {
	dots := 0
	for dots < len(spec) && spec[dots] == '.' {
		dots++
	}

	dir := path.Dir(selfPath)
	for i := 1; i < dots; i++ {
		dir = path.Dir(dir)
	}

	rest := strings.ReplaceAll(spec[dots:], ".", "/")
	if rest == "" {
		return path.Clean(dir)
	}
	return path.Clean(path.Join(dir, rest))
}

// refNodes maps, per language, node types that produce symbol references.
var refNodes = map[lang.Language]map[string]model.EdgeKind{
	lang.Go: {
		"call_expression": model.EdgeCall,
	},
	lang.Python: {
		"call": model.EdgeCall,
	},
	lang.JavaScript: {
		"call_expression": model.EdgeCall,
		"new_expression":  model.EdgeCall,
	},
}

func init() {
	refNodes[lang.TypeScript] = refNodes[lang.JavaScript]
	refNodes[lang.TSX] = refNodes[lang.JavaScript]
}

// Refs extracts named call/extends/implements references from a tree,
// deduplicated by (name, kind). Names are linked to symbol ids later.
func Refs(root *sitter.Node, l lang.Language, src []byte) []Ref {
	table := refNodes[l]
	if table == nil {
		return nil
	}

	var refs []Ref
	seen := make(map[Ref]struct{})
	add := func(name string, kind model.EdgeKind) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		r := Ref{Name: name, Kind: kind}
		if _, dup := seen[r]; dup {
			return
		}
		seen[r] = struct{}{}
		refs = append(refs, r)
	}

	parser.Walk(root, func(n *sitter.Node) {
		if kind, ok := table[n.Type()]; ok {
			if name := calleeName(n, src); name != "" {
				add(name, kind)
			}
			return
		}

		switch n.Type() {
		case "class_heritage": // JS: `class A extends B`
			for i := 0; i < int(n.NamedChildCount()); i++ {
				add(rightmostIdentifier(n.NamedChild(i), src), model.EdgeExtends)
			}
		case "extends_clause": // TS classes and interfaces
			for i := 0; i < int(n.NamedChildCount()); i++ {
				add(rightmostIdentifier(n.NamedChild(i), src), model.EdgeExtends)
			}
		case "implements_clause": // TS
			for i := 0; i < int(n.NamedChildCount()); i++ {
				add(rightmostIdentifier(n.NamedChild(i), src), model.EdgeImplements)
			}
		case "class_definition": // Python base classes
			if l != lang.Python {
				return
			}
			if bases := n.ChildByFieldName("superclasses"); bases != nil {
				for i := 0; i < int(bases.NamedChildCount()); i++ {
					add(rightmostIdentifier(bases.NamedChild(i), src), model.EdgeExtends)
				}
			}
		}
	})

	return refs
}

// calleeName extracts the called function's name: the bare identifier, or the
// rightmost component of a member/selector/attribute expression.
func calleeName(call *sitter.Node, src []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		fn = call.ChildByFieldName("constructor")
	}
	if fn == nil {
		return ""
	}
	return rightmostIdentifier(fn, src)
}

func rightmostIdentifier(n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "identifier", "type_identifier", "field_identifier", "property_identifier":
		return n.Content(src)
	case "member_expression":
		if p := n.ChildByFieldName("property"); p != nil {
			return p.Content(src)
		}
	case "selector_expression":
		if f := n.ChildByFieldName("field"); f != nil {
			return f.Content(src)
		}
	case "attribute":
		if a := n.ChildByFieldName("attribute"); a != nil {
			return a.Content(src)
		}
	case "generic_type":
		if n.NamedChildCount() > 0 {
			return rightmostIdentifier(n.NamedChild(0), src)
		}
	}
	return ""
}
