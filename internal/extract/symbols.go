// Package extract walks concrete syntax trees and emits the structural model:
// declared symbols, import edges and named symbol references. Node-type
// recognition is table-driven per language so adding a language is a data
// change rather than a new type hierarchy.
package extract

import (
	"fmt"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/archscope-hq/archscope/internal/lang"
	"github.com/archscope-hq/archscope/internal/model"
	"github.com/archscope-hq/archscope/internal/parser"
)

// Symbol is one extracted declaration. Node stays valid only while the
// originating tree is open; callers compute node-derived metrics before
// closing the tree.
type Symbol struct {
	Name      string
	Kind      model.SymbolKind
	StartLine int // 1-based inclusive
	EndLine   int
	Exported  bool
	Signature string
	Doc       string
	Node      *sitter.Node
}

// declNodes maps, per language, the syntax node types that declare symbols.
// Go's type_spec is recorded as SymbolType here and refined to class/interface
// by inspecting the spec's type child.
var declNodes = map[lang.Language]map[string]model.SymbolKind{
	lang.Go: {
		"function_declaration": model.SymbolFunction,
		"method_declaration":   model.SymbolFunction,
		"type_spec":            model.SymbolType,
		"import_spec":          model.SymbolImport,
	},
	lang.Python: {
		"function_definition":   model.SymbolFunction,
		"class_definition":      model.SymbolClass,
		"import_statement":      model.SymbolImport,
		"import_from_statement": model.SymbolImport,
	},
	lang.JavaScript: {
		"function_declaration":           model.SymbolFunction,
		"generator_function_declaration": model.SymbolFunction,
		"class_declaration":              model.SymbolClass,
		"method_definition":              model.SymbolFunction,
		"import_statement":               model.SymbolImport,
	},
	lang.TypeScript: {
		"function_declaration":           model.SymbolFunction,
		"generator_function_declaration": model.SymbolFunction,
		"class_declaration":              model.SymbolClass,
		"abstract_class_declaration":     model.SymbolClass,
		"method_definition":              model.SymbolFunction,
		"interface_declaration":          model.SymbolInterface,
		"type_alias_declaration":         model.SymbolType,
		"enum_declaration":               model.SymbolEnum,
		"import_statement":               model.SymbolImport,
	},
}

func init() {
	// TSX declares the same node types as TypeScript.
	declNodes[lang.TSX] = declNodes[lang.TypeScript]
}

// Symbols extracts the ordered list of declared symbols from a syntax tree.
//
// Naming rule for anonymous declarations: a declaration whose name node cannot
// be resolved is kept with the synthesized name "<anonymous:LINE>"; the one
// exception is an anonymous default export, which is named "default". Nothing
// is silently dropped.
func Symbols(root *sitter.Node, l lang.Language, src []byte) []Symbol {
	table := declNodes[l]
	if table == nil {
		return nil
	}

	var out []Symbol
	parser.Walk(root, func(n *sitter.Node) {
		if kind, ok := table[n.Type()]; ok {
			out = append(out, buildSymbol(n, kind, l, src))
			return
		}

		switch l {
		case lang.JavaScript, lang.TypeScript, lang.TSX:
			if n.Type() == "variable_declarator" && declaresFunction(n) {
				out = append(out, buildSymbol(n, model.SymbolFunction, l, src))
			} else if n.Type() == "export_statement" {
				out = append(out, exportSymbols(n, src)...)
			}
		}
	})

	return out
}

// declaresFunction reports whether a variable_declarator binds a function
// value (const f = () => ... and friends).
func declaresFunction(n *sitter.Node) bool {
	value := n.ChildByFieldName("value")
	if value == nil {
		return false
	}
	switch value.Type() {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

func buildSymbol(n *sitter.Node, kind model.SymbolKind, l lang.Language, src []byte) Symbol {
	sym := Symbol{
		Kind:      kind,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		Node:      n,
	}

	if kind == model.SymbolImport {
		sym.Name = importName(n, l, src)
		sym.Signature = firstLine(n.Content(src))
		return sym
	}

	if l == lang.Go && n.Type() == "type_spec" {
		sym.Kind = goTypeKind(n)
	}

	name := n.ChildByFieldName("name")
	switch {
	case name != nil:
		sym.Name = name.Content(src)
	case isDefaultExport(n):
		sym.Name = "default"
	default:
		sym.Name = fmt.Sprintf("<anonymous:%d>", sym.StartLine)
	}

	sym.Exported = isExported(n, sym.Name, l)
	sym.Signature = signature(n, src)
	sym.Doc = docComment(n, src)

	return sym
}

// goTypeKind refines a Go type_spec into class (struct), interface or type.
func goTypeKind(spec *sitter.Node) model.SymbolKind {
	t := spec.ChildByFieldName("type")
	if t == nil {
		return model.SymbolType
	}
	switch t.Type() {
	case "struct_type":
		return model.SymbolClass
	case "interface_type":
		return model.SymbolInterface
	default:
		return model.SymbolType
	}
}

// exportSymbols handles export statements that do not wrap a declaration:
// `export { a, b }`, `export { x } from "./m"` and `export default <expr>`.
// Statements wrapping a declaration are covered by the declaration node itself.
func exportSymbols(n *sitter.Node, src []byte) []Symbol {
	if n.ChildByFieldName("declaration") != nil {
		return nil
	}

	var out []Symbol
	line := int(n.StartPoint().Row) + 1

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != "export_clause" {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			spec := child.NamedChild(j)
			if spec.Type() != "export_specifier" {
				continue
			}
			name := spec.ChildByFieldName("name")
			if name == nil {
				continue
			}
			out = append(out, Symbol{
				Name:      name.Content(src),
				Kind:      model.SymbolExport,
				StartLine: line,
				EndLine:   int(n.EndPoint().Row) + 1,
				Exported:  true,
				Signature: firstLine(n.Content(src)),
				Node:      n,
			})
		}
	}

	if out == nil && hasDefaultKeyword(n) {
		out = append(out, Symbol{
			Name:      "default",
			Kind:      model.SymbolExport,
			StartLine: line,
			EndLine:   int(n.EndPoint().Row) + 1,
			Exported:  true,
			Signature: firstLine(n.Content(src)),
			Node:      n,
		})
	}

	return out
}

func isDefaultExport(n *sitter.Node) bool {
	parent := n.Parent()
	return parent != nil && parent.Type() == "export_statement" && hasDefaultKeyword(parent)
}

func hasDefaultKeyword(export *sitter.Node) bool {
	for i := 0; i < int(export.ChildCount()); i++ {
		if export.Child(i).Type() == "default" {
			return true
		}
	}
	return false
}

// isExported applies the per-language visibility rule: Go exports by
// capitalization, Python by the absence of a leading underscore, and the
// JS/TS family by an enclosing export statement.
func isExported(n *sitter.Node, name string, l lang.Language) bool {
	switch l {
	case lang.Go:
		for _, r := range name {
			return unicode.IsUpper(r)
		}
		return false
	case lang.Python:
		return !strings.HasPrefix(name, "_")
	default:
		for p := n.Parent(); p != nil; p = p.Parent() {
			switch p.Type() {
			case "export_statement":
				return true
			case "statement_block", "function_declaration", "class_body":
				return false
			}
		}
		return false
	}
}

// importName returns the module specifier an import symbol is named after.
func importName(n *sitter.Node, l lang.Language, src []byte) string {
	switch l {
	case lang.Go:
		if path := n.ChildByFieldName("path"); path != nil {
			return unquote(path.Content(src))
		}
	case lang.Python:
		if mod := n.ChildByFieldName("module_name"); mod != nil {
			return mod.Content(src)
		}
		if n.NamedChildCount() > 0 {
			return n.NamedChild(0).Content(src)
		}
	default:
		if source := n.ChildByFieldName("source"); source != nil {
			return unquote(source.Content(src))
		}
	}
	return firstLine(n.Content(src))
}

// signature is the declaration header: everything up to the body, or the
// first line when the grammar exposes no body field.
func signature(n *sitter.Node, src []byte) string {
	if body := n.ChildByFieldName("body"); body != nil && body.StartByte() > n.StartByte() {
		return truncate(strings.TrimSpace(string(src[n.StartByte():body.StartByte()])), 300)
	}
	return truncate(firstLine(n.Content(src)), 300)
}

// docComment collects the comment block ending on the line directly above the
// declaration (walking through a wrapping export statement if present).
func docComment(n *sitter.Node, src []byte) string {
	anchor := n
	if p := n.Parent(); p != nil && p.Type() == "export_statement" {
		anchor = p
	}

	var lines []string
	expect := int(anchor.StartPoint().Row)
	for prev := anchor.PrevNamedSibling(); prev != nil && prev.Type() == "comment"; prev = prev.PrevNamedSibling() {
		if int(prev.EndPoint().Row) != expect-1 {
			break
		}
		lines = append([]string{prev.Content(src)}, lines...)
		expect = int(prev.StartPoint().Row)
	}

	return strings.Join(lines, "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func unquote(s string) string {
	return strings.Trim(s, "\"'`")
}
