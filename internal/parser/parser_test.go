package parser

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archscope-hq/archscope/internal/lang"
)

func TestAdapter_Parse_Go(t *testing.T) {
	a := NewAdapter(lang.NewRegistry())
	content := []byte(`package main

func Add(a int, b int) int {
	return a + b
}
`)

	tree, err := a.Parse(context.Background(), content, lang.Go)
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "source_file", root.Type())
	assert.False(t, root.HasError())
}

func TestAdapter_Parse_UnsupportedLanguage(t *testing.T) {
	a := NewAdapter(lang.NewRegistry())

	_, err := a.Parse(context.Background(), []byte("hello"), lang.Unknown)
	assert.Error(t, err)
}

func TestAdapter_ReusesParserPerLanguage(t *testing.T) {
	a := NewAdapter(lang.NewRegistry())

	t1, err := a.Parse(context.Background(), []byte("package a\n"), lang.Go)
	require.NoError(t, err)
	t1.Close()

	t2, err := a.Parse(context.Background(), []byte("package b\n"), lang.Go)
	require.NoError(t, err)
	t2.Close()

	assert.Len(t, a.parsers, 1)
}

func TestWalk_VisitsAllNodes(t *testing.T) {
	a := NewAdapter(lang.NewRegistry())
	content := []byte(`package main

func one() {}
func two() {}
`)

	tree, err := a.Parse(context.Background(), content, lang.Go)
	require.NoError(t, err)
	defer tree.Close()

	var funcs int
	Walk(tree.RootNode(), func(n *sitter.Node) {
		if n.Type() == "function_declaration" {
			funcs++
		}
	})
	assert.Equal(t, 2, funcs)
}
