package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/archscope-hq/archscope/internal/extract"
	"github.com/archscope-hq/archscope/internal/lang"
	"github.com/archscope-hq/archscope/internal/metrics"
	"github.com/archscope-hq/archscope/internal/parser"
)

func parseCmd() *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse a source file and show extracted symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}

			l := lang.Detect(filePath)
			if !l.Supported() {
				return fmt.Errorf("unsupported language for %s", filePath)
			}

			a := parser.NewAdapter(lang.NewRegistry())
			tree, err := a.Parse(context.Background(), content, l)
			if err != nil {
				return fmt.Errorf("failed to parse file: %w", err)
			}
			defer tree.Close()
			root := tree.RootNode()

			symbols := extract.Symbols(root, l, content)
			imports := extract.Imports(root, l, filePath, nil, content)
			complexity := metrics.Complexity(root, l, content)

			fmt.Printf("File: %s\n", filePath)
			fmt.Printf("Language: %s\n", l)
			fmt.Printf("Complexity: %d\n", complexity)
			fmt.Printf("Symbols: %d, Imports: %d\n\n", len(symbols), len(imports))

			for i, s := range symbols {
				visibility := "private"
				if s.Exported {
					visibility = "exported"
				}
				fmt.Printf("%d. %s %s (%s) [lines %d-%d]\n", i+1, s.Kind, s.Name, visibility, s.StartLine, s.EndLine)
			}

			if len(imports) > 0 {
				fmt.Println("\nImports:")
				for _, imp := range imports {
					fmt.Printf("  %s\n", imp.Specifier)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Source file to parse")
	cmd.MarkFlagRequired("file")

	return cmd
}
