// Package walker yields the files of a project workspace, already filtered by
// skip globs, .gitignore rules, a size cutoff and a binary sniff. The pipeline
// never touches the filesystem itself; this is its only file source.
package walker

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultSkipPatterns excludes the directories no analysis wants to see.
var DefaultSkipPatterns = []string{
	"**/node_modules/**",
	"**/vendor/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/__pycache__/**",
	"**/*.min.js",
}

// DefaultMaxFileSize is the per-file size cutoff (1 MiB). Generated bundles
// and data blobs above it add noise, not signal.
const DefaultMaxFileSize int64 = 1 << 20

// Walker walks one workspace root.
type Walker struct {
	root      string
	skip      []string
	maxSize   int64
	gitignore *ignore.GitIgnore
}

// Option configures a Walker.
type Option func(*Walker)

// WithSkipPatterns replaces the default skip globs.
func WithSkipPatterns(patterns []string) Option {
	return func(w *Walker) {
		if len(patterns) > 0 {
			w.skip = patterns
		}
	}
}

// WithMaxFileSize replaces the default size cutoff.
func WithMaxFileSize(size int64) Option {
	return func(w *Walker) {
		if size > 0 {
			w.maxSize = size
		}
	}
}

// New creates a walker for the given root. A .gitignore at the root is honored
// when present.
func New(root string, opts ...Option) *Walker {
	w := &Walker{
		root:    root,
		skip:    DefaultSkipPatterns,
		maxSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(w)
	}

	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		w.gitignore = gi
	}

	return w
}

// Walk calls fn for every eligible file with its project-relative path,
// content and size. Walking stops at the first error fn returns, or when the
// context is cancelled.
func (w *Walker) Walk(ctx context.Context, fn func(path string, content []byte, size int64) error) error {
	return filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, relErr := filepath.Rel(w.root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p == w.root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || w.skipped(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if w.skipped(rel) {
			return nil
		}
		if w.gitignore != nil && w.gitignore.MatchesPath(rel) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		if info.Size() > w.maxSize {
			log.Debug().Str("path", rel).Int64("size", info.Size()).Msg("skipping oversized file")
			return nil
		}

		content, readErr := os.ReadFile(p)
		if readErr != nil {
			return fmt.Errorf("failed to read %s: %w", rel, readErr)
		}
		if isBinary(content) {
			return nil
		}

		return fn(rel, content, info.Size())
	})
}

func (w *Walker) skipped(rel string) bool {
	for _, pattern := range w.skip {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
		// Directory prefixes end with "/"; let "**/dir/**" match the dir itself.
		if strings.HasSuffix(rel, "/") {
			if ok, err := doublestar.Match(pattern, rel+"x"); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// isBinary sniffs for a NUL byte in the first 8000 bytes, the same heuristic
// git uses.
func isBinary(content []byte) bool {
	n := len(content)
	if n > 8000 {
		n = 8000
	}
	return bytes.IndexByte(content[:n], 0) >= 0
}
