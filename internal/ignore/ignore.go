package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Ignore file names recognized next to the project root.
const (
	GitIgnoreFile  = ".gitignore"
	ToolIgnoreFile = ".atlasignore"
)

// defaultExcludes are always active: build output, VCS metadata,
// lockfiles, and minified bundles. None of these carry indexable content.
var defaultExcludes = []string{
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"out/",
	"target/",
	".git/",
	".hg/",
	".svn/",
	".idea/",
	".vscode/",
	"coverage/",
	"__pycache__/",
	"*.min.js",
	"*.min.css",
	"*.lock",
	"package-lock.json",
	"go.sum",
}

// Options controls which pattern sources are merged into a Matcher.
type Options struct {
	ExtraExclude  []string // caller-supplied patterns, appended last
	UseGitIgnore  bool     // read .gitignore at the project root
	UseToolIgnore bool     // read .atlasignore at the project root
}

// Matcher answers whether a path relative to the project root is excluded
// from indexing. It is immutable once built; Match has no side effects.
type Matcher struct {
	globs []string
}

// NewMatcher merges the built-in exclusions, optional ignore files, and
// caller-supplied patterns into a single matcher. Pattern order does not
// affect the result: the set is a union of excludes.
func NewMatcher(root string, opts Options) *Matcher {
	patterns := make([]string, 0, len(defaultExcludes))
	patterns = append(patterns, defaultExcludes...)

	if opts.UseGitIgnore {
		patterns = append(patterns, readIgnoreFile(filepath.Join(root, GitIgnoreFile))...)
	}
	if opts.UseToolIgnore {
		patterns = append(patterns, readIgnoreFile(filepath.Join(root, ToolIgnoreFile))...)
	}
	patterns = append(patterns, opts.ExtraExclude...)

	m := &Matcher{}
	for _, p := range patterns {
		m.globs = append(m.globs, expandPattern(p)...)
	}
	return m
}

// Match reports whether relPath is excluded. relPath uses forward slashes
// relative to the project root; a leading "./" is tolerated.
func (m *Matcher) Match(relPath string) bool {
	relPath = strings.TrimPrefix(filepath.ToSlash(relPath), "./")
	for _, g := range m.globs {
		if ok, err := doublestar.Match(g, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

// expandPattern converts one raw ignore pattern into the globs that
// implement its matching semantics:
//
//	trailing "/"  -> directory: match the bare name and everything below
//	leading "/"   -> anchored to the root, no "**/" prefix
//	bare name     -> matches anywhere in the tree
func expandPattern(raw string) []string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return nil
	}

	dir := strings.HasSuffix(p, "/")
	p = strings.TrimSuffix(p, "/")

	anchored := strings.HasPrefix(p, "/")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return nil
	}

	var globs []string
	add := func(g string) {
		globs = append(globs, g)
		if dir {
			globs = append(globs, g+"/**")
		}
	}

	add(p)
	if !anchored && !strings.Contains(p, "/") {
		add("**/" + p)
	}
	return globs
}

// readIgnoreFile parses an ignore file: one pattern per line, "#" comments
// and blank lines skipped. Negation lines ("!") are not supported and are
// dropped. A missing or unreadable file yields no patterns.
func readIgnoreFile(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}
