// Package ignore resolves exclusion patterns from built-in defaults,
// .gitignore, .atlasignore, and caller-supplied lists into a single
// path-matching predicate used during file discovery.
package ignore
