// Package parser implements the Parser collaborator for Go source files.
// It extracts symbols with positions and signatures, import declarations,
// and exported names. Syntax errors are recorded on the parse result
// rather than aborting, so partially broken files still contribute
// whatever declarations survived.
package parser
