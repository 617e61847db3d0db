package types

// Position is a line/column location in a source file.
type Position struct {
	Line   int
	Column int
}

// SymbolKind classifies a parsed symbol.
type SymbolKind string

const (
	KindFunction SymbolKind = "function"
	KindMethod   SymbolKind = "method"
	KindType     SymbolKind = "type"
	KindConst    SymbolKind = "const"
	KindVar      SymbolKind = "var"
)

// Symbol is a named declaration extracted from a source file.
type Symbol struct {
	Name      string
	Kind      SymbolKind
	Package   string
	Signature string
	Doc       string
	Receiver  string
	Exported  bool
	Start     Position
	End       Position

	// References holds names of other symbols this symbol mentions,
	// used for relationship extraction.
	References []string
}

// QualifiedName returns the name that identifies the symbol within its
// file: methods are prefixed with their receiver type ("Buffer.String")
// because the bare name alone is ambiguous across receivers.
func (s Symbol) QualifiedName() string {
	if s.Receiver != "" {
		return s.Receiver + "." + s.Name
	}
	return s.Name
}

// Import represents an import statement in a source file.
type Import struct {
	Path  string
	Alias string
	Line  int
}

// ParseResult is the output of parsing a single source file.
type ParseResult struct {
	FilePath    string
	Language    string
	PackageName string
	Symbols     []Symbol
	Imports     []Import
	Exports     []string
	Errors      []ParseError
}

// ParseError is a non-fatal error encountered while parsing.
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface.
func (pe *ParseError) Error() string {
	return pe.Message
}

// HasErrors reports whether any parse errors were recorded.
func (pr *ParseResult) HasErrors() bool {
	return len(pr.Errors) > 0
}

// AddError records a non-fatal parse error.
func (pr *ParseResult) AddError(file string, line, col int, msg string) {
	pr.Errors = append(pr.Errors, ParseError{
		File:    file,
		Line:    line,
		Column:  col,
		Message: msg,
	})
}

// FileMetrics holds simple size metrics about a parsed file.
type FileMetrics struct {
	Lines   int
	Symbols int
	Imports int
}

// FileSummary is a natural-language description of a parsed file
// produced by a Summarizer.
type FileSummary struct {
	Description  string      `json:"description"`
	Symbols      []string    `json:"symbols,omitempty"`
	Dependencies []string    `json:"dependencies,omitempty"`
	Metrics      FileMetrics `json:"metrics"`
}
