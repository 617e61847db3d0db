package summarizer

import (
	"fmt"
	"sort"
	"strings"

	"codeatlas/pkg/types"
)

// Summarizer produces a natural-language FileSummary from a parse result.
// Implementations may be heuristic or LLM-backed.
type Summarizer interface {
	SummarizeFile(result *types.ParseResult) (*types.FileSummary, error)
}

// Heuristic builds summaries from the parse result alone, without any
// model call. It is the default collaborator: deterministic, offline,
// and cheap enough to run on every modified file.
type Heuristic struct{}

// NewHeuristic creates a new heuristic summarizer.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// SummarizeFile composes a one-paragraph description plus symbol and
// dependency lists from the parse result.
func (h *Heuristic) SummarizeFile(result *types.ParseResult) (*types.FileSummary, error) {
	if result == nil {
		return nil, fmt.Errorf("nil parse result")
	}

	summary := &types.FileSummary{
		Metrics: types.FileMetrics{
			Symbols: len(result.Symbols),
			Imports: len(result.Imports),
		},
	}
	if len(result.Symbols) > 0 {
		summary.Metrics.Lines = maxEndLine(result.Symbols)
	}

	counts := make(map[types.SymbolKind]int)
	for _, sym := range result.Symbols {
		counts[sym.Kind]++
		summary.Symbols = append(summary.Symbols, sym.Name)
	}
	for _, imp := range result.Imports {
		summary.Dependencies = append(summary.Dependencies, imp.Path)
	}
	sort.Strings(summary.Dependencies)

	summary.Description = describe(result, counts)
	return summary, nil
}

// describe renders "Go package indexer with 4 functions, 2 types;
// imports 3 packages."
func describe(result *types.ParseResult, counts map[types.SymbolKind]int) string {
	var b strings.Builder
	if result.PackageName != "" {
		fmt.Fprintf(&b, "Go package %s", result.PackageName)
	} else {
		fmt.Fprintf(&b, "%s file", result.Language)
	}

	parts := make([]string, 0, len(counts))
	for _, kind := range []types.SymbolKind{
		types.KindFunction, types.KindMethod, types.KindType,
		types.KindConst, types.KindVar,
	} {
		if n := counts[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, plural(string(kind), n)))
		}
	}
	if len(parts) > 0 {
		b.WriteString(" with ")
		b.WriteString(strings.Join(parts, ", "))
	}
	if n := len(result.Imports); n > 0 {
		fmt.Fprintf(&b, "; imports %d %s", n, plural("package", n))
	}
	b.WriteString(".")
	return b.String()
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func maxEndLine(symbols []types.Symbol) int {
	max := 0
	for _, s := range symbols {
		if s.End.Line > max {
			max = s.End.Line
		}
	}
	return max
}
