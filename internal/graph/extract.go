package graph

import (
	"strings"

	"codeatlas/pkg/types"
)

// Extract adds relationships derived from one file's parse result:
// file -> imports -> package, file -> defines -> symbol,
// file -> exports -> symbol, and symbol -> references -> call target.
// Extraction is idempotent because insertion deduplicates edges.
func (e *Engine) Extract(relPath string, result *types.ParseResult) {
	if result == nil {
		return
	}

	for _, imp := range result.Imports {
		rel := &types.Relationship{
			Type:   types.RelImports,
			Source: relPath,
			Target: imp.Path,
			Metadata: types.RelationshipMeta{
				Line:       imp.Line,
				IsExternal: isExternalImport(imp.Path),
			},
		}
		if imp.Alias != "" {
			rel.Metadata.Specifiers = []string{imp.Alias}
		}
		e.AddRelationship(rel)
	}

	for _, sym := range result.Symbols {
		symbolID := SymbolID(relPath, sym.QualifiedName())
		e.AddRelationship(&types.Relationship{
			Type:   types.RelDefines,
			Source: relPath,
			Target: symbolID,
			Metadata: types.RelationshipMeta{
				Line: sym.Start.Line,
			},
		})

		for _, ref := range sym.References {
			e.AddRelationship(&types.Relationship{
				Type:   types.RelReferences,
				Source: symbolID,
				Target: ref,
			})
		}
	}

	for _, name := range result.Exports {
		e.AddRelationship(&types.Relationship{
			Type:   types.RelExports,
			Source: relPath,
			Target: SymbolID(relPath, name),
			Metadata: types.RelationshipMeta{
				Specifiers: []string{name},
			},
		})
	}
}

// SymbolID builds the graph identifier for a symbol defined in a file.
// name must already be receiver-qualified for methods (Symbol.QualifiedName).
func SymbolID(relPath, name string) string {
	return relPath + QualifierSeparator + name
}

// isExternalImport treats any import whose first path segment looks like
// a domain (contains a dot) as external to the project.
func isExternalImport(importPath string) bool {
	first := importPath
	if i := strings.Index(importPath, "/"); i >= 0 {
		first = importPath[:i]
	}
	return strings.Contains(first, ".")
}
