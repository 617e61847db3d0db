package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeatlas/pkg/types"
)

// Parser extracts symbols, imports, and exports from Go source files
// using the standard library AST.
type Parser struct {
	fset *token.FileSet
}

// New creates a new Parser instance.
func New() *Parser {
	return &Parser{
		fset: token.NewFileSet(),
	}
}

// Supports reports whether the parser can handle the given file.
func (p *Parser) Supports(path string) bool {
	return filepath.Ext(path) == ".go"
}

// ParseFile parses a Go source file and extracts package name, imports,
// exports, and symbols. Syntax errors are non-fatal: the error is recorded
// on the result and extraction continues over the partial AST.
func (p *Parser) ParseFile(filePath string) (*types.ParseResult, error) {
	result := &types.ParseResult{
		FilePath: filePath,
		Language: "go",
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	file, err := parser.ParseFile(p.fset, filePath, content, parser.ParseComments)
	if err != nil {
		result.AddError(filePath, 0, 0, fmt.Sprintf("syntax error: %v", err))
	}
	if file == nil {
		return result, nil
	}

	if file.Name != nil {
		result.PackageName = file.Name.Name
	}
	result.Imports = p.extractImports(file)
	result.Symbols = p.extractSymbols(file, result.PackageName)

	for _, sym := range result.Symbols {
		if sym.Exported {
			result.Exports = append(result.Exports, sym.QualifiedName())
		}
	}

	return result, nil
}

// extractImports collects import declarations with their aliases.
func (p *Parser) extractImports(file *ast.File) []types.Import {
	imports := make([]types.Import, 0, len(file.Imports))
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			path = strings.Trim(imp.Path.Value, `"`)
		}
		record := types.Import{
			Path: path,
			Line: p.fset.Position(imp.Pos()).Line,
		}
		if imp.Name != nil {
			record.Alias = imp.Name.Name
		}
		imports = append(imports, record)
	}
	return imports
}

// extractSymbols walks top-level declarations and builds symbol records.
func (p *Parser) extractSymbols(file *ast.File, pkgName string) []types.Symbol {
	var symbols []types.Symbol

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			symbols = append(symbols, p.funcSymbol(d, pkgName))
		case *ast.GenDecl:
			symbols = append(symbols, p.genSymbols(d, pkgName)...)
		}
	}
	return symbols
}

func (p *Parser) funcSymbol(d *ast.FuncDecl, pkgName string) types.Symbol {
	sym := types.Symbol{
		Name:       d.Name.Name,
		Kind:       types.KindFunction,
		Package:    pkgName,
		Signature:  p.funcSignature(d),
		Exported:   d.Name.IsExported(),
		Start:      p.position(d.Pos()),
		End:        p.position(d.End()),
		References: collectReferences(d.Body),
	}
	if d.Doc != nil {
		sym.Doc = strings.TrimSpace(d.Doc.Text())
	}
	if d.Recv != nil && len(d.Recv.List) > 0 {
		sym.Kind = types.KindMethod
		sym.Receiver = receiverName(d.Recv.List[0].Type)
	}
	return sym
}

func (p *Parser) genSymbols(d *ast.GenDecl, pkgName string) []types.Symbol {
	var symbols []types.Symbol

	for _, spec := range d.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			sym := types.Symbol{
				Name:     s.Name.Name,
				Kind:     types.KindType,
				Package:  pkgName,
				Exported: s.Name.IsExported(),
				Start:    p.position(d.Pos()),
				End:      p.position(d.End()),
			}
			if d.Doc != nil {
				sym.Doc = strings.TrimSpace(d.Doc.Text())
			}
			symbols = append(symbols, sym)
		case *ast.ValueSpec:
			kind := types.KindVar
			if d.Tok == token.CONST {
				kind = types.KindConst
			}
			for _, name := range s.Names {
				if name.Name == "_" {
					continue
				}
				symbols = append(symbols, types.Symbol{
					Name:     name.Name,
					Kind:     kind,
					Package:  pkgName,
					Exported: name.IsExported(),
					Start:    p.position(d.Pos()),
					End:      p.position(d.End()),
				})
			}
		}
	}
	return symbols
}

// funcSignature renders a compact signature like "Parse(path string) error".
func (p *Parser) funcSignature(d *ast.FuncDecl) string {
	var b strings.Builder
	b.WriteString(d.Name.Name)
	b.WriteString("(")
	if d.Type.Params != nil {
		for i, field := range d.Type.Params.List {
			if i > 0 {
				b.WriteString(", ")
			}
			names := make([]string, 0, len(field.Names))
			for _, n := range field.Names {
				names = append(names, n.Name)
			}
			if len(names) > 0 {
				b.WriteString(strings.Join(names, ", "))
				b.WriteString(" ")
			}
			b.WriteString(exprString(field.Type))
		}
	}
	b.WriteString(")")
	if d.Type.Results != nil && len(d.Type.Results.List) > 0 {
		b.WriteString(" ")
		if len(d.Type.Results.List) > 1 {
			b.WriteString("(")
		}
		for i, field := range d.Type.Results.List {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(exprString(field.Type))
		}
		if len(d.Type.Results.List) > 1 {
			b.WriteString(")")
		}
	}
	return b.String()
}

func (p *Parser) position(pos token.Pos) types.Position {
	pp := p.fset.Position(pos)
	return types.Position{Line: pp.Line, Column: pp.Column}
}

// collectReferences gathers names invoked within a function body. Only
// call targets are collected; plain identifier reads are too noisy to be
// useful as graph edges.
func collectReferences(body *ast.BlockStmt) []string {
	if body == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var refs []string

	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		name := callTargetName(call.Fun)
		if name == "" {
			return true
		}
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			refs = append(refs, name)
		}
		return true
	})
	return refs
}

func callTargetName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		if ident, ok := e.X.(*ast.Ident); ok {
			return ident.Name + "." + e.Sel.Name
		}
		return e.Sel.Name
	}
	return ""
}

func receiverName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.StarExpr:
		return receiverName(e.X)
	case *ast.IndexExpr:
		return receiverName(e.X)
	}
	return ""
}

func exprString(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.StarExpr:
		return "*" + exprString(e.X)
	case *ast.SelectorExpr:
		return exprString(e.X) + "." + e.Sel.Name
	case *ast.ArrayType:
		return "[]" + exprString(e.Elt)
	case *ast.MapType:
		return "map[" + exprString(e.Key) + "]" + exprString(e.Value)
	case *ast.ChanType:
		return "chan " + exprString(e.Value)
	case *ast.FuncType:
		return "func"
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.Ellipsis:
		return "..." + exprString(e.Elt)
	case *ast.IndexExpr:
		return exprString(e.X) + "[" + exprString(e.Index) + "]"
	}
	return "?"
}
