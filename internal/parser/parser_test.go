package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeatlas/pkg/types"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSupports(t *testing.T) {
	p := New()
	assert.True(t, p.Supports("internal/indexer/indexer.go"))
	assert.False(t, p.Supports("README.md"))
	assert.False(t, p.Supports("Makefile"))
}

func TestParseFile_SymbolsAndImports(t *testing.T) {
	path := writeFixture(t, "svc.go", `package svc

import (
	"fmt"
	str "strings"
)

// Greeting is the template used by Greet.
const Greeting = "hello, %s"

// Greet formats a greeting for name.
func Greet(name string) string {
	return fmt.Sprintf(Greeting, str.TrimSpace(name))
}

type service struct {
	name string
}

func (s *service) Name() string {
	return s.name
}
`)

	p := New()
	result, err := p.ParseFile(path)
	require.NoError(t, err)
	assert.False(t, result.HasErrors())
	assert.Equal(t, "svc", result.PackageName)
	assert.Equal(t, "go", result.Language)

	require.Len(t, result.Imports, 2)
	assert.Equal(t, "fmt", result.Imports[0].Path)
	assert.Equal(t, "strings", result.Imports[1].Path)
	assert.Equal(t, "str", result.Imports[1].Alias)

	byName := make(map[string]types.Symbol)
	for _, s := range result.Symbols {
		byName[s.Name] = s
	}

	greet, ok := byName["Greet"]
	require.True(t, ok)
	assert.Equal(t, types.KindFunction, greet.Kind)
	assert.True(t, greet.Exported)
	assert.Equal(t, "Greet(name string) string", greet.Signature)
	assert.Contains(t, greet.Doc, "formats a greeting")
	assert.Contains(t, greet.References, "fmt.Sprintf")
	assert.Contains(t, greet.References, "str.TrimSpace")

	name, ok := byName["Name"]
	require.True(t, ok)
	assert.Equal(t, types.KindMethod, name.Kind)
	assert.Equal(t, "service", name.Receiver)
	assert.Equal(t, "service.Name", name.QualifiedName())

	greeting, ok := byName["Greeting"]
	require.True(t, ok)
	assert.Equal(t, types.KindConst, greeting.Kind)

	assert.Contains(t, result.Exports, "Greet")
	assert.Contains(t, result.Exports, "Greeting")
	assert.Contains(t, result.Exports, "service.Name")
	assert.NotContains(t, result.Exports, "service")
	assert.NotContains(t, result.Exports, "Name")
}

func TestParseFile_SyntaxErrorIsNonFatal(t *testing.T) {
	path := writeFixture(t, "broken.go", `package broken

func Valid() int { return 1 }

func Broken( {
`)

	p := New()
	result, err := p.ParseFile(path)
	require.NoError(t, err)
	assert.True(t, result.HasErrors())
	assert.Equal(t, "broken", result.PackageName)
}

func TestParseFile_MissingFile(t *testing.T) {
	p := New()
	_, err := p.ParseFile(filepath.Join(t.TempDir(), "nope.go"))
	assert.Error(t, err)
}
