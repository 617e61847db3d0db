package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "atlas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
project:
  root: /tmp/project
  use_gitignore: true
sqlite:
  path: /tmp/index.db
indexing:
  workers: 4
  batch_size: 10
embedding:
  provider: local
`)

	cfg := NewDefaultConfig()
	require.NoError(t, Load(path, cfg))
	assert.Equal(t, "/tmp/project", cfg.Project.Root)
	assert.Equal(t, 4, cfg.Indexing.Workers)
	assert.Equal(t, "local", cfg.Embedding.Provider)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("ATLAS_TEST_KEY", "secret-key")
	path := writeConfig(t, `
project:
  root: /tmp/project
sqlite:
  path: /tmp/index.db
embedding:
  provider: jina
  api_key: ${ATLAS_TEST_KEY}
`)

	cfg := NewDefaultConfig()
	require.NoError(t, Load(path, cfg))
	assert.Equal(t, "secret-key", cfg.Embedding.APIKey)
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
project:
  root: /tmp/project
sqlite:
  path: /tmp/index.db
embedding:
  provider: cohere
`)

	cfg := NewDefaultConfig()
	err := Load(path, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoad_RemoteProviderRequiresKey(t *testing.T) {
	path := writeConfig(t, `
project:
  root: /tmp/project
sqlite:
  path: /tmp/index.db
embedding:
  provider: openai
`)

	cfg := NewDefaultConfig()
	err := Load(path, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is empty")
}

func TestLoad_RejectsNegativeWorkers(t *testing.T) {
	path := writeConfig(t, `
project:
  root: /tmp/project
sqlite:
  path: /tmp/index.db
indexing:
  workers: -1
`)

	cfg := NewDefaultConfig()
	assert.Error(t, Load(path, cfg))
}

func TestLoadOrDefault_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ".", cfg.Project.Root)
	assert.Equal(t, ProviderLocal, cfg.Embedding.Provider)
	assert.True(t, cfg.Project.UseGitIgnore)
}

func TestValidate_EmptyProviderNormalizedToLocal(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Embedding.Provider = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ProviderLocal, cfg.Embedding.Provider)
}
