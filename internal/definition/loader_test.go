package definition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `name: release
version: "1.0"
phases:
  - id: prepare
    name: Prepare
    steps:
      - id: draft-notes
        owner: writer
        optional: true
      - id: tag-build
        owner: ci
        depends_on: [draft-notes]
        verify:
          kind: command
          params:
            command: "true"
  - id: ship
    steps:
      - id: publish
        owner: ci
        depends_on: [tag-build]
        verify:
          kind: manual
`

func TestParse_Valid(t *testing.T) {
	def, err := Parse([]byte(validYAML))

	require.NoError(t, err)
	assert.Equal(t, "release", def.Name)
	assert.Equal(t, "1.0", def.Version)
	require.Len(t, def.Phases, 2)
	assert.Equal(t, 3, def.StepCount())

	tag, ok := def.FindStep("tag-build")
	require.True(t, ok)
	require.NotNil(t, tag.Verify)
	assert.Equal(t, CheckCommand, tag.Verify.Kind)
	assert.Equal(t, "true", tag.Verify.Params["command"])
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte("   \n"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("phases:\n  - id: [broken"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("name: x\nphasez:\n  - id: a\n"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParse_CyclicDefinition(t *testing.T) {
	cyclic := `name: loop
phases:
  - id: only
    steps:
      - id: a
        depends_on: [b]
      - id: b
        depends_on: [a]
`
	_, err := Parse([]byte(cyclic))
	assert.ErrorIs(t, err, ErrCyclicDependency)
}

func TestLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "release.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0644))

	def, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "release", def.Name)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrDefinitionNotFound)
}

func TestLoad_InvalidWrapsPath(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0644))

	_, err := Load(path)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestResolve_ByName(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "release.yaml"), []byte(validYAML), 0644))

	def, err := Resolve(tmpDir, "release")

	require.NoError(t, err)
	assert.Equal(t, "release", def.Name)
}

func TestResolve_ByNameYmlFallback(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "release.yml"), []byte(validYAML), 0644))

	def, err := Resolve(tmpDir, "release")

	require.NoError(t, err)
	assert.Equal(t, "release", def.Name)
}

func TestResolve_ByPath(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "anywhere.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0644))

	def, err := Resolve("ignored", path)

	require.NoError(t, err)
	assert.Equal(t, "release", def.Name)
}

func TestResolve_EmptyRef(t *testing.T) {
	_, err := Resolve("", "  ")
	assert.ErrorIs(t, err, ErrMalformed)
}
