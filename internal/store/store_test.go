package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phasegate/internal/definition"
)

func testDefinition(name string) *definition.Definition {
	return &definition.Definition{
		Name:    name,
		Version: "1.0",
		Phases: []definition.Phase{
			{
				ID: "prepare",
				Steps: []definition.Step{
					{ID: "draft-notes", Description: "Draft the release notes", Optional: true},
					{ID: "tag-build", Description: "Tag the build", DependsOn: []string{"draft-notes"}},
				},
			},
			{
				ID: "ship",
				Steps: []definition.Step{
					{ID: "publish", Description: "Publish the release", DependsOn: []string{"tag-build"}},
				},
			},
		},
	}
}

// sequentialSuffixes makes generated instance ids deterministic.
func sequentialSuffixes() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%08d", n)
	}
}

// tickingClock returns a clock that advances by step on every reading.
func tickingClock(start time.Time, step time.Duration) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(step)
		return now
	}
}

func TestStore_Create_PersistsImmediately(t *testing.T) {
	s := NewStore(t.TempDir(), WithIDSuffix(sequentialSuffixes()))

	inst, err := s.Create(testDefinition("release"))

	require.NoError(t, err)
	assert.FileExists(t, s.Path(inst.ID))
}

func TestStore_Create_InitialShape(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(t.TempDir(), WithIDSuffix(sequentialSuffixes()), WithClock(tickingClock(start, time.Second)))

	inst, err := s.Create(testDefinition("release"))
	require.NoError(t, err)

	assert.Equal(t, "release-00000001", inst.ID)
	assert.Equal(t, InstanceActive, inst.Status)
	assert.Equal(t, 0, inst.PhaseIndex)
	assert.Equal(t, 0, inst.StepIndex)
	assert.Equal(t, "release", inst.Definition.Name)
	assert.Equal(t, "1.0", inst.Definition.Version)
	assert.Equal(t, start, inst.CreatedAt)

	require.Len(t, inst.Steps, 3)
	for stepID, rec := range inst.Steps {
		assert.Equal(t, StepPending, rec.Status, "step %s should start pending", stepID)
	}

	require.Len(t, inst.Decisions, 1)
	assert.Contains(t, inst.Decisions[0].Text, "release@1.0")
}

func TestStore_Create_GeneratesDistinctIDs(t *testing.T) {
	s := NewStore(t.TempDir())

	first, err := s.Create(testDefinition("release"))
	require.NoError(t, err)
	second, err := s.Create(testDefinition("release"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first.ID, "release-"))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestStore_Create_NilDefinition(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Create(nil)

	assert.Error(t, err)
}

func TestStore_Load_RoundTrip(t *testing.T) {
	s := NewStore(t.TempDir(), WithIDSuffix(sequentialSuffixes()))
	created, err := s.Create(testDefinition("release"))
	require.NoError(t, err)

	loaded, err := s.Load(created.ID)

	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, created.Status, loaded.Status)
	assert.Equal(t, created.Steps, loaded.Steps)
}

func TestStore_Load_NotFound(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.Load("release-deadbeef")

	require.ErrorIs(t, err, ErrInstanceNotFound)
	assert.Contains(t, err.Error(), "release-deadbeef")
}

func TestStore_Load_CorruptJSON(t *testing.T) {
	s := NewStore(t.TempDir())
	path := s.Path("release-deadbeef")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0o644))

	_, err := s.Load("release-deadbeef")

	require.ErrorIs(t, err, ErrCorruptState)
	assert.Contains(t, err.Error(), path)
}

func TestStore_Load_TruncatedRecord(t *testing.T) {
	s := NewStore(t.TempDir(), WithIDSuffix(sequentialSuffixes()))
	inst, err := s.Create(testDefinition("release"))
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path(inst.ID))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(inst.ID), data[:len(data)/2], 0o644))

	_, err = s.Load(inst.ID)

	assert.ErrorIs(t, err, ErrCorruptState)
}

func TestStore_Load_IDMismatch(t *testing.T) {
	s := NewStore(t.TempDir(), WithIDSuffix(sequentialSuffixes()))
	inst, err := s.Create(testDefinition("release"))
	require.NoError(t, err)

	// A record copied to a different filename must not load under the new id.
	data, err := os.ReadFile(s.Path(inst.ID))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path("release-other000"), data, 0o644))

	_, err = s.Load("release-other000")

	assert.ErrorIs(t, err, ErrCorruptState)
}

func TestStore_Load_UnknownStatus(t *testing.T) {
	s := NewStore(t.TempDir())
	record := `{"id": "release-deadbeef", "definition": {"name": "release"}, "status": "paused", "decisions": []}`
	require.NoError(t, os.WriteFile(s.Path("release-deadbeef"), []byte(record), 0o644))

	_, err := s.Load("release-deadbeef")

	require.ErrorIs(t, err, ErrCorruptState)
	assert.Contains(t, err.Error(), "paused")
}

func TestStore_Save_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, WithIDSuffix(sequentialSuffixes()))
	inst, err := s.Create(testDefinition("release"))
	require.NoError(t, err)

	inst.Status = InstanceBlocked
	require.NoError(t, s.Save(inst))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasSuffix(entry.Name(), ".tmp"), "temp file left behind: %s", entry.Name())
	}
}

func TestStore_Save_StampsUpdatedAt(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(t.TempDir(), WithIDSuffix(sequentialSuffixes()), WithClock(tickingClock(start, time.Minute)))
	inst, err := s.Create(testDefinition("release"))
	require.NoError(t, err)
	firstSave := inst.UpdatedAt

	require.NoError(t, s.Save(inst))

	assert.True(t, inst.UpdatedAt.After(firstSave))
}

func TestStore_Save_RequiresID(t *testing.T) {
	s := NewStore(t.TempDir())

	assert.Error(t, s.Save(&WorkflowInstance{}))
	assert.Error(t, s.Save(nil))
}

func TestStore_FindActive_SingleMatch(t *testing.T) {
	s := NewStore(t.TempDir(), WithIDSuffix(sequentialSuffixes()))
	inst, err := s.Create(testDefinition("release"))
	require.NoError(t, err)

	found, err := s.FindActive("")

	require.NoError(t, err)
	assert.Equal(t, inst.ID, found.ID)
}

func TestStore_FindActive_NoInstances(t *testing.T) {
	s := NewStore(t.TempDir())

	_, err := s.FindActive("")

	assert.ErrorIs(t, err, ErrNoActiveInstance)
}

func TestStore_FindActive_AmbiguityIsAnError(t *testing.T) {
	s := NewStore(t.TempDir(), WithIDSuffix(sequentialSuffixes()))
	first, err := s.Create(testDefinition("release"))
	require.NoError(t, err)
	second, err := s.Create(testDefinition("hotfix"))
	require.NoError(t, err)

	_, err = s.FindActive("")

	require.ErrorIs(t, err, ErrAmbiguousInstance)
	assert.Contains(t, err.Error(), first.ID)
	assert.Contains(t, err.Error(), second.ID)
}

func TestStore_FindActive_FiltersByDefinition(t *testing.T) {
	s := NewStore(t.TempDir(), WithIDSuffix(sequentialSuffixes()))
	_, err := s.Create(testDefinition("release"))
	require.NoError(t, err)
	hotfix, err := s.Create(testDefinition("hotfix"))
	require.NoError(t, err)

	found, err := s.FindActive("hotfix")

	require.NoError(t, err)
	assert.Equal(t, hotfix.ID, found.ID)

	_, err = s.FindActive("migration")
	assert.ErrorIs(t, err, ErrNoActiveInstance)
}

func TestStore_FindActive_BlockedCountsAsInFlight(t *testing.T) {
	s := NewStore(t.TempDir(), WithIDSuffix(sequentialSuffixes()))
	inst, err := s.Create(testDefinition("release"))
	require.NoError(t, err)
	inst.Status = InstanceBlocked
	require.NoError(t, s.Save(inst))

	found, err := s.FindActive("")

	require.NoError(t, err)
	assert.Equal(t, inst.ID, found.ID)
}

func TestStore_FindActive_IgnoresTerminalInstances(t *testing.T) {
	s := NewStore(t.TempDir(), WithIDSuffix(sequentialSuffixes()))
	done, err := s.Create(testDefinition("release"))
	require.NoError(t, err)
	done.Status = InstanceCompleted
	require.NoError(t, s.Save(done))
	aborted, err := s.Create(testDefinition("release"))
	require.NoError(t, err)
	aborted.Status = InstanceAborted
	require.NoError(t, s.Save(aborted))
	current, err := s.Create(testDefinition("release"))
	require.NoError(t, err)

	found, err := s.FindActive("release")

	require.NoError(t, err)
	assert.Equal(t, current.ID, found.ID)
}

func TestStore_List_MostRecentFirst(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewStore(t.TempDir(), WithIDSuffix(sequentialSuffixes()), WithClock(tickingClock(start, time.Minute)))
	older, err := s.Create(testDefinition("release"))
	require.NoError(t, err)
	newer, err := s.Create(testDefinition("hotfix"))
	require.NoError(t, err)

	summaries, err := s.List()

	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, newer.ID, summaries[0].ID)
	assert.Equal(t, older.ID, summaries[1].ID)
	assert.Equal(t, InstanceActive, summaries[0].Status)
}

func TestStore_List_EmptyStateDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing"))

	summaries, err := s.List()

	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestStore_List_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, WithIDSuffix(sequentialSuffixes()))
	_, err := s.Create(testDefinition("release"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "workflows"), 0o755))

	summaries, err := s.List()

	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}
