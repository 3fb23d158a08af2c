package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"phasegate/internal/definition"
)

// DefaultStateDir is the conventional state directory, relative to the
// working tree, used when no explicit directory is configured.
const DefaultStateDir = ".phasegate"

// stateFileSuffix completes an instance id into its record filename.
const stateFileSuffix = "-state.json"

// Store reads and writes instance records under a single state directory.
// Create with [NewStore].
type Store struct {
	dir      string
	now      func() time.Time
	idSuffix func() string
}

// Option customizes a [Store].
type Option func(*Store)

// WithClock overrides the store's time source. Tests use this to pin
// CreatedAt/UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDSuffix overrides the random id suffix source. Tests use this to make
// generated instance ids deterministic.
func WithIDSuffix(fn func() string) Option {
	return func(s *Store) { s.idSuffix = fn }
}

// NewStore creates a store rooted at dir. The directory is created lazily on
// the first write.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir: dir,
		now: time.Now,
		idSuffix: func() string {
			return uuid.NewString()[:8]
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the state directory this store is rooted at.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the record file path for an instance id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.dir, id+stateFileSuffix)
}

// Create builds a fresh instance for the definition — status active, every
// step pending, position at the first step of the first phase — and persists
// it immediately. The generated id is the definition name plus a random
// suffix.
func (s *Store) Create(def *definition.Definition) (*WorkflowInstance, error) {
	if def == nil {
		return nil, errors.New("create instance: nil definition")
	}

	now := s.now()
	inst := &WorkflowInstance{
		ID:         fmt.Sprintf("%s-%s", def.Name, s.idSuffix()),
		Definition: def.Ref(),
		Status:     InstanceActive,
		Steps:      make(map[string]StepRecord, def.StepCount()),
		CreatedAt:  now,
	}
	for _, stepID := range def.StepIDs() {
		inst.Steps[stepID] = StepRecord{Status: StepPending}
	}
	inst.AppendDecision(now, fmt.Sprintf("instance created from definition %s", def.Ref()))

	if err := s.Save(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Load reads the record for an instance id.
//
// A missing file maps to [ErrInstanceNotFound]; an unreadable or incoherent
// record maps to [ErrCorruptState] with the file path in the message.
func (s *Store) Load(id string) (*WorkflowInstance, error) {
	path := s.Path(id)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("instance %q: %w", id, ErrInstanceNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var inst WorkflowInstance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, path, err)
	}
	if err := checkRecord(&inst, id); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, path, err)
	}
	return &inst, nil
}

// checkRecord rejects decoded records that parsed as JSON but do not form a
// usable instance, such as the remains of a truncated manual edit.
func checkRecord(inst *WorkflowInstance, wantID string) error {
	if inst.ID == "" {
		return errors.New("record has no instance id")
	}
	if wantID != "" && inst.ID != wantID {
		return fmt.Errorf("record id %q does not match file id %q", inst.ID, wantID)
	}
	if !inst.Status.IsValid() {
		return fmt.Errorf("unknown instance status %q", inst.Status)
	}
	for stepID, rec := range inst.Steps {
		if !rec.Status.IsValid() {
			return fmt.Errorf("step %q has unknown status %q", stepID, rec.Status)
		}
	}
	return nil
}

// Save persists the instance atomically: the record is written to a temp
// file and renamed over the target, so a crash mid-write leaves the previous
// record intact. UpdatedAt is stamped on every save.
func (s *Store) Save(inst *WorkflowInstance) error {
	if inst == nil || inst.ID == "" {
		return errors.New("save instance: record has no id")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating state dir %s: %w", s.dir, err)
	}

	inst.UpdatedAt = s.now()
	data, err := json.MarshalIndent(inst, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding instance %s: %w", inst.ID, err)
	}
	data = append(data, '\n')

	path := s.Path(inst.ID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing instance %s: %w", inst.ID, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing instance %s: %w", inst.ID, err)
	}
	return nil
}

// FindActive resolves the single in-flight instance, optionally filtered to
// one definition name (empty matches all). In flight means status active or
// blocked; terminal records are ignored.
//
// Zero matches return [ErrNoActiveInstance]. More than one match returns
// [ErrAmbiguousInstance] listing the candidate ids; the caller must then
// name an instance explicitly.
func (s *Store) FindActive(definitionName string) (*WorkflowInstance, error) {
	ids, err := s.ids()
	if err != nil {
		return nil, err
	}

	var matches []*WorkflowInstance
	for _, id := range ids {
		inst, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		if inst.Status.Terminal() {
			continue
		}
		if definitionName != "" && inst.Definition.Name != definitionName {
			continue
		}
		matches = append(matches, inst)
	}

	switch len(matches) {
	case 0:
		if definitionName != "" {
			return nil, fmt.Errorf("%w for definition %q", ErrNoActiveInstance, definitionName)
		}
		return nil, ErrNoActiveInstance
	case 1:
		return matches[0], nil
	default:
		candidates := make([]string, len(matches))
		for i, inst := range matches {
			candidates[i] = inst.ID
		}
		sort.Strings(candidates)
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousInstance, strings.Join(candidates, ", "))
	}
}

// Summary is the per-instance line returned by [Store.List].
type Summary struct {
	ID         string         `json:"id"`
	Definition definition.Ref `json:"definition"`
	Status     InstanceStatus `json:"status"`
	PhaseIndex int            `json:"phase_index"`
	StepIndex  int            `json:"step_index"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// List returns a summary for every record in the state directory, most
// recently updated first. A missing state directory yields an empty list.
func (s *Store) List() ([]Summary, error) {
	ids, err := s.ids()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		inst, err := s.Load(id)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, Summary{
			ID:         inst.ID,
			Definition: inst.Definition,
			Status:     inst.Status,
			PhaseIndex: inst.PhaseIndex,
			StepIndex:  inst.StepIndex,
			UpdatedAt:  inst.UpdatedAt,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// ids enumerates instance ids from record filenames in the state directory.
func (s *Store) ids() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state dir %s: %w", s.dir, err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, stateFileSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, stateFileSuffix))
	}
	sort.Strings(ids)
	return ids, nil
}
