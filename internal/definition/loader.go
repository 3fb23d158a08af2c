package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultWorkflowsDir is the conventional location of workflow definition
// files, relative to the working tree, when no directory is configured.
const DefaultWorkflowsDir = ".phasegate/workflows"

// Parse decodes and validates a workflow definition from YAML bytes.
//
// Decoding failures and schema violations surface as [ErrMalformed]; the
// structural invariants are checked by [Definition.Validate]. No partially
// valid definition is ever returned.
func Parse(data []byte) (*Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: definition document is empty", ErrMalformed)
	}

	var def Definition
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Load reads and validates a workflow definition from an explicit file path.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, path)
		}
		return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
	}

	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Resolve loads a definition from either an explicit path or a bare name.
//
// A ref that contains a path separator or a .yaml/.yml extension is treated
// as a file path. A bare name is resolved to <workflowsDir>/<name>.yaml
// (falling back to .yml when the .yaml file is absent). An empty workflowsDir
// means [DefaultWorkflowsDir].
func Resolve(workflowsDir, ref string) (*Definition, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: definition reference is empty", ErrMalformed)
	}

	if looksLikePath(ref) {
		return Load(ref)
	}

	if workflowsDir == "" {
		workflowsDir = DefaultWorkflowsDir
	}
	path := filepath.Join(workflowsDir, ref+".yaml")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		alt := filepath.Join(workflowsDir, ref+".yml")
		if _, altErr := os.Stat(alt); altErr == nil {
			path = alt
		}
	}
	return Load(path)
}

func looksLikePath(ref string) bool {
	if strings.ContainsRune(ref, os.PathSeparator) || strings.ContainsRune(ref, '/') {
		return true
	}
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
