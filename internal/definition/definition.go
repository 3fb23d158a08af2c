// Package definition models and loads workflow definitions for phasegate.
//
// A workflow definition is the static, versioned description of the work: an
// ordered list of phases, each holding an ordered list of steps. Steps carry
// an owner tag, optional dependencies on earlier steps, an optionality flag,
// and an optional verification gate. Definitions are immutable once loaded;
// all runtime state lives in the instance record (see the store package).
//
// Key types:
//   - [Definition] - The validated phase/step graph, identified by name+version
//   - [Phase] - An ordered group of steps with a stable id
//   - [Step] - The atomic unit of work, optionally gated by a [VerificationSpec]
//   - [VerificationSpec] - A check kind plus kind-specific parameters
//
// Definitions are authored as YAML and loaded with [Load], [Parse], or
// [Resolve]. Validation is fail-fast: a definition that violates any
// structural invariant is rejected in full and never partially returned.
package definition

import (
	"fmt"
	"strings"
)

// CheckKind identifies which verification backend a step's gate dispatches to.
//
// The four builtin kinds are listed below; the verify package's registry
// accepts additional kinds, so these constants are a convention rather than a
// closed set. Parameters are opaque to the definition layer and passed through
// to the backend unchanged.
type CheckKind string

const (
	// CheckCommand runs an external command; exit 0 passes the gate.
	CheckCommand CheckKind = "command"

	// CheckResource queries a resource (a file in the working tree) and
	// compares it against an expected predicate.
	CheckResource CheckKind = "resource-check"

	// CheckInteractive asks a human to confirm behavior visually; the gate
	// resolves through a later attestation.
	CheckInteractive CheckKind = "interactive-check"

	// CheckManual has no automated check at all; the operator self-attests.
	CheckManual CheckKind = "manual"
)

// VerificationSpec declares the gate guarding a step.
//
// Kind selects the backend; Params carries kind-specific settings that the
// engine never interprets. For the builtin kinds the expected parameters are:
//
//	command:           command (string) or args (list), optional dir
//	resource-check:    path (string), optional exists/contains/non_empty
//	interactive-check: prompt (string)
//	manual:            prompt (string, optional)
type VerificationSpec struct {
	Kind   CheckKind      `yaml:"kind" json:"kind"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Step is the atomic, independently verifiable unit of work within a phase.
type Step struct {
	// ID is stable and unique across the whole definition, not just its phase.
	ID string `yaml:"id" json:"id"`

	// Description is free text shown to the operator; never interpreted.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Owner tags which actor or service class performs the step. Opaque.
	Owner string `yaml:"owner,omitempty" json:"owner,omitempty"`

	// DependsOn lists step ids that must be completed (or skipped) before
	// this step may start. Dependencies may only point at steps appearing at
	// or before this step in global step order.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`

	// Optional marks the step as skippable. Mandatory steps reject skip.
	Optional bool `yaml:"optional,omitempty" json:"optional,omitempty"`

	// Verify is the optional verification gate. Steps without a gate complete
	// as soon as the operator continues past them.
	Verify *VerificationSpec `yaml:"verify,omitempty" json:"verify,omitempty"`
}

// Phase groups an ordered run of steps under a stable id and a human name.
type Phase struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name,omitempty" json:"name,omitempty"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Ref identifies a definition by name and version. Instance records persist a
// Ref rather than the full definition so the definition file stays the single
// source of truth for step content.
type Ref struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// String renders the reference as name@version (or just the name).
func (r Ref) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "@" + r.Version
}

// Definition is the immutable, validated workflow description.
//
// Construct with [Load], [Parse], or [Resolve]; a Definition obtained from
// those functions has passed every invariant in [Definition.Validate].
type Definition struct {
	Name        string  `yaml:"name" json:"name"`
	Version     string  `yaml:"version,omitempty" json:"version,omitempty"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Phases      []Phase `yaml:"phases" json:"phases"`
}

// Ref returns the name+version reference for this definition.
func (d *Definition) Ref() Ref {
	return Ref{Name: d.Name, Version: d.Version}
}

// StepCount returns the total number of steps across all phases.
func (d *Definition) StepCount() int {
	n := 0
	for _, p := range d.Phases {
		n += len(p.Steps)
	}
	return n
}

// StepAt returns the step at the given phase/step position. The second return
// is false when the position is out of range.
func (d *Definition) StepAt(phaseIdx, stepIdx int) (*Step, bool) {
	if phaseIdx < 0 || phaseIdx >= len(d.Phases) {
		return nil, false
	}
	phase := &d.Phases[phaseIdx]
	if stepIdx < 0 || stepIdx >= len(phase.Steps) {
		return nil, false
	}
	return &phase.Steps[stepIdx], true
}

// PhaseAt returns the phase at the given index, or false when out of range.
func (d *Definition) PhaseAt(phaseIdx int) (*Phase, bool) {
	if phaseIdx < 0 || phaseIdx >= len(d.Phases) {
		return nil, false
	}
	return &d.Phases[phaseIdx], true
}

// FindStep locates a step by id anywhere in the definition.
func (d *Definition) FindStep(id string) (*Step, bool) {
	for pi := range d.Phases {
		for si := range d.Phases[pi].Steps {
			if d.Phases[pi].Steps[si].ID == id {
				return &d.Phases[pi].Steps[si], true
			}
		}
	}
	return nil, false
}

// StepIDs returns every step id in global step order (phase order, then step
// order within the phase).
func (d *Definition) StepIDs() []string {
	ids := make([]string, 0, d.StepCount())
	for _, p := range d.Phases {
		for _, s := range p.Steps {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Validate checks every structural invariant of the definition:
//
//   - the definition has a name and at least one phase
//   - every phase has an id and at least one step
//   - step ids are unique across the whole definition
//   - every verification spec declares a kind
//   - dependencies resolve to steps at or before the referencing step in
//     global step order (no forward references)
//   - the dependency graph is acyclic
//
// The returned error wraps one of the sentinel values in errors.go so callers
// can classify failures with errors.Is; the message always names the phase,
// step, or dependency that violated the rule.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: definition name is required", ErrMalformed)
	}
	if len(d.Phases) == 0 {
		return fmt.Errorf("%w: definition %q has no phases", ErrMalformed, d.Name)
	}

	phaseIDs := make(map[string]struct{}, len(d.Phases))
	for pi, phase := range d.Phases {
		if strings.TrimSpace(phase.ID) == "" {
			return fmt.Errorf("%w: phase[%d] has no id", ErrMalformed, pi)
		}
		if _, dup := phaseIDs[phase.ID]; dup {
			return fmt.Errorf("%w: duplicate phase id %q", ErrMalformed, phase.ID)
		}
		phaseIDs[phase.ID] = struct{}{}
		if len(phase.Steps) == 0 {
			return fmt.Errorf("%w: phase %q has no steps", ErrEmptyPhase, phase.ID)
		}
	}

	// Global step order: position of each step id across phase boundaries.
	order := make(map[string]int, d.StepCount())
	pos := 0
	for _, phase := range d.Phases {
		for _, step := range phase.Steps {
			if strings.TrimSpace(step.ID) == "" {
				return fmt.Errorf("%w: phase %q contains a step with no id", ErrMalformed, phase.ID)
			}
			if _, dup := order[step.ID]; dup {
				return fmt.Errorf("%w: step id %q appears more than once", ErrDuplicateStepID, step.ID)
			}
			if step.Verify != nil && strings.TrimSpace(string(step.Verify.Kind)) == "" {
				return fmt.Errorf("%w: step %q has a verification spec with no kind", ErrMalformed, step.ID)
			}
			order[step.ID] = pos
			pos++
		}
	}

	for _, phase := range d.Phases {
		for _, step := range phase.Steps {
			for _, dep := range step.DependsOn {
				if _, ok := order[dep]; !ok {
					return fmt.Errorf("%w: step %q depends on undefined step %q", ErrUnknownDependency, step.ID, dep)
				}
			}
		}
	}

	if cycle := findCycle(d); len(cycle) > 0 {
		return fmt.Errorf("%w: %s", ErrCyclicDependency, strings.Join(cycle, " -> "))
	}

	for _, phase := range d.Phases {
		for _, step := range phase.Steps {
			for _, dep := range step.DependsOn {
				if order[dep] > order[step.ID] {
					return fmt.Errorf("%w: step %q depends on %q, which appears later in step order", ErrUnknownDependency, step.ID, dep)
				}
			}
		}
	}

	return nil
}

// findCycle runs a depth-first traversal with a recursion-stack check and
// returns the first cycle found as a step-id path, or nil when the graph is
// acyclic. Only called on definitions whose dependencies all resolve.
func findCycle(d *Definition) []string {
	deps := make(map[string][]string, d.StepCount())
	for _, phase := range d.Phases {
		for _, step := range phase.Steps {
			deps[step.ID] = step.DependsOn
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(deps))

	var path []string
	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = visiting
		path = append(path, id)
		for _, dep := range deps[id] {
			switch state[dep] {
			case visiting:
				// Close the loop for the error message.
				for i, seen := range path {
					if seen == dep {
						return append(append([]string{}, path[i:]...), dep)
					}
				}
				return []string{id, dep, id}
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil
	}

	for _, id := range d.StepIDs() {
		if state[id] == unvisited {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
