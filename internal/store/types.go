// Package store persists workflow instance records as JSON files in a state
// directory, one file per instance.
//
// The store is deliberately dumb: it creates, loads, saves, and enumerates
// records without interpreting execution state. All business transitions
// happen in the engine package, which is the record's sole writer. Saves are
// atomic (write to a temp file, rename over the target) so a reader never
// observes a partially written record.
//
// Key types:
//   - [Store] - Directory-rooted persistence with Create/Load/Save/FindActive/List
//   - [WorkflowInstance] - The persisted record for one workflow run
//   - [StepRecord] - Per-step status, timestamps, verification, and note
//   - [DecisionEntry] - One append-only decision log line
package store

import (
	"time"

	"phasegate/internal/definition"
	"phasegate/internal/verify"
)

// InstanceStatus is the overall execution state of a workflow instance.
type InstanceStatus string

const (
	// InstanceActive means the instance is in flight and continue may
	// process its current step.
	InstanceActive InstanceStatus = "active"

	// InstanceCompleted means every non-skipped step completed. Terminal.
	InstanceCompleted InstanceStatus = "completed"

	// InstanceAborted means a human ended the run early. Terminal.
	InstanceAborted InstanceStatus = "aborted"

	// InstanceBlocked means the current step failed verification. The
	// instance is recoverable via retry or abort.
	InstanceBlocked InstanceStatus = "blocked"
)

// IsValid reports whether the status is one of the known values.
func (s InstanceStatus) IsValid() bool {
	switch s {
	case InstanceActive, InstanceCompleted, InstanceAborted, InstanceBlocked:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceCompleted || s == InstanceAborted
}

// StepStatus is the execution state of a single step within an instance.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
	StepBlocked    StepStatus = "blocked"
)

// IsValid reports whether the status is one of the known values.
func (s StepStatus) IsValid() bool {
	switch s {
	case StepPending, StepInProgress, StepCompleted, StepFailed, StepSkipped, StepBlocked:
		return true
	}
	return false
}

// SatisfiesDependency reports whether a step in this status unblocks steps
// that depend on it. Skipped steps satisfy dependents exactly like completed
// ones; an optional step that was skipped never wedges the rest of the run.
func (s StepStatus) SatisfiesDependency() bool {
	return s == StepCompleted || s == StepSkipped
}

// VerificationRecord captures the most recent verification verdict for a
// step. Attested marks verdicts supplied by a human through attest rather
// than computed by a backend.
type VerificationRecord struct {
	Outcome  verify.Outcome `json:"outcome"`
	Reason   string         `json:"reason,omitempty"`
	Prompt   string         `json:"prompt,omitempty"`
	Attested bool           `json:"attested,omitempty"`
	At       time.Time      `json:"at"`
}

// StepRecord tracks one step's execution within an instance.
type StepRecord struct {
	Status       StepStatus          `json:"status"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	Verification *VerificationRecord `json:"verification,omitempty"`
	Note         string              `json:"note,omitempty"`
}

// DecisionEntry is one timestamped line in an instance's decision log. The
// log is append-only; entries are never rewritten or removed.
type DecisionEntry struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// WorkflowInstance is the persisted record of one workflow run.
//
// PhaseIndex and StepIndex locate the current step within the definition the
// record references; Steps holds one record per step id. Once Status turns
// terminal the record is kept for audit but never mutated again.
type WorkflowInstance struct {
	ID         string                `json:"id"`
	Definition definition.Ref        `json:"definition"`
	Status     InstanceStatus        `json:"status"`
	PhaseIndex int                   `json:"phase_index"`
	StepIndex  int                   `json:"step_index"`
	Steps      map[string]StepRecord `json:"steps"`
	Artifacts  []string              `json:"artifacts,omitempty"`
	Decisions  []DecisionEntry       `json:"decisions"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// AppendDecision adds one entry to the decision log.
func (i *WorkflowInstance) AppendDecision(at time.Time, text string) {
	i.Decisions = append(i.Decisions, DecisionEntry{At: at, Text: text})
}

// LastDecisions returns up to n most recent decision entries, oldest first.
func (i *WorkflowInstance) LastDecisions(n int) []DecisionEntry {
	if n <= 0 || len(i.Decisions) == 0 {
		return nil
	}
	if n > len(i.Decisions) {
		n = len(i.Decisions)
	}
	tail := i.Decisions[len(i.Decisions)-n:]
	out := make([]DecisionEntry, n)
	copy(out, tail)
	return out
}

// StepCounts tallies step records by status.
func (i *WorkflowInstance) StepCounts() map[StepStatus]int {
	counts := make(map[StepStatus]int, len(i.Steps))
	for _, rec := range i.Steps {
		counts[rec.Status]++
	}
	return counts
}
