package engine

import (
	"time"

	"phasegate/internal/definition"
	"phasegate/internal/store"
	"phasegate/internal/verify"
)

// decisionTail is how many trailing decision-log entries a snapshot carries.
const decisionTail = 5

// NextAction tells the operator what the instance needs next.
type NextAction string

const (
	// ActionRunStep means continue will process the current step.
	ActionRunStep NextAction = "run-step"

	// ActionAttest means the current step waits on a human verdict via
	// attest.
	ActionAttest NextAction = "attest"

	// ActionRetryOrAbort means the instance is blocked on a failed step.
	ActionRetryOrAbort NextAction = "retry-or-abort"

	// ActionDone means every step is settled and the instance completed.
	ActionDone NextAction = "done"

	// ActionAborted means the run was ended early and is immutable.
	ActionAborted NextAction = "aborted"
)

// StepInfo describes the current step: its definition fields joined with its
// execution record.
type StepInfo struct {
	ID           string
	Description  string
	Owner        string
	Phase        string
	Optional     bool
	Status       store.StepStatus
	Note         string
	Verification *store.VerificationRecord
}

// Snapshot is the full state picture returned by every controller operation.
// It is the one input the session reporter renders from.
type Snapshot struct {
	InstanceID string
	Definition definition.Ref
	Status     store.InstanceStatus

	PhaseIndex int
	StepIndex  int
	PhaseCount int
	TotalSteps int
	Counts     map[store.StepStatus]int

	// Current is the step at the instance position, nil once the position
	// moved past the final step.
	Current *StepInfo

	// Action is the derived next move; Prompt accompanies ActionAttest.
	Action NextAction
	Prompt string

	// Message is the one-line result of the operation that produced this
	// snapshot; empty for pure reads.
	Message string

	// Verification is the result of the verification performed by this call,
	// if the call performed one. Recorded outcomes of earlier calls live in
	// Current.Verification.
	Verification *verify.Result

	Artifacts []string
	Decisions []store.DecisionEntry
	UpdatedAt time.Time
}

// snapshot builds the state picture for an instance against its definition.
func snapshot(inst *store.WorkflowInstance, def *definition.Definition, message string, result *verify.Result) Snapshot {
	snap := Snapshot{
		InstanceID:   inst.ID,
		Definition:   inst.Definition,
		Status:       inst.Status,
		PhaseIndex:   inst.PhaseIndex,
		StepIndex:    inst.StepIndex,
		PhaseCount:   len(def.Phases),
		TotalSteps:   def.StepCount(),
		Counts:       inst.StepCounts(),
		Message:      message,
		Verification: result,
		Artifacts:    append([]string(nil), inst.Artifacts...),
		Decisions:    inst.LastDecisions(decisionTail),
		UpdatedAt:    inst.UpdatedAt,
	}

	if step, ok := def.StepAt(inst.PhaseIndex, inst.StepIndex); ok {
		phase, _ := def.PhaseAt(inst.PhaseIndex)
		rec := inst.Steps[step.ID]
		snap.Current = &StepInfo{
			ID:           step.ID,
			Description:  step.Description,
			Owner:        step.Owner,
			Phase:        phaseLabel(phase),
			Optional:     step.Optional,
			Status:       rec.Status,
			Note:         rec.Note,
			Verification: rec.Verification,
		}
	}

	snap.Action, snap.Prompt = deriveAction(inst, snap.Current)
	return snap
}

func phaseLabel(phase *definition.Phase) string {
	if phase == nil {
		return ""
	}
	if phase.Name != "" {
		return phase.Name
	}
	return phase.ID
}

// deriveAction maps instance status and the current step record to the next
// operator move.
func deriveAction(inst *store.WorkflowInstance, current *StepInfo) (NextAction, string) {
	switch inst.Status {
	case store.InstanceCompleted:
		return ActionDone, ""
	case store.InstanceAborted:
		return ActionAborted, ""
	case store.InstanceBlocked:
		return ActionRetryOrAbort, ""
	}
	if current != nil && current.Status == store.StepInProgress {
		if v := current.Verification; v != nil && v.Outcome == verify.OutcomeInconclusive && v.Prompt != "" {
			return ActionAttest, v.Prompt
		}
	}
	return ActionRunStep, ""
}
