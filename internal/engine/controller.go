// Package engine drives workflow instances through their step machine.
//
// The [Controller] is the single writer of instance records: every public
// operation is one synchronous load → compute → save cycle, and every
// mutation is persisted before the operation returns success. Verification
// outcomes are first-class results carried in the returned [Snapshot], not
// errors; Go errors are reserved for lookups, violated preconditions, and
// persistence failures.
//
// Step machine: pending → in_progress → completed or failed, with skipped
// reachable only from pending on optional steps. Instance machine: active →
// completed, aborted, or blocked; completed and aborted are terminal,
// blocked is recoverable through [Controller.Retry] or [Controller.Abort].
//
// Key types:
//   - [Controller] - Start/Continue/Skip/Abort/Attest/Retry/Status operations
//   - [Snapshot] - Full state picture returned by every operation
//   - [InstanceStore], [Verifier], [DefinitionSource] - Injected dependencies
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"phasegate/internal/definition"
	"phasegate/internal/store"
	"phasegate/internal/verify"
)

// InstanceStore is the persistence surface the controller drives. The
// [store.Store] type implements this interface.
type InstanceStore interface {
	Create(def *definition.Definition) (*store.WorkflowInstance, error)
	Load(id string) (*store.WorkflowInstance, error)
	Save(inst *store.WorkflowInstance) error
	FindActive(definitionName string) (*store.WorkflowInstance, error)
}

// Verifier evaluates one verification spec. The [verify.Engine] type
// implements this interface.
type Verifier interface {
	Evaluate(ctx context.Context, spec definition.VerificationSpec, env verify.ExecutionContext) verify.Result
}

// DefinitionSource resolves a definition reference back to the validated
// definition an instance was created from.
type DefinitionSource interface {
	Get(ref definition.Ref) (*definition.Definition, error)
}

// Controller owns all business transitions on workflow instances.
//
// Create with [NewController]. The controller assumes single-writer usage;
// the store's atomic save protects against crashes, not concurrent writers.
type Controller struct {
	store    InstanceStore
	verifier Verifier
	defs     DefinitionSource
	workDir  string
	now      func() time.Time
}

// NewController creates a controller with the required dependencies.
func NewController(st InstanceStore, verifier Verifier, defs DefinitionSource) *Controller {
	return &Controller{
		store:    st,
		verifier: verifier,
		defs:     defs,
		workDir:  ".",
		now:      time.Now,
	}
}

// SetWorkDir configures the working tree handed to verification backends.
func (c *Controller) SetWorkDir(dir string) {
	if dir != "" {
		c.workDir = dir
	}
}

// SetClock overrides the controller's time source, used by tests to pin
// step timestamps and decision-log entries.
func (c *Controller) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Start creates a fresh instance for the definition and returns its first
// instruction.
//
// At most one instance per definition may be in flight: when one already is,
// Start refuses with an error wrapping [store.ErrAmbiguousInstance] rather
// than silently creating a sibling.
func (c *Controller) Start(def *definition.Definition) (Snapshot, error) {
	if def == nil {
		return Snapshot{}, fmt.Errorf("start: nil definition")
	}

	existing, err := c.store.FindActive(def.Name)
	if err == nil {
		return Snapshot{}, fmt.Errorf(
			"%w: %s is already in flight for definition %q; continue, abort, or finish it before starting another",
			store.ErrAmbiguousInstance, existing.ID, def.Name)
	}
	if !errors.Is(err, store.ErrNoActiveInstance) {
		return Snapshot{}, err
	}

	inst, err := c.store.Create(def)
	if err != nil {
		return Snapshot{}, err
	}
	msg := fmt.Sprintf("instance %s created from definition %s", inst.ID, def.Ref())
	return snapshot(inst, def, msg, nil), nil
}

// Continue processes exactly one step of the resolved instance.
//
// A pending current step first has its dependencies re-checked; unmet
// dependencies reject the call with [ErrDependencyNotSatisfied] and leave
// the record untouched. Once the step is in progress its verification gate
// decides what happens next: passed completes the step and advances the
// position, failed marks the step failed and blocks the instance, and
// inconclusive leaves the step in progress — with an attestation prompt when
// a human verdict is what is missing. Steps without a gate complete on
// sight. Calling Continue again with nothing changed externally re-evaluates
// and returns the same instruction.
func (c *Controller) Continue(ctx context.Context, instanceID string) (Snapshot, error) {
	inst, def, err := c.resolve(instanceID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := c.requireActive(inst); err != nil {
		return Snapshot{}, err
	}

	step, ok := def.StepAt(inst.PhaseIndex, inst.StepIndex)
	if !ok {
		return Snapshot{}, fmt.Errorf("instance %s: position %d/%d is outside definition %s",
			inst.ID, inst.PhaseIndex, inst.StepIndex, inst.Definition)
	}
	rec := inst.Steps[step.ID]

	if rec.Status == store.StepPending {
		if unmet := unmetDependencies(inst, step); len(unmet) > 0 {
			return Snapshot{}, fmt.Errorf("%w: step %q waits on %s",
				ErrDependencyNotSatisfied, step.ID, strings.Join(unmet, ", "))
		}
		now := c.now()
		rec.Status = store.StepInProgress
		rec.StartedAt = &now
		inst.Steps[step.ID] = rec
		if err := c.store.Save(inst); err != nil {
			return Snapshot{}, err
		}
	}

	if step.Verify == nil {
		c.completeStep(inst, def, step.ID, nil)
		if err := c.store.Save(inst); err != nil {
			return Snapshot{}, err
		}
		msg := fmt.Sprintf("step %s completed (no verification gate)", step.ID)
		return snapshot(inst, def, c.completionMessage(inst, msg), nil), nil
	}

	result := c.verifier.Evaluate(ctx, *step.Verify, verify.ExecutionContext{
		WorkDir:    c.workDir,
		InstanceID: inst.ID,
		StepID:     step.ID,
	})
	now := c.now()

	switch result.Outcome {
	case verify.OutcomePassed:
		c.completeStep(inst, def, step.ID, &store.VerificationRecord{
			Outcome: verify.OutcomePassed,
			Reason:  result.Reason,
			At:      now,
		})
		if err := c.store.Save(inst); err != nil {
			return Snapshot{}, err
		}
		msg := fmt.Sprintf("step %s completed: verification passed", step.ID)
		return snapshot(inst, def, c.completionMessage(inst, msg), &result), nil

	case verify.OutcomeFailed:
		c.failStep(inst, step.ID, &store.VerificationRecord{
			Outcome: verify.OutcomeFailed,
			Reason:  result.Reason,
			At:      now,
		}, result.Reason)
		if err := c.store.Save(inst); err != nil {
			return Snapshot{}, err
		}
		msg := fmt.Sprintf("step %s failed verification: %s", step.ID, result.Reason)
		return snapshot(inst, def, msg, &result), nil

	default: // inconclusive
		rec = inst.Steps[step.ID]
		rec.Verification = &store.VerificationRecord{
			Outcome: verify.OutcomeInconclusive,
			Reason:  result.Reason,
			Prompt:  result.Prompt,
			At:      now,
		}
		inst.Steps[step.ID] = rec
		if err := c.store.Save(inst); err != nil {
			return Snapshot{}, err
		}
		msg := fmt.Sprintf("verification inconclusive for step %s: %s", step.ID, result.Reason)
		if result.AwaitingAttestation() {
			msg = fmt.Sprintf("step %s awaits attestation", step.ID)
		}
		return snapshot(inst, def, msg, &result), nil
	}
}

// Skip marks the current step skipped and advances past it.
//
// Only pending, optional steps may be skipped; a mandatory step rejects with
// [ErrStepNotOptional] and a started one with [ErrStepNotPending], both
// leaving every record unchanged. A skipped step satisfies its dependents
// exactly as a completed one would.
func (c *Controller) Skip(instanceID, note string) (Snapshot, error) {
	inst, def, err := c.resolve(instanceID)
	if err != nil {
		return Snapshot{}, err
	}
	if inst.Status.Terminal() {
		return Snapshot{}, c.terminalErr(inst)
	}

	step, ok := def.StepAt(inst.PhaseIndex, inst.StepIndex)
	if !ok {
		return Snapshot{}, fmt.Errorf("instance %s: position %d/%d is outside definition %s",
			inst.ID, inst.PhaseIndex, inst.StepIndex, inst.Definition)
	}
	rec := inst.Steps[step.ID]
	if !step.Optional {
		return Snapshot{}, fmt.Errorf("%w: step %q is mandatory and must run", ErrStepNotOptional, step.ID)
	}
	if rec.Status != store.StepPending {
		return Snapshot{}, fmt.Errorf("%w: step %q is %s", ErrStepNotPending, step.ID, rec.Status)
	}

	now := c.now()
	rec.Status = store.StepSkipped
	rec.CompletedAt = &now
	if note != "" {
		rec.Note = note
	}
	inst.Steps[step.ID] = rec

	reason := note
	if reason == "" {
		reason = "optional step skipped by operator"
	}
	inst.AppendDecision(now, fmt.Sprintf("step %s skipped: %s", step.ID, reason))

	advance(inst, def)
	if inst.Status == store.InstanceCompleted {
		c.recordCompletion(inst)
	}
	if err := c.store.Save(inst); err != nil {
		return Snapshot{}, err
	}
	msg := fmt.Sprintf("step %s skipped", step.ID)
	return snapshot(inst, def, c.completionMessage(inst, msg), nil), nil
}

// Abort ends the run early from any non-terminal status, appending one
// decision entry that sums up how far the instance got. Aborting an already
// finished instance is a no-op that returns the existing state.
func (c *Controller) Abort(instanceID, note string) (Snapshot, error) {
	inst, def, err := c.resolve(instanceID)
	if err != nil {
		return Snapshot{}, err
	}
	if inst.Status.Terminal() {
		return snapshot(inst, def, fmt.Sprintf("instance %s is already %s", inst.ID, inst.Status), nil), nil
	}

	counts := inst.StepCounts()
	summary := fmt.Sprintf("instance aborted with %d of %d steps completed",
		counts[store.StepCompleted], def.StepCount())
	if note != "" {
		summary += ": " + note
	}
	inst.Status = store.InstanceAborted
	inst.AppendDecision(c.now(), summary)

	if err := c.store.Save(inst); err != nil {
		return Snapshot{}, err
	}
	return snapshot(inst, def, fmt.Sprintf("instance %s aborted", inst.ID), nil), nil
}

// Attest resolves an inconclusive verification with a human verdict.
//
// The current step must be in progress with a verification waiting on
// attestation, otherwise the call rejects with [ErrNotAwaitingAttestation].
// A passing verdict completes the step and advances; a failing one marks the
// step failed and blocks the instance. Either way the verdict is recorded
// with an attested marker and the note kept verbatim.
func (c *Controller) Attest(instanceID string, pass bool, note string) (Snapshot, error) {
	inst, def, err := c.resolve(instanceID)
	if err != nil {
		return Snapshot{}, err
	}
	if inst.Status.Terminal() {
		return Snapshot{}, c.terminalErr(inst)
	}
	if inst.Status == store.InstanceBlocked {
		return Snapshot{}, fmt.Errorf("%w: instance %s is blocked; retry or abort it", ErrNotAwaitingAttestation, inst.ID)
	}

	step, ok := def.StepAt(inst.PhaseIndex, inst.StepIndex)
	if !ok {
		return Snapshot{}, fmt.Errorf("instance %s: position %d/%d is outside definition %s",
			inst.ID, inst.PhaseIndex, inst.StepIndex, inst.Definition)
	}
	rec := inst.Steps[step.ID]
	awaiting := rec.Status == store.StepInProgress &&
		rec.Verification != nil &&
		rec.Verification.Outcome == verify.OutcomeInconclusive &&
		rec.Verification.Prompt != ""
	if !awaiting {
		return Snapshot{}, fmt.Errorf("%w: step %q is %s; run continue first",
			ErrNotAwaitingAttestation, step.ID, rec.Status)
	}

	now := c.now()
	reason := note
	if reason == "" {
		reason = "attested by operator"
	}

	if pass {
		c.completeStep(inst, def, step.ID, &store.VerificationRecord{
			Outcome:  verify.OutcomePassed,
			Reason:   reason,
			Attested: true,
			At:       now,
		})
		inst.AppendDecision(now, fmt.Sprintf("step %s attested as passed: %s", step.ID, reason))
		if err := c.store.Save(inst); err != nil {
			return Snapshot{}, err
		}
		msg := fmt.Sprintf("step %s attested as passed", step.ID)
		result := verify.Result{Outcome: verify.OutcomePassed, Reason: reason}
		return snapshot(inst, def, c.completionMessage(inst, msg), &result), nil
	}

	c.failStep(inst, step.ID, &store.VerificationRecord{
		Outcome:  verify.OutcomeFailed,
		Reason:   reason,
		Attested: true,
		At:       now,
	}, reason)
	if err := c.store.Save(inst); err != nil {
		return Snapshot{}, err
	}
	result := verify.Result{Outcome: verify.OutcomeFailed, Reason: reason}
	return snapshot(inst, def, fmt.Sprintf("step %s attested as failed", step.ID), &result), nil
}

// Retry recovers a blocked instance: the failed current step goes back to
// pending with its verification cleared (the note stays for the audit trail)
// and the instance returns to active, ready for another Continue.
func (c *Controller) Retry(instanceID string) (Snapshot, error) {
	inst, def, err := c.resolve(instanceID)
	if err != nil {
		return Snapshot{}, err
	}
	if inst.Status.Terminal() {
		return Snapshot{}, c.terminalErr(inst)
	}
	if inst.Status != store.InstanceBlocked {
		return Snapshot{}, fmt.Errorf("%w: instance %s is %s; retry only applies after a failed verification",
			ErrInstanceNotBlocked, inst.ID, inst.Status)
	}

	step, ok := def.StepAt(inst.PhaseIndex, inst.StepIndex)
	if !ok {
		return Snapshot{}, fmt.Errorf("instance %s: position %d/%d is outside definition %s",
			inst.ID, inst.PhaseIndex, inst.StepIndex, inst.Definition)
	}

	rec := inst.Steps[step.ID]
	rec.Status = store.StepPending
	rec.StartedAt = nil
	rec.CompletedAt = nil
	rec.Verification = nil
	inst.Steps[step.ID] = rec

	inst.Status = store.InstanceActive
	inst.AppendDecision(c.now(), fmt.Sprintf("step %s reset for retry after failed verification", step.ID))

	if err := c.store.Save(inst); err != nil {
		return Snapshot{}, err
	}
	msg := fmt.Sprintf("step %s reset to pending; run continue to retry", step.ID)
	return snapshot(inst, def, msg, nil), nil
}

// AttachArtifact appends a free-form artifact reference to a non-terminal
// instance and records the attachment in the decision log.
func (c *Controller) AttachArtifact(instanceID, ref string) (Snapshot, error) {
	if strings.TrimSpace(ref) == "" {
		return Snapshot{}, fmt.Errorf("artifact reference is empty")
	}
	inst, def, err := c.resolve(instanceID)
	if err != nil {
		return Snapshot{}, err
	}
	if inst.Status.Terminal() {
		return Snapshot{}, c.terminalErr(inst)
	}

	inst.Artifacts = append(inst.Artifacts, ref)
	inst.AppendDecision(c.now(), fmt.Sprintf("artifact attached: %s", ref))

	if err := c.store.Save(inst); err != nil {
		return Snapshot{}, err
	}
	return snapshot(inst, def, fmt.Sprintf("artifact recorded: %s", ref), nil), nil
}

// Status returns the state picture of the resolved instance without mutating
// anything.
func (c *Controller) Status(instanceID string) (Snapshot, error) {
	inst, def, err := c.resolve(instanceID)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot(inst, def, "", nil), nil
}

// resolve loads the instance (explicit id, or the single in-flight one) and
// the definition it was created from, verifying the definition still matches
// the record.
func (c *Controller) resolve(instanceID string) (*store.WorkflowInstance, *definition.Definition, error) {
	var inst *store.WorkflowInstance
	var err error
	if instanceID != "" {
		inst, err = c.store.Load(instanceID)
	} else {
		inst, err = c.store.FindActive("")
	}
	if err != nil {
		return nil, nil, err
	}

	def, err := c.defs.Get(inst.Definition)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving definition %s for instance %s: %w", inst.Definition, inst.ID, err)
	}
	if err := checkCompatible(def, inst); err != nil {
		return nil, nil, err
	}
	return inst, def, nil
}

// checkCompatible rejects resumption against a definition that drifted from
// the one the record was created with; positions and step records would no
// longer line up.
func checkCompatible(def *definition.Definition, inst *store.WorkflowInstance) error {
	if def.Ref() != inst.Definition {
		return fmt.Errorf("%w: instance %s was created from %s but the loaded definition is %s",
			ErrDefinitionMismatch, inst.ID, inst.Definition, def.Ref())
	}
	ids := def.StepIDs()
	if len(ids) != len(inst.Steps) {
		return fmt.Errorf("%w: definition %s has %d steps but instance %s recorded %d",
			ErrDefinitionMismatch, def.Ref(), len(ids), inst.ID, len(inst.Steps))
	}
	for _, id := range ids {
		if _, ok := inst.Steps[id]; !ok {
			return fmt.Errorf("%w: instance %s has no record for step %q",
				ErrDefinitionMismatch, inst.ID, id)
		}
	}
	return nil
}

func (c *Controller) requireActive(inst *store.WorkflowInstance) error {
	switch inst.Status {
	case store.InstanceActive:
		return nil
	case store.InstanceBlocked:
		return fmt.Errorf("%w: instance %s has a failed step; run retry to re-attempt it or abort to end the run",
			ErrInstanceBlocked, inst.ID)
	default:
		return c.terminalErr(inst)
	}
}

func (c *Controller) terminalErr(inst *store.WorkflowInstance) error {
	return fmt.Errorf("%w: instance %s is %s and can no longer change", ErrInstanceTerminal, inst.ID, inst.Status)
}

// unmetDependencies lists dependency steps that neither completed nor were
// skipped, sorted for stable messages.
func unmetDependencies(inst *store.WorkflowInstance, step *definition.Step) []string {
	var unmet []string
	for _, depID := range step.DependsOn {
		if !inst.Steps[depID].Status.SatisfiesDependency() {
			unmet = append(unmet, depID)
		}
	}
	sort.Strings(unmet)
	return unmet
}

// completeStep marks the current step completed and advances the position.
func (c *Controller) completeStep(inst *store.WorkflowInstance, def *definition.Definition, stepID string, verification *store.VerificationRecord) {
	now := c.now()
	rec := inst.Steps[stepID]
	rec.Status = store.StepCompleted
	rec.CompletedAt = &now
	if verification != nil {
		rec.Verification = verification
	}
	inst.Steps[stepID] = rec

	advance(inst, def)
	if inst.Status == store.InstanceCompleted {
		c.recordCompletion(inst)
	}
}

// failStep marks the current step failed and blocks the instance.
func (c *Controller) failStep(inst *store.WorkflowInstance, stepID string, verification *store.VerificationRecord, reason string) {
	now := c.now()
	rec := inst.Steps[stepID]
	rec.Status = store.StepFailed
	rec.CompletedAt = &now
	rec.Verification = verification
	if reason != "" {
		rec.Note = reason
	}
	inst.Steps[stepID] = rec

	inst.Status = store.InstanceBlocked
	inst.AppendDecision(now, fmt.Sprintf("verification failed for step %s: %s; instance blocked", stepID, reason))
}

// recordCompletion appends the closing decision entry when the position
// moves past the final step.
func (c *Controller) recordCompletion(inst *store.WorkflowInstance) {
	counts := inst.StepCounts()
	inst.AppendDecision(c.now(), fmt.Sprintf("workflow completed: %d steps completed, %d skipped",
		counts[store.StepCompleted], counts[store.StepSkipped]))
}

// completionMessage swaps the step-level message for the completion line
// when that step was the last one.
func (c *Controller) completionMessage(inst *store.WorkflowInstance, stepMsg string) string {
	if inst.Status == store.InstanceCompleted {
		return fmt.Sprintf("%s; workflow completed", stepMsg)
	}
	return stepMsg
}

// advance moves the position to the next step, wrapping into the next phase
// when the current one is exhausted. Moving past the final step of the final
// phase completes the instance.
func advance(inst *store.WorkflowInstance, def *definition.Definition) {
	inst.StepIndex++
	for inst.PhaseIndex < len(def.Phases) && inst.StepIndex >= len(def.Phases[inst.PhaseIndex].Steps) {
		inst.PhaseIndex++
		inst.StepIndex = 0
	}
	if inst.PhaseIndex >= len(def.Phases) {
		inst.Status = store.InstanceCompleted
	}
}

