package engine

import "errors"

// Transition-precondition errors. All of them are fatal to the call that
// raised them but leave the persisted record untouched, so the same call is
// safe to retry once the precondition is resolved.
var (
	// ErrDependencyNotSatisfied means the current step depends on steps that
	// are neither completed nor skipped.
	ErrDependencyNotSatisfied = errors.New("dependency not satisfied")

	// ErrStepNotOptional means skip was called on a mandatory step.
	ErrStepNotOptional = errors.New("step is not optional")

	// ErrStepNotPending means skip was called on a step that already started.
	ErrStepNotPending = errors.New("step is not pending")

	// ErrInstanceBlocked means continue was called while the instance is
	// blocked on a failed step; retry or abort are the ways forward.
	ErrInstanceBlocked = errors.New("instance is blocked")

	// ErrInstanceNotBlocked means retry was called on an instance that has
	// no failed step to reset.
	ErrInstanceNotBlocked = errors.New("instance is not blocked")

	// ErrInstanceTerminal means a mutating operation was called on a
	// completed or aborted instance.
	ErrInstanceTerminal = errors.New("instance already finished")

	// ErrNotAwaitingAttestation means attest was called while the current
	// step has no inconclusive verification waiting on a human verdict.
	ErrNotAwaitingAttestation = errors.New("step is not awaiting attestation")
)

// ErrDefinitionMismatch means the definition resolved for an instance no
// longer matches what the instance was created from (different version or a
// changed step layout). Deterministic resumption needs the original
// definition.
var ErrDefinitionMismatch = errors.New("definition does not match instance")
