// Package verify evaluates the verification gates attached to workflow steps.
//
// The engine holds a registry mapping check kinds to [Handler] backends and
// dispatches purely on the spec's kind; it never special-cases a backend's
// behavior, so new check kinds are additive. Every evaluation happens exactly
// once per call under a mandatory timeout — retry policy belongs to the
// caller, not the engine.
//
// Key types:
//   - [Engine] - Registry plus single-shot evaluation with timeout
//   - [Handler] - The backend invocation contract
//   - [Result] - passed / failed / inconclusive plus reason and prompt
//   - [ExecutionContext] - The environment handed to backends
//
// A backend that needs a human decision returns an error built with
// [AwaitAttestation]; the engine maps it to an inconclusive result carrying
// the attestation prompt. Backend failures (unreachable handler, malformed
// parameters, timeouts) also surface as inconclusive — never silently as
// passed.
package verify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"phasegate/internal/definition"
)

// Outcome classifies a verification result.
type Outcome string

const (
	// OutcomePassed means the gate is satisfied and the step may complete.
	OutcomePassed Outcome = "passed"

	// OutcomeFailed means the gate rejected the step's work.
	OutcomeFailed Outcome = "failed"

	// OutcomeInconclusive means the gate could not decide: the backend
	// errored, timed out, or deferred to a human attestation.
	OutcomeInconclusive Outcome = "inconclusive"
)

// Result is the outcome of evaluating one verification spec.
//
// Reason explains failed and inconclusive outcomes (and may carry backend
// detail for passed ones). Prompt is set only when the backend deferred to a
// human via [AwaitAttestation]; callers resolve such results through the
// controller's Attest operation.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	Prompt  string  `json:"prompt,omitempty"`
}

// AwaitingAttestation reports whether this result can only be resolved by an
// explicit attestation.
func (r Result) AwaitingAttestation() bool {
	return r.Outcome == OutcomeInconclusive && r.Prompt != ""
}

// ErrAwaitingAttestation marks backend errors that mean "a human must decide",
// as opposed to infrastructure failures. Match with errors.Is; construct with
// [AwaitAttestation].
var ErrAwaitingAttestation = errors.New("awaiting attestation")

// AttestationError carries the prompt shown to the operator when a backend
// defers its verdict. It unwraps to [ErrAwaitingAttestation].
type AttestationError struct {
	Prompt string
}

func (e *AttestationError) Error() string {
	return "awaiting attestation: " + e.Prompt
}

func (e *AttestationError) Unwrap() error {
	return ErrAwaitingAttestation
}

// AwaitAttestation builds the error a backend returns when only a human can
// turn its check into a pass or fail.
func AwaitAttestation(prompt string) error {
	return &AttestationError{Prompt: prompt}
}

// ExecutionContext describes the environment a backend invocation runs in.
// All fields are informational for backends; the engine never interprets them.
type ExecutionContext struct {
	// WorkDir is the working tree the instance operates in. Command backends
	// run there; resource backends resolve relative paths against it.
	WorkDir string

	// InstanceID and StepID identify what is being verified, for backends
	// that record evidence or build prompts.
	InstanceID string
	StepID     string

	// Env optionally overrides the process environment for command backends.
	// Nil means inherit.
	Env []string
}

// Handler is the abstract invocation contract for verification backends.
//
// The engine translates the return triple uniformly: err != nil becomes
// inconclusive (with [AwaitAttestation] errors carrying a prompt), ok == false
// becomes failed with detail as the reason, ok == true becomes passed.
// Handlers own their retries; the engine invokes once per evaluation.
type Handler interface {
	Invoke(ctx context.Context, kind string, params map[string]any, env ExecutionContext) (ok bool, detail string, err error)
}

// HandlerFunc adapts a plain function to the [Handler] interface.
type HandlerFunc func(ctx context.Context, kind string, params map[string]any, env ExecutionContext) (bool, string, error)

// Invoke implements [Handler].
func (f HandlerFunc) Invoke(ctx context.Context, kind string, params map[string]any, env ExecutionContext) (bool, string, error) {
	return f(ctx, kind, params, env)
}

// DefaultTimeout bounds a single backend invocation when the caller does not
// configure one. Command checks that legitimately run longer should raise the
// verify timeout in the configuration.
const DefaultTimeout = 2 * time.Minute

// Engine dispatches verification specs to registered backends.
//
// Create with [NewEngine], which installs the builtin backends for the
// command, resource-check, interactive-check, and manual kinds. Additional
// kinds are added with [Engine.Register].
type Engine struct {
	handlers map[definition.CheckKind]Handler
	timeout  time.Duration
}

// NewEngine creates an engine with the builtin backends registered and the
// given per-evaluation timeout. A non-positive timeout falls back to
// [DefaultTimeout].
func NewEngine(timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e := &Engine{
		handlers: make(map[definition.CheckKind]Handler),
		timeout:  timeout,
	}
	e.Register(definition.CheckCommand, &CommandHandler{})
	e.Register(definition.CheckResource, &ResourceHandler{})
	e.Register(definition.CheckInteractive, &AttestHandler{DefaultPrompt: "confirm the step behaves as expected"})
	e.Register(definition.CheckManual, &AttestHandler{DefaultPrompt: "confirm this step was completed as described"})
	return e
}

// Register installs (or replaces) the backend for a check kind.
func (e *Engine) Register(kind definition.CheckKind, h Handler) {
	e.handlers[kind] = h
}

// Kinds returns the registered check kinds in sorted order.
func (e *Engine) Kinds() []string {
	kinds := make([]string, 0, len(e.handlers))
	for kind := range e.handlers {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	return kinds
}

// Supports reports whether a backend is registered for the given kind.
func (e *Engine) Supports(kind definition.CheckKind) bool {
	_, ok := e.handlers[kind]
	return ok
}

// Evaluate runs the spec's backend once and maps its verdict to a [Result].
//
// The invocation runs under the engine's timeout; hitting it yields an
// inconclusive result with a timeout reason. An unregistered kind is treated
// like an unreachable backend: inconclusive, never silently passed.
func (e *Engine) Evaluate(ctx context.Context, spec definition.VerificationSpec, env ExecutionContext) Result {
	handler, ok := e.handlers[spec.Kind]
	if !ok {
		return Result{
			Outcome: OutcomeInconclusive,
			Reason:  fmt.Sprintf("no verification backend registered for kind %q", spec.Kind),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	passed, detail, err := handler.Invoke(ctx, string(spec.Kind), spec.Params, env)
	if err != nil {
		var attest *AttestationError
		if errors.As(err, &attest) {
			return Result{
				Outcome: OutcomeInconclusive,
				Reason:  "awaiting attestation",
				Prompt:  attest.Prompt,
			}
		}
		if ctx.Err() != nil {
			return Result{
				Outcome: OutcomeInconclusive,
				Reason:  fmt.Sprintf("%s check timed out after %s: %v", spec.Kind, e.timeout, err),
			}
		}
		return Result{
			Outcome: OutcomeInconclusive,
			Reason:  fmt.Sprintf("%s backend error: %v", spec.Kind, err),
		}
	}
	if !passed {
		return Result{Outcome: OutcomeFailed, Reason: detail}
	}
	return Result{Outcome: OutcomePassed, Reason: detail}
}
