package cli

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phasegate/internal/definition"
	"phasegate/internal/engine"
	"phasegate/internal/store"
	"phasegate/internal/verify"
)

const adhocWorkflowYAML = `name: adhoc
phases:
  - id: main
    steps:
      - id: only-step
        description: The single step
`

// TestStartCommand_CreatesInstance tests that start persists a fresh active instance
func TestStartCommand_CreatesInstance(t *testing.T) {
	ta := newTestApp(t)

	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)

	out := ta.Out.String()
	assert.Contains(t, out, "release-00000001")
	assert.Contains(t, out, "ACTIVE")
	assert.Contains(t, out, "draft-notes")

	inst, err := ta.Store.Load("release-00000001")
	require.NoError(t, err)
	assert.Equal(t, store.InstanceActive, inst.Status)
	assert.Len(t, inst.Steps, 3)
}

func TestStartCommand_UnknownDefinition(t *testing.T) {
	ta := newTestApp(t)

	_, err := executeCommand(ta.App, "start", "deploy")

	require.Error(t, err)
	code, ok := IsExitError(err)
	assert.True(t, ok, "error should be an ExitError")
	assert.Equal(t, 1, code)
	assert.True(t, errors.Is(err, definition.ErrDefinitionNotFound))
}

// TestStartCommand_RefusesSecondInstance tests the one-instance-per-definition rule
func TestStartCommand_RefusesSecondInstance(t *testing.T) {
	ta := newTestApp(t)

	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)

	_, err = executeCommand(ta.App, "start", "release")
	require.Error(t, err)
	code, ok := IsExitError(err)
	assert.True(t, ok)
	assert.Equal(t, 1, code)
	assert.True(t, errors.Is(err, store.ErrAmbiguousInstance))
	assert.Contains(t, err.Error(), "release-00000001")
}

func TestStartCommand_FromExplicitPath(t *testing.T) {
	ta := newTestApp(t)
	path := writeWorkflowFile(t, t.TempDir(), "adhoc.yaml", adhocWorkflowYAML)

	_, err := executeCommand(ta.App, "start", path)
	require.NoError(t, err)

	assert.Contains(t, ta.Out.String(), "adhoc-00000001")
}

// TestContinueCommand_AdvancesThroughWorkflow walks the fixture end to end:
// ungated step, passing command gate, passing manual gate.
func TestContinueCommand_AdvancesThroughWorkflow(t *testing.T) {
	ta := newTestApp(t)
	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := executeCommand(ta.App, "continue")
		require.NoError(t, err, "continue %d should succeed", i+1)
	}

	assert.Contains(t, ta.Out.String(), "workflow complete")
	assert.Equal(t, []string{"tag-build", "publish"}, ta.Verifier.Calls,
		"only gated steps reach the verifier")

	inst, err := ta.Store.Load("release-00000001")
	require.NoError(t, err)
	assert.Equal(t, store.InstanceCompleted, inst.Status)
	for id, rec := range inst.Steps {
		assert.Equal(t, store.StepCompleted, rec.Status, "step %s", id)
	}
}

// TestContinueCommand_FailedGateExitsThree tests the failure path: blocked
// instance, exit code 3, failure detail in the report.
func TestContinueCommand_FailedGateExitsThree(t *testing.T) {
	ta := newTestApp(t)
	ta.Verifier.Results["tag-build"] = verify.Result{
		Outcome: verify.OutcomeFailed,
		Reason:  "lint failed with 3 errors",
	}

	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)
	_, err = executeCommand(ta.App, "continue")
	require.NoError(t, err)

	_, err = executeCommand(ta.App, "continue")
	require.Error(t, err)
	code, ok := IsExitError(err)
	assert.True(t, ok, "error should be an ExitError")
	assert.Equal(t, 3, code)

	out := ta.Out.String()
	assert.Contains(t, out, "verification failed")
	assert.Contains(t, out, "lint failed with 3 errors")
	assert.Contains(t, out, "BLOCKED")
	assert.Contains(t, out, "retry")

	inst, err := ta.Store.Load("release-00000001")
	require.NoError(t, err)
	assert.Equal(t, store.InstanceBlocked, inst.Status)
}

func TestContinueCommand_AwaitingAttestation(t *testing.T) {
	ta := newTestApp(t)
	ta.Verifier.Results["publish"] = verify.Result{
		Outcome: verify.OutcomeInconclusive,
		Reason:  "awaiting attestation",
		Prompt:  "confirm the publish looks right",
	}

	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = executeCommand(ta.App, "continue")
		require.NoError(t, err)
	}

	out := ta.Out.String()
	assert.Contains(t, out, "attestation required")
	assert.Contains(t, out, "confirm the publish looks right")

	inst, err := ta.Store.Load("release-00000001")
	require.NoError(t, err)
	assert.Equal(t, store.InstanceActive, inst.Status)
	assert.Equal(t, store.StepInProgress, inst.Steps["publish"].Status)
}

func TestContinueCommand_NoActiveInstance(t *testing.T) {
	ta := newTestApp(t)

	_, err := executeCommand(ta.App, "continue")

	require.Error(t, err)
	code, ok := IsExitError(err)
	assert.True(t, ok)
	assert.Equal(t, 1, code)
	assert.True(t, errors.Is(err, store.ErrNoActiveInstance))
}

func TestAttestCommand_PassCompletesWorkflow(t *testing.T) {
	ta := newTestApp(t)
	ta.Verifier.Results["publish"] = verify.Result{
		Outcome: verify.OutcomeInconclusive,
		Reason:  "awaiting attestation",
		Prompt:  "confirm the publish looks right",
	}

	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = executeCommand(ta.App, "continue")
		require.NoError(t, err)
	}

	_, err = executeCommand(ta.App, "attest", "--pass", "--note", "dashboards look healthy")
	require.NoError(t, err)

	assert.Contains(t, ta.Out.String(), "COMPLETED")

	inst, err := ta.Store.Load("release-00000001")
	require.NoError(t, err)
	assert.Equal(t, store.InstanceCompleted, inst.Status)
	rec := inst.Steps["publish"]
	assert.Equal(t, store.StepCompleted, rec.Status)
	require.NotNil(t, rec.Verification)
	assert.True(t, rec.Verification.Attested)
	assert.Equal(t, "dashboards look healthy", rec.Verification.Reason)
}

func TestAttestCommand_FailBlocksInstance(t *testing.T) {
	ta := newTestApp(t)
	ta.Verifier.Results["publish"] = verify.Result{
		Outcome: verify.OutcomeInconclusive,
		Reason:  "awaiting attestation",
		Prompt:  "confirm the publish looks right",
	}

	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = executeCommand(ta.App, "continue")
		require.NoError(t, err)
	}

	_, err = executeCommand(ta.App, "attest", "--fail", "--note", "error rate spiked")
	require.Error(t, err)
	code, ok := IsExitError(err)
	assert.True(t, ok)
	assert.Equal(t, 3, code)

	inst, err := ta.Store.Load("release-00000001")
	require.NoError(t, err)
	assert.Equal(t, store.InstanceBlocked, inst.Status)
}

func TestAttestCommand_RequiresExactlyOneVerdict(t *testing.T) {
	ta := newTestApp(t)
	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)

	_, err = executeCommand(ta.App, "attest")
	require.Error(t, err)
	_, ok := IsExitError(err)
	assert.False(t, ok, "flag misuse is a usage error, not an exit-coded failure")
	assert.Contains(t, err.Error(), "--pass or --fail")

	_, err = executeCommand(ta.App, "attest", "--pass", "--fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--pass or --fail")
}

func TestAttestCommand_NotAwaiting(t *testing.T) {
	ta := newTestApp(t)
	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)

	_, err = executeCommand(ta.App, "attest", "--pass")

	require.Error(t, err)
	code, ok := IsExitError(err)
	assert.True(t, ok)
	assert.Equal(t, 2, code)
	assert.True(t, errors.Is(err, engine.ErrNotAwaitingAttestation))
}

// TestSkipCommand_SkipsOptionalStep tests that a skipped optional step
// records the note and satisfies the dependency of the next step.
func TestSkipCommand_SkipsOptionalStep(t *testing.T) {
	ta := newTestApp(t)
	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)

	_, err = executeCommand(ta.App, "skip", "--note", "notes not needed for a patch release")
	require.NoError(t, err)

	inst, err := ta.Store.Load("release-00000001")
	require.NoError(t, err)
	rec := inst.Steps["draft-notes"]
	assert.Equal(t, store.StepSkipped, rec.Status)
	assert.Equal(t, "notes not needed for a patch release", rec.Note)
	assert.Equal(t, 1, inst.StepIndex)

	// The dependent step runs even though its dependency was skipped.
	_, err = executeCommand(ta.App, "continue")
	require.NoError(t, err)
	inst, err = ta.Store.Load("release-00000001")
	require.NoError(t, err)
	assert.Equal(t, store.StepCompleted, inst.Steps["tag-build"].Status)
}

func TestSkipCommand_MandatoryStepRejected(t *testing.T) {
	ta := newTestApp(t)
	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)
	_, err = executeCommand(ta.App, "continue")
	require.NoError(t, err)

	_, err = executeCommand(ta.App, "skip")

	require.Error(t, err)
	code, ok := IsExitError(err)
	assert.True(t, ok)
	assert.Equal(t, 2, code)
	assert.True(t, errors.Is(err, engine.ErrStepNotOptional))
}

func TestAbortCommand_MarksAborted(t *testing.T) {
	ta := newTestApp(t)
	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)

	_, err = executeCommand(ta.App, "abort", "--note", "release postponed")
	require.NoError(t, err)

	assert.Contains(t, ta.Out.String(), "ABORTED")
	inst, err := ta.Store.Load("release-00000001")
	require.NoError(t, err)
	assert.Equal(t, store.InstanceAborted, inst.Status)

	// Abort is safe to re-run on a terminal instance.
	_, err = executeCommand(ta.App, "abort")
	assert.NoError(t, err)
}

func TestRetryCommand_ResetsFailedStep(t *testing.T) {
	ta := newTestApp(t)
	ta.Verifier.Results["tag-build"] = verify.Result{
		Outcome: verify.OutcomeFailed,
		Reason:  "lint failed",
	}

	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)
	_, err = executeCommand(ta.App, "continue")
	require.NoError(t, err)
	_, err = executeCommand(ta.App, "continue")
	require.Error(t, err)

	_, err = executeCommand(ta.App, "retry")
	require.NoError(t, err)

	inst, err := ta.Store.Load("release-00000001")
	require.NoError(t, err)
	assert.Equal(t, store.InstanceActive, inst.Status)
	assert.Equal(t, store.StepPending, inst.Steps["tag-build"].Status)

	// With the gate fixed, the retried step completes.
	delete(ta.Verifier.Results, "tag-build")
	_, err = executeCommand(ta.App, "continue")
	require.NoError(t, err)
	inst, err = ta.Store.Load("release-00000001")
	require.NoError(t, err)
	assert.Equal(t, store.StepCompleted, inst.Steps["tag-build"].Status)
}

func TestRetryCommand_RequiresBlockedInstance(t *testing.T) {
	ta := newTestApp(t)
	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)

	_, err = executeCommand(ta.App, "retry")

	require.Error(t, err)
	code, ok := IsExitError(err)
	assert.True(t, ok)
	assert.Equal(t, 2, code)
	assert.True(t, errors.Is(err, engine.ErrInstanceNotBlocked))
}

func TestArtifactCommand_AttachesReference(t *testing.T) {
	ta := newTestApp(t)
	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)

	_, err = executeCommand(ta.App, "artifact", "dist/release-2.4.1.tar.gz")
	require.NoError(t, err)

	assert.Contains(t, ta.Out.String(), "dist/release-2.4.1.tar.gz")
	inst, err := ta.Store.Load("release-00000001")
	require.NoError(t, err)
	assert.Equal(t, []string{"dist/release-2.4.1.tar.gz"}, inst.Artifacts)
}

func TestListCommand_ListsInstances(t *testing.T) {
	ta := newTestApp(t)
	writeWorkflowFile(t, ta.Config.State.WorkflowsDir, "hotfix.yaml", `name: hotfix
phases:
  - id: main
    steps:
      - id: apply-fix
`)

	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)
	_, err = executeCommand(ta.App, "start", "hotfix")
	require.NoError(t, err)

	_, err = executeCommand(ta.App, "list")
	require.NoError(t, err)

	out := ta.Out.String()
	assert.Contains(t, out, "release-00000001")
	assert.Contains(t, out, "hotfix-00000002")
}

func TestListCommand_EmptyState(t *testing.T) {
	ta := newTestApp(t)

	_, err := executeCommand(ta.App, "list")
	require.NoError(t, err)

	assert.Contains(t, ta.Out.String(), "no instances found")
}

func TestListCommand_JSON(t *testing.T) {
	ta := newTestApp(t)
	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)
	ta.Out.Reset()

	_, err = executeCommand(ta.App, "list", "--json")
	require.NoError(t, err)

	var summaries []store.Summary
	require.NoError(t, json.Unmarshal(ta.Out.Bytes(), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "release-00000001", summaries[0].ID)
	assert.Equal(t, store.InstanceActive, summaries[0].Status)
}

func TestStatusCommand_ShowsPosition(t *testing.T) {
	ta := newTestApp(t)
	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)
	_, err = executeCommand(ta.App, "continue")
	require.NoError(t, err)
	ta.Out.Reset()

	_, err = executeCommand(ta.App, "status")
	require.NoError(t, err)

	out := ta.Out.String()
	assert.Contains(t, out, "tag-build")
	assert.Contains(t, out, "phase 1/2")
	assert.Contains(t, out, "1 of 3 steps settled")
	assert.Contains(t, out, "phasegate continue")
}

func TestStatusCommand_JSONHandoff(t *testing.T) {
	ta := newTestApp(t)
	_, err := executeCommand(ta.App, "start", "release")
	require.NoError(t, err)
	ta.Out.Reset()

	_, err = executeCommand(ta.App, "status", "--json")
	require.NoError(t, err)

	var handoff map[string]any
	require.NoError(t, json.Unmarshal(ta.Out.Bytes(), &handoff))
	assert.Equal(t, "release-00000001", handoff["instance_id"])
	assert.Equal(t, "run-step", handoff["action"])
	assert.Equal(t, "draft-notes", handoff["current_step"])
}

func TestValidateCommand_ValidDefinition(t *testing.T) {
	ta := newTestApp(t)

	_, err := executeCommand(ta.App, "validate", "release")
	require.NoError(t, err)

	out := ta.Out.String()
	assert.Contains(t, out, "release@1.0")
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "2 phases, 3 steps (2 gated, 1 optional)")
}

func TestValidateCommand_InvalidDefinition(t *testing.T) {
	ta := newTestApp(t)
	writeWorkflowFile(t, ta.Config.State.WorkflowsDir, "broken.yaml", `name: broken
phases:
  - id: main
    steps:
      - id: step-one
      - id: step-one
`)

	_, err := executeCommand(ta.App, "validate", "broken")

	require.Error(t, err)
	code, ok := IsExitError(err)
	assert.True(t, ok)
	assert.Equal(t, 1, code)
	assert.True(t, errors.Is(err, definition.ErrDuplicateStepID))
}
