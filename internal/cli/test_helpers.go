package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"phasegate/internal/config"
	"phasegate/internal/definition"
	"phasegate/internal/engine"
	"phasegate/internal/output"
	"phasegate/internal/store"
	"phasegate/internal/verify"
)

// MockVerifier is a canned verification engine for command tests.
type MockVerifier struct {
	// Results maps step ids to canned results. Steps without an entry pass.
	Results map[string]verify.Result

	// Calls records the step ids evaluated, in order.
	Calls []string
}

func (m *MockVerifier) Evaluate(ctx context.Context, spec definition.VerificationSpec, env verify.ExecutionContext) verify.Result {
	m.Calls = append(m.Calls, env.StepID)
	if res, ok := m.Results[env.StepID]; ok {
		return res
	}
	return verify.Result{Outcome: verify.OutcomePassed, Reason: "check passed"}
}

// releaseWorkflowYAML is the fixture most command tests run: an optional
// ungated step, a gated step depending on it, and a manually gated step
// in a second phase.
const releaseWorkflowYAML = `name: release
version: "1.0"
phases:
  - id: prepare
    name: Prepare
    steps:
      - id: draft-notes
        description: Draft the release notes
        optional: true
      - id: tag-build
        description: Tag the build
        depends_on: [draft-notes]
        verify:
          kind: command
          params:
            command: "true"
  - id: ship
    name: Ship
    steps:
      - id: publish
        description: Publish the artifacts
        depends_on: [tag-build]
        verify:
          kind: manual
          params:
            prompt: confirm the publish looks right
`

// testApp bundles a fully wired App over temp directories with the
// verification boundary stubbed out.
type testApp struct {
	*App
	Verifier *MockVerifier
	Out      *bytes.Buffer
}

// newTestApp wires an App against t.TempDir with deterministic instance
// ids and a MockVerifier in place of the real verification engine.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.State.Dir = filepath.Join(tmpDir, "state")
	cfg.State.WorkflowsDir = filepath.Join(tmpDir, "workflows")
	cfg.Verify.WorkDir = tmpDir

	st := store.NewStore(cfg.State.Dir, store.WithIDSuffix(sequentialSuffixes()))
	verifier := &MockVerifier{Results: map[string]verify.Result{}}
	ctrl := engine.NewController(st, verifier, DirectorySource{Dir: cfg.State.WorkflowsDir})
	ctrl.SetWorkDir(cfg.Verify.WorkDir)

	out := &bytes.Buffer{}
	app := &App{
		Config:     cfg,
		Store:      st,
		Controller: ctrl,
		Printer:    output.NewPrinterWithWriter(out),
	}

	writeWorkflowFile(t, cfg.State.WorkflowsDir, "release.yaml", releaseWorkflowYAML)

	return &testApp{App: app, Verifier: verifier, Out: out}
}

// writeWorkflowFile creates a definition file under the workflows directory.
func writeWorkflowFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create workflows directory: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write workflow file: %v", err)
	}
	return path
}

// executeCommand runs the root command against the app and returns
// cobra's own output stream (usage and errors) alongside the error.
func executeCommand(app *App, args ...string) (string, error) {
	rootCmd := NewRootCommand(app)
	outBuf := &bytes.Buffer{}
	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(outBuf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return outBuf.String(), err
}

// sequentialSuffixes returns deterministic instance id suffixes so test
// assertions can name ids like release-00000001.
func sequentialSuffixes() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%08d", n)
	}
}
