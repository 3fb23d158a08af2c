// Package cli implements the phasegate command-line interface.
//
// Commands are thin: they parse arguments, call one operation on the
// engine controller, and render the resulting snapshot. All workflow
// semantics live in the engine package; all persistence in the store
// package. This keeps every command testable by swapping the [App]
// collaborators.
//
// Key types:
//   - [App] holds the wired application dependencies commands run against
//   - [ExitError] carries a shell exit code out of a Cobra RunE function
//
// Exit codes follow a fixed contract so operators can script against
// them: 0 success, 1 general failure (including unknown definitions or
// instances), 2 operation refused by the instance's current state, 3 a
// verification gate failed.
package cli

import (
	"encoding/json"

	"phasegate/internal/config"
	"phasegate/internal/definition"
	"phasegate/internal/engine"
	"phasegate/internal/output"
	"phasegate/internal/store"
	"phasegate/internal/verify"
)

// App holds the application dependencies that commands operate on.
//
// Production code builds one with [NewApp]; tests construct the struct
// directly with a temp-dir store and a stub verifier.
type App struct {
	// Config is the loaded application configuration.
	Config *config.Config

	// Store persists workflow instance records.
	Store *store.Store

	// Controller executes workflow operations against the store.
	Controller *engine.Controller

	// Printer renders styled terminal output.
	Printer *output.Printer

	// jsonOutput mirrors the persistent --json flag.
	jsonOutput bool
}

// NewApp loads configuration and wires the full application stack.
func NewApp() (*App, error) {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		return nil, err
	}
	return NewAppWithConfig(cfg), nil
}

// NewAppWithConfig wires the application stack from an explicit config.
func NewAppWithConfig(cfg *config.Config) *App {
	st := store.NewStore(cfg.State.Dir)

	ctrl := engine.NewController(
		st,
		verify.NewEngine(cfg.Verify.Timeout),
		DirectorySource{Dir: cfg.State.WorkflowsDir},
	)
	ctrl.SetWorkDir(cfg.Verify.WorkDir)

	return &App{
		Config:     cfg,
		Store:      st,
		Controller: ctrl,
		Printer:    output.NewPrinter(),
	}
}

// DirectorySource resolves instance definition references against a
// workflows directory. It implements [engine.DefinitionSource].
type DirectorySource struct {
	// Dir is the workflows directory; empty means the conventional
	// .phasegate/workflows.
	Dir string
}

// Get loads the definition file named by ref from the directory.
func (s DirectorySource) Get(ref definition.Ref) (*definition.Definition, error) {
	return definition.Resolve(s.Dir, ref.Name)
}

// printJSON writes v as indented JSON through the app printer.
func (a *App) printJSON(v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	a.Printer.Println(string(payload))
	return nil
}
