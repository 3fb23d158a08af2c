package cli

import (
	"github.com/spf13/cobra"

	"phasegate/internal/config"
	"phasegate/internal/engine"
	"phasegate/internal/output"
	"phasegate/internal/report"
	"phasegate/internal/verify"
)

// NewRootCommand creates the root phasegate command with all subcommands
// registered against the given app.
func NewRootCommand(app *App) *cobra.Command {
	if app.Config == nil {
		app.Config = config.DefaultConfig()
	}
	if app.Printer == nil {
		app.Printer = output.NewPrinter()
	}

	rootCmd := &cobra.Command{
		Use:   "phasegate",
		Short: "Deterministic, resumable workflow runner with verification gates",
		Long: `phasegate drives long-running operational workflows through their
phases one step at a time. Every transition is committed to a state
file before it is reported, so a run survives process restarts and a
later invocation picks up exactly where the last one stopped.

Steps advance only when their verification gate passes; failed gates
block the instance until an operator retries or aborts, and gates that
cannot decide on their own wait for an explicit attestation.

Exit codes:
  0  success
  1  general failure, including unknown definitions or instances
  2  operation refused by the instance's current state
  3  a verification gate failed`,
		// main prints errors itself so bare exit-code errors stay quiet.
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&app.jsonOutput, "json", app.Config.Output.JSON,
		"print machine-readable handoff payloads instead of styled summaries")

	rootCmd.AddCommand(
		newStartCommand(app),
		newContinueCommand(app),
		newStatusCommand(app),
		newAttestCommand(app),
		newRetryCommand(app),
		newSkipCommand(app),
		newAbortCommand(app),
		newArtifactCommand(app),
		newListCommand(app),
		newValidateCommand(app),
	)

	return rootCmd
}

// instanceArg extracts the optional trailing instance id argument.
func instanceArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// renderSnapshot prints the snapshot in the selected format and converts
// a failed verification into exit code 3. The failure is already part of
// the rendered output, so the returned ExitError carries no message.
func (a *App) renderSnapshot(snap engine.Snapshot) error {
	text, handoff := report.Render(snap)
	if a.jsonOutput {
		if err := a.printJSON(handoff); err != nil {
			return err
		}
	} else {
		a.Printer.Block(text)
	}

	if snap.Verification != nil && snap.Verification.Outcome == verify.OutcomeFailed {
		return NewExitError(exitVerification)
	}
	return nil
}
