package cli

import (
	"github.com/spf13/cobra"
)

func newContinueCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "continue [instance-id]",
		Short: "Advance the workflow by one step",
		Long: `Advance the instance by exactly one step: dependencies are checked,
the current step runs its verification gate, and the outcome is
committed to the state file before anything is reported.

Without an instance id, the single in-flight instance is used; when
several are in flight the id is required.

A passing gate completes the step and moves the cursor forward. A
failing gate records the failure and blocks the instance until retry or
abort (exit code 3). A gate that cannot decide on its own leaves the
step in progress, awaiting attestation. Running continue again on a
waiting step re-evaluates the gate and is otherwise a no-op.

Example:
  phasegate continue
  phasegate continue release-1a2b3c4d`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			snap, err := app.Controller.Continue(cmd.Context(), instanceArg(args))
			if err != nil {
				return wrapExit(err)
			}
			return app.renderSnapshot(snap)
		},
	}
}
