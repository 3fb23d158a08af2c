package cli

import (
	"github.com/spf13/cobra"
)

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status [instance-id]",
		Short: "Show where the workflow stands",
		Long: `Show the current position, step states, and recommended next action
for an instance without changing anything.

The output is a session handoff: everything a fresh operator (or a
fresh automation session) needs to carry on. Use --json for the
machine-readable form.

Example:
  phasegate status
  phasegate status release-1a2b3c4d --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			snap, err := app.Controller.Status(instanceArg(args))
			if err != nil {
				return wrapExit(err)
			}
			return app.renderSnapshot(snap)
		},
	}
}
