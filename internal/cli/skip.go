package cli

import (
	"github.com/spf13/cobra"
)

func newSkipCommand(app *App) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "skip [instance-id]",
		Short: "Skip the current optional step",
		Long: `Skip the current step and move the cursor forward without running its
verification gate.

Only optional steps that have not started can be skipped; mandatory
steps must run. A skipped step satisfies later dependencies the same
way a completed one does.

Example:
  phasegate skip --note "staging bake not needed for docs-only change"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			snap, err := app.Controller.Skip(instanceArg(args), note)
			if err != nil {
				return wrapExit(err)
			}
			return app.renderSnapshot(snap)
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "reason recorded with the skip")

	return cmd
}
