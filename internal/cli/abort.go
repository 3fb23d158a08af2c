package cli

import (
	"github.com/spf13/cobra"
)

func newAbortCommand(app *App) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "abort [instance-id]",
		Short: "Abort the workflow instance",
		Long: `Mark the instance aborted. Aborted instances are terminal: no further
operations apply, but the record stays on disk for audit.

Aborting an already-terminal instance is a no-op, so abort is safe to
re-run.

Example:
  phasegate abort --note "release postponed to next train"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			snap, err := app.Controller.Abort(instanceArg(args), note)
			if err != nil {
				return wrapExit(err)
			}
			return app.renderSnapshot(snap)
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "reason recorded with the abort")

	return cmd
}
