package cli

import (
	"github.com/spf13/cobra"
)

func newRetryCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [instance-id]",
		Short: "Reset the failed step and unblock the instance",
		Long: `Reset the step whose verification failed back to pending and return
the instance to active, so the next continue runs the step again.

Only blocked instances can be retried; the failed verification stays
in the decision log for the audit trail.

Example:
  phasegate retry
  phasegate retry release-1a2b3c4d`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			snap, err := app.Controller.Retry(instanceArg(args))
			if err != nil {
				return wrapExit(err)
			}
			return app.renderSnapshot(snap)
		},
	}
}
