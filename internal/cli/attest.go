package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAttestCommand(app *App) *cobra.Command {
	var (
		pass bool
		fail bool
		note string
	)

	cmd := &cobra.Command{
		Use:   "attest [instance-id]",
		Short: "Record the verdict for a step awaiting attestation",
		Long: `Record the human verdict for a step whose verification gate could not
decide on its own (manual and interactive checks, backend errors,
timeouts).

--pass completes the step and moves the workflow forward. --fail
records the failure and blocks the instance, exactly as a failed
automated gate would. The verdict is stored with the step, marked as
attested, so the record shows a human made the call.

Example:
  phasegate attest --pass --note "dashboards look healthy"
  phasegate attest release-1a2b3c4d --fail --note "error rate spiked"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pass == fail {
				return fmt.Errorf("exactly one of --pass or --fail is required")
			}
			cmd.SilenceUsage = true

			snap, err := app.Controller.Attest(instanceArg(args), pass, note)
			if err != nil {
				return wrapExit(err)
			}
			return app.renderSnapshot(snap)
		},
	}

	cmd.Flags().BoolVar(&pass, "pass", false, "record the step as verified")
	cmd.Flags().BoolVar(&fail, "fail", false, "record the step as failed")
	cmd.Flags().StringVar(&note, "note", "", "reason recorded with the verdict")

	return cmd
}
