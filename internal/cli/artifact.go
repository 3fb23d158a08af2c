package cli

import (
	"github.com/spf13/cobra"
)

func newArtifactCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "artifact <ref> [instance-id]",
		Short: "Attach an artifact reference to the instance",
		Long: `Record an artifact reference (a path, URL, or build id) on the
instance so the handoff lists what the run produced.

References are opaque to phasegate; they are stored verbatim and shown
in status output.

Example:
  phasegate artifact dist/release-2.4.1.tar.gz
  phasegate artifact https://builds.example.com/1842 release-1a2b3c4d`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			snap, err := app.Controller.AttachArtifact(instanceArg(args[1:]), args[0])
			if err != nil {
				return wrapExit(err)
			}
			return app.renderSnapshot(snap)
		},
	}
}
