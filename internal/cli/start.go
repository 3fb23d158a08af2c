package cli

import (
	"github.com/spf13/cobra"

	"phasegate/internal/definition"
)

func newStartCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "start <workflow>",
		Short: "Start a new workflow instance",
		Long: `Start a new instance of a workflow definition.

The workflow is resolved by name against the configured workflows
directory, or loaded from an explicit path when the argument contains a
path separator or a .yaml/.yml extension. At most one non-terminal
instance per definition may exist; finish or abort the current one
before starting another.

Example:
  phasegate start release
  phasegate start ./workflows/release.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			def, err := definition.Resolve(app.Config.State.WorkflowsDir, args[0])
			if err != nil {
				return wrapExit(err)
			}

			snap, err := app.Controller.Start(def)
			if err != nil {
				return wrapExit(err)
			}
			return app.renderSnapshot(snap)
		},
	}
}
