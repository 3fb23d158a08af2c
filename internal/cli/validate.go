package cli

import (
	"github.com/spf13/cobra"

	"phasegate/internal/definition"
)

// definitionShape is the --json payload of the validate command.
type definitionShape struct {
	Name          string `json:"name"`
	Version       string `json:"version,omitempty"`
	Phases        int    `json:"phases"`
	Steps         int    `json:"steps"`
	GatedSteps    int    `json:"gated_steps"`
	OptionalSteps int    `json:"optional_steps"`
}

func newValidateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow>",
		Short: "Validate a workflow definition",
		Long: `Validate a workflow definition without starting an instance.

Checks the YAML structure, step id uniqueness, verification specs,
dependency references, and dependency acyclicity. Any violation rejects
the definition as a whole; on success a short shape summary is printed.

Example:
  phasegate validate release
  phasegate validate ./workflows/release.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			def, err := definition.Resolve(app.Config.State.WorkflowsDir, args[0])
			if err != nil {
				return wrapExit(err)
			}

			shape := definitionShape{
				Name:    def.Name,
				Version: def.Version,
				Phases:  len(def.Phases),
				Steps:   def.StepCount(),
			}
			for _, phase := range def.Phases {
				for _, step := range phase.Steps {
					if step.Verify != nil {
						shape.GatedSteps++
					}
					if step.Optional {
						shape.OptionalSteps++
					}
				}
			}

			if app.jsonOutput {
				return app.printJSON(shape)
			}

			app.Printer.Success("definition %s is valid", def.Ref())
			app.Printer.Printf("  %d phases, %d steps (%d gated, %d optional)\n",
				shape.Phases, shape.Steps, shape.GatedSteps, shape.OptionalSteps)
			return nil
		},
	}
}
