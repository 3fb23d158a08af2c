package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workflow instances",
		Long: `List every instance recorded in the state directory, most recently
updated first. Terminal instances are included; the state directory is
the audit trail.

Example:
  phasegate list
  phasegate list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			summaries, err := app.Store.List()
			if err != nil {
				return wrapExit(err)
			}

			if app.jsonOutput {
				return app.printJSON(summaries)
			}

			if len(summaries) == 0 {
				app.Printer.Muted("no instances found in %s", app.Store.Dir())
				return nil
			}

			for _, s := range summaries {
				line := fmt.Sprintf("%-28s  %-24s  %-10s  updated %s",
					s.ID, s.Definition, s.Status, s.UpdatedAt.Format("2006-01-02 15:04"))
				app.Printer.Println(line)
			}
			return nil
		},
	}
}
