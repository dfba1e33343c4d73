package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newFrameworksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frameworks",
		Short: "List discovered target frameworks",
		Long: `List every framework the runtime discovered, with its identity,
display name and whether a backend considers it installed.`,
		Example: `  # List frameworks for the configured runtime
  mdtool -c engine.cue frameworks

  # Machine-readable output
  mdtool -c engine.cue frameworks --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := buildRuntime(cmd.Context(), cmd.Root().Version)
			if err != nil {
				return err
			}
			defer cleanup()

			type row struct {
				ID        string `json:"id"`
				Name      string `json:"name"`
				Installed bool   `json:"installed"`
			}
			var rows []row
			for _, fw := range rt.Frameworks() {
				rows = append(rows, row{
					ID:        fw.ID.String(),
					Name:      fw.DisplayName(),
					Installed: rt.IsInstalled(fw),
				})
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			fmt.Printf("Runtime: %s\n", rt.DisplayName())
			for _, r := range rows {
				mark := " "
				if r.Installed {
					mark = "*"
				}
				fmt.Printf("  %s %-24s %s\n", mark, r.ID, r.Name)
			}
			return nil
		},
	}
	return cmd
}
