package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newPackagesCommand() *cobra.Command {
	var showAssemblies bool

	cmd := &cobra.Command{
		Use:   "packages",
		Short: "List registered packages",
		Long: `List the packages registered for the configured runtime: the
framework-supplied packages of every installed framework plus any packages
contributed through the packages directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := buildRuntime(cmd.Context(), cmd.Root().Version)
			if err != nil {
				return err
			}
			defer cleanup()
			rt.WaitUntilInitialized()

			pkgs := rt.Packages().Packages()

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(pkgs)
			}

			for _, p := range pkgs {
				kind := "addin"
				switch {
				case p.IsFrameworkPackage:
					kind = "framework"
				case p.IsInternalPackage:
					kind = "internal"
				}
				fmt.Printf("%-32s %-12s %s\n", p.Name(), p.Version(), kind)
				if showAssemblies {
					for _, a := range p.Assemblies {
						fmt.Printf("    %s\n", a)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showAssemblies, "assemblies", false, "also list each package's assembly paths")
	return cmd
}
