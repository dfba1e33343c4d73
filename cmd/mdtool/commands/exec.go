package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koichiyamashita/monodevelop/pkg/engine"
)

func newExecCommand() *cobra.Command {
	var (
		frameworkID string
		workDir     string
	)

	cmd := &cobra.Command{
		Use:   "exec <assembly> [args...]",
		Short: "Execute an assembly against a target framework",
		Long: `Execute an assembly. When the requested framework is not installed,
the closest installed compatible framework substitutes for it; when no
installed framework is compatible the command fails without starting a
process.`,
		Example: `  # Run against an explicit framework
  mdtool -c engine.cue exec --framework net/4.0 ./app.exe

  # Pass arguments through to the process
  mdtool -c engine.cue exec --framework net/4.0 ./app.exe -- --port 8080`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cleanup, err := buildRuntime(cmd.Context(), cmd.Root().Version)
			if err != nil {
				return err
			}
			defer cleanup()

			var fw *engine.Framework
			if frameworkID != "" {
				id, err := parseFrameworkID(frameworkID)
				if err != nil {
					return err
				}
				if known, ok := rt.Framework(id); ok {
					fw = known
				} else {
					fw = &engine.Framework{ID: id}
				}
			}

			handle, err := rt.ExecuteAssembly(cmd.Context(), args[0], fw, engine.LaunchConfig{
				Args: args[1:],
				Dir:  workDir,
			})
			if err != nil {
				return err
			}

			code, err := handle.Wait()
			if err != nil {
				return fmt.Errorf("process wait failed: %w", err)
			}
			if code != 0 {
				// Propagate the child's exit code.
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&frameworkID, "framework", "f", "", "target framework (identifier/version[/profile])")
	cmd.Flags().StringVarP(&workDir, "dir", "d", "", "working directory for the process")
	return cmd
}
