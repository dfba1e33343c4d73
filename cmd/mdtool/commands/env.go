package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

func newEnvCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env <framework>",
		Short: "Show the execution environment for a framework",
		Long: `Show the environment variables and tool search paths a process
launched against the given framework would receive.`,
		Example: `  mdtool -c engine.cue env net/4.0`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFrameworkID(args[0])
			if err != nil {
				return err
			}

			rt, cleanup, err := buildRuntime(cmd.Context(), cmd.Root().Version)
			if err != nil {
				return err
			}
			defer cleanup()

			fw, ok := rt.Framework(id)
			if !ok {
				return fmt.Errorf("framework %s is not known to runtime %s", id, rt.ID())
			}

			env := rt.GetExecutionEnvironment(fw)

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(env)
			}

			keys := make([]string, 0, len(env.Variables))
			for k := range env.Variables {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s=%s\n", k, env.Variables[k])
			}
			for _, p := range env.ToolPaths {
				fmt.Printf("# tool path: %s\n", p)
			}
			return nil
		},
	}
	return cmd
}
