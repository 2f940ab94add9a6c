package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Config prints the options a run would use, after merging defaults,
the config file, CLEANUP_* environment variables and flags. The output is a
valid .cleanup-orchestrator.yaml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := loadOptions(cmd, f)
			if err != nil {
				return userError(err)
			}
			data, err := opts.YAML()
			if err != nil {
				return fmt.Errorf("render config: %w", err)
			}
			out := cmd.OutOrStdout()
			if opts.ConfigFile != "" {
				_, _ = fmt.Fprintf(out, "# loaded from %s\n", opts.ConfigFile)
			}
			_, _ = out.Write(data)
			return nil
		},
	}
}
