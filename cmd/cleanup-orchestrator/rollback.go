package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/app"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/backup"
)

func newRollbackCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Restore the project to the state before the last cleanup",
		Long: `Rollback restores the project from the most recent backup.

Backups are created before an applied run and kept when the run fails or is
aborted. Git backups check out the backup branch state and re-apply stashed
changes; file backups copy the saved paths back into the project.

Examples:
  cleanup-orchestrator rollback              # Restore the latest backup
  cleanup-orchestrator rollback --dir ./app  # Restore another project`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRollback(cmd, f)
		},
	}
}

func runRollback(cmd *cobra.Command, f *cliFlags) error {
	opts, err := loadOptions(cmd, f)
	if err != nil {
		return userError(err)
	}

	a, err := app.New(opts, app.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	if err != nil {
		return userError(err)
	}
	defer func() { _ = a.Close() }()

	ctx, stop := handleInterrupts(cmd.Context(), a.Logger())
	defer stop()

	snap, err := a.Rollback(ctx)
	if err != nil {
		return userError(err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Restored backup %s\n", snap.ShortID())
	_, _ = fmt.Fprintf(out, "Created:  %s\n", snap.CreatedAt.Local().Format(time.RFC3339))
	_, _ = fmt.Fprintf(out, "Method:   %s\n", snap.Method)
	if snap.Method == backup.MethodGit {
		_, _ = fmt.Fprintf(out, "Branch:   %s\n", snap.Branch)
	} else {
		_, _ = fmt.Fprintf(out, "Paths:    %d\n", len(snap.Paths))
	}
	return nil
}
