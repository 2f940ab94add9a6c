package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/app"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/config"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/backup"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/domain/orchestrator"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/tasks"
)

// cliFlags holds the values bound to the command line flags.
type cliFlags struct {
	cfgFile    string
	projectDir string
	logFile    string
	skip       string
	verbose    bool
	apply      bool
	noBackup   bool
	noGit      bool
}

// verboseErrors is set once flags are parsed so printError can show details.
var verboseErrors bool

var rootCmd = newRootCmd()

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	f := &cliFlags{}
	cmd := &cobra.Command{
		Use:   "cleanup-orchestrator",
		Short: "Clean up a JavaScript/Expo project with backups and rollback",
		Long: `cleanup-orchestrator runs an ordered set of cleanup steps over a
JavaScript/React Native/Expo project: dependency and dead code analysis,
asset cleanup, config normalization and script organization.

Runs are dry by default; pass --apply to change files. Before applying, the
project is backed up (git branch or file copy) and each step is checkpointed,
so a failing step is rolled back and the whole run can be undone with
"cleanup-orchestrator rollback".`,
		SilenceErrors: true, // main prints errors
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			verboseErrors = f.verbose
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCleanup(cmd, f)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.cfgFile, "config", "", "config file (default: .cleanup-orchestrator.yaml|yml|toml in the project)")
	pf.StringVar(&f.projectDir, "dir", ".", "project root")
	pf.StringVar(&f.logFile, "log", config.DefaultLogFile, "log file, relative to the project root")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVar(&f.noGit, "no-git", false, "use file copies instead of git for backups")

	cmd.Flags().BoolVar(&f.apply, "apply", false, "apply changes (default is a dry run)")
	cmd.Flags().StringVar(&f.skip, "skip", "", "comma-separated step names to skip")
	cmd.Flags().BoolVar(&f.noBackup, "no-backup", false, "do not back up the project before applying")

	registerFlagCompletions(cmd)

	cmd.AddCommand(newRollbackCmd(f))
	cmd.AddCommand(newConfigCmd(f))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// loadOptions merges defaults, config file, environment and the flags the
// user set explicitly.
func loadOptions(cmd *cobra.Command, f *cliFlags) (config.Options, error) {
	set := cmd.Flags().Changed
	fl := make(map[string]any)
	if set("config") {
		fl[config.KeyConfigFile] = f.cfgFile
	}
	if set("dir") {
		fl[config.KeyProjectDir] = f.projectDir
	}
	if set("log") {
		fl["log_file"] = f.logFile
	}
	if set("verbose") {
		fl["verbose"] = f.verbose
	}
	if set("no-git") {
		fl["use_git"] = !f.noGit
	}
	if set("apply") {
		fl["dry_run"] = !f.apply
	}
	if set("skip") {
		fl["skip_steps"] = config.ParseStepList(f.skip)
	}
	if set("no-backup") {
		fl["use_backup"] = !f.noBackup
	}
	return config.NewLoader().Load(fl)
}

func runCleanup(cmd *cobra.Command, f *cliFlags) error {
	opts, err := loadOptions(cmd, f)
	if err != nil {
		return userError(err)
	}
	verboseErrors = opts.Verbose

	a, err := app.New(opts, app.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	if err != nil {
		return userError(err)
	}
	defer func() { _ = a.Close() }()

	ctx, stop := handleInterrupts(cmd.Context(), a.Logger())
	defer stop()

	if _, err := a.Run(ctx); err != nil {
		return userError(err)
	}
	return nil
}

// userError attaches a suggestion to the errors a user can act on.
func userError(err error) error {
	if err == nil {
		return nil
	}
	var ue *config.UserError
	if errors.As(err, &ue) {
		return err
	}
	switch {
	case errors.Is(err, config.ErrInvalidOptions):
		return config.NewUserError(config.ErrCodeConfigInvalid, err.Error(),
			"Check the --config file and CLEANUP_* environment variables.", err)
	case errors.Is(err, tasks.ErrNotAProject):
		return config.NewUserError(config.ErrCodeNotAProject, "no package.json found",
			"Run inside a JavaScript project or pass --dir.", err)
	case errors.Is(err, app.ErrNothingToRollback), errors.Is(err, backup.ErrNoSnapshot):
		return config.NewUserError(config.ErrCodeNoBackup, "no backup found to roll back to",
			"Backups are kept only when an applied run fails or is aborted.", err)
	case errors.Is(err, tasks.ErrToolUnavailable):
		return config.NewUserError(config.ErrCodeToolMissing, "a required tool could not be started",
			"Install Node.js and npm and make sure npx is on PATH.", err)
	case errors.Is(err, orchestrator.ErrAborted):
		return config.NewUserError(config.ErrCodeCleanupAborted, "cleanup aborted",
			fmt.Sprintf("See the report and log for details; %q restores the initial state.", orchestrator.RollbackCommand), err)
	}
	return err
}

// formatError returns a user-friendly error message.
// With verbose=false: shows only the user message and suggestion.
// With verbose=true: also shows the underlying technical error.
func formatError(err error, verbose bool) string {
	var userErr *config.UserError
	if errors.As(err, &userErr) {
		msg := userErr.Error()
		if userErr.Suggestion != "" {
			msg += fmt.Sprintf("\n\nSuggestion: %s", userErr.Suggestion)
		}
		if verbose && userErr.Underlying != nil {
			msg += fmt.Sprintf("\n\nTechnical details: %v", userErr.Underlying)
		}
		return msg
	}
	return err.Error()
}

// printError prints an error message to stderr with proper formatting.
func printError(err error) {
	printErrorTo(os.Stderr, err, verboseErrors)
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error, verbose bool) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err, verbose))
}

// registerFlagCompletions sets up custom completions for the flags.
func registerFlagCompletions(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("config", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml", "toml"}, cobra.ShellCompDirectiveFilterFileExt
	})

	_ = cmd.RegisterFlagCompletionFunc("dir", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveFilterDirs
	})

	// Step names contain spaces, so completion offers them comma-joined.
	_ = cmd.RegisterFlagCompletionFunc("skip", func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		prefix, done := "", []string(nil)
		if i := strings.LastIndex(toComplete, ","); i >= 0 {
			prefix = toComplete[:i+1]
			done = config.ParseStepList(toComplete[:i])
		}
		var out []string
		for _, name := range app.StepNames() {
			if !slices.Contains(done, name) {
				out = append(out, prefix+name)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
	})
}
