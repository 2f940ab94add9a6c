// Package config defines the run options and loads them from defaults, an
// optional config file, CLEANUP_* environment variables and CLI flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidOptions is returned when options fail validation.
var ErrInvalidOptions = errors.New("invalid options")

// Defaults for the options record.
const (
	DefaultLogFile   = "cleanup-orchestrator.log"
	DefaultBackupDir = ".cleanup-backups"
)

// Options enumerates every recognized run option.
type Options struct {
	// DryRun previews changes; --apply clears it.
	DryRun     bool     `koanf:"dry_run" yaml:"dry_run"`
	Verbose    bool     `koanf:"verbose" yaml:"verbose"`
	SkipSteps  []string `koanf:"skip_steps" yaml:"skip_steps,omitempty"`
	LogFile    string   `koanf:"log_file" yaml:"log_file"`
	UseBackup  bool     `koanf:"use_backup" yaml:"use_backup"`
	UseGit     bool     `koanf:"use_git" yaml:"use_git"`
	ProjectDir string   `koanf:"project_dir" yaml:"project_dir"`
	BackupDir  string   `koanf:"backup_dir" yaml:"backup_dir"`
	ReportDir  string   `koanf:"report_dir" yaml:"report_dir,omitempty"`
	// Excludes are extra gitignore-style patterns left out of backups.
	Excludes []string `koanf:"excludes" yaml:"excludes,omitempty"`

	// ConfigFile is the file the options were loaded from, if any.
	ConfigFile string `koanf:"-" yaml:"-"`
}

// Defaults returns the options used when nothing else is configured.
func Defaults() Options {
	return Options{
		DryRun:     true,
		LogFile:    DefaultLogFile,
		UseBackup:  true,
		UseGit:     true,
		ProjectDir: ".",
		BackupDir:  DefaultBackupDir,
	}
}

// Validate checks the options for consistency.
func (o Options) Validate() error {
	var problems []string
	if strings.TrimSpace(o.ProjectDir) == "" {
		problems = append(problems, "project directory is required")
	}
	if strings.TrimSpace(o.LogFile) == "" {
		problems = append(problems, "log file is required")
	}
	if o.UseBackup && strings.TrimSpace(o.BackupDir) == "" {
		problems = append(problems, "backup directory is required when backups are enabled")
	}
	for _, s := range o.SkipSteps {
		if strings.TrimSpace(s) == "" {
			problems = append(problems, "skip list contains an empty step name")
			break
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(problems, "; "))
	}
	return nil
}

// ResolvePath resolves p against the project directory.
func (o Options) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(o.ProjectDir, p)
}

// Report and manifest file name patterns written into the project by a run.
const (
	ReportPattern   = "cleanup-report-*.json"
	ManifestPattern = "backup-manifest-*.json"
)

// ArtifactPatterns returns the files a run writes into the project as
// slash-separated paths relative to ProjectDir: the backup root, the log and
// the report and manifest globs. Paths outside the project are omitted.
func (o Options) ArtifactPatterns() []string {
	var out []string
	add := func(p string) {
		if rel, ok := o.projectRel(p); ok {
			out = append(out, rel)
		}
	}
	if o.BackupDir != "" {
		add(o.BackupDir)
	}
	if o.LogFile != "" {
		add(o.LogFile)
	}
	reports := ReportPattern
	if o.ReportDir != "" {
		reports = filepath.Join(o.ReportDir, ReportPattern)
	}
	add(reports)
	add(ManifestPattern)
	return out
}

func (o Options) projectRel(p string) (string, bool) {
	rel := filepath.Clean(p)
	if filepath.IsAbs(p) {
		base, err := filepath.Abs(o.ProjectDir)
		if err != nil {
			return "", false
		}
		if rel, err = filepath.Rel(base, p); err != nil {
			return "", false
		}
	}
	if !filepath.IsLocal(rel) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// YAML renders the options as a config file.
func (o Options) YAML() ([]byte, error) {
	return yaml.Marshal(o)
}

// ParseStepList splits a comma-separated --skip value, trimming blanks.
func ParseStepList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
