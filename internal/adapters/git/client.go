// Package git drives the git CLI for the backup store. Repository detection is
// done in-process with go-git so a missing binary and a missing repository
// can be told apart.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"gopkg.in/ini.v1"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// Fallback identity used for checkpoint commits when the repository has none.
const (
	fallbackName  = "cleanup-orchestrator"
	fallbackEmail = "cleanup-orchestrator@localhost"
)

// ErrCommandFailed is returned when git exits non-zero.
var ErrCommandFailed = errors.New("git command failed")

// Client runs git commands in a project directory.
type Client struct {
	dir         string
	runner      ports.CommandRunner
	configPaths []string
	excludes    []string
}

// Option configures a Client.
type Option func(*Client)

// WithConfigPaths overrides the git config files consulted for user identity.
func WithConfigPaths(paths ...string) Option {
	return func(c *Client) {
		c.configPaths = paths
	}
}

// WithExcludes keeps paths out of IsDirty and CommitAll. Patterns are git
// pathspecs relative to the client directory, e.g. the run log and the backup
// root.
func WithExcludes(patterns ...string) Option {
	return func(c *Client) {
		c.excludes = append(c.excludes, patterns...)
	}
}

// NewClient creates a client for the repository containing dir.
func NewClient(dir string, runner ports.CommandRunner, opts ...Option) *Client {
	c := &Client{
		dir:         dir,
		runner:      runner,
		configPaths: defaultConfigPaths(dir),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsRepository reports whether dir is inside a git work tree and the git
// binary is usable.
func (c *Client) IsRepository(ctx context.Context) bool {
	if _, err := gogit.PlainOpenWithOptions(c.dir, &gogit.PlainOpenOptions{DetectDotGit: true}); err != nil {
		return false
	}
	result, err := c.runner.Run(ctx, "git", "--version")
	return err == nil && result.Success()
}

// CurrentBranch returns the checked-out branch name.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	out, err := c.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if out == "HEAD" {
		return "", fmt.Errorf("%w: detached HEAD", ErrCommandFailed)
	}
	return out, nil
}

// IsDirty reports whether the work tree has uncommitted or untracked changes
// outside the excluded paths.
func (c *Client) IsDirty(ctx context.Context) (bool, error) {
	out, err := c.git(ctx, c.withPathspec("status", "--porcelain")...)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// Stash stashes tracked changes with a message and reports whether a stash
// entry was created. git exits 0 without creating one when only untracked
// files changed.
func (c *Client) Stash(ctx context.Context, message string) (bool, error) {
	before, err := c.stashRef(ctx)
	if err != nil {
		return false, err
	}
	if _, err := c.git(ctx, "stash", "push", "-m", message); err != nil {
		return false, err
	}
	after, err := c.stashRef(ctx)
	if err != nil {
		return false, err
	}
	return after != "" && after != before, nil
}

// stashRef returns the commit refs/stash points at, or "" with no stash.
func (c *Client) stashRef(ctx context.Context) (string, error) {
	result, err := c.runner.Run(ctx, "git", "rev-parse", "-q", "--verify", "refs/stash")
	if err != nil {
		return "", fmt.Errorf("git rev-parse refs/stash: %w", err)
	}
	if !result.Success() {
		return "", nil
	}
	return strings.TrimSpace(result.Stdout), nil
}

// StashPop re-applies the most recent stash.
func (c *Client) StashPop(ctx context.Context) error {
	_, err := c.git(ctx, "stash", "pop")
	return err
}

// CreateBranch creates a branch at HEAD without switching to it.
func (c *Client) CreateBranch(ctx context.Context, name string) error {
	_, err := c.git(ctx, "branch", name)
	return err
}

// Checkout switches to ref.
func (c *Client) Checkout(ctx context.Context, ref string) error {
	_, err := c.git(ctx, "checkout", ref)
	return err
}

// DeleteBranch force-deletes a branch.
func (c *Client) DeleteBranch(ctx context.Context, name string) error {
	_, err := c.git(ctx, "branch", "-D", name)
	return err
}

// ResetHard resets the work tree and index to ref.
func (c *Client) ResetHard(ctx context.Context, ref string) error {
	_, err := c.git(ctx, "reset", "--hard", ref)
	return err
}

// CommitAll stages everything outside the excluded paths and commits it,
// returning the new HEAD hash. Hooks are bypassed: checkpoint commits must not
// depend on lint-staged and friends.
func (c *Client) CommitAll(ctx context.Context, message string) (string, error) {
	if _, err := c.git(ctx, c.withPathspec("add", "-A")...); err != nil {
		return "", err
	}

	args := c.identityArgs()
	args = append(args, "commit", "--no-verify", "-m", message)
	if _, err := c.git(ctx, args...); err != nil {
		return "", err
	}

	return c.git(ctx, "rev-parse", "HEAD")
}

// HasIdentity reports whether user.name and user.email are configured in any
// of the consulted config files or in the environment.
func (c *Client) HasIdentity() bool {
	if os.Getenv("GIT_AUTHOR_EMAIL") != "" && os.Getenv("GIT_AUTHOR_NAME") != "" {
		return true
	}

	var name, email bool
	for _, path := range c.configPaths {
		cfg, err := ini.Load(path)
		if err != nil {
			continue
		}
		section := cfg.Section("user")
		name = name || section.Key("name").String() != ""
		email = email || section.Key("email").String() != ""
	}
	return name && email
}

func (c *Client) identityArgs() []string {
	if c.HasIdentity() {
		return nil
	}
	return []string{"-c", "user.name=" + fallbackName, "-c", "user.email=" + fallbackEmail}
}

// withPathspec appends "-- . :(exclude)<p>..." when excludes are set.
func (c *Client) withPathspec(args ...string) []string {
	if len(c.excludes) == 0 {
		return args
	}
	args = append(args, "--", ".")
	for _, p := range c.excludes {
		args = append(args, ":(exclude)"+p)
	}
	return args
}

func (c *Client) git(ctx context.Context, args ...string) (string, error) {
	result, err := c.runner.Run(ctx, "git", args...)
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	if !result.Success() {
		return "", fmt.Errorf("%w: git %s (exit %d): %s", ErrCommandFailed, strings.Join(args, " "), result.ExitCode, result.Output())
	}
	return strings.TrimSpace(result.Stdout), nil
}

func defaultConfigPaths(dir string) []string {
	paths := []string{filepath.Join(dir, ".git", "config")}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".gitconfig"),
			filepath.Join(home, ".config", "git", "config"),
		)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "git", "config"))
	}
	return paths
}
