// Package backup snapshots a project before a cleanup run and checkpoints it
// before every step, using git when available and plain directory copies
// otherwise.
package backup

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// Method selects how snapshots and checkpoints are stored.
type Method string

// Backup methods.
const (
	MethodGit        Method = "git"
	MethodFilesystem Method = "filesystem"
)

// IsValid checks if the method is known.
func (m Method) IsValid() bool {
	return m == MethodGit || m == MethodFilesystem
}

// Sentinel errors.
var (
	// ErrCheckpointNotFound is returned when rolling back to a checkpoint that was never created.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrCheckpointUnusable is returned when rolling back to a checkpoint whose creation failed.
	ErrCheckpointUnusable = errors.New("checkpoint was not created successfully")
	// ErrNoSnapshot is returned when an operation needs a snapshot and none exists.
	ErrNoSnapshot = errors.New("no backup snapshot available")
	// ErrBackupFailed is returned when neither git nor filesystem backup could be created.
	ErrBackupFailed = errors.New("backup failed")
)

// Snapshot is the whole-run backup taken before any step executes.
type Snapshot struct {
	ID             string    `json:"id"`
	Method         Method    `json:"method"`
	Branch         string    `json:"branch,omitempty"`
	OriginalBranch string    `json:"originalBranch,omitempty"`
	Stashed        bool      `json:"stashed,omitempty"`
	Directory      string    `json:"directory,omitempty"`
	Paths          []string  `json:"paths,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Locator returns the branch name (git) or directory (filesystem) holding the backup.
func (s Snapshot) Locator() string {
	if s.Method == MethodGit {
		return s.Branch
	}
	return s.Directory
}

// ShortID returns the first eight characters of the ID.
func (s Snapshot) ShortID() string {
	if len(s.ID) <= 8 {
		return s.ID
	}
	return s.ID[:8]
}

// Checkpoint is the per-step backup taken immediately before a step runs.
type Checkpoint struct {
	Name      string    `json:"name"`
	Method    Method    `json:"method,omitempty"`
	Commit    string    `json:"commit,omitempty"`
	Directory string    `json:"directory,omitempty"`
	Files     []string  `json:"files,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// HasCommit reports whether a git checkpoint recorded a commit. A checkpoint
// taken on a clean tree has none and rolling back to it changes nothing.
func (c Checkpoint) HasCommit() bool {
	return c.Commit != ""
}

// RollbackTarget names the initial snapshot in rollback records.
const RollbackTarget = "initial"

// RollbackRecord captures one rollback attempt.
type RollbackRecord struct {
	Target   string    `json:"target"`
	Method   Method    `json:"method"`
	At       time.Time `json:"at"`
	Restored int       `json:"restored"`
	Success  bool      `json:"success"`
	Error    string    `json:"error,omitempty"`
}

// Manifest summarises a run's backups. It is written by Store.Cleanup.
type Manifest struct {
	Snapshot    *Snapshot        `json:"snapshot,omitempty"`
	Checkpoints []Checkpoint     `json:"checkpoints"`
	Rollbacks   []RollbackRecord `json:"rollbacks"`
	KeptBackup  bool             `json:"keptBackup"`
	WrittenAt   time.Time        `json:"writtenAt"`
}

// slug turns a step name into a directory name: "Asset Cleanup" -> "asset-cleanup".
func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "step"
	}
	return out
}
