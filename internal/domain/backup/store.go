package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/cleanup-orchestrator/internal/adapters/logging"
	"github.com/felixgeelhaar/cleanup-orchestrator/internal/ports"
)

// DefaultBackupDir is the backup root, relative to the project root.
const DefaultBackupDir = ".cleanup-backups"

const (
	snapshotFile   = "snapshot.json"
	initialDir     = "initial"
	checkpointsDir = "checkpoints"
)

// Store creates and restores the snapshot and checkpoints of one run.
// It touches the real repository and file system; callers enforce dry-run by
// not invoking it. A Store is not safe for concurrent use.
type Store struct {
	root       string
	backupRoot string
	fs         ports.FileSystem
	git        Git
	logger     ports.Logger
	method     Method
	important  []string
	excludes   excludeMatcher
	now        func() time.Time
	newID      func() string

	snapshot    *Snapshot
	checkpoints map[string]*Checkpoint
	order       []string
	rollbacks   []RollbackRecord
}

// Option configures a Store.
type Option func(*Store)

// WithMethod sets the requested backup method (default: git).
func WithMethod(m Method) Option {
	return func(s *Store) {
		s.method = m
	}
}

// WithBackupRoot sets the directory that holds filesystem backups and snapshot metadata.
// Relative paths are resolved against the project root.
func WithBackupRoot(dir string) Option {
	return func(s *Store) {
		s.backupRoot = dir
	}
}

// WithImportantPaths sets the project-relative paths copied by a filesystem snapshot.
func WithImportantPaths(paths []string) Option {
	return func(s *Store) {
		s.important = paths
	}
}

// WithExcludes sets the gitignore-style patterns left out of every copy.
func WithExcludes(patterns []string) Option {
	return func(s *Store) {
		s.excludes = newExcludeMatcher(patterns)
	}
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides snapshot ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// NewStore creates a store for the project at root. git may be nil, which
// forces filesystem backups.
func NewStore(root string, fs ports.FileSystem, git Git, opts ...Option) *Store {
	s := &Store{
		root:        root,
		fs:          fs,
		git:         git,
		logger:      logging.NewNopLogger(),
		method:      MethodGit,
		backupRoot:  DefaultBackupDir,
		important:   DefaultImportantPaths,
		excludes:    newExcludeMatcher(DefaultExcludes),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		checkpoints: make(map[string]*Checkpoint),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !filepath.IsAbs(s.backupRoot) {
		s.backupRoot = filepath.Join(root, s.backupRoot)
	}
	return s
}

// Root returns the project root.
func (s *Store) Root() string {
	return s.root
}

// BackupRoot returns the absolute backup directory.
func (s *Store) BackupRoot() string {
	return s.backupRoot
}

// Snapshot returns the current snapshot, or nil.
func (s *Store) Snapshot() *Snapshot {
	return s.snapshot
}

// Checkpoint returns the checkpoint recorded for name.
func (s *Store) Checkpoint(name string) (Checkpoint, bool) {
	cp, ok := s.checkpoints[name]
	if !ok {
		return Checkpoint{}, false
	}
	return *cp, true
}

// Checkpoints returns the checkpoints in creation order. A name checkpointed
// twice appears once, with its latest value.
func (s *Store) Checkpoints() []Checkpoint {
	out := make([]Checkpoint, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.checkpoints[name])
	}
	return out
}

// Rollbacks returns every rollback performed so far.
func (s *Store) Rollbacks() []RollbackRecord {
	out := make([]RollbackRecord, len(s.rollbacks))
	copy(out, s.rollbacks)
	return out
}

// CreateSnapshot backs up the project. Git is used when requested and the
// project is a repository; any git failure falls back to a filesystem copy.
// A failed filesystem copy is fatal and wraps ErrBackupFailed.
func (s *Store) CreateSnapshot(ctx context.Context) (*Snapshot, error) {
	id := s.newID()

	if s.method == MethodGit && s.git != nil && s.git.IsRepository(ctx) {
		snap, err := s.createGitSnapshot(ctx, id)
		if err == nil {
			s.snapshot = snap
			s.logger.Info(ctx, "created git backup", ports.F("branch", snap.Branch), ports.F("stashed", snap.Stashed))
			return snap, nil
		}
		s.logger.Warn(ctx, "git backup failed, falling back to filesystem backup", ports.F("error", err))
	}

	snap, err := s.createFilesystemSnapshot(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackupFailed, err)
	}
	s.snapshot = snap
	s.logger.Info(ctx, "created filesystem backup", ports.F("directory", snap.Directory), ports.F("paths", len(snap.Paths)))
	return snap, nil
}

func (s *Store) createGitSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	original, err := s.git.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}

	dirty, err := s.git.IsDirty(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	snap := &Snapshot{
		ID:             id,
		Method:         MethodGit,
		OriginalBranch: original,
		CreatedAt:      now,
	}

	if dirty {
		stashed, err := s.git.Stash(ctx, "cleanup-orchestrator backup "+id)
		if err != nil {
			return nil, err
		}
		snap.Stashed = stashed
	}

	snap.Branch = fmt.Sprintf("cleanup-backup-%s-%s", now.UTC().Format("20060102-150405"), snap.ShortID())
	if err := s.git.CreateBranch(ctx, snap.Branch); err != nil {
		s.undoStash(ctx, snap)
		return nil, err
	}

	if err := s.writeSnapshotMeta(snap); err != nil {
		_ = s.git.DeleteBranch(ctx, snap.Branch)
		s.undoStash(ctx, snap)
		return nil, err
	}

	return snap, nil
}

// undoStash restores stashed changes after a failed git snapshot so the
// filesystem fallback copies the tree the user actually had.
func (s *Store) undoStash(ctx context.Context, snap *Snapshot) {
	if !snap.Stashed {
		return
	}
	if err := s.git.StashPop(ctx); err != nil {
		s.logger.Error(ctx, "failed to restore stashed changes", ports.F("error", err))
	}
	snap.Stashed = false
}

func (s *Store) createFilesystemSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	snap := &Snapshot{
		ID:        id,
		Method:    MethodFilesystem,
		Directory: filepath.Join(s.backupRoot, id, initialDir),
		CreatedAt: s.now(),
	}

	if err := s.fs.MkdirAll(snap.Directory, 0o755); err != nil {
		return nil, err
	}

	for _, rel := range s.important {
		if s.excludes.Excluded(rel, s.fs.IsDir(filepath.Join(s.root, rel))) || s.insideBackupRoot(rel) {
			continue
		}
		src := filepath.Join(s.root, rel)
		if !s.fs.Exists(src) {
			continue
		}
		copied, err := s.fs.CopyTree(src, filepath.Join(snap.Directory, rel), s.excludes.skipUnder(rel))
		if err != nil {
			_ = s.fs.RemoveAll(filepath.Join(s.backupRoot, id))
			return nil, fmt.Errorf("copy %s: %w", rel, err)
		}
		s.logger.Debug(ctx, "backed up path", ports.F("path", rel), ports.F("files", copied))
		snap.Paths = append(snap.Paths, filepath.ToSlash(rel))
	}

	if err := s.writeSnapshotMeta(snap); err != nil {
		_ = s.fs.RemoveAll(filepath.Join(s.backupRoot, id))
		return nil, err
	}

	return snap, nil
}

func (s *Store) insideBackupRoot(rel string) bool {
	r, err := filepath.Rel(s.backupRoot, filepath.Join(s.root, rel))
	return err == nil && (r == "." || filepath.IsLocal(r))
}

func (s *Store) writeSnapshotMeta(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return s.fs.WriteFile(filepath.Join(s.backupRoot, snap.ID, snapshotFile), data, 0o644)
}

// CreateCheckpoint protects files before the step called name runs. Failures
// are recorded on the returned checkpoint instead of being returned; the
// caller decides whether an unprotected step may proceed.
func (s *Store) CreateCheckpoint(ctx context.Context, name string, files []string) *Checkpoint {
	cp := &Checkpoint{
		Name:      name,
		CreatedAt: s.now(),
	}

	var err error
	if s.snapshot == nil {
		err = ErrNoSnapshot
	} else {
		cp.Method = s.snapshot.Method
		switch cp.Method {
		case MethodGit:
			err = s.gitCheckpoint(ctx, cp)
		default:
			err = s.filesystemCheckpoint(ctx, cp, files)
		}
	}

	if err != nil {
		cp.Error = err.Error()
		s.logger.Warn(ctx, "checkpoint failed", ports.F("step", name), ports.F("error", err))
	} else {
		cp.Success = true
		s.logger.Debug(ctx, "created checkpoint", ports.F("step", name), ports.F("commit", cp.Commit), ports.F("files", len(cp.Files)))
	}

	if _, seen := s.checkpoints[name]; !seen {
		s.order = append(s.order, name)
	}
	s.checkpoints[name] = cp

	out := *cp
	return &out
}

func (s *Store) gitCheckpoint(ctx context.Context, cp *Checkpoint) error {
	dirty, err := s.git.IsDirty(ctx)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	hash, err := s.git.CommitAll(ctx, "cleanup checkpoint: "+cp.Name)
	if err != nil {
		return err
	}
	cp.Commit = hash
	return nil
}

func (s *Store) filesystemCheckpoint(ctx context.Context, cp *Checkpoint, files []string) error {
	cp.Directory = filepath.Join(s.backupRoot, s.snapshot.ID, checkpointsDir, slug(cp.Name))
	if err := s.fs.RemoveAll(cp.Directory); err != nil {
		return err
	}
	if err := s.fs.MkdirAll(cp.Directory, 0o755); err != nil {
		return err
	}

	var errs []error
	for _, rel := range files {
		src := filepath.Join(s.root, rel)
		if !s.fs.Exists(src) {
			s.logger.Debug(ctx, "checkpoint path does not exist", ports.F("step", cp.Name), ports.F("path", rel))
			continue
		}
		if _, err := s.fs.CopyTree(src, filepath.Join(cp.Directory, rel), s.excludes.skipUnder(rel)); err != nil {
			errs = append(errs, fmt.Errorf("copy %s: %w", rel, err))
			continue
		}
		cp.Files = append(cp.Files, filepath.ToSlash(rel))
	}
	return errors.Join(errs...)
}

// RollbackToCheckpoint restores the state captured before the step called
// name. It fails with ErrCheckpointNotFound, without touching anything, when
// no such checkpoint exists.
func (s *Store) RollbackToCheckpoint(ctx context.Context, name string) error {
	cp, ok := s.checkpoints[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCheckpointNotFound, name)
	}
	if !cp.Success {
		return fmt.Errorf("%w: %s: %s", ErrCheckpointUnusable, name, cp.Error)
	}

	record := RollbackRecord{Target: name, Method: cp.Method, At: s.now()}
	var err error

	switch cp.Method {
	case MethodGit:
		if cp.HasCommit() {
			err = s.git.ResetHard(ctx, cp.Commit)
			if err == nil {
				record.Restored = 1
			}
		}
	default:
		record.Restored, err = s.restoreTree(cp.Directory, cp.Files)
	}

	s.record(ctx, record, err)
	if err != nil {
		return fmt.Errorf("rollback to checkpoint %s: %w", name, err)
	}
	return nil
}

// RollbackToInitial restores the project to the run's snapshot. Without a
// snapshot in memory the most recent one under the backup root is used.
func (s *Store) RollbackToInitial(ctx context.Context) error {
	if s.snapshot == nil {
		snap, err := s.LoadLatest(ctx)
		if err != nil {
			return err
		}
		s.snapshot = snap
	}
	snap := s.snapshot

	record := RollbackRecord{Target: RollbackTarget, Method: snap.Method, At: s.now()}
	var err error

	switch snap.Method {
	case MethodGit:
		err = s.gitRollback(ctx, snap)
		if err == nil {
			record.Restored = 1
		}
	default:
		record.Restored, err = s.restoreTree(snap.Directory, snap.Paths)
	}

	s.record(ctx, record, err)
	if err != nil {
		return fmt.Errorf("rollback to initial state: %w", err)
	}
	return nil
}

func (s *Store) gitRollback(ctx context.Context, snap *Snapshot) error {
	if s.git == nil {
		return fmt.Errorf("snapshot %s needs git", snap.ShortID())
	}
	if err := s.git.Checkout(ctx, snap.Branch); err != nil {
		return err
	}
	if err := s.git.Checkout(ctx, snap.OriginalBranch); err != nil {
		return err
	}
	if err := s.git.ResetHard(ctx, snap.Branch); err != nil {
		return err
	}
	if snap.Stashed {
		// TODO: decide whether a failed stash pop should fail the rollback; the
		// changes stay in the stash list either way.
		if err := s.git.StashPop(ctx); err != nil {
			s.logger.Warn(ctx, "failed to re-apply stashed changes; run 'git stash pop' manually", ports.F("error", err))
		}
	}
	return nil
}

func (s *Store) restoreTree(dir string, paths []string) (int, error) {
	restored := 0
	for _, rel := range paths {
		n, err := s.fs.CopyTree(filepath.Join(dir, rel), filepath.Join(s.root, rel), nil)
		restored += n
		if err != nil {
			return restored, fmt.Errorf("restore %s: %w", rel, err)
		}
	}
	return restored, nil
}

func (s *Store) record(ctx context.Context, r RollbackRecord, err error) {
	r.Success = err == nil
	if err != nil {
		r.Error = err.Error()
		s.logger.Error(ctx, "rollback failed", ports.F("target", r.Target), ports.F("error", err))
	} else {
		s.logger.Info(ctx, "rolled back", ports.F("target", r.Target), ports.F("restored", r.Restored))
	}
	s.rollbacks = append(s.rollbacks, r)
}

// Cleanup removes the snapshot branch or directory unless keepBackup is set,
// and always writes backup-manifest-<id>.json into the project root.
func (s *Store) Cleanup(ctx context.Context, keepBackup bool) (string, error) {
	var removeErr error
	if s.snapshot != nil && !keepBackup {
		removeErr = s.removeSnapshot(ctx, s.snapshot)
		if removeErr != nil {
			keepBackup = true
			s.logger.Warn(ctx, "failed to remove backup", ports.F("error", removeErr))
		}
	}

	id := s.newID()
	if s.snapshot != nil {
		id = s.snapshot.ID
	}

	manifest := Manifest{
		Snapshot:    s.snapshot,
		Checkpoints: s.Checkpoints(),
		Rollbacks:   s.Rollbacks(),
		KeptBackup:  keepBackup && s.snapshot != nil,
		WrittenAt:   s.now(),
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.root, "backup-manifest-"+id+".json")
	if err := s.fs.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup manifest: %w", err)
	}

	s.logger.Info(ctx, "wrote backup manifest", ports.F("path", path), ports.F("keptBackup", manifest.KeptBackup))
	return path, removeErr
}

func (s *Store) removeSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap.Method == MethodGit && s.git != nil {
		if err := s.git.DeleteBranch(ctx, snap.Branch); err != nil {
			return err
		}
	}
	if err := s.fs.RemoveAll(filepath.Join(s.backupRoot, snap.ID)); err != nil {
		return err
	}
	// Leave no empty backup root behind.
	_ = s.fs.Remove(s.backupRoot)
	return nil
}

// LoadLatest returns the most recent snapshot recorded under the backup root,
// or failing that in a kept backup manifest in the project root.
func (s *Store) LoadLatest(_ context.Context) (*Snapshot, error) {
	snaps := s.readSnapshots(filepath.Join(s.backupRoot, "*", snapshotFile), func(data []byte) *Snapshot {
		var snap Snapshot
		if json.Unmarshal(data, &snap) != nil {
			return nil
		}
		return &snap
	})
	if len(snaps) == 0 {
		snaps = s.readSnapshots(filepath.Join(s.root, "backup-manifest-*.json"), func(data []byte) *Snapshot {
			var m Manifest
			if json.Unmarshal(data, &m) != nil || !m.KeptBackup {
				return nil
			}
			return m.Snapshot
		})
	}

	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoSnapshot, s.backupRoot)
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
	return snaps[0], nil
}

func (s *Store) readSnapshots(pattern string, decode func([]byte) *Snapshot) []*Snapshot {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	var snaps []*Snapshot
	for _, path := range matches {
		data, err := s.fs.ReadFile(path)
		if err != nil {
			continue
		}
		if snap := decode(data); snap != nil && snap.Method.IsValid() {
			snaps = append(snaps, snap)
		}
	}
	return snaps
}
