package backup

import "context"

// Git is the subset of git the store needs. Implemented by adapters/git.Client.
type Git interface {
	IsRepository(ctx context.Context) bool
	CurrentBranch(ctx context.Context) (string, error)
	IsDirty(ctx context.Context) (bool, error)
	// Stash reports whether a stash entry was actually created.
	Stash(ctx context.Context, message string) (bool, error)
	StashPop(ctx context.Context) error
	CreateBranch(ctx context.Context, name string) error
	Checkout(ctx context.Context, ref string) error
	DeleteBranch(ctx context.Context, name string) error
	ResetHard(ctx context.Context, ref string) error
	CommitAll(ctx context.Context, message string) (string, error)
}
