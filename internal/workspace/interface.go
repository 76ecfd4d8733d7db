// Package workspace manages build context directories on local disk.
package workspace

import (
	"context"
	"time"
)

// BuildContext is a directory assembled for one image build.
//
// Contexts live under the manager's base directory, keyed by id, so sidecar
// files (such as build metadata) can sit next to them and outlive them.
type BuildContext struct {
	ID  string
	Dir string
}

// CleanupReport summarizes a cleanup run.
type CleanupReport struct {
	DeletedDirs int
}

// Manager governs build context lifecycle.
type Manager interface {
	// BaseDir returns the directory contexts are created under.
	BaseDir() string

	// Create initializes an empty build context for id.
	Create(ctx context.Context, id string) (BuildContext, error)

	// Import copies the tree at srcDir into the context under dstRel,
	// hard-linking regular files where possible. Entries whose base name is
	// in ignore are skipped.
	Import(ctx context.Context, id, srcDir, dstRel string, ignore []string) error

	// Open resolves an existing build context.
	Open(ctx context.Context, id string) (BuildContext, error)

	// Remove deletes the build context for id.
	Remove(ctx context.Context, id string) error

	// Cleanup removes stale build contexts older than olderThan.
	Cleanup(ctx context.Context, olderThan time.Duration) (CleanupReport, error)
}
