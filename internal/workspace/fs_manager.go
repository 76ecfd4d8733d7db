package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"
)

// fsManager manages build context directories on local disk.
type fsManager struct {
	baseDir string
	now     func() time.Time
	link    func(oldname, newname string) error
}

var _ Manager = (*fsManager)(nil)

// NewFSManager creates a filesystem-backed manager rooted at baseDir.
func NewFSManager(baseDir string) (*fsManager, error) {
	trimmed := strings.TrimSpace(baseDir)
	if trimmed == "" {
		return nil, fmt.Errorf("build context base directory is empty")
	}

	return &fsManager{
		baseDir: filepath.Clean(trimmed),
		now:     time.Now,
		link:    os.Link,
	}, nil
}

func (m *fsManager) BaseDir() string {
	return m.baseDir
}

// Create initializes a build context directory for id.
func (m *fsManager) Create(ctx context.Context, id string) (BuildContext, error) {
	if err := ctx.Err(); err != nil {
		return BuildContext{}, err
	}

	path, err := m.contextPath(id)
	if err != nil {
		return BuildContext{}, err
	}

	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return BuildContext{}, fmt.Errorf("create build context base directory: %w", err)
	}

	if err := os.Mkdir(path, 0o755); err != nil {
		return BuildContext{}, fmt.Errorf("create build context %q: %w", id, err)
	}

	return BuildContext{ID: id, Dir: path}, nil
}

// Import copies srcDir into the context under dstRel.
func (m *fsManager) Import(ctx context.Context, id, srcDir, dstRel string, ignore []string) error {
	bc, err := m.Open(ctx, id)
	if err != nil {
		return err
	}

	dstRel = filepath.Clean(dstRel)
	if filepath.IsAbs(dstRel) || dstRel == ".." || strings.HasPrefix(dstRel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("import destination %q escapes the build context", dstRel)
	}

	if err := m.copyTree(ctx, srcDir, filepath.Join(bc.Dir, dstRel), ignore); err != nil {
		return fmt.Errorf("import %q into build context %q: %w", srcDir, id, err)
	}
	return nil
}

// Open returns an existing build context.
func (m *fsManager) Open(ctx context.Context, id string) (BuildContext, error) {
	if err := ctx.Err(); err != nil {
		return BuildContext{}, err
	}

	path, err := m.contextPath(id)
	if err != nil {
		return BuildContext{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return BuildContext{}, fmt.Errorf("open build context %q: %w", id, err)
	}
	if !info.IsDir() {
		return BuildContext{}, fmt.Errorf("build context path for %q is not a directory", id)
	}

	return BuildContext{ID: id, Dir: path}, nil
}

// Remove deletes the build context directory for id. Removing a context that
// does not exist is not an error.
func (m *fsManager) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := m.contextPath(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove build context %q: %w", id, err)
	}
	return nil
}

// Cleanup removes build context directories older than olderThan based on
// directory modification time. Files in the base directory (build metadata)
// are kept.
func (m *fsManager) Cleanup(ctx context.Context, olderThan time.Duration) (CleanupReport, error) {
	if err := ctx.Err(); err != nil {
		return CleanupReport{}, err
	}
	if olderThan <= 0 {
		return CleanupReport{}, fmt.Errorf("olderThan must be positive")
	}

	entries, err := os.ReadDir(m.baseDir)
	if os.IsNotExist(err) {
		return CleanupReport{}, nil
	}
	if err != nil {
		return CleanupReport{}, fmt.Errorf("read build context base directory: %w", err)
	}

	cutoff := m.now().Add(-olderThan)
	report := CleanupReport{}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return report, fmt.Errorf("read build context info %q: %w", entry.Name(), err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(m.baseDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return report, fmt.Errorf("remove build context %q: %w", entry.Name(), err)
		}
		report.DeletedDirs++
	}

	return report, nil
}

func (m *fsManager) contextPath(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	return filepath.Join(m.baseDir, id), nil
}

func (m *fsManager) copyTree(ctx context.Context, srcDir, dstDir string, ignore []string) error {
	srcInfo, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("stat source directory: %w", err)
	}
	if !srcInfo.IsDir() {
		return fmt.Errorf("source path %q is not a directory", srcDir)
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	return filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == srcDir {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if slices.Contains(ignore, d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("resolve relative path: %w", err)
		}
		dstPath := filepath.Join(dstDir, relPath)

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("read entry info for %q: %w", path, err)
		}

		switch {
		case d.IsDir():
			if err := os.Mkdir(dstPath, info.Mode().Perm()|0o700); err != nil {
				return fmt.Errorf("create directory %q: %w", dstPath, err)
			}
		case info.Mode().IsRegular():
			if err := m.linkOrCopy(path, dstPath, info.Mode().Perm()); err != nil {
				return err
			}
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("read symlink %q: %w", path, err)
			}
			if err := os.Symlink(target, dstPath); err != nil {
				return fmt.Errorf("create symlink %q: %w", dstPath, err)
			}
		default:
			// Sockets, devices and pipes have no place in a build context.
			return nil
		}

		return nil
	})
}

// linkOrCopy hard-links src to dst, falling back to a byte copy when the two
// paths are on different devices or links are not permitted.
func (m *fsManager) linkOrCopy(src, dst string, perm fs.FileMode) error {
	err := m.link(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) && !errors.Is(err, fs.ErrPermission) && !errors.Is(err, syscall.EMLINK) {
		return fmt.Errorf("hard-link %q to %q: %w", src, dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %q to %q: %w", src, dst, err)
	}
	return out.Close()
}

func validateID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("build context id is empty")
	}
	if trimmed == "." || trimmed == ".." {
		return fmt.Errorf("build context id %q is invalid", id)
	}
	if strings.Contains(trimmed, "/") || strings.Contains(trimmed, `\`) {
		return fmt.Errorf("build context id %q must not contain path separators", id)
	}
	if filepath.Clean(trimmed) != trimmed {
		return fmt.Errorf("build context id %q is invalid", id)
	}
	return nil
}
