package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var networkFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

// FSTypeDetector reports the filesystem type name for an existing path.
type FSTypeDetector func(path string) (string, error)

// RequireLocalFilesystem fails when path (or its nearest existing parent) is on
// a network filesystem. Used for the SQLite file, which needs reliable locking,
// and for build context directories, which the docker daemon reads in bulk.
func RequireLocalFilesystem(path, purpose string) error {
	return requireLocalFilesystem(path, purpose, detectFilesystemType)
}

func requireLocalFilesystem(path, purpose string, detect FSTypeDetector) error {
	if path == "" {
		return fmt.Errorf("%s path is empty", purpose)
	}

	existing, err := nearestExistingPath(path)
	if err != nil {
		return fmt.Errorf("resolve %s path %q: %w", purpose, path, err)
	}

	fsType, err := detect(existing)
	if err != nil {
		// Unknown platforms cannot tell; do not block startup on that.
		if errors.Is(err, errDetectUnsupported) {
			return nil
		}
		return fmt.Errorf("detect filesystem for %q: %w", existing, err)
	}

	if isNetworkFilesystem(fsType) {
		return fmt.Errorf("%s path %q is on network filesystem %q; use a path on local disk", purpose, path, fsType)
	}
	return nil
}

func nearestExistingPath(path string) (string, error) {
	candidate, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	for {
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", path)
		}
		candidate = parent
	}
}

func isNetworkFilesystem(fsType string) bool {
	_, found := networkFilesystems[strings.TrimSpace(strings.ToLower(fsType))]
	return found
}

var errDetectUnsupported = errors.New("filesystem detection is unsupported on this platform")
