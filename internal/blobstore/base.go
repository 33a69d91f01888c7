package blobstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultFileMode os.FileMode = 0o644
	DefaultDirMode  os.FileMode = 0o755

	stagingDirName = ".staging"
)

// BaseFileStorage holds the plain filesystem behavior shared by the
// import and read paths: path derivation, existence checks, directory
// creation and permission normalization.
type BaseFileStorage struct {
	root     string
	fileMode os.FileMode
	dirMode  os.FileMode
}

// NewBaseFileStorage returns a BaseFileStorage rooted at root. Zero
// modes select the defaults.
func NewBaseFileStorage(root string, fileMode, dirMode os.FileMode) (*BaseFileStorage, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if fileMode == 0 {
		fileMode = DefaultFileMode
	}
	if dirMode == 0 {
		dirMode = DefaultDirMode
	}
	return &BaseFileStorage{root: abs, fileMode: fileMode.Perm(), dirMode: dirMode.Perm()}, nil
}

// Root returns the absolute storage root.
func (b *BaseFileStorage) Root() string {
	return b.root
}

// StagingDir returns the directory used for files staged by this storage.
func (b *BaseFileStorage) StagingDir() string {
	return filepath.Join(b.root, stagingDirName)
}

// PathByHash returns the blob path for contentHash.
func (b *BaseFileStorage) PathByHash(contentHash string) (string, error) {
	return DerivePath(b.root, contentHash)
}

// PathByRelative joins relativePath onto the root. Leading slashes are
// ignored; paths that leave the root are rejected.
func (b *BaseFileStorage) PathByRelative(relativePath string) (string, error) {
	rel := strings.TrimLeft(filepath.ToSlash(strings.TrimSpace(relativePath)), "/")
	if rel == "" {
		return "", fmt.Errorf("%w: path is empty", ErrInvalidPath)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q leaves the storage root", ErrInvalidPath, relativePath)
	}
	return filepath.Join(b.root, clean), nil
}

// RelativePath returns path relative to the root in slash form.
func (b *BaseFileStorage) RelativePath(path string) (string, error) {
	rel, err := filepath.Rel(b.root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// InBlobTree reports whether path lies below the root but outside the
// staging directory. Symlinks are resolved where possible.
func (b *BaseFileStorage) InBlobTree(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	if b.blobTreeContains(b.root, abs) {
		return true, nil
	}
	root, err := filepath.EvalSymlinks(b.root)
	if err != nil {
		return false, nil
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return false, nil
	}
	return b.blobTreeContains(root, resolved), nil
}

func (b *BaseFileStorage) blobTreeContains(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	sep := string(filepath.Separator)
	if rel == ".." || strings.HasPrefix(rel, ".."+sep) {
		return false
	}
	return rel != stagingDirName && !strings.HasPrefix(rel, stagingDirName+sep)
}

// Exists reports whether a regular file exists at the undecorated path.
func (b *BaseFileStorage) Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// EnsureDir creates dir and its parents with the configured mode.
func (b *BaseFileStorage) EnsureDir(dir string) error {
	return os.MkdirAll(dir, b.dirMode)
}

// FixPermissions applies the configured file mode to path.
func (b *BaseFileStorage) FixPermissions(path string) error {
	return os.Chmod(path, b.fileMode)
}
