package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"zcas/internal/digest"
)

// Import moves the staged file at stagedPath into storage and returns its
// descriptor. Size and hashes are computed from the staged bytes before
// compression. When a blob for the same hash already exists the staged
// file is discarded and nothing is written. On failure the staged file is
// left in place and no partial blob remains at the target path.
func (c *LocalCAS) Import(ctx context.Context, stagedPath, collection string) (ImportDescriptor, error) {
	var zero ImportDescriptor
	if c == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	inTree, err := c.base.InBlobTree(stagedPath)
	if err != nil {
		return zero, &StorageError{Op: "import", Path: stagedPath, Err: err}
	}
	if inTree {
		return zero, &StorageError{Op: "import", Path: stagedPath, Err: ErrStagedInBlobTree}
	}

	if err := c.base.FixPermissions(stagedPath); err != nil {
		return zero, &StorageError{Op: "import", Path: stagedPath, Err: err}
	}
	sum, err := digest.File(stagedPath, c.algorithm)
	if err != nil {
		return zero, &StorageError{Op: "import", Path: stagedPath, Err: err}
	}

	target, err := c.base.PathByHash(sum.Hash)
	if err != nil {
		return zero, &StorageError{Op: "import", Path: stagedPath, Hash: sum.Hash, Err: err}
	}
	rel, err := c.base.RelativePath(target)
	if err != nil {
		return zero, &StorageError{Op: "import", Path: target, Hash: sum.Hash, Err: err}
	}
	desc := ImportDescriptor{
		ContentHash:   sum.Hash,
		HashAlgorithm: string(sum.Algorithm),
		MD5:           sum.MD5,
		Size:          sum.Size,
		Collection:    collection,
		Codec:         c.codec.Name(),
		RelativePath:  rel,
	}

	exists, err := c.base.Exists(target)
	if err != nil {
		return zero, &StorageError{Op: "import", Path: target, Hash: sum.Hash, Err: err}
	}
	if exists {
		if !sameFile(stagedPath, target) {
			c.removeStaged(stagedPath)
		}
		desc.Deduplicated = true
		c.logger.Debug("blob already stored", "hash", sum.Hash, "collection", collection)
		return desc, nil
	}

	if err := c.place(ctx, stagedPath, target); err != nil {
		return zero, &StorageError{Op: "import", Path: target, Hash: sum.Hash, Err: err}
	}
	c.removeStaged(stagedPath)

	c.logger.Debug("blob stored", "hash", sum.Hash, "size", sum.Size, "collection", collection)
	return desc, nil
}

// ImportReader stages r and imports the staged file.
func (c *LocalCAS) ImportReader(ctx context.Context, r io.Reader, collection string) (ImportDescriptor, error) {
	var zero ImportDescriptor
	staged, err := c.Stage(ctx, r)
	if err != nil {
		return zero, err
	}
	desc, err := c.Import(ctx, staged, collection)
	if err != nil {
		// The staged copy is ours; the caller still holds r.
		_ = os.Remove(staged)
		return zero, err
	}
	return desc, nil
}

// place compresses src into a temp file beside target and renames it
// into place, so readers never observe a partially written blob.
func (c *LocalCAS) place(ctx context.Context, src, target string) (err error) {
	dir := filepath.Dir(target)
	if err := c.base.EnsureDir(dir); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	w, err := c.codec.Writer(tmp)
	if err != nil {
		return err
	}
	if _, err = io.Copy(w, contextReader{ctx: ctx, r: in}); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy through %s: %w", c.codec.Name(), err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("finish %s stream: %w", c.codec.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = c.base.FixPermissions(tmpPath); err != nil {
		return err
	}

	if err = os.Rename(tmpPath, target); err != nil {
		// A concurrent import of the same content may have won the race.
		if exists, statErr := c.base.Exists(target); statErr == nil && exists {
			_ = os.Remove(tmpPath)
			return nil
		}
		return err
	}
	return nil
}

// sameFile reports whether a and b name the same file on disk.
func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func (c *LocalCAS) removeStaged(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("could not remove staged file", "path", path, "err", err)
	}
}
