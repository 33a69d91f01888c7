package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// OpenByHash opens the blob for contentHash. The stream yields the
// original bytes. ok is false when no blob is stored for the hash.
func (c *LocalCAS) OpenByHash(ctx context.Context, contentHash string) (*Stream, bool, error) {
	if c == nil {
		return nil, false, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	path, err := c.base.PathByHash(contentHash)
	if err != nil {
		return nil, false, &StorageError{Op: "open", Path: c.base.Root(), Hash: contentHash, Err: err}
	}
	return c.open(path, contentHash)
}

// OpenByRelativePath opens the blob stored at relativePath below the
// root, bypassing hash derivation.
func (c *LocalCAS) OpenByRelativePath(ctx context.Context, relativePath string) (*Stream, bool, error) {
	if c == nil {
		return nil, false, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	path, err := c.base.PathByRelative(relativePath)
	if err != nil {
		return nil, false, &StorageError{Op: "open", Path: relativePath, Err: err}
	}
	return c.open(path, "")
}

func (c *LocalCAS) open(path, contentHash string) (*Stream, bool, error) {
	exists, err := c.base.Exists(path)
	if err != nil {
		return nil, false, &StorageError{Op: "open", Path: path, Hash: contentHash, Err: err}
	}
	if !exists {
		return nil, false, nil
	}
	stream, err := Decorate(path, c.codec).Open()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Removed between the check and the open.
			return nil, false, nil
		}
		return nil, false, &StorageError{Op: "open", Path: path, Hash: contentHash, Err: err}
	}
	return stream, true, nil
}

// CreateTemporaryLocalCopy writes the decompressed content of the blob
// for contentHash to a new temporary file and returns its path. The
// caller removes the file. ok is false when no blob is stored.
func (c *LocalCAS) CreateTemporaryLocalCopy(ctx context.Context, contentHash string) (_ string, _ bool, err error) {
	stream, ok, err := c.OpenByHash(ctx, contentHash)
	if err != nil || !ok {
		return "", ok, err
	}
	defer stream.Close()

	tmp, err := os.CreateTemp(c.tempDir, "zcas-copy-*")
	if err != nil {
		return "", false, &StorageError{Op: "copy", Path: c.tempDir, Hash: contentHash, Err: err}
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmp, contextReader{ctx: ctx, r: stream}); err != nil {
		return "", false, &StorageError{Op: "copy", Path: stream.URI(), Hash: contentHash, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return "", false, &StorageError{Op: "copy", Path: tmpPath, Hash: contentHash, Err: err}
	}
	return tmpPath, true, nil
}
