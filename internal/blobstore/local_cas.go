package blobstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"zcas/internal/codec"
	"zcas/internal/digest"
)

// LocalCAS stores blob bytes compressed in a local content-addressed tree
// and serves them back decompressed.
type LocalCAS struct {
	base      *BaseFileStorage
	codec     codec.Codec
	registry  *codec.Registry
	algorithm digest.Algorithm
	tempDir   string
	logger    *slog.Logger
}

type options struct {
	registry  *codec.Registry
	algorithm string
	fileMode  os.FileMode
	dirMode   os.FileMode
	tempDir   string
	logger    *slog.Logger
}

// Option configures a LocalCAS.
type Option func(*options)

// WithRegistry resolves codec names against r instead of codec.Builtin().
func WithRegistry(r *codec.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithHashAlgorithm selects the primary content hash.
func WithHashAlgorithm(name string) Option {
	return func(o *options) { o.algorithm = name }
}

// WithPermissions sets the modes applied to blobs and created directories.
func WithPermissions(fileMode, dirMode os.FileMode) Option {
	return func(o *options) {
		o.fileMode = fileMode
		o.dirMode = dirMode
	}
}

// WithTempDir sets where temporary local copies are written.
func WithTempDir(dir string) Option {
	return func(o *options) { o.tempDir = dir }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// NewLocalCAS creates a local CAS rooted at root that compresses with the
// named codec. Unknown codecs and hash algorithms fail here with a
// *ConfigurationError rather than on first use.
func NewLocalCAS(root, codecName string, opts ...Option) (*LocalCAS, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = codec.Builtin()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	c, err := o.registry.Lookup(codecName)
	if err != nil {
		return nil, &ConfigurationError{Option: "codec", Value: codecName, Err: err}
	}
	alg, err := digest.ParseAlgorithm(o.algorithm)
	if err != nil {
		return nil, &ConfigurationError{Option: "hash_algorithm", Value: o.algorithm, Err: err}
	}
	base, err := NewBaseFileStorage(root, o.fileMode, o.dirMode)
	if err != nil {
		return nil, &ConfigurationError{Option: "path", Value: root, Err: err}
	}
	if err := base.EnsureDir(base.Root()); err != nil {
		return nil, &StorageError{Op: "init", Path: base.Root(), Err: err}
	}
	if err := base.EnsureDir(base.StagingDir()); err != nil {
		return nil, &StorageError{Op: "init", Path: base.StagingDir(), Err: err}
	}

	return &LocalCAS{
		base:      base,
		codec:     c,
		registry:  o.registry,
		algorithm: alg,
		tempDir:   o.tempDir,
		logger:    o.logger.With("component", "blobstore", "codec", c.Name()),
	}, nil
}

// Root returns the absolute storage root.
func (c *LocalCAS) Root() string {
	return c.base.Root()
}

// Codec returns the codec blobs are written with.
func (c *LocalCAS) Codec() codec.Codec {
	return c.codec
}

// HashAlgorithm returns the primary content hash algorithm.
func (c *LocalCAS) HashAlgorithm() digest.Algorithm {
	return c.algorithm
}

// Address returns the decorated address of the blob for contentHash.
func (c *LocalCAS) Address(contentHash string) (Address, error) {
	path, err := c.base.PathByHash(contentHash)
	if err != nil {
		return Address{}, err
	}
	return Decorate(path, c.codec), nil
}

// Stage copies r into a new file in the staging directory and returns
// its path. The caller owns the file until it is imported.
func (c *LocalCAS) Stage(ctx context.Context, r io.Reader) (_ string, err error) {
	if c == nil {
		return "", fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return "", fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(c.base.StagingDir(), "stage-*")
	if err != nil {
		return "", &StorageError{Op: "stage", Path: c.base.StagingDir(), Err: err}
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmp, contextReader{ctx: ctx, r: r}); err != nil {
		return "", &StorageError{Op: "stage", Path: tmpPath, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return "", &StorageError{Op: "stage", Path: tmpPath, Err: err}
	}
	return tmpPath, nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
