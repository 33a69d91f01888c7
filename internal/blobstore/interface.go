package blobstore

import (
	"context"
	"io"
)

// ImportDescriptor describes one imported file. Size and hashes are
// always those of the original bytes, never of the stored blob.
type ImportDescriptor struct {
	ContentHash   string `json:"content_hash" yaml:"content_hash"`
	HashAlgorithm string `json:"hash_algorithm" yaml:"hash_algorithm"`
	MD5           string `json:"md5" yaml:"md5"`
	Size          int64  `json:"size" yaml:"size"`
	Collection    string `json:"collection" yaml:"collection"`
	Codec         string `json:"codec" yaml:"codec"`
	RelativePath  string `json:"relative_path" yaml:"relative_path"`
	Deduplicated  bool   `json:"deduplicated" yaml:"deduplicated"`
}

// Importer moves staged files into content-addressed storage.
type Importer interface {
	Import(ctx context.Context, stagedPath, collection string) (ImportDescriptor, error)
	ImportReader(ctx context.Context, r io.Reader, collection string) (ImportDescriptor, error)
}

// Opener opens stored blobs for reading. A false result with a nil error
// means no blob exists at the address.
type Opener interface {
	OpenByHash(ctx context.Context, contentHash string) (*Stream, bool, error)
	OpenByRelativePath(ctx context.Context, relativePath string) (*Stream, bool, error)
}

// BlobStore is the byte-storage abstraction used by the CLI and the server.
type BlobStore interface {
	Importer
	Opener
}

var _ BlobStore = (*LocalCAS)(nil)
