package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"zcas/internal/codec"
	"zcas/internal/digest"
)

// VerifyStatus classifies the outcome of a blob check.
type VerifyStatus string

const (
	VerifyOK            VerifyStatus = "ok"
	VerifyMissing       VerifyStatus = "missing"
	VerifyCodecMismatch VerifyStatus = "codec_mismatch"
	VerifyCorrupt       VerifyStatus = "corrupt"
)

// VerifyResult reports one blob check.
type VerifyResult struct {
	ContentHash   string       `json:"content_hash" yaml:"content_hash"`
	Path          string       `json:"path" yaml:"path"`
	Status        VerifyStatus `json:"status" yaml:"status"`
	Codec         string       `json:"codec" yaml:"codec"`
	DetectedCodec string       `json:"detected_codec,omitempty" yaml:"detected_codec,omitempty"`
	StoredBytes   int64        `json:"stored_bytes" yaml:"stored_bytes"`
	Size          int64        `json:"size" yaml:"size"`
	ComputedHash  string       `json:"computed_hash,omitempty" yaml:"computed_hash,omitempty"`
	Detail        string       `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// OK reports whether the blob passed the check.
func (r VerifyResult) OK() bool {
	return r.Status == VerifyOK
}

// Verify checks that the stored blob for contentHash carries the
// configured codec's signature and decodes to content with the same
// hash. Problems with the blob are reported in the result; the error is
// reserved for failures to inspect it at all.
func (c *LocalCAS) Verify(ctx context.Context, contentHash string) (VerifyResult, error) {
	result := VerifyResult{ContentHash: contentHash, Codec: c.codec.Name()}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	path, err := c.base.PathByHash(contentHash)
	if err != nil {
		return result, &StorageError{Op: "verify", Path: c.base.Root(), Hash: contentHash, Err: err}
	}
	result.Path = path

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Status = VerifyMissing
			return result, nil
		}
		return result, &StorageError{Op: "verify", Path: path, Hash: contentHash, Err: err}
	}
	result.StoredBytes = info.Size()

	detected, err := c.detect(path)
	if err != nil {
		return result, &StorageError{Op: "verify", Path: path, Hash: contentHash, Err: err}
	}
	if detected != nil {
		result.DetectedCodec = detected.Name()
	}
	if !sameFormat(c.codec, detected) {
		result.Status = VerifyCodecMismatch
		result.Detail = fmt.Sprintf("blob is not in %s format", c.codec.Name())
		return result, nil
	}

	stream, err := Decorate(path, c.codec).Open()
	if err != nil {
		result.Status = VerifyCorrupt
		result.Detail = err.Error()
		return result, nil
	}
	defer stream.Close()

	sum, err := digest.Reader(contextReader{ctx: ctx, r: stream}, c.algorithm)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		result.Status = VerifyCorrupt
		result.Detail = err.Error()
		return result, nil
	}
	result.Size = sum.Size
	result.ComputedHash = sum.Hash
	if sum.Hash != contentHash {
		result.Status = VerifyCorrupt
		result.Detail = "content hash does not match address"
		return result, nil
	}
	result.Status = VerifyOK
	return result, nil
}

// DetectCodec reports which registered codec the raw bytes at the blob
// for contentHash were written with. ok is false when the blob is missing
// or carries no known signature.
func (c *LocalCAS) DetectCodec(contentHash string) (string, bool, error) {
	path, err := c.base.PathByHash(contentHash)
	if err != nil {
		return "", false, err
	}
	detected, err := c.detect(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	if detected == nil {
		return "", false, nil
	}
	return detected.Name(), true, nil
}

func (c *LocalCAS) detect(path string) (codec.Codec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, c.registry.MaxMagicLen())
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	detected, ok := c.registry.Detect(header[:n])
	if !ok {
		return nil, nil
	}
	return detected, nil
}

// sameFormat reports whether a blob whose signature matched detected can
// have been written by configured. Codecs without a signature accept
// anything.
func sameFormat(configured, detected codec.Codec) bool {
	if len(configured.Magic()) == 0 {
		return true
	}
	return detected != nil && detected.Name() == configured.Name()
}

// Walk calls fn with the hash of every blob below the root, in lexical
// order. Staging and temporary files are skipped.
func (c *LocalCAS) Walk(ctx context.Context, fn func(contentHash string) error) error {
	root := c.base.Root()
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !d.Type().IsRegular() {
			return nil
		}
		rel, err := c.base.RelativePath(path)
		if err != nil {
			return err
		}
		key, err := relativeKey(d.Name())
		if err != nil || key != rel {
			return nil
		}
		return fn(d.Name())
	})
}
