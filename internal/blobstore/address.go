package blobstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"zcas/internal/codec"
)

const (
	// shardDepth single-character directories precede the blob file,
	// e.g. 6/a/4/0/6a405b1d...
	shardDepth = 4
	shardWidth = 1
)

// DerivePath returns the path of the blob for contentHash below root.
// It performs no I/O.
func DerivePath(root, contentHash string) (string, error) {
	key, err := relativeKey(contentHash)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(key)), nil
}

// relativeKey returns the slash-separated path of a blob below the root.
func relativeKey(contentHash string) (string, error) {
	if len(contentHash) <= shardDepth*shardWidth {
		return "", fmt.Errorf("%w: %q is too short", ErrInvalidHash, contentHash)
	}
	for i := 0; i < len(contentHash); i++ {
		c := contentHash[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", fmt.Errorf("%w: %q is not lowercase hex", ErrInvalidHash, contentHash)
		}
	}
	key := make([]byte, 0, len(contentHash)+shardDepth*(shardWidth+1))
	for i := 0; i < shardDepth; i++ {
		key = append(key, contentHash[i*shardWidth:(i+1)*shardWidth]...)
		key = append(key, '/')
	}
	return string(append(key, contentHash...)), nil
}

// Address is a blob path paired with the codec its bytes pass through.
// Path is always the plain filesystem path; existence checks use it
// directly because the codec layer cannot answer them.
type Address struct {
	Path  string
	Codec codec.Codec
}

// Decorate pairs path with c.
func Decorate(path string, c codec.Codec) Address {
	return Address{Path: path, Codec: c}
}

// String renders the address as <codec>://<path>.
func (a Address) String() string {
	name := codec.NameNone
	if a.Codec != nil {
		name = a.Codec.Name()
	}
	return name + "://" + a.Path
}

// Raw returns the undecorated path.
func (a Address) Raw() string {
	return a.Path
}

// Open opens the blob for reading through the codec. A missing file is
// reported with an error matching os.ErrNotExist.
func (a Address) Open() (*Stream, error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, err
	}
	c := a.Codec
	if c == nil {
		c = codec.None{}
	}
	dec, err := c.Reader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Stream{file: f, dec: dec, addr: a}, nil
}

// Stream yields the decompressed content of one blob.
type Stream struct {
	file *os.File
	dec  io.ReadCloser
	addr Address
}

func (s *Stream) Read(p []byte) (int, error) {
	return s.dec.Read(p)
}

// Close releases the decoder and the underlying file.
func (s *Stream) Close() error {
	return errors.Join(s.dec.Close(), s.file.Close())
}

// URI returns the decorated address, e.g. zlib:///srv/blobs/6/a/4/0/6a40...
func (s *Stream) URI() string {
	return s.addr.String()
}

// Codec returns the name of the codec the stream decodes.
func (s *Stream) Codec() string {
	if s.addr.Codec == nil {
		return codec.NameNone
	}
	return s.addr.Codec.Name()
}

// Path returns the undecorated path of the blob.
func (s *Stream) Path() string {
	return s.addr.Path
}
