package codec

import (
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Builtin codec names. These appear in configuration and in decorated
// addresses (zlib:///srv/blobs/...), so changing them breaks existing
// deployments.
const (
	NameNone   = "none"
	NameZlib   = "zlib"
	NameBzip2  = "bzip2"
	NameZstd   = "zstd"
	NameLZ4    = "lz4"
	NameSnappy = "snappy"
)

var (
	gzipMagic   = []byte{0x1f, 0x8b}
	bzip2Magic  = []byte("BZh")
	zstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic    = []byte{0x04, 0x22, 0x4d, 0x18}
	snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")
)

// Builtin returns a registry with every codec shipped in this package.
// The compress.* aliases accept names used by older storage configs.
func Builtin() *Registry {
	r, err := NewRegistry(None{}, Zlib{}, Bzip2{}, Zstd{}, LZ4{}, Snappy{})
	if err != nil {
		panic("codec: builtin registry: " + err.Error())
	}
	for alias, name := range map[string]string{
		"compress.zlib":  NameZlib,
		"gzip":           NameZlib,
		"compress.bzip2": NameBzip2,
		"bz2":            NameBzip2,
		"zst":            NameZstd,
	} {
		if err := r.Alias(alias, name); err != nil {
			panic("codec: builtin alias: " + err.Error())
		}
	}
	return r
}

// None stores bytes unchanged.
type None struct{}

func (None) Name() string  { return NameNone }
func (None) Magic() []byte { return nil }

func (None) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

func (None) Writer(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

// Zlib writes deflate data in gzip framing, which is what the
// compress.zlib stream wrapper produces. Level 0 selects the default.
type Zlib struct {
	Level int
}

func (Zlib) Name() string  { return NameZlib }
func (Zlib) Magic() []byte { return gzipMagic }

func (Zlib) Reader(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	return zr, nil
}

func (c Zlib) Writer(w io.Writer) (io.WriteCloser, error) {
	level := c.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}
	zw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	return zw, nil
}

// Bzip2 uses the dsnet implementation, which unlike compress/bzip2 can
// also write. Level 0 selects the default.
type Bzip2 struct {
	Level int
}

func (Bzip2) Name() string  { return NameBzip2 }
func (Bzip2) Magic() []byte { return bzip2Magic }

func (Bzip2) Reader(r io.Reader) (io.ReadCloser, error) {
	br, err := bzip2.NewReader(r, nil)
	if err != nil {
		return nil, fmt.Errorf("bzip2 reader: %w", err)
	}
	return br, nil
}

func (c Bzip2) Writer(w io.Writer) (io.WriteCloser, error) {
	level := c.Level
	if level == 0 {
		level = bzip2.DefaultCompression
	}
	bw, err := bzip2.NewWriter(w, &bzip2.WriterConfig{Level: level})
	if err != nil {
		return nil, fmt.Errorf("bzip2 writer: %w", err)
	}
	return bw, nil
}

// Zstd streams zstd frames. Level 0 selects zstd.SpeedDefault.
type Zstd struct {
	Level zstd.EncoderLevel
}

func (Zstd) Name() string  { return NameZstd }
func (Zstd) Magic() []byte { return zstdMagic }

func (Zstd) Reader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	return dec.IOReadCloser(), nil
}

func (c Zstd) Writer(w io.Writer) (io.WriteCloser, error) {
	level := c.Level
	if level == 0 {
		level = zstd.SpeedDefault
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return enc, nil
}

// LZ4 streams the LZ4 frame format.
type LZ4 struct{}

func (LZ4) Name() string  { return NameLZ4 }
func (LZ4) Magic() []byte { return lz4Magic }

func (LZ4) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

func (LZ4) Writer(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

// Snappy streams the framed snappy format.
type Snappy struct{}

func (Snappy) Name() string  { return NameSnappy }
func (Snappy) Magic() []byte { return snappyMagic }

func (Snappy) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(snappy.NewReader(r)), nil
}

func (Snappy) Writer(w io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
