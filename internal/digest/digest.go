// Package digest computes the content hashes recorded for imported files.
// Every hash is taken over the original, uncompressed bytes.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names the primary content hash. The primary hash decides a
// blob's address, so it must not change for an existing storage root.
type Algorithm string

const (
	SHA1    Algorithm = "sha1"
	SHA256  Algorithm = "sha256"
	BLAKE2b Algorithm = "blake2b"
	BLAKE3  Algorithm = "blake3"

	Default = SHA1
)

var algorithms = []Algorithm{SHA1, SHA256, BLAKE2b, BLAKE3}

// Algorithms returns every supported primary algorithm.
func Algorithms() []Algorithm {
	out := make([]Algorithm, len(algorithms))
	copy(out, algorithms)
	return out
}

// ParseAlgorithm parses an algorithm name. An empty name selects Default.
func ParseAlgorithm(name string) (Algorithm, error) {
	value := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if value == "" {
		return Default, nil
	}
	for _, alg := range algorithms {
		if alg == value {
			return alg, nil
		}
	}
	return "", fmt.Errorf("unknown hash algorithm: %q", name)
}

// New returns a fresh hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case BLAKE2b:
		// New256 only fails for keys longer than 64 bytes.
		h, _ := blake2b.New256(nil)
		return h
	case BLAKE3:
		return blake3.New()
	default:
		return sha1.New()
	}
}

// HexLen returns the length of the algorithm's hex-encoded digest.
func (a Algorithm) HexLen() int {
	return a.New().Size() * 2
}

// Sum is the identity of one piece of content.
type Sum struct {
	Algorithm Algorithm
	Hash      string
	MD5       string
	Size      int64
}

// Reader hashes everything read from r with the primary algorithm and
// MD5 in a single pass.
func Reader(r io.Reader, alg Algorithm) (Sum, error) {
	primary := alg.New()
	secondary := md5.New()
	n, err := io.Copy(io.MultiWriter(primary, secondary), r)
	if err != nil {
		return Sum{}, err
	}
	return Sum{
		Algorithm: alg,
		Hash:      hex.EncodeToString(primary.Sum(nil)),
		MD5:       hex.EncodeToString(secondary.Sum(nil)),
		Size:      n,
	}, nil
}

// File hashes the file at path.
func File(path string, alg Algorithm) (Sum, error) {
	f, err := os.Open(path)
	if err != nil {
		return Sum{}, err
	}
	defer f.Close()

	sum, err := Reader(f, alg)
	if err != nil {
		return Sum{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

// ValidHex reports whether value is a lowercase hex digest of the
// algorithm's length.
func (a Algorithm) ValidHex(value string) bool {
	if len(value) != a.HexLen() {
		return false
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
