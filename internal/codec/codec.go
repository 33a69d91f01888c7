// Package codec provides the named compression transforms applied on a
// blob's write path and undone on its read path.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ErrUnknownCodec is returned by Lookup for names that are not registered.
var ErrUnknownCodec = errors.New("unknown codec")

// Codec provides compression and decompression for stored blobs.
type Codec interface {
	// Name returns the identifier used in configuration and addresses.
	Name() string
	// Reader wraps r to decompress data read from it. Closing the
	// returned reader does not close r.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it. Close flushes the
	// compressed stream; it does not close w.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Magic returns the leading bytes of every stream the codec writes,
	// or nil when the format has no signature.
	Magic() []byte
}

// Registry maps codec names to codecs. It is built explicitly and handed
// to the storage; nothing registers itself globally.
type Registry struct {
	codecs  map[string]Codec
	aliases map[string]string
}

// NewRegistry returns a registry holding the given codecs.
func NewRegistry(codecs ...Codec) (*Registry, error) {
	r := &Registry{
		codecs:  make(map[string]Codec, len(codecs)),
		aliases: map[string]string{},
	}
	for _, c := range codecs {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds c under its name. Registering a name twice is an error.
func (r *Registry) Register(c Codec) error {
	if c == nil {
		return fmt.Errorf("codec is required")
	}
	name := normalizeName(c.Name())
	if name == "" {
		return fmt.Errorf("codec name is required")
	}
	if _, ok := r.codecs[name]; ok {
		return fmt.Errorf("codec %q already registered", name)
	}
	if _, ok := r.aliases[name]; ok {
		return fmt.Errorf("codec %q already registered as alias", name)
	}
	r.codecs[name] = c
	return nil
}

// Alias makes alias resolve to the registered codec name.
func (r *Registry) Alias(alias, name string) error {
	alias = normalizeName(alias)
	name = normalizeName(name)
	if alias == "" {
		return fmt.Errorf("alias is required")
	}
	if _, ok := r.codecs[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	if _, ok := r.codecs[alias]; ok {
		return fmt.Errorf("alias %q shadows a codec", alias)
	}
	r.aliases[alias] = name
	return nil
}

// Lookup resolves a codec name or alias.
func (r *Registry) Lookup(name string) (Codec, error) {
	key := normalizeName(name)
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	c, ok := r.codecs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
	return c, nil
}

// Names returns the registered codec names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.codecs))
	for name := range r.codecs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Detect reports which registered codec wrote a stream starting with
// header. Codecs without a signature are never detected.
func (r *Registry) Detect(header []byte) (Codec, bool) {
	var (
		best    Codec
		bestLen int
	)
	for _, c := range r.codecs {
		magic := c.Magic()
		if len(magic) == 0 || len(magic) <= bestLen {
			continue
		}
		if bytes.HasPrefix(header, magic) {
			best, bestLen = c, len(magic)
		}
	}
	return best, best != nil
}

// MaxMagicLen returns the longest signature among registered codecs.
func (r *Registry) MaxMagicLen() int {
	longest := 0
	for _, c := range r.codecs {
		if n := len(c.Magic()); n > longest {
			longest = n
		}
	}
	return longest
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
