package blobstore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHash is returned for content hashes that cannot name a blob.
	ErrInvalidHash = errors.New("invalid content hash")
	// ErrInvalidPath is returned for relative paths outside the storage root.
	ErrInvalidPath = errors.New("invalid relative path")
	// ErrStagedInBlobTree is returned when asked to import a file that
	// already lives among the stored blobs.
	ErrStagedInBlobTree = errors.New("staged file lies inside the blob tree")
)

// ConfigurationError reports a storage option that cannot be used. It is
// returned while the storage is built, never from I/O.
type ConfigurationError struct {
	Option string
	Value  string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("storage option %s=%q: %v", e.Option, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StorageError reports a failed storage operation. During import the
// staged file is left in place, so the caller may retry.
type StorageError struct {
	Op   string
	Path string
	Hash string
	Err  error
}

func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Hash != "" {
		return fmt.Sprintf("%s %s (hash %s): %v", e.Op, e.Path, e.Hash, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsStorageError reports whether err carries a StorageError.
func IsStorageError(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}
