package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"testing"

	"zcas/internal/api"
	"zcas/internal/blobstore"
	"zcas/internal/codec"
)

func TestFormatCLIError_UnknownCodecGuidance(t *testing.T) {
	err := &blobstore.ConfigurationError{Option: "codec", Value: "brotli", Err: codec.ErrUnknownCodec}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: run `zcas codecs` to list supported codecs.") {
		t.Fatalf("expected codecs guidance, got %v", lines)
	}
	if !containsLine(lines, "hint: fix the value with `zcas config set --global codec <value>` or the matching ZCAS_* variable.") {
		t.Fatalf("expected config guidance, got %v", lines)
	}
}

func TestFormatCLIError_HashAlgorithmGuidance(t *testing.T) {
	err := fmt.Errorf("open store: %w", &blobstore.ConfigurationError{Option: "hash_algorithm", Value: "crc32", Err: errors.New("unsupported")})
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: supported hash algorithms: sha1, sha256, blake2b, blake3.") {
		t.Fatalf("expected algorithm guidance, got %v", lines)
	}
}

func TestFormatCLIError_ImportStorageGuidance(t *testing.T) {
	err := &blobstore.StorageError{Op: "import", Path: "/srv/blobs/a/b/c/d/abcd1", Hash: "abcd1", Err: fs.ErrPermission}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: check ownership of the storage root or set ZCAS_STORAGE_ROOT to a writable directory.") {
		t.Fatalf("expected permission guidance, got %v", lines)
	}
	if !containsLine(lines, "hint: the staged input was left in place; rerun the import once the cause is fixed.") {
		t.Fatalf("expected retry guidance, got %v", lines)
	}
}

func TestFormatCLIError_StagedInBlobTreeGuidance(t *testing.T) {
	err := fmt.Errorf("import x: %w", &blobstore.StorageError{Op: "import", Path: "/srv/blobs/6/a/4/0/6a40", Err: blobstore.ErrStagedInBlobTree})
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: the file is already a stored blob; read it with: zcas cat <hash>") {
		t.Fatalf("expected blob tree guidance, got %v", lines)
	}
}

func TestFormatCLIError_InvalidHashGuidance(t *testing.T) {
	err := fmt.Errorf("cat: %w", blobstore.ErrInvalidHash)
	lines := formatCLIError(err)
	if len(lines) != 2 || lines[0] != err.Error() {
		t.Fatalf("expected message plus one hint, got %v", lines)
	}
}

func TestFormatCLIError_NetworkGuidance(t *testing.T) {
	err := &net.DNSError{Err: "dial tcp: connection refused", Name: "127.0.0.1", IsTemporary: true}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: ensure a zcas server is running at ZCAS_API_URL.") {
		t.Fatalf("expected connectivity guidance, got %v", lines)
	}
	if !containsLine(lines, "hint: start one with: zcas srv") {
		t.Fatalf("expected start guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIAuthGuidance(t *testing.T) {
	err := &api.APIError{Status: 401, Code: "unauthorized", Message: "missing or invalid bearer token"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: set ZCAS_API_TOKEN to the token the server was started with.") {
		t.Fatalf("expected auth guidance, got %v", lines)
	}
}

func TestFormatCLIError_APIUnknownServiceGuidance(t *testing.T) {
	err := &api.APIError{Status: 404, Message: "api error: 404 Not Found"}
	lines := formatCLIError(err)
	if !containsLine(lines, "hint: verify ZCAS_API_URL points to a zcas server.") {
		t.Fatalf("expected api-url guidance, got %v", lines)
	}
}

func TestFormatCLIError_PlainError(t *testing.T) {
	lines := formatCLIError(errors.New("boom"))
	if len(lines) != 1 || lines[0] != "boom" {
		t.Fatalf("expected only the message, got %v", lines)
	}
	if formatCLIError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func containsLine(lines []string, expected string) bool {
	for _, line := range lines {
		if line == expected {
			return true
		}
	}
	return false
}
