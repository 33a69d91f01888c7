package digest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReaderKnownDigests(t *testing.T) {
	tests := []struct {
		alg  Algorithm
		want string
	}{
		{alg: SHA1, want: "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
		{alg: SHA256, want: "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
	}
	for _, tt := range tests {
		sum, err := Reader(strings.NewReader("hello"), tt.alg)
		if err != nil {
			t.Fatalf("hash %s: %v", tt.alg, err)
		}
		if sum.Hash != tt.want {
			t.Fatalf("%s: expected %s, got %s", tt.alg, tt.want, sum.Hash)
		}
		if sum.MD5 != "5d41402abc4b2a76b9719d911017c592" {
			t.Fatalf("%s: unexpected md5 %s", tt.alg, sum.MD5)
		}
		if sum.Size != 5 {
			t.Fatalf("%s: expected size 5, got %d", tt.alg, sum.Size)
		}
	}
}

func TestFileBlake2b(t *testing.T) {
	sum, err := File(filepath.Join("..", "blobstore", "testdata", "in"), BLAKE2b)
	if err != nil {
		t.Fatalf("hash file: %v", err)
	}
	if sum.Hash != "a994fe62761f7f0a4897f490e4372f260ca23cdcec5cd6b74d9a1c318e9f0d75" {
		t.Fatalf("unexpected blake2b digest %s", sum.Hash)
	}
	if sum.Size != 592 {
		t.Fatalf("expected 592 bytes, got %d", sum.Size)
	}
}

func TestBlake3Length(t *testing.T) {
	sum, err := Reader(strings.NewReader("hello"), BLAKE3)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !BLAKE3.ValidHex(sum.Hash) {
		t.Fatalf("expected 64 hex chars, got %q", sum.Hash)
	}
}

func TestFileMissing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing"), SHA1)
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("")
	if err != nil || alg != SHA1 {
		t.Fatalf("expected default sha1, got %q (%v)", alg, err)
	}
	alg, err = ParseAlgorithm(" BLAKE3 ")
	if err != nil || alg != BLAKE3 {
		t.Fatalf("expected blake3, got %q (%v)", alg, err)
	}
	if _, err := ParseAlgorithm("crc32"); err == nil {
		t.Fatal("expected unknown algorithm error")
	}
}

func TestValidHex(t *testing.T) {
	if !SHA1.ValidHex("aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d") {
		t.Fatal("expected valid sha1")
	}
	if SHA1.ValidHex("AAF4C61DDCC5E8A2DABEDE0F3B482CD9AEA9434D") {
		t.Fatal("uppercase must be rejected")
	}
	if SHA1.ValidHex("aaf4") {
		t.Fatal("short digest must be rejected")
	}
	if SHA256.ValidHex("aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d") {
		t.Fatal("sha1 digest is not a valid sha256 digest")
	}
}
