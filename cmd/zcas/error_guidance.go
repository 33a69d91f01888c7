package main

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"strings"

	"zcas/internal/api"
	"zcas/internal/blobstore"
	"zcas/internal/codec"
	"zcas/internal/digest"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var cfgErr *blobstore.ConfigurationError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Option {
		case "codec":
			lines = append(lines, "hint: run `zcas codecs` to list supported codecs.")
		case "hash_algorithm":
			lines = append(lines, "hint: supported hash algorithms: "+joinAlgorithms(digest.Algorithms())+".")
		}
		lines = append(lines, "hint: fix the value with `zcas config set --global "+cfgErr.Option+" <value>` or the matching ZCAS_* variable.")
		return uniqueLines(lines)
	}

	if errors.Is(err, codec.ErrUnknownCodec) {
		lines = append(lines, "hint: run `zcas codecs` to list supported codecs.")
		return uniqueLines(lines)
	}

	var storageErr *blobstore.StorageError
	if errors.As(err, &storageErr) {
		if errors.Is(err, fs.ErrPermission) {
			lines = append(lines, "hint: check ownership of the storage root or set ZCAS_STORAGE_ROOT to a writable directory.")
		}
		if storageErr.Op == "import" {
			lines = append(lines, "hint: the staged input was left in place; rerun the import once the cause is fixed.")
		}
		if errors.Is(err, blobstore.ErrStagedInBlobTree) {
			lines = append(lines, "hint: the file is already a stored blob; read it with: zcas cat <hash>")
		}
		if errors.Is(err, blobstore.ErrInvalidPath) {
			lines = append(lines, "hint: relative paths must stay inside the storage root.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, blobstore.ErrInvalidHash) {
		lines = append(lines, "hint: content hashes are lowercase hex digests, e.g. the content_hash printed by `zcas import`.")
		return uniqueLines(lines)
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "unauthorized":
			lines = append(lines, "hint: set ZCAS_API_TOKEN to the token the server was started with.")
		case "resource_exhausted":
			lines = append(lines, "hint: the server is busy; retry shortly or upload fewer files at once.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify ZCAS_API_URL points to a zcas server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; increase ZCAS_HTTP_TIMEOUT for large transfers.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a zcas server is running at ZCAS_API_URL.",
			"hint: start one with: zcas srv",
		)
		return uniqueLines(lines)
	}

	if errors.Is(err, context.Canceled) {
		lines = append(lines, "hint: operation was interrupted; staged inputs are preserved.")
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func joinAlgorithms(algs []digest.Algorithm) string {
	names := make([]string, 0, len(algs))
	for _, alg := range algs {
		names = append(names, string(alg))
	}
	return strings.Join(names, ", ")
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
