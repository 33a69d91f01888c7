package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"zcas/internal/blobstore"
	"zcas/internal/format"
	"zcas/internal/registry"
)

var (
	outputFormatter format.Formatter = format.JSONFormatter{}
	outputWriter    io.Writer        = os.Stdout
)

func writeJSON(payload any) error {
	return outputFormatter.Write(outputWriter, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(outputWriter, format, args...)
	return err
}

func writeResourceList(resources []registry.Resource) error {
	for _, res := range resources {
		if err := writePlain("%s\n", formatResourceLine(res)); err != nil {
			return err
		}
	}
	return nil
}

func writeResourceDetail(res registry.Resource) error {
	lines := []string{
		fmt.Sprintf("id: %s", res.ID),
		fmt.Sprintf("content_hash: %s", res.ContentHash),
		fmt.Sprintf("hash_algorithm: %s", res.HashAlgorithm),
		fmt.Sprintf("md5: %s", res.MD5),
		fmt.Sprintf("size: %s (%d bytes)", humanize.IBytes(uint64(res.Size)), res.Size),
		fmt.Sprintf("collection: %s", res.Collection),
		fmt.Sprintf("codec: %s", res.Codec),
		fmt.Sprintf("relative_path: %s", res.RelativePath),
		fmt.Sprintf("created_at: %s", formatTime(res.CreatedAt)),
	}
	if res.Filename != "" {
		lines = append(lines, fmt.Sprintf("filename: %s", res.Filename))
	}
	if res.MediaType != "" {
		lines = append(lines, fmt.Sprintf("media_type: %s", res.MediaType))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatResourceLine(res registry.Resource) string {
	name := res.Filename
	if name == "" {
		name = "-"
	}
	return fmt.Sprintf("%s %s %8s [%s] %s", res.ID, res.ContentHash, humanize.IBytes(uint64(res.Size)), res.Collection, name)
}

func formatImportLine(desc blobstore.ImportDescriptor, source string) string {
	state := "stored"
	if desc.Deduplicated {
		state = "deduplicated"
	}
	return fmt.Sprintf("%s %s %s (%s, %s)", state, source, desc.ContentHash, humanize.IBytes(uint64(desc.Size)), desc.Codec)
}

func formatVerifyLine(result blobstore.VerifyResult) string {
	line := fmt.Sprintf("%-14s %s", result.Status, result.ContentHash)
	if result.StoredBytes > 0 {
		line += fmt.Sprintf(" %s stored", humanize.IBytes(uint64(result.StoredBytes)))
	}
	if result.Detail != "" {
		line += ": " + result.Detail
	}
	return line
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
