package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"zcas/internal/blobstore"
	"zcas/internal/config"
	"zcas/internal/registry"
)

// importResult pairs the stored blob with the registry entry made for it.
type importResult struct {
	Source     string                     `json:"source" yaml:"source"`
	Descriptor blobstore.ImportDescriptor `json:"descriptor" yaml:"descriptor"`
	Resource   *registry.Resource         `json:"resource" yaml:"resource"`
}

func newImportCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		collection string
		keep       bool
	)

	cmd := &cobra.Command{
		Use:   "import <file> [<file>...]",
		Short: "Import files into the store",
		Long: "Import files into the store. Each file is hashed, compressed with the configured codec\n" +
			"and recorded in the registry. The input file is consumed unless --keep is set.",
		Args: requireAtLeastOneFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			if collection == "" {
				return errors.New("--collection is required")
			}

			return withStoreAndRegistry(cfg, func(cas *blobstore.LocalCAS, reg *registry.Registry) error {
				results := make([]importResult, 0, len(args))
				for _, path := range args {
					result, err := importFile(cmd.Context(), cas, reg, path, collection, keep)
					if err != nil {
						return fmt.Errorf("import %s: %w", path, err)
					}
					results = append(results, result)
				}

				if *jsonOutput {
					return writeJSON(results)
				}
				for _, result := range results {
					if err := writePlain("%s -> %s\n", formatImportLine(result.Descriptor, result.Source), result.Resource.ID); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "default", "collection name recorded with each file")
	cmd.Flags().BoolVar(&keep, "keep", false, "copy each input to a staged file instead of consuming it")

	return cmd
}

func importFile(ctx context.Context, cas *blobstore.LocalCAS, reg *registry.Registry, path, collection string, keep bool) (importResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return importResult{}, err
	}
	if !info.Mode().IsRegular() {
		return importResult{}, fmt.Errorf("not a regular file")
	}
	mediaType, err := sniffMediaType(path)
	if err != nil {
		return importResult{}, err
	}

	var (
		desc blobstore.ImportDescriptor
		f    *os.File
	)
	if keep {
		f, err = os.Open(path)
		if err != nil {
			return importResult{}, err
		}
		desc, err = cas.ImportReader(ctx, f, collection)
		_ = f.Close()
	} else {
		desc, err = cas.Import(ctx, path, collection)
	}
	if err != nil {
		return importResult{}, err
	}

	res, err := reg.Record(ctx, desc, registry.RecordInput{
		Filename:  filepath.Base(path),
		MediaType: mediaType,
	})
	if err != nil {
		return importResult{}, fmt.Errorf("record: %w", err)
	}
	slog.Debug("imported", "source", path, "id", res.ID, "hash", desc.ContentHash, "deduplicated", desc.Deduplicated)

	return importResult{Source: path, Descriptor: desc, Resource: res}, nil
}

// sniffMediaType reads the leading bytes of path and classifies them.
func sniffMediaType(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	return http.DetectContentType(head[:n]), nil
}
