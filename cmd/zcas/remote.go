package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"zcas/internal/api"
	"zcas/internal/config"
)

func newPushCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "push <file> [<file>...]",
		Short: "Upload files to a zcas server",
		Args:  requireAtLeastOneFile,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(cfg.APIURL)
			results := make([]api.ImportResponse, 0, len(args))
			for _, path := range args {
				resp, err := pushFile(cmd, client, path, collection)
				if err != nil {
					return fmt.Errorf("push %s: %w", path, err)
				}
				results = append(results, resp)
			}

			if *jsonOutput {
				return writeJSON(results)
			}
			for i, resp := range results {
				if err := writePlain("%s -> %s\n", formatImportLine(resp.Descriptor, args[i]), resp.Resource.ID); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "default", "collection name recorded with each file")
	return cmd
}

func pushFile(cmd *cobra.Command, client *api.Client, path, collection string) (api.ImportResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return api.ImportResponse{}, err
	}
	defer f.Close()
	return client.Upload(cmd.Context(), f, api.UploadRequest{
		Collection: collection,
		Filename:   filepath.Base(path),
	})
}

func newPullCmd(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pull <hash>",
		Short: "Download a blob from a zcas server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, ok, err := api.NewClient(cfg.APIURL).OpenBlob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("blob not found: %s", args[0])
			}
			defer body.Close()

			if output == "" {
				_, err := io.Copy(outputWriter, body)
				return err
			}
			return writeFileAtomic(output, body)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

// writeFileAtomic copies r into a temp file beside path and renames it
// into place once complete.
func writeFileAtomic(path string, r io.Reader) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
