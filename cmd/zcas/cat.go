package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"zcas/internal/blobstore"
	"zcas/internal/config"
)

func newCatCmd(cfg *config.Config) *cobra.Command {
	var (
		relative  string
		localCopy bool
	)

	cmd := &cobra.Command{
		Use:   "cat [<hash>]",
		Short: "Write the decompressed content of a blob to stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (relative != "") {
				return errors.New("pass either a content hash or --path")
			}
			if localCopy && relative != "" {
				return errors.New("--local-copy requires a content hash")
			}

			return withStore(cfg, func(cas *blobstore.LocalCAS) error {
				ctx := cmd.Context()
				if localCopy {
					path, ok, err := cas.CreateTemporaryLocalCopy(ctx, args[0])
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("blob not found: %s", args[0])
					}
					return writePlain("%s\n", path)
				}

				var (
					stream *blobstore.Stream
					ok     bool
					err    error
					ref    string
				)
				if relative != "" {
					ref = relative
					stream, ok, err = cas.OpenByRelativePath(ctx, relative)
				} else {
					ref = args[0]
					stream, ok, err = cas.OpenByHash(ctx, ref)
				}
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("blob not found: %s", ref)
				}
				defer stream.Close()

				if _, err := io.Copy(outputWriter, stream); err != nil {
					return fmt.Errorf("read %s: %w", stream.URI(), err)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&relative, "path", "", "blob path relative to the storage root")
	cmd.Flags().BoolVar(&localCopy, "local-copy", false, "write a decompressed temporary copy and print its path")

	return cmd
}
