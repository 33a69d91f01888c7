package main

import (
	"github.com/spf13/cobra"

	"zcas/internal/blobstore"
	"zcas/internal/config"
	"zcas/internal/registry"
)

func newListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		collection  string
		limit       int
		blobs       bool
		collections bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if blobs {
				return withStore(cfg, func(cas *blobstore.LocalCAS) error {
					hashes := []string{}
					if err := cas.Walk(ctx, func(hash string) error {
						hashes = append(hashes, hash)
						return nil
					}); err != nil {
						return err
					}
					if *jsonOutput {
						return writeJSON(hashes)
					}
					for _, hash := range hashes {
						if err := writePlain("%s\n", hash); err != nil {
							return err
						}
					}
					return nil
				})
			}

			return withRegistry(cfg, func(reg *registry.Registry) error {
				if collections {
					names, err := reg.Collections(ctx)
					if err != nil {
						return err
					}
					if names == nil {
						names = []string{}
					}
					if *jsonOutput {
						return writeJSON(names)
					}
					for _, name := range names {
						if err := writePlain("%s\n", name); err != nil {
							return err
						}
					}
					return nil
				}

				resources, err := reg.List(ctx, collection, limit)
				if err != nil {
					return err
				}
				if resources == nil {
					resources = []registry.Resource{}
				}
				if *jsonOutput {
					return writeJSON(resources)
				}
				return writeResourceList(resources)
			})
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "only list resources in this collection")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of resources (0 for all)")
	cmd.Flags().BoolVar(&blobs, "blobs", false, "list stored blob hashes instead of resources")
	cmd.Flags().BoolVar(&collections, "collections", false, "list collection names")
	cmd.MarkFlagsMutuallyExclusive("blobs", "collections")

	return cmd
}
