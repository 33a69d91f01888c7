package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zcas/internal/blobstore"
	"zcas/internal/config"
)

func newVerifyCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [<hash>...]",
		Short: "Check stored blobs against their content hash",
		Long:  "Check stored blobs against their content hash. Without arguments every blob in the store is checked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(cfg, func(cas *blobstore.LocalCAS) error {
				hashes := args
				if len(hashes) == 0 {
					if err := cas.Walk(ctx, func(hash string) error {
						hashes = append(hashes, hash)
						return nil
					}); err != nil {
						return err
					}
				}

				results := make([]blobstore.VerifyResult, 0, len(hashes))
				failed := 0
				for _, hash := range hashes {
					result, err := cas.Verify(ctx, hash)
					if err != nil {
						return err
					}
					if !result.OK() {
						failed++
					}
					results = append(results, result)
				}

				if *jsonOutput {
					if err := writeJSON(results); err != nil {
						return err
					}
				} else {
					for _, result := range results {
						if err := writePlain("%s\n", formatVerifyLine(result)); err != nil {
							return err
						}
					}
				}

				if failed > 0 {
					return fmt.Errorf("%d of %d blobs failed verification", failed, len(results))
				}
				return nil
			})
		},
	}

	return cmd
}
