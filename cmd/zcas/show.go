package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"zcas/internal/blobstore"
	"zcas/internal/config"
	"zcas/internal/registry"
)

type resourceView struct {
	registry.Resource `yaml:",inline"`
	URI               string `json:"uri" yaml:"uri"`
	StoredCodec       string `json:"stored_codec,omitempty" yaml:"stored_codec,omitempty"`
}

func newShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id|hash> [<id|hash>...]",
		Short: "Show recorded resources by id or content hash",
		Args:  requireAtLeastOneRef,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStoreAndRegistry(cfg, func(cas *blobstore.LocalCAS, reg *registry.Registry) error {
				var views []resourceView
				for _, ref := range args {
					found, err := lookupResources(cmd.Context(), reg, ref)
					if err != nil {
						return err
					}
					if len(found) == 0 {
						return fmt.Errorf("resource not found: %s", ref)
					}
					for _, res := range found {
						view, err := describeResource(cas, res)
						if err != nil {
							return err
						}
						views = append(views, view)
					}
				}

				if *jsonOutput {
					if len(views) == 1 {
						return writeJSON(views[0])
					}
					return writeJSON(views)
				}
				for i, view := range views {
					if i > 0 {
						if err := writePlain("\n"); err != nil {
							return err
						}
					}
					if err := writeResourceDetail(view.Resource); err != nil {
						return err
					}
					if err := writePlain("uri: %s\n", view.URI); err != nil {
						return err
					}
					if view.StoredCodec != "" && view.StoredCodec != view.Codec {
						if err := writePlain("stored_codec: %s\n", view.StoredCodec); err != nil {
							return err
						}
					}
				}
				return nil
			})
		},
	}

	return cmd
}

// lookupResources resolves ref as a resource id first, then as a content hash.
func lookupResources(ctx context.Context, reg *registry.Registry, ref string) ([]registry.Resource, error) {
	res, err := reg.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if res != nil {
		return []registry.Resource{*res}, nil
	}
	return reg.FindByHash(ctx, ref)
}

func describeResource(cas *blobstore.LocalCAS, res registry.Resource) (resourceView, error) {
	view := resourceView{Resource: res}
	addr, err := cas.Address(res.ContentHash)
	if err != nil {
		return view, err
	}
	view.URI = addr.String()
	detected, ok, err := cas.DetectCodec(res.ContentHash)
	if err != nil {
		return view, err
	}
	if ok {
		view.StoredCodec = detected
	}
	return view, nil
}
