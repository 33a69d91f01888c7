package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"zcas/internal/codec"
	"zcas/internal/config"
	"zcas/internal/digest"
)

type codecInfo struct {
	Name       string `json:"name" yaml:"name"`
	Magic      string `json:"magic,omitempty" yaml:"magic,omitempty"`
	Configured bool   `json:"configured" yaml:"configured"`
}

type codecsView struct {
	Codecs         []codecInfo `json:"codecs" yaml:"codecs"`
	HashAlgorithms []string    `json:"hash_algorithms" yaml:"hash_algorithms"`
}

func newCodecsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "codecs",
		Short: "List supported codecs and hash algorithms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := codec.Builtin()
			configured, _ := reg.Lookup(cfg.Codec)

			view := codecsView{}
			for _, name := range reg.Names() {
				c, err := reg.Lookup(name)
				if err != nil {
					return err
				}
				view.Codecs = append(view.Codecs, codecInfo{
					Name:       name,
					Magic:      hex.EncodeToString(c.Magic()),
					Configured: configured != nil && configured.Name() == name,
				})
			}
			for _, alg := range digest.Algorithms() {
				view.HashAlgorithms = append(view.HashAlgorithms, string(alg))
			}

			if *jsonOutput {
				return writeJSON(view)
			}
			for _, info := range view.Codecs {
				marker := " "
				if info.Configured {
					marker = "*"
				}
				magic := info.Magic
				if magic == "" {
					magic = "-"
				}
				if err := writePlain("%s %-8s %s\n", marker, info.Name, magic); err != nil {
					return err
				}
			}
			return writePlain("hash algorithms: %s\n", joinAlgorithms(digest.Algorithms()))
		},
	}
}
