package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"zcas/internal/blobstore"
	"zcas/internal/codec"
	"zcas/internal/config"
	"zcas/internal/registry"
	"zcas/internal/server"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Serve the store over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}

			logger := slog.Default()
			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withStoreAndRegistry(cfg, func(cas *blobstore.LocalCAS, reg *registry.Registry) error {
				logger.Info("serving store", "root", cas.Root(), "codec", cas.Codec().Name(), "registry", cfg.DBPath)
				srv := server.New(addr, cas, reg, codec.Builtin().Names(), logger)
				return srv.ListenAndServe(ctx)
			})
		},
	}
}

