package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"zcas/internal/blobstore"
	"zcas/internal/config"
	"zcas/internal/registry"
)

func openStore(cfg *config.Config) (*blobstore.LocalCAS, error) {
	fileMode, err := cfg.FileModeValue()
	if err != nil {
		return nil, err
	}
	dirMode, err := cfg.DirModeValue()
	if err != nil {
		return nil, err
	}
	return blobstore.NewLocalCAS(cfg.StorageRoot, cfg.Codec,
		blobstore.WithHashAlgorithm(cfg.HashAlgorithm),
		blobstore.WithPermissions(fileMode, dirMode),
		blobstore.WithLogger(slog.Default()),
	)
}

func openRegistry(cfg *config.Config) (*registry.Registry, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	return registry.Open(cfg.DBPath)
}

func withStore(cfg *config.Config, fn func(*blobstore.LocalCAS) error) error {
	cas, err := openStore(cfg)
	if err != nil {
		return err
	}
	return fn(cas)
}

func withStoreAndRegistry(cfg *config.Config, fn func(*blobstore.LocalCAS, *registry.Registry) error) error {
	cas, err := openStore(cfg)
	if err != nil {
		return err
	}
	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	defer reg.Close()
	return fn(cas, reg)
}

func withRegistry(cfg *config.Config, fn func(*registry.Registry) error) error {
	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	defer reg.Close()
	return fn(reg)
}
