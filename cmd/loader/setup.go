package main

import (
	"fmt"
	"path/filepath"

	"bearloader/internal/config"
	"bearloader/internal/infrastructure"
	"bearloader/internal/keyauth"
	"bearloader/internal/security"
	"bearloader/internal/storage"
)

// loaderApp holds the wired components for one command invocation
type loaderApp struct {
	cfg    *config.Config
	prefs  *storage.Prefs
	client *keyauth.Client
}

// newLoaderApp builds the client stack from configuration and flags.
// The returned cleanup must run before process exit; it waits for
// background work and flushes the log file.
func newLoaderApp() (*loaderApp, func(), error) {
	cfg, err := config.Load(rootArgs.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	if rootArgs.dataDir != "" {
		cfg.Storage.DataDir = rootArgs.dataDir
	}
	if rootArgs.devMode {
		cfg.DevMode = true
	}

	paths, err := config.GetPaths(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	if !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = filepath.Join(paths.DataDir, cfg.Logging.FilePath)
	}
	if _, err := infrastructure.InitializeLogger(cfg.Logging); err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	prefs, err := storage.Open(paths.PrefsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening preferences: %w", err)
	}

	hwid := security.NewFingerprintManager()
	keystore := security.NewKeystore(paths.KeyFile, hwid)
	sessions := security.NewSessionStore(keystore, prefs)

	client, err := keyauth.NewClient(cfg, keyauth.Dependencies{
		Store:       sessions,
		Credentials: storage.NewCredentials(prefs),
		Hardware:    hwid,
		Prefs:       prefs,
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		client.Close()
		infrastructure.CloseLogger()
	}

	return &loaderApp{cfg: cfg, prefs: prefs, client: client}, cleanup, nil
}
