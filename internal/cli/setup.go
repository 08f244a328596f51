package cli

import (
	"docsync/internal/blob"
	"docsync/internal/config"
	"docsync/internal/ledger"
)

// loadConfig reads the configuration named by the global --config flag.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

func openLedger(cfg *config.Config) (*ledger.Store, error) {
	store, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	return store, nil
}

func openBlobs(cfg *config.Config) (*blob.FS, error) {
	fs, err := blob.NewFS(cfg.BlobRoot)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open content store", err)
	}
	return fs, nil
}
