package cli

import (
	"context"
	"fmt"
	"os"

	"pmt/internal/config"
	"pmt/internal/manager"
	"pmt/internal/registry"
	"pmt/internal/repo"
	"pmt/internal/scripts"
	"pmt/internal/status"
)

// environment is everything a command needs to operate on the local system
type environment struct {
	cfg      config.CLIConfig
	paths    config.Paths
	index    repo.Index
	registry *registry.FileRegistry
	manager  *manager.Manager
}

// loadEnvironment builds the command environment. regenerate forces a fresh
// fetch of every source index instead of using the local cache.
func loadEnvironment(ctx context.Context, regenerate bool) (*environment, error) {
	cfg, err := config.LoadCLI()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	paths := config.NewPaths(dataDir)
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory %s: %w", dataDir, err)
	}

	logf := func(format string, args ...any) {
		if !quiet {
			fmt.Printf(format+"\n", args...)
		}
	}

	fetcher := repo.NewFetcher()
	index, err := repo.Sync(ctx, fetcher, cfg.Sources, paths.IndexCachePath, regenerate, logf)
	if err != nil {
		return nil, err
	}

	systemRegistry := registry.New(paths.RegistryPath)

	return &environment{
		cfg:      cfg,
		paths:    paths,
		index:    index,
		registry: systemRegistry,
		manager: &manager.Manager{
			Index:     index,
			Ledger:    status.NewLedger(paths.StatusPath),
			Paths:     paths,
			Fetch:     fetcher,
			Scripts:   scripts.NewExecRunner(),
			Registry:  systemRegistry,
			In:        os.Stdin,
			Out:       os.Stdout,
			Quiet:     quiet,
			AssumeYes: assumeYes,
		},
	}, nil
}

// requirePrivilege refuses to run mutating commands without write access to
// the system registry.
func (e *environment) requirePrivilege() error {
	if !e.registry.IsPrivileged() {
		return fmt.Errorf("this command requires administrator privileges")
	}
	return nil
}

// getCurrentRegistry returns the current active publish registry
func getCurrentRegistry(cfg config.CLIConfig) (string, config.Registry, error) {
	registryName := cfg.Current

	if registryName == "" {
		return "", config.Registry{}, fmt.Errorf("no active registry configured. Use 'pmt registry add' to add one")
	}

	reg, exists := cfg.Registries[registryName]
	if !exists {
		return "", config.Registry{}, fmt.Errorf("active registry '%s' not found", registryName)
	}

	return registryName, reg, nil
}

// getEffectiveToken returns the token to use for API calls
func getEffectiveToken(reg config.Registry) (string, error) {
	if reg.JWTToken != "" {
		if verbose {
			fmt.Printf("Using JWT token from registry config (length: %d chars)\n", len(reg.JWTToken))
		}
		return reg.JWTToken, nil
	}
	return "", fmt.Errorf("no authentication token available. Use 'pmt auth login' to authenticate")
}
