package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pmt/internal/config"
	"pmt/internal/manager"
	"pmt/internal/registry"
	"pmt/internal/status"
)

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop the temp workspace and the cached index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClean()
	},
}

// runClean builds a minimal manager by hand: cleaning must not depend on a
// fetchable index, that is the thing being thrown away.
func runClean() error {
	cfg, err := config.LoadCLI()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	paths := config.NewPaths(dataDir)

	systemRegistry := registry.New(paths.RegistryPath)
	if !systemRegistry.IsPrivileged() {
		return fmt.Errorf("this command requires administrator privileges")
	}

	m := &manager.Manager{
		Ledger:   status.NewLedger(paths.StatusPath),
		Paths:    paths,
		Registry: systemRegistry,
		Out:      os.Stdout,
		Quiet:    quiet,
	}
	return m.Clean()
}
