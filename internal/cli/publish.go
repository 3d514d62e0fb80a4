package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"pmt/internal/archive"
	"pmt/internal/client"
	"pmt/internal/config"
	"pmt/internal/metadata"
)

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish <directory>",
	Short: "Build a package and upload it to the active registry",
	Long: `Build the package in the given directory and upload the archive with
its metadata document to the active registry.

Requires an authentication token; use 'pmt auth login' first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPublish(cmd, args[0])
	},
}

func runPublish(cmd *cobra.Command, packageDir string) error {
	cfg, err := config.LoadCLI()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registryName, reg, err := getCurrentRegistry(cfg)
	if err != nil {
		return err
	}
	token, err := getEffectiveToken(reg)
	if err != nil {
		return err
	}

	info, err := archive.Build(packageDir)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	metadataPath := filepath.Join(packageDir, archive.ScriptsDir, metadata.FileName)

	if verbose {
		fmt.Printf("Registry: %s (%s)\n", registryName, reg.URL)
		fmt.Printf("Archive: %s\n", info.Path)
	}

	fmt.Printf("🚀 Publishing %s to %s...\n", filepath.Base(info.Path), reg.URL)
	result, err := client.New(reg.URL, token).Publish(cmd.Context(), metadataPath, info.Path)
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	fmt.Printf("✅ Published %s\n", result.Name)
	fmt.Printf("📌 Version: %s\n", result.Version)
	fmt.Printf("🔒 SHA256: %s\n", result.SHA256)

	return nil
}
