package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"pmt/internal/config"
)

// registryCmd represents the registry command group
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage publish registries",
	Long: `Manage registry configurations for publishing packages.

Registries are the servers 'pmt publish' uploads to. Repository sources
for installing packages are configured separately in the sources list.`,
}

// registryAddCmd adds a new registry
var registryAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add a new registry",
	Long: `Add a new registry configuration.

Examples:
  pmt registry add local http://localhost:8080
  pmt registry add public https://packages.example.com`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRegistryAdd(args[0], args[1])
	},
}

// registryListCmd lists configured registries
var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured registries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRegistryList()
	},
}

// registryUseCmd sets the active registry
var registryUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set active registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRegistryUse(args[0])
	},
}

// registryRemoveCmd removes a registry
var registryRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRegistryRemove(args[0])
	},
}

func runRegistryAdd(name, url string) error {
	cfg, err := config.LoadCLI()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Registries[name] = config.Registry{URL: url}

	// First registry becomes the active one.
	if cfg.Current == "" {
		cfg.Current = name
	}

	if err := config.SaveCLI(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✅ Added registry '%s'\n", name)
	fmt.Printf("🌐 URL: %s\n", url)
	if cfg.Current == name {
		fmt.Printf("⭐ Set as active registry\n")
	}
	fmt.Printf("💡 Use 'pmt auth login' to authenticate with this registry\n")

	return nil
}

func runRegistryList() error {
	cfg, err := config.LoadCLI()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if len(cfg.Registries) == 0 {
		fmt.Printf("No registries configured.\n")
		fmt.Printf("Add a registry with: pmt registry add <name> <url>\n")
		return nil
	}

	names := make([]string, 0, len(cfg.Registries))
	for name := range cfg.Registries {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		reg := cfg.Registries[name]
		marker := "  "
		if cfg.Current == name {
			marker = "* "
		}

		fmt.Printf("%s%s\n", marker, name)
		fmt.Printf("    URL: %s\n", reg.URL)
		if reg.JWTToken != "" {
			fmt.Printf("    JWT Token: [configured]\n")
		}
		fmt.Printf("\n")
	}

	if cfg.Current != "" {
		fmt.Printf("* = active registry\n")
	}

	return nil
}

func runRegistryUse(name string) error {
	cfg, err := config.LoadCLI()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, exists := cfg.Registries[name]; !exists {
		return fmt.Errorf("registry '%s' not found. Use 'pmt registry list' to see available registries", name)
	}

	cfg.Current = name

	if err := config.SaveCLI(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✅ Set '%s' as active registry\n", name)
	fmt.Printf("🌐 URL: %s\n", cfg.Registries[name].URL)

	return nil
}

func runRegistryRemove(name string) error {
	cfg, err := config.LoadCLI()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if _, exists := cfg.Registries[name]; !exists {
		return fmt.Errorf("registry '%s' not found. Use 'pmt registry list' to see available registries", name)
	}

	url := cfg.Registries[name].URL
	delete(cfg.Registries, name)

	if cfg.Current == name {
		cfg.Current = ""
		fmt.Printf("⚠️  Removed active registry. Use 'pmt registry use' to set a new active registry.\n")
	}

	if err := config.SaveCLI(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✅ Removed registry '%s'\n", name)
	fmt.Printf("🌐 URL was: %s\n", url)

	return nil
}

func init() {
	registryCmd.AddCommand(registryAddCmd)
	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryUseCmd)
	registryCmd.AddCommand(registryRemoveCmd)
}
