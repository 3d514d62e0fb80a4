package cli

import (
	"github.com/spf13/cobra"
)

var (
	quiet     bool
	assumeYes bool
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pmt",
	Short: "PMT - package management tool",
	Long: `PMT installs, removes and upgrades software packages from configured
repository sources, resolving dependencies and tracking installation state
in a status ledger.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "assume-yes", "y", false, "answer yes to all prompts")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(registryCmd)
}
