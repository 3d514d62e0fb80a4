package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeForce bool

// removeCmd represents the remove command
var removeCmd = &cobra.Command{
	Use:   "remove <package> [<package>...]",
	Short: "Remove installed packages",
	Long: `Remove one or more installed packages.

Without --force the package's installed dependencies are offered for
removal too. With --force only the named packages are removed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemove(cmd, args)
	},
}

func runRemove(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.Context(), false)
	if err != nil {
		return err
	}
	if err := env.requirePrivilege(); err != nil {
		return err
	}

	for _, name := range args {
		if err := env.manager.Remove(cmd.Context(), name, removeForce); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}

	return nil
}

func init() {
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "skip dependency handling and remove only the named packages")
}
