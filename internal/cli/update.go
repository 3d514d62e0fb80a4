package cli

import (
	"github.com/spf13/cobra"
)

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Refresh the repository index",
	Long: `Fetch every configured source's package index, merge them in source
order and rewrite the local cache.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := loadEnvironment(cmd.Context(), true)
		return err
	},
}
