package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pmt/internal/archive"
)

var listSummary bool

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packages",
	Long:  `List the packages recorded in the system software registry.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd)
	},
}

func runList(cmd *cobra.Command) error {
	env, err := loadEnvironment(cmd.Context(), false)
	if err != nil {
		return err
	}

	packages, err := env.registry.Installed()
	if err != nil {
		return err
	}
	if len(packages) == 0 {
		fmt.Println("No packages found")
		return nil
	}

	for _, pkg := range packages {
		if listSummary {
			fmt.Printf("%s_%s_%s\n", pkg.Name, pkg.Version, archive.Arch)
			continue
		}
		if pkg.Description != "" {
			fmt.Printf("%s (%s) - %s\n", pkg.Name, pkg.Version, pkg.Description)
		} else {
			fmt.Printf("%s (%s)\n", pkg.Name, pkg.Version)
		}
	}

	return nil
}

func init() {
	listCmd.Flags().BoolVarP(&listSummary, "summary", "s", false, "one package per line in filename form")
}
