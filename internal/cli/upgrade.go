package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// upgradeCmd represents the upgrade command
var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade installed packages to their latest versions",
	Long: `Replace every installed package that the repository index carries a
newer version of. Each upgrade removes the installed version and installs
the latest one.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpgrade(cmd)
	},
}

func runUpgrade(cmd *cobra.Command) error {
	env, err := loadEnvironment(cmd.Context(), false)
	if err != nil {
		return err
	}
	if err := env.requirePrivilege(); err != nil {
		return err
	}

	before, err := env.manager.Ledger.AllInstalled()
	if err != nil {
		return err
	}

	result, err := env.manager.Upgrade(cmd.Context())
	if err != nil {
		return err
	}

	var upgraded []string
	for name, ver := range result {
		if before[name] != ver {
			upgraded = append(upgraded, name)
		}
	}

	if len(upgraded) == 0 {
		if !quiet {
			fmt.Println("All packages are up to date")
		}
		return nil
	}

	if !quiet {
		sort.Strings(upgraded)
		for _, name := range upgraded {
			fmt.Printf("Upgraded %s to %s\n", name, result[name])
		}
	}

	return nil
}
