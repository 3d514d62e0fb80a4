package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"pmt/internal/status"
)

var statusIsInstalled bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <package>",
	Short: "Show a package's installation status",
	Long: `Show the recorded installation status of a package: desired and
current state codes, install and removal dates, and the package metadata
when the repository index carries it.

With --is-installed the command prints nothing and the exit code alone
reports whether the package is currently installed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd, args[0])
	},
}

func runStatus(cmd *cobra.Command, name string) error {
	env, err := loadEnvironment(cmd.Context(), false)
	if err != nil {
		return err
	}

	if statusIsInstalled {
		cmd.SilenceUsage = true
		if _, err := env.manager.Ledger.InstalledVersion(name); err != nil {
			return fmt.Errorf("%s is not installed", name)
		}
		return nil
	}

	records, err := env.manager.Ledger.PackageStatus(name)
	if errors.Is(err, status.ErrNotInstalled) || len(records) == 0 {
		return fmt.Errorf("%s has never been installed or removed on the system", name)
	}
	if err != nil {
		return err
	}

	versions := make([]string, 0, len(records))
	for ver := range records {
		versions = append(versions, ver)
	}
	sort.Strings(versions)

	for _, ver := range versions {
		record := records[ver]

		if meta, err := env.index.MetadataFor(name, ver); err == nil {
			fmt.Printf("Name: %s\n", meta.Name)
			fmt.Printf("Version: %s\n", meta.Version)
			fmt.Printf("Maintainer: %s\n", meta.Maintainer)
			fmt.Printf("Description: %s\n", meta.Description)
			if meta.Homepage != "" {
				fmt.Printf("Homepage: %s\n", meta.Homepage)
			}
			for _, dep := range meta.Dependencies {
				fmt.Printf("Depends: %s\n", dep)
			}
		} else {
			fmt.Printf("Name: %s\n", name)
			fmt.Printf("Version: %s\n", ver)
		}

		fmt.Printf("Desired Status: (%s) %s\n", record.Status.Desired, status.DesiredNames[record.Status.Desired])
		fmt.Printf("Current Status: (%s) %s\n", record.Status.Current, status.CurrentNames[record.Status.Current])

		if record.InstallDate != "" {
			fmt.Printf("Install Date: %s\n", record.InstallDate)
		}
		if record.RemoveDate != "" {
			fmt.Printf("Remove Date: %s\n", record.RemoveDate)
		}
	}

	return nil
}

func init() {
	statusCmd.Flags().BoolVar(&statusIsInstalled, "is-installed", false, "exit-code probe: succeed only when the package is installed")
}
