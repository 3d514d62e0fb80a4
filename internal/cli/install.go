package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install <package>[=version] [<package>[=version]...]",
	Short: "Install packages with their dependencies",
	Long: `Install one or more packages from the configured repository sources.

Dependencies are resolved against the repository index before anything is
downloaded; packages already on the system that satisfy a dependency are
kept. A version can be pinned with name=version.

Examples:
  pmt install libfoo
  pmt install libfoo=1.2.0 libbar`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(cmd, args)
	},
}

func runInstall(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.Context(), false)
	if err != nil {
		return err
	}
	if err := env.requirePrivilege(); err != nil {
		return err
	}

	for _, arg := range args {
		name, ver := splitPackageArg(arg)
		if err := env.manager.Install(cmd.Context(), name, ver); err != nil {
			return fmt.Errorf("failed to install %s: %w", name, err)
		}
	}

	return nil
}

// splitPackageArg splits "name=version" into its parts; a bare name means
// the latest available version.
func splitPackageArg(arg string) (name, ver string) {
	if idx := strings.IndexByte(arg, '='); idx != -1 {
		return arg[:idx], arg[idx+1:]
	}
	return arg, ""
}
