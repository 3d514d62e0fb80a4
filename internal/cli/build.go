package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pmt/internal/archive"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build <directory>",
	Short: "Build a distributable package archive",
	Long: `Validate a package directory and produce its tar.gz archive in the
directory's parent.

The directory must contain a pms/ subdirectory with a valid metadata.json.
A data/ payload additionally requires install and remove scripts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(args[0])
	},
}

func runBuild(packageDir string) error {
	info, err := archive.Build(packageDir)
	if err != nil {
		return err
	}

	fmt.Printf("Created package file: %s\n", info.Path)
	fmt.Printf("Hash of package file: %s\n", info.SHA256)
	return nil
}
