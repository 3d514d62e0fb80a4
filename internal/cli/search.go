package cli

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var searchSummary bool

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the repository index",
	Long: `Search the package repository by name and description.

The query is a regular expression matched case-insensitively against each
package's name and the description of its latest version. Without a query
every package is listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		return runSearch(cmd, query)
	},
}

func runSearch(cmd *cobra.Command, query string) error {
	env, err := loadEnvironment(cmd.Context(), false)
	if err != nil {
		return err
	}

	if query == "" || query == "*" {
		query = ".*"
	}
	pattern, err := regexp.Compile(strings.ToLower(query))
	if err != nil {
		return fmt.Errorf("invalid search pattern: %w", err)
	}

	var results []string
	for name := range env.index {
		meta, err := env.index.MetadataFor(name, "")
		if err != nil {
			continue
		}

		if !pattern.MatchString(strings.ToLower(name)) &&
			!pattern.MatchString(strings.ToLower(meta.Description)) {
			continue
		}

		if searchSummary {
			results = append(results, name)
		} else {
			results = append(results, fmt.Sprintf("%s %s - %s", name, meta.Version, meta.Description))
		}
	}

	sort.Strings(results)
	for _, line := range results {
		fmt.Println(line)
	}

	return nil
}

func init() {
	searchCmd.Flags().BoolVarP(&searchSummary, "summary", "s", false, "print package names only")
}
