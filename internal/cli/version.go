package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cohort2sql-go/internal/config"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := config.DefaultAppInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s, %s)\n", info.Name, info.Version, info.GitCommit, info.GoVersion)
		},
	}
}
