package cli

import (
	"github.com/spf13/cobra"

	"cohort2sql-go/internal/render"
)

func newDashboardCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard panels for the selected persona",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rt, err := open(cmd.Context(), opts, out)
			if err != nil {
				return err
			}
			defer rt.Close()

			render.Access(out, rt.session.Access())
			render.Dashboard(out, rt.session.View())
			return nil
		},
	}
}
