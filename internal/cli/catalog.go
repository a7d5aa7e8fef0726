package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cohort2sql-go/internal/catalog"
	"cohort2sql-go/internal/render"
)

// 数据目录内嵌在程序中，不需要数据库连接
func newCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [table...]",
		Short: "Show the tables and columns questions can refer to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := catalog.Default()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				render.Catalog(cmd.OutOrStdout(), cat)
				return nil
			}

			tables := make([]catalog.Table, 0, len(args))
			for _, name := range args {
				t, ok := cat.Table(name)
				if !ok {
					return fmt.Errorf("unknown table %q, known tables: %s", name, strings.Join(cat.TableNames(), ", "))
				}
				tables = append(tables, t)
			}
			render.Tables(cmd.OutOrStdout(), tables)
			return nil
		},
	}
}
