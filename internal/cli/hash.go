package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/dbassert"
)

func newHashCommand() *cobra.Command {
	cfg := dbassert.Config{}
	cmd := &cobra.Command{
		Use:   "hash --driver <postgres|mysql|sqlite3> --dsn <dsn> <table...>",
		Short: "Print the content hash of database tables",
		Long: `Hash prints the hash the unchanged-tables assertion compares, one
table per line. Run it before and after a manual API call to see what a
rejected request touched.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			h, err := dbassert.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			for _, table := range args {
				sum, err := h.TableHash(ctx, table)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", table, sum)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.Driver, "driver", dbassert.DriverPostgres, "database driver")
	cmd.Flags().StringVar(&cfg.DSN, "dsn", "", "data source name")
	_ = cmd.MarkFlagRequired("dsn")
	return cmd
}
