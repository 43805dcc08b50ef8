package cli

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/rugi-auth/internal/store/pg"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes de Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				dsn = cfg.Storage.DSN
			}
			if dsn == "" {
				return errors.New("no DSN: use --dsn or storage.dsn")
			}

			ctx := cmd.Context()
			st, err := pg.New(ctx, dsn, pg.Options{MaxConns: 2})
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := st.Migrate(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, v := range res.Applied {
				fmt.Fprintf(out, "applied %04d\n", v)
			}
			fmt.Fprintf(out, "%d applied, %d already up to date (%s)\n", len(res.Applied), len(res.Skipped), res.Duration)
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "DSN de Postgres (default: storage.dsn)")
	return cmd
}
