package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPurgeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Borra refresh tokens y secretos vencidos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := opts.buildApp(ctx)
			if err != nil {
				return err
			}
			defer func() {
				cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				_ = a.Close(cctx)
			}()

			tokens, err := a.Service.Ledger().PurgeExpired(ctx)
			if err != nil {
				return fmt.Errorf("purge refresh tokens: %w", err)
			}
			secrets, err := a.Service.Secrets().PurgeExpired(ctx)
			if err != nil {
				return fmt.Errorf("purge secrets: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d refresh tokens, %d one-time secrets\n", tokens, secrets)
			return nil
		},
	}
}
