package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/bootstrap"
	"github.com/spf13/cobra"
)

func newAdminCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Tareas de administración",
	}
	cmd.AddCommand(newAdminSeedCmd(opts))
	return cmd
}

func newAdminSeedCmd(opts *rootOptions) *cobra.Command {
	var (
		email          string
		appName        string
		role           string
		nonInteractive bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Crea (o completa) el primer superadmin",
		Long: `Crea la app de administración, el usuario y le asigna un rol superadmin.
El password se toma de RUGI_ADMIN_PASSWORD o se pide por terminal.`,
		Args: cobra.NoArgs,
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

			res, err := bootstrap.SeedAdmin(ctx, bootstrap.AdminSeedConfig{
				Repo:          a.Repo,
				Hasher:        a.Hasher,
				Policy:        a.Config.PasswordPolicy(),
				AppName:       appName,
				AdminEmail:    email,
				AdminPassword: os.Getenv("RUGI_ADMIN_PASSWORD"),
				Role:          role,
				SkipPrompt:    nonInteractive,
				In:            cmd.InOrStdin(),
				Out:           cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "user:      %s (%s) created=%t\n", res.User.ID, res.User.Email, res.UserCreated)
			fmt.Fprintf(w, "app:       %s created=%t\n", res.App.ID, res.AppCreated)
			fmt.Fprintf(w, "client_id: %s\n", res.App.ClientID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email del admin")
	cmd.Flags().StringVar(&appName, "app", bootstrap.DefaultAppName, "nombre de la app de administración")
	cmd.Flags().StringVar(&role, "role", "owner", "rol superadmin a asignar (owner o admin)")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "fallar en vez de preguntar")
	return cmd
}
