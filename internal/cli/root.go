// Package cli define los comandos de rugi: server, migraciones, claves y
// tareas de mantenimiento.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dropDatabas3/rugi-auth/internal/app"
	"github.com/dropDatabas3/rugi-auth/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

type rootOptions struct {
	configPath string
	envFile    string
}

// NewRootCmd arma el árbol de comandos. No toca estado global: los tests
// crean uno por caso.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "rugi",
		Short:         "Servidor de autenticación multi-app",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile == "" {
				return nil
			}
			if _, err := os.Stat(opts.envFile); err != nil {
				return nil
			}
			// godotenv no pisa variables ya definidas en el entorno
			if err := godotenv.Load(opts.envFile); err != nil {
				return fmt.Errorf("dotenv %s: %w", opts.envFile, err)
			}
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "rugi version %s\n" .Version}}`)

	defaultConfig := os.Getenv("CONFIG_PATH")
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfig, "ruta a config.yaml (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "archivo .env a cargar si existe")

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newKeysCmd(opts),
		newGenPasswordCmd(),
		newPurgeCmd(opts),
		newAdminCmd(opts),
	)
	return root
}

// Execute corre el CLI y devuelve el exit code.
func Execute(ctx context.Context) int {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		return ExitCodeError
	}
	return ExitCodeSuccess
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.configPath)
}

// buildApp arma el servicio completo para comandos que necesitan storage.
func (o *rootOptions) buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, app.Options{})
}
