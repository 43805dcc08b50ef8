package cli

import (
	"fmt"

	"github.com/dropDatabas3/rugi-auth/internal/security/password"
	"github.com/spf13/cobra"
)

func newGenPasswordCmd() *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "gen-password",
		Short: "Genera un password aleatorio que cumple la política por defecto",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := password.GenerateSecurePassword(length)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), pwd)
			return err
		},
	}
	cmd.Flags().IntVar(&length, "length", 16, "largo del password")
	return cmd
}
