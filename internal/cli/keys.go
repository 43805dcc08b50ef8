package cli

import (
	"fmt"
	"path/filepath"

	jwtx "github.com/dropDatabas3/rugi-auth/internal/jwt"
	"github.com/dropDatabas3/rugi-auth/internal/util/atomicwrite"
	"github.com/spf13/cobra"
)

const (
	privateKeyFile = "signing.pem"
	publicKeyFile  = "signing.pub.pem"
)

func newKeysCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Claves de firma RS256",
	}
	cmd.AddCommand(newKeysGenerateCmd(), newKeysJWKSCmd(opts))
	return cmd
}

func newKeysGenerateCmd() *cobra.Command {
	var (
		bits  int
		out   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Genera un par RSA y lo escribe en --out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			privPEM, pubPEM, kid, err := jwtx.GenerateRSAKeyPEM(bits)
			if err != nil {
				return err
			}
			var wopts []atomicwrite.Option
			if !force {
				wopts = append(wopts, atomicwrite.NoClobber())
			}
			privPath := filepath.Join(out, privateKeyFile)
			if err := atomicwrite.WriteFile(privPath, privPEM, 0o600, wopts...); err != nil {
				return err
			}
			pubPath := filepath.Join(out, publicKeyFile)
			if err := atomicwrite.WriteFile(pubPath, pubPEM, 0o644, wopts...); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "kid: %s\n", kid)
			fmt.Fprintf(w, "private: %s\n", privPath)
			fmt.Fprintf(w, "public:  %s\n", pubPath)
			return nil
		},
	}
	cmd.Flags().IntVar(&bits, "bits", 3072, fmt.Sprintf("tamaño de la clave (mínimo %d)", jwtx.MinRSABits))
	cmd.Flags().StringVar(&out, "out", "keys", "directorio destino")
	cmd.Flags().BoolVar(&force, "force", false, "pisar archivos existentes")
	return cmd
}

// jwks imprime el documento que va a servir /.well-known/jwks.json con la
// config actual, útil para verificar una rotación antes de desplegar.
func newKeysJWKSCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "jwks",
		Short: "Imprime el JWKS de la clave configurada",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			src, err := cfg.KeySource()
			if err != nil {
				return err
			}
			km, err := jwtx.Load(src)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(km.JWKSJSON()))
			return err
		},
	}
}
