package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	infsefaz "github.com/jhoicas/xsist-conector/internal/infrastructure/sefaz"
)

const passwordEnv = "XSIST_PFX_PASSWORD"

func certCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Operaciones sobre el certificado A1 (.pfx)",
	}
	cmd.AddCommand(certVerifyCmd())
	return cmd
}

func certVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verificar <arquivo.pfx>",
		Short: "Verifica que el .pfx abre con la contraseña y trae llave privada",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			ok, msg := infsefaz.VerifyCertificate(archive, password)
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			if !ok {
				return errors.New("certificado inválido")
			}
			return nil
		},
	}

	cmd.Flags().StringP("senha", "p", "", "Contraseña del .pfx (o "+passwordEnv+"; si no, se pide por terminal)")

	return cmd
}

// readPassword flag --senha, variable de entorno o prompt sin eco.
func readPassword(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("senha"); p != "" {
		return p, nil
	}
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("contraseña requerida: use --senha o %s", passwordEnv)
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Contraseña del certificado: ")
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("leer contraseña: %w", err)
	}
	return string(pw), nil
}
