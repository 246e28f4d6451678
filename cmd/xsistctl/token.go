package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/xsist-conector/pkg/jwt"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite un Bearer token para la API local (requiere HTTP_AUTH_SECRET)",
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, _ := cmd.Flags().GetString("cliente")
			minutes, _ := cmd.Flags().GetInt("minutos")

			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.HTTP.AuthSecret == "" {
				return errors.New("HTTP_AUTH_SECRET no está definido: la API local no exige token")
			}
			tok, err := jwt.Generate(cfg.HTTP.AuthSecret, clientID, cfg.HTTP.AuthIssuer, minutes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringP("cliente", "c", "extension-chrome", "Identificador del cliente")
	cmd.Flags().IntP("minutos", "m", 60*24*30, "Validez del token en minutos")

	return cmd
}
