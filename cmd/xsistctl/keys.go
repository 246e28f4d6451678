package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/xsist-conector/internal/application/keys"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chaves [arquivo]",
		Short: "Extrae las chaves de 44 dígitos de un SPED o archivo de texto (stdin si se omite)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("formato")
			outPath, _ := cmd.Flags().GetString("saida")

			in := io.Reader(cmd.InOrStdin())
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			res, err := keys.NewUseCase().ExtractFromReader(in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			switch format {
			case "txt":
				err = keys.WriteTXT(out, res.Keys)
			case "csv":
				err = keys.WriteCSV(out, res.Keys)
			default:
				return fmt.Errorf("formato desconocido %q (use txt o csv)", format)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d chaves encontradas (codificación %s)\n", len(res.Keys), res.Encoding)
			return nil
		},
	}

	cmd.Flags().StringP("formato", "f", "txt", "Formato de salida (txt, csv)")
	cmd.Flags().StringP("saida", "o", "", "Archivo de salida (stdout si se omite)")

	return cmd
}

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detectar <arquivo.xml>",
		Short: "Detecta la chave y el tipo (NFE/CTE) de un XML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			text, _, err := keys.DecodeText(raw)
			if err != nil {
				return err
			}
			d := keys.NewUseCase().Detect(text)
			if !d.Found {
				return fmt.Errorf("no se encontró una chave válida en %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", d.Key, d.Family)
			return nil
		},
	}
}
