// Command xsistctl herramientas de línea de comandos del conector: extracción
// de chaves de archivos SPED, verificación del certificado A1, descarga por
// chave, PDF simplificado y emisión de tokens para la API local.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jhoicas/xsist-conector/pkg/config"
	"github.com/jhoicas/xsist-conector/pkg/logger"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "xsistctl",
		Short:         "xsistctl - utilidades del conector XSist (NF-e / CT-e)",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(certCmd())
	rootCmd.AddCommand(downloadCmd())
	rootCmd.AddCommand(pdfCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig configuración y logger (a stderr) compartidos por los subcomandos.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(logger.Config{Env: "development", Level: cfg.App.LogLevel})
	return cfg, log, nil
}
