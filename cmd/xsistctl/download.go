package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jhoicas/xsist-conector/internal/application/connector"
	"github.com/jhoicas/xsist-conector/internal/application/dto"
	"github.com/jhoicas/xsist-conector/internal/application/retrieval"
	"github.com/jhoicas/xsist-conector/internal/infrastructure/localstore"
	infrapdf "github.com/jhoicas/xsist-conector/internal/infrastructure/pdf"
	infsefaz "github.com/jhoicas/xsist-conector/internal/infrastructure/sefaz"
)

func downloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baixar <chave>",
		Short: "Descarga el XML de una chave con el certificado guardado en el conector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			family, _ := cmd.Flags().GetString("tipo")
			outPath, _ := cmd.Flags().GetString("saida")

			svc, err := newDownloadService()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			resp := svc.Download(ctx, dto.DownloadRequest{Chave: args[0], Tipo: family})
			if !resp.OK {
				return fmt.Errorf("%s: %s", resp.Resultado, resp.Msg)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), resp.Msg)
			if outPath == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.XML)
				return err
			}
			return os.WriteFile(outPath, []byte(resp.XML), 0o644)
		},
	}

	cmd.Flags().StringP("tipo", "t", "NFE", "Tipo de documento (NFE, CTE)")
	cmd.Flags().StringP("saida", "o", "", "Archivo de salida (stdout si se omite)")

	return cmd
}

// newDownloadService servicio de descarga sin historial ni caché: solo el
// certificado guardado en el directorio del conector.
func newDownloadService() (*connector.Service, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	endpoints := retrieval.DefaultEndpoints()
	if cfg.SEFAZ.DistURLProduction != "" {
		endpoints.Production = cfg.SEFAZ.DistURLProduction
	}
	if cfg.SEFAZ.DistURLStaging != "" {
		endpoints.Staging = cfg.SEFAZ.DistURLStaging
	}
	orchestrator := retrieval.NewOrchestrator(
		infsefaz.NewRequestBuilder(),
		infsefaz.NewSOAPClient(infsefaz.WithTimeout(cfg.SEFAZ.Timeout)),
		infsefaz.NewResponseParser(),
		endpoints, log,
	)
	svc := connector.NewService(connector.Deps{
		Fetcher: orchestrator,
		Store:   localstore.New(cfg.Store.Dir),
		Log:     log,
	})
	return svc, nil
}

func pdfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf <arquivo.xml>",
		Short: "Genera el DANFE/DACTE simplificado de un XML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath, _ := cmd.Flags().GetString("saida")
			if outPath == "" {
				return errors.New("indique el archivo de salida con --saida")
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			svc := connector.NewService(connector.Deps{Renderer: infrapdf.NewMarotoRenderer()})
			pdf, err := svc.RenderPDF(cmd.Context(), string(raw))
			if err != nil {
				return err
			}
			return os.WriteFile(outPath, pdf, 0o644)
		},
	}

	cmd.Flags().StringP("saida", "o", "", "Archivo PDF de salida")

	return cmd
}
