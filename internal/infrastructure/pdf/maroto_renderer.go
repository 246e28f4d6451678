// Package pdf genera el DANFE / DACTE simplificado de un XML recuperado.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Emitente + CNPJ       │  DANFE/DACTE + Nº / Série    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  CHAVE DE ACESSO: código de barras + chave en grupos de 4    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  DESTINATÁRIO (NF-e) o REMETENTE/DESTINATÁRIO (CT-e)         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  NF-e: productos | CT-e: componentes del valor + carga       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES + QR (si el XML trae qrCode)                        │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	domsefaz "github.com/jhoicas/xsist-conector/internal/domain/sefaz"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// maxItems tope de líneas de producto impresas; el resto se resume en una fila.
const maxItems = 40

// ── Renderer ──────────────────────────────────────────────────────────────────

// MarotoRenderer genera el PDF simplificado usando Maroto v2.
type MarotoRenderer struct{}

// NewMarotoRenderer construye el renderer.
func NewMarotoRenderer() *MarotoRenderer { return &MarotoRenderer{} }

// Render lee el XML (NF-e o CT-e) y devuelve los bytes del PDF.
func (g *MarotoRenderer) Render(_ context.Context, xmlText string) ([]byte, error) {
	s, err := domsefaz.Summarize(xmlText)
	if err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	return g.RenderSummary(s)
}

// RenderSummary genera el PDF a partir de un resumen ya extraído.
func (g *MarotoRenderer) RenderSummary(s *domsefaz.DocumentSummary) ([]byte, error) {
	title := documentTitle(s.Family)
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(title+" simplificado", true).
		WithAuthor(nonEmpty(s.Issuer.Name, "XSist"), true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(s, title))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(keyRows(s)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	if s.Family == domsefaz.FamilyCTe {
		m.AddRows(partyRow("REMETENTE", s.Sender), partyRow("DESTINATÁRIO", s.Recipient))
		m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
		m.AddRows(componentRows(s)...)
	} else {
		m.AddRows(partyRow("DESTINATÁRIO / REMETENTE", s.Recipient))
		m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
		m.AddRows(itemHeaderRow())
		m.AddRows(itemRows(s.Items)...)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(s))
	m.AddRows(footerRows(s)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func documentTitle(f domsefaz.DocumentFamily) string {
	if f == domsefaz.FamilyCTe {
		return "DACTE"
	}
	return "DANFE"
}

// headerRow: emitente (izq) y número/serie/emisión (der).
func headerRow(s *domsefaz.DocumentSummary, title string) core.Row {
	return row.New(20).Add(
		col.New(7).Add(
			text.New(nonEmpty(s.Issuer.Name, "Emitente não informado"), props.Text{
				Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 1,
			}),
			text.New("CNPJ: "+nonEmpty(formatCNPJ(s.Issuer.TaxID), "-"), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
			text.New(nonEmpty(s.NatureOp, ""), props.Text{
				Size: 8, Top: 14, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(title+" SIMPLIFICADO", props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Nº %s  Série %s", nonEmpty(s.Number, "-"), nonEmpty(s.Series, "-")), props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 7,
			}),
			text.New("Emissão: "+nonEmpty(s.IssuedAt, "-"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// keyRows: código de barras CODE-128 de la chave y la chave en grupos de 4.
func keyRows(s *domsefaz.DocumentSummary) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("CHAVE DE ACESSO", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
		)),
	}
	if s.Key == "" {
		return append(rows, row.New(6).Add(col.New(12).Add(
			text.New("Chave não localizada no XML", props.Text{Size: 8, Color: colorGray}),
		)))
	}
	return append(rows,
		row.New(14).Add(col.New(12).Add(code.NewBar(s.Key.String(), props.Barcode{Percent: 90, Center: true}))),
		row.New(6).Add(col.New(12).Add(
			text.New(strings.Join(splitEvery(s.Key.String(), 4), " "), props.Text{
				Size: 9, Align: align.Center, Top: 1,
			}),
		)),
	)
}

func partyRow(label string, p domsefaz.Party) core.Row {
	return row.New(13).Add(
		col.New(12).Add(
			text.New(label, props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(nonEmpty(p.Name, "-"), props.Text{Style: fontstyle.Bold, Size: 10, Top: 5}),
			text.New("CNPJ/CPF: "+nonEmpty(formatCNPJ(p.TaxID), "-"), props.Text{Size: 8, Top: 10, Color: colorGray}),
		),
	)
}

func itemHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Código", 2, align.Left),
		h("Descrição", 5, align.Left),
		h("Qtd.", 1, align.Right),
		h("Un.", 1, align.Center),
		h("V. Unit.", 1, align.Right),
		h("V. Total", 2, align.Right),
	)
}

// itemRows: una fila por producto, hasta maxItems.
func itemRows(items []domsefaz.SummaryItem) []core.Row {
	shown := items
	if len(shown) > maxItems {
		shown = shown[:maxItems]
	}
	result := make([]core.Row, 0, len(shown)+1)
	for _, it := range shown {
		result = append(result, row.New(6).Add(
			col.New(2).Add(text.New(it.Code, props.Text{Size: 7, Top: 1, Left: 1})),
			col.New(5).Add(text.New(it.Description, props.Text{Size: 7, Top: 1, Left: 1})),
			col.New(1).Add(text.New(it.Quantity.StringFixed(2), props.Text{Size: 7, Align: align.Right, Top: 1})),
			col.New(1).Add(text.New(it.Unit, props.Text{Size: 7, Align: align.Center, Top: 1})),
			col.New(1).Add(text.New(formatBRL(it.UnitValue), props.Text{Size: 7, Align: align.Right, Top: 1})),
			col.New(2).Add(text.New(formatBRL(it.Total), props.Text{Size: 7, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	if extra := len(items) - len(shown); extra > 0 {
		result = append(result, row.New(6).Add(col.New(12).Add(
			text.New(fmt.Sprintf("... e mais %d item(ns)", extra), props.Text{Size: 7, Color: colorGray, Top: 1, Left: 1}),
		)))
	}
	return result
}

// componentRows: componentes del valor de la prestación y datos de la carga (CT-e).
func componentRows(s *domsefaz.DocumentSummary) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("COMPONENTES DO VALOR DA PRESTAÇÃO", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
		)),
	}
	for _, c := range s.Components {
		rows = append(rows, row.New(5).Add(
			col.New(8).Add(text.New(c.Name, props.Text{Size: 8, Left: 1})),
			col.New(4).Add(text.New(formatBRL(c.Value), props.Text{Size: 8, Align: align.Right, Right: 1})),
		))
	}
	rows = append(rows, row.New(10).Add(
		col.New(8).Add(text.New("Produto predominante: "+nonEmpty(s.MainProduct, "-"), props.Text{Size: 8, Top: 3, Left: 1})),
		col.New(4).Add(text.New("Valor da carga: "+formatBRL(s.CargoValue), props.Text{Size: 8, Top: 3, Align: align.Right, Right: 1})),
	))
	return rows
}

func totalsRow(s *domsefaz.DocumentSummary) core.Row {
	label := func(v string) core.Component {
		return text.New(v, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2})
	}
	value := func(v string) core.Component {
		return text.New(v, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	grand := "VALOR TOTAL DA NOTA:"
	if s.Family == domsefaz.FamilyCTe {
		grand = "VALOR TOTAL DA PRESTAÇÃO:"
	}
	return row.New(18).Add(
		col.New(4),
		col.New(5).Add(
			label("Valor dos produtos:"),
			label("Valor do ICMS:"),
			text.New(grand, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 2, Top: 10}),
		),
		col.New(3).Add(
			value("R$ "+formatBRL(s.ProductsTot)),
			value("R$ "+formatBRL(s.ICMSTot)),
			text.New("R$ "+formatBRL(s.Total), props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1, Top: 10}),
		),
	)
}

// footerRows: QR de consulta y leyenda.
func footerRows(s *domsefaz.DocumentSummary) []core.Row {
	legend := "Representação simplificada gerada pelo XSist a partir do XML autorizado. " +
		"Não substitui o " + documentTitle(s.Family) + " oficial."
	if s.QRCode == "" {
		return []core.Row{row.New(10).Add(col.New(12).Add(
			text.New(legend, props.Text{Size: 6.5, Color: colorGray, Top: 3}),
		))}
	}
	return []core.Row{
		row.New(3),
		row.New(40).Add(
			col.New(4).Add(code.NewQr(s.QRCode, props.Rect{Percent: 95, Center: true})),
			col.New(8).Add(
				text.New("Consulte a autenticidade no portal da SEFAZ.", props.Text{Size: 8, Top: 4, Left: 3, Color: colorGray}),
				text.New(legend, props.Text{Size: 6.5, Top: 14, Left: 3, Color: colorGray}),
			),
		),
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMoney inserta puntos de miles en un string numérico sin decimales.
// Ej: "25000" → "25.000", "1000000" → "1.000.000"
func formatMoney(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(s) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return string(buf)
}

// formatBRL 1500.5 → "1.500,50".
func formatBRL(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")
	out := formatMoney(intPart) + "," + frac
	if d.IsNegative() {
		return "-" + out
	}
	return out
}

// formatCNPJ 11222333000181 → 11.222.333/0001-81; otros largos se devuelven tal cual.
func formatCNPJ(s string) string {
	if len(s) != 14 {
		return s
	}
	return s[:2] + "." + s[2:5] + "." + s[5:8] + "/" + s[8:12] + "-" + s[12:]
}

// splitEvery divide s en trozos de max n caracteres.
func splitEvery(s string, n int) []string {
	var parts []string
	for len(s) > n {
		parts = append(parts, s[:n])
		s = s[n:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
