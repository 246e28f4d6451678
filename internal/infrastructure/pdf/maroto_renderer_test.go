package pdf_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domsefaz "github.com/jhoicas/xsist-conector/internal/domain/sefaz"
	"github.com/jhoicas/xsist-conector/internal/infrastructure/pdf"
	"github.com/jhoicas/xsist-conector/internal/testutil"
)

func TestRender_NFe(t *testing.T) {
	out, err := pdf.NewMarotoRenderer().Render(context.Background(), testutil.SampleNFe)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRender_CTe(t *testing.T) {
	cte := `<cteProc xmlns="http://www.portalfiscal.inf.br/cte"><CTe><infCte Id="CTe` + testutil.KeyCTe + `" versao="4.00">` +
		`<ide><mod>57</mod><serie>1</serie><nCT>456</nCT><dhEmi>2019-08-10T10:00:00-03:00</dhEmi></ide>` +
		`<emit><CNPJ>11222333000181</CNPJ><xNome>Transportadora Ltda</xNome></emit>` +
		`<rem><CNPJ>99888777000166</CNPJ><xNome>Remetente SA</xNome></rem>` +
		`<vPrest><vTPrest>350.00</vTPrest><Comp><xNome>FRETE</xNome><vComp>350.00</vComp></Comp></vPrest>` +
		`<infCTeNorm><infCarga><vCarga>10000.00</vCarga><proPred>GRAOS</proPred></infCarga></infCTeNorm>` +
		`</infCte></CTe></cteProc>`

	out, err := pdf.NewMarotoRenderer().Render(context.Background(), cte)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRender_SinChaveIgualGenera(t *testing.T) {
	out, err := pdf.NewMarotoRenderer().RenderSummary(&domsefaz.DocumentSummary{Family: domsefaz.FamilyNFe})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestRender_XMLIlegible(t *testing.T) {
	_, err := pdf.NewMarotoRenderer().Render(context.Background(), "no es xml")
	assert.True(t, errors.Is(err, domsefaz.ErrUnreadableDocument))
}

func TestFormatBRL(t *testing.T) {
	cases := map[string]string{
		"0":          "0,00",
		"1500.5":     "1.500,50",
		"1234567.89": "1.234.567,89",
		"-42.1":      "-42,10",
	}
	for in, want := range cases {
		assert.Equal(t, want, pdf.FormatBRL(decimal.RequireFromString(in)), in)
	}
}

func TestFormatCNPJYSplit(t *testing.T) {
	assert.Equal(t, "11.222.333/0001-81", pdf.FormatCNPJ("11222333000181"))
	assert.Equal(t, "12345678901", pdf.FormatCNPJ("12345678901"))
	assert.Equal(t, []string{"3519", "08"}, pdf.SplitEvery("351908", 4))
}
