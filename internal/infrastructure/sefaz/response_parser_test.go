package sefaz_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/xsist-conector/internal/infrastructure/sefaz"
	"github.com/jhoicas/xsist-conector/internal/testutil"
)

// ── ParseEnvelope ────────────────────────────────────────────────────────────

func TestParseEnvelope_ResultConHijo(t *testing.T) {
	raw := testutil.DistributionEnvelope(t, "137", "Nenhum documento localizado")

	inner, err := sefaz.ParseEnvelope(raw)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(inner, "<retDistDFeInt"), inner)
	assert.Contains(t, inner, "<cStat>137</cStat>")
}

func TestParseEnvelope_ResultConTextoEscapado(t *testing.T) {
	ret := testutil.RetDistDFeInt(t, "137", "Nenhum documento localizado")
	raw := []byte(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>` +
		`<nfeDistDFeInteresseResponse><nfeDistDFeInteresseResult>` +
		strings.NewReplacer("<", "&lt;", ">", "&gt;").Replace(ret) +
		`</nfeDistDFeInteresseResult></nfeDistDFeInteresseResponse></soap:Body></soap:Envelope>`)

	inner, err := sefaz.ParseEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, ret, inner)
}

func TestParseEnvelope_SobreCompletamenteEscapado(t *testing.T) {
	raw := testutil.EscapedEnvelope(t, "138", "Documento localizado",
		testutil.Doc{NSU: "000000000000100", Schema: "procNFe_v4.00.xsd", XML: testutil.SampleNFe})

	inner, err := sefaz.ParseEnvelope(raw)
	require.NoError(t, err)

	res, err := sefaz.ParseResult(inner)
	require.NoError(t, err)
	assert.Equal(t, "138", res.Status)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, testutil.SampleNFe, res.Documents[0].XML)
}

func TestParseEnvelope_FallbackRetDistDFeInt(t *testing.T) {
	raw := []byte(`<Envelope><Body><Respuesta>` + testutil.RetDistDFeInt(t, "656", "Consumo Indevido") + `</Respuesta></Body></Envelope>`)

	inner, err := sefaz.ParseEnvelope(raw)
	require.NoError(t, err)
	assert.Contains(t, inner, "<cStat>656</cStat>")
}

func TestParseEnvelope_SinResult(t *testing.T) {
	_, err := sefaz.ParseEnvelope([]byte(`<Envelope><Body><Otra/></Body></Envelope>`))
	assert.True(t, errors.Is(err, sefaz.ErrNoResult))

	_, err = sefaz.ParseEnvelope([]byte("Bad Gateway"))
	assert.True(t, errors.Is(err, sefaz.ErrMalformedEnvelope))
}

// ── ParseResult ──────────────────────────────────────────────────────────────

func TestParseResult_VariosDocumentosYEntradaCorrupta(t *testing.T) {
	ret := testutil.RetDistDFeInt(t, "138", "Documento localizado",
		testutil.Doc{NSU: "1", Schema: "procNFe_v4.00.xsd", XML: testutil.SampleNFe},
		testutil.Doc{NSU: "2", Schema: "resNFe_v1.01.xsd", Raw: "###no-base64###"},
		testutil.Doc{NSU: "3", Schema: "resEvento_v1.01.xsd", XML: "<resEvento/>"},
	)

	res, err := sefaz.ParseResult(ret)
	require.NoError(t, err)
	assert.Equal(t, "138", res.Status)
	assert.Equal(t, "Documento localizado", res.Message)
	assert.Equal(t, "000000000000100", res.LastNSU)
	require.Len(t, res.Documents, 3)

	assert.NoError(t, res.Documents[0].Err)
	assert.Equal(t, "procNFe_v4.00.xsd", res.Documents[0].Schema)
	assert.Equal(t, "1", res.Documents[0].NSU)

	assert.Error(t, res.Documents[1].Err, "la entrada corrupta queda marcada")
	assert.Empty(t, res.Documents[1].XML)

	assert.NoError(t, res.Documents[2].Err, "la entrada corrupta no afecta a las siguientes")
	assert.Equal(t, "<resEvento/>", res.Documents[2].XML)
}

func TestParseResult_AtributoNSUEnMinusculas(t *testing.T) {
	enc, err := sefaz.EncodeDocZip([]byte("<a/>"))
	require.NoError(t, err)
	ret := `<retDistDFeInt><cStat>138</cStat><xMotivo>ok</xMotivo><loteDistDFeInt><docZip nsu="77" schema="s">` + enc + `</docZip></loteDistDFeInt></retDistDFeInt>`

	res, err := sefaz.ParseResult(ret)
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "77", res.Documents[0].NSU)
}

func TestParseResult_SinCStat(t *testing.T) {
	_, err := sefaz.ParseResult(`<retDistDFeInt><xMotivo>?</xMotivo></retDistDFeInt>`)
	assert.True(t, errors.Is(err, sefaz.ErrMissingStatus))

	_, err = sefaz.ParseResult(`no es xml`)
	assert.True(t, errors.Is(err, sefaz.ErrMalformedResult))
}

// ── docZip ───────────────────────────────────────────────────────────────────

func TestDocZip_RoundTrip(t *testing.T) {
	inputs := []string{
		testutil.SampleNFe,
		"<x>acentuação: ç ã é</x>",
		strings.Repeat("<det>linha</det>", 5000),
	}
	for _, in := range inputs {
		enc, err := sefaz.EncodeDocZip([]byte(in))
		require.NoError(t, err)
		out, err := sefaz.DecodeDocZip(enc)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestDecodeDocZip_ToleraSaltosDeLinea(t *testing.T) {
	enc, err := sefaz.EncodeDocZip([]byte("<a>b</a>"))
	require.NoError(t, err)
	wrapped := enc[:10] + "\n  " + enc[10:]

	out, err := sefaz.DecodeDocZip(wrapped)
	require.NoError(t, err)
	assert.Equal(t, "<a>b</a>", out)
}

func TestDecodeDocZip_UTF8InvalidoSeReemplaza(t *testing.T) {
	enc, err := sefaz.EncodeDocZip([]byte{'<', 'a', '>', 0xff, '<', '/', 'a', '>'})
	require.NoError(t, err)

	out, err := sefaz.DecodeDocZip(enc)
	require.NoError(t, err)
	assert.Equal(t, "<a>\uFFFD</a>", out)
}
