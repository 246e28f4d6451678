package testutil

import (
	"fmt"
	"html"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	infsefaz "github.com/jhoicas/xsist-conector/internal/infrastructure/sefaz"
)

// Claves y CNPJ válidos (DV correctos) para los tests.
const (
	KeyNFe = "35190811222333000181550010000001231000001234"
	KeyCTe = "35190811222333000181570010000004561000004564"
	CNPJ   = "11222333000181"
)

// SampleNFe procNFe mínimo para la chave KeyNFe.
const SampleNFe = `<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe" versao="4.00"><NFe><infNFe Id="NFe` + KeyNFe + `" versao="4.00">` +
	`<ide><mod>55</mod><serie>1</serie><nNF>123</nNF><dhEmi>2019-08-10T10:00:00-03:00</dhEmi></ide>` +
	`<emit><CNPJ>11222333000181</CNPJ><xNome>Emitente Ltda</xNome></emit>` +
	`<dest><CNPJ>99888777000166</CNPJ><xNome>Destinatario SA</xNome></dest>` +
	`<total><ICMSTot><vProd>1500.50</vProd><vNF>1500.50</vNF></ICMSTot></total>` +
	`</infNFe></NFe></nfeProc>`

// Doc entrada de docZip para DistributionEnvelope. Raw, si no está vacío, se
// usa tal cual como contenido del docZip (para simular entradas corruptas).
type Doc struct {
	NSU    string
	Schema string
	XML    string
	Raw    string
}

// RetDistDFeInt arma el XML retDistDFeInt con los documentos dados.
func RetDistDFeInt(t testing.TB, cStat, xMotivo string, docs ...Doc) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<retDistDFeInt xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.01">`)
	b.WriteString(`<tpAmb>1</tpAmb><verAplic>1.4.0</verAplic>`)
	fmt.Fprintf(&b, `<cStat>%s</cStat><xMotivo>%s</xMotivo>`, cStat, html.EscapeString(xMotivo))
	b.WriteString(`<dhResp>2019-08-12T10:00:00-03:00</dhResp><ultNSU>000000000000100</ultNSU><maxNSU>000000000000100</maxNSU>`)
	if len(docs) > 0 {
		b.WriteString(`<loteDistDFeInt>`)
		for _, d := range docs {
			content := d.Raw
			if content == "" {
				enc, err := infsefaz.EncodeDocZip([]byte(d.XML))
				require.NoError(t, err)
				content = enc
			}
			fmt.Fprintf(&b, `<docZip NSU="%s" schema="%s">%s</docZip>`, d.NSU, d.Schema, content)
		}
		b.WriteString(`</loteDistDFeInt>`)
	}
	b.WriteString(`</retDistDFeInt>`)
	return b.String()
}

// DistributionEnvelope sobre SOAP de respuesta con el retDistDFeInt como hijo del *Result.
func DistributionEnvelope(t testing.TB, cStat, xMotivo string, docs ...Doc) []byte {
	t.Helper()
	return []byte(`<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<soap:Body><nfeDistDFeInteresseResponse xmlns="http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe">` +
		`<nfeDistDFeInteresseResult>` + RetDistDFeInt(t, cStat, xMotivo, docs...) + `</nfeDistDFeInteresseResult>` +
		`</nfeDistDFeInteresseResponse></soap:Body></soap:Envelope>`)
}

// EscapedEnvelope el mismo sobre, pero escapado entero (&lt;soap:Envelope...).
func EscapedEnvelope(t testing.TB, cStat, xMotivo string, docs ...Doc) []byte {
	t.Helper()
	return []byte(html.EscapeString(string(DistributionEnvelope(t, cStat, xMotivo, docs...))))
}

// SOAPFault sobre SOAP 1.1 con Fault.
func SOAPFault(code, reason string) []byte {
	return []byte(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body><soap:Fault>` +
		`<faultcode>` + code + `</faultcode><faultstring>` + html.EscapeString(reason) + `</faultstring>` +
		`</soap:Fault></soap:Body></soap:Envelope>`)
}
