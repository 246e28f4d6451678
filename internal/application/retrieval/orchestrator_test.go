package retrieval_test

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/xsist-conector/internal/application/retrieval"
	domsefaz "github.com/jhoicas/xsist-conector/internal/domain/sefaz"
	infsefaz "github.com/jhoicas/xsist-conector/internal/infrastructure/sefaz"
	"github.com/jhoicas/xsist-conector/internal/testutil"
	pkgsefaz "github.com/jhoicas/xsist-conector/pkg/sefaz"
)

// stubTransport responde con un cuerpo fijo y cuenta las llamadas.
type stubTransport struct {
	status int
	body   []byte
	err    error
	calls  atomic.Int32
	last   infsefaz.SOAPRequest
}

func (s *stubTransport) Post(_ context.Context, req infsefaz.SOAPRequest, _ tls.Certificate) (*infsefaz.SOAPResponse, error) {
	s.calls.Add(1)
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	status := s.status
	if status == 0 {
		status = http.StatusOK
	}
	return &infsefaz.SOAPResponse{StatusCode: status, Body: s.body}, nil
}

func newOrchestrator(tr retrieval.Transport) *retrieval.Orchestrator {
	return retrieval.NewOrchestrator(infsefaz.NewRequestBuilder(), tr, infsefaz.NewResponseParser(),
		retrieval.Endpoints{Production: "https://prod.test/dist", Staging: "https://hom.test/dist"}, nil)
}

func certConfig(t *testing.T) *retrieval.CertificateConfig {
	t.Helper()
	pfx := testutil.NewPFX(t, testutil.PFXOptions{})
	return &retrieval.CertificateConfig{
		Version:     1,
		Certificate: pfx.TLSCertificate(),
		Subject:     pfx.Leaf.Subject.String(),
		TaxID:       testutil.CNPJ,
		Environment: domsefaz.Production,
	}
}

// ── Escenarios ───────────────────────────────────────────────────────────────

func TestFetch_138UnDocumentoEsSuccess(t *testing.T) {
	tr := &stubTransport{body: testutil.DistributionEnvelope(t, "138", "Documento localizado",
		testutil.Doc{NSU: "000000000000100", Schema: "procNFe_v4.00.xsd", XML: testutil.SampleNFe})}

	out := newOrchestrator(tr).Fetch(context.Background(), testutil.KeyNFe, domsefaz.FamilyNFe, certConfig(t))

	ok, isSuccess := out.(retrieval.Success)
	require.True(t, isSuccess, "outcome inesperado: %#v", out)
	require.Len(t, ok.Documents, 1)
	assert.Equal(t, testutil.SampleNFe, ok.Document().XML)
	assert.Equal(t, "procNFe_v4.00.xsd", ok.Document().Schema)
	assert.Equal(t, "Documento localizado", ok.Message())
	assert.Equal(t, "138", ok.Status)

	assert.Equal(t, "https://prod.test/dist", tr.last.URL)
	assert.Equal(t, pkgsefaz.NFeDistSOAPAction, tr.last.Action)
	assert.Contains(t, string(tr.last.Payload), "<chNFe>"+testutil.KeyNFe+"</chNFe>")
}

func TestFetch_137EsNotFound(t *testing.T) {
	tr := &stubTransport{body: testutil.DistributionEnvelope(t, "137", "Nenhum documento localizado")}

	out := newOrchestrator(tr).Fetch(context.Background(), testutil.KeyNFe, domsefaz.FamilyNFe, certConfig(t))

	nf, ok := out.(retrieval.NotFound)
	require.True(t, ok, "outcome inesperado: %#v", out)
	assert.Equal(t, "Nenhum documento localizado", nf.ServerMessage)
}

func TestFetch_OtroCStatEsServerRejectionLiteral(t *testing.T) {
	tr := &stubTransport{body: testutil.DistributionEnvelope(t, "656", "Certificado sem permissão")}

	out := newOrchestrator(tr).Fetch(context.Background(), testutil.KeyNFe, domsefaz.FamilyNFe, certConfig(t))

	rej, ok := out.(retrieval.ServerRejection)
	require.True(t, ok, "outcome inesperado: %#v", out)
	assert.Equal(t, "656", rej.Status)
	assert.Equal(t, "Certificado sem permissão", rej.ServerMessage)
	assert.Equal(t, "656 - Certificado sem permissão", rej.Message())
}

func TestFetch_ValidacionAntesDeCualquierIO(t *testing.T) {
	cfg := certConfig(t)
	noCert := *cfg
	noCert.Certificate = tls.Certificate{}
	badTax := *cfg
	badTax.TaxID = "123"
	badEnv := *cfg
	badEnv.Environment = 0

	cases := []struct {
		name   string
		key    string
		family domsefaz.DocumentFamily
		cfg    *retrieval.CertificateConfig
		reason string
	}{
		{"chave de 4 dígitos", "1234", domsefaz.FamilyNFe, cfg, "Chave inválida"},
		{"CT-e no soportado", testutil.KeyCTe, domsefaz.FamilyCTe, cfg, "CT-e aún no soportado"},
		{"familia desconocida", testutil.KeyNFe, domsefaz.DocumentFamily("MDFE"), cfg, "desconocido"},
		{"sin configuración", testutil.KeyNFe, domsefaz.FamilyNFe, nil, "Certificado no configurado"},
		{"sin certificado", testutil.KeyNFe, domsefaz.FamilyNFe, &noCert, "Certificado no configurado"},
		{"CNPJ inválido", testutil.KeyNFe, domsefaz.FamilyNFe, &badTax, "CNPJ"},
		{"ambiente inválido", testutil.KeyNFe, domsefaz.FamilyNFe, &badEnv, "Ambiente"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := &stubTransport{}
			out := newOrchestrator(tr).Fetch(context.Background(), tc.key, tc.family, tc.cfg)

			ve, ok := out.(retrieval.ValidationError)
			require.True(t, ok, "outcome inesperado: %#v", out)
			assert.Contains(t, ve.Reason, tc.reason)
			assert.Zero(t, tr.calls.Load(), "no debe haber llamada de red")
		})
	}
}

func TestFetch_ChaveConSeparadoresSeNormaliza(t *testing.T) {
	tr := &stubTransport{body: testutil.DistributionEnvelope(t, "137", "Nenhum documento localizado")}
	spaced := testutil.KeyNFe[:4] + " " + testutil.KeyNFe[4:20] + "." + testutil.KeyNFe[20:]

	out := newOrchestrator(tr).Fetch(context.Background(), spaced, domsefaz.FamilyNFe, certConfig(t))

	assert.IsType(t, retrieval.NotFound{}, out)
	assert.Contains(t, string(tr.last.Payload), "<chNFe>"+testutil.KeyNFe+"</chNFe>")
}

func TestFetch_AmbienteHomologacionUsaURLStaging(t *testing.T) {
	tr := &stubTransport{body: testutil.DistributionEnvelope(t, "137", "Nenhum documento localizado")}
	cfg := certConfig(t)
	cfg.Environment = domsefaz.Staging

	newOrchestrator(tr).Fetch(context.Background(), testutil.KeyNFe, domsefaz.FamilyNFe, cfg)

	assert.Equal(t, "https://hom.test/dist", tr.last.URL)
	assert.Contains(t, string(tr.last.Payload), "<tpAmb>2</tpAmb>")
}

// ── Transporte y parseo ──────────────────────────────────────────────────────

func TestFetch_ErrorDeConexionEsTransportError(t *testing.T) {
	tr := &stubTransport{err: &infsefaz.TransportError{Op: "connect", Err: context.DeadlineExceeded}}

	out := newOrchestrator(tr).Fetch(context.Background(), testutil.KeyNFe, domsefaz.FamilyNFe, certConfig(t))

	te, ok := out.(retrieval.TransportError)
	require.True(t, ok, "outcome inesperado: %#v", out)
	assert.Zero(t, te.HTTPStatus)
	assert.Contains(t, te.Reason, "Tiempo de espera")
}

func TestFetch_No2xxConFault(t *testing.T) {
	tr := &stubTransport{status: http.StatusInternalServerError, body: testutil.SOAPFault("soap:Server", "Falha no servidor")}

	out := newOrchestrator(tr).Fetch(context.Background(), testutil.KeyNFe, domsefaz.FamilyNFe, certConfig(t))

	te, ok := out.(retrieval.TransportError)
	require.True(t, ok, "outcome inesperado: %#v", out)
	assert.Equal(t, http.StatusInternalServerError, te.HTTPStatus)
	assert.Equal(t, "soap:Server Falha no servidor", te.Reason)
	assert.True(t, strings.HasPrefix(te.Message(), "HTTP 500: "))
}

func TestFetch_No2xxSinFaultRecortaElCuerpo(t *testing.T) {
	tr := &stubTransport{status: http.StatusForbidden, body: []byte(strings.Repeat("a", 1000))}

	out := newOrchestrator(tr).Fetch(context.Background(), testutil.KeyNFe, domsefaz.FamilyNFe, certConfig(t))

	te, ok := out.(retrieval.TransportError)
	require.True(t, ok)
	assert.Len(t, te.Reason, 400)
}

func TestFetch_SobreInesperadoEsParseError(t *testing.T) {
	tr := &stubTransport{body: []byte(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body><Otro/></soap:Body></soap:Envelope>`)}

	out := newOrchestrator(tr).Fetch(context.Background(), testutil.KeyNFe, domsefaz.FamilyNFe, certConfig(t))
	assert.IsType(t, retrieval.ParseError{}, out)
}

func TestFetch_SobreEscapadoSeInterpreta(t *testing.T) {
	tr := &stubTransport{body: testutil.EscapedEnvelope(t, "138", "Documento localizado",
		testutil.Doc{NSU: "1", Schema: "procNFe_v4.00.xsd", XML: testutil.SampleNFe})}

	out := newOrchestrator(tr).Fetch(context.Background(), testutil.KeyNFe, domsefaz.FamilyNFe, certConfig(t))

	ok, isSuccess := out.(retrieval.Success)
	require.True(t, isSuccess, "outcome inesperado: %#v", out)
	assert.Equal(t, testutil.SampleNFe, ok.Document().XML)
}

func TestFetch_138SinDocumentoDecodificableEsParseError(t *testing.T) {
	tr := &stubTransport{body: testutil.DistributionEnvelope(t, "138", "Documento localizado",
		testutil.Doc{NSU: "1", Schema: "procNFe_v4.00.xsd", Raw: "%%%"})}

	out := newOrchestrator(tr).Fetch(context.Background(), testutil.KeyNFe, domsefaz.FamilyNFe, certConfig(t))
	assert.IsType(t, retrieval.ParseError{}, out)
}

func TestFetch_138ConVariosDocumentosDevuelveElPrimero(t *testing.T) {
	tr := &stubTransport{body: testutil.DistributionEnvelope(t, "138", "Documento localizado",
		testutil.Doc{NSU: "1", Schema: "resNFe_v1.01.xsd", Raw: "%%%"},
		testutil.Doc{NSU: "2", Schema: "procNFe_v4.00.xsd", XML: testutil.SampleNFe},
		testutil.Doc{NSU: "3", Schema: "resEvento_v1.01.xsd", XML: "<resEvento/>"})}

	out := newOrchestrator(tr).Fetch(context.Background(), testutil.KeyNFe, domsefaz.FamilyNFe, certConfig(t))

	ok, isSuccess := out.(retrieval.Success)
	require.True(t, isSuccess)
	require.Len(t, ok.Documents, 1)
	assert.Equal(t, "2", ok.Document().NSU)
}

// ── Outcome / CertificateConfig ──────────────────────────────────────────────

type kindCollector struct{ got []string }

func (k *kindCollector) VisitSuccess(retrieval.Success)                 { k.got = append(k.got, "s") }
func (k *kindCollector) VisitNotFound(retrieval.NotFound)               { k.got = append(k.got, "nf") }
func (k *kindCollector) VisitServerRejection(retrieval.ServerRejection) { k.got = append(k.got, "sr") }
func (k *kindCollector) VisitValidationError(retrieval.ValidationError) { k.got = append(k.got, "ve") }
func (k *kindCollector) VisitTransportError(retrieval.TransportError)   { k.got = append(k.got, "te") }
func (k *kindCollector) VisitParseError(retrieval.ParseError)           { k.got = append(k.got, "pe") }

func TestOutcome_VisitorDespachaCadaVariante(t *testing.T) {
	outs := []retrieval.Outcome{
		retrieval.Success{}, retrieval.NotFound{}, retrieval.ServerRejection{},
		retrieval.ValidationError{}, retrieval.TransportError{}, retrieval.ParseError{},
	}
	k := &kindCollector{}
	for _, o := range outs {
		o.Accept(k)
	}
	assert.Equal(t, []string{"s", "nf", "sr", "ve", "te", "pe"}, k.got)
}

func TestCertificateConfig_StringNoExponeLlave(t *testing.T) {
	cfg := certConfig(t)
	s := cfg.String()
	assert.Contains(t, s, "version=1")
	assert.NotContains(t, s, "PrivateKey")
	assert.Equal(t, s, cfg.GoString())

	var nilCfg *retrieval.CertificateConfig
	assert.NotPanics(t, func() { _ = nilCfg.String() })
}

func TestNewCertificateConfig_DesdeBundle(t *testing.T) {
	pfx := testutil.NewPFX(t, testutil.PFXOptions{})
	b, err := infsefaz.LoadCertificateBundle(pfx.Data, pfx.Password)
	require.NoError(t, err)

	cfg := retrieval.NewCertificateConfig(3, b, testutil.CNPJ, domsefaz.Staging)
	assert.Equal(t, 3, cfg.Version)
	assert.Equal(t, b.Subject, cfg.Subject)
	assert.NotEmpty(t, cfg.Certificate.Certificate)
}
