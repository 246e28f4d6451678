package sefaz_test

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domsefaz "github.com/jhoicas/xsist-conector/internal/domain/sefaz"
	"github.com/jhoicas/xsist-conector/internal/infrastructure/sefaz"
	"github.com/jhoicas/xsist-conector/internal/testutil"
	pkgsefaz "github.com/jhoicas/xsist-conector/pkg/sefaz"
)

func distRequest(t *testing.T, url string) sefaz.SOAPRequest {
	t.Helper()
	payload, err := sefaz.BuildKeyQuery(testutil.KeyNFe, testutil.CNPJ, domsefaz.Production)
	require.NoError(t, err)
	return sefaz.SOAPRequest{
		URL:        url,
		Action:     pkgsefaz.NFeDistSOAPAction,
		Operation:  xml.Name{Space: pkgsefaz.NFeDistWSDLNamespace, Local: pkgsefaz.NFeDistOperation},
		MessageTag: pkgsefaz.NFeDistMessageTag,
		Payload:    payload,
	}
}

// ── Envelope ─────────────────────────────────────────────────────────────────

func TestBuildEnvelope_PayloadComoElementoHijo(t *testing.T) {
	out, err := sefaz.BuildEnvelope(distRequest(t, "https://x"))
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, `<?xml version="1.0" encoding="utf-8"?>`))
	assert.Contains(t, s, `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">`)
	assert.Contains(t, s, `<nfeDistDFeInteresse xmlns="`+pkgsefaz.NFeDistWSDLNamespace+`"><nfeDadosMsg><distDFeInt`)
	assert.NotContains(t, s, "CDATA")
	assert.Equal(t, 1, strings.Count(s, "<?xml"), "la declaración del payload se descarta")
}

func TestBuildEnvelope_PayloadInvalido(t *testing.T) {
	req := distRequest(t, "https://x")
	req.Payload = []byte("solo texto")
	_, err := sefaz.BuildEnvelope(req)
	assert.Error(t, err)
}

// ── Post ─────────────────────────────────────────────────────────────────────

func TestPost_MTLSEnviaHeadersYCuerpo(t *testing.T) {
	pfx := testutil.NewPFX(t, testutil.PFXOptions{})

	var gotHeaders http.Header
	var gotBody string
	var gotClientCN string
	srv, pool := testutil.NewMTLSServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		if len(r.TLS.PeerCertificates) > 0 {
			gotClientCN = r.TLS.PeerCertificates[0].Subject.CommonName
		}
		_, _ = w.Write(testutil.DistributionEnvelope(t, "137", "Nenhum documento localizado"))
	}))

	client := sefaz.NewSOAPClient(sefaz.WithRootCAs(pool), sefaz.WithTimeout(5*time.Second))
	resp, err := client.Post(context.Background(), distRequest(t, srv.URL), pfx.TLSCertificate())
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.Equal(t, "text/xml; charset=utf-8", gotHeaders.Get("Content-Type"))
	assert.Equal(t, pkgsefaz.NFeDistSOAPAction, gotHeaders.Get("SOAPAction"))
	assert.Equal(t, "XSist/1.0", gotHeaders.Get("User-Agent"))
	assert.Contains(t, gotBody, "<chNFe>"+testutil.KeyNFe+"</chNFe>")
	assert.Equal(t, pfx.Leaf.Subject.CommonName, gotClientCN, "el servidor recibe el certificado cliente")
	assert.Contains(t, string(resp.Body), "<cStat>137</cStat>")
}

func TestPost_SinCertificadoNoIntentaLaLlamada(t *testing.T) {
	var calls atomic.Int32
	srv, pool := testutil.NewMTLSServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	client := sefaz.NewSOAPClient(sefaz.WithRootCAs(pool))
	resp, err := client.Post(context.Background(), distRequest(t, srv.URL), tls.Certificate{})
	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, sefaz.ErrMissingClientCertificate))
	assert.Zero(t, calls.Load())
}

func TestPost_StatusNo2xxNoEsError(t *testing.T) {
	pfx := testutil.NewPFX(t, testutil.PFXOptions{})
	srv, pool := testutil.NewMTLSServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(testutil.SOAPFault("soap:Server", "Erro interno"))
	}))

	client := sefaz.NewSOAPClient(sefaz.WithRootCAs(pool))
	resp, err := client.Post(context.Background(), distRequest(t, srv.URL), pfx.TLSCertificate())
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	code, reason, ok := resp.Fault()
	require.True(t, ok)
	assert.Equal(t, "soap:Server", code)
	assert.Equal(t, "Erro interno", reason)
}

func TestPost_TimeoutEsTransportError(t *testing.T) {
	pfx := testutil.NewPFX(t, testutil.PFXOptions{})
	release := make(chan struct{})
	srv, pool := testutil.NewMTLSServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	client := sefaz.NewSOAPClient(sefaz.WithRootCAs(pool), sefaz.WithTimeout(200*time.Millisecond))
	_, err := client.Post(context.Background(), distRequest(t, srv.URL), pfx.TLSCertificate())

	var te *sefaz.TransportError
	require.True(t, errors.As(err, &te), "error inesperado: %v", err)
	assert.Equal(t, "connect", te.Op)
}

func TestPost_CancelacionDelContexto(t *testing.T) {
	pfx := testutil.NewPFX(t, testutil.PFXOptions{})
	srv, pool := testutil.NewMTLSServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	client := sefaz.NewSOAPClient(sefaz.WithRootCAs(pool))
	_, err := client.Post(ctx, distRequest(t, srv.URL), pfx.TLSCertificate())

	var te *sefaz.TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPost_ServidorNoConfiableFallaTLS(t *testing.T) {
	pfx := testutil.NewPFX(t, testutil.PFXOptions{})
	srv, _ := testutil.NewMTLSServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	client := sefaz.NewSOAPClient() // raíces del sistema: no confían en el certificado de httptest
	_, err := client.Post(context.Background(), distRequest(t, srv.URL), pfx.TLSCertificate())

	var te *sefaz.TransportError
	assert.True(t, errors.As(err, &te))
}

func TestPost_RespuestaDemasiadoGrande(t *testing.T) {
	pfx := testutil.NewPFX(t, testutil.PFXOptions{})
	srv, pool := testutil.NewMTLSServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))

	client := sefaz.NewSOAPClient(sefaz.WithRootCAs(pool), sefaz.WithMaxBodyBytes(1024))
	_, err := client.Post(context.Background(), distRequest(t, srv.URL), pfx.TLSCertificate())
	assert.True(t, errors.Is(err, sefaz.ErrResponseTooLarge))
}

func TestSOAPResponse_FaultSOAP12(t *testing.T) {
	body := `<env:Envelope xmlns:env="http://www.w3.org/2003/05/soap-envelope"><env:Body><env:Fault>` +
		`<env:Code><env:Value>env:Sender</env:Value></env:Code><env:Reason><env:Text xml:lang="pt">Certificado não enviado</env:Text></env:Reason>` +
		`</env:Fault></env:Body></env:Envelope>`
	r := &sefaz.SOAPResponse{StatusCode: 403, Body: []byte(body)}

	code, reason, ok := r.Fault()
	require.True(t, ok)
	assert.Equal(t, "env:Sender", code)
	assert.Equal(t, "Certificado não enviado", reason)

	_, _, ok = (&sefaz.SOAPResponse{Body: []byte("<html>403</html>")}).Fault()
	assert.False(t, ok)
}

func TestPost_CertificadoNuevoDescartaElClienteAnterior(t *testing.T) {
	first := testutil.NewPFX(t, testutil.PFXOptions{CommonName: "EMPRESA A LTDA:11222333000181"})
	second := testutil.NewPFX(t, testutil.PFXOptions{CommonName: "EMPRESA B LTDA:11222333000181"})

	var seen []string
	srv, pool := testutil.NewMTLSServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.TLS.PeerCertificates[0].Subject.CommonName)
		_, _ = w.Write(testutil.DistributionEnvelope(t, "137", "Nenhum documento localizado"))
	}))
	client := sefaz.NewSOAPClient(sefaz.WithRootCAs(pool), sefaz.WithTimeout(5*time.Second))

	_, err := client.Post(context.Background(), distRequest(t, srv.URL), first.TLSCertificate())
	require.NoError(t, err)
	_, err = client.Post(context.Background(), distRequest(t, srv.URL), first.TLSCertificate())
	require.NoError(t, err)
	assert.Equal(t, 1, sefaz.CachedClients(client), "el mismo certificado reutiliza el cliente")

	_, err = client.Post(context.Background(), distRequest(t, srv.URL), second.TLSCertificate())
	require.NoError(t, err)
	assert.Equal(t, 1, sefaz.CachedClients(client))

	assert.Equal(t, []string{
		first.Leaf.Subject.CommonName,
		first.Leaf.Subject.CommonName,
		second.Leaf.Subject.CommonName,
	}, seen, "cada llamada presenta el certificado vigente")
}
