// Package testutil fixtures compartidos por los tests: certificados A1 (.pfx)
// sintéticos, servidores TLS con autenticación de cliente y respuestas SOAP
// de distribución. No se usa en código de producción.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// DefaultPassword contraseña de los .pfx generados si no se indica otra.
const DefaultPassword = "segredo-123"

// PFXOptions parámetros del certificado sintético.
type PFXOptions struct {
	CommonName string    // por defecto "EMPRESA TESTE LTDA:11222333000181"
	Password   string    // por defecto DefaultPassword
	WithChain  bool      // incluye una CA intermedia en el archivo
	NotAfter   time.Time // por defecto now + 1 año
	Modern     bool      // codifica con PBES2/AES + MAC SHA-256 (OpenSSL 3)
}

// PFX archivo PKCS#12 generado y sus piezas.
type PFX struct {
	Data     []byte
	Password string
	Leaf     *x509.Certificate
	Key      *ecdsa.PrivateKey
	CA       *x509.Certificate // nil si WithChain es false
}

// NewPFX genera un .pfx con llave ECDSA P-256 (rápida de generar) codificado
// con los algoritmos legacy (RC2/3DES + MAC SHA-1) que usan los A1 reales.
func NewPFX(t testing.TB, opts PFXOptions) PFX {
	t.Helper()
	if opts.CommonName == "" {
		opts.CommonName = "EMPRESA TESTE LTDA:11222333000181"
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	if opts.NotAfter.IsZero() {
		opts.NotAfter = time.Now().Add(365 * 24 * time.Hour)
	}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: opts.CommonName, Organization: []string{"ICP-Brasil"}, Country: []string{"BR"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     opts.NotAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	var (
		parent    = leafTmpl
		parentKey = leafKey
		ca        *x509.Certificate
	)
	if opts.WithChain {
		caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		caTmpl := &x509.Certificate{
			SerialNumber:          big.NewInt(1),
			Subject:               pkix.Name{CommonName: "AC TESTE v5"},
			NotBefore:             time.Now().Add(-time.Hour),
			NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
			IsCA:                  true,
			BasicConstraintsValid: true,
			KeyUsage:              x509.KeyUsageCertSign,
		}
		caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
		require.NoError(t, err)
		ca, err = x509.ParseCertificate(caDER)
		require.NoError(t, err)
		parent, parentKey = ca, caKey
	}

	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, parent, &leafKey.PublicKey, parentKey)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(leafDER)
	require.NoError(t, err)

	var cas []*x509.Certificate
	if ca != nil {
		cas = append(cas, ca)
	}
	enc := gopkcs12.LegacyRC2
	if opts.Modern {
		enc = gopkcs12.Modern
	}
	data, err := enc.Encode(leafKey, leaf, cas, opts.Password)
	require.NoError(t, err)

	return PFX{Data: data, Password: opts.Password, Leaf: leaf, Key: leafKey, CA: ca}
}

// TLSCertificate par listo para mTLS sin pasar por el decodificador PKCS#12.
func (p PFX) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{p.Leaf.Raw},
		PrivateKey:  p.Key,
		Leaf:        p.Leaf,
	}
}

// NewMTLSServer servidor HTTPS que exige certificado cliente (cualquiera).
// Devuelve además el pool con la CA del servidor para configurar RootCAs.
func NewMTLSServer(t testing.TB, h http.Handler) (*httptest.Server, *x509.CertPool) {
	t.Helper()
	srv := httptest.NewUnstartedServer(h)
	srv.TLS = &tls.Config{ClientAuth: tls.RequireAnyClientCert, MinVersion: tls.VersionTLS12}
	srv.StartTLS()
	t.Cleanup(srv.Close)

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return srv, pool
}
