package retrieval

import (
	"crypto/tls"
	"fmt"

	domsefaz "github.com/jhoicas/xsist-conector/internal/domain/sefaz"
	infsefaz "github.com/jhoicas/xsist-conector/internal/infrastructure/sefaz"
)

// CertificateConfig credencial lista para consultar: par mTLS, CNPJ del
// interesado y ambiente. Inmutable una vez publicada; un cambio de certificado
// produce una instancia nueva con Version mayor.
type CertificateConfig struct {
	Version     int
	Certificate tls.Certificate
	Subject     string
	NotAfter    string
	TaxID       string
	Environment domsefaz.Environment
}

// NewCertificateConfig arma la configuración a partir del bundle cargado.
func NewCertificateConfig(version int, b *infsefaz.CertificateBundle, taxID string, env domsefaz.Environment) *CertificateConfig {
	return &CertificateConfig{
		Version:     version,
		Certificate: b.Certificate,
		Subject:     b.Subject,
		NotAfter:    b.NotAfter.Format("2006-01-02"),
		TaxID:       taxID,
		Environment: env,
	}
}

// String no expone la llave ni el certificado.
func (c *CertificateConfig) String() string {
	if c == nil {
		return "CertificateConfig{<nil>}"
	}
	return fmt.Sprintf("CertificateConfig{version=%d, subject=%q, env=%s}", c.Version, c.Subject, c.Environment)
}

// GoString igual que String para %#v.
func (c *CertificateConfig) GoString() string { return c.String() }
