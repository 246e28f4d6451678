package retrieval

import (
	"context"
	"crypto/tls"

	domsefaz "github.com/jhoicas/xsist-conector/internal/domain/sefaz"
	infsefaz "github.com/jhoicas/xsist-conector/internal/infrastructure/sefaz"
)

// PayloadBuilder arma el distDFeInt de consulta por chave.
type PayloadBuilder interface {
	BuildKeyQuery(key, taxID string, env domsefaz.Environment) ([]byte, error)
}

// Transport envía el sobre SOAP autenticado con el certificado cliente.
type Transport interface {
	Post(ctx context.Context, req infsefaz.SOAPRequest, cert tls.Certificate) (*infsefaz.SOAPResponse, error)
}

// ResponseParser extrae el retDistDFeInt del sobre y lo interpreta.
type ResponseParser interface {
	ParseEnvelope(raw []byte) (string, error)
	ParseResult(inner string) (*infsefaz.DistributionResult, error)
}
