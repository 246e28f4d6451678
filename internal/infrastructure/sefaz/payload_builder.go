package sefaz

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	domsefaz "github.com/jhoicas/xsist-conector/internal/domain/sefaz"
	pkgsefaz "github.com/jhoicas/xsist-conector/pkg/sefaz"
)

var (
	ErrInvalidKey         = errors.New("builder: la chave debe tener exactamente 44 dígitos")
	ErrInvalidTaxID       = errors.New("builder: el CNPJ debe tener exactamente 14 dígitos")
	ErrInvalidEnvironment = errors.New("builder: tpAmb debe ser 1 o 2")
)

// RequestBuilder arma el XML distDFeInt de consulta por chave (consChNFe).
type RequestBuilder struct{}

// NewRequestBuilder constructor.
func NewRequestBuilder() *RequestBuilder { return &RequestBuilder{} }

// BuildKeyQuery ver función BuildKeyQuery.
func (RequestBuilder) BuildKeyQuery(key, taxID string, env domsefaz.Environment) ([]byte, error) {
	return BuildKeyQuery(key, taxID, env)
}

// BuildKeyQuery genera el cuerpo distDFeInt v1.01 para consultar una chave.
// No normaliza separadores: key y taxID deben venir solo con dígitos. La salida
// es determinística (sin indentación, atributos en orden fijo).
//
//	<?xml version="1.0" encoding="utf-8"?><distDFeInt xmlns="…/nfe" versao="1.01">
//	<tpAmb>1</tpAmb><cUFAutor>35</cUFAutor><CNPJ>…</CNPJ><consChNFe><chNFe>…</chNFe></consChNFe></distDFeInt>
func BuildKeyQuery(key, taxID string, env domsefaz.Environment) ([]byte, error) {
	if len(key) != domsefaz.AccessKeyLength || !pkgsefaz.IsDigits(key) {
		return nil, ErrInvalidKey
	}
	if len(taxID) != 14 || !pkgsefaz.IsDigits(taxID) {
		return nil, ErrInvalidTaxID
	}
	if !env.Valid() {
		return nil, fmt.Errorf("%w (recibido %d)", ErrInvalidEnvironment, int(env))
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	root := doc.CreateElement("distDFeInt")
	root.CreateAttr("xmlns", pkgsefaz.NamespaceNFe)
	root.CreateAttr("versao", pkgsefaz.DistDFeIntVersion)

	root.CreateElement("tpAmb").SetText(strconv.Itoa(int(env)))
	root.CreateElement("cUFAutor").SetText(key[:2])
	root.CreateElement("CNPJ").SetText(taxID)
	root.CreateElement("consChNFe").CreateElement("chNFe").SetText(key)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("builder: serializar distDFeInt: %w", err)
	}
	return out, nil
}
