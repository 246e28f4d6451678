// Package sefaz contiene los tipos de dominio de documentos fiscales electrónicos
// brasileños (NF-e / CT-e): chave de acceso, familia, ambiente y CNPJ, más la
// extracción de chaves desde texto arbitrario. Usa catálogos de pkg/sefaz.
package sefaz

import (
	"errors"
	"fmt"
	"strings"

	pkgsefaz "github.com/jhoicas/xsist-conector/pkg/sefaz"
)

// AccessKeyLength longitud fija de la chave de acceso.
const AccessKeyLength = 44

var (
	// ErrInvalidAccessKey la entrada no es una chave de 44 dígitos.
	ErrInvalidAccessKey = errors.New("chave de acceso inválida: se requieren 44 dígitos")
	// ErrInvalidFamily familia de documento desconocida.
	ErrInvalidFamily = errors.New("tipo de documento inválido: use NFE o CTE")
	// ErrInvalidTaxID CNPJ con formato inválido.
	ErrInvalidTaxID = errors.New("CNPJ inválido: se requieren 14 dígitos")
	// ErrInvalidEnvironment tpAmb distinto de 1 o 2.
	ErrInvalidEnvironment = errors.New("ambiente inválido: use 1 (producción) o 2 (homologación)")
)

// separators caracteres de presentación admitidos en chaves y CNPJ digitados.
const separators = " .-/\t\r\n"

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(separators, r) {
			return -1
		}
		return r
	}, s)
}

// ── AccessKey ────────────────────────────────────────────────────────────────

// AccessKey chave de acceso de 44 dígitos ASCII. Solo se construye vía ParseAccessKey
// o por el extractor, por lo que un valor no vacío siempre es válido.
type AccessKey string

// ParseAccessKey normaliza s (quita espacios, puntos, guiones y barras) y exige 44 dígitos.
func ParseAccessKey(s string) (AccessKey, error) {
	k := stripSeparators(strings.TrimSpace(s))
	if len(k) != AccessKeyLength || !pkgsefaz.IsDigits(k) {
		return "", fmt.Errorf("%w (recibidos %d caracteres)", ErrInvalidAccessKey, len(k))
	}
	return AccessKey(k), nil
}

// String devuelve los 44 dígitos.
func (k AccessKey) String() string { return string(k) }

// UF código IBGE de la unidad federativa autorizadora (posiciones 1-2).
func (k AccessKey) UF() string {
	if len(k) < 2 {
		return ""
	}
	return string(k[:2])
}

// IssuerTaxID CNPJ/CPF del emisor codificado en la chave (posiciones 7-20).
func (k AccessKey) IssuerTaxID() string {
	if len(k) != AccessKeyLength {
		return ""
	}
	return string(k[6:20])
}

// Model modelo del documento (posiciones 21-22): 55, 65, 57, 67.
func (k AccessKey) Model() string {
	if len(k) != AccessKeyLength {
		return ""
	}
	return string(k[20:22])
}

// Number número del documento sin ceros a la izquierda (posiciones 26-34).
func (k AccessKey) Number() string {
	if len(k) != AccessKeyLength {
		return ""
	}
	n := strings.TrimLeft(string(k[25:34]), "0")
	if n == "" {
		return "0"
	}
	return n
}

// CheckDigitOK valida el dígito verificador módulo 11. Solo informativo: la
// autoridad sobre la validez de la chave es la SEFAZ.
func (k AccessKey) CheckDigitOK() bool {
	return pkgsefaz.ValidateAccessKeyCheckDigit(string(k)) == nil
}

// ── DocumentFamily ───────────────────────────────────────────────────────────

// DocumentFamily familia del documento fiscal.
type DocumentFamily string

const (
	FamilyNFe DocumentFamily = "NFE"
	FamilyCTe DocumentFamily = "CTE"
)

// ParseDocumentFamily acepta NFE / CTE sin distinguir mayúsculas.
func ParseDocumentFamily(s string) (DocumentFamily, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(FamilyNFe):
		return FamilyNFe, nil
	case string(FamilyCTe):
		return FamilyCTe, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFamily, s)
}

// Valid indica si f es una familia conocida.
func (f DocumentFamily) Valid() bool {
	return f == FamilyNFe || f == FamilyCTe
}

// FamilyForModel deduce la familia a partir del modelo codificado en la chave.
func FamilyForModel(model string) (DocumentFamily, bool) {
	switch model {
	case pkgsefaz.ModelNFe, pkgsefaz.ModelNFCe:
		return FamilyNFe, true
	case pkgsefaz.ModelCTe, pkgsefaz.ModelCTeOS:
		return FamilyCTe, true
	}
	return "", false
}

// ── Environment ──────────────────────────────────────────────────────────────

// Environment ambiente de la SEFAZ (tpAmb).
type Environment int

const (
	Production Environment = pkgsefaz.TpAmbProduction
	Staging    Environment = pkgsefaz.TpAmbStaging
)

// ParseEnvironment acepta 1 o 2.
func ParseEnvironment(tpAmb int) (Environment, error) {
	env := Environment(tpAmb)
	if !env.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidEnvironment, tpAmb)
	}
	return env, nil
}

// Valid indica si el ambiente es 1 o 2.
func (e Environment) Valid() bool {
	return e == Production || e == Staging
}

func (e Environment) String() string {
	switch e {
	case Production:
		return "producción"
	case Staging:
		return "homologación"
	}
	return fmt.Sprintf("desconocido(%d)", int(e))
}

// ── TaxID ────────────────────────────────────────────────────────────────────

// TaxID CNPJ de 14 dígitos del interesado.
type TaxID string

// ParseTaxID normaliza separadores y exige 14 dígitos. No valida los dígitos
// verificadores: certificados de prueba suelen traer CNPJ sintéticos.
func ParseTaxID(s string) (TaxID, error) {
	t := stripSeparators(strings.TrimSpace(s))
	if len(t) != 14 || !pkgsefaz.IsDigits(t) {
		return "", fmt.Errorf("%w (recibidos %d caracteres)", ErrInvalidTaxID, len(t))
	}
	return TaxID(t), nil
}

func (t TaxID) String() string { return string(t) }
