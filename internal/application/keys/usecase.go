// Package keys extracción de chaves de acceso desde archivos de texto (SPED,
// logs, listados) o XML individuales.
package keys

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	domsefaz "github.com/jhoicas/xsist-conector/internal/domain/sefaz"
)

// Encodings reportados en Extraction.Encoding.
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)

// maxInputBytes tope del texto aceptado (un SPED anual grande ronda decenas de MiB).
const maxInputBytes = 256 << 20

// Extraction resultado de ExtractFromBytes.
type Extraction struct {
	Keys     []domsefaz.AccessKey
	Encoding string
}

// Detection resultado de Detect sobre un XML.
type Detection struct {
	Key    domsefaz.AccessKey
	Family domsefaz.DocumentFamily
	Found  bool
}

// UseCase extracción de chaves. Sin estado: seguro para uso concurrente.
type UseCase struct {
	extractor *domsefaz.KeyExtractor
}

// NewUseCase construye el caso de uso con las estrategias por defecto.
func NewUseCase() *UseCase {
	return &UseCase{extractor: domsefaz.NewKeyExtractor()}
}

// DecodeText interpreta raw como UTF-8; si no es UTF-8 válido lo decodifica como
// ISO-8859-1 (los SPED suelen venir en Latin-1).
func DecodeText(raw []byte) (string, string, error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if utf8.Valid(raw) {
		return string(raw), EncodingUTF8, nil
	}
	out, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), raw)
	if err != nil {
		return "", "", fmt.Errorf("decodificar latin-1: %w", err)
	}
	return string(out), EncodingLatin1, nil
}

// ExtractFromBytes decodifica y devuelve todas las chaves únicas en orden de aparición.
func (uc *UseCase) ExtractFromBytes(raw []byte) (*Extraction, error) {
	if len(raw) > maxInputBytes {
		return nil, fmt.Errorf("archivo demasiado grande (%d bytes, máximo %d)", len(raw), maxInputBytes)
	}
	text, enc, err := DecodeText(raw)
	if err != nil {
		return nil, err
	}
	return &Extraction{Keys: domsefaz.ExtractAll(text), Encoding: enc}, nil
}

// ExtractFromReader lee r (hasta el tope) y delega en ExtractFromBytes.
func (uc *UseCase) ExtractFromReader(r io.Reader) (*Extraction, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxInputBytes+1))
	if err != nil {
		return nil, fmt.Errorf("leer entrada: %w", err)
	}
	return uc.ExtractFromBytes(raw)
}

// Detect chave principal y familia de un XML (o texto) individual.
func (uc *UseCase) Detect(text string) Detection {
	key, fam, ok := uc.extractor.ExtractPrimary(text)
	if !ok {
		fam, _ = domsefaz.DetectFamily(text)
		return Detection{Family: fam}
	}
	return Detection{Key: key, Family: fam, Found: true}
}

// ── Salida ────────────────────────────────────────────────────────────────────

// WriteTXT una chave por línea.
func WriteTXT(w io.Writer, keys []domsefaz.AccessKey) error {
	for _, k := range keys {
		if _, err := io.WriteString(w, k.String()+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV columnas chave, tipo (por modelo), dv_valido.
func WriteCSV(w io.Writer, keys []domsefaz.AccessKey) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"chave", "tipo", "dv_valido"}); err != nil {
		return err
	}
	for _, k := range keys {
		fam, _ := domsefaz.FamilyForModel(k.Model())
		if err := cw.Write([]string{k.String(), string(fam), strconv.FormatBool(k.CheckDigitOK())}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
