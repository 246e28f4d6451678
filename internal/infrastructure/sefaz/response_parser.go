package sefaz

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html"
	"io"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"github.com/klauspost/compress/gzip"
)

// maxDocBytes tope del XML descomprimido de un docZip.
const maxDocBytes = 50 << 20

var (
	// ErrMalformedEnvelope la respuesta no es XML legible.
	ErrMalformedEnvelope = errors.New("parser: sobre SOAP ilegible")
	// ErrNoResult no se encontró nodo *Result ni retDistDFeInt.
	ErrNoResult = errors.New("parser: no se encontró Result/retDistDFeInt dentro del SOAP")
	// ErrMalformedResult el retDistDFeInt no es XML legible.
	ErrMalformedResult = errors.New("parser: retDistDFeInt ilegible")
	// ErrMissingStatus el retorno no trae cStat.
	ErrMissingStatus = errors.New("parser: retorno sin cStat")
)

// DocZip un documento del lote de distribución, ya descomprimido.
// Err != nil indica que esta entrada no pudo decodificarse (XML vacío).
type DocZip struct {
	NSU    string
	Schema string
	XML    string
	Err    error
}

// DistributionResult contenido de un retDistDFeInt.
type DistributionResult struct {
	Status    string // cStat
	Message   string // xMotivo
	LastNSU   string // ultNSU
	MaxNSU    string // maxNSU
	Documents []DocZip
}

// ResponseParser adapta las funciones de parseo al puerto del orquestador.
type ResponseParser struct{}

// NewResponseParser constructor.
func NewResponseParser() *ResponseParser { return &ResponseParser{} }

// ParseEnvelope ver función ParseEnvelope.
func (ResponseParser) ParseEnvelope(raw []byte) (string, error) { return ParseEnvelope(raw) }

// ParseResult ver función ParseResult.
func (ResponseParser) ParseResult(inner string) (*DistributionResult, error) {
	return ParseResult(inner)
}

// unescapeIfNeeded algunos gateways devuelven el XML escapado (&lt;...&gt;).
func unescapeIfNeeded(s string) string {
	s = strings.TrimSpace(s)
	if s != "" && !strings.HasPrefix(s, "<") && strings.Contains(s, "&lt;") {
		return strings.TrimSpace(html.UnescapeString(s))
	}
	return s
}

// ParseEnvelope devuelve el XML interno del sobre: el texto del primer elemento
// cuyo nombre local contiene "Result"; si ese elemento no tiene texto, su primer
// hijo serializado; si no hay Result, el elemento retDistDFeInt.
func ParseEnvelope(raw []byte) (string, error) {
	s := unescapeIfNeeded(string(raw))
	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	root := doc.Root()
	if root == nil {
		return "", ErrMalformedEnvelope
	}

	var found string
	walk(root, func(el *etree.Element) bool {
		if !strings.Contains(el.Tag, "Result") {
			return true
		}
		if t := strings.TrimSpace(el.Text()); t != "" {
			found = t
			return false
		}
		if children := el.ChildElements(); len(children) > 0 {
			if out, err := serialize(children[0]); err == nil {
				found = out
				return false
			}
		}
		return true
	})
	if found != "" {
		return found, nil
	}

	if ret := findLocal(root, "retDistDFeInt"); ret != nil {
		return serialize(ret)
	}
	return "", ErrNoResult
}

// ParseResult lee cStat, xMotivo y todos los docZip. Un docZip que no decodifica
// queda marcado con Err y no afecta a los demás.
func ParseResult(inner string) (*DistributionResult, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(unescapeIfNeeded(inner)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrMalformedResult
	}

	status := findLocal(root, "cStat")
	if status == nil || strings.TrimSpace(status.Text()) == "" {
		return nil, ErrMissingStatus
	}
	res := &DistributionResult{
		Status:  strings.TrimSpace(status.Text()),
		Message: localText(root, "xMotivo"),
		LastNSU: localText(root, "ultNSU"),
		MaxNSU:  localText(root, "maxNSU"),
	}

	walk(root, func(el *etree.Element) bool {
		if el.Tag != "docZip" {
			return true
		}
		d := DocZip{
			NSU:    el.SelectAttrValue("NSU", ""),
			Schema: el.SelectAttrValue("schema", ""),
		}
		if d.NSU == "" {
			d.NSU = el.SelectAttrValue("nsu", "")
		}
		xmlText, err := DecodeDocZip(el.Text())
		if err != nil {
			d.Err = err
		} else {
			d.XML = xmlText
		}
		res.Documents = append(res.Documents, d)
		return true
	})
	return res, nil
}

// DecodeDocZip base64 -> gzip -> texto UTF-8 (bytes inválidos se reemplazan por U+FFFD).
func DecodeDocZip(encoded string) (string, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, encoded)
	if clean == "" {
		return "", errors.New("docZip vacío")
	}
	compressed, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return "", fmt.Errorf("docZip base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", fmt.Errorf("docZip gzip: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(io.LimitReader(zr, maxDocBytes+1))
	if err != nil {
		return "", fmt.Errorf("docZip gzip: %w", err)
	}
	if len(data) > maxDocBytes {
		return "", errors.New("docZip excede el tamaño máximo")
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}

// EncodeDocZip inverso de DecodeDocZip: gzip + base64.
func EncodeDocZip(xmlBytes []byte) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(xmlBytes); err != nil {
		return "", fmt.Errorf("docZip gzip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("docZip gzip: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ── helpers etree ─────────────────────────────────────────────────────────────

// walk recorrido en preorden; fn devuelve false para detenerse.
func walk(el *etree.Element, fn func(*etree.Element) bool) bool {
	if !fn(el) {
		return false
	}
	for _, c := range el.ChildElements() {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func localText(root *etree.Element, local string) string {
	if el := findLocal(root, local); el != nil {
		return strings.TrimSpace(el.Text())
	}
	return ""
}

func serialize(el *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	return doc.WriteToString()
}
