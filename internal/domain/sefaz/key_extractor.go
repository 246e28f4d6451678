package sefaz

import (
	"strings"

	"github.com/beevik/etree"

	pkgsefaz "github.com/jhoicas/xsist-conector/pkg/sefaz"
)

// fallbackWindow cantidad de bytes inspeccionados tras cada marcador de familia
// en la búsqueda sobre texto crudo.
const fallbackWindow = 60

// Match resultado de una estrategia de extracción. Family puede venir vacía
// cuando la estrategia no sabe a qué familia pertenece la chave.
type Match struct {
	Key      AccessKey
	Family   DocumentFamily
	Strategy string
}

// Strategy función pura texto -> chave. Las estrategias se prueban en orden y
// la primera que encuentra algo gana.
type Strategy struct {
	Name string
	Find func(text string) (Match, bool)
}

// familyMarker relaciona el prefijo/marcador textual con su familia.
type familyMarker struct {
	prefix string
	family DocumentFamily
}

var familyMarkers = []familyMarker{
	{prefix: "NFe", family: FamilyNFe},
	{prefix: "CTe", family: FamilyCTe},
}

// DefaultStrategies orden de extracción usado por ExtractPrimary.
var DefaultStrategies = []Strategy{
	{Name: "markup-id", Find: findByInfID},
	{Name: "markup-leaf", Find: findByLeafElement},
	{Name: "raw-marker", Find: findByRawMarker},
}

// KeyExtractor extrae chaves de acceso desde documentos o texto libre.
// Es inmutable y seguro para uso concurrente.
type KeyExtractor struct {
	strategies []Strategy
}

// NewKeyExtractor crea un extractor con las estrategias dadas (DefaultStrategies si no se pasa ninguna).
func NewKeyExtractor(strategies ...Strategy) *KeyExtractor {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	s := make([]Strategy, len(strategies))
	copy(s, strategies)
	return &KeyExtractor{strategies: s}
}

var defaultExtractor = NewKeyExtractor()

// ExtractPrimary aplica DefaultStrategies. Ver KeyExtractor.ExtractPrimary.
func ExtractPrimary(text string) (AccessKey, DocumentFamily, bool) {
	return defaultExtractor.ExtractPrimary(text)
}

// ExtractPrimary devuelve la chave principal del documento y su familia.
// Si ninguna estrategia encuentra candidata devuelve ("", "", false): no es un
// error, el llamador debe pedir la chave manualmente.
func (x *KeyExtractor) ExtractPrimary(text string) (AccessKey, DocumentFamily, bool) {
	m, ok := x.Match(text)
	if !ok {
		return "", "", false
	}
	return m.Key, m.Family, true
}

// Match como ExtractPrimary pero indica además qué estrategia ganó.
func (x *KeyExtractor) Match(text string) (Match, bool) {
	if strings.TrimSpace(text) == "" {
		return Match{}, false
	}
	for _, s := range x.strategies {
		m, ok := s.Find(text)
		if !ok {
			continue
		}
		if m.Strategy == "" {
			m.Strategy = s.Name
		}
		if m.Family == "" {
			m.Family = inferFamily(text, m.Key)
		}
		return m, true
	}
	return Match{}, false
}

// DetectFamily devuelve solo la familia del documento, aun cuando no contenga chave.
func DetectFamily(text string) (DocumentFamily, bool) {
	if _, fam, ok := ExtractPrimary(text); ok && fam != "" {
		return fam, true
	}
	fam := inferFamily(text, "")
	return fam, fam != ""
}

// inferFamily busca un marcador de familia (infNFe / infCte) sin distinguir
// mayúsculas; si no lo hay, usa el modelo codificado en la chave.
func inferFamily(text string, key AccessKey) DocumentFamily {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "infnfe"):
		return FamilyNFe
	case strings.Contains(lower, "infcte"):
		return FamilyCTe
	}
	if fam, ok := FamilyForModel(key.Model()); ok {
		return fam
	}
	return ""
}

// ── Estrategias sobre markup ─────────────────────────────────────────────────

// parseMarkup devuelve la raíz del documento o nil si el texto no es XML.
func parseMarkup(text string) *etree.Element {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "<") {
		return nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(trimmed); err != nil {
		return nil
	}
	return doc.Root()
}

// findElement recorre el árbol en profundidad y devuelve el primer elemento
// cuyo nombre local esté en names.
func findElement(root *etree.Element, names ...string) *etree.Element {
	if root == nil {
		return nil
	}
	for _, n := range names {
		if root.Tag == n {
			return root
		}
	}
	for _, child := range root.ChildElements() {
		if el := findElement(child, names...); el != nil {
			return el
		}
	}
	return nil
}

// findByInfID estrategia 1: <infNFe Id="NFe{44}"> / <infCte Id="CTe{44}">.
func findByInfID(text string) (Match, bool) {
	root := parseMarkup(text)
	if root == nil {
		return Match{}, false
	}
	candidates := []struct {
		names  []string
		marker familyMarker
	}{
		{names: []string{"infNFe"}, marker: familyMarkers[0]},
		{names: []string{"infCte", "infCTe"}, marker: familyMarkers[1]},
	}
	for _, c := range candidates {
		el := findElement(root, c.names...)
		if el == nil {
			continue
		}
		id := el.SelectAttrValue("Id", "")
		if !strings.HasPrefix(id, c.marker.prefix) || len(id) < len(c.marker.prefix)+AccessKeyLength {
			continue
		}
		key, err := ParseAccessKey(id[len(c.marker.prefix) : len(c.marker.prefix)+AccessKeyLength])
		if err != nil {
			continue
		}
		return Match{Key: key, Family: c.marker.family}, true
	}
	return Match{}, false
}

// findByLeafElement estrategia 2: <chNFe> / <chCTe> con exactamente 44 dígitos.
func findByLeafElement(text string) (Match, bool) {
	root := parseMarkup(text)
	if root == nil {
		return Match{}, false
	}
	leaves := []struct {
		name   string
		family DocumentFamily
	}{
		{name: "chNFe", family: FamilyNFe},
		{name: "chCTe", family: FamilyCTe},
	}
	for _, l := range leaves {
		el := findElement(root, l.name)
		if el == nil {
			continue
		}
		v := strings.TrimSpace(el.Text())
		if len(v) != AccessKeyLength || !pkgsefaz.IsDigits(v) {
			continue
		}
		return Match{Key: AccessKey(v), Family: l.family}, true
	}
	return Match{}, false
}

// ── Estrategia sobre texto crudo ─────────────────────────────────────────────

// findByRawMarker estrategia 3: tras cada aparición de "NFe" / "CTe" toma los
// dígitos de una ventana corta y se queda con los primeros 44.
func findByRawMarker(text string) (Match, bool) {
	for _, m := range familyMarkers {
		from := 0
		for {
			i := strings.Index(text[from:], m.prefix)
			if i < 0 {
				break
			}
			start := from + i
			end := start + fallbackWindow
			if end > len(text) {
				end = len(text)
			}
			if digits := collectDigits(text[start:end]); len(digits) >= AccessKeyLength {
				return Match{Key: AccessKey(digits[:AccessKeyLength]), Family: m.family}, true
			}
			from = start + len(m.prefix)
		}
	}
	return Match{}, false
}

func collectDigits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// ── ExtractAll ───────────────────────────────────────────────────────────────

// ExtractAll devuelve todas las secuencias de exactamente 44 dígitos que no
// forman parte de una secuencia numérica mayor, sin duplicados y en orden de
// aparición. Una sola pasada lineal sobre el texto.
func ExtractAll(text string) []AccessKey {
	var (
		out  []AccessKey
		seen = make(map[string]struct{})
	)
	runStart := -1
	flush := func(end int) {
		if runStart >= 0 && end-runStart == AccessKeyLength {
			k := text[runStart:end]
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				out = append(out, AccessKey(k))
			}
		}
		runStart = -1
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c >= '0' && c <= '9' {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return out
}
