package sefaz

import (
	"errors"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
)

// ErrUnreadableDocument el texto no es un XML fiscal legible.
var ErrUnreadableDocument = errors.New("documento XML ilegible")

// Party emisor, destinatario o remitente del documento.
type Party struct {
	Name  string
	TaxID string // CNPJ o CPF
}

// SummaryItem línea de producto de una NF-e.
type SummaryItem struct {
	Code        string
	Description string
	Quantity    decimal.Decimal
	Unit        string
	UnitValue   decimal.Decimal
	Total       decimal.Decimal
}

// ValueComponent componente del valor de la prestación de un CT-e.
type ValueComponent struct {
	Name  string
	Value decimal.Decimal
}

// DocumentSummary datos básicos de una NF-e o CT-e para historial y DANFE/DACTE simplificado.
type DocumentSummary struct {
	Family      DocumentFamily
	Key         AccessKey
	Model       string
	Number      string
	Series      string
	IssuedAt    string // dhEmi / dEmi tal cual viene en el XML
	NatureOp    string
	Issuer      Party
	Recipient   Party
	Sender      Party // solo CT-e (rem)
	Total       decimal.Decimal
	ProductsTot decimal.Decimal // vProd (NF-e)
	ICMSTot     decimal.Decimal // vICMS (NF-e)
	Items       []SummaryItem
	Components  []ValueComponent
	CargoValue  decimal.Decimal // vCarga (CT-e)
	MainProduct string          // proPred (CT-e)
	QRCode      string
}

// Summarize lee los campos básicos del documento. Los campos ausentes quedan
// vacíos (o en cero); solo falla si el texto no es XML.
func Summarize(xmlText string) (*DocumentSummary, error) {
	root := parseMarkup(xmlText)
	if root == nil {
		return nil, ErrUnreadableDocument
	}

	s := &DocumentSummary{}
	if key, fam, ok := ExtractPrimary(xmlText); ok {
		s.Key, s.Family = key, fam
	} else if fam, ok := DetectFamily(xmlText); ok {
		s.Family = fam
	}

	ide := findElement(root, "ide")
	s.Model = childText(ide, "mod")
	s.Series = childText(ide, "serie")
	s.IssuedAt = firstNonEmpty(childText(ide, "dhEmi"), childText(ide, "dEmi"), childText(ide, "dhCont"))
	s.NatureOp = childText(ide, "natOp")

	s.Issuer = party(findElement(root, "emit"))
	s.Recipient = party(findElement(root, "dest"))

	switch s.Family {
	case FamilyCTe:
		s.Number = childText(ide, "nCT")
		s.Sender = party(findElement(root, "rem"))
		prest := findElement(root, "vPrest")
		s.Total = parseDecimal(childText(prest, "vTPrest"))
		if prest != nil {
			for _, c := range prest.ChildElements() {
				if c.Tag != "Comp" {
					continue
				}
				s.Components = append(s.Components, ValueComponent{
					Name:  childText(c, "xNome"),
					Value: parseDecimal(childText(c, "vComp")),
				})
			}
		}
		carga := findElement(root, "infCarga")
		s.CargoValue = parseDecimal(childText(carga, "vCarga"))
		s.MainProduct = childText(carga, "proPred")
		s.QRCode = firstNonEmpty(elementText(findElement(root, "qrCodCTe")), elementText(findElement(root, "qrCode")))
	default:
		s.Number = childText(ide, "nNF")
		tot := findElement(root, "ICMSTot")
		s.Total = parseDecimal(childText(tot, "vNF"))
		s.ProductsTot = parseDecimal(childText(tot, "vProd"))
		s.ICMSTot = parseDecimal(childText(tot, "vICMS"))
		s.Items = items(root)
		s.QRCode = elementText(findElement(root, "qrCode"))
	}
	if s.QRCode == "" {
		s.QRCode = s.Key.String()
	}
	return s, nil
}

func items(root *etree.Element) []SummaryItem {
	infNFe := findElement(root, "infNFe")
	if infNFe == nil {
		return nil
	}
	var out []SummaryItem
	for _, det := range infNFe.ChildElements() {
		if det.Tag != "det" {
			continue
		}
		prod := findElement(det, "prod")
		out = append(out, SummaryItem{
			Code:        childText(prod, "cProd"),
			Description: childText(prod, "xProd"),
			Quantity:    parseDecimal(childText(prod, "qCom")),
			Unit:        childText(prod, "uCom"),
			UnitValue:   parseDecimal(childText(prod, "vUnCom")),
			Total:       parseDecimal(childText(prod, "vProd")),
		})
	}
	return out
}

func party(el *etree.Element) Party {
	if el == nil {
		return Party{}
	}
	return Party{
		Name:  childText(el, "xNome"),
		TaxID: firstNonEmpty(childText(el, "CNPJ"), childText(el, "CPF")),
	}
}

// childText texto del primer hijo directo con nombre local name.
func childText(el *etree.Element, name string) string {
	if el == nil {
		return ""
	}
	for _, c := range el.ChildElements() {
		if c.Tag == name {
			return strings.TrimSpace(c.Text())
		}
	}
	return ""
}

func elementText(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
