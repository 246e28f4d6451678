package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// XMLDocument XML fiscal recuperado. Único por (Key, Family): una nueva descarga
// de la misma chave reemplaza el contenido.
type XMLDocument struct {
	ID        string
	Key       string
	Family    string
	XML       string
	Schema    string // schema informado en el docZip (ej. procNFe_v4.00.xsd)
	NSU       string
	Digest    string // SHA-256 hex del XML canónico (C14N)
	Issuer    string
	IssuedAt  string
	Total     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}
