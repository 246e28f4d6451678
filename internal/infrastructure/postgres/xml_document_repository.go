package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/xsist-conector/internal/domain"
	"github.com/jhoicas/xsist-conector/internal/domain/entity"
	"github.com/jhoicas/xsist-conector/internal/domain/repository"
)

var _ repository.XMLDocumentRepository = (*XMLDocumentRepo)(nil)

// XMLDocumentRepo implementación de XMLDocumentRepository.
type XMLDocumentRepo struct {
	q Querier
}

// NewXMLDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewXMLDocumentRepository(q Querier) *XMLDocumentRepo {
	return &XMLDocumentRepo{q: q}
}

const xmlDocColumns = `id, chave, tipo, xml, COALESCE(schema_name, ''), COALESCE(nsu, ''), digest,
	COALESCE(issuer, ''), COALESCE(issued_at, ''), total, created_at, updated_at`

// Upsert inserta o reemplaza por (chave, tipo). Conserva id y created_at del
// registro existente y los devuelve en doc.
func (r *XMLDocumentRepo) Upsert(ctx context.Context, doc *entity.XMLDocument) error {
	if doc.Key == "" || doc.Family == "" || doc.Digest == "" {
		return fmt.Errorf("%w: chave, tipo y digest son obligatorios", domain.ErrInvalidInput)
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	query := `
		INSERT INTO xml_docs (id, chave, tipo, xml, schema_name, nsu, digest, issuer, issued_at, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (chave, tipo) DO UPDATE SET
			xml = EXCLUDED.xml,
			schema_name = EXCLUDED.schema_name,
			nsu = EXCLUDED.nsu,
			digest = EXCLUDED.digest,
			issuer = EXCLUDED.issuer,
			issued_at = EXCLUDED.issued_at,
			total = EXCLUDED.total,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`
	err := r.q.QueryRow(ctx, query,
		doc.ID, doc.Key, doc.Family, doc.XML, nullIfEmpty(doc.Schema), nullIfEmpty(doc.NSU), doc.Digest,
		nullIfEmpty(doc.Issuer), nullIfEmpty(doc.IssuedAt), doc.Total, now,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("upsert xml_doc: conflicto de id: %w", err)
		}
		return fmt.Errorf("upsert xml_doc: %w", err)
	}
	return nil
}

// GetByID obtiene un documento por ID; nil, nil si no existe.
func (r *XMLDocumentRepo) GetByID(ctx context.Context, id string) (*entity.XMLDocument, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+xmlDocColumns+` FROM xml_docs WHERE id = $1`, id)
}

// GetByKey obtiene el documento de una chave; nil, nil si no existe.
func (r *XMLDocumentRepo) GetByKey(ctx context.Context, key, family string) (*entity.XMLDocument, error) {
	return r.getOne(ctx, `SELECT `+xmlDocColumns+` FROM xml_docs WHERE chave = $1 AND tipo = $2`, key, family)
}

func (r *XMLDocumentRepo) getOne(ctx context.Context, query string, args ...any) (*entity.XMLDocument, error) {
	var d entity.XMLDocument
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&d.ID, &d.Key, &d.Family, &d.XML, &d.Schema, &d.NSU, &d.Digest,
		&d.Issuer, &d.IssuedAt, &d.Total, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get xml_doc: %w", err)
	}
	return &d, nil
}

// List documentos más recientes primero, sin el XML.
func (r *XMLDocumentRepo) List(ctx context.Context, limit int) ([]*entity.XMLDocument, error) {
	query := `
		SELECT id, chave, tipo, COALESCE(schema_name, ''), COALESCE(nsu, ''), digest,
			COALESCE(issuer, ''), COALESCE(issued_at, ''), total, created_at, updated_at
		FROM xml_docs ORDER BY updated_at DESC LIMIT $1`
	rows, err := r.q.Query(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list xml_docs: %w", err)
	}
	defer rows.Close()
	var list []*entity.XMLDocument
	for rows.Next() {
		var d entity.XMLDocument
		if err := rows.Scan(&d.ID, &d.Key, &d.Family, &d.Schema, &d.NSU, &d.Digest,
			&d.Issuer, &d.IssuedAt, &d.Total, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan xml_doc: %w", err)
		}
		list = append(list, &d)
	}
	return list, rows.Err()
}
