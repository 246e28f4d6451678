package repository

import (
	"context"

	"github.com/jhoicas/xsist-conector/internal/domain/entity"
)

// DownloadEventRepository puerto de persistencia del historial de descargas.
type DownloadEventRepository interface {
	Create(ctx context.Context, ev *entity.DownloadEvent) error
	// UpdateStatus cambia estado y mensaje; un id inexistente no es error.
	UpdateStatus(ctx context.Context, id, status, message string) error
	// List devuelve los eventos más recientes primero.
	List(ctx context.Context, limit int) ([]*entity.DownloadEvent, error)
}

// XMLDocumentRepository puerto de persistencia de los XML recuperados.
type XMLDocumentRepository interface {
	// Upsert inserta o reemplaza por (Key, Family). Rellena ID y timestamps.
	Upsert(ctx context.Context, doc *entity.XMLDocument) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.XMLDocument, error)
	GetByKey(ctx context.Context, key, family string) (*entity.XMLDocument, error)
	// List devuelve los documentos más recientes primero, sin el XML.
	List(ctx context.Context, limit int) ([]*entity.XMLDocument, error)
}
