package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/xsist-conector/internal/domain/entity"
	"github.com/jhoicas/xsist-conector/internal/domain/repository"
)

var _ repository.DownloadEventRepository = (*DownloadEventRepo)(nil)

// DownloadEventRepo implementación de DownloadEventRepository (usable con pool o tx).
type DownloadEventRepo struct {
	q Querier
}

// NewDownloadEventRepository construye el adaptador. Pasar pool o tx (Querier).
func NewDownloadEventRepository(q Querier) *DownloadEventRepo {
	return &DownloadEventRepo{q: q}
}

// Create persiste un intento de descarga. ID y timestamps se completan si vienen vacíos.
func (r *DownloadEventRepo) Create(ctx context.Context, ev *entity.DownloadEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	if ev.UpdatedAt.IsZero() {
		ev.UpdatedAt = ev.CreatedAt
	}
	query := `
		INSERT INTO downloads (id, chave, tipo, status, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		ev.ID, ev.Key, ev.Family, ev.Status, ev.Message, ev.CreatedAt, ev.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}
	return nil
}

// UpdateStatus cambia estado y mensaje del intento.
func (r *DownloadEventRepo) UpdateStatus(ctx context.Context, id, status, message string) error {
	query := `UPDATE downloads SET status = $2, message = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id, status, message, time.Now().UTC()); err != nil {
		return fmt.Errorf("update download: %w", err)
	}
	return nil
}

// List últimos intentos, más recientes primero.
func (r *DownloadEventRepo) List(ctx context.Context, limit int) ([]*entity.DownloadEvent, error) {
	query := `
		SELECT id, chave, tipo, status, message, created_at, updated_at
		FROM downloads ORDER BY created_at DESC LIMIT $1`
	rows, err := r.q.Query(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()
	var list []*entity.DownloadEvent
	for rows.Next() {
		var ev entity.DownloadEvent
		if err := rows.Scan(&ev.ID, &ev.Key, &ev.Family, &ev.Status, &ev.Message, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		list = append(list, &ev)
	}
	return list, rows.Err()
}
