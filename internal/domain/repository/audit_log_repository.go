package repository

import (
	"context"

	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
)

// AuditLogRepository puerto del log de auditoría append-only. No expone Update ni Delete.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *entity.AuditLogEntry) error
	// ListByEntity devuelve las entradas de una entidad en orden de commit (timestamp, seq).
	ListByEntity(ctx context.Context, entityTable, entityID string) ([]*entity.AuditLogEntry, error)
}
