package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/internal/domain/repository"
)

var _ repository.AuditLogRepository = (*AuditLogRepo)(nil)

// AuditLogRepo log de auditoría append-only. La tabla además tiene un trigger que
// rechaza UPDATE y DELETE.
type AuditLogRepo struct {
	q Querier
}

// NewAuditLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditLogRepository(q Querier) *AuditLogRepo {
	return &AuditLogRepo{q: q}
}

// Append inserta la entrada y completa su Seq.
func (r *AuditLogRepo) Append(ctx context.Context, e *entity.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log (id, entity_table, entity_id, action, field_name, old_value, new_value, reason, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq`
	err := r.q.QueryRow(ctx, query,
		e.ID, e.EntityTable, e.EntityID, e.Action, e.FieldName, e.OldValue, e.NewValue, e.Reason, e.ActorID, e.Timestamp.UTC(),
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListByEntity devuelve las entradas de una entidad en orden de commit. Por entidad, seq
// se asigna con la fila de la unidad bloqueada; created_at no sirve para ordenar.
func (r *AuditLogRepo) ListByEntity(ctx context.Context, entityTable, entityID string) ([]*entity.AuditLogEntry, error) {
	query := `
		SELECT id, seq, entity_table, entity_id, action, field_name, old_value, new_value, reason, actor_id, created_at
		FROM audit_log
		WHERE entity_table = $1 AND entity_id = $2
		ORDER BY seq`
	rows, err := r.q.Query(ctx, query, entityTable, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	defer rows.Close()
	list := []*entity.AuditLogEntry{}
	for rows.Next() {
		var e entity.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.Seq, &e.EntityTable, &e.EntityID, &e.Action, &e.FieldName,
			&e.OldValue, &e.NewValue, &e.Reason, &e.ActorID, &e.Timestamp); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}
