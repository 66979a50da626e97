package memory

import (
	"context"
	"sort"

	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/internal/domain/repository"
)

// AuditLogRepository implementa repository.AuditLogRepository (solo agrega).
type AuditLogRepository struct {
	b binding
}

var _ repository.AuditLogRepository = (*AuditLogRepository)(nil)

func (r *AuditLogRepository) Append(_ context.Context, entry *entity.AuditLogEntry) error {
	return r.b.write(func(st *state) error {
		st.seq++
		entry.Seq = st.seq
		cp := *entry
		st.audit = append(st.audit, &cp)
		return nil
	})
}

func (r *AuditLogRepository) ListByEntity(_ context.Context, entityTable, entityID string) ([]*entity.AuditLogEntry, error) {
	out := []*entity.AuditLogEntry{}
	err := r.b.read(func(st *state) error {
		for _, e := range st.audit {
			if e.EntityTable == entityTable && e.EntityID == entityID {
				cp := *e
				out = append(out, &cp)
			}
		}
		return nil
	})
	// Orden de commit; el timestamp no se usa para ordenar.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, err
}

// Len número total de entradas (útil en tests de rollback).
func (r *AuditLogRepository) Len() int {
	n := 0
	_ = r.b.read(func(st *state) error {
		n = len(st.audit)
		return nil
	})
	return n
}
