package memory

import (
	"context"
	"fmt"

	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/internal/domain/repository"
)

// TransferRepository implementa repository.TransferRepository.
type TransferRepository struct {
	b binding
}

var _ repository.TransferRepository = (*TransferRepository)(nil)

func (r *TransferRepository) Create(_ context.Context, t *entity.Transfer) error {
	return r.b.write(func(st *state) error {
		if _, ok := st.transfers[t.ID]; ok {
			return fmt.Errorf("traslado %s: %w", t.ID, domain.ErrDuplicate)
		}
		// Una unidad solo puede estar pendiente en un traslado abierto.
		for _, other := range st.transfers {
			if !other.IsOpen() {
				continue
			}
			for _, uid := range t.UIDs {
				if other.IsPending(uid) {
					return fmt.Errorf("unidad %s ya está en el traslado %s: %w", uid, other.ID, domain.ErrDuplicate)
				}
			}
		}
		st.transfers[t.ID] = t.Clone()
		return nil
	})
}

func (r *TransferRepository) GetByID(_ context.Context, id string) (*entity.Transfer, error) {
	var out *entity.Transfer
	err := r.b.read(func(st *state) error {
		out = st.transfers[id].Clone()
		return nil
	})
	return out, err
}

func (r *TransferRepository) GetForUpdate(ctx context.Context, id string) (*entity.Transfer, error) {
	return r.GetByID(ctx, id)
}

func (r *TransferRepository) MarkArrived(_ context.Context, id string, uids []string) error {
	return r.mark(id, uids, func(t *entity.Transfer) { t.ArrivedUIDs = append(t.ArrivedUIDs, uids...) })
}

func (r *TransferRepository) MarkCancelled(_ context.Context, id string, uids []string) error {
	return r.mark(id, uids, func(t *entity.Transfer) { t.CancelledUIDs = append(t.CancelledUIDs, uids...) })
}

func (r *TransferRepository) mark(id string, uids []string, apply func(t *entity.Transfer)) error {
	return r.b.write(func(st *state) error {
		t, ok := st.transfers[id]
		if !ok {
			return fmt.Errorf("traslado %s: %w", id, domain.ErrNotFound)
		}
		for _, uid := range uids {
			if !t.IsPending(uid) {
				return fmt.Errorf("unidad %s no está pendiente en el traslado %s: %w", uid, id, domain.ErrConcurrencyConflict)
			}
		}
		apply(t)
		return nil
	})
}

func (r *TransferRepository) UpdateStatus(_ context.Context, t *entity.Transfer) error {
	return r.b.write(func(st *state) error {
		cur, ok := st.transfers[t.ID]
		if !ok {
			return fmt.Errorf("traslado %s: %w", t.ID, domain.ErrNotFound)
		}
		cur.Status = t.Status
		if t.CompletedAt != nil {
			at := *t.CompletedAt
			cur.CompletedAt = &at
		}
		return nil
	})
}
