package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/internal/domain/repository"
)

// UnitRepository implementa repository.InventoryUnitRepository.
type UnitRepository struct {
	b binding
}

var _ repository.InventoryUnitRepository = (*UnitRepository)(nil)

func (r *UnitRepository) Create(_ context.Context, unit *entity.InventoryUnit) error {
	return r.b.write(func(st *state) error {
		if _, ok := st.units[unit.UID]; ok {
			return fmt.Errorf("unidad %s: %w", unit.UID, domain.ErrDuplicate)
		}
		st.units[unit.UID] = unit.Clone()
		return nil
	})
}

func (r *UnitRepository) GetByUID(_ context.Context, uid string) (*entity.InventoryUnit, error) {
	var out *entity.InventoryUnit
	err := r.b.read(func(st *state) error {
		out = st.units[uid].Clone()
		return nil
	})
	return out, err
}

// GetForUpdate en memoria el bloqueo ya lo da la transacción serializada.
func (r *UnitRepository) GetForUpdate(ctx context.Context, uid string) (*entity.InventoryUnit, error) {
	return r.GetByUID(ctx, uid)
}

func (r *UnitRepository) LockAvailable(_ context.Context, filter repository.ClaimFilter, limit int) ([]*entity.InventoryUnit, error) {
	var out []*entity.InventoryUnit
	err := r.b.read(func(st *state) error {
		for _, u := range st.units {
			if u.Status != entity.StatusAvailable || u.CurrentHubID != filter.HubID {
				continue
			}
			if u.QuarantineMarker || u.OpenTransferID != "" {
				continue
			}
			if filter.Lot != "" && u.Lot != filter.Lot {
				continue
			}
			if filter.Kind != "" && u.Kind != filter.Kind {
				continue
			}
			if filter.ReservableOnly && u.RequiresTests() && !u.TestResults.Passed() {
				continue
			}
			out = append(out, u.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortFIFO(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *UnitRepository) Update(_ context.Context, unit *entity.InventoryUnit, expected entity.UnitStatus) error {
	return r.b.write(func(st *state) error {
		cur, ok := st.units[unit.UID]
		if !ok {
			return fmt.Errorf("unidad %s: %w", unit.UID, domain.ErrNotFound)
		}
		if cur.Status != expected {
			return fmt.Errorf("unidad %s: %w", unit.UID, domain.ErrConcurrencyConflict)
		}
		st.units[unit.UID] = unit.Clone()
		return nil
	})
}

func (r *UnitRepository) ListByLot(_ context.Context, filter repository.LotFilter) ([]*entity.InventoryUnit, error) {
	var out []*entity.InventoryUnit
	err := r.b.read(func(st *state) error {
		for _, u := range st.units {
			if u.Lot != filter.Lot {
				continue
			}
			if filter.HubID != "" && u.CurrentHubID != filter.HubID {
				continue
			}
			if filter.QuarantinedOnly && !u.QuarantineMarker {
				continue
			}
			if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, u.Status) {
				continue
			}
			out = append(out, u.Clone())
		}
		return nil
	})
	sortFIFO(out)
	return out, err
}

func (r *UnitRepository) CountByLot(_ context.Context, lot, hubID string) (int, error) {
	n := 0
	err := r.b.read(func(st *state) error {
		for _, u := range st.units {
			if u.Lot == lot && (hubID == "" || u.CurrentHubID == hubID) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *UnitRepository) ListByHub(_ context.Context, hubID string, status entity.UnitStatus, limit, offset int) ([]*entity.InventoryUnit, error) {
	var all []*entity.InventoryUnit
	err := r.b.read(func(st *state) error {
		for _, u := range st.units {
			if u.CurrentHubID != hubID || (status != "" && u.Status != status) {
				continue
			}
			all = append(all, u.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortFIFO(all)
	if offset >= len(all) {
		return []*entity.InventoryUnit{}, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func sortFIFO(units []*entity.InventoryUnit) {
	sort.Slice(units, func(i, j int) bool {
		if !units[i].ReceivedAt.Equal(units[j].ReceivedAt) {
			return units[i].ReceivedAt.Before(units[j].ReceivedAt)
		}
		return units[i].UID < units[j].UID
	})
}

func hasStatus(list []entity.UnitStatus, s entity.UnitStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
