package repository

import (
	"context"

	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
)

// ClaimFilter criterios para reclamar unidades disponibles en un hub (FIFO por recepción).
// Solo se consideran unidades en estado available, sin cuarentena ni traslado abierto.
// Con ReservableOnly los chips NFC además deben tener lectura y escritura aprobadas.
type ClaimFilter struct {
	HubID          string
	Lot            string          // opcional
	Kind           entity.UnitKind // opcional
	ReservableOnly bool
}

// LotFilter selecciona unidades de un lote, opcionalmente acotado a un hub.
type LotFilter struct {
	Lot             string
	HubID           string              // opcional
	Statuses        []entity.UnitStatus // vacío = cualquiera
	QuarantinedOnly bool
}

// InventoryUnitRepository puerto de persistencia de unidades físicas (DIP).
// Las implementaciones aceptan pool o tx; los métodos *ForUpdate y Lock* solo
// tienen sentido dentro de una transacción.
type InventoryUnitRepository interface {
	Create(ctx context.Context, unit *entity.InventoryUnit) error
	GetByUID(ctx context.Context, uid string) (*entity.InventoryUnit, error)
	// GetForUpdate bloquea la fila (SELECT FOR UPDATE). nil, nil si no existe.
	GetForUpdate(ctx context.Context, uid string) (*entity.InventoryUnit, error)
	// LockAvailable bloquea hasta limit unidades elegibles, las más antiguas primero,
	// saltando filas bloqueadas por otras transacciones (FOR UPDATE SKIP LOCKED).
	LockAvailable(ctx context.Context, filter ClaimFilter, limit int) ([]*entity.InventoryUnit, error)
	// Update escribe el estado mutable solo si el estado persistido sigue siendo expected.
	// Devuelve domain.ErrConcurrencyConflict si otro escritor lo cambió.
	Update(ctx context.Context, unit *entity.InventoryUnit, expected entity.UnitStatus) error
	ListByLot(ctx context.Context, filter LotFilter) ([]*entity.InventoryUnit, error)
	CountByLot(ctx context.Context, lot, hubID string) (int, error)
	ListByHub(ctx context.Context, hubID string, status entity.UnitStatus, limit, offset int) ([]*entity.InventoryUnit, error)
}
