package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/internal/domain/repository"
)

var _ repository.InventoryUnitRepository = (*InventoryUnitRepo)(nil)

// InventoryUnitRepo implementación de InventoryUnitRepository sobre PostgreSQL (usable con pool o tx).
type InventoryUnitRepo struct {
	q Querier
}

// NewInventoryUnitRepository construye el adaptador de unidades. Pasar pool o tx (Querier).
func NewInventoryUnitRepository(q Querier) *InventoryUnitRepo {
	return &InventoryUnitRepo{q: q}
}

const unitColumns = `
	uid, kind, status, lot, current_hub_id, assigned_shipment_id,
	read_passed, write_passed, last_tested_at, test_notes,
	quarantine_marker, open_transfer_id,
	received_at, assigned_at, installed_at, rma_initiated_at, updated_at, version`

func scanUnit(row pgx.Row) (*entity.InventoryUnit, error) {
	var (
		u        entity.InventoryUnit
		shipment *string
		transfer *string
	)
	err := row.Scan(
		&u.UID, &u.Kind, &u.Status, &u.Lot, &u.CurrentHubID, &shipment,
		&u.TestResults.ReadPassed, &u.TestResults.WritePassed, &u.TestResults.LastTestedAt, &u.TestResults.Notes,
		&u.QuarantineMarker, &transfer,
		&u.ReceivedAt, &u.AssignedAt, &u.InstalledAt, &u.RMAInitiatedAt, &u.UpdatedAt, &u.Version,
	)
	if err != nil {
		return nil, err
	}
	u.AssignedShipmentID = derefString(shipment)
	u.OpenTransferID = derefString(transfer)
	return &u, nil
}

func collectUnits(rows pgx.Rows) ([]*entity.InventoryUnit, error) {
	defer rows.Close()
	var list []*entity.InventoryUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// Create inserta una unidad recién recibida.
func (r *InventoryUnitRepo) Create(ctx context.Context, u *entity.InventoryUnit) error {
	query := `
		INSERT INTO inventory_units (` + unitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`
	_, err := r.q.Exec(ctx, query,
		u.UID, u.Kind, u.Status, u.Lot, u.CurrentHubID, nullString(u.AssignedShipmentID),
		u.TestResults.ReadPassed, u.TestResults.WritePassed, utcPtr(u.TestResults.LastTestedAt), u.TestResults.Notes,
		u.QuarantineMarker, nullString(u.OpenTransferID),
		u.ReceivedAt.UTC(), utcPtr(u.AssignedAt), utcPtr(u.InstalledAt), utcPtr(u.RMAInitiatedAt), u.UpdatedAt.UTC(), u.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("unidad %s: %w", u.UID, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert inventory unit: %w", err)
	}
	return nil
}

// GetByUID obtiene una unidad por UID. nil, nil si no existe.
func (r *InventoryUnitRepo) GetByUID(ctx context.Context, uid string) (*entity.InventoryUnit, error) {
	return r.get(ctx, `SELECT `+unitColumns+` FROM inventory_units WHERE uid = $1`, uid)
}

// GetForUpdate obtiene la unidad y bloquea la fila (SELECT FOR UPDATE).
func (r *InventoryUnitRepo) GetForUpdate(ctx context.Context, uid string) (*entity.InventoryUnit, error) {
	return r.get(ctx, `SELECT `+unitColumns+` FROM inventory_units WHERE uid = $1 FOR UPDATE`, uid)
}

func (r *InventoryUnitRepo) get(ctx context.Context, query, uid string) (*entity.InventoryUnit, error) {
	u, err := scanUnit(r.q.QueryRow(ctx, query, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get inventory unit: %w", err)
	}
	return u, nil
}

// LockAvailable reclama hasta limit unidades FIFO. SKIP LOCKED hace que dos reservas
// concurrentes tomen filas distintas en lugar de esperar la misma.
func (r *InventoryUnitRepo) LockAvailable(ctx context.Context, f repository.ClaimFilter, limit int) ([]*entity.InventoryUnit, error) {
	query := `
		SELECT ` + unitColumns + `
		FROM inventory_units
		WHERE current_hub_id = $1
		  AND status = 'available'
		  AND NOT quarantine_marker
		  AND open_transfer_id IS NULL
		  AND ($2::text = '' OR lot = $2)
		  AND ($3::text = '' OR kind = $3)
		  AND (NOT $4::boolean OR kind <> 'nfc_chip' OR (read_passed AND write_passed))
		ORDER BY received_at, uid
		LIMIT $5
		FOR UPDATE SKIP LOCKED`
	rows, err := r.q.Query(ctx, query, f.HubID, f.Lot, string(f.Kind), f.ReservableOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("lock available units: %w", err)
	}
	return collectUnits(rows)
}

// Update escribe el estado mutable condicionado a que el estado persistido siga siendo expected.
func (r *InventoryUnitRepo) Update(ctx context.Context, u *entity.InventoryUnit, expected entity.UnitStatus) error {
	query := `
		UPDATE inventory_units SET
			status = $2, current_hub_id = $3, assigned_shipment_id = $4,
			read_passed = $5, write_passed = $6, last_tested_at = $7, test_notes = $8,
			quarantine_marker = $9, open_transfer_id = $10,
			assigned_at = $11, installed_at = $12, rma_initiated_at = $13,
			updated_at = $14, version = $15
		WHERE uid = $1 AND status = $16`
	tag, err := r.q.Exec(ctx, query,
		u.UID, u.Status, u.CurrentHubID, nullString(u.AssignedShipmentID),
		u.TestResults.ReadPassed, u.TestResults.WritePassed, utcPtr(u.TestResults.LastTestedAt), u.TestResults.Notes,
		u.QuarantineMarker, nullString(u.OpenTransferID),
		utcPtr(u.AssignedAt), utcPtr(u.InstalledAt), utcPtr(u.RMAInitiatedAt),
		u.UpdatedAt.UTC(), u.Version, expected,
	)
	if err != nil {
		return fmt.Errorf("update inventory unit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory_units WHERE uid = $1)`, u.UID).Scan(&exists); err != nil {
			return fmt.Errorf("update inventory unit: %w", err)
		}
		if !exists {
			return fmt.Errorf("unidad %s: %w", u.UID, domain.ErrNotFound)
		}
		return fmt.Errorf("unidad %s: %w", u.UID, domain.ErrConcurrencyConflict)
	}
	return nil
}

// ListByLot lista las unidades de un lote según el filtro, en orden FIFO.
func (r *InventoryUnitRepo) ListByLot(ctx context.Context, f repository.LotFilter) ([]*entity.InventoryUnit, error) {
	statuses := make([]string, 0, len(f.Statuses))
	for _, s := range f.Statuses {
		statuses = append(statuses, string(s))
	}
	query := `
		SELECT ` + unitColumns + `
		FROM inventory_units
		WHERE lot = $1
		  AND ($2::text = '' OR current_hub_id = $2)
		  AND (cardinality($3::text[]) = 0 OR status = ANY($3::text[]))
		  AND (NOT $4::boolean OR quarantine_marker)
		ORDER BY received_at, uid`
	rows, err := r.q.Query(ctx, query, f.Lot, f.HubID, statuses, f.QuarantinedOnly)
	if err != nil {
		return nil, fmt.Errorf("list units by lot: %w", err)
	}
	return collectUnits(rows)
}

// CountByLot cuenta las unidades del lote (opcionalmente en un hub), en cualquier estado.
func (r *InventoryUnitRepo) CountByLot(ctx context.Context, lot, hubID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT count(*) FROM inventory_units
		WHERE lot = $1 AND ($2::text = '' OR current_hub_id = $2)`, lot, hubID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count units by lot: %w", err)
	}
	return n, nil
}

// ListByHub lista las unidades de un hub con paginación.
func (r *InventoryUnitRepo) ListByHub(ctx context.Context, hubID string, status entity.UnitStatus, limit, offset int) ([]*entity.InventoryUnit, error) {
	query := `
		SELECT ` + unitColumns + `
		FROM inventory_units
		WHERE current_hub_id = $1 AND ($2::text = '' OR status = $2)
		ORDER BY received_at, uid
		LIMIT $3 OFFSET $4`
	rows, err := r.q.Query(ctx, query, hubID, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list units by hub: %w", err)
	}
	list, err := collectUnits(rows)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*entity.InventoryUnit{}
	}
	return list, nil
}
