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

var _ repository.TransferRepository = (*TransferRepo)(nil)

// Estados de una unidad dentro de transfer_units.
const (
	transferUnitPending   = "pending"
	transferUnitArrived   = "arrived"
	transferUnitCancelled = "cancelled"
)

// TransferRepo traslados: cabecera en transfers, unidades en transfer_units.
type TransferRepo struct {
	q Querier
}

// NewTransferRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTransferRepository(q Querier) *TransferRepo {
	return &TransferRepo{q: q}
}

// Create inserta la cabecera y las unidades pendientes. El índice único parcial sobre
// transfer_units(uid) WHERE state = 'pending' impide una unidad en dos traslados abiertos.
func (r *TransferRepo) Create(ctx context.Context, t *entity.Transfer) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO transfers (id, from_hub_id, to_hub_id, reason, eta, status, created_by, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.FromHubID, t.ToHubID, t.Reason, utcPtr(t.ETA), t.Status, t.CreatedBy, t.CreatedAt.UTC(), utcPtr(t.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("traslado %s: %w", t.ID, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO transfer_units (transfer_id, uid, position, state)
		SELECT $1, u.uid, u.ord, 'pending'
		FROM unnest($2::text[]) WITH ORDINALITY AS u(uid, ord)`,
		t.ID, t.UIDs,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("traslado %s: unidad ya en otro traslado abierto: %w", t.ID, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert transfer units: %w", err)
	}
	return nil
}

const transferColumns = `id, from_hub_id, to_hub_id, reason, eta, status, created_by, created_at, completed_at`

// GetByID obtiene un traslado con sus unidades. nil, nil si no existe.
func (r *TransferRepo) GetByID(ctx context.Context, id string) (*entity.Transfer, error) {
	return r.get(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)
}

// GetForUpdate bloquea la cabecera del traslado.
func (r *TransferRepo) GetForUpdate(ctx context.Context, id string) (*entity.Transfer, error) {
	return r.get(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1 FOR UPDATE`, id)
}

func (r *TransferRepo) get(ctx context.Context, query, id string) (*entity.Transfer, error) {
	var t entity.Transfer
	err := r.q.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.FromHubID, &t.ToHubID, &t.Reason, &t.ETA, &t.Status, &t.CreatedBy, &t.CreatedAt, &t.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}

	rows, err := r.q.Query(ctx, `
		SELECT uid, state FROM transfer_units WHERE transfer_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get transfer units: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var uid, state string
		if err := rows.Scan(&uid, &state); err != nil {
			return nil, err
		}
		t.UIDs = append(t.UIDs, uid)
		switch state {
		case transferUnitArrived:
			t.ArrivedUIDs = append(t.ArrivedUIDs, uid)
		case transferUnitCancelled:
			t.CancelledUIDs = append(t.CancelledUIDs, uid)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkArrived pasa unidades pendientes a arrived.
func (r *TransferRepo) MarkArrived(ctx context.Context, id string, uids []string) error {
	return r.mark(ctx, id, uids, transferUnitArrived)
}

// MarkCancelled pasa unidades pendientes a cancelled.
func (r *TransferRepo) MarkCancelled(ctx context.Context, id string, uids []string) error {
	return r.mark(ctx, id, uids, transferUnitCancelled)
}

func (r *TransferRepo) mark(ctx context.Context, id string, uids []string, state string) error {
	if len(uids) == 0 {
		return nil
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE transfer_units SET state = $3, settled_at = now()
		WHERE transfer_id = $1 AND uid = ANY($2::text[]) AND state = $4`,
		id, uids, state, transferUnitPending,
	)
	if err != nil {
		return fmt.Errorf("mark transfer units %s: %w", state, err)
	}
	if int(tag.RowsAffected()) != len(uids) {
		return fmt.Errorf("traslado %s: %w", id, domain.ErrConcurrencyConflict)
	}
	return nil
}

// UpdateStatus cierra el traslado.
func (r *TransferRepo) UpdateStatus(ctx context.Context, t *entity.Transfer) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE transfers SET status = $2, completed_at = $3 WHERE id = $1`,
		t.ID, t.Status, utcPtr(t.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("traslado %s: %w", t.ID, domain.ErrNotFound)
	}
	return nil
}
