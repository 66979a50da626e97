package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/tagtrack-api/internal/application/events"
	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/internal/domain/lifecycle"
	"github.com/jhoicas/tagtrack-api/internal/domain/repository"
	"github.com/jhoicas/tagtrack-api/pkg/logger"
)

// Deps dependencias compartidas por los casos de uso del motor de inventario.
// UnitRepo, AuditRepo y TransferRepo son los adaptadores sobre el pool (lecturas fuera de tx).
type Deps struct {
	TxRunner     TxRunner
	UnitRepo     repository.InventoryUnitRepository
	AuditRepo    repository.AuditLogRepository
	TransferRepo repository.TransferRepository
	Publisher    events.Publisher
	Metrics      MetricsRecorder
	Logger       *logger.Logger
	Now          func() time.Time
}

type engine struct {
	tx        TxRunner
	units     repository.InventoryUnitRepository
	audit     repository.AuditLogRepository
	transfers repository.TransferRepository
	publisher events.Publisher
	metrics   MetricsRecorder
	log       *logger.Logger
	clock     func() time.Time
}

func newEngine(d Deps, component string) engine {
	e := engine{
		tx:        d.TxRunner,
		units:     d.UnitRepo,
		audit:     d.AuditRepo,
		transfers: d.TransferRepo,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		log:       d.Logger,
		clock:     d.Now,
	}
	if e.publisher == nil {
		e.publisher = events.Discard
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	e.log = e.log.Named(component)
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

func (e engine) now() time.Time {
	return e.clock().UTC()
}

// observe se usa con defer; errp apunta al error nombrado de la operación.
func (e engine) observe(operation string, started time.Time, errp *error) {
	if e.metrics != nil {
		e.metrics.ObserveOperation(operation, started, *errp)
	}
}

// publish emite los eventos después del commit. Nunca falla.
func (e engine) publish(ctx context.Context, evts ...entity.Event) {
	for _, evt := range evts {
		e.publisher.Publish(ctx, evt)
	}
}

func newEvent(t entity.EventType, actorID string, at time.Time) entity.Event {
	return entity.Event{
		ID:        uuid.New().String(),
		Type:      t,
		ActorID:   actorID,
		Timestamp: at,
	}
}

func unitEvent(t entity.EventType, u *entity.InventoryUnit, actorID string, at time.Time) entity.Event {
	evt := newEvent(t, actorID, at)
	evt.UID = u.UID
	evt.Lot = u.Lot
	evt.HubID = u.CurrentHubID
	evt.Data = map[string]any{"status": string(u.Status), "kind": string(u.Kind)}
	if u.AssignedShipmentID != "" {
		evt.Data["shipment_id"] = u.AssignedShipmentID
	}
	return evt
}

// change describe una transición de estado con su auditoría.
type change struct {
	to     entity.UnitStatus
	action entity.AuditAction
	reason string
	actor  string
	at     time.Time
	mutate func(u *entity.InventoryUnit)
}

// applyChange es el único camino de escritura de estado: valida contra la máquina de
// estados, escribe la unidad condicionada al estado leído y agrega la entrada de auditoría,
// todo con los repos de la transacción en curso.
func applyChange(
	ctx context.Context,
	unitRepo repository.InventoryUnitRepository,
	auditRepo repository.AuditLogRepository,
	unit *entity.InventoryUnit,
	c change,
) error {
	if err := lifecycle.Check(unit, c.to); err != nil {
		return err
	}
	from := unit.Status
	if c.mutate != nil {
		c.mutate(unit)
	}
	unit.Status = c.to
	unit.UpdatedAt = c.at
	unit.Version++
	if err := unitRepo.Update(ctx, unit, from); err != nil {
		return err
	}
	return auditRepo.Append(ctx, &entity.AuditLogEntry{
		ID:          uuid.New().String(),
		EntityTable: entity.AuditEntityInventoryUnits,
		EntityID:    unit.UID,
		Action:      c.action,
		FieldName:   entity.AuditFieldStatus,
		OldValue:    string(from),
		NewValue:    string(c.to),
		Reason:      c.reason,
		ActorID:     c.actor,
		Timestamp:   c.at,
	})
}

// lockUnit bloquea la unidad y verifica que exista (y que esté en hubID si se indica).
func lockUnit(ctx context.Context, unitRepo repository.InventoryUnitRepository, uid, hubID string) (*entity.InventoryUnit, error) {
	unit, err := unitRepo.GetForUpdate(ctx, uid)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, fmt.Errorf("unidad %s: %w", uid, domain.ErrNotFound)
	}
	if hubID != "" && unit.CurrentHubID != hubID {
		return nil, fmt.Errorf("unidad %s no está en el hub %s: %w", uid, hubID, domain.ErrNotFound)
	}
	return unit, nil
}

// requireActor toda escritura necesita el actor autenticado para su auditoría.
func requireActor(actorID string) error {
	if actorID == "" {
		return fmt.Errorf("%w: actor requerido", domain.ErrUnauthorized)
	}
	return nil
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
}

func dedupe(uids []string) []string {
	seen := make(map[string]struct{}, len(uids))
	out := make([]string, 0, len(uids))
	for _, uid := range uids {
		if uid == "" {
			continue
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		out = append(out, uid)
	}
	return out
}
