package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/internal/domain/lifecycle"
	"github.com/jhoicas/tagtrack-api/internal/domain/repository"
)

// UnitUseCase recepción, pruebas, bajas (defectuosa / RMA) y consultas de unidades.
type UnitUseCase struct {
	engine
}

// NewUnitUseCase construye el caso de uso.
func NewUnitUseCase(deps Deps) *UnitUseCase {
	return &UnitUseCase{engine: newEngine(deps, "inventory.units")}
}

// ReceiveInput entrada para recibir una unidad en un hub.
type ReceiveInput struct {
	UID         string
	Kind        entity.UnitKind
	Lot         string
	HubID       string
	TestResults *entity.TestResults
	ActorID     string
}

// ReceiveBatchInput recepción de Count unidades de un lote con UIDs <LOTE>-<SEQ>.
type ReceiveBatchInput struct {
	Lot           string
	HubID         string
	Kind          entity.UnitKind
	Count         int
	FirstSequence int
	TestResults   *entity.TestResults
	ActorID       string
}

// MaxBatchSize límite de unidades por recepción en lote.
const MaxBatchSize = 5000

// Receive crea la unidad en estado available. Es la única forma de crear unidades.
func (uc *UnitUseCase) Receive(ctx context.Context, in ReceiveInput) (_ *entity.InventoryUnit, err error) {
	defer uc.observe("receive", time.Now(), &err)
	units, err := uc.receive(ctx, []ReceiveInput{in})
	if err != nil {
		return nil, err
	}
	return units[0], nil
}

// ReceiveBatch recibe un lote completo en una sola transacción (todo o nada).
func (uc *UnitUseCase) ReceiveBatch(ctx context.Context, in ReceiveBatchInput) (_ []*entity.InventoryUnit, err error) {
	defer uc.observe("receive_batch", time.Now(), &err)
	if in.Count <= 0 || in.Count > MaxBatchSize {
		return nil, invalidInput(fmt.Sprintf("count debe estar entre 1 y %d", MaxBatchSize))
	}
	if in.FirstSequence < 0 {
		return nil, invalidInput("first_sequence no puede ser negativa")
	}
	lot := lifecycle.NormalizeLot(in.Lot)
	inputs := make([]ReceiveInput, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		inputs = append(inputs, ReceiveInput{
			UID:         lifecycle.FormatUID(lot, in.FirstSequence+i),
			Kind:        in.Kind,
			Lot:         lot,
			HubID:       in.HubID,
			TestResults: in.TestResults,
			ActorID:     in.ActorID,
		})
	}
	return uc.receive(ctx, inputs)
}

func (uc *UnitUseCase) receive(ctx context.Context, inputs []ReceiveInput) ([]*entity.InventoryUnit, error) {
	for i, in := range inputs {
		in.Lot = lifecycle.NormalizeLot(in.Lot)
		inputs[i] = in
		if err := validateReceive(in); err != nil {
			return nil, err
		}
	}
	var (
		created []*entity.InventoryUnit
		now     time.Time
	)

	err := uc.tx.Run(ctx, func(
		unitRepo repository.InventoryUnitRepository,
		auditRepo repository.AuditLogRepository,
		_ repository.TransferRepository,
	) error {
		now = uc.now()
		created = make([]*entity.InventoryUnit, 0, len(inputs))
		for _, in := range inputs {
			existing, err := unitRepo.GetByUID(ctx, in.UID)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("unidad %s: %w", in.UID, domain.ErrDuplicate)
			}
			unit := &entity.InventoryUnit{
				UID:          in.UID,
				Kind:         in.Kind,
				Status:       entity.StatusAvailable,
				Lot:          in.Lot,
				CurrentHubID: in.HubID,
				ReceivedAt:   now,
				UpdatedAt:    now,
				Version:      1,
			}
			if in.TestResults != nil {
				unit.TestResults = stampResults(*in.TestResults, now)
			}
			if err := unitRepo.Create(ctx, unit); err != nil {
				return err
			}
			if err := auditRepo.Append(ctx, &entity.AuditLogEntry{
				ID:          uuid.New().String(),
				EntityTable: entity.AuditEntityInventoryUnits,
				EntityID:    unit.UID,
				Action:      entity.AuditActionReceive,
				FieldName:   entity.AuditFieldStatus,
				OldValue:    string(lifecycle.StatusNone),
				NewValue:    string(entity.StatusAvailable),
				Reason:      "recepción en hub " + in.HubID,
				ActorID:     in.ActorID,
				Timestamp:   now,
			}); err != nil {
				return err
			}
			created = append(created, unit)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, u := range created {
		uc.publish(ctx, unitEvent(entity.EventInventoryReceived, u, inputs[i].ActorID, now))
	}
	uc.log.Info().Int("count", len(created)).Str("hub_id", inputs[0].HubID).Str("lot", inputs[0].Lot).Msg("unidades recibidas")
	return created, nil
}

func validateReceive(in ReceiveInput) error {
	switch {
	case in.UID == "":
		return invalidInput("uid requerido")
	case !in.Kind.Valid():
		return invalidInput(fmt.Sprintf("tipo de unidad desconocido %q", in.Kind))
	case in.Lot == "":
		return invalidInput("lote requerido")
	case in.HubID == "":
		return invalidInput("hub requerido")
	}
	return requireActor(in.ActorID)
}

func stampResults(r entity.TestResults, now time.Time) entity.TestResults {
	if r.LastTestedAt == nil {
		t := now
		r.LastTestedAt = &t
	}
	return r
}

func summarizeResults(r entity.TestResults) string {
	return fmt.Sprintf("read=%t,write=%t", r.ReadPassed, r.WritePassed)
}

// RecordTestResults guarda el resultado de una prueba de lectura/escritura. Solo aplica
// a unidades en stock o reservadas; no cambia el estado.
func (uc *UnitUseCase) RecordTestResults(ctx context.Context, uid string, results entity.TestResults, actorID string) (_ *entity.InventoryUnit, err error) {
	defer uc.observe("record_tests", time.Now(), &err)
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if uid == "" {
		return nil, invalidInput("uid requerido")
	}
	var (
		unit *entity.InventoryUnit
		now  time.Time
	)

	err = uc.tx.Run(ctx, func(
		unitRepo repository.InventoryUnitRepository,
		auditRepo repository.AuditLogRepository,
		_ repository.TransferRepository,
	) error {
		u, err := lockUnit(ctx, unitRepo, uid, "")
		if err != nil {
			return err
		}
		if u.Status != entity.StatusAvailable && u.Status != entity.StatusAssigned {
			return fmt.Errorf("%w: no se registran pruebas para unidades en estado %s", domain.ErrInvalidTransition, u.Status)
		}
		now = uc.now()
		old := summarizeResults(u.TestResults)
		u.TestResults = stampResults(results, now)
		u.UpdatedAt = now
		u.Version++
		if err := unitRepo.Update(ctx, u, u.Status); err != nil {
			return err
		}
		if err := auditRepo.Append(ctx, &entity.AuditLogEntry{
			ID:          uuid.New().String(),
			EntityTable: entity.AuditEntityInventoryUnits,
			EntityID:    u.UID,
			Action:      entity.AuditActionTestRecorded,
			FieldName:   entity.AuditFieldTestResults,
			OldValue:    old,
			NewValue:    summarizeResults(u.TestResults),
			Reason:      results.Notes,
			ActorID:     actorID,
			Timestamp:   now,
		}); err != nil {
			return err
		}
		unit = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	evt := unitEvent(entity.EventInventoryTested, unit, actorID, now)
	evt.Data["read_passed"] = unit.TestResults.ReadPassed
	evt.Data["write_passed"] = unit.TestResults.WritePassed
	uc.publish(ctx, evt)
	return unit, nil
}

// MarkDefective marca una unidad como defectuosa por una falla individual (sin marca de
// cuarentena, por lo que un levantamiento de cuarentena nunca la restaura).
func (uc *UnitUseCase) MarkDefective(ctx context.Context, uid, reason, actorID string) (_ *entity.InventoryUnit, err error) {
	defer uc.observe("mark_defective", time.Now(), &err)
	return uc.retire(ctx, uid, reason, actorID, entity.StatusDefective, entity.AuditActionDefective, entity.EventInventoryDefective)
}

// InitiateRMA mueve la unidad al estado terminal rma.
func (uc *UnitUseCase) InitiateRMA(ctx context.Context, uid, reason, actorID string) (_ *entity.InventoryUnit, err error) {
	defer uc.observe("initiate_rma", time.Now(), &err)
	return uc.retire(ctx, uid, reason, actorID, entity.StatusRMA, entity.AuditActionRMA, entity.EventInventoryRMA)
}

func (uc *UnitUseCase) retire(
	ctx context.Context,
	uid, reason, actorID string,
	to entity.UnitStatus,
	action entity.AuditAction,
	evtType entity.EventType,
) (*entity.InventoryUnit, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	if uid == "" {
		return nil, invalidInput("uid requerido")
	}
	if reason == "" {
		return nil, invalidInput("motivo requerido")
	}
	var (
		unit *entity.InventoryUnit
		now  time.Time
	)

	err := uc.tx.Run(ctx, func(
		unitRepo repository.InventoryUnitRepository,
		auditRepo repository.AuditLogRepository,
		transferRepo repository.TransferRepository,
	) error {
		// Orden de bloqueo traslado -> unidad, igual que Complete/Cancel.
		peek, err := unitRepo.GetByUID(ctx, uid)
		if err != nil {
			return err
		}
		var transfer *entity.Transfer
		if peek != nil && peek.OpenTransferID != "" {
			if transfer, err = transferRepo.GetForUpdate(ctx, peek.OpenTransferID); err != nil {
				return err
			}
		}
		u, err := lockUnit(ctx, unitRepo, uid, "")
		if err != nil {
			return err
		}
		detachFrom := u.OpenTransferID
		if detachFrom != "" && (transfer == nil || transfer.ID != detachFrom) {
			return fmt.Errorf("unidad %s: %w", uid, domain.ErrConcurrencyConflict)
		}
		now = uc.now()
		if err := applyChange(ctx, unitRepo, auditRepo, u, change{
			to: to, action: action, reason: reason, actor: actorID, at: now,
			mutate: func(u *entity.InventoryUnit) {
				u.QuarantineMarker = false
				u.OpenTransferID = ""
				if to == entity.StatusRMA && u.RMAInitiatedAt == nil {
					t := now
					u.RMAInitiatedAt = &t
				}
			},
		}); err != nil {
			return err
		}
		if detachFrom != "" {
			if err := transferRepo.MarkCancelled(ctx, transfer.ID, []string{uid}); err != nil {
				return err
			}
			transfer.CancelledUIDs = append(transfer.CancelledUIDs, uid)
			if err := settleTransfer(ctx, transferRepo, transfer, now); err != nil {
				return err
			}
		}
		unit = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	evt := unitEvent(evtType, unit, actorID, now)
	evt.Data["reason"] = reason
	uc.publish(ctx, evt)
	uc.log.Info().Str("uid", uid).Str("status", string(to)).Str("reason", reason).Msg("unidad dada de baja")
	return unit, nil
}

// Get obtiene una unidad por UID.
func (uc *UnitUseCase) Get(ctx context.Context, uid string) (*entity.InventoryUnit, error) {
	unit, err := uc.units.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, fmt.Errorf("unidad %s: %w", uid, domain.ErrNotFound)
	}
	return unit, nil
}

// ListByHub lista las unidades de un hub, opcionalmente filtradas por estado.
func (uc *UnitUseCase) ListByHub(ctx context.Context, hubID string, status entity.UnitStatus, limit, offset int) ([]*entity.InventoryUnit, error) {
	if hubID == "" {
		return nil, invalidInput("hub requerido")
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return uc.units.ListByHub(ctx, hubID, status, limit, offset)
}

// History devuelve la auditoría de una unidad en orden de commit.
func (uc *UnitUseCase) History(ctx context.Context, uid string) ([]*entity.AuditLogEntry, error) {
	if _, err := uc.Get(ctx, uid); err != nil {
		return nil, err
	}
	return uc.audit.ListByEntity(ctx, entity.AuditEntityInventoryUnits, uid)
}

// VerifyHistory reproduce la auditoría y comprueba que coincide con el estado persistido.
func (uc *UnitUseCase) VerifyHistory(ctx context.Context, uid string) (entity.UnitStatus, error) {
	unit, err := uc.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	entries, err := uc.audit.ListByEntity(ctx, entity.AuditEntityInventoryUnits, uid)
	if err != nil {
		return "", err
	}
	replayed, err := lifecycle.Replay(entries)
	if err != nil {
		return replayed, err
	}
	if replayed != unit.Status {
		return replayed, fmt.Errorf("unidad %s: auditoría reproduce %s pero el estado es %s", uid, replayed, unit.Status)
	}
	return replayed, nil
}
