package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/internal/domain/lifecycle"
	"github.com/jhoicas/tagtrack-api/internal/domain/repository"
)

// QuarantineUseCase pone en cuarentena un lote completo y la levanta.
type QuarantineUseCase struct {
	engine
}

// NewQuarantineUseCase construye el caso de uso.
func NewQuarantineUseCase(deps Deps) *QuarantineUseCase {
	return &QuarantineUseCase{engine: newEngine(deps, "inventory.quarantine")}
}

// LotInput lote a procesar; HubID vacío = todos los hubs.
type LotInput struct {
	Lot     string
	HubID   string
	Reason  string
	ActorID string
}

// LotResult unidades afectadas por una operación de lote.
type LotResult struct {
	Lot          string
	HubID        string
	AffectedUIDs []string
	Failed       []domain.UnitFailure
}

// lotStep describe una operación masiva sobre un lote: qué unidades son candidatas y
// qué cambio aplicar a cada una.
type lotStep struct {
	operation string
	filter    repository.LotFilter
	eligible  func(u *entity.InventoryUnit) bool
	change    func(now time.Time) change
	event     entity.EventType
}

// QuarantineLot marca como defectuosas (con marca de cuarentena) las unidades
// disponibles o asignadas del lote. Cada unidad se procesa en su propia transacción;
// si alguna falla se devuelve *domain.PartialFailureError junto con el resultado.
func (uc *QuarantineUseCase) QuarantineLot(ctx context.Context, in LotInput) (_ *LotResult, err error) {
	defer uc.observe("quarantine_lot", time.Now(), &err)
	in.Lot = lifecycle.NormalizeLot(in.Lot)
	if err := requireActor(in.ActorID); err != nil {
		return nil, err
	}
	if in.Reason == "" {
		return nil, invalidInput("motivo de cuarentena requerido")
	}
	return uc.run(ctx, in, lotStep{
		operation: "cuarentena",
		filter: repository.LotFilter{
			Lot:      in.Lot,
			HubID:    in.HubID,
			Statuses: []entity.UnitStatus{entity.StatusAvailable, entity.StatusAssigned},
		},
		eligible: func(u *entity.InventoryUnit) bool {
			return u.Status == entity.StatusAvailable || u.Status == entity.StatusAssigned
		},
		change: func(now time.Time) change {
			return change{
				to: entity.StatusDefective, action: entity.AuditActionQuarantine,
				reason: in.Reason, actor: in.ActorID, at: now,
				mutate: func(u *entity.InventoryUnit) { u.QuarantineMarker = true },
			}
		},
		event: entity.EventLotQuarantineSet,
	})
}

// LiftQuarantine devuelve a stock solo las unidades defectuosas que llevan la marca de
// cuarentena. Las defectuosas por falla individual no se tocan.
func (uc *QuarantineUseCase) LiftQuarantine(ctx context.Context, in LotInput) (_ *LotResult, err error) {
	defer uc.observe("lift_quarantine", time.Now(), &err)
	in.Lot = lifecycle.NormalizeLot(in.Lot)
	return uc.run(ctx, in, lotStep{
		operation: "levantamiento de cuarentena",
		filter: repository.LotFilter{
			Lot:             in.Lot,
			HubID:           in.HubID,
			Statuses:        []entity.UnitStatus{entity.StatusDefective},
			QuarantinedOnly: true,
		},
		eligible: func(u *entity.InventoryUnit) bool {
			return u.Status == entity.StatusDefective && u.QuarantineMarker
		},
		change: func(now time.Time) change {
			return change{
				to: entity.StatusAvailable, action: entity.AuditActionLiftQuarantine,
				reason: in.Reason, actor: in.ActorID, at: now,
				mutate: func(u *entity.InventoryUnit) {
					u.QuarantineMarker = false
					u.AssignedShipmentID = ""
					u.AssignedAt = nil
				},
			}
		},
		event: entity.EventLotQuarantineLift,
	})
}

func (uc *QuarantineUseCase) run(ctx context.Context, in LotInput, step lotStep) (*LotResult, error) {
	if err := requireActor(in.ActorID); err != nil {
		return nil, err
	}
	if in.Lot == "" {
		return nil, invalidInput("lote requerido")
	}
	total, err := uc.units.CountByLot(ctx, in.Lot, in.HubID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, fmt.Errorf("lote %s: %w", in.Lot, domain.ErrNotFound)
	}
	candidates, err := uc.units.ListByLot(ctx, step.filter)
	if err != nil {
		return nil, err
	}

	var lastAt time.Time
	result := &LotResult{Lot: in.Lot, HubID: in.HubID, AffectedUIDs: []string{}}
	for _, cand := range candidates {
		if ctx.Err() != nil {
			result.Failed = append(result.Failed, domain.UnitFailure{UID: cand.UID, Err: ctx.Err()})
			continue
		}
		uid := cand.UID
		err := uc.tx.Run(ctx, func(
			unitRepo repository.InventoryUnitRepository,
			auditRepo repository.AuditLogRepository,
			_ repository.TransferRepository,
		) error {
			u, err := lockUnit(ctx, unitRepo, uid, in.HubID)
			if err != nil {
				return err
			}
			// Cambió entre el listado y el bloqueo.
			if !step.eligible(u) || u.Lot != in.Lot {
				return fmt.Errorf("unidad %s ahora en %s: %w", uid, u.Status, domain.ErrConcurrencyConflict)
			}
			now := uc.now()
			if err := applyChange(ctx, unitRepo, auditRepo, u, step.change(now)); err != nil {
				return err
			}
			lastAt = now
			return nil
		})
		if err != nil {
			result.Failed = append(result.Failed, domain.UnitFailure{UID: uid, Err: err})
			continue
		}
		result.AffectedUIDs = append(result.AffectedUIDs, uid)
	}

	if len(result.AffectedUIDs) > 0 {
		evt := newEvent(step.event, in.ActorID, lastAt)
		evt.Lot = in.Lot
		evt.HubID = in.HubID
		evt.Data = map[string]any{
			"count":  len(result.AffectedUIDs),
			"uids":   result.AffectedUIDs,
			"reason": in.Reason,
		}
		uc.publish(ctx, evt)
	}

	uc.log.Info().
		Str("lot", in.Lot).
		Str("hub_id", in.HubID).
		Int("affected", len(result.AffectedUIDs)).
		Int("failed", len(result.Failed)).
		Msg(step.operation + " de lote aplicada")

	if len(result.Failed) > 0 {
		return result, &domain.PartialFailureError{
			Succeeded: append([]string(nil), result.AffectedUIDs...),
			Failed:    result.Failed,
		}
	}
	return result, nil
}
