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

// ReservationUseCase asigna unidades a envíos, las instala y las libera.
type ReservationUseCase struct {
	engine
}

// NewReservationUseCase construye el caso de uso.
func NewReservationUseCase(deps Deps) *ReservationUseCase {
	return &ReservationUseCase{engine: newEngine(deps, "inventory.reservations")}
}

// ReserveInput si UID viene vacío se reclama la unidad elegible más antigua del hub.
type ReserveInput struct {
	UID        string
	HubID      string
	Lot        string
	Kind       entity.UnitKind
	ShipmentID string
	ActorID    string
}

// InstallInput instalación de una unidad asignada.
type InstallInput struct {
	UID         string
	HubID       string
	TestResults *entity.TestResults
	ActorID     string
}

// ReleaseInput devuelve una unidad asignada al stock.
type ReleaseInput struct {
	UID     string
	Reason  string
	ActorID string
}

// Reserve asigna una unidad disponible a un envío. Dos llamadas concurrentes nunca
// obtienen la misma unidad: la fila se bloquea y la escritura es condicional al estado.
func (uc *ReservationUseCase) Reserve(ctx context.Context, in ReserveInput) (_ *entity.InventoryUnit, err error) {
	defer uc.observe("reserve", time.Now(), &err)
	if err := requireActor(in.ActorID); err != nil {
		return nil, err
	}
	if in.HubID == "" || in.ShipmentID == "" {
		return nil, invalidInput("hub y envío requeridos")
	}
	if in.Kind != "" && !in.Kind.Valid() {
		return nil, invalidInput(fmt.Sprintf("tipo de unidad desconocido %q", in.Kind))
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
		var u *entity.InventoryUnit
		if in.UID != "" {
			locked, err := lockUnit(ctx, unitRepo, in.UID, in.HubID)
			if err != nil {
				return err
			}
			// Otra operación la tomó antes que esta.
			if locked.Status != entity.StatusAvailable {
				return fmt.Errorf("unidad %s ahora en %s: %w", locked.UID, locked.Status, domain.ErrConcurrencyConflict)
			}
			if locked.RequiresTests() && !locked.TestResults.Passed() {
				return fmt.Errorf("unidad %s sin pruebas aprobadas: %w", locked.UID, domain.ErrTestFailure)
			}
			u = locked
		} else {
			claimed, err := unitRepo.LockAvailable(ctx, repository.ClaimFilter{
				HubID:          in.HubID,
				Lot:            lifecycle.NormalizeLot(in.Lot),
				Kind:           in.Kind,
				ReservableOnly: true,
			}, 1)
			if err != nil {
				return err
			}
			if len(claimed) == 0 {
				return fmt.Errorf("hub %s: %w", in.HubID, domain.ErrNoStock)
			}
			u = claimed[0]
		}
		now = uc.now()
		if err := applyChange(ctx, unitRepo, auditRepo, u, change{
			to: entity.StatusAssigned, action: entity.AuditActionAssign,
			reason: "envío " + in.ShipmentID, actor: in.ActorID, at: now,
			mutate: func(u *entity.InventoryUnit) {
				t := now
				u.AssignedShipmentID = in.ShipmentID
				u.AssignedAt = &t
			},
		}); err != nil {
			return err
		}
		unit = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.publish(ctx, unitEvent(entity.EventInventoryAssigned, unit, in.ActorID, now))
	uc.log.Info().Str("uid", unit.UID).Str("shipment_id", in.ShipmentID).Msg("unidad reservada")
	return unit, nil
}

// Install marca como instalada una unidad asignada en el hub indicado. Los chips NFC
// deben pasar la prueba final.
func (uc *ReservationUseCase) Install(ctx context.Context, in InstallInput) (_ *entity.InventoryUnit, err error) {
	defer uc.observe("install", time.Now(), &err)
	if err := requireActor(in.ActorID); err != nil {
		return nil, err
	}
	if in.UID == "" || in.HubID == "" {
		return nil, invalidInput("uid y hub requeridos")
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
		u, err := lockUnit(ctx, unitRepo, in.UID, in.HubID)
		if err != nil {
			return err
		}
		now = uc.now()
		results := u.TestResults
		if in.TestResults != nil {
			results = stampResults(*in.TestResults, now)
		}
		if u.Status == entity.StatusAssigned && u.RequiresTests() && !results.Passed() {
			return fmt.Errorf("unidad %s falló la prueba final (%s): %w", u.UID, summarizeResults(results), domain.ErrTestFailure)
		}
		if err := applyChange(ctx, unitRepo, auditRepo, u, change{
			to: entity.StatusInstalled, action: entity.AuditActionInstall,
			reason: "instalación envío " + u.AssignedShipmentID, actor: in.ActorID, at: now,
			mutate: func(u *entity.InventoryUnit) {
				t := now
				u.TestResults = results
				u.InstalledAt = &t
			},
		}); err != nil {
			return err
		}
		unit = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.publish(ctx, unitEvent(entity.EventInventoryInstalled, unit, in.ActorID, now))
	return unit, nil
}

// Release devuelve al stock una unidad asignada cuyo envío se canceló.
func (uc *ReservationUseCase) Release(ctx context.Context, in ReleaseInput) (_ *entity.InventoryUnit, err error) {
	defer uc.observe("release", time.Now(), &err)
	if err := requireActor(in.ActorID); err != nil {
		return nil, err
	}
	if in.UID == "" {
		return nil, invalidInput("uid requerido")
	}
	var (
		unit     *entity.InventoryUnit
		shipment string
		now      time.Time
	)

	err = uc.tx.Run(ctx, func(
		unitRepo repository.InventoryUnitRepository,
		auditRepo repository.AuditLogRepository,
		_ repository.TransferRepository,
	) error {
		u, err := lockUnit(ctx, unitRepo, in.UID, "")
		if err != nil {
			return err
		}
		// assigned -> available es la única salida a stock que Release acepta.
		if u.Status != entity.StatusAssigned {
			return &domain.TransitionError{UID: u.UID, From: string(u.Status), To: string(entity.StatusAvailable)}
		}
		shipment = u.AssignedShipmentID
		now = uc.now()
		if err := applyChange(ctx, unitRepo, auditRepo, u, change{
			to: entity.StatusAvailable, action: entity.AuditActionRelease,
			reason: in.Reason, actor: in.ActorID, at: now,
			mutate: func(u *entity.InventoryUnit) {
				u.AssignedShipmentID = ""
				u.AssignedAt = nil
			},
		}); err != nil {
			return err
		}
		unit = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	evt := unitEvent(entity.EventInventoryReleased, unit, in.ActorID, now)
	evt.Data["shipment_id"] = shipment
	uc.publish(ctx, evt)
	return unit, nil
}
