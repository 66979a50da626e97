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

// TransferUseCase coordina los traslados de unidades entre hubs en dos fases.
type TransferUseCase struct {
	engine
}

// NewTransferUseCase construye el caso de uso.
func NewTransferUseCase(deps Deps) *TransferUseCase {
	return &TransferUseCase{engine: newEngine(deps, "inventory.transfers")}
}

// InitiateTransferInput se indica UIDs explícitos o una cantidad a tomar FIFO del hub origen.
type InitiateTransferInput struct {
	FromHubID string
	ToHubID   string
	UIDs      []string
	Quantity  int
	Lot       string          // opcional, solo con Quantity
	Kind      entity.UnitKind // opcional, solo con Quantity
	Reason    string
	ETA       *time.Time
	ActorID   string
}

// CompleteTransferInput registra la llegada de un subconjunto de unidades.
// ArrivedUIDs vacío = llegaron todas las pendientes.
type CompleteTransferInput struct {
	TransferID  string
	ToHubID     string
	ArrivedUIDs []string
	ActorID     string
}

// CancelTransferInput devuelve unidades pendientes al hub origen. UIDs vacío = todas.
type CancelTransferInput struct {
	TransferID string
	UIDs       []string
	Reason     string
	ActorID    string
}

// MaxTransferSize límite de unidades por traslado.
const MaxTransferSize = 5000

// Initiate crea el traslado y pasa las unidades a in_transit en una única transacción:
// o se mueven todas o ninguna.
func (uc *TransferUseCase) Initiate(ctx context.Context, in InitiateTransferInput) (_ *entity.Transfer, err error) {
	defer uc.observe("transfer_initiate", time.Now(), &err)
	if err := requireActor(in.ActorID); err != nil {
		return nil, err
	}
	uids := dedupe(in.UIDs)
	switch {
	case in.FromHubID == "" || in.ToHubID == "":
		return nil, invalidInput("hub origen y hub destino requeridos")
	case in.FromHubID == in.ToHubID:
		return nil, invalidInput("el hub origen y destino no pueden ser el mismo")
	case len(uids) == 0 && in.Quantity <= 0:
		return nil, invalidInput("indique uids o una cantidad positiva")
	case len(uids) > 0 && in.Quantity > 0:
		return nil, invalidInput("uids y cantidad son excluyentes")
	case len(uids) > MaxTransferSize || in.Quantity > MaxTransferSize:
		return nil, invalidInput(fmt.Sprintf("máximo %d unidades por traslado", MaxTransferSize))
	case in.Kind != "" && !in.Kind.Valid():
		return nil, invalidInput(fmt.Sprintf("tipo de unidad desconocido %q", in.Kind))
	}
	var now time.Time
	transfer := &entity.Transfer{
		ID:        uuid.New().String(),
		FromHubID: in.FromHubID,
		ToHubID:   in.ToHubID,
		Reason:    in.Reason,
		ETA:       in.ETA,
		Status:    entity.TransferStatusInitiated,
		CreatedBy: in.ActorID,
	}

	err = uc.tx.Run(ctx, func(
		unitRepo repository.InventoryUnitRepository,
		auditRepo repository.AuditLogRepository,
		transferRepo repository.TransferRepository,
	) error {
		var units []*entity.InventoryUnit
		if len(uids) > 0 {
			for _, uid := range uids {
				u, err := lockUnit(ctx, unitRepo, uid, in.FromHubID)
				if err != nil {
					return err
				}
				if err := lifecycle.Check(u, entity.StatusInTransit); err != nil {
					return err
				}
				units = append(units, u)
			}
		} else {
			claimed, err := unitRepo.LockAvailable(ctx, repository.ClaimFilter{
				HubID: in.FromHubID,
				Lot:   lifecycle.NormalizeLot(in.Lot),
				Kind:  in.Kind,
			}, in.Quantity)
			if err != nil {
				return err
			}
			if len(claimed) < in.Quantity {
				return fmt.Errorf("hub %s tiene %d de %d unidades: %w", in.FromHubID, len(claimed), in.Quantity, domain.ErrNoStock)
			}
			units = claimed
		}

		now = uc.now()
		transfer.CreatedAt = now
		transfer.UIDs = make([]string, 0, len(units))
		for _, u := range units {
			transfer.UIDs = append(transfer.UIDs, u.UID)
		}
		if err := transferRepo.Create(ctx, transfer); err != nil {
			return err
		}
		reason := fmt.Sprintf("traslado %s -> %s", in.FromHubID, in.ToHubID)
		if in.Reason != "" {
			reason += ": " + in.Reason
		}
		for _, u := range units {
			if err := applyChange(ctx, unitRepo, auditRepo, u, change{
				to: entity.StatusInTransit, action: entity.AuditActionTransferInitiated,
				reason: reason, actor: in.ActorID, at: now,
				mutate: func(u *entity.InventoryUnit) { u.OpenTransferID = transfer.ID },
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	evt := transferEvent(entity.EventTransferInitiated, transfer, transfer.UIDs, in.ActorID, now)
	evt.HubID = transfer.FromHubID
	uc.publish(ctx, evt)
	uc.log.Info().
		Str("transfer_id", transfer.ID).
		Str("from_hub_id", transfer.FromHubID).
		Str("to_hub_id", transfer.ToHubID).
		Int("units", len(transfer.UIDs)).
		Msg("traslado iniciado")
	return transfer, nil
}

// Complete registra en el hub destino las unidades que llegaron. El traslado se cierra
// cuando no quedan unidades pendientes; las demás siguen en in_transit.
func (uc *TransferUseCase) Complete(ctx context.Context, in CompleteTransferInput) (_ *entity.Transfer, err error) {
	defer uc.observe("transfer_complete", time.Now(), &err)
	if err := requireActor(in.ActorID); err != nil {
		return nil, err
	}
	if in.TransferID == "" || in.ToHubID == "" {
		return nil, invalidInput("traslado y hub destino requeridos")
	}
	var (
		transfer *entity.Transfer
		arrived  []string
		now      time.Time
	)

	err = uc.tx.Run(ctx, func(
		unitRepo repository.InventoryUnitRepository,
		auditRepo repository.AuditLogRepository,
		transferRepo repository.TransferRepository,
	) error {
		t, err := lockOpenTransfer(ctx, transferRepo, in.TransferID)
		if err != nil {
			return err
		}
		if t.ToHubID != in.ToHubID {
			return fmt.Errorf("traslado %s no tiene destino %s: %w", t.ID, in.ToHubID, domain.ErrNotFound)
		}
		now = uc.now()
		arrived, err = pendingSubset(t, in.ArrivedUIDs)
		if err != nil {
			return err
		}
		for _, uid := range arrived {
			u, err := lockTransitUnit(ctx, unitRepo, uid, t.ID)
			if err != nil {
				return err
			}
			if err := applyChange(ctx, unitRepo, auditRepo, u, change{
				to: entity.StatusAvailable, action: entity.AuditActionTransferCompleted,
				reason: fmt.Sprintf("llegada traslado %s desde %s", t.ID, t.FromHubID),
				actor:  in.ActorID, at: now,
				mutate: func(u *entity.InventoryUnit) {
					u.CurrentHubID = t.ToHubID
					u.OpenTransferID = ""
				},
			}); err != nil {
				return err
			}
		}
		if err := transferRepo.MarkArrived(ctx, t.ID, arrived); err != nil {
			return err
		}
		t.ArrivedUIDs = append(t.ArrivedUIDs, arrived...)
		if err := settleTransfer(ctx, transferRepo, t, now); err != nil {
			return err
		}
		transfer = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	evt := transferEvent(entity.EventTransferArrived, transfer, arrived, in.ActorID, now)
	evt.HubID = transfer.ToHubID
	evt.Data["pending"] = len(transfer.PendingUIDs())
	uc.publish(ctx, evt)
	uc.log.Info().
		Str("transfer_id", transfer.ID).
		Int("arrived", len(arrived)).
		Str("status", string(transfer.Status)).
		Msg("llegada de traslado registrada")
	return transfer, nil
}

// Cancel devuelve a stock en el hub origen las unidades aún pendientes.
func (uc *TransferUseCase) Cancel(ctx context.Context, in CancelTransferInput) (_ *entity.Transfer, err error) {
	defer uc.observe("transfer_cancel", time.Now(), &err)
	if err := requireActor(in.ActorID); err != nil {
		return nil, err
	}
	if in.TransferID == "" {
		return nil, invalidInput("traslado requerido")
	}
	var (
		transfer  *entity.Transfer
		cancelled []string
		now       time.Time
	)

	err = uc.tx.Run(ctx, func(
		unitRepo repository.InventoryUnitRepository,
		auditRepo repository.AuditLogRepository,
		transferRepo repository.TransferRepository,
	) error {
		t, err := lockOpenTransfer(ctx, transferRepo, in.TransferID)
		if err != nil {
			return err
		}
		cancelled, err = pendingSubset(t, in.UIDs)
		if err != nil {
			return err
		}
		now = uc.now()
		reason := "cancelación traslado " + t.ID
		if in.Reason != "" {
			reason += ": " + in.Reason
		}
		for _, uid := range cancelled {
			u, err := lockTransitUnit(ctx, unitRepo, uid, t.ID)
			if err != nil {
				return err
			}
			if err := applyChange(ctx, unitRepo, auditRepo, u, change{
				to: entity.StatusAvailable, action: entity.AuditActionTransferCancelled,
				reason: reason, actor: in.ActorID, at: now,
				mutate: func(u *entity.InventoryUnit) {
					u.CurrentHubID = t.FromHubID
					u.OpenTransferID = ""
				},
			}); err != nil {
				return err
			}
		}
		if err := transferRepo.MarkCancelled(ctx, t.ID, cancelled); err != nil {
			return err
		}
		t.CancelledUIDs = append(t.CancelledUIDs, cancelled...)
		if err := settleTransfer(ctx, transferRepo, t, now); err != nil {
			return err
		}
		transfer = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	evt := transferEvent(entity.EventTransferCancelled, transfer, cancelled, in.ActorID, now)
	evt.HubID = transfer.FromHubID
	evt.Data["reason"] = in.Reason
	uc.publish(ctx, evt)
	return transfer, nil
}

// Get obtiene un traslado por ID.
func (uc *TransferUseCase) Get(ctx context.Context, id string) (*entity.Transfer, error) {
	t, err := uc.transfers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("traslado %s: %w", id, domain.ErrNotFound)
	}
	return t, nil
}

func lockOpenTransfer(ctx context.Context, repo repository.TransferRepository, id string) (*entity.Transfer, error) {
	t, err := repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("traslado %s: %w", id, domain.ErrNotFound)
	}
	if !t.IsOpen() {
		return nil, fmt.Errorf("%w: traslado %s ya está %s", domain.ErrInvalidTransition, t.ID, t.Status)
	}
	return t, nil
}

// pendingSubset valida que cada uid siga pendiente en el traslado. Vacío = todos los pendientes.
func pendingSubset(t *entity.Transfer, uids []string) ([]string, error) {
	uids = dedupe(uids)
	if len(uids) == 0 {
		return t.PendingUIDs(), nil
	}
	pending := make(map[string]struct{})
	for _, uid := range t.PendingUIDs() {
		pending[uid] = struct{}{}
	}
	for _, uid := range uids {
		if _, ok := pending[uid]; !ok {
			return nil, fmt.Errorf("unidad %s no está pendiente en el traslado %s: %w", uid, t.ID, domain.ErrNotFound)
		}
	}
	return uids, nil
}

func lockTransitUnit(ctx context.Context, repo repository.InventoryUnitRepository, uid, transferID string) (*entity.InventoryUnit, error) {
	u, err := lockUnit(ctx, repo, uid, "")
	if err != nil {
		return nil, err
	}
	if u.Status != entity.StatusInTransit || u.OpenTransferID != transferID {
		return nil, fmt.Errorf("unidad %s en %s fuera del traslado %s: %w", uid, u.Status, transferID, domain.ErrConcurrencyConflict)
	}
	return u, nil
}

// settleTransfer cierra el traslado cuando ya no tiene unidades pendientes.
func settleTransfer(ctx context.Context, repo repository.TransferRepository, t *entity.Transfer, now time.Time) error {
	if len(t.PendingUIDs()) > 0 {
		return nil
	}
	t.Status = entity.TransferStatusCancelled
	if len(t.ArrivedUIDs) > 0 {
		t.Status = entity.TransferStatusCompleted
	}
	done := now
	t.CompletedAt = &done
	return repo.UpdateStatus(ctx, t)
}

func transferEvent(typ entity.EventType, t *entity.Transfer, uids []string, actorID string, at time.Time) entity.Event {
	evt := newEvent(typ, actorID, at)
	evt.TransferID = t.ID
	evt.Data = map[string]any{
		"from_hub_id": t.FromHubID,
		"to_hub_id":   t.ToHubID,
		"uids":        uids,
		"count":       len(uids),
		"status":      string(t.Status),
	}
	return evt
}
