// Package lifecycle contiene la máquina de estados de custodia de las unidades.
// Es el único lugar donde viven las reglas de legalidad; todos los casos de uso,
// individuales o masivos, pasan por Check antes de escribir.
package lifecycle

import (
	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
)

// edges aristas permitidas. StatusNone representa "antes de la recepción".
var edges = map[entity.UnitStatus][]entity.UnitStatus{
	StatusNone:             {entity.StatusAvailable},
	entity.StatusAvailable: {entity.StatusAssigned, entity.StatusDefective, entity.StatusRMA, entity.StatusInTransit},
	entity.StatusAssigned:  {entity.StatusInstalled, entity.StatusAvailable, entity.StatusDefective, entity.StatusRMA},
	entity.StatusInstalled: {entity.StatusDefective, entity.StatusRMA},
	entity.StatusDefective: {entity.StatusRMA, entity.StatusAvailable},
	entity.StatusInTransit: {entity.StatusAvailable, entity.StatusDefective, entity.StatusRMA},
	entity.StatusRMA:       {},
}

// StatusNone estado previo a la recepción (la unidad aún no existe).
const StatusNone entity.UnitStatus = ""

// ValidateTransition indica si from -> to es una arista de la máquina de estados.
func ValidateTransition(from, to entity.UnitStatus) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedFrom devuelve los destinos válidos desde un estado.
func AllowedFrom(from entity.UnitStatus) []entity.UnitStatus {
	out := make([]entity.UnitStatus, len(edges[from]))
	copy(out, edges[from])
	return out
}

// IsTerminal indica si el estado no admite salidas.
func IsTerminal(s entity.UnitStatus) bool {
	return len(edges[s]) == 0 && s != StatusNone
}

// Check valida la transición para una unidad concreta. Además de la tabla aplica la
// condición contextual: defective -> available solo si la unidad está en cuarentena.
func Check(unit *entity.InventoryUnit, to entity.UnitStatus) error {
	if !ValidateTransition(unit.Status, to) {
		return &domain.TransitionError{UID: unit.UID, From: string(unit.Status), To: string(to)}
	}
	if unit.Status == entity.StatusDefective && to == entity.StatusAvailable && !unit.QuarantineMarker {
		return &domain.TransitionError{UID: unit.UID, From: string(unit.Status), To: string(to)}
	}
	return nil
}
