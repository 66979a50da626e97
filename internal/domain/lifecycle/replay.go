package lifecycle

import (
	"fmt"

	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
)

// Replay reconstruye el estado de una unidad a partir de sus entradas de auditoría,
// en el orden recibido. Falla si la cadena está rota (OldValue distinto del estado
// acumulado) o si alguna arista no es válida.
func Replay(entries []*entity.AuditLogEntry) (entity.UnitStatus, error) {
	current := StatusNone
	for _, e := range entries {
		if !e.IsStatusChange() {
			continue
		}
		from := entity.UnitStatus(e.OldValue)
		to := entity.UnitStatus(e.NewValue)
		if from != current {
			return current, fmt.Errorf("auditoría %s: se esperaba estado %q y la entrada parte de %q", e.ID, current, from)
		}
		if !ValidateTransition(from, to) {
			return current, &domain.TransitionError{UID: e.EntityID, From: string(from), To: string(to)}
		}
		current = to
	}
	return current, nil
}
