package events

import (
	"context"
	"sync"

	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/pkg/logger"
)

type discard struct{}

func (discard) Publish(context.Context, entity.Event) {}

// Discard Publisher que no hace nada.
var Discard Publisher = discard{}

// LogHandler registra cada evento recibido.
func LogHandler(log *logger.Logger) Handler {
	return func(_ context.Context, evt entity.Event) error {
		log.Info().
			Str("event_type", string(evt.Type)).
			Str("event_id", evt.ID).
			Str("uid", evt.UID).
			Str("lot", evt.Lot).
			Str("transfer_id", evt.TransferID).
			Str("hub_id", evt.HubID).
			Str("actor_id", evt.ActorID).
			Msg("evento de inventario")
		return nil
	}
}

// Recorder Publisher que guarda en memoria los eventos publicados.
type Recorder struct {
	mu     sync.Mutex
	events []entity.Event
}

// Publish guarda el evento.
func (r *Recorder) Publish(_ context.Context, evt entity.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Events copia de los eventos publicados, en orden.
func (r *Recorder) Events() []entity.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Event(nil), r.events...)
}

// OfType filtra los eventos publicados por tipo.
func (r *Recorder) OfType(t entity.EventType) []entity.Event {
	var out []entity.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset vacía el registro.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
