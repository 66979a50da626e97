// Package events publica las notificaciones del motor de inventario después del commit.
// La entrega es best-effort (at-most-once): un fallo al entregar nunca revierte el
// cambio de estado ya confirmado, solo se registra en el log.
package events

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/pkg/logger"
)

// Publisher puerto que usan los casos de uso para emitir eventos. No devuelve error:
// la emisión es fire-and-forget respecto a la transacción.
type Publisher interface {
	Publish(ctx context.Context, evt entity.Event)
}

// Category grupo fijo de suscriptores aguas abajo.
type Category string

const (
	CategoryStockDashboard Category = "stock_dashboard" // tableros de stock
	CategoryGating         Category = "gating"          // lógica de capacidad/gating
	CategoryQuality        Category = "quality"         // alertas de calidad y proveedores
)

// Categories todas las categorías admitidas.
var Categories = []Category{CategoryStockDashboard, CategoryGating, CategoryQuality}

// Handler consume un evento. Un error solo se registra.
type Handler func(ctx context.Context, evt entity.Event) error

type subscription struct {
	category Category
	name     string
	handler  Handler
	types    map[entity.EventType]struct{}
}

func (s subscription) wants(t entity.EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Options configura la entrega. Buffer == 0 entrega de forma síncrona en el goroutine
// del llamador (después del commit); Buffer > 0 encola y entrega con Workers goroutines,
// descartando eventos cuando la cola está llena. Cada worker tiene su propia cola y los
// eventos se reparten por clave (UID, traslado o lote), así que los de una misma clave
// se entregan en el orden en que se publicaron.
type Options struct {
	Buffer  int
	Workers int
}

// Stats contadores de entrega.
type Stats struct {
	Delivered uint64
	Failed    uint64
	Dropped   uint64
}

// Bus implementación en proceso de Publisher con fan-out por categoría.
type Bus struct {
	log *logger.Logger

	subsMu sync.RWMutex
	subs   []subscription

	stateMu sync.RWMutex
	closed  bool
	queues  []chan entity.Event
	wg      sync.WaitGroup

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

var _ Publisher = (*Bus)(nil)

// NewBus construye el bus. Con opts.Buffer > 0 arranca los workers de entrega.
func NewBus(log *logger.Logger, opts Options) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	b := &Bus{log: log.Named("events")}
	if opts.Buffer > 0 {
		workers := opts.Workers
		if workers <= 0 {
			workers = 1
		}
		size := opts.Buffer / workers
		if size < 1 {
			size = 1
		}
		b.queues = make([]chan entity.Event, workers)
		for i := range b.queues {
			b.queues[i] = make(chan entity.Event, size)
			b.wg.Add(1)
			go b.worker(b.queues[i])
		}
	}
	return b
}

// Subscribe registra un handler en una categoría. Si se indican tipos, solo recibe esos.
func (b *Bus) Subscribe(category Category, name string, h Handler, types ...entity.EventType) error {
	if !knownCategory(category) {
		return fmt.Errorf("categoría de suscriptor desconocida: %q", category)
	}
	if h == nil {
		return fmt.Errorf("suscriptor %q sin handler", name)
	}
	sub := subscription{category: category, name: name, handler: h}
	if len(types) > 0 {
		sub.types = make(map[entity.EventType]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}
	b.subsMu.Lock()
	b.subs = append(b.subs, sub)
	b.subsMu.Unlock()
	return nil
}

// Publish entrega (o encola) el evento. Nunca bloquea por una cola llena.
func (b *Bus) Publish(ctx context.Context, evt entity.Event) {
	b.stateMu.RLock()
	if b.closed {
		b.stateMu.RUnlock()
		b.dropped.Add(1)
		b.log.Warn().Str("event_type", string(evt.Type)).Str("event_id", evt.ID).Msg("bus cerrado, evento descartado")
		return
	}
	if b.queues == nil {
		b.stateMu.RUnlock()
		b.deliver(context.WithoutCancel(ctx), evt)
		return
	}
	select {
	case b.queues[shard(evt, len(b.queues))] <- evt:
		b.stateMu.RUnlock()
	default:
		b.stateMu.RUnlock()
		b.dropped.Add(1)
		b.log.Warn().Str("event_type", string(evt.Type)).Str("event_id", evt.ID).Msg("cola de eventos llena, evento descartado")
	}
}

// Close deja de aceptar eventos y espera a que los workers vacíen la cola o a que ctx expire.
func (b *Bus) Close(ctx context.Context) error {
	b.stateMu.Lock()
	if b.closed {
		b.stateMu.Unlock()
		return nil
	}
	b.closed = true
	for _, q := range b.queues {
		close(q)
	}
	b.stateMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cerrar bus de eventos: %w", ctx.Err())
	}
}

// Stats devuelve los contadores acumulados.
func (b *Bus) Stats() Stats {
	return Stats{
		Delivered: b.delivered.Load(),
		Failed:    b.failed.Load(),
		Dropped:   b.dropped.Load(),
	}
}

func (b *Bus) worker(queue <-chan entity.Event) {
	defer b.wg.Done()
	for evt := range queue {
		b.deliver(context.Background(), evt)
	}
}

// orderingKey clave que fija el worker de un evento.
func orderingKey(evt entity.Event) string {
	switch {
	case evt.UID != "":
		return "uid:" + evt.UID
	case evt.TransferID != "":
		return "transfer:" + evt.TransferID
	default:
		return "lot:" + evt.Lot
	}
}

func shard(evt entity.Event, n int) int {
	if n == 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderingKey(evt)))
	return int(h.Sum32() % uint32(n))
}

func (b *Bus) deliver(ctx context.Context, evt entity.Event) {
	b.subsMu.RLock()
	subs := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(evt.Type) {
			subs = append(subs, s)
		}
	}
	b.subsMu.RUnlock()

	for _, s := range subs {
		if err := b.call(ctx, s, evt); err != nil {
			b.failed.Add(1)
			b.log.Error().Err(err).
				Str("subscriber", s.name).
				Str("category", string(s.category)).
				Str("event_type", string(evt.Type)).
				Str("event_id", evt.ID).
				Msg("entrega de evento fallida")
			continue
		}
		b.delivered.Add(1)
	}
}

func (b *Bus) call(ctx context.Context, s subscription, evt entity.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic en suscriptor: %v", r)
		}
	}()
	return s.handler(ctx, evt)
}

func knownCategory(c Category) bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}
