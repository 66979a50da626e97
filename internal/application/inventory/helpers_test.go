package inventory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tagtrack-api/internal/application/events"
	"github.com/jhoicas/tagtrack-api/internal/application/inventory"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/internal/domain/repository"
	"github.com/jhoicas/tagtrack-api/internal/infrastructure/memory"
)

const (
	hub1  = "H1"
	hub2  = "H2"
	actor = "00000000-0000-0000-0000-0000000000aa"
)

// clock avanza un segundo por lectura para que la auditoría tenga timestamps distintos.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	store        *memory.Store
	events       *events.Recorder
	metrics      *metricsSpy
	units        *inventory.UnitUseCase
	reservations *inventory.ReservationUseCase
	quarantine   *inventory.QuarantineUseCase
	transfers    *inventory.TransferUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithTx(t, nil)
}

// newFixtureWithTx permite envolver el TxRunner del almacén (inyección de fallos).
func newFixtureWithTx(t *testing.T, wrap func(inventory.TxRunner) inventory.TxRunner) *fixture {
	t.Helper()
	store := memory.NewStore()
	rec := &events.Recorder{}
	spy := &metricsSpy{}
	var tx inventory.TxRunner = store
	if wrap != nil {
		tx = wrap(store)
	}
	c := &clock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	deps := inventory.Deps{
		TxRunner:     tx,
		UnitRepo:     store.UnitRepository(),
		AuditRepo:    store.AuditLogRepository(),
		TransferRepo: store.TransferRepository(),
		Publisher:    rec,
		Metrics:      spy,
		Now:          c.Now,
	}
	return &fixture{
		store:        store,
		events:       rec,
		metrics:      spy,
		units:        inventory.NewUnitUseCase(deps),
		reservations: inventory.NewReservationUseCase(deps),
		quarantine:   inventory.NewQuarantineUseCase(deps),
		transfers:    inventory.NewTransferUseCase(deps),
	}
}

func passed() *entity.TestResults {
	return &entity.TestResults{ReadPassed: true, WritePassed: true}
}

// receiveLot recibe n unidades del lote en el hub y devuelve sus UIDs en orden FIFO.
func (f *fixture) receiveLot(t *testing.T, lot, hub string, kind entity.UnitKind, n int, results *entity.TestResults) []string {
	t.Helper()
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		uid := fmt.Sprintf("%s-%s-%06d", lot, hub, i)
		_, err := f.units.Receive(context.Background(), inventory.ReceiveInput{
			UID: uid, Kind: kind, Lot: lot, HubID: hub, TestResults: results, ActorID: actor,
		})
		require.NoError(t, err)
		out = append(out, uid)
	}
	return out
}

func (f *fixture) status(t *testing.T, uid string) entity.UnitStatus {
	t.Helper()
	u, err := f.units.Get(context.Background(), uid)
	require.NoError(t, err)
	return u.Status
}

func (f *fixture) history(t *testing.T, uid string) []*entity.AuditLogEntry {
	t.Helper()
	entries, err := f.units.History(context.Background(), uid)
	require.NoError(t, err)
	return entries
}

// requireAuditConsistent la reproducción de la auditoría coincide con el estado persistido.
func (f *fixture) requireAuditConsistent(t *testing.T, uids ...string) {
	t.Helper()
	for _, uid := range uids {
		_, err := f.units.VerifyHistory(context.Background(), uid)
		require.NoError(t, err, uid)
	}
}

type metricsSpy struct {
	mu    sync.Mutex
	calls map[string]int
	errs  map[string]int
}

func (m *metricsSpy) ObserveOperation(op string, _ time.Time, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
		m.errs = map[string]int{}
	}
	m.calls[op]++
	if err != nil {
		m.errs[op]++
	}
}

func (m *metricsSpy) count(op string) (calls, errs int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op], m.errs[op]
}

// hookTx ejecuta before una sola vez, justo antes de la siguiente transacción. Sirve para
// meter otra operación entre el listado de candidatas y el bloqueo de la fila.
type hookTx struct {
	inner  inventory.TxRunner
	before func()
}

func (h *hookTx) Run(ctx context.Context, fn func(
	repository.InventoryUnitRepository,
	repository.AuditLogRepository,
	repository.TransferRepository,
) error) error {
	if b := h.before; b != nil {
		h.before = nil
		b()
	}
	return h.inner.Run(ctx, fn)
}

// failingTx hace fallar la escritura de una unidad concreta dentro de la transacción.
type failingTx struct {
	inner  inventory.TxRunner
	failOn map[string]error
}

func (f *failingTx) Run(ctx context.Context, fn func(
	repository.InventoryUnitRepository,
	repository.AuditLogRepository,
	repository.TransferRepository,
) error) error {
	return f.inner.Run(ctx, func(u repository.InventoryUnitRepository, a repository.AuditLogRepository, tr repository.TransferRepository) error {
		return fn(&failingUnits{InventoryUnitRepository: u, failOn: f.failOn}, a, tr)
	})
}

type failingUnits struct {
	repository.InventoryUnitRepository
	failOn map[string]error
}

func (f *failingUnits) Update(ctx context.Context, u *entity.InventoryUnit, expected entity.UnitStatus) error {
	if err, ok := f.failOn[u.UID]; ok {
		return err
	}
	return f.InventoryUnitRepository.Update(ctx, u, expected)
}
