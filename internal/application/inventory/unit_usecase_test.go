package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tagtrack-api/internal/application/inventory"
	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
)

func TestReceive_CreaUnidadConAuditoriaYEvento(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.units.Receive(ctx, inventory.ReceiveInput{
		UID: "L1-000001", Kind: entity.UnitKindNFCChip, Lot: "L1", HubID: hub1, TestResults: passed(), ActorID: actor,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAvailable, u.Status)
	assert.Equal(t, hub1, u.CurrentHubID)
	require.NotNil(t, u.TestResults.LastTestedAt, "la fecha de prueba se completa al recibir")

	h := f.history(t, "L1-000001")
	require.Len(t, h, 1)
	assert.Equal(t, entity.AuditActionReceive, h[0].Action)
	assert.Equal(t, "", h[0].OldValue)
	assert.Equal(t, "available", h[0].NewValue)
	assert.Equal(t, actor, h[0].ActorID)

	evts := f.events.OfType(entity.EventInventoryReceived)
	require.Len(t, evts, 1)
	assert.Equal(t, "L1-000001", evts[0].UID)
	assert.Equal(t, hub1, evts[0].HubID)

	calls, errs := f.metrics.count("receive")
	assert.Equal(t, 1, calls)
	assert.Zero(t, errs)
}

func TestReceive_Validaciones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []inventory.ReceiveInput{
		{Kind: entity.UnitKindTag, Lot: "L1", HubID: hub1, ActorID: actor},
		{UID: "X", Kind: "sticker", Lot: "L1", HubID: hub1, ActorID: actor},
		{UID: "X", Kind: entity.UnitKindTag, HubID: hub1, ActorID: actor},
		{UID: "X", Kind: entity.UnitKindTag, Lot: "L1", ActorID: actor},
	}
	for i, in := range cases {
		_, err := f.units.Receive(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "caso %d", i)
	}
	_, errs := f.metrics.count("receive")
	assert.Equal(t, len(cases), errs, "los errores también se miden")
}

func TestReceive_Duplicado(t *testing.T) {
	f := newFixture(t)
	f.receiveLot(t, "L1", hub1, entity.UnitKindTag, 1, nil)

	_, err := f.units.Receive(context.Background(), inventory.ReceiveInput{
		UID: "L1-H1-000001", Kind: entity.UnitKindTag, Lot: "L1", HubID: hub2, ActorID: actor,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.Len(t, f.history(t, "L1-H1-000001"), 1, "el intento fallido no escribe auditoría")
}

func TestReceiveBatch_GeneraUIDs(t *testing.T) {
	f := newFixture(t)
	units, err := f.units.ReceiveBatch(context.Background(), inventory.ReceiveBatchInput{
		Lot: "L9", HubID: hub1, Kind: entity.UnitKindTag, Count: 3, FirstSequence: 10, ActorID: actor,
	})
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, "L9-000010", units[0].UID)
	assert.Equal(t, "L9-000012", units[2].UID)
	assert.Len(t, f.events.OfType(entity.EventInventoryReceived), 3)
}

// El lote se guarda igual que aparece en el UID y los filtros por lote lo encuentran
// sin importar mayúsculas o espacios.
func TestReceiveBatch_LoteNormalizado(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	units, err := f.units.ReceiveBatch(ctx, inventory.ReceiveBatchInput{
		Lot: " l100 ", HubID: hub1, Kind: entity.UnitKindTag, Count: 2, FirstSequence: 1, ActorID: actor,
	})
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "L100-000001", units[0].UID)
	assert.Equal(t, "L100", units[0].Lot)

	single, err := f.units.Receive(ctx, inventory.ReceiveInput{UID: "EXTRA-1", Kind: entity.UnitKindTag, Lot: "l100", HubID: hub1, ActorID: actor})
	require.NoError(t, err)
	assert.Equal(t, "L100", single.Lot)

	res, err := f.quarantine.QuarantineLot(ctx, inventory.LotInput{Lot: "l100", Reason: "x", ActorID: actor})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"L100-000001", "L100-000002", "EXTRA-1"}, res.AffectedUIDs)
	assert.Equal(t, "L100", res.Lot)
}

func TestReceiveBatch_TodoONada(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.units.Receive(ctx, inventory.ReceiveInput{UID: "L7-000003", Kind: entity.UnitKindTag, Lot: "L7", HubID: hub1, ActorID: actor})
	require.NoError(t, err)
	f.events.Reset()

	_, err = f.units.ReceiveBatch(ctx, inventory.ReceiveBatchInput{
		Lot: "L7", HubID: hub1, Kind: entity.UnitKindTag, Count: 5, FirstSequence: 1, ActorID: actor,
	})
	require.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = f.units.Get(ctx, "L7-000001")
	assert.ErrorIs(t, err, domain.ErrNotFound, "ninguna unidad del lote debe quedar creada")
	assert.Empty(t, f.events.Events())

	_, err = f.units.ReceiveBatch(ctx, inventory.ReceiveBatchInput{Lot: "L7", HubID: hub1, Kind: entity.UnitKindTag, Count: 0, ActorID: actor})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordTestResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.receiveLot(t, "L1", hub1, entity.UnitKindNFCChip, 1, nil)[0]

	u, err := f.units.RecordTestResults(ctx, uid, entity.TestResults{ReadPassed: true, WritePassed: false, Notes: "escritura lenta"}, actor)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAvailable, u.Status, "registrar pruebas no cambia el estado")
	assert.False(t, u.TestResults.Passed())

	h := f.history(t, uid)
	require.Len(t, h, 2)
	assert.Equal(t, entity.AuditActionTestRecorded, h[1].Action)
	assert.Equal(t, entity.AuditFieldTestResults, h[1].FieldName)
	assert.Equal(t, "read=false,write=false", h[1].OldValue)
	assert.Equal(t, "read=true,write=false", h[1].NewValue)
	assert.Len(t, f.events.OfType(entity.EventInventoryTested), 1)
	f.requireAuditConsistent(t, uid)

	_, err = f.units.InitiateRMA(ctx, uid, "falla de escritura", actor)
	require.NoError(t, err)
	_, err = f.units.RecordTestResults(ctx, uid, entity.TestResults{ReadPassed: true, WritePassed: true}, actor)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestMarkDefective_NoSeRestauraConLevantamiento(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uids := f.receiveLot(t, "L1", hub1, entity.UnitKindTag, 2, nil)

	u, err := f.units.MarkDefective(ctx, uids[0], "antena rota", actor)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusDefective, u.Status)
	assert.False(t, u.QuarantineMarker)

	res, err := f.quarantine.LiftQuarantine(ctx, inventory.LotInput{Lot: "L1", ActorID: actor})
	require.NoError(t, err)
	assert.Empty(t, res.AffectedUIDs)
	assert.Equal(t, entity.StatusDefective, f.status(t, uids[0]))

	_, err = f.units.MarkDefective(ctx, uids[1], "", actor)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "el motivo es obligatorio")
}

func TestInitiateRMA_Terminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.receiveLot(t, "L1", hub1, entity.UnitKindTag, 1, nil)[0]

	_, err := f.units.MarkDefective(ctx, uid, "no lee", actor)
	require.NoError(t, err)
	u, err := f.units.InitiateRMA(ctx, uid, "devolución a fábrica", actor)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRMA, u.Status)
	require.NotNil(t, u.RMAInitiatedAt)

	_, err = f.units.MarkDefective(ctx, uid, "otra vez", actor)
	var te *domain.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "rma", te.From)

	_, err = f.reservations.Reserve(ctx, inventory.ReserveInput{UID: uid, HubID: hub1, ShipmentID: "S1", ActorID: actor})
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict, "una unidad fuera de stock no se reserva")
	f.requireAuditConsistent(t, uid)
	assert.Len(t, f.events.OfType(entity.EventInventoryRMA), 1)
}

func TestRetire_UnidadEnTransitoSaleDelTraslado(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uids := f.receiveLot(t, "L1", hub1, entity.UnitKindTag, 2, nil)

	tr, err := f.transfers.Initiate(ctx, inventory.InitiateTransferInput{FromHubID: hub1, ToHubID: hub2, UIDs: uids, ActorID: actor})
	require.NoError(t, err)

	u, err := f.units.MarkDefective(ctx, uids[0], "golpe en transporte", actor)
	require.NoError(t, err)
	assert.Empty(t, u.OpenTransferID)

	got, err := f.transfers.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{uids[1]}, got.PendingUIDs())
	assert.True(t, got.IsOpen())

	_, err = f.units.InitiateRMA(ctx, uids[1], "perdida", actor)
	require.NoError(t, err)
	got, err = f.transfers.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusCancelled, got.Status, "nada llegó: el traslado queda cancelado")
	require.NotNil(t, got.CompletedAt)
	f.requireAuditConsistent(t, uids...)
}

func TestGetListByHubYHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receiveLot(t, "L1", hub1, entity.UnitKindTag, 3, nil)
	f.receiveLot(t, "L1", hub2, entity.UnitKindTag, 1, nil)

	_, err := f.units.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.units.History(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := f.units.ListByHub(ctx, hub1, entity.StatusAvailable, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	_, err = f.units.ListByHub(ctx, "", "", 10, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// Toda escritura sin actor autenticado se rechaza antes de tocar el almacén.
func TestEscrituras_SinActorNoAutorizadas(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.receiveLot(t, "L1", hub1, entity.UnitKindTag, 1, nil)[0]

	ops := map[string]func() error{
		"receive": func() error {
			_, err := f.units.Receive(ctx, inventory.ReceiveInput{UID: "X", Kind: entity.UnitKindTag, Lot: "L1", HubID: hub1})
			return err
		},
		"record_tests": func() error {
			_, err := f.units.RecordTestResults(ctx, uid, *passed(), "")
			return err
		},
		"mark_defective": func() error {
			_, err := f.units.MarkDefective(ctx, uid, "rota", "")
			return err
		},
		"reserve": func() error {
			_, err := f.reservations.Reserve(ctx, inventory.ReserveInput{UID: uid, HubID: hub1, ShipmentID: "S1"})
			return err
		},
		"release": func() error {
			_, err := f.reservations.Release(ctx, inventory.ReleaseInput{UID: uid})
			return err
		},
		"quarantine": func() error {
			_, err := f.quarantine.QuarantineLot(ctx, inventory.LotInput{Lot: "L1", Reason: "x"})
			return err
		},
		"transfer": func() error {
			_, err := f.transfers.Initiate(ctx, inventory.InitiateTransferInput{FromHubID: hub1, ToHubID: hub2, Quantity: 1})
			return err
		},
	}
	for name, op := range ops {
		err := op()
		assert.ErrorIs(t, err, domain.ErrUnauthorized, name)
		assert.NotErrorIs(t, err, domain.ErrInvalidInput, name)
	}
	assert.Equal(t, entity.StatusAvailable, f.status(t, uid))
	assert.Len(t, f.history(t, uid), 1)
}
