package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tagtrack-api/internal/application/inventory"
	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
)

func TestInitiate_PasaUnidadesAEnTransito(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uids := f.receiveLot(t, "L1", hub1, entity.UnitKindTag, 3, nil)

	tr, err := f.transfers.Initiate(ctx, inventory.InitiateTransferInput{
		FromHubID: hub1, ToHubID: hub2, UIDs: []string{uids[0], uids[1], uids[0]}, Reason: "rebalanceo", ActorID: actor,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusInitiated, tr.Status)
	assert.Equal(t, []string{uids[0], uids[1]}, tr.UIDs, "los UIDs repetidos se ignoran")

	for _, uid := range uids[:2] {
		u, err := f.units.Get(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusInTransit, u.Status)
		assert.Equal(t, tr.ID, u.OpenTransferID)
		assert.Equal(t, hub1, u.CurrentHubID)
	}

	// Una unidad en tránsito no se puede reservar.
	_, err = f.reservations.Reserve(ctx, inventory.ReserveInput{UID: uids[0], HubID: hub1, ShipmentID: "S1", ActorID: actor})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.transfers.Initiate(ctx, inventory.InitiateTransferInput{FromHubID: hub1, ToHubID: hub2, UIDs: uids[:1], ActorID: actor})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "ya pertenece a un traslado abierto")
	u, err := f.reservations.Reserve(ctx, inventory.ReserveInput{HubID: hub1, ShipmentID: "S1", ActorID: actor})
	require.NoError(t, err)
	assert.Equal(t, uids[2], u.UID)

	evts := f.events.OfType(entity.EventTransferInitiated)
	require.Len(t, evts, 1)
	assert.Equal(t, tr.ID, evts[0].TransferID)
	assert.Equal(t, 2, evts[0].Data["count"])
}

func TestInitiate_TodoONada(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uids := f.receiveLot(t, "L1", hub1, entity.UnitKindTag, 3, nil)
	_, err := f.reservations.Reserve(ctx, inventory.ReserveInput{UID: uids[2], HubID: hub1, ShipmentID: "S1", ActorID: actor})
	require.NoError(t, err)

	_, err = f.transfers.Initiate(ctx, inventory.InitiateTransferInput{FromHubID: hub1, ToHubID: hub2, UIDs: uids, ActorID: actor})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "solo se trasladan unidades available")
	assert.Equal(t, entity.StatusAvailable, f.status(t, uids[0]))
	assert.Equal(t, entity.StatusAvailable, f.status(t, uids[1]))
	assert.Empty(t, f.events.OfType(entity.EventTransferInitiated))

	_, err = f.transfers.Initiate(ctx, inventory.InitiateTransferInput{FromHubID: hub2, ToHubID: hub1, UIDs: uids[:1], ActorID: actor})
	assert.ErrorIs(t, err, domain.ErrNotFound, "la unidad no está en el hub origen")
}

func TestInitiate_Validaciones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receiveLot(t, "L1", hub1, entity.UnitKindTag, 2, nil)

	cases := []inventory.InitiateTransferInput{
		{FromHubID: hub1, ToHubID: hub1, Quantity: 1, ActorID: actor},
		{FromHubID: hub1, ToHubID: hub2, ActorID: actor},
		{FromHubID: hub1, ToHubID: hub2, Quantity: 1, UIDs: []string{"a"}, ActorID: actor},
	}
	for i, in := range cases {
		_, err := f.transfers.Initiate(ctx, in)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "caso %d", i)
	}

	_, err := f.transfers.Initiate(ctx, inventory.InitiateTransferInput{FromHubID: hub1, ToHubID: hub2, Quantity: 3, ActorID: actor})
	assert.ErrorIs(t, err, domain.ErrNoStock)
}

func TestInitiate_PorCantidadFIFO(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uids := f.receiveLot(t, "L1", hub1, entity.UnitKindNFCChip, 3, nil)

	tr, err := f.transfers.Initiate(ctx, inventory.InitiateTransferInput{FromHubID: hub1, ToHubID: hub2, Quantity: 2, ActorID: actor})
	require.NoError(t, err)
	assert.Equal(t, uids[:2], tr.UIDs, "los chips sin pruebas también viajan")
}

// Traslado parcial: solo el subconjunto que llegó cambia de hub.
func TestComplete_LlegadaParcial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uids := f.receiveLot(t, "L1", hub1, entity.UnitKindTag, 3, nil)
	tr, err := f.transfers.Initiate(ctx, inventory.InitiateTransferInput{FromHubID: hub1, ToHubID: hub2, UIDs: uids, ActorID: actor})
	require.NoError(t, err)

	got, err := f.transfers.Complete(ctx, inventory.CompleteTransferInput{TransferID: tr.ID, ToHubID: hub2, ArrivedUIDs: uids[:2], ActorID: actor})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusInitiated, got.Status)
	assert.Equal(t, []string{uids[2]}, got.PendingUIDs())

	for _, uid := range uids[:2] {
		u, err := f.units.Get(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusAvailable, u.Status)
		assert.Equal(t, hub2, u.CurrentHubID)
		assert.Empty(t, u.OpenTransferID)
	}
	u, err := f.units.Get(ctx, uids[2])
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInTransit, u.Status)
	assert.Equal(t, hub1, u.CurrentHubID)
	assert.Equal(t, tr.ID, u.OpenTransferID)

	evts := f.events.OfType(entity.EventTransferArrived)
	require.Len(t, evts, 1)
	assert.Equal(t, uids[:2], evts[0].Data["uids"])
	assert.Equal(t, 1, evts[0].Data["pending"])

	// Repetir una llegada ya registrada no es válido.
	_, err = f.transfers.Complete(ctx, inventory.CompleteTransferInput{TransferID: tr.ID, ToHubID: hub2, ArrivedUIDs: uids[:1], ActorID: actor})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err = f.transfers.Complete(ctx, inventory.CompleteTransferInput{TransferID: tr.ID, ToHubID: hub2, ActorID: actor})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, hub2, func() string { u, _ := f.units.Get(ctx, uids[2]); return u.CurrentHubID }())

	_, err = f.transfers.Complete(ctx, inventory.CompleteTransferInput{TransferID: tr.ID, ToHubID: hub2, ActorID: actor})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "el traslado ya está cerrado")
	f.requireAuditConsistent(t, uids...)
}

func TestComplete_Errores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uids := f.receiveLot(t, "L1", hub1, entity.UnitKindTag, 2, nil)
	tr, err := f.transfers.Initiate(ctx, inventory.InitiateTransferInput{FromHubID: hub1, ToHubID: hub2, UIDs: uids[:1], ActorID: actor})
	require.NoError(t, err)

	_, err = f.transfers.Complete(ctx, inventory.CompleteTransferInput{TransferID: "nope", ToHubID: hub2, ActorID: actor})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.transfers.Complete(ctx, inventory.CompleteTransferInput{TransferID: tr.ID, ToHubID: "H3", ActorID: actor})
	assert.ErrorIs(t, err, domain.ErrNotFound, "hub destino distinto")
	_, err = f.transfers.Complete(ctx, inventory.CompleteTransferInput{TransferID: tr.ID, ToHubID: hub2, ArrivedUIDs: uids[1:], ActorID: actor})
	assert.ErrorIs(t, err, domain.ErrNotFound, "la unidad no pertenece al traslado")
	assert.Equal(t, entity.StatusInTransit, f.status(t, uids[0]))
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uids := f.receiveLot(t, "L1", hub1, entity.UnitKindTag, 3, nil)
	tr, err := f.transfers.Initiate(ctx, inventory.InitiateTransferInput{FromHubID: hub1, ToHubID: hub2, UIDs: uids, ActorID: actor})
	require.NoError(t, err)

	_, err = f.transfers.Complete(ctx, inventory.CompleteTransferInput{TransferID: tr.ID, ToHubID: hub2, ArrivedUIDs: uids[:1], ActorID: actor})
	require.NoError(t, err)
	got, err := f.transfers.Cancel(ctx, inventory.CancelTransferInput{TransferID: tr.ID, UIDs: uids[1:2], Reason: "camión averiado", ActorID: actor})
	require.NoError(t, err)
	assert.True(t, got.IsOpen())
	assert.Equal(t, entity.StatusAvailable, f.status(t, uids[1]))

	got, err = f.transfers.Cancel(ctx, inventory.CancelTransferInput{TransferID: tr.ID, ActorID: actor})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusCompleted, got.Status, "llegó al menos una unidad")

	u, err := f.units.Get(ctx, uids[2])
	require.NoError(t, err)
	assert.Equal(t, hub1, u.CurrentHubID)
	assert.Equal(t, entity.StatusAvailable, u.Status)
	assert.Len(t, f.events.OfType(entity.EventTransferCancelled), 2)

	h := f.history(t, uids[1])
	assert.Equal(t, entity.AuditActionTransferCancelled, h[len(h)-1].Action)
	assert.Contains(t, h[len(h)-1].Reason, "camión averiado")

	// Todo cancelado sin llegadas: queda cancelled.
	tr2, err := f.transfers.Initiate(ctx, inventory.InitiateTransferInput{FromHubID: hub1, ToHubID: hub2, Quantity: 1, ActorID: actor})
	require.NoError(t, err)
	got, err = f.transfers.Cancel(ctx, inventory.CancelTransferInput{TransferID: tr2.ID, ActorID: actor})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusCancelled, got.Status)
	f.requireAuditConsistent(t, uids...)
}
