package postgres_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tagtrack-api/internal/application/inventory"
	"github.com/jhoicas/tagtrack-api/internal/domain"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/internal/infrastructure/postgres"
)

// openTestPool conecta a TEST_DATABASE_URL y aplica las migraciones; sin variable se omite.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL no definido")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = postgres.NewMigrator(pool, nil).Run(ctx)
	require.NoError(t, err)
	return pool
}

func pgDeps(pool *pgxpool.Pool) inventory.Deps {
	return inventory.Deps{
		TxRunner:     postgres.NewTxRunner(pool),
		UnitRepo:     postgres.NewInventoryUnitRepository(pool),
		AuditRepo:    postgres.NewAuditLogRepository(pool),
		TransferRepo: postgres.NewTransferRepository(pool),
	}
}

// suffix aísla cada ejecución: hubs y lotes únicos sin truncar tablas.
func suffix() string {
	return strings.ToUpper(uuid.NewString()[:8])
}

func TestPostgres_ReservaConcurrenteSinDobleAsignacion(t *testing.T) {
	pool := openTestPool(t)
	deps := pgDeps(pool)
	units := inventory.NewUnitUseCase(deps)
	reservations := inventory.NewReservationUseCase(deps)
	ctx := context.Background()

	s := suffix()
	hub, lot := "HUB-"+s, "LOT"+s
	_, err := units.ReceiveBatch(ctx, inventory.ReceiveBatchInput{
		Lot: lot, HubID: hub, Kind: entity.UnitKindTag, Count: 5, FirstSequence: 1, ActorID: "it",
	})
	require.NoError(t, err)

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed = map[string]int{}
		noStock int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := reservations.Reserve(ctx, inventory.ReserveInput{HubID: hub, ShipmentID: uuid.NewString(), ActorID: "it"})
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, domain.ErrNoStock) {
				noStock++
				return
			}
			if assert.NoError(t, err) {
				claimed[u.UID]++
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, claimed, 5)
	for uid, n := range claimed {
		assert.Equal(t, 1, n, "unidad %s asignada más de una vez", uid)
	}
	assert.Equal(t, callers-5, noStock)

	for uid := range claimed {
		status, err := units.VerifyHistory(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusAssigned, status)
	}
}

func TestPostgres_TrasladoParcialYCancelacion(t *testing.T) {
	pool := openTestPool(t)
	deps := pgDeps(pool)
	units := inventory.NewUnitUseCase(deps)
	transfers := inventory.NewTransferUseCase(deps)
	ctx := context.Background()

	s := suffix()
	from, to, lot := "HUB-A-"+s, "HUB-B-"+s, "LOT"+s
	received, err := units.ReceiveBatch(ctx, inventory.ReceiveBatchInput{
		Lot: lot, HubID: from, Kind: entity.UnitKindTag, Count: 3, FirstSequence: 1, ActorID: "it",
	})
	require.NoError(t, err)

	tr, err := transfers.Initiate(ctx, inventory.InitiateTransferInput{FromHubID: from, ToHubID: to, Quantity: 3, ActorID: "it"})
	require.NoError(t, err)
	require.Len(t, tr.UIDs, 3)

	_, err = transfers.Initiate(ctx, inventory.InitiateTransferInput{
		FromHubID: from, ToHubID: to, UIDs: []string{received[0].UID}, ActorID: "it",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "una unidad en tránsito no entra en otro traslado")

	tr, err = transfers.Complete(ctx, inventory.CompleteTransferInput{
		TransferID: tr.ID, ToHubID: to, ArrivedUIDs: []string{received[0].UID}, ActorID: "it",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusInitiated, tr.Status)
	assert.Len(t, tr.PendingUIDs(), 2)

	tr, err = transfers.Cancel(ctx, inventory.CancelTransferInput{TransferID: tr.ID, ActorID: "it"})
	require.NoError(t, err)
	assert.Equal(t, entity.TransferStatusCompleted, tr.Status)

	got, err := units.Get(ctx, received[0].UID)
	require.NoError(t, err)
	assert.Equal(t, to, got.CurrentHubID)
	assert.Equal(t, entity.StatusAvailable, got.Status)
	got, err = units.Get(ctx, received[2].UID)
	require.NoError(t, err)
	assert.Equal(t, from, got.CurrentHubID)
	assert.Empty(t, got.OpenTransferID)

	reloaded, err := transfers.Get(ctx, tr.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{received[0].UID}, reloaded.ArrivedUIDs)
	assert.Len(t, reloaded.CancelledUIDs, 2)
}

func TestPostgres_AuditoriaSoloInsercion(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	_, err := pool.Exec(ctx, `UPDATE audit_log SET reason = 'x' WHERE seq = (SELECT min(seq) FROM audit_log)`)
	if err == nil {
		// tabla vacía: el UPDATE no toca filas y el trigger no se dispara
		var n int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM audit_log`).Scan(&n))
		require.Zero(t, n)
		return
	}
	assert.Contains(t, err.Error(), "solo inserción")
}
