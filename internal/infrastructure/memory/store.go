// Package memory implementa los puertos de persistencia en memoria. Las transacciones
// se serializan con un mutex y trabajan sobre una copia del estado que solo se publica
// si la función termina sin error, así que un fallo no deja escrituras a medias.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
	"github.com/jhoicas/tagtrack-api/internal/domain/repository"
)

type state struct {
	units     map[string]*entity.InventoryUnit
	audit     []*entity.AuditLogEntry
	seq       int64
	transfers map[string]*entity.Transfer
}

func newState() *state {
	return &state{
		units:     make(map[string]*entity.InventoryUnit),
		transfers: make(map[string]*entity.Transfer),
	}
}

func (s *state) clone() *state {
	cp := &state{
		units:     make(map[string]*entity.InventoryUnit, len(s.units)),
		audit:     make([]*entity.AuditLogEntry, len(s.audit)),
		seq:       s.seq,
		transfers: make(map[string]*entity.Transfer, len(s.transfers)),
	}
	for k, u := range s.units {
		cp.units[k] = u.Clone()
	}
	// Las entradas de auditoría son inmutables; basta con copiar el slice.
	copy(cp.audit, s.audit)
	for k, t := range s.transfers {
		cp.transfers[k] = t.Clone()
	}
	return cp
}

// Store almacén transaccional en memoria (tests y STORE_DRIVER=memory).
type Store struct {
	mu    sync.RWMutex
	state *state
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{state: newState()}
}

// Run ejecuta fn sobre una copia del estado con el candado de escritura tomado.
// Si fn devuelve error la copia se descarta (rollback).
func (s *Store) Run(ctx context.Context, fn func(
	unitRepo repository.InventoryUnitRepository,
	auditRepo repository.AuditLogRepository,
	transferRepo repository.TransferRepository,
) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.state.clone()
	b := binding{tx: tx}
	if err := fn(&UnitRepository{b: b}, &AuditLogRepository{b: b}, &TransferRepository{b: b}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = tx
	return nil
}

// UnitRepository repositorio de unidades fuera de transacción.
func (s *Store) UnitRepository() *UnitRepository {
	return &UnitRepository{b: binding{store: s}}
}

// AuditLogRepository repositorio de auditoría fuera de transacción.
func (s *Store) AuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{b: binding{store: s}}
}

// TransferRepository repositorio de traslados fuera de transacción.
func (s *Store) TransferRepository() *TransferRepository {
	return &TransferRepository{b: binding{store: s}}
}

// binding ata un repositorio al estado global (con candados propios) o a la copia de
// una transacción en curso (el candado ya lo tiene Run).
type binding struct {
	store *Store
	tx    *state
}

func (b binding) read(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	return fn(b.store.state)
}

func (b binding) write(fn func(st *state) error) error {
	if b.tx != nil {
		return fn(b.tx)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.state)
}
