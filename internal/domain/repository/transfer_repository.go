package repository

import (
	"context"

	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
)

// TransferRepository puerto de persistencia de traslados entre hubs.
type TransferRepository interface {
	Create(ctx context.Context, transfer *entity.Transfer) error
	GetByID(ctx context.Context, id string) (*entity.Transfer, error)
	// GetForUpdate bloquea la cabecera del traslado dentro de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Transfer, error)
	MarkArrived(ctx context.Context, transferID string, uids []string) error
	MarkCancelled(ctx context.Context, transferID string, uids []string) error
	// UpdateStatus cierra el traslado (completed/cancelled).
	UpdateStatus(ctx context.Context, transfer *entity.Transfer) error
}
