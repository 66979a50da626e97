package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/tagtrack-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback: ni la unidad ni la auditoría quedan escritas.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		unitRepo repository.InventoryUnitRepository,
		auditRepo repository.AuditLogRepository,
		transferRepo repository.TransferRepository,
	) error) error
}

// MetricsRecorder registra duración y resultado de cada operación del motor.
type MetricsRecorder interface {
	ObserveOperation(operation string, started time.Time, err error)
}
