package entity

import "time"

// Tabla auditada por el motor de inventario.
const AuditEntityInventoryUnits = "inventory_units"

// Campos auditados.
const (
	AuditFieldStatus      = "status"
	AuditFieldTestResults = "test_results"
)

// AuditAction acción registrada en el log de auditoría.
type AuditAction string

const (
	AuditActionReceive           AuditAction = "receive"
	AuditActionAssign            AuditAction = "assign"
	AuditActionInstall           AuditAction = "install"
	AuditActionRelease           AuditAction = "release"
	AuditActionDefective         AuditAction = "defective"
	AuditActionRMA               AuditAction = "rma"
	AuditActionQuarantine        AuditAction = "quarantine"
	AuditActionLiftQuarantine    AuditAction = "lift_quarantine"
	AuditActionTransferInitiated AuditAction = "transfer_initiated"
	AuditActionTransferCompleted AuditAction = "transfer_completed"
	AuditActionTransferCancelled AuditAction = "transfer_cancelled"
	AuditActionTestRecorded      AuditAction = "test_recorded"
)

// AuditLogEntry registro append-only de un cambio. Nunca se actualiza ni se borra.
type AuditLogEntry struct {
	ID          string
	Seq         int64 // orden de inserción, desempate cuando coinciden timestamps
	EntityTable string
	EntityID    string
	Action      AuditAction
	FieldName   string
	OldValue    string
	NewValue    string
	Reason      string
	ActorID     string
	Timestamp   time.Time
}

// IsStatusChange indica si la entrada participa en la reconstrucción del estado.
func (e *AuditLogEntry) IsStatusChange() bool {
	return e.FieldName == AuditFieldStatus
}
