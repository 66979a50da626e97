package dto

import (
	"time"

	"github.com/jhoicas/tagtrack-api/internal/application/inventory"
	"github.com/jhoicas/tagtrack-api/internal/domain/entity"
)

// TestResultsDTO resultado de pruebas de lectura/escritura.
type TestResultsDTO struct {
	ReadPassed   bool       `json:"read_passed"`
	WritePassed  bool       `json:"write_passed"`
	LastTestedAt *time.Time `json:"last_tested_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// ToEntity convierte a la entidad de dominio.
func (t *TestResultsDTO) ToEntity() *entity.TestResults {
	if t == nil {
		return nil
	}
	return &entity.TestResults{ReadPassed: t.ReadPassed, WritePassed: t.WritePassed, LastTestedAt: t.LastTestedAt, Notes: t.Notes}
}

// ReceiveUnitRequest body para POST /api/inventory/units.
type ReceiveUnitRequest struct {
	UID         string          `json:"uid"`
	Kind        string          `json:"kind"`
	Lot         string          `json:"lot"`
	HubID       string          `json:"hub_id"`
	TestResults *TestResultsDTO `json:"test_results,omitempty"`
}

// ReceiveBatchRequest body para POST /api/inventory/units/batch.
type ReceiveBatchRequest struct {
	Lot           string          `json:"lot"`
	HubID         string          `json:"hub_id"`
	Kind          string          `json:"kind"`
	Count         int             `json:"count"`
	FirstSequence int             `json:"first_sequence"`
	TestResults   *TestResultsDTO `json:"test_results,omitempty"`
}

// ReserveRequest body para POST /api/inventory/reservations. Sin uid se toma la más antigua.
type ReserveRequest struct {
	UID        string `json:"uid,omitempty"`
	HubID      string `json:"hub_id"`
	Lot        string `json:"lot,omitempty"`
	Kind       string `json:"kind,omitempty"`
	ShipmentID string `json:"shipment_id"`
}

// InstallRequest body para POST /api/inventory/units/:uid/install.
type InstallRequest struct {
	HubID       string          `json:"hub_id"`
	TestResults *TestResultsDTO `json:"test_results,omitempty"`
}

// ReasonRequest body con motivo (release, defective, rma, quarantine, lift).
type ReasonRequest struct {
	Reason string `json:"reason"`
	HubID  string `json:"hub_id,omitempty"`
}

// InitiateTransferRequest body para POST /api/inventory/transfers.
type InitiateTransferRequest struct {
	FromHubID string     `json:"from_hub_id"`
	ToHubID   string     `json:"to_hub_id"`
	UIDs      []string   `json:"uids,omitempty"`
	Quantity  int        `json:"quantity,omitempty"`
	Lot       string     `json:"lot,omitempty"`
	Kind      string     `json:"kind,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	ETA       *time.Time `json:"eta,omitempty"`
}

// CompleteTransferRequest body para POST /api/inventory/transfers/:id/complete.
type CompleteTransferRequest struct {
	ToHubID     string   `json:"to_hub_id"`
	ArrivedUIDs []string `json:"arrived_uids,omitempty"`
}

// CancelTransferRequest body para POST /api/inventory/transfers/:id/cancel.
type CancelTransferRequest struct {
	UIDs   []string `json:"uids,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

// UnitResponse representación pública de una unidad.
type UnitResponse struct {
	UID                string         `json:"uid"`
	Kind               string         `json:"kind"`
	Status             string         `json:"status"`
	Lot                string         `json:"lot"`
	CurrentHubID       string         `json:"current_hub_id"`
	AssignedShipmentID string         `json:"assigned_shipment_id,omitempty"`
	TestResults        TestResultsDTO `json:"test_results"`
	QuarantineMarker   bool           `json:"quarantine_marker"`
	OpenTransferID     string         `json:"open_transfer_id,omitempty"`
	ReceivedAt         time.Time      `json:"received_at"`
	AssignedAt         *time.Time     `json:"assigned_at,omitempty"`
	InstalledAt        *time.Time     `json:"installed_at,omitempty"`
	RMAInitiatedAt     *time.Time     `json:"rma_initiated_at,omitempty"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// NewUnitResponse mapea la entidad.
func NewUnitResponse(u *entity.InventoryUnit) UnitResponse {
	return UnitResponse{
		UID:                u.UID,
		Kind:               string(u.Kind),
		Status:             string(u.Status),
		Lot:                u.Lot,
		CurrentHubID:       u.CurrentHubID,
		AssignedShipmentID: u.AssignedShipmentID,
		TestResults: TestResultsDTO{
			ReadPassed:   u.TestResults.ReadPassed,
			WritePassed:  u.TestResults.WritePassed,
			LastTestedAt: u.TestResults.LastTestedAt,
			Notes:        u.TestResults.Notes,
		},
		QuarantineMarker: u.QuarantineMarker,
		OpenTransferID:   u.OpenTransferID,
		ReceivedAt:       u.ReceivedAt,
		AssignedAt:       u.AssignedAt,
		InstalledAt:      u.InstalledAt,
		RMAInitiatedAt:   u.RMAInitiatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

// NewUnitList mapea una lista de entidades.
func NewUnitList(units []*entity.InventoryUnit) []UnitResponse {
	out := make([]UnitResponse, 0, len(units))
	for _, u := range units {
		out = append(out, NewUnitResponse(u))
	}
	return out
}

// AuditEntryResponse entrada del historial de una unidad.
type AuditEntryResponse struct {
	Seq       int64     `json:"seq"`
	Action    string    `json:"action"`
	FieldName string    `json:"field_name"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Reason    string    `json:"reason,omitempty"`
	ActorID   string    `json:"actor_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHistory mapea el historial.
func NewHistory(entries []*entity.AuditLogEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			Seq: e.Seq, Action: string(e.Action), FieldName: e.FieldName,
			OldValue: e.OldValue, NewValue: e.NewValue, Reason: e.Reason,
			ActorID: e.ActorID, Timestamp: e.Timestamp,
		})
	}
	return out
}

// LotResultResponse resultado de cuarentena / levantamiento.
type LotResultResponse struct {
	Lot          string   `json:"lot"`
	HubID        string   `json:"hub_id,omitempty"`
	AffectedUIDs []string `json:"affected_uids"`
	Count        int      `json:"count"`
}

// NewLotResult mapea el resultado del caso de uso.
func NewLotResult(r *inventory.LotResult) LotResultResponse {
	return LotResultResponse{Lot: r.Lot, HubID: r.HubID, AffectedUIDs: r.AffectedUIDs, Count: len(r.AffectedUIDs)}
}

// TransferResponse representación de un traslado.
type TransferResponse struct {
	ID            string     `json:"id"`
	FromHubID     string     `json:"from_hub_id"`
	ToHubID       string     `json:"to_hub_id"`
	Status        string     `json:"status"`
	UIDs          []string   `json:"uids"`
	ArrivedUIDs   []string   `json:"arrived_uids"`
	CancelledUIDs []string   `json:"cancelled_uids"`
	PendingUIDs   []string   `json:"pending_uids"`
	Reason        string     `json:"reason,omitempty"`
	ETA           *time.Time `json:"eta,omitempty"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewTransferResponse mapea la entidad.
func NewTransferResponse(t *entity.Transfer) TransferResponse {
	return TransferResponse{
		ID:            t.ID,
		FromHubID:     t.FromHubID,
		ToHubID:       t.ToHubID,
		Status:        string(t.Status),
		UIDs:          nonNil(t.UIDs),
		ArrivedUIDs:   nonNil(t.ArrivedUIDs),
		CancelledUIDs: nonNil(t.CancelledUIDs),
		PendingUIDs:   nonNil(t.PendingUIDs()),
		Reason:        t.Reason,
		ETA:           t.ETA,
		CreatedBy:     t.CreatedBy,
		CreatedAt:     t.CreatedAt,
		CompletedAt:   t.CompletedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
