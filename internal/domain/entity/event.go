package entity

import "time"

// EventType nombre de una notificación emitida después del commit.
type EventType string

const (
	EventInventoryReceived  EventType = "inventory.received"
	EventInventoryAssigned  EventType = "inventory.assigned"
	EventInventoryInstalled EventType = "inventory.installed"
	EventInventoryReleased  EventType = "inventory.released"
	EventInventoryDefective EventType = "inventory.defective"
	EventInventoryRMA       EventType = "inventory.rma"
	EventInventoryTested    EventType = "inventory.tested"
	EventLotQuarantineSet   EventType = "lot.quarantine.set"
	EventLotQuarantineLift  EventType = "lot.quarantine.lifted"
	EventTransferInitiated  EventType = "transfer.initiated"
	EventTransferArrived    EventType = "transfer.arrived"
	EventTransferCancelled  EventType = "transfer.cancelled"
)

// Event sobre de una notificación. Los consumidores deben tratar la entrega como
// best-effort e idempotente (puede duplicarse o perderse).
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	UID        string         `json:"uid,omitempty"`
	Lot        string         `json:"lot,omitempty"`
	TransferID string         `json:"transfer_id,omitempty"`
	HubID      string         `json:"hub_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`
}
