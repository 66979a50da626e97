package entity

import "time"

// UnitKind tipo de hardware físico.
type UnitKind string

const (
	UnitKindTag     UnitKind = "tag"      // etiqueta adhesiva
	UnitKindNFCChip UnitKind = "nfc_chip" // chip NFC, requiere pruebas de lectura/escritura
)

// Valid indica si el tipo es conocido.
func (k UnitKind) Valid() bool {
	return k == UnitKindTag || k == UnitKindNFCChip
}

// UnitStatus estado de custodia de una unidad. Las aristas permitidas viven en domain/lifecycle.
type UnitStatus string

const (
	StatusAvailable UnitStatus = "available"  // stock sin asignar
	StatusAssigned  UnitStatus = "assigned"   // reservada para un envío
	StatusInstalled UnitStatus = "installed"  // instalada (write-once)
	StatusDefective UnitStatus = "defective"  // falla de calidad o cuarentena
	StatusRMA       UnitStatus = "rma"        // terminal
	StatusInTransit UnitStatus = "in_transit" // en un traslado abierto entre hubs
)

// AllStatuses lista todos los estados conocidos.
var AllStatuses = []UnitStatus{
	StatusAvailable, StatusAssigned, StatusInstalled, StatusDefective, StatusRMA, StatusInTransit,
}

// TestResults resultado de las pruebas de lectura/escritura de una unidad.
type TestResults struct {
	ReadPassed   bool
	WritePassed  bool
	LastTestedAt *time.Time
	Notes        string
}

// Passed indica si la unidad pasó lectura y escritura.
func (t TestResults) Passed() bool {
	return t.ReadPassed && t.WritePassed
}

// InventoryUnit representa una etiqueta o chip NFC físico, identificado por su UID.
type InventoryUnit struct {
	UID                string
	Kind               UnitKind
	Status             UnitStatus
	Lot                string
	CurrentHubID       string
	AssignedShipmentID string
	TestResults        TestResults
	QuarantineMarker   bool   // defectuosa por cuarentena de lote (no por RMA individual)
	OpenTransferID     string // traslado abierto al que pertenece (solo en in_transit)
	ReceivedAt         time.Time
	AssignedAt         *time.Time
	InstalledAt        *time.Time
	RMAInitiatedAt     *time.Time
	UpdatedAt          time.Time
	Version            int64
}

// RequiresTests indica si la unidad debe haber pasado pruebas antes de reservarse.
func (u *InventoryUnit) RequiresTests() bool {
	return u.Kind == UnitKindNFCChip
}

// Clone devuelve una copia profunda (los punteros de tiempo no se comparten).
func (u *InventoryUnit) Clone() *InventoryUnit {
	if u == nil {
		return nil
	}
	cp := *u
	cp.TestResults.LastTestedAt = cloneTime(u.TestResults.LastTestedAt)
	cp.AssignedAt = cloneTime(u.AssignedAt)
	cp.InstalledAt = cloneTime(u.InstalledAt)
	cp.RMAInitiatedAt = cloneTime(u.RMAInitiatedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
