package entity

import "time"

// TransferStatus estado de un traslado entre hubs.
type TransferStatus string

const (
	TransferStatusInitiated TransferStatus = "initiated"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusCancelled TransferStatus = "cancelled"
)

// Transfer agrupa las unidades que se mueven de un hub a otro (iniciar / completar).
type Transfer struct {
	ID            string
	FromHubID     string
	ToHubID       string
	UIDs          []string
	ArrivedUIDs   []string
	CancelledUIDs []string
	Reason        string
	ETA           *time.Time
	Status        TransferStatus
	CreatedBy     string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// IsOpen indica si el traslado aún tiene unidades pendientes.
func (t *Transfer) IsOpen() bool {
	return t.Status == TransferStatusInitiated
}

// PendingUIDs unidades que ni llegaron ni fueron canceladas.
func (t *Transfer) PendingUIDs() []string {
	closed := make(map[string]struct{}, len(t.ArrivedUIDs)+len(t.CancelledUIDs))
	for _, uid := range t.ArrivedUIDs {
		closed[uid] = struct{}{}
	}
	for _, uid := range t.CancelledUIDs {
		closed[uid] = struct{}{}
	}
	pending := make([]string, 0, len(t.UIDs))
	for _, uid := range t.UIDs {
		if _, ok := closed[uid]; !ok {
			pending = append(pending, uid)
		}
	}
	return pending
}

// IsPending indica si uid sigue pendiente dentro del traslado.
func (t *Transfer) IsPending(uid string) bool {
	for _, p := range t.PendingUIDs() {
		if p == uid {
			return true
		}
	}
	return false
}

// Clone copia profunda.
func (t *Transfer) Clone() *Transfer {
	if t == nil {
		return nil
	}
	cp := *t
	cp.UIDs = append([]string(nil), t.UIDs...)
	cp.ArrivedUIDs = append([]string(nil), t.ArrivedUIDs...)
	cp.CancelledUIDs = append([]string(nil), t.CancelledUIDs...)
	cp.ETA = cloneTime(t.ETA)
	cp.CompletedAt = cloneTime(t.CompletedAt)
	return &cp
}
