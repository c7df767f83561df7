package timeline

import "time"

// EventType classifies what happened to an order.
type EventType string

const (
	// EventOrderCreated is appended once when the back office opens an order.
	EventOrderCreated EventType = "ORDER_CREATED"

	// EventStatusChanged is appended for every successful state-machine
	// transition. Details always carry old_status and new_status; PAUSE and
	// BLOCK additionally carry their reason, FINISH the signature metadata.
	EventStatusChanged EventType = "STATUS_CHANGED"

	// EventChecklistSaved is appended when a technician persists checklist
	// answers without changing status (the EDIT_CHECKLIST no-op transition).
	EventChecklistSaved EventType = "CHECKLIST_SAVED"

	// EventVisitScheduled is appended when the back office schedules a
	// follow-up visit on a paused or blocked order.
	EventVisitScheduled EventType = "VISIT_SCHEDULED"
)

// Well-known detail keys.
const (
	DetailOldStatus        = "old_status"
	DetailNewStatus        = "new_status"
	DetailPauseReason      = "pause_reason"
	DetailImpedimentReason = "impediment_reason"
	DetailSignedBy         = "signed_by"
	DetailSignatureBytes   = "signature_bytes"
	DetailGeoWarning       = "geo_warning"
	DetailAnswerCount      = "answer_count"
)

// Event is one immutable audit record. The raw signature blob never
// appears in an event; only its metadata does.
type Event struct {
	ID      string            `json:"id"`
	OrderID string            `json:"order_id"`
	Type    EventType         `json:"type"`
	Actor   string            `json:"actor,omitempty"`
	Seq     int64             `json:"seq"`
	At      time.Time         `json:"at"`
	Details map[string]string `json:"details,omitempty"`
}
