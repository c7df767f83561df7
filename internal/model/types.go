package model

import "time"

// OrderStatus is the lifecycle state of a service order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusAssigned   OrderStatus = "ASSIGNED"
	StatusTraveling  OrderStatus = "TRAVELING"
	StatusArrived    OrderStatus = "ARRIVED"
	StatusInProgress OrderStatus = "IN_PROGRESS"
	StatusPaused     OrderStatus = "PAUSED"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCanceled   OrderStatus = "CANCELED"
	StatusBlocked    OrderStatus = "BLOCKED"
)

// AllStatuses lists every order status in lifecycle order.
// Used by tests to sweep the full transition table.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusAssigned,
	StatusTraveling,
	StatusArrived,
	StatusInProgress,
	StatusPaused,
	StatusCompleted,
	StatusCanceled,
	StatusBlocked,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further technician-initiated
// transitions. Administrators may still edit metadata on terminal orders.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusBlocked
}

// OrderPriority is the dispatch priority of a service order.
type OrderPriority string

const (
	PriorityLow      OrderPriority = "LOW"
	PriorityMedium   OrderPriority = "MEDIUM"
	PriorityHigh     OrderPriority = "HIGH"
	PriorityCritical OrderPriority = "CRITICAL"
)

// Geostamp is a captured device position attached to a status transition.
type Geostamp struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Accuracy   float64   `json:"accuracy,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// ServiceOrder is a unit of field work assigned to a technician.
//
// Orders are owned by the back office and never deleted; they only move
// through status transitions. COMPLETED and CANCELED are terminal.
type ServiceOrder struct {
	ID              string        `json:"id"`
	DisplayID       string        `json:"display_id,omitempty"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	CustomerName    string        `json:"customer_name"`
	CustomerAddress string        `json:"customer_address,omitempty"`
	AssignedTo      string        `json:"assigned_to,omitempty"`
	Status          OrderStatus   `json:"status"`
	Priority        OrderPriority `json:"priority,omitempty"`

	// OperationType is the free-text service-type tag recorded by the
	// dispatcher. The form resolver matches it against known ServiceTypes.
	OperationType string `json:"operation_type"`

	EquipmentName   string `json:"equipment_name,omitempty"`
	EquipmentModel  string `json:"equipment_model,omitempty"`
	EquipmentSerial string `json:"equipment_serial,omitempty"`

	ScheduledDate string `json:"scheduled_date,omitempty"` // YYYY-MM-DD
	ScheduledTime string `json:"scheduled_time,omitempty"` // HH:MM

	// FormID is an optional explicit checklist reference set by the
	// dispatcher. When present and non-default it bypasses rule search.
	FormID   string   `json:"form_id,omitempty"`
	FormData FormData `json:"form_data,omitempty"`

	Signature []byte `json:"signature,omitempty"`
	SignedBy  string `json:"signed_by,omitempty"`

	TravelLocation  *Geostamp `json:"travel_location,omitempty"`
	CheckinLocation *Geostamp `json:"checkin_location,omitempty"`

	Notes            string `json:"notes,omitempty"`
	PauseReason      string `json:"pause_reason,omitempty"`
	ImpedimentReason string `json:"impediment_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an authenticated identity returned by the remote auth service.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// RoleTechnician marks users whose sessions run the location loop.
const RoleTechnician = "TECHNICIAN"

// ServiceType is a named category of field work (rule-matching key).
type ServiceType struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Equipment is a serviced asset. Family is the coarse category used for
// activation-rule matching; empty means uncategorized.
type Equipment struct {
	ID           string `json:"id" yaml:"id"`
	SerialNumber string `json:"serial_number" yaml:"serial_number"`
	Model        string `json:"model" yaml:"model"`
	Family       string `json:"family" yaml:"family"`
}
