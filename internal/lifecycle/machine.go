package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"fieldflow/internal/forms"
	"fieldflow/internal/model"
	"fieldflow/internal/timeline"
)

// EventKind is a technician- or admin-initiated lifecycle event.
type EventKind string

const (
	EventStartTravel   EventKind = "START_TRAVEL"
	EventArrive        EventKind = "ARRIVE"
	EventStartService  EventKind = "START_SERVICE"
	EventPause         EventKind = "PAUSE"
	EventResume        EventKind = "RESUME"
	EventFinish        EventKind = "FINISH"
	EventBlock         EventKind = "BLOCK"
	EventCancel        EventKind = "CANCEL"
	EventEditChecklist EventKind = "EDIT_CHECKLIST"
)

// AllEvents lists every event kind. Used by tests to sweep the table.
var AllEvents = []EventKind{
	EventStartTravel, EventArrive, EventStartService, EventPause,
	EventResume, EventFinish, EventBlock, EventCancel, EventEditChecklist,
}

// transition is one row of the transition table.
type transition struct {
	from []model.OrderStatus // nil means "any non-terminal" (BLOCK)
	to   model.OrderStatus
}

// transitions is the declarative table from the lifecycle design. Order of
// keys is irrelevant; lookups are by event kind, then current status.
var transitions = map[EventKind]transition{
	EventStartTravel:   {from: []model.OrderStatus{model.StatusPending, model.StatusAssigned}, to: model.StatusTraveling},
	EventArrive:        {from: []model.OrderStatus{model.StatusTraveling}, to: model.StatusArrived},
	EventStartService:  {from: []model.OrderStatus{model.StatusArrived}, to: model.StatusInProgress},
	EventPause:         {from: []model.OrderStatus{model.StatusInProgress}, to: model.StatusPaused},
	EventResume:        {from: []model.OrderStatus{model.StatusPaused}, to: model.StatusInProgress},
	EventFinish:        {from: []model.OrderStatus{model.StatusInProgress}, to: model.StatusCompleted},
	EventBlock:         {from: nil, to: model.StatusBlocked}, // any non-terminal
	EventCancel:        {from: []model.OrderStatus{model.StatusPending, model.StatusAssigned}, to: model.StatusCanceled},
	EventEditChecklist: {from: []model.OrderStatus{model.StatusInProgress}, to: model.StatusInProgress},
}

// allowed reports whether ev may fire from the given status.
func allowed(ev EventKind, from model.OrderStatus) bool {
	t, ok := transitions[ev]
	if !ok {
		return false
	}
	if t.from == nil {
		return !from.Terminal()
	}
	for _, s := range t.from {
		if s == from {
			return true
		}
	}
	return false
}

// Command carries an event plus its side data.
type Command struct {
	Event EventKind
	Actor string

	Reason    string         // PAUSE, BLOCK
	Signature []byte         // FINISH
	SignedBy  string         // FINISH
	FormData  model.FormData // FINISH, EDIT_CHECKLIST
	Notes     string
}

// Positioner captures a one-shot device position. Satisfied by the sync
// package's geolocation provider; tests use a stub.
type Positioner interface {
	CurrentPosition(ctx context.Context) (model.Geostamp, error)
}

// Outcome is the result of a successful transition: the updated order copy
// and the single timeline event to append.
type Outcome struct {
	Order model.ServiceOrder
	Event timeline.Event
}

// Machine validates and applies lifecycle events.
//
// Construct once per session with the session's clock and id generator so
// event seq numbers are totally ordered across orders.
type Machine struct {
	clock *timeline.Clock
	ids   timeline.IDGenerator
	geo   Positioner
	now   func() time.Time
}

// Option configures a Machine.
type Option func(*Machine)

// WithNow overrides the wall-clock source. Tests pin it for deterministic
// event timestamps.
func WithNow(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a Machine. geo may be nil when no geolocation
// provider is available; TRAVEL/ARRIVE then proceed without geostamps.
func NewMachine(clock *timeline.Clock, ids timeline.IDGenerator, geo Positioner, opts ...Option) *Machine {
	m := &Machine{clock: clock, ids: ids, geo: geo, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply validates cmd against order's current status and returns the
// updated order plus the timeline event to append.
//
// tmpl is the order's resolved checklist; it is only consulted by FINISH
// (required-field validation) and may be nil when no checklist applies.
//
// On error the returned Outcome is zero and the caller must treat the
// order as unchanged; no event is emitted.
func (m *Machine) Apply(ctx context.Context, order model.ServiceOrder, cmd Command, tmpl *model.FormTemplate) (Outcome, error) {
	if !allowed(cmd.Event, order.Status) {
		return Outcome{}, &IllegalTransition{From: order.Status, Event: cmd.Event}
	}

	if err := validateCommand(order, cmd, tmpl); err != nil {
		return Outcome{}, err
	}

	next := transitions[cmd.Event].to
	now := m.now()

	details := map[string]string{
		timeline.DetailOldStatus: string(order.Status),
		timeline.DetailNewStatus: string(next),
	}
	eventType := timeline.EventStatusChanged

	updated := order

	switch cmd.Event {
	case EventStartTravel:
		updated.TravelLocation = m.captureGeostamp(ctx, order.ID, details)

	case EventArrive:
		updated.CheckinLocation = m.captureGeostamp(ctx, order.ID, details)

	case EventPause:
		updated.PauseReason = cmd.Reason
		details[timeline.DetailPauseReason] = cmd.Reason

	case EventResume:
		updated.PauseReason = ""

	case EventBlock:
		updated.ImpedimentReason = cmd.Reason
		details[timeline.DetailImpedimentReason] = cmd.Reason

	case EventFinish:
		updated.Signature = cmd.Signature
		updated.SignedBy = cmd.SignedBy
		if len(cmd.FormData) > 0 {
			updated.FormData = updated.FormData.Merge(cmd.FormData)
		}
		// Signature metadata only; the raw blob never enters the audit log.
		details[timeline.DetailSignedBy] = cmd.SignedBy
		details[timeline.DetailSignatureBytes] = strconv.Itoa(len(cmd.Signature))

	case EventEditChecklist:
		updated.FormData = updated.FormData.Merge(cmd.FormData)
		eventType = timeline.EventChecklistSaved
		details = map[string]string{
			timeline.DetailAnswerCount: strconv.Itoa(len(cmd.FormData)),
		}
	}

	if cmd.Notes != "" {
		updated.Notes = cmd.Notes
	}
	updated.Status = next
	updated.UpdatedAt = now

	ev := timeline.Event{
		ID:      m.ids.NewID(),
		OrderID: order.ID,
		Type:    eventType,
		Actor:   cmd.Actor,
		Seq:     m.clock.Next(),
		At:      now,
		Details: details,
	}

	return Outcome{Order: updated, Event: ev}, nil
}

// validateCommand enforces per-event required data before any mutation.
func validateCommand(order model.ServiceOrder, cmd Command, tmpl *model.FormTemplate) error {
	switch cmd.Event {
	case EventPause:
		if cmd.Reason == "" {
			return &ValidationError{Field: "reason", Message: "pause requires a reason"}
		}
	case EventBlock:
		if cmd.Reason == "" {
			return &ValidationError{Field: "reason", Message: "impediment requires a reason"}
		}
	case EventFinish:
		if len(cmd.Signature) == 0 {
			return &ValidationError{Field: "signature", Message: "completion requires the customer signature"}
		}
		if cmd.SignedBy == "" {
			return &ValidationError{Field: "signed_by", Message: "completion requires the signer name"}
		}
		answers := order.FormData.Merge(cmd.FormData)
		if missing := forms.MissingRequired(tmpl, answers); len(missing) > 0 {
			return &ValidationError{
				Field:   missing[0].ID,
				Message: fmt.Sprintf("required checklist field %q not answered", missing[0].Label),
			}
		}
	}
	return nil
}

// captureGeostamp best-effort grabs the device position. Failure never
// blocks the transition; it is logged and annotated on the event.
func (m *Machine) captureGeostamp(ctx context.Context, orderID string, details map[string]string) *model.Geostamp {
	if m.geo == nil {
		return nil
	}
	pos, err := m.geo.CurrentPosition(ctx)
	if err != nil {
		slog.Warn("geostamp capture failed",
			"order_id", orderID,
			"error", err,
		)
		details[timeline.DetailGeoWarning] = err.Error()
		return nil
	}
	return &pos
}
