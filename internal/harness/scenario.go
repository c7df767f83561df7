package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"fieldflow/internal/model"
)

// Scenario is a declarative lifecycle conformance test: an initial order,
// a sequence of events, and assertions over the resulting timeline.
type Scenario struct {
	// Name uniquely identifies the scenario; also the golden file name.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Order is the initial order state.
	Order OrderSpec `yaml:"order"`

	// Template is the order's checklist, when completion validation or
	// checklist edits are part of the scenario.
	Template *TemplateSpec `yaml:"template,omitempty"`

	// Position scripts the device position for TRAVEL/ARRIVE geostamps.
	// Absent means no geolocation provider.
	Position *PositionSpec `yaml:"position,omitempty"`

	// Steps is the event sequence, applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final order and the timeline.
	Assertions []Assertion `yaml:"assertions"`
}

// OrderSpec is the YAML shape of the initial order.
type OrderSpec struct {
	ID            string `yaml:"id"`
	Title         string `yaml:"title,omitempty"`
	Status        string `yaml:"status"`
	OperationType string `yaml:"operation_type,omitempty"`
	EquipmentName string `yaml:"equipment_name,omitempty"`
	FormID        string `yaml:"form_id,omitempty"`

	// Answers pre-populates form data as plain text answers keyed by
	// field id.
	Answers map[string]string `yaml:"answers,omitempty"`
}

func (o OrderSpec) toModel() model.ServiceOrder {
	order := model.ServiceOrder{
		ID:            o.ID,
		Title:         o.Title,
		Status:        model.OrderStatus(o.Status),
		OperationType: o.OperationType,
		EquipmentName: o.EquipmentName,
		FormID:        o.FormID,
	}
	if len(o.Answers) > 0 {
		order.FormData = textAnswers(o.Answers)
	}
	return order
}

// TemplateSpec is the YAML shape of a checklist template.
type TemplateSpec struct {
	ID     string      `yaml:"id"`
	Title  string      `yaml:"title,omitempty"`
	Fields []FieldSpec `yaml:"fields"`
}

// FieldSpec is one checklist field.
type FieldSpec struct {
	ID       string   `yaml:"id"`
	Label    string   `yaml:"label"`
	Type     string   `yaml:"type"`
	Required bool     `yaml:"required,omitempty"`
	Options  []string `yaml:"options,omitempty"`

	Condition *ConditionSpec `yaml:"condition,omitempty"`
}

// ConditionSpec is a field visibility condition.
type ConditionSpec struct {
	Field    string `yaml:"field"`
	Value    string `yaml:"value"`
	Operator string `yaml:"operator,omitempty"` // defaults to equals
}

func (t *TemplateSpec) toModel() *model.FormTemplate {
	if t == nil {
		return nil
	}
	tmpl := &model.FormTemplate{
		ID:     t.ID,
		Title:  t.Title,
		Active: true,
	}
	for _, f := range t.Fields {
		field := model.FormField{
			ID:       f.ID,
			Label:    f.Label,
			Type:     model.FormFieldType(f.Type),
			Required: f.Required,
			Options:  f.Options,
		}
		if f.Condition != nil {
			op := model.ConditionOperator(f.Condition.Operator)
			if op == "" {
				op = model.OpEquals
			}
			field.Condition = &model.FieldCondition{
				SourceFieldID: f.Condition.Field,
				ExpectedValue: f.Condition.Value,
				Operator:      op,
			}
		}
		tmpl.Fields = append(tmpl.Fields, field)
	}
	return tmpl
}

// PositionSpec scripts the geolocation provider.
type PositionSpec struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
	// Fail makes every position request error, exercising the
	// geo-warning annotation path.
	Fail bool `yaml:"fail,omitempty"`
}

// Step is one lifecycle event application.
type Step struct {
	Event string `yaml:"event"`
	Actor string `yaml:"actor,omitempty"`

	Reason    string            `yaml:"reason,omitempty"`
	SignedBy  string            `yaml:"signed_by,omitempty"`
	Signature string            `yaml:"signature,omitempty"` // raw bytes as string
	Notes     string            `yaml:"notes,omitempty"`
	Answers   map[string]string `yaml:"answers,omitempty"`

	// Expect validates the step outcome. Absent means the step must
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause is the expected outcome of a step.
type ExpectClause struct {
	// Status is the expected order status after a successful step.
	Status string `yaml:"status,omitempty"`
	// Error is the expected failure kind: "illegal_transition" or
	// "validation". The order must be left unchanged.
	Error string `yaml:"error,omitempty"`
}

// Expected error kinds.
const (
	ExpectIllegalTransition = "illegal_transition"
	ExpectValidation        = "validation"
)

// Assertion validates the final order or the timeline.
type Assertion struct {
	// Type is one of final_status, timeline_count, timeline_order,
	// event_detail.
	Type string `yaml:"type"`

	// Status is the expected final status (final_status).
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of timeline events (timeline_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected event-type sequence (timeline_order).
	Events []string `yaml:"events,omitempty"`

	// Index, Key, Value check one detail entry of one event
	// (event_detail). Index is zero-based over the timeline.
	Index int    `yaml:"index,omitempty"`
	Key   string `yaml:"key,omitempty"`
	Value string `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalStatus   = "final_status"
	AssertTimelineCount = "timeline_count"
	AssertTimelineOrder = "timeline_order"
	AssertEventDetail   = "event_detail"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently skipping a check.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Order.ID == "" {
		return fmt.Errorf("order.id is required")
	}
	if !model.OrderStatus(s.Order.Status).Valid() {
		return fmt.Errorf("order.status %q is not a known status", s.Order.Status)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Event == "" {
			return fmt.Errorf("steps[%d]: event is required", i)
		}
		if step.Expect != nil {
			if step.Expect.Status == "" && step.Expect.Error == "" {
				return fmt.Errorf("steps[%d].expect: status or error is required", i)
			}
			if step.Expect.Error != "" &&
				step.Expect.Error != ExpectIllegalTransition &&
				step.Expect.Error != ExpectValidation {
				return fmt.Errorf("steps[%d].expect: unknown error kind %q", i, step.Expect.Error)
			}
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertFinalStatus:
			if a.Status == "" {
				return fmt.Errorf("assertions[%d]: status is required for final_status", i)
			}
		case AssertTimelineCount:
			if a.Count < 0 {
				return fmt.Errorf("assertions[%d]: count must be non-negative", i)
			}
		case AssertTimelineOrder:
			if len(a.Events) == 0 {
				return fmt.Errorf("assertions[%d]: events list is required for timeline_order", i)
			}
		case AssertEventDetail:
			if a.Key == "" {
				return fmt.Errorf("assertions[%d]: key is required for event_detail", i)
			}
		case "":
			return fmt.Errorf("assertions[%d]: type is required", i)
		default:
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
	}
	return nil
}

func textAnswers(m map[string]string) model.FormData {
	fd := make(model.FormData, len(m))
	for id, v := range m {
		fd[id] = model.TextAnswer(v)
	}
	return fd
}
