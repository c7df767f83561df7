package model

import "fmt"

// FormFieldType enumerates the supported checklist field kinds.
type FormFieldType string

const (
	FieldText      FormFieldType = "TEXT"
	FieldLongText  FormFieldType = "LONG_TEXT"
	FieldSelect    FormFieldType = "SELECT"
	FieldPhoto     FormFieldType = "PHOTO"
	FieldSignature FormFieldType = "SIGNATURE"
)

// Valid reports whether t is a known field type.
func (t FormFieldType) Valid() bool {
	switch t {
	case FieldText, FieldLongText, FieldSelect, FieldPhoto, FieldSignature:
		return true
	}
	return false
}

// ConditionOperator controls how a field condition compares answers.
type ConditionOperator string

const (
	OpEquals    ConditionOperator = "equals"
	OpNotEquals ConditionOperator = "not_equals"
)

// FieldCondition gates a field's visibility on another field's answer.
// The source field must appear earlier in the same template.
type FieldCondition struct {
	SourceFieldID string            `json:"source_field_id" yaml:"source_field_id"`
	ExpectedValue string            `json:"expected_value" yaml:"expected_value"`
	Operator      ConditionOperator `json:"operator,omitempty" yaml:"operator,omitempty"` // default equals
}

// FormField is a single entry in a checklist template.
type FormField struct {
	ID        string          `json:"id" yaml:"id"`
	Label     string          `json:"label" yaml:"label"`
	Type      FormFieldType   `json:"type" yaml:"type"`
	Required  bool            `json:"required,omitempty" yaml:"required,omitempty"`
	Options   []string        `json:"options,omitempty" yaml:"options,omitempty"` // SELECT only
	Condition *FieldCondition `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// FormTemplate is an ordered checklist filled by a technician during
// execution. Templates are referenced by id, never embedded.
type FormTemplate struct {
	ID     string      `json:"id" yaml:"id"`
	Title  string      `json:"title" yaml:"title"`
	Active bool        `json:"active" yaml:"active"`
	Fields []FormField `json:"fields" yaml:"fields"`

	// ServiceTypes is an optional declared list of service-type names this
	// template applies to; used by the resolver's soft-match fallback.
	ServiceTypes []string `json:"service_types,omitempty" yaml:"service_types,omitempty"`
}

// Validate checks structural invariants:
//   - field ids unique and non-empty, types known
//   - SELECT fields declare at least one option
//   - conditions reference a field that appears EARLIER in the template
//     (no forward or self references, which also rules out cycles)
func (t *FormTemplate) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template: id is required")
	}
	seen := make(map[string]bool, len(t.Fields))
	for i, f := range t.Fields {
		if f.ID == "" {
			return fmt.Errorf("template %s: fields[%d]: id is required", t.ID, i)
		}
		if seen[f.ID] {
			return fmt.Errorf("template %s: duplicate field id %q", t.ID, f.ID)
		}
		if !f.Type.Valid() {
			return fmt.Errorf("template %s: field %s: unknown type %q", t.ID, f.ID, f.Type)
		}
		if f.Type == FieldSelect && len(f.Options) == 0 {
			return fmt.Errorf("template %s: field %s: SELECT requires options", t.ID, f.ID)
		}
		if f.Condition != nil {
			if f.Condition.SourceFieldID == "" {
				return fmt.Errorf("template %s: field %s: condition missing source field", t.ID, f.ID)
			}
			if !seen[f.Condition.SourceFieldID] {
				return fmt.Errorf("template %s: field %s: condition references %q which does not appear earlier",
					t.ID, f.ID, f.Condition.SourceFieldID)
			}
			switch f.Condition.Operator {
			case "", OpEquals, OpNotEquals:
			default:
				return fmt.Errorf("template %s: field %s: unknown condition operator %q",
					t.ID, f.ID, f.Condition.Operator)
			}
		}
		seen[f.ID] = true
	}
	return nil
}

// FieldByID returns the field with the given id, or nil.
func (t *FormTemplate) FieldByID(id string) *FormField {
	for i := range t.Fields {
		if t.Fields[i].ID == id {
			return &t.Fields[i]
		}
	}
	return nil
}

// ActivationRule binds (service type, equipment family) to a form template.
// An empty EquipmentFamily acts as the wildcard fallback for its service
// type; at most one wildcard rule per service type is allowed.
type ActivationRule struct {
	ID              string `json:"id" yaml:"id"`
	ServiceTypeID   string `json:"service_type_id" yaml:"service_type_id"`
	EquipmentFamily string `json:"equipment_family,omitempty" yaml:"equipment_family,omitempty"`
	FormTemplateID  string `json:"form_template_id" yaml:"form_template_id"`
}

// Wildcard reports whether the rule matches any equipment family.
func (r ActivationRule) Wildcard() bool {
	return r.EquipmentFamily == ""
}
