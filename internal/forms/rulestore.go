package forms

import (
	"fmt"

	"fieldflow/internal/model"
)

// WildcardFamily is the legacy spelling of the match-all equipment family
// in back-office data. Loaders fold it to the empty string on ingest.
const WildcardFamily = "Todos"

// RuleStore is an immutable snapshot of the resolution inputs.
// Construct with NewRuleStore; lookups are pure reads.
type RuleStore struct {
	ServiceTypes []model.ServiceType
	Equipments   []model.Equipment
	Templates    []model.FormTemplate
	Rules        []model.ActivationRule

	templatesByID map[string]*model.FormTemplate
}

// NewRuleStore builds a snapshot and validates cross references:
// every rule must point at an existing template and service type, and a
// service type may declare at most one wildcard rule.
func NewRuleStore(
	serviceTypes []model.ServiceType,
	equipments []model.Equipment,
	templates []model.FormTemplate,
	rules []model.ActivationRule,
) (*RuleStore, error) {
	rs := &RuleStore{
		ServiceTypes:  serviceTypes,
		Equipments:    equipments,
		Templates:     templates,
		Rules:         rules,
		templatesByID: make(map[string]*model.FormTemplate, len(templates)),
	}

	for i := range templates {
		t := &templates[i]
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := rs.templatesByID[t.ID]; dup {
			return nil, fmt.Errorf("rule store: duplicate template id %q", t.ID)
		}
		rs.templatesByID[t.ID] = t
	}

	typeIDs := make(map[string]bool, len(serviceTypes))
	for _, st := range serviceTypes {
		typeIDs[st.ID] = true
	}

	wildcards := make(map[string]bool, len(rules))
	for _, r := range rules {
		if !typeIDs[r.ServiceTypeID] {
			return nil, fmt.Errorf("rule %s: unknown service type %q", r.ID, r.ServiceTypeID)
		}
		if _, ok := rs.templatesByID[r.FormTemplateID]; !ok {
			return nil, fmt.Errorf("rule %s: unknown form template %q", r.ID, r.FormTemplateID)
		}
		if r.Wildcard() {
			if wildcards[r.ServiceTypeID] {
				return nil, fmt.Errorf("service type %q: more than one wildcard rule", r.ServiceTypeID)
			}
			wildcards[r.ServiceTypeID] = true
		}
	}

	return rs, nil
}

// TemplateByID returns the template with the given id, or nil.
func (rs *RuleStore) TemplateByID(id string) *model.FormTemplate {
	return rs.templatesByID[id]
}

// EquipmentForOrder locates the equipment referenced by an order, matching
// by serial number first, then by model against the order's equipment name.
// Returns nil when the order's equipment is not in the catalog.
func (rs *RuleStore) EquipmentForOrder(order model.ServiceOrder) *model.Equipment {
	for i := range rs.Equipments {
		e := &rs.Equipments[i]
		if order.EquipmentSerial != "" && e.SerialNumber == order.EquipmentSerial {
			return e
		}
	}
	for i := range rs.Equipments {
		e := &rs.Equipments[i]
		if order.EquipmentName != "" && e.Model == order.EquipmentName {
			return e
		}
	}
	return nil
}
