package forms

import (
	"errors"
	"fmt"
	"strings"

	"fieldflow/internal/model"
)

// DefaultFormID is the generic checklist historically seeded by the back
// office. An order carrying it is treated as having no explicit form
// reference, so rule search still runs.
const DefaultFormID = "f-padrao"

// ResolutionStep identifies which step of the fallback chain produced the
// template.
type ResolutionStep string

const (
	StepExplicit  ResolutionStep = "explicit"  // order carried a form id
	StepRule      ResolutionStep = "rule"      // activation rule, exact family
	StepWildcard  ResolutionStep = "wildcard"  // activation rule, match-all family
	StepSoftMatch ResolutionStep = "softmatch" // template title / declared types
)

// Resolution is a successful resolver outcome. Callers cache it for the
// lifetime of the order-editing session; the resolver itself never does.
type Resolution struct {
	Template *model.FormTemplate
	Step     ResolutionStep

	// ServiceType is the effective matched service type (nil for the
	// explicit step, which bypasses matching entirely).
	ServiceType *model.ServiceType
	// TypeStrategy names the matcher that identified the service type.
	TypeStrategy string
	// EquipmentFamily is the computed family, empty if unknown.
	EquipmentFamily string
}

// Diagnostics explains a resolution failure so the UI can render a
// diagnosable empty state instead of a blank screen.
type Diagnostics struct {
	CandidateServiceTypes []string `json:"candidate_service_types"`
	EquipmentFamily       string   `json:"equipment_family,omitempty"`
	StrategiesTried       []string `json:"strategies_tried,omitempty"`
}

// ResolveError is the resolver failure type.
//
// Code ErrCodeExplicitFormMissing: the order carries an explicit form
// reference whose template is gone; the dispatcher should be warned, and
// the caller must NOT fall through to rule search.
//
// Code ErrCodeNoFormResolved: the whole chain came up empty. Diagnostics
// are always populated.
type ResolveError struct {
	Code        string
	FormID      string // dangling id, for ErrCodeExplicitFormMissing
	Diagnostics Diagnostics
}

const (
	ErrCodeExplicitFormMissing = "EXPLICIT_FORM_MISSING"
	ErrCodeNoFormResolved      = "NO_FORM_RESOLVED"
)

func (e *ResolveError) Error() string {
	if e.Code == ErrCodeExplicitFormMissing {
		return fmt.Sprintf("%s: order references form %q which no longer exists", e.Code, e.FormID)
	}
	return fmt.Sprintf("%s: no checklist applies (family=%q, candidates=%v)",
		e.Code, e.Diagnostics.EquipmentFamily, e.Diagnostics.CandidateServiceTypes)
}

// IsExplicitFormMissing reports whether err is a dangling explicit form
// reference. Uses errors.As to handle wrapped errors.
func IsExplicitFormMissing(err error) bool {
	var re *ResolveError
	return errors.As(err, &re) && re.Code == ErrCodeExplicitFormMissing
}

// IsNoFormResolved reports whether err is an exhausted fallback chain.
func IsNoFormResolved(err error) bool {
	var re *ResolveError
	return errors.As(err, &re) && re.Code == ErrCodeNoFormResolved
}

// Resolve determines the checklist template applicable to an order.
//
// Resolution order (first hit wins):
//  1. explicit non-default form reference on the order
//  2. activation rule for (service type, exact equipment family)
//  3. activation rule for (service type, wildcard family)
//  4. soft match on active template titles / declared service types
//
// Pure read over the rule store; no side effects.
func Resolve(order model.ServiceOrder, rs *RuleStore) (Resolution, error) {
	// Step 1: explicit reference bypasses rule search entirely.
	if order.FormID != "" && order.FormID != DefaultFormID {
		if t := rs.TemplateByID(order.FormID); t != nil {
			return Resolution{Template: t, Step: StepExplicit}, nil
		}
		return Resolution{}, &ResolveError{
			Code:   ErrCodeExplicitFormMissing,
			FormID: order.FormID,
		}
	}

	// Step 2: compute equipment family and effective service type.
	family := ""
	if equip := rs.EquipmentForOrder(order); equip != nil {
		family = equip.Family
	}
	st, strategy, tried := matchServiceType(order.OperationType, rs.ServiceTypes)

	if st != nil {
		// Step 3: rules with the exact family, then the wildcard fallback.
		if r := findRule(rs.Rules, st.ID, family, order); r != nil {
			return Resolution{
				Template:        rs.TemplateByID(r.FormTemplateID),
				Step:            StepRule,
				ServiceType:     st,
				TypeStrategy:    strategy,
				EquipmentFamily: family,
			}, nil
		}
		if r := findWildcardRule(rs.Rules, st.ID); r != nil {
			return Resolution{
				Template:        rs.TemplateByID(r.FormTemplateID),
				Step:            StepWildcard,
				ServiceType:     st,
				TypeStrategy:    strategy,
				EquipmentFamily: family,
			}, nil
		}
	}

	// Step 4: soft match against active templates.
	if t := softMatchTemplate(order.OperationType, rs.Templates); t != nil {
		return Resolution{
			Template:        t,
			Step:            StepSoftMatch,
			ServiceType:     st,
			TypeStrategy:    strategy,
			EquipmentFamily: family,
		}, nil
	}

	// Step 5: unresolved. Hand back everything we learned along the way.
	candidates := make([]string, 0, len(rs.ServiceTypes))
	for _, s := range rs.ServiceTypes {
		candidates = append(candidates, s.Name)
	}
	return Resolution{}, &ResolveError{
		Code: ErrCodeNoFormResolved,
		Diagnostics: Diagnostics{
			CandidateServiceTypes: candidates,
			EquipmentFamily:       family,
			StrategiesTried:       tried,
		},
	}
}

// findRule searches non-wildcard rules for the service type. With a known
// family the rule family must match it; with no known family the legacy
// fallback matches the rule family against the order's title or equipment
// name text.
func findRule(rules []model.ActivationRule, serviceTypeID, family string, order model.ServiceOrder) *model.ActivationRule {
	for i := range rules {
		r := &rules[i]
		if r.ServiceTypeID != serviceTypeID || r.Wildcard() {
			continue
		}
		if family != "" {
			if familyMatches(family, r.EquipmentFamily) {
				return r
			}
			continue
		}
		rf := foldName(r.EquipmentFamily)
		if strings.Contains(foldName(order.Title), rf) ||
			strings.Contains(foldName(order.EquipmentName), rf) {
			return r
		}
	}
	return nil
}

func findWildcardRule(rules []model.ActivationRule, serviceTypeID string) *model.ActivationRule {
	for i := range rules {
		if rules[i].ServiceTypeID == serviceTypeID && rules[i].Wildcard() {
			return &rules[i]
		}
	}
	return nil
}

// softMatchTemplate is the last resort: any active template whose title or
// declared service-type list contains the order's operation type.
func softMatchTemplate(operationType string, templates []model.FormTemplate) *model.FormTemplate {
	op := foldName(operationType)
	if op == "" {
		return nil
	}
	for i := range templates {
		t := &templates[i]
		if !t.Active {
			continue
		}
		if strings.Contains(foldName(t.Title), op) {
			return t
		}
		for _, name := range t.ServiceTypes {
			if foldName(name) == op {
				return t
			}
		}
	}
	return nil
}
