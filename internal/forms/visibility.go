package forms

import (
	"strings"

	"fieldflow/internal/model"
)

// Visible reports whether a field is currently shown given the answers so
// far. A field with no condition is always visible. A conditioned field is
// visible iff the source field's answer compares equal (or, for
// not_equals, unequal) to the expected value after trimming.
//
// The computation is pure: same template and answers always yield the same
// visible set, so evaluating at save time and again at load time agrees.
func Visible(field model.FormField, tmpl *model.FormTemplate, answers model.FormData) bool {
	cond := field.Condition
	if cond == nil {
		return true
	}

	actual, ok := answers.StringValue(cond.SourceFieldID)
	if !ok {
		// Legacy records keyed answers by label rather than field id.
		if src := tmpl.FieldByID(cond.SourceFieldID); src != nil {
			actual, ok = answers.StringValue(src.Label)
		}
	}
	if !ok {
		actual = ""
	}

	expected := strings.TrimSpace(cond.ExpectedValue)
	if cond.Operator == model.OpNotEquals {
		return actual != expected
	}
	return actual == expected
}

// VisibleFields returns the ordered subset of template fields currently
// visible given the answers.
func VisibleFields(tmpl *model.FormTemplate, answers model.FormData) []model.FormField {
	out := make([]model.FormField, 0, len(tmpl.Fields))
	for _, f := range tmpl.Fields {
		if Visible(f, tmpl, answers) {
			out = append(out, f)
		}
	}
	return out
}

// MissingRequired returns the required fields that are visible and
// unanswered. A required field hidden by an unmet condition never blocks
// submission. A nil template has nothing to require.
func MissingRequired(tmpl *model.FormTemplate, answers model.FormData) []model.FormField {
	if tmpl == nil {
		return nil
	}
	var missing []model.FormField
	for _, f := range tmpl.Fields {
		if !f.Required || !Visible(f, tmpl, answers) {
			continue
		}
		if answers.Answered(f.ID) || answers.Answered(f.Label) {
			continue
		}
		missing = append(missing, f)
	}
	return missing
}
