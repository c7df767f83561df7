package forms

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"fieldflow/internal/model"
)

// foldName normalizes a service-type name for comparison: trim, NFC
// normalize (composed form), then Unicode case folding. Accented names
// like "Manutenção" must compare equal across composition forms and case.
func foldName(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// serviceTypeMatcher is one strategy for matching an order's free-text
// operation type against a known service type. Matchers are tried in
// declaration order; the first hit wins.
type serviceTypeMatcher struct {
	name  string
	match func(operationType string, st model.ServiceType) bool
}

// serviceTypeMatchers is the ordered fallback chain, safest first.
//
// The substring matcher is known to produce false positives when one
// service-type name is a short substring of another; it is kept last so
// every exact strategy wins before it gets a chance.
var serviceTypeMatchers = []serviceTypeMatcher{
	{
		name: "exact-id",
		match: func(op string, st model.ServiceType) bool {
			return op != "" && op == st.ID
		},
	},
	{
		name: "exact-name",
		match: func(op string, st model.ServiceType) bool {
			return strings.TrimSpace(op) != "" && strings.TrimSpace(op) == strings.TrimSpace(st.Name)
		},
	},
	{
		name: "folded-name",
		match: func(op string, st model.ServiceType) bool {
			f := foldName(op)
			return f != "" && f == foldName(st.Name)
		},
	},
	{
		name: "substring",
		match: func(op string, st model.ServiceType) bool {
			f, fst := foldName(op), foldName(st.Name)
			if f == "" || fst == "" {
				return false
			}
			return strings.Contains(f, fst) || strings.Contains(fst, f)
		},
	},
}

// matchServiceType resolves the order's effective service type.
// Returns the matched type, the name of the strategy that matched, and the
// list of strategies tried (for failure diagnostics).
func matchServiceType(operationType string, types []model.ServiceType) (*model.ServiceType, string, []string) {
	tried := make([]string, 0, len(serviceTypeMatchers))
	for _, m := range serviceTypeMatchers {
		tried = append(tried, m.name)
		for i := range types {
			if m.match(operationType, types[i]) {
				return &types[i], m.name, tried
			}
		}
	}
	return nil, "", tried
}

// familyMatches compares a computed equipment family against a rule's
// family, case-insensitively. Exact or containment, mirroring how the
// back office categorizes families ("Elétrica" vs "Elétrica Industrial").
func familyMatches(computed, ruleFamily string) bool {
	cf, rf := foldName(computed), foldName(ruleFamily)
	if cf == "" || rf == "" {
		return false
	}
	return cf == rf || strings.Contains(cf, rf)
}
