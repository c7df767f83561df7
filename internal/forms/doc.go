// Package forms holds the rule store and the form resolver.
//
// The rule store is an immutable snapshot of service types, equipments,
// form templates, and activation rules, built either from a remote fetch
// or from a rule-pack file. The resolver is a pure read over that
// snapshot: given an order it walks an ordered fallback chain and returns
// the applicable checklist template, or a diagnosable failure.
//
// Service-type names are matched after NFC normalization and Unicode case
// folding, since dispatcher-entered names like "Manutenção" routinely
// differ from the catalog only in case or composition form.
package forms
