// Package model provides the core domain types for fieldflow.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal. This keeps the domain layer
// foundational with no circular dependencies.
//
// Key design constraints:
//   - OrderStatus is a closed set of string constants; Valid() guards decode
//   - Checklist answers are a tagged union (Answer) keyed by FormFieldType;
//     unknown field types are rejected at decode time, never passed through
//   - All JSON tags use snake_case
package model
