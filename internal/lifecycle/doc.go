// Package lifecycle implements the service-order state machine.
//
// The machine validates technician events against a declarative transition
// table, computes transition side data (geostamps, reasons, signature
// metadata), and emits exactly one timeline event per successful
// transition. Invalid events fail with IllegalTransition and perform no
// mutation: the caller must treat the order as unchanged.
//
// The machine itself holds no order state; Apply takes an order value and
// returns an updated copy, which keeps transitions all-or-nothing at the
// caller's cache layer.
package lifecycle
