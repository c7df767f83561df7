// Package timeline provides the append-only audit log types for service
// orders.
//
// Events are immutable once written. Within an order they are strictly
// ordered by a monotonic logical sequence number (seq); wall-clock
// timestamps are carried for display only and never used for ordering,
// since device clocks on technician hardware drift.
package timeline
