// Package store provides SQLite-backed local persistence for the
// technician client.
//
// It holds everything the device needs to stay usable offline:
//   - session: the authenticated user (single row)
//   - order_cache: the last-known page of orders plus pagination metadata
//   - timeline_events: the append-only audit log (idempotent appends)
//   - outbox: pending status writes awaiting remote confirmation, FIFO
//
// Ordering of timeline events uses seq INTEGER (logical clock), never
// timestamps. Event appends are idempotent via ON CONFLICT(id) DO NOTHING
// so replaying an optimistic write after a crash cannot duplicate audit
// records.
//
// Database configuration:
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Reset() clears every table; it is called exactly once, at logout.
package store
