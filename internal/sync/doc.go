// Package sync implements the technician client's synchronization
// controller.
//
// The controller owns the local cache of orders, pagination and filter
// state, connectivity and session flags, and reconciles optimistic local
// mutations with the remote source of truth. The UI reads snapshots and
// never mutates controller state directly.
//
// Out-of-band activity is limited to three kinds:
//   - background fetches for RefreshOrders (results discarded when stale)
//   - a single outbox flush loop that drains pending status writes in
//     FIFO order, which serializes outbound writes per order id
//   - a location-reporting loop running for the lifetime of an
//     authenticated technician session, cancellable synchronously
//
// Background failures are reported through the Notifications side channel
// rather than returned to UI code, since the triggering call has already
// returned via the optimistic path.
package sync
