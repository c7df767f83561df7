package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fieldflow/internal/model"
	"fieldflow/internal/store"
)

// flushRetries is how many extra attempts a connectivity failure gets
// within one drain pass before the pass stops and waits for the next wake.
const flushRetries = 1

// flushLoop drains the outbox whenever it is woken or on its idle tick.
// Being the only goroutine that touches the outbox head, it serializes
// all outbound status writes in enqueue order.
func (c *Controller) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.flushWake:
		case <-ticker.C:
		}
		c.drainOutbox(ctx)
	}
}

// drainOutbox pushes queued writes head-first until the outbox is empty
// or a failure stops the pass. Connectivity failures leave the head
// queued; the pass resumes when connectivity returns.
func (c *Controller) drainOutbox(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		w, ok, err := c.db.NextPendingWrite(ctx)
		if err != nil {
			slog.Error("read outbox head failed", "error", err)
			return
		}
		if !ok {
			return
		}

		canonical, err := c.pushWithRetry(ctx, w)
		if err == nil {
			if err := c.db.MarkWriteDone(ctx, w.ID); err != nil {
				slog.Error("dequeue flushed write failed", "write_id", w.ID, "error", err)
				return
			}
			c.setOnline(true)
			c.reconcile(ctx, canonical)
			flushesTotal.Inc()
			continue
		}

		flushFailuresTotal.WithLabelValues(string(classOf(err))).Inc()
		switch {
		case IsAuthExpired(err):
			c.forceLogout()
			return
		case IsConnectivity(err):
			if err := c.db.BumpWriteAttempts(ctx, w.ID); err != nil {
				slog.Error("bump write attempts failed", "write_id", w.ID, "error", err)
			}
			c.setOnline(false)
			return
		default:
			// The remote rejected this payload; retrying it would wedge
			// the queue behind a write that can never land.
			slog.Error("outbox write rejected",
				"write_id", w.ID,
				"order_id", w.OrderID,
				"status", w.Status,
				"error", err,
			)
			if err := c.db.MarkWriteDone(ctx, w.ID); err != nil {
				slog.Error("drop rejected write failed", "write_id", w.ID, "error", err)
				return
			}
			c.notify(LevelError, fmt.Sprintf("update for order %s was rejected by the server", w.OrderID))
		}
	}
}

func (c *Controller) pushWithRetry(ctx context.Context, w store.PendingWrite) (model.ServiceOrder, error) {
	update := StatusUpdate{
		OrderID:  w.OrderID,
		Status:   w.Status,
		Notes:    w.Notes,
		FormData: w.FormData,
	}

	var last error
	for attempt := 0; attempt <= flushRetries; attempt++ {
		rctx, cancel := context.WithTimeout(ctx, c.opts.requestTimeout)
		canonical, err := c.remote.UpdateOrderStatus(rctx, update)
		cancel()
		if err == nil {
			return canonical, nil
		}
		last = err
		if !IsConnectivity(err) {
			break
		}
	}
	return model.ServiceOrder{}, last
}

// reconcile folds the remote's canonical view of an order back into the
// cache, unless any local write for that order is still queued anywhere in
// the outbox (the optimistic state stays authoritative until the order's
// queue drains, even when writes for other orders sit at the head).
func (c *Controller) reconcile(ctx context.Context, canonical model.ServiceOrder) {
	queued, err := c.db.HasPendingWrite(ctx, canonical.ID)
	if err != nil {
		slog.Error("check queued writes failed", "order_id", canonical.ID, "error", err)
		return
	}
	if queued {
		return
	}

	if err := c.db.UpsertOrder(ctx, canonical); err != nil {
		slog.Error("reconcile order failed", "order_id", canonical.ID, "error", err)
		return
	}

	c.mu.Lock()
	for i := range c.orders {
		if c.orders[i].ID == canonical.ID {
			c.orders[i] = canonical
			break
		}
	}
	c.mu.Unlock()
}

// locationLoop samples the device position on a fixed cadence for the
// lifetime of a technician session and reports movement past the
// throttle thresholds. Sampling failures are logged, never surfaced.
func (c *Controller) locationLoop(ctx context.Context, technicianID string) {
	ticker := time.NewTicker(c.opts.locationInterval)
	defer ticker.Stop()

	var throttle locationThrottle

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pctx, cancel := context.WithTimeout(ctx, c.opts.geo.Timeout)
		pos, err := c.geo.CurrentPosition(pctx, c.opts.geo)
		cancel()
		if err != nil {
			slog.Debug("position sample failed", "error", err)
			continue
		}

		now := c.opts.now()
		if !throttle.shouldSend(pos, now) {
			continue
		}

		rctx, cancel := context.WithTimeout(ctx, c.opts.requestTimeout)
		err = c.remote.UpdateTechnicianLocation(rctx, technicianID, pos)
		cancel()
		if err != nil {
			slog.Warn("location report failed", "error", err)
			if IsConnectivity(err) {
				c.setOnline(false)
			}
			continue
		}
		locationReportsTotal.Inc()
	}
}
