package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"fieldflow/internal/model"
	"fieldflow/internal/timeline"
)

// SaveSession stores the authenticated user, replacing any previous row.
func (s *Store) SaveSession(ctx context.Context, user model.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (id, user_id, name, email, role, saved_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			name    = excluded.name,
			email   = excluded.email,
			role    = excluded.role,
			saved_at = excluded.saved_at
	`, user.ID, user.Name, user.Email, user.Role, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ClearSession removes the stored session without touching the cache.
// Used when credentials expire but cached orders should keep rendering.
func (s *Store) ClearSession(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM session"); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// ReplaceOrders swaps the cached order page for a fresh snapshot.
// All-or-nothing: on any failure the previous snapshot stays intact.
func (s *Store) ReplaceOrders(ctx context.Context, orders []model.ServiceOrder, meta CacheMeta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace orders: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, "DELETE FROM order_cache"); err != nil {
		return fmt.Errorf("replace orders: clear cache: %w", err)
	}

	now := time.Now().UnixMilli()
	for i, o := range orders {
		payload, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("replace orders: marshal %s: %w", o.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_cache (order_id, payload, position, updated_at)
			VALUES (?, ?, ?, ?)
		`, o.ID, string(payload), i, now); err != nil {
			return fmt.Errorf("replace orders: insert %s: %w", o.ID, err)
		}
	}

	if err := writeCacheMeta(ctx, tx, meta); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace orders: commit: %w", err)
	}
	return nil
}

// UpsertOrder writes a single order back into the cache, keeping its
// position when it already exists (optimistic updates must not reshuffle
// the page the technician is looking at).
func (s *Store) UpsertOrder(ctx context.Context, o model.ServiceOrder) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("upsert order %s: marshal: %w", o.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO order_cache (order_id, payload, position, updated_at)
		VALUES (?, ?, COALESCE((SELECT MAX(position) + 1 FROM order_cache), 0), ?)
		ON CONFLICT(order_id) DO UPDATE SET
			payload    = excluded.payload,
			updated_at = excluded.updated_at
	`, o.ID, string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", o.ID, err)
	}
	return nil
}

func writeCacheMeta(ctx context.Context, tx *sql.Tx, meta CacheMeta) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cache_meta (id, page, page_size, total, status_filter, start_date, end_date, last_sync)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			page          = excluded.page,
			page_size     = excluded.page_size,
			total         = excluded.total,
			status_filter = excluded.status_filter,
			start_date    = excluded.start_date,
			end_date      = excluded.end_date,
			last_sync     = excluded.last_sync
	`, meta.Page, meta.PageSize, meta.Total,
		string(meta.StatusFilter), meta.StartDate, meta.EndDate,
		meta.LastSync.UnixMilli())
	if err != nil {
		return fmt.Errorf("write cache meta: %w", err)
	}
	return nil
}

// SaveRuleSnapshot stores the form-resolution inputs, replacing any
// previous snapshot.
func (s *Store) SaveRuleSnapshot(ctx context.Context, snap RuleSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("save rule snapshot: marshal: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rule_snapshot (id, payload, saved_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload  = excluded.payload,
			saved_at = excluded.saved_at
	`, string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save rule snapshot: %w", err)
	}
	return nil
}

// AppendEvent inserts a timeline event. Idempotent via ON CONFLICT(id)
// DO NOTHING: replaying an optimistic write after a crash cannot
// duplicate audit records. Events are never updated or deleted.
func (s *Store) AppendEvent(ctx context.Context, ev timeline.Event) error {
	details, err := json.Marshal(ev.Details)
	if err != nil {
		return fmt.Errorf("append event %s: marshal details: %w", ev.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO timeline_events (id, order_id, event_type, actor, seq, at, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, ev.ID, ev.OrderID, string(ev.Type), ev.Actor, ev.Seq, ev.At.UnixMilli(), string(details))
	if err != nil {
		return fmt.Errorf("append event %s: %w", ev.ID, err)
	}
	return nil
}

// EnqueueWrite appends a pending status write to the outbox.
// Rows are drained in insertion order, which serializes outbound writes.
func (s *Store) EnqueueWrite(ctx context.Context, w PendingWrite) (int64, error) {
	var formData string
	if w.FormData != nil {
		raw, err := json.Marshal(w.FormData)
		if err != nil {
			return 0, fmt.Errorf("enqueue write %s: marshal form data: %w", w.OrderID, err)
		}
		formData = string(raw)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO outbox (order_id, status, notes, form_data, enqueued_at)
		VALUES (?, ?, ?, ?, ?)
	`, w.OrderID, string(w.Status), w.Notes, formData, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("enqueue write %s: %w", w.OrderID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue write %s: last insert id: %w", w.OrderID, err)
	}
	return id, nil
}

// MarkWriteDone removes a flushed outbox row.
func (s *Store) MarkWriteDone(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM outbox WHERE id = ?", id); err != nil {
		return fmt.Errorf("mark write done %d: %w", id, err)
	}
	return nil
}

// BumpWriteAttempts increments the attempt counter of an outbox row that
// failed with a retryable error and stays queued.
func (s *Store) BumpWriteAttempts(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE outbox SET attempts = attempts + 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("bump write attempts %d: %w", id, err)
	}
	return nil
}
