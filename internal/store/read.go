package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fieldflow/internal/model"
	"fieldflow/internal/timeline"
)

// CacheMeta is the pagination and filter state of the cached order page.
type CacheMeta struct {
	Page         int
	PageSize     int
	Total        int
	StatusFilter model.OrderStatus
	StartDate    string
	EndDate      string
	LastSync     time.Time
}

// RuleSnapshot is the last set of form-resolution inputs fetched from the
// remote. Persisting it keeps resolution and completion checks working
// when the app restarts without connectivity.
type RuleSnapshot struct {
	Types      []model.ServiceType    `json:"types"`
	Equipments []model.Equipment      `json:"equipments"`
	Templates  []model.FormTemplate   `json:"templates"`
	Rules      []model.ActivationRule `json:"rules"`
}

// PendingWrite is one queued status write awaiting remote confirmation.
type PendingWrite struct {
	ID       int64
	OrderID  string
	Status   model.OrderStatus
	Notes    string
	FormData model.FormData
	Attempts int
}

// LoadSession returns the stored session, or ok=false if none.
func (s *Store) LoadSession(ctx context.Context) (model.User, bool, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, name, email, role FROM session WHERE id = 1
	`).Scan(&u.ID, &u.Name, &u.Email, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, fmt.Errorf("load session: %w", err)
	}
	return u, true, nil
}

// Orders returns the cached page in its stored position order.
func (s *Store) Orders(ctx context.Context) ([]model.ServiceOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM order_cache ORDER BY position ASC, order_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	defer rows.Close()

	var orders []model.ServiceOrder
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("read orders: scan: %w", err)
		}
		var o model.ServiceOrder
		if err := json.Unmarshal([]byte(payload), &o); err != nil {
			return nil, fmt.Errorf("read orders: unmarshal: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}
	return orders, nil
}

// Meta returns the cached pagination metadata, or ok=false if the cache
// has never been populated.
func (s *Store) Meta(ctx context.Context) (CacheMeta, bool, error) {
	var m CacheMeta
	var status string
	var lastSync int64
	err := s.db.QueryRowContext(ctx, `
		SELECT page, page_size, total, status_filter, start_date, end_date, last_sync
		FROM cache_meta WHERE id = 1
	`).Scan(&m.Page, &m.PageSize, &m.Total, &status, &m.StartDate, &m.EndDate, &lastSync)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheMeta{}, false, nil
	}
	if err != nil {
		return CacheMeta{}, false, fmt.Errorf("read cache meta: %w", err)
	}
	m.StatusFilter = model.OrderStatus(status)
	m.LastSync = time.UnixMilli(lastSync)
	return m, true, nil
}

// LoadRuleSnapshot returns the persisted form-resolution inputs, or
// ok=false when no snapshot has been saved yet.
func (s *Store) LoadRuleSnapshot(ctx context.Context) (RuleSnapshot, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM rule_snapshot WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return RuleSnapshot{}, false, nil
	}
	if err != nil {
		return RuleSnapshot{}, false, fmt.Errorf("load rule snapshot: %w", err)
	}
	var snap RuleSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return RuleSnapshot{}, false, fmt.Errorf("load rule snapshot: unmarshal: %w", err)
	}
	return snap, true, nil
}

// EventsForOrder returns an order's audit trail ordered by seq.
// Deterministic: ORDER BY seq ASC, id ASC.
func (s *Store) EventsForOrder(ctx context.Context, orderID string) ([]timeline.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, event_type, actor, seq, at, details
		FROM timeline_events
		WHERE order_id = ?
		ORDER BY seq ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("read events for %s: %w", orderID, err)
	}
	defer rows.Close()

	var events []timeline.Event
	for rows.Next() {
		var ev timeline.Event
		var typ, details string
		var at int64
		if err := rows.Scan(&ev.ID, &ev.OrderID, &typ, &ev.Actor, &ev.Seq, &at, &details); err != nil {
			return nil, fmt.Errorf("read events for %s: scan: %w", orderID, err)
		}
		ev.Type = timeline.EventType(typ)
		ev.At = time.UnixMilli(at)
		if details != "" && details != "null" {
			if err := json.Unmarshal([]byte(details), &ev.Details); err != nil {
				return nil, fmt.Errorf("read events for %s: unmarshal details: %w", orderID, err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events for %s: %w", orderID, err)
	}
	return events, nil
}

// MaxSeq returns the highest event seq persisted, so a restarted session
// can resume its logical clock without reusing sequence numbers.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM timeline_events").Scan(&seq); err != nil {
		return 0, fmt.Errorf("read max seq: %w", err)
	}
	return seq.Int64, nil
}

// NextPendingWrite returns the oldest queued write, or ok=false when the
// outbox is empty. FIFO over the whole outbox, which also serializes
// writes for any single order.
func (s *Store) NextPendingWrite(ctx context.Context) (PendingWrite, bool, error) {
	var w PendingWrite
	var status, formData string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, status, notes, form_data, attempts
		FROM outbox ORDER BY id ASC LIMIT 1
	`).Scan(&w.ID, &w.OrderID, &status, &w.Notes, &formData, &w.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingWrite{}, false, nil
	}
	if err != nil {
		return PendingWrite{}, false, fmt.Errorf("read pending write: %w", err)
	}
	w.Status = model.OrderStatus(status)
	if formData != "" {
		if err := json.Unmarshal([]byte(formData), &w.FormData); err != nil {
			return PendingWrite{}, false, fmt.Errorf("read pending write %d: unmarshal form data: %w", w.ID, err)
		}
	}
	return w, true, nil
}

// HasPendingWrite reports whether any queued write for the given order is
// still in the outbox, head or not.
func (s *Store) HasPendingWrite(ctx context.Context, orderID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM outbox WHERE order_id = ?)", orderID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check pending writes for %s: %w", orderID, err)
	}
	return n != 0, nil
}

// PendingWriteCount returns the number of queued writes.
func (s *Store) PendingWriteCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outbox").Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending writes: %w", err)
	}
	return n, nil
}
