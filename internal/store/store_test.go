package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldflow/internal/model"
	"fieldflow/internal/timeline"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "fieldflow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s := testStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fieldflow.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.SaveSession(context.Background(), model.User{ID: "u-1", Email: "a@b.c", Role: "TECHNICIAN"}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	user, ok, err := s2.LoadSession(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u-1", user.ID)
}

func TestSession_SaveLoadClear(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, ok, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "fresh store has no session")

	user := model.User{ID: "u-1", Name: "Maria", Email: "maria@example.com", Role: model.RoleTechnician}
	require.NoError(t, s.SaveSession(ctx, user))

	got, ok, err := s.LoadSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, user, got)

	// Replacing the session keeps a single row.
	other := model.User{ID: "u-2", Name: "João", Email: "joao@example.com", Role: model.RoleTechnician}
	require.NoError(t, s.SaveSession(ctx, other))
	got, ok, err = s.LoadSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u-2", got.ID)

	require.NoError(t, s.ClearSession(ctx))
	_, ok, err = s.LoadSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplaceOrders_SnapshotAndMeta(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	orders := []model.ServiceOrder{
		{ID: "ord-2", Title: "Segunda", Status: model.StatusAssigned},
		{ID: "ord-1", Title: "Primeira", Status: model.StatusPending},
	}
	meta := CacheMeta{Page: 2, PageSize: 5, Total: 12, StatusFilter: model.StatusPending,
		LastSync: time.UnixMilli(1748767200000)}
	require.NoError(t, s.ReplaceOrders(ctx, orders, meta))

	got, err := s.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ord-2", got[0].ID, "cached page keeps fetch order, not id order")
	assert.Equal(t, "ord-1", got[1].ID)

	gotMeta, ok, err := s.Meta(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, meta, gotMeta)

	// A new snapshot fully replaces the old one.
	require.NoError(t, s.ReplaceOrders(ctx, []model.ServiceOrder{{ID: "ord-9", Status: model.StatusAssigned}}, meta))
	got, err = s.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ord-9", got[0].ID)
}

func TestUpsertOrder_PreservesPosition(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	orders := []model.ServiceOrder{
		{ID: "ord-a", Status: model.StatusAssigned},
		{ID: "ord-b", Status: model.StatusPending},
	}
	require.NoError(t, s.ReplaceOrders(ctx, orders, CacheMeta{Page: 1, PageSize: 5, Total: 2}))

	// Updating the first order must not move it behind the second.
	updated := orders[0]
	updated.Status = model.StatusTraveling
	require.NoError(t, s.UpsertOrder(ctx, updated))

	got, err := s.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ord-a", got[0].ID)
	assert.Equal(t, model.StatusTraveling, got[0].Status)

	// Unknown orders append at the end.
	require.NoError(t, s.UpsertOrder(ctx, model.ServiceOrder{ID: "ord-c", Status: model.StatusPending}))
	got, err = s.Orders(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "ord-c", got[2].ID)
}

func TestAppendEvent_IdempotentAndOrdered(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	ev1 := timeline.Event{ID: "ev-1", OrderID: "ord-1", Type: timeline.EventStatusChanged,
		Actor: "tech-1", Seq: 1, At: time.UnixMilli(1000),
		Details: map[string]string{"old_status": "ASSIGNED", "new_status": "TRAVELING"}}
	ev2 := timeline.Event{ID: "ev-2", OrderID: "ord-1", Type: timeline.EventChecklistSaved,
		Actor: "tech-1", Seq: 2, At: time.UnixMilli(2000),
		Details: map[string]string{"answer_count": "3"}}

	// Insert out of order; replay ev1 to prove idempotency.
	require.NoError(t, s.AppendEvent(ctx, ev2))
	require.NoError(t, s.AppendEvent(ctx, ev1))
	require.NoError(t, s.AppendEvent(ctx, ev1))

	events, err := s.EventsForOrder(ctx, "ord-1")
	require.NoError(t, err)
	require.Len(t, events, 2, "duplicate append must not create a second row")
	assert.Equal(t, ev1, events[0])
	assert.Equal(t, ev2, events[1])

	seq, err := s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
}

func TestMaxSeq_EmptyStore(t *testing.T) {
	s := testStore(t)
	seq, err := s.MaxSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}

func TestOutbox_FIFO(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id1, err := s.EnqueueWrite(ctx, PendingWrite{OrderID: "ord-1", Status: model.StatusTraveling})
	require.NoError(t, err)
	_, err = s.EnqueueWrite(ctx, PendingWrite{OrderID: "ord-1", Status: model.StatusArrived})
	require.NoError(t, err)
	_, err = s.EnqueueWrite(ctx, PendingWrite{OrderID: "ord-2", Status: model.StatusTraveling,
		FormData: model.FormData{"f1": model.TextAnswer("ok")}})
	require.NoError(t, err)

	n, err := s.PendingWriteCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	head, ok, err := s.NextPendingWrite(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, id1, head.ID)
	assert.Equal(t, model.StatusTraveling, head.Status)

	require.NoError(t, s.MarkWriteDone(ctx, head.ID))

	head, ok, err = s.NextPendingWrite(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.StatusArrived, head.Status, "drain order is enqueue order")

	require.NoError(t, s.MarkWriteDone(ctx, head.ID))

	head, ok, err = s.NextPendingWrite(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ord-2", head.OrderID)
	assert.Equal(t, model.TextAnswer("ok"), head.FormData["f1"])
}

func TestOutbox_HasPendingWrite(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	queued, err := s.HasPendingWrite(ctx, "ord-1")
	require.NoError(t, err)
	assert.False(t, queued, "empty outbox has no pending writes")

	id1, err := s.EnqueueWrite(ctx, PendingWrite{OrderID: "ord-1", Status: model.StatusTraveling})
	require.NoError(t, err)
	_, err = s.EnqueueWrite(ctx, PendingWrite{OrderID: "ord-2", Status: model.StatusTraveling})
	require.NoError(t, err)
	_, err = s.EnqueueWrite(ctx, PendingWrite{OrderID: "ord-1", Status: model.StatusArrived})
	require.NoError(t, err)

	// ord-1 is found even when another order's write sits between its two.
	queued, err = s.HasPendingWrite(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, queued)

	require.NoError(t, s.MarkWriteDone(ctx, id1))
	queued, err = s.HasPendingWrite(ctx, "ord-1")
	require.NoError(t, err)
	assert.True(t, queued, "a non-head write still counts")

	queued, err = s.HasPendingWrite(ctx, "ord-3")
	require.NoError(t, err)
	assert.False(t, queued)
}

func TestRuleSnapshot_SaveLoad(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, ok, err := s.LoadRuleSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "fresh store has no snapshot")

	snap := RuleSnapshot{
		Types:      []model.ServiceType{{ID: "st-1", Name: "Manutenção"}},
		Equipments: []model.Equipment{{ID: "eq-1", SerialNumber: "SN-100", Family: "Chillers"}},
		Templates: []model.FormTemplate{{ID: "tpl-1", Title: "Checklist", Active: true,
			Fields: []model.FormField{{ID: "f-1", Label: "Pressão", Type: model.FieldText, Required: true}}}},
		Rules: []model.ActivationRule{{ID: "r-1", ServiceTypeID: "st-1", FormTemplateID: "tpl-1"}},
	}
	require.NoError(t, s.SaveRuleSnapshot(ctx, snap))

	got, ok, err := s.LoadRuleSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap, got)

	// Replacing keeps a single row.
	snap.Rules = nil
	require.NoError(t, s.SaveRuleSnapshot(ctx, snap))
	got, ok, err = s.LoadRuleSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.Rules)
	assert.Len(t, got.Templates, 1)
}

func TestOutbox_BumpAttempts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.EnqueueWrite(ctx, PendingWrite{OrderID: "ord-1", Status: model.StatusTraveling})
	require.NoError(t, err)

	require.NoError(t, s.BumpWriteAttempts(ctx, id))
	require.NoError(t, s.BumpWriteAttempts(ctx, id))

	head, ok, err := s.NextPendingWrite(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, head.Attempts)
}

func TestReset_ClearsEverything(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSession(ctx, model.User{ID: "u-1", Email: "a@b.c", Role: "TECHNICIAN"}))
	require.NoError(t, s.ReplaceOrders(ctx, []model.ServiceOrder{{ID: "ord-1", Status: model.StatusPending}},
		CacheMeta{Page: 1, PageSize: 5, Total: 1}))
	require.NoError(t, s.AppendEvent(ctx, timeline.Event{ID: "ev-1", OrderID: "ord-1",
		Type: timeline.EventStatusChanged, Seq: 1, At: time.UnixMilli(1000)}))
	_, err := s.EnqueueWrite(ctx, PendingWrite{OrderID: "ord-1", Status: model.StatusTraveling})
	require.NoError(t, err)
	require.NoError(t, s.SaveRuleSnapshot(ctx, RuleSnapshot{
		Types: []model.ServiceType{{ID: "st-1", Name: "Manutenção"}}}))

	require.NoError(t, s.Reset())

	_, ok, err := s.LoadSession(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	orders, err := s.Orders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, ok, err = s.Meta(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	events, err := s.EventsForOrder(ctx, "ord-1")
	require.NoError(t, err)
	assert.Empty(t, events)

	n, err := s.PendingWriteCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, ok, err = s.LoadRuleSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
