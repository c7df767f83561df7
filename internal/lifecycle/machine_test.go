package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldflow/internal/model"
	"fieldflow/internal/timeline"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type stubPositioner struct {
	pos model.Geostamp
	err error
}

func (p stubPositioner) CurrentPosition(ctx context.Context) (model.Geostamp, error) {
	return p.pos, p.err
}

func newTestMachine(geo Positioner) *Machine {
	return NewMachine(
		timeline.NewClock(),
		timeline.NewFixedGenerator("ev-1", "ev-2", "ev-3", "ev-4", "ev-5", "ev-6", "ev-7", "ev-8"),
		geo,
		WithNow(func() time.Time { return testNow }),
	)
}

func testOrder(status model.OrderStatus) model.ServiceOrder {
	return model.ServiceOrder{ID: "ord-1", Title: "Troca de filtro", Status: status}
}

// legalPairs is the full transition table. Everything else must be an
// IllegalTransition.
var legalPairs = map[EventKind][]model.OrderStatus{
	EventStartTravel:   {model.StatusPending, model.StatusAssigned},
	EventArrive:        {model.StatusTraveling},
	EventStartService:  {model.StatusArrived},
	EventPause:         {model.StatusInProgress},
	EventResume:        {model.StatusPaused},
	EventFinish:        {model.StatusInProgress},
	EventCancel:        {model.StatusPending, model.StatusAssigned},
	EventEditChecklist: {model.StatusInProgress},
	EventBlock: {
		model.StatusPending, model.StatusAssigned, model.StatusTraveling,
		model.StatusArrived, model.StatusInProgress, model.StatusPaused,
	},
}

func isLegal(ev EventKind, from model.OrderStatus) bool {
	for _, s := range legalPairs[ev] {
		if s == from {
			return true
		}
	}
	return false
}

func validCommand(ev EventKind) Command {
	cmd := Command{Event: ev, Actor: "tech-1"}
	switch ev {
	case EventPause, EventBlock:
		cmd.Reason = "Aguardando peça"
	case EventFinish:
		cmd.Signature = []byte("sig")
		cmd.SignedBy = "Maria"
	case EventEditChecklist:
		cmd.FormData = model.FormData{"f1": model.TextAnswer("ok")}
	}
	return cmd
}

func TestMachine_TransitionTableSweep(t *testing.T) {
	ctx := context.Background()
	for _, status := range model.AllStatuses {
		for _, ev := range AllEvents {
			m := newTestMachine(nil)
			order := testOrder(status)
			outcome, err := m.Apply(ctx, order, validCommand(ev), nil)

			if isLegal(ev, status) {
				require.NoError(t, err, "(%s, %s) should be legal", status, ev)
				assert.NotEmpty(t, outcome.Event.ID)
			} else {
				require.Error(t, err, "(%s, %s) should be illegal", status, ev)
				assert.True(t, IsIllegalTransition(err), "(%s, %s): %v", status, ev, err)
				assert.Zero(t, outcome, "illegal transition must not produce an outcome")
			}
		}
	}
}

func TestMachine_IllegalTransitionNamesStateAndEvent(t *testing.T) {
	m := newTestMachine(nil)
	_, err := m.Apply(context.Background(), testOrder(model.StatusCompleted), Command{Event: EventStartTravel}, nil)

	var illegal *IllegalTransition
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, model.StatusCompleted, illegal.From)
	assert.Equal(t, EventStartTravel, illegal.Event)
}

func TestMachine_EveryTransitionEmitsOneEvent(t *testing.T) {
	m := newTestMachine(nil)
	ctx := context.Background()

	order := testOrder(model.StatusAssigned)
	var seqs []int64
	for _, ev := range []EventKind{EventStartTravel, EventArrive, EventStartService, EventFinish} {
		outcome, err := m.Apply(ctx, order, validCommand(ev), nil)
		require.NoError(t, err)
		seqs = append(seqs, outcome.Event.Seq)
		order = outcome.Order
	}

	assert.Equal(t, []int64{1, 2, 3, 4}, seqs, "seq is strictly increasing, one event per transition")
	assert.Equal(t, model.StatusCompleted, order.Status)
}

func TestMachine_StatusChangedDetails(t *testing.T) {
	m := newTestMachine(nil)
	outcome, err := m.Apply(context.Background(), testOrder(model.StatusAssigned),
		Command{Event: EventStartTravel, Actor: "tech-1"}, nil)
	require.NoError(t, err)

	assert.Equal(t, timeline.EventStatusChanged, outcome.Event.Type)
	assert.Equal(t, "ASSIGNED", outcome.Event.Details[timeline.DetailOldStatus])
	assert.Equal(t, "TRAVELING", outcome.Event.Details[timeline.DetailNewStatus])
	assert.Equal(t, "tech-1", outcome.Event.Actor)
	assert.Equal(t, testNow, outcome.Event.At)
}

func TestMachine_TravelCapturesGeostamp(t *testing.T) {
	pos := model.Geostamp{Lat: -23.55, Lng: -46.63, CapturedAt: testNow}
	m := newTestMachine(stubPositioner{pos: pos})

	outcome, err := m.Apply(context.Background(), testOrder(model.StatusAssigned),
		Command{Event: EventStartTravel}, nil)
	require.NoError(t, err)
	require.NotNil(t, outcome.Order.TravelLocation)
	assert.Equal(t, pos, *outcome.Order.TravelLocation)
	assert.NotContains(t, outcome.Event.Details, timeline.DetailGeoWarning)
}

func TestMachine_GeostampFailureNeverBlocks(t *testing.T) {
	m := newTestMachine(stubPositioner{err: errors.New("gps timeout")})

	outcome, err := m.Apply(context.Background(), testOrder(model.StatusTraveling),
		Command{Event: EventArrive}, nil)
	require.NoError(t, err, "a failed capture must not block the transition")
	assert.Nil(t, outcome.Order.CheckinLocation)
	assert.Equal(t, "gps timeout", outcome.Event.Details[timeline.DetailGeoWarning])
	assert.Equal(t, model.StatusArrived, outcome.Order.Status)
}

func TestMachine_PauseRequiresReason(t *testing.T) {
	m := newTestMachine(nil)
	_, err := m.Apply(context.Background(), testOrder(model.StatusInProgress),
		Command{Event: EventPause}, nil)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	outcome, err := m.Apply(context.Background(), testOrder(model.StatusInProgress),
		Command{Event: EventPause, Reason: "Chuva forte"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Chuva forte", outcome.Order.PauseReason)
	assert.Equal(t, "Chuva forte", outcome.Event.Details[timeline.DetailPauseReason])
}

func TestMachine_ResumeClearsPauseReason(t *testing.T) {
	m := newTestMachine(nil)
	order := testOrder(model.StatusPaused)
	order.PauseReason = "Chuva forte"

	outcome, err := m.Apply(context.Background(), order, Command{Event: EventResume}, nil)
	require.NoError(t, err)
	assert.Empty(t, outcome.Order.PauseReason)
}

func TestMachine_BlockRecordsImpediment(t *testing.T) {
	m := newTestMachine(nil)
	outcome, err := m.Apply(context.Background(), testOrder(model.StatusTraveling),
		Command{Event: EventBlock, Reason: "Cliente ausente"}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusBlocked, outcome.Order.Status)
	assert.Equal(t, "Cliente ausente", outcome.Order.ImpedimentReason)
	assert.Equal(t, "Cliente ausente", outcome.Event.Details[timeline.DetailImpedimentReason])
}

func TestMachine_FinishGuards(t *testing.T) {
	m := newTestMachine(nil)
	ctx := context.Background()
	order := testOrder(model.StatusInProgress)

	_, err := m.Apply(ctx, order, Command{Event: EventFinish, SignedBy: "Maria"}, nil)
	require.Error(t, err, "missing signature")
	assert.True(t, IsValidationError(err))

	_, err = m.Apply(ctx, order, Command{Event: EventFinish, Signature: []byte{}, SignedBy: "Maria"}, nil)
	require.Error(t, err, "empty signature")

	_, err = m.Apply(ctx, order, Command{Event: EventFinish, Signature: []byte("sig")}, nil)
	require.Error(t, err, "missing signer name")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "signed_by", verr.Field)
}

func TestMachine_FinishValidatesVisibleRequiredFields(t *testing.T) {
	tmpl := &model.FormTemplate{
		ID:     "tpl-1",
		Active: true,
		Fields: []model.FormField{
			{ID: "f-estado", Label: "Estado", Type: model.FieldSelect,
				Options: []string{"Bom", "Ruim"}, Required: true},
			{ID: "f-defeito", Label: "Defeito", Type: model.FieldText, Required: true,
				Condition: &model.FieldCondition{SourceFieldID: "f-estado", ExpectedValue: "Ruim"}},
		},
	}
	m := newTestMachine(nil)
	ctx := context.Background()
	order := testOrder(model.StatusInProgress)

	finish := Command{Event: EventFinish, Signature: []byte("sig"), SignedBy: "Maria"}

	_, err := m.Apply(ctx, order, finish, tmpl)
	require.Error(t, err, "required field unanswered")
	assert.True(t, IsValidationError(err))

	// Hidden required field must not block.
	finish.FormData = model.FormData{"f-estado": model.SelectAnswer("Bom")}
	outcome, err := m.Apply(ctx, order, finish, tmpl)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, outcome.Order.Status)

	// Visible required field still blocks.
	finish.FormData = model.FormData{"f-estado": model.SelectAnswer("Ruim")}
	_, err = m.Apply(ctx, order, finish, tmpl)
	require.Error(t, err)
}

func TestMachine_FinishDetailsExcludeSignatureBlob(t *testing.T) {
	m := newTestMachine(nil)
	outcome, err := m.Apply(context.Background(), testOrder(model.StatusInProgress),
		Command{Event: EventFinish, Signature: []byte("png-bytes"), SignedBy: "Maria"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []byte("png-bytes"), outcome.Order.Signature)
	assert.Equal(t, "Maria", outcome.Event.Details[timeline.DetailSignedBy])
	assert.Equal(t, "9", outcome.Event.Details[timeline.DetailSignatureBytes])
	for _, v := range outcome.Event.Details {
		assert.NotEqual(t, "png-bytes", v, "raw signature bytes never enter the audit log")
	}
}

func TestMachine_EditChecklistMergesAndStaysInProgress(t *testing.T) {
	m := newTestMachine(nil)
	order := testOrder(model.StatusInProgress)
	order.FormData = model.FormData{"f1": model.TextAnswer("old"), "f2": model.TextAnswer("keep")}

	outcome, err := m.Apply(context.Background(), order, Command{
		Event:    EventEditChecklist,
		FormData: model.FormData{"f1": model.TextAnswer("new"), "f3": model.TextAnswer("add")},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusInProgress, outcome.Order.Status)
	assert.Equal(t, timeline.EventChecklistSaved, outcome.Event.Type)
	assert.Equal(t, "2", outcome.Event.Details[timeline.DetailAnswerCount])
	assert.Equal(t, model.TextAnswer("new"), outcome.Order.FormData["f1"])
	assert.Equal(t, model.TextAnswer("keep"), outcome.Order.FormData["f2"])
	assert.Equal(t, model.TextAnswer("add"), outcome.Order.FormData["f3"])
}

func TestMachine_InputOrderNeverMutated(t *testing.T) {
	m := newTestMachine(nil)
	order := testOrder(model.StatusInProgress)
	order.FormData = model.FormData{"f1": model.TextAnswer("old")}

	_, err := m.Apply(context.Background(), order, Command{
		Event:    EventEditChecklist,
		FormData: model.FormData{"f1": model.TextAnswer("new")},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusInProgress, order.Status)
	assert.Equal(t, model.TextAnswer("old"), order.FormData["f1"])
}
