// Package harness runs declarative lifecycle conformance scenarios.
//
// A scenario describes an initial order, a sequence of lifecycle events,
// and assertions over the final order and its timeline. Scenarios run
// against the real state machine and a fresh in-memory store, with a
// deterministic clock, id generator, and wall clock so reruns produce
// byte-identical traces for golden comparison.
package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldflow/internal/lifecycle"
	"fieldflow/internal/model"
	"fieldflow/internal/store"
	"fieldflow/internal/testutil"
	"fieldflow/internal/timeline"
)

// StepOutcome records how one step resolved.
type StepOutcome struct {
	Event string `json:"event"`
	// Error is "" on success, otherwise "illegal_transition" or
	// "validation".
	Error string `json:"error,omitempty"`
	// Status is the order status after the step.
	Status model.OrderStatus `json:"status"`
}

// Result is the outcome of a scenario run.
type Result struct {
	FinalOrder model.ServiceOrder
	Timeline   []timeline.Event
	Steps      []StepOutcome

	// Failures lists every expectation or assertion that did not hold.
	Failures []string
}

// Passed reports whether the run met every expectation and assertion.
func (r *Result) Passed() bool { return len(r.Failures) == 0 }

func (r *Result) failf(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// seqIDs hands out ev-0001, ev-0002, ... for deterministic traces.
type seqIDs struct{ n int }

func (g *seqIDs) NewID() string {
	g.n++
	return fmt.Sprintf("ev-%04d", g.n)
}

// scriptedPositioner returns the scenario's fixed position, or always
// fails when the scenario scripts a capture failure.
type scriptedPositioner struct {
	pos  model.Geostamp
	fail bool
}

func (p scriptedPositioner) CurrentPosition(ctx context.Context) (model.Geostamp, error) {
	if p.fail {
		return model.Geostamp{}, errors.New("position unavailable")
	}
	return p.pos, nil
}

// Run executes a scenario against a fresh in-memory store and returns
// the result. Expectation mismatches land in Result.Failures; only
// infrastructure problems return an error.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory store: %w", err)
	}
	defer st.Close()

	order := scenario.Order.toModel()
	tmpl := scenario.Template.toModel()
	if tmpl != nil {
		if err := tmpl.Validate(); err != nil {
			return nil, fmt.Errorf("scenario template: %w", err)
		}
	}

	var pos lifecycle.Positioner
	if scenario.Position != nil {
		pos = scriptedPositioner{
			pos: model.Geostamp{
				Lat:        scenario.Position.Lat,
				Lng:        scenario.Position.Lng,
				CapturedAt: testutil.BaseTime,
			},
			fail: scenario.Position.Fail,
		}
	}

	machine := lifecycle.NewMachine(
		timeline.NewClock(),
		&seqIDs{},
		pos,
		lifecycle.WithNow(testutil.SteppedNow(testutil.BaseTime, time.Minute)),
	)

	ctx := context.Background()
	result := &Result{}

	for i, step := range scenario.Steps {
		cmd := lifecycle.Command{
			Event:    lifecycle.EventKind(step.Event),
			Actor:    step.Actor,
			Reason:   step.Reason,
			SignedBy: step.SignedBy,
			Notes:    step.Notes,
		}
		if step.Signature != "" {
			cmd.Signature = []byte(step.Signature)
		}
		if len(step.Answers) > 0 {
			cmd.FormData = textAnswers(step.Answers)
		}

		outcome, err := machine.Apply(ctx, order, cmd, tmpl)
		kind := errorKind(err)
		if err != nil && kind == "" {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Event, err)
		}

		checkExpect(result, i, step, kind, outcome)

		if err == nil {
			order = outcome.Order
			if err := st.AppendEvent(ctx, outcome.Event); err != nil {
				return nil, fmt.Errorf("steps[%d] %s: append event: %w", i, step.Event, err)
			}
		}
		result.Steps = append(result.Steps, StepOutcome{
			Event:  step.Event,
			Error:  kind,
			Status: order.Status,
		})
	}

	result.FinalOrder = order
	result.Timeline, err = st.EventsForOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}

	evaluateAssertions(result, scenario.Assertions)
	return result, nil
}

func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case lifecycle.IsIllegalTransition(err):
		return ExpectIllegalTransition
	case lifecycle.IsValidationError(err):
		return ExpectValidation
	default:
		return ""
	}
}

func checkExpect(result *Result, i int, step Step, kind string, outcome lifecycle.Outcome) {
	switch {
	case step.Expect == nil:
		if kind != "" {
			result.failf("steps[%d] %s: unexpected %s", i, step.Event, kind)
		}
	case step.Expect.Error != "":
		if kind != step.Expect.Error {
			result.failf("steps[%d] %s: expected %s, got %q", i, step.Event, step.Expect.Error, kind)
		}
	default:
		if kind != "" {
			result.failf("steps[%d] %s: expected status %s, got %s", i, step.Event, step.Expect.Status, kind)
		} else if string(outcome.Order.Status) != step.Expect.Status {
			result.failf("steps[%d] %s: expected status %s, got %s",
				i, step.Event, step.Expect.Status, outcome.Order.Status)
		}
	}
}
