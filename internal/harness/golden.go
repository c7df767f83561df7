package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"fieldflow/internal/model"
)

// traceSnapshot is the serialized form compared against golden files.
// Event timestamps are deterministic (pinned clock) but excluded anyway;
// seq is the ordering contract, not wall time.
type traceSnapshot struct {
	Scenario    string            `json:"scenario"`
	FinalStatus model.OrderStatus `json:"final_status"`
	Steps       []StepOutcome     `json:"steps"`
	Trace       []traceEvent      `json:"trace"`
}

type traceEvent struct {
	ID      string            `json:"id"`
	Seq     int64             `json:"seq"`
	Type    string            `json:"type"`
	Actor   string            `json:"actor,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) *Result {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("run scenario %s: %v", scenario.Name, err)
	}
	for _, f := range result.Failures {
		t.Errorf("scenario %s: %s", scenario.Name, f)
	}

	snapshot := traceSnapshot{
		Scenario:    scenario.Name,
		FinalStatus: result.FinalOrder.Status,
		Steps:       result.Steps,
	}
	for _, ev := range result.Timeline {
		snapshot.Trace = append(snapshot.Trace, traceEvent{
			ID:      ev.ID,
			Seq:     ev.Seq,
			Type:    string(ev.Type),
			Actor:   ev.Actor,
			Details: ev.Details,
		})
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshal trace snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result
}
