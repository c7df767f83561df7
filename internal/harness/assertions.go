package harness

// evaluateAssertions checks every scenario assertion against the run
// result, appending one failure message per violated assertion.
func evaluateAssertions(result *Result, assertions []Assertion) {
	for i, a := range assertions {
		switch a.Type {
		case AssertFinalStatus:
			if string(result.FinalOrder.Status) != a.Status {
				result.failf("assertions[%d] final_status: expected %s, got %s",
					i, a.Status, result.FinalOrder.Status)
			}

		case AssertTimelineCount:
			if len(result.Timeline) != a.Count {
				result.failf("assertions[%d] timeline_count: expected %d events, got %d",
					i, a.Count, len(result.Timeline))
			}

		case AssertTimelineOrder:
			if len(result.Timeline) != len(a.Events) {
				result.failf("assertions[%d] timeline_order: expected %d events, got %d",
					i, len(a.Events), len(result.Timeline))
				continue
			}
			for j, want := range a.Events {
				if string(result.Timeline[j].Type) != want {
					result.failf("assertions[%d] timeline_order: event %d is %s, expected %s",
						i, j, result.Timeline[j].Type, want)
				}
			}

		case AssertEventDetail:
			if a.Index < 0 || a.Index >= len(result.Timeline) {
				result.failf("assertions[%d] event_detail: index %d out of range (%d events)",
					i, a.Index, len(result.Timeline))
				continue
			}
			got, ok := result.Timeline[a.Index].Details[a.Key]
			if !ok {
				result.failf("assertions[%d] event_detail: event %d has no detail %q",
					i, a.Index, a.Key)
				continue
			}
			if got != a.Value {
				result.failf("assertions[%d] event_detail: event %d detail %q is %q, expected %q",
					i, a.Index, a.Key, got, a.Value)
			}
		}
	}
}
