package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fieldflow/internal/harness"
)

// ScenarioResult is the JSON payload of a scenario run.
type ScenarioResult struct {
	Scenario    string                `json:"scenario"`
	Passed      bool                  `json:"passed"`
	FinalStatus string                `json:"final_status"`
	Steps       []harness.StepOutcome `json:"steps"`
	Failures    []string              `json:"failures,omitempty"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenario <scenario.yaml>",
		Short: "Run a lifecycle scenario",
		Long: `Execute a declarative lifecycle scenario against the state machine and
print the resulting timeline. Exits non-zero when an expectation or
assertion fails.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}
			return runScenario(formatter, args[0])
		},
	}
}

func runScenario(formatter *OutputFormatter, path string) error {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}

	payload := ScenarioResult{
		Scenario:    scenario.Name,
		Passed:      result.Passed(),
		FinalStatus: string(result.FinalOrder.Status),
		Steps:       result.Steps,
		Failures:    result.Failures,
	}

	if formatter.Format == "json" {
		if err := formatter.JSON(payload); err != nil {
			return err
		}
	} else {
		printScenarioText(formatter, payload, result)
	}

	if !result.Passed() {
		return NewExitError(ExitFailure,
			fmt.Sprintf("scenario %s failed with %d failure(s)", scenario.Name, len(result.Failures)))
	}
	return nil
}

func printScenarioText(formatter *OutputFormatter, payload ScenarioResult, result *harness.Result) {
	w := formatter.Writer
	fmt.Fprintf(w, "scenario: %s\n", payload.Scenario)
	for i, step := range payload.Steps {
		if step.Error != "" {
			fmt.Fprintf(w, "  %d. %s -> rejected (%s)\n", i+1, step.Event, step.Error)
			continue
		}
		fmt.Fprintf(w, "  %d. %s -> %s\n", i+1, step.Event, step.Status)
	}
	fmt.Fprintln(w, "timeline:")
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "  seq=%d %s actor=%s\n", ev.Seq, ev.Type, ev.Actor)
	}
	if payload.Passed {
		fmt.Fprintf(w, "✓ %s passed\n", payload.Scenario)
		return
	}
	fmt.Fprintf(w, "✗ %s failed\n", payload.Scenario)
	for _, f := range payload.Failures {
		fmt.Fprintf(w, "  %s\n", f)
	}
}
