package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fieldflow/internal/store"
	"fieldflow/internal/timeline"
)

// TimelineResult is the JSON payload of a timeline read.
type TimelineResult struct {
	OrderID string           `json:"order_id"`
	Events  []timeline.Event `json:"events"`
}

// NewTimelineCommand creates the timeline command.
func NewTimelineCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "timeline <order-id>",
		Short: "Print an order's audit trail",
		Long: `Read an order's timeline from a local database and print it oldest
first. Useful for inspecting a device database pulled off a technician's
handset.`,
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
			return runTimeline(cmd, formatter, dbPath, args[0])
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "local database file (required)")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

func runTimeline(cmd *cobra.Command, formatter *OutputFormatter, dbPath, orderID string) error {
	db, err := store.Open(dbPath)
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}
	defer db.Close()

	events, err := db.EventsForOrder(cmd.Context(), orderID)
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}

	formatter.VerboseLog("read %d event(s) for order %s", len(events), orderID)

	if formatter.Format == "json" {
		return formatter.JSON(TimelineResult{OrderID: orderID, Events: events})
	}

	if len(events) == 0 {
		fmt.Fprintf(formatter.Writer, "no events for order %s\n", orderID)
		return nil
	}

	fmt.Fprintf(formatter.Writer, "order: %s\n", orderID)
	for _, ev := range events {
		fmt.Fprintf(formatter.Writer, "  seq=%d %s %s actor=%s",
			ev.Seq, ev.At.UTC().Format(time.RFC3339), ev.Type, ev.Actor)
		for _, key := range []string{
			timeline.DetailOldStatus, timeline.DetailNewStatus,
			timeline.DetailPauseReason, timeline.DetailImpedimentReason,
			timeline.DetailSignedBy, timeline.DetailGeoWarning,
			timeline.DetailAnswerCount,
		} {
			if v, ok := ev.Details[key]; ok {
				fmt.Fprintf(formatter.Writer, " %s=%q", key, v)
			}
		}
		fmt.Fprintln(formatter.Writer)
	}
	return nil
}
