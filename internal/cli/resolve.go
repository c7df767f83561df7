package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fieldflow/internal/forms"
)

// ResolveResult is the JSON payload of a successful resolution.
type ResolveResult struct {
	FormID          string `json:"form_id"`
	FormTitle       string `json:"form_title"`
	Step            string `json:"step"`
	ServiceType     string `json:"service_type,omitempty"`
	TypeStrategy    string `json:"type_strategy,omitempty"`
	EquipmentFamily string `json:"equipment_family,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var orderPath string

	cmd := &cobra.Command{
		Use:   "resolve <rule-pack.yaml>",
		Short: "Dry-run form resolution for an order",
		Long: `Resolve the checklist template an order would receive, showing which
step of the fallback chain matched. On failure, prints the diagnostics a
technician's empty state would show.`,
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
			return runResolve(formatter, args[0], orderPath)
		},
	}

	cmd.Flags().StringVar(&orderPath, "order", "", "order YAML file (required)")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func runResolve(formatter *OutputFormatter, packPath, orderPath string) error {
	rs, _, err := LoadRulePack(packPath)
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}
	orderFile, err := LoadOrderFile(orderPath)
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}
	order := orderFile.ToOrder()

	formatter.VerboseLog("resolving order %s (operation %q, equipment %q)",
		order.ID, order.OperationType, order.EquipmentName)

	res, err := forms.Resolve(order, rs)
	if err != nil {
		return outputResolveFailure(formatter, err)
	}

	result := ResolveResult{
		FormID:          res.Template.ID,
		FormTitle:       res.Template.Title,
		Step:            string(res.Step),
		TypeStrategy:    res.TypeStrategy,
		EquipmentFamily: res.EquipmentFamily,
	}
	if res.ServiceType != nil {
		result.ServiceType = res.ServiceType.Name
	}

	if formatter.Format == "json" {
		return formatter.JSON(result)
	}

	fmt.Fprintf(formatter.Writer, "form: %s (%s)\n", result.FormID, result.FormTitle)
	fmt.Fprintf(formatter.Writer, "step: %s\n", result.Step)
	if result.ServiceType != "" {
		fmt.Fprintf(formatter.Writer, "service type: %s (%s)\n", result.ServiceType, result.TypeStrategy)
	}
	if result.EquipmentFamily != "" {
		fmt.Fprintf(formatter.Writer, "equipment family: %s\n", result.EquipmentFamily)
	}
	return nil
}

func outputResolveFailure(formatter *OutputFormatter, err error) error {
	var re *forms.ResolveError
	if !errors.As(err, &re) {
		return NewExitError(ExitCommandError, err.Error())
	}

	if formatter.Format == "json" {
		_ = formatter.JSONError(re.Code, re.Error(), re.Diagnostics)
		return NewExitError(ExitFailure, re.Error())
	}

	fmt.Fprintf(formatter.Writer, "✗ %s\n", re.Error())
	if forms.IsNoFormResolved(err) {
		d := re.Diagnostics
		if d.EquipmentFamily != "" {
			fmt.Fprintf(formatter.Writer, "  equipment family: %s\n", d.EquipmentFamily)
		}
		if len(d.StrategiesTried) > 0 {
			fmt.Fprintf(formatter.Writer, "  strategies tried: %v\n", d.StrategiesTried)
		}
		if len(d.CandidateServiceTypes) > 0 {
			fmt.Fprintf(formatter.Writer, "  known service types: %v\n", d.CandidateServiceTypes)
		}
	}
	return NewExitError(ExitFailure, re.Error())
}
