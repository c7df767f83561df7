package cli

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/spf13/cobra"
)

//go:embed schema.cue
var packSchema string

// PackIssue is one validation finding in a rule pack.
type PackIssue struct {
	Path    string `json:"path,omitempty"` // dotted CUE path or file position
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool        `json:"valid"`
	Issues []PackIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <rule-pack.yaml>",
		Short: "Validate a rule pack",
		Long: `Validate a back-office rule pack before distribution.

Checks the YAML against the embedded schema (field names, types, enum
values), then cross references: rules must point at existing templates
and service types, and a service type may declare at most one wildcard
rule.`,
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
			return runValidate(formatter, args[0])
		},
	}
}

func runValidate(formatter *OutputFormatter, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if formatter.Format == "json" {
			_ = formatter.JSONError("E_READ", err.Error(), nil)
		} else {
			fmt.Fprintf(formatter.Writer, "error: %v\n", err)
		}
		return NewExitError(ExitCommandError, err.Error())
	}

	issues := validateSchema(path, data)
	formatter.VerboseLog("schema check: %d issue(s)", len(issues))

	// Referential checks only make sense on a structurally valid pack.
	if len(issues) == 0 {
		if _, _, err := LoadRulePack(path); err != nil {
			issues = append(issues, PackIssue{Message: err.Error()})
		}
	}

	if len(issues) > 0 {
		return outputIssues(formatter, issues)
	}

	if formatter.Format == "json" {
		return formatter.JSON(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ rule pack valid")
	return nil
}

// validateSchema unifies the pack with the embedded CUE schema and
// collects every violation with its position.
func validateSchema(path string, data []byte) []PackIssue {
	ctx := cuecontext.New()

	schema := ctx.CompileString(packSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return []PackIssue{{Path: "schema.cue", Message: err.Error()}}
	}

	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return []PackIssue{{Message: fmt.Sprintf("parse YAML: %v", err)}}
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return []PackIssue{{Message: fmt.Sprintf("build document: %v", err)}}
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var issues []PackIssue
		for _, e := range cueerrors.Errors(err) {
			issue := PackIssue{Message: e.Error()}
			if p := e.Path(); len(p) > 0 {
				issue.Path = strings.Join(p, ".")
			}
			issues = append(issues, issue)
		}
		return issues
	}
	return nil
}

func outputIssues(formatter *OutputFormatter, issues []PackIssue) error {
	if formatter.Format == "json" {
		_ = formatter.JSONError("E_INVALID", "rule pack validation failed", ValidationResult{
			Valid:  false,
			Issues: issues,
		})
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ rule pack invalid")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.Path != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", issue.Path, issue.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s\n", issue.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
}
