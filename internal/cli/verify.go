package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gbproject/normgraph/internal/entities"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <document>",
		Short: "Check that a document survives a normalize round trip",
		Long: `Normalize a document, rebuild it, and normalize the rebuilt copy.

Reports whether the rebuilt document equals the input, whether the second
normalization reproduces the first, and whether every stored reference
resolves. Exits 1 when any check fails and 2 when the document cannot be
normalized at all.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runVerify(opts *RootOptions, path string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.flushMetrics()
	formatter := s.formatter

	doc, err := LoadDocument(path, cmd.InOrStdin())
	if err != nil {
		return failLoad(formatter, err)
	}

	report, err := s.engine.Verify(doc)
	if err != nil {
		return formatter.FailEngine(err)
	}

	if report.OK() {
		return outputVerifySuccess(formatter, report)
	}
	return outputVerifyFailure(formatter, report)
}

func outputVerifySuccess(formatter *OutputFormatter, report *entities.Report) error {
	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	fmt.Fprintln(formatter.Writer, "✓ Round trip reproduces the document")
	fmt.Fprintln(formatter.Writer, "✓ Normalization is idempotent")
	fmt.Fprintln(formatter.Writer, "✓ Every reference resolves")
	fmt.Fprintf(formatter.Writer, "\nDigest: %s\n", report.Digest)
	return nil
}

func outputVerifyFailure(formatter *OutputFormatter, report *entities.Report) error {
	message := "verification failed"

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    ErrCodeVerifyFailed,
				Message: message,
			},
			Data: report, // Include the full report
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ErrCodeVerifyFailed, message))
	}

	fmt.Fprintln(formatter.Writer, "✗ Verification failed")
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "  %s round trip\n", mark(report.RoundTrip))
	fmt.Fprintf(formatter.Writer, "  %s idempotent\n", mark(report.Idempotent))
	fmt.Fprintf(formatter.Writer, "  %s references closed\n", mark(len(report.Violations) == 0))
	if len(report.Violations) > 0 {
		fmt.Fprintln(formatter.Writer)
		for _, v := range report.Violations {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", ErrCodeDanglingReference, v)
		}
	}

	// Verification failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ErrCodeVerifyFailed, message))
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
