package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gbproject/normgraph/internal/entities"
	"github.com/gbproject/normgraph/internal/ir"
	"github.com/gbproject/normgraph/internal/schema"
)

// NormalizeOptions holds flags for the normalize command.
type NormalizeOptions struct {
	*RootOptions
	Output string // output file path
}

// NormalizeResult is the JSON payload of the normalize command.
type NormalizeResult struct {
	Digest     string                    `json:"digest"`
	Counts     map[schema.EntityType]int `json:"counts"`
	Output     string                    `json:"output,omitempty"`
	Normalized ir.Object                 `json:"normalized,omitempty"`
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NormalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "normalize <document>",
		Short: "Flatten a nested document into entity tables",
		Long: `Normalize a nested JSON or YAML project document.

Every scene, actor, trigger, event and leaf entity is moved into its type's
table and replaced by its id. The output is canonical JSON holding
"entities" (one table per type) and "result" (the root with id lists).
Use "-" to read the document from stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runNormalize(opts *NormalizeOptions, path string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.flushMetrics()
	formatter := s.formatter

	doc, err := LoadDocument(path, cmd.InOrStdin())
	if err != nil {
		return failLoad(formatter, err)
	}
	formatter.VerboseLog("Loaded document %s", path)

	n, err := s.engine.Normalize(doc)
	if err != nil {
		return formatter.FailEngine(err)
	}

	digest, err := n.Digest()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	canonical, err := ir.MarshalCanonical(n.Value())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	if opts.Output != "" {
		if err := writeOutput(opts.Output, cmd.OutOrStdout(), canonical); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	result := NormalizeResult{
		Digest: digest,
		Counts: n.Entities.Counts(),
		Output: opts.Output,
	}

	if formatter.Format == "json" {
		if opts.Output == "" {
			result.Normalized = n.Value()
		}
		return formatter.Success(result)
	}

	if opts.Output == "" {
		return writeOutput("", formatter.Writer, canonical)
	}
	printCounts(formatter.Writer, s.graph, result.Counts)
	fmt.Fprintf(formatter.Writer, "Digest: %s\n", digest)
	fmt.Fprintf(formatter.Writer, "Wrote normalized tables to %s\n", opts.Output)
	return nil
}

// printCounts writes a per-type entity summary in graph declaration order.
func printCounts(w io.Writer, g *schema.Graph, counts map[schema.EntityType]int) {
	total := 0
	for _, c := range counts {
		total += c
	}
	fmt.Fprintf(w, "✓ Normalized %d entit%s across %d table(s)\n\n", total, plural(total, "y", "ies"), len(counts))
	for _, t := range g.Types() {
		fmt.Fprintf(w, "  %-12s %d\n", t, counts[t])
	}
	fmt.Fprintln(w)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// normalizedSummary is the verbose one-liner for a normalized value.
func normalizedSummary(n *entities.Normalized) string {
	total := 0
	for _, c := range n.Entities.Counts() {
		total += c
	}
	return fmt.Sprintf("%d entities in %d tables", total, len(n.Entities))
}
