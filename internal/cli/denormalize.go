package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gbproject/normgraph/internal/ir"
	"github.com/gbproject/normgraph/internal/schema"
)

// DenormalizeOptions holds flags for the denormalize command.
type DenormalizeOptions struct {
	*RootOptions
	Output     string // output file path
	TablesOnly bool   // rebuild from table order, ignoring "result"
	Entity     string // "type:id" to resolve a single entity
}

// DenormalizeResult is the JSON payload of the denormalize command.
type DenormalizeResult struct {
	Output   string    `json:"output,omitempty"`
	Document ir.Object `json:"document,omitempty"`
}

// NewDenormalizeCommand creates the denormalize command.
func NewDenormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DenormalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "denormalize <normalized.json>",
		Short: "Rebuild a nested document from entity tables",
		Long: `Denormalize the output of "normalize" back into a nested document.

References are resolved recursively through the tables, so events come
back with their children under the original branch labels. With
--tables-only the root collections are rebuilt from each table's id order
instead of "result". With --entity type:id only that entity is rebuilt.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDenormalize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&opts.TablesOnly, "tables-only", false, "rebuild root collections from table order")
	cmd.Flags().StringVar(&opts.Entity, "entity", "", "rebuild one entity, given as type:id")

	return cmd
}

func runDenormalize(opts *DenormalizeOptions, path string, cmd *cobra.Command) error {
	s, err := openSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.flushMetrics()
	formatter := s.formatter

	n, err := LoadNormalized(path, cmd.InOrStdin())
	if err != nil {
		return failLoad(formatter, err)
	}
	formatter.VerboseLog("Loaded %s from %s", normalizedSummary(n), path)

	var doc ir.Object
	switch {
	case opts.Entity != "":
		t, id, ok := parseEntityRef(opts.Entity)
		if !ok {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric,
				fmt.Sprintf("invalid --entity %q: expected type:id", opts.Entity), nil)
		}
		doc, err = s.engine.Resolve(n.Entities, t, id)
	case opts.TablesOnly:
		doc, err = s.engine.DenormalizeTables(n.Entities)
	default:
		doc, err = s.engine.Denormalize(n.Entities, n.Result)
	}
	if err != nil {
		return formatter.FailEngine(err)
	}

	if formatter.Format == "json" {
		result := DenormalizeResult{Output: opts.Output}
		if opts.Output != "" {
			if err := writeCanonical(opts.Output, formatter, doc); err != nil {
				return err
			}
		} else {
			result.Document = doc
		}
		return formatter.Success(result)
	}

	if err := writeCanonical(opts.Output, formatter, doc); err != nil {
		return err
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "✓ Wrote document to %s\n", opts.Output)
	}
	return nil
}

// writeCanonical writes v as canonical JSON to path, or to the formatter's
// writer when path is empty.
func writeCanonical(path string, formatter *OutputFormatter, v ir.Value) error {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	if err := writeOutput(path, formatter.Writer, data); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
	}
	return nil
}

// parseEntityRef splits "type:id". The id may itself contain colons.
func parseEntityRef(ref string) (schema.EntityType, string, bool) {
	t, id, ok := strings.Cut(ref, ":")
	if !ok || t == "" || id == "" {
		return "", "", false
	}
	return schema.EntityType(t), id, true
}
