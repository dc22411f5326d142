package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gbproject/normgraph/internal/schema"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	var printCUE bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Describe the active entity graph",
		Long: `Print the entity graph used by the other commands: every entity type
with its id field and nested fields, and the root collections.

With --cue the built-in project graph is printed as CUE source, a
starting point for a custom --schema file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}

			if printCUE {
				_, err := s.formatter.Writer.Write(schema.ProjectCUE())
				return err
			}

			desc := s.graph.Describe()
			if s.formatter.Format == "json" {
				return s.formatter.Success(desc)
			}
			printDescription(s.formatter, desc)
			return nil
		},
	}

	cmd.Flags().BoolVar(&printCUE, "cue", false, "print the built-in project graph as CUE")

	return cmd
}

func printDescription(formatter *OutputFormatter, desc schema.Description) {
	w := formatter.Writer
	fmt.Fprintf(w, "Entity graph %s\n\n", desc.Version)
	for _, e := range desc.Entities {
		fmt.Fprintf(w, "  %s (id: %s)\n", e.Type, e.IDField)
		for _, f := range e.Fields {
			fmt.Fprintf(w, "    %-16s %-9s -> %s\n", f.Name, f.Shape, f.Target)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Roots:")
	for _, r := range desc.Roots {
		fmt.Fprintf(w, "  %-12s -> %s\n", r.Name, r.Target)
	}
	if len(desc.Recursive) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Recursive:")
		for _, r := range desc.Recursive {
			fmt.Fprintf(w, "  %s\n", r.Message)
		}
	}
}
