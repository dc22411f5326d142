package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gbproject/normgraph/internal/store"
)

// SnapshotOptions holds flags shared by the snapshot subcommands.
type SnapshotOptions struct {
	*RootOptions
	DBPath string // overrides store.path from config
}

// SaveResult is the JSON payload of "snapshot save".
type SaveResult struct {
	Name   string `json:"name"`
	Digest string `json:"digest"`
	Schema string `json:"schema"`
}

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Store and retrieve normalized snapshots",
		Long: `Persist normalized documents in a SQLite store.

Snapshots are content-addressed by the digest of their tables and result.
A name points at the latest snapshot saved under it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "snapshot database path (default from config)")

	cmd.AddCommand(newSnapshotSaveCommand(opts))
	cmd.AddCommand(newSnapshotLoadCommand(opts))
	cmd.AddCommand(newSnapshotListCommand(opts))
	cmd.AddCommand(newSnapshotHistoryCommand(opts))

	return cmd
}

// openStore opens the configured snapshot database.
func openStore(opts *SnapshotOptions, s *session) (*store.Store, error) {
	path := s.cfg.Store.Path
	if opts.DBPath != "" {
		path = opts.DBPath
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, s.formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	s.formatter.VerboseLog("Opened snapshot store %s", path)
	return st, nil
}

func newSnapshotSaveCommand(opts *SnapshotOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:           "save <document>",
		Short:         "Normalize a document and store it under a name",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer s.flushMetrics()

			doc, err := LoadDocument(args[0], cmd.InOrStdin())
			if err != nil {
				return failLoad(s.formatter, err)
			}
			n, err := s.engine.Normalize(doc)
			if err != nil {
				return s.formatter.FailEngine(err)
			}

			st, err := openStore(opts, s)
			if err != nil {
				return err
			}
			defer st.Close()

			digest, err := st.SaveSnapshot(cmd.Context(), name, s.graph.Version(), n)
			if err != nil {
				return s.formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}
			s.logger.Info("snapshot saved", "name", name, "digest", digest)

			result := SaveResult{Name: name, Digest: digest, Schema: s.graph.Version()}
			if s.formatter.Format == "json" {
				return s.formatter.Success(result)
			}
			fmt.Fprintf(s.formatter.Writer, "✓ Saved snapshot %q (%s)\n", name, normalizedSummary(n))
			fmt.Fprintf(s.formatter.Writer, "Digest: %s\n", digest)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "snapshot name")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newSnapshotLoadCommand(opts *SnapshotOptions) *cobra.Command {
	var (
		name        string
		output      string
		denormalize bool
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Print a stored snapshot",
		Long: `Print the snapshot currently stored under --name as canonical normalized
JSON, or as the rebuilt nested document with --denormalize.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			defer s.flushMetrics()

			st, err := openStore(opts, s)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.LoadSnapshot(cmd.Context(), name)
			if errors.Is(err, store.ErrSnapshotNotFound) {
				return s.formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
			}
			if err != nil {
				return s.formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}
			s.formatter.VerboseLog("Loaded %s", normalizedSummary(n))

			out := n.Value()
			if denormalize {
				out, err = s.engine.Denormalize(n.Entities, n.Result)
				if err != nil {
					return s.formatter.FailEngine(err)
				}
			}

			if s.formatter.Format == "json" && output == "" {
				return s.formatter.Success(out)
			}
			if err := writeCanonical(output, s.formatter, out); err != nil {
				return err
			}
			if output != "" {
				if s.formatter.Format == "json" {
					return s.formatter.Success(map[string]string{"output": output})
				}
				fmt.Fprintf(s.formatter.Writer, "✓ Wrote snapshot %q to %s\n", name, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "snapshot name")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path")
	cmd.Flags().BoolVar(&denormalize, "denormalize", false, "print the rebuilt nested document")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newSnapshotListCommand(opts *SnapshotOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List named snapshots",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts.RootOptions, cmd)
			if err != nil {
				return err
			}

			st, err := openStore(opts, s)
			if err != nil {
				return err
			}
			defer st.Close()

			infos, err := st.ListSnapshots(cmd.Context())
			if err != nil {
				return s.formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}

			if s.formatter.Format == "json" {
				return s.formatter.Success(infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(s.formatter.Writer, "No snapshots")
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(s.formatter.Writer, "%-20s %s  %-12s %d entities\n",
					info.Name, shortDigest(info.Digest), info.SchemaVersion, info.Entities)
			}
			return nil
		},
	}
	return cmd
}

func newSnapshotHistoryCommand(opts *SnapshotOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <type:id>",
		Short: "Show every stored version of an entity",
		Long: `List the stored snapshots that contain an entity, with its table
position and content hash. Equal hashes mean unchanged content.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts.RootOptions, cmd)
			if err != nil {
				return err
			}

			t, id, ok := parseEntityRef(args[0])
			if !ok {
				return s.formatter.Fail(ExitCommandError, ErrCodeGeneric,
					fmt.Sprintf("invalid entity %q: expected type:id", args[0]), nil)
			}
			if !s.graph.Has(t) {
				return s.formatter.Fail(ExitCommandError, ErrCodeUnknownType,
					fmt.Sprintf("unknown entity type %q", t), nil)
			}

			st, err := openStore(opts, s)
			if err != nil {
				return err
			}
			defer st.Close()

			versions, err := st.EntityHistory(cmd.Context(), t, id)
			if err != nil {
				return s.formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
			}

			if s.formatter.Format == "json" {
				return s.formatter.Success(versions)
			}
			if len(versions) == 0 {
				fmt.Fprintf(s.formatter.Writer, "No stored versions of %s\n", args[0])
				return nil
			}
			for _, v := range versions {
				fmt.Fprintf(s.formatter.Writer, "#%-4d %s  position %-4d content %s\n",
					v.Seq, shortDigest(v.Digest), v.Position, shortDigest(v.ContentHash))
			}
			return nil
		},
	}
	return cmd
}

// shortDigest trims a digest for text output.
func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
