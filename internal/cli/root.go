package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gbproject/normgraph/internal/config"
	"github.com/gbproject/normgraph/internal/entities"
	"github.com/gbproject/normgraph/internal/logger"
	"github.com/gbproject/normgraph/internal/metrics"
	"github.com/gbproject/normgraph/internal/schema"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	Schema     string // CUE schema file; empty uses the built-in project graph
	MaxDepth   int    // 0 keeps the configured ceiling
	AssignIDs  bool
	Metrics    bool

	// Environ overrides the process environment when loading config.
	Environ func() []string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the normgraph CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "normgraph",
		Short: "normgraph - entity graph normalization",
		Long: `Normalize nested project documents into flat per-type entity tables
and rebuild them again.

Scenes, actors, triggers and their event scripts are declared by an entity
graph. Every nested entity is replaced by its id on the way in and restored
on the way out, with branch-map event children kept under their labels.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Schema, "schema", "", "CUE entity graph (default: built-in project graph)")
	cmd.PersistentFlags().IntVar(&opts.MaxDepth, "max-depth", 0, "nesting ceiling (default from config)")
	cmd.PersistentFlags().BoolVar(&opts.AssignIDs, "assign-ids", false, "assign deterministic ids to occurrences without one")
	cmd.PersistentFlags().BoolVar(&opts.Metrics, "metrics", false, "print operation metrics to stderr")

	// Add subcommands
	cmd.AddCommand(NewNormalizeCommand(opts))
	cmd.AddCommand(NewDenormalizeCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// session is the per-command state shared by every subcommand: resolved
// config, the entity graph, and an engine wired to logging and metrics.
type session struct {
	cfg       *config.Config
	graph     *schema.Graph
	engine    *entities.Engine
	recorder  *metrics.Recorder
	logger    *slog.Logger
	formatter *OutputFormatter
	metrics   bool
}

// openSession resolves config and builds the engine. Failures are already
// reported through the formatter when the returned error is non-nil.
func openSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(config.Options{File: opts.ConfigFile, Environ: opts.Environ})
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	if opts.Schema != "" {
		cfg.Engine.Schema = opts.Schema
	}
	if opts.MaxDepth > 0 {
		cfg.Engine.MaxDepth = opts.MaxDepth
	}
	if opts.AssignIDs {
		cfg.Engine.AssignMissingIDs = true
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	if opts.Verbose {
		level = logger.DebugLevel
	}
	log := logger.New(logger.Config{
		Level:  level,
		Format: logger.Format(cfg.Log.Format),
		Output: cmd.ErrOrStderr(),
	})

	graph := schema.Project()
	if cfg.Engine.Schema != "" {
		graph, err = schema.LoadCUE(cfg.Engine.Schema)
		if err != nil {
			return nil, formatter.Fail(ExitCommandError, ErrCodeSchema, err.Error(), nil)
		}
		formatter.VerboseLog("Loaded entity graph %s from %s", graph.Version(), cfg.Engine.Schema)
	}

	recorder := metrics.New()
	engine := entities.New(graph,
		entities.WithMaxDepth(cfg.Engine.MaxDepth),
		entities.WithAssignMissingIDs(cfg.Engine.AssignMissingIDs),
		entities.WithLogger(log),
		entities.WithObserver(recorder),
	)

	return &session{
		cfg:       cfg,
		graph:     graph,
		engine:    engine,
		recorder:  recorder,
		logger:    log,
		formatter: formatter,
		metrics:   opts.Metrics,
	}, nil
}

// flushMetrics prints the recorder's samples to the diagnostic writer when
// --metrics is set.
func (s *session) flushMetrics() {
	if !s.metrics {
		return
	}
	samples, err := s.recorder.Snapshot()
	if err != nil {
		s.logger.Warn("gather metrics", "error", err)
		return
	}
	w := s.formatter.GetErrWriter()
	if s.formatter.Format == "json" {
		_ = json.NewEncoder(w).Encode(samples)
		return
	}
	for _, sample := range samples {
		fmt.Fprintf(w, "%s%s %g\n", sample.Name, formatLabels(sample.Labels), sample.Value)
	}
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, labels[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}
