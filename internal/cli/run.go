package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docsync/internal/pipeline"
	"docsync/internal/retry"
	"docsync/internal/runlog"
	"docsync/internal/source"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Workers int
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one collection run",
		Long: `Execute one full collection run against the configured source.

The run collects dictionaries and the document list, classifies documents
against the ledger, fetches new and changed ones, stores raw and processed
content under both partitions, and records a new ledger version for every
changed entity.

Example:
  docsync run --config docsync.yaml
  docsync run -c docsync.yaml --workers 8 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollection(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent document fetches (default from config)")

	return cmd
}

func runCollection(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}

	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("error closing ledger", "error", closeErr)
		}
	}()

	fs, err := openBlobs(cfg)
	if err != nil {
		return err
	}

	tracker, err := runlog.NewTracker(store.DB())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open run tracker", err)
	}

	limiter := source.NewLimiter(cfg.Source.API.RateLimit.MinPause, cfg.Source.API.RateLimit.MaxPause)
	collector, err := source.New(cfg.Source, limiter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build collector", err)
	}

	// Ctrl-C cancels the run; progress up to the last checkpoint survives.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	p := &pipeline.Pipeline{
		Collector: collector,
		Ledger:    store,
		Blobs:     fs,
		Tracker:   tracker,
		Workers:   cfg.Workers,
		Retry:     retry.DefaultPolicy,
	}
	report, err := p.Run(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "run failed", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if done, err := out.JSON(report); done {
		return exitOnFailures(report, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s (%s)\n", report.RunID, report.Source)
	fmt.Fprintf(w, "  found:        %d\n", report.Found)
	fmt.Fprintf(w, "  new:          %d\n", report.New)
	fmt.Fprintf(w, "  updated:      %d\n", report.Updated)
	fmt.Fprintf(w, "  unchanged:    %d\n", report.Unchanged)
	fmt.Fprintf(w, "  failed:       %d\n", report.Failed)
	fmt.Fprintf(w, "  with content: %d\n", report.WithContent)
	fmt.Fprintf(w, "  dict entries: %d\n", report.DictEntries)
	if report.Degraded {
		fmt.Fprintln(w, "  NOTE: change detection degraded, full batch re-downloaded")
	}
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  failure %s: %s\n", f.ID, f.Error)
	}
	return exitOnFailures(report, nil)
}

func exitOnFailures(report *pipeline.Report, err error) error {
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		return WrapExitError(ExitFailure,
			fmt.Sprintf("%d of %d documents failed", report.Failed, report.Found), nil)
	}
	return nil
}
