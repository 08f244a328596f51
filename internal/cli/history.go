package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"docsync/internal/entity"
	"docsync/internal/ledger"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	AsOf string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <document-id>",
		Short: "Show the version history of a document",
		Long: `Show every recorded version of a document, oldest first.

With --as-of, show instead the single version that was current at the given
RFC 3339 instant.

Example:
  docsync history 2456
  docsync history 2456 --as-of 2026-01-15T00:00:00Z`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "show the version current at this RFC 3339 instant")

	return cmd
}

// historyEntry is the output shape of one version.
type historyEntry struct {
	ValidFrom   time.Time `json:"valid_from"`
	ValidTo     time.Time `json:"valid_to,omitzero"`
	IsCurrent   bool      `json:"is_current"`
	ContentHash string    `json:"content_hash"`
	Title       string    `json:"title,omitempty"`
	HasContent  bool      `json:"has_content"`
}

func showHistory(opts *HistoryOptions, cmd *cobra.Command, id string) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
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

	ctx := cmd.Context()
	key := entity.DocumentKey(cfg.Source.Name, id)

	var records []entity.Record
	if opts.AsOf != "" {
		at, err := time.Parse(time.RFC3339, opts.AsOf)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --as-of instant", err)
		}
		rec, err := store.AsOf(ctx, key, at)
		if err != nil {
			return historyReadError(key, err)
		}
		records = []entity.Record{rec}
	} else {
		records, err = store.History(ctx, key)
		if err != nil {
			return historyReadError(key, err)
		}
		if len(records) == 0 {
			return historyReadError(key, ledger.ErrNotFound)
		}
	}

	entries := make([]historyEntry, len(records))
	for i, rec := range records {
		entries[i] = historyEntry{
			ValidFrom:   rec.ValidFrom,
			ValidTo:     rec.ValidTo,
			IsCurrent:   rec.IsCurrent,
			ContentHash: rec.ContentHash,
			HasContent:  hasContent(rec),
		}
		if doc, ok := rec.Attributes.(entity.DocumentAttrs); ok {
			entries[i].Title = doc.Title
		}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if done, err := out.JSON(entries); done {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "History of %s (%d versions)\n", key, len(entries))
	for _, e := range entries {
		to := "now"
		if !e.ValidTo.IsZero() {
			to = e.ValidTo.Format(time.RFC3339)
		}
		marker := " "
		if e.IsCurrent {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s .. %s  %s  %q\n",
			marker, e.ValidFrom.Format(time.RFC3339), to, e.ContentHash[:12], e.Title)
	}
	return nil
}

func hasContent(rec entity.Record) bool {
	doc, ok := rec.Attributes.(entity.DocumentAttrs)
	return ok && doc.HasContent
}

func historyReadError(key entity.Key, err error) error {
	return WrapExitError(ExitCommandError, fmt.Sprintf("no recorded version of %s", key), err)
}
