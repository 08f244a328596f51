package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CleanupOptions holds flags for the cleanup command.
type CleanupOptions struct {
	*RootOptions
	DryRun        bool
	RetentionDays int
}

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired temp artifacts",
		Long: `Remove run reports and other temp artifacts older than the retention
window. Content and the ledger are never touched.

Example:
  docsync cleanup --dry-run
  docsync cleanup --retention-days 3`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would be removed without removing it")
	cmd.Flags().IntVar(&opts.RetentionDays, "retention-days", 0, "override the configured retention window")

	return cmd
}

func runCleanup(opts *CleanupOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	fs, err := openBlobs(cfg)
	if err != nil {
		return err
	}

	retention := cfg.TempRetentionDays
	if opts.RetentionDays > 0 {
		retention = opts.RetentionDays
	}

	removed, err := fs.CleanupTemp(cmd.Context(), retention, opts.DryRun)
	if err != nil {
		return WrapExitError(ExitCommandError, "cleanup failed", err)
	}

	result := struct {
		RetentionDays int  `json:"retention_days"`
		DryRun        bool `json:"dry_run"`
		Removed       int  `json:"removed"`
	}{retention, opts.DryRun, removed}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if done, err := out.JSON(result); done {
		return err
	}

	verb := "removed"
	if opts.DryRun {
		verb = "would remove"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d temp object(s) past retention (%d days)\n",
		verb, removed, retention)
	return nil
}
