package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/agrocredit/agrolend/internal/domain"
	"github.com/agrocredit/agrolend/internal/infra/sqlite"
)

// ─── Preview Ledger CLI ─────────────────────────────────────────────────────
// Operator access to the confirmation tokens of a local agrolend instance.
// The ledger is the sqlite file in [server].data_dir.

func init() {
	rootCmd.AddCommand(previewsCmd)
	previewsCmd.AddCommand(previewsShowCmd)
	previewsCmd.AddCommand(previewsCancelCmd)
	previewsCmd.AddCommand(previewsPurgeCmd)
}

var previewsCmd = &cobra.Command{
	Use:   "previews",
	Short: "Inspect and manage confirmation previews",
	Long: `Every approval, rejection, signature and payment is first shown as a
preview with a single-use token. These commands read and settle tokens in
the local preview ledger.`,
}

// ─── previews show ──────────────────────────────────────────────────────────

var previewsShowCmd = &cobra.Command{
	Use:   "show TOKEN",
	Short: "Show a preview and its state",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreviewsShow,
}

func runPreviewsShow(cmd *cobra.Command, args []string) error {
	db, err := openLedger()
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := db.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Token:    %s\n", p.Token)
	fmt.Fprintf(out, "Command:  %s #%d\n", p.Command, p.SubjectID)
	fmt.Fprintf(out, "Actor:    %s\n", p.Actor)
	if p.Document.Title != "" {
		fmt.Fprintf(out, "Document: %s\n", p.Document.Title)
	}
	fmt.Fprintf(out, "Created:  %s\n", humanize.Time(p.CreatedAt))
	fmt.Fprintf(out, "State:    %s\n", previewState(p, time.Now()))
	return nil
}

func previewState(p domain.Preview, now time.Time) string {
	switch {
	case p.ConsumedAt != nil:
		return "confirmed " + humanize.Time(*p.ConsumedAt)
	case p.CancelledAt != nil:
		return "cancelled " + humanize.Time(*p.CancelledAt)
	case p.Expired(now):
		return "expired " + humanize.Time(p.ExpiresAt)
	default:
		return "open, expires " + humanize.Time(p.ExpiresAt)
	}
}

// ─── previews cancel ────────────────────────────────────────────────────────

var previewsCancelCmd = &cobra.Command{
	Use:   "cancel TOKEN",
	Short: "Cancel an open preview so it can no longer be confirmed",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreviewsCancel,
}

func runPreviewsCancel(cmd *cobra.Command, args []string) error {
	db, err := openLedger()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Cancel(cmd.Context(), args[0], time.Now()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Preview %s cancelled.\n", args[0])
	return nil
}

// ─── previews purge ─────────────────────────────────────────────────────────

var previewsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired previews",
	Long:  `Delete expired previews now instead of waiting for the scheduled sweep.`,
	Args:  cobra.NoArgs,
	RunE:  runPreviewsPurge,
}

func runPreviewsPurge(cmd *cobra.Command, args []string) error {
	db, err := openLedger()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.PurgeExpired(cmd.Context(), time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired preview(s).\n", n)
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// openLedger opens the preview ledger of the configured data directory.
func openLedger() (*sqlite.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := sqlite.Open(cfg.Server.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open preview ledger in %s: %w", cfg.Server.DataDir, err)
	}
	return db, nil
}

