package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danielolaszy/issuebot/internal/store"
	"github.com/danielolaszy/issuebot/pkg/models"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// statusCmd prints the persisted request state without contacting GitHub.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the outstanding request and processed issues",
	Long: `Display the state persisted in the data directory: the outstanding assignment
request, if any, and how many issues have already been requested.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, err := cmd.Flags().GetString("data-dir")
		if err != nil {
			return err
		}

		storeKind, err := cmd.Flags().GetString("store")
		if err != nil {
			return err
		}

		st, err := store.Open(store.Kind(storeKind), dataDir)
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		defer st.Close()

		active, err := st.LoadActive(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load active request: %w", err)
		}

		processed, err := st.LoadProcessed(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to load processed issues: %w", err)
		}

		out := cmd.OutOrStdout()
		printStatus(out, newPalette(out), active, processed, time.Now())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type palette struct {
	label   func(string, ...any) string
	good    func(string, ...any) string
	pending func(string, ...any) string
	expired func(string, ...any) string
}

// newPalette colors output only when w is a terminal.
func newPalette(w io.Writer) palette {
	plain := palette{label: fmt.Sprintf, good: fmt.Sprintf, pending: fmt.Sprintf, expired: fmt.Sprintf}

	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return plain
	}

	return palette{
		label:   color.New(color.Bold).SprintfFunc(),
		good:    color.GreenString,
		pending: color.YellowString,
		expired: color.RedString,
	}
}

func printStatus(w io.Writer, p palette, active *models.ActiveRequest, processed models.ProcessedSet, now time.Time) {
	switch {
	case active == nil:
		fmt.Fprintf(w, "%s %s\n", p.label("Phase:"), p.good("idle"))
	case active.Expired(now):
		fmt.Fprintf(w, "%s %s\n", p.label("Phase:"), p.expired("expired (released on the next cycle)"))
	default:
		remaining := active.ExpiresAt.Sub(now).Truncate(time.Minute)
		fmt.Fprintf(w, "%s %s\n", p.label("Phase:"), p.pending("pending (%s remaining)", remaining))
	}

	if active != nil {
		fmt.Fprintf(w, "%s %s#%d\n", p.label("Issue:"), active.Repository(), active.IssueNumber)
		if active.IssueURL != "" {
			fmt.Fprintf(w, "%s %s\n", p.label("URL:"), active.IssueURL)
		}
		fmt.Fprintf(w, "%s %s\n", p.label("Requested:"), active.RequestedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "%s %s\n", p.label("Expires:"), active.ExpiresAt.Format(time.RFC3339))
	}

	fmt.Fprintf(w, "%s %d\n", p.label("Processed issues:"), processed.Len())
}
