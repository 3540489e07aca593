package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/gladoid/internal/config"
	"github.com/Iron-Ham/gladoid/internal/results"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show finished games",
	Long: `Show totals and the most recent finished games from the results
database (results.path).`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

var (
	statsJSON  bool // Output as JSON
	statsLimit int
)

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output statistics as JSON")
	statsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 10, "Number of recent games to list")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Results.Path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Results are not recorded. Set results.path to keep a history.")
		return nil
	}

	store, err := results.Open(cfg.Results.Path)
	if err != nil {
		return fmt.Errorf("failed to open results: %w", err)
	}
	defer func() { _ = store.Close() }()

	summary, err := store.Summarize(cmd.Context())
	if err != nil {
		return err
	}
	recent, err := store.Recent(cmd.Context(), statsLimit)
	if err != nil {
		return err
	}

	if statsJSON {
		return printStatsJSON(cmd.OutOrStdout(), summary, recent)
	}
	printStatsText(cmd.OutOrStdout(), summary, recent)
	return nil
}

func printStatsText(w io.Writer, summary results.Summary, recent []results.Record) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "GAMES")
	fmt.Fprintln(w, strings.Repeat("─", 50))
	fmt.Fprintf(w, "Total:     %d\n", summary.Total)
	fmt.Fprintf(w, "Ended:     %d\n", summary.Ended)
	fmt.Fprintf(w, "Aborted:   %d\n", summary.Aborted)
	fmt.Fprintf(w, "Canceled:  %d\n", summary.Canceled)
	fmt.Fprintf(w, "Steps:     %d\n", summary.Steps)
	fmt.Fprintf(w, "Fallbacks: %d\n", summary.Fallbacks)
	fmt.Fprintln(w)

	if len(recent) == 0 {
		return
	}

	fmt.Fprintln(w, "RECENT")
	fmt.Fprintln(w, strings.Repeat("─", 50))
	for _, r := range recent {
		fmt.Fprintf(w, "%s  %-8s  %-12s  %4d steps  %3d fallbacks  %s\n",
			r.EndedAt.Local().Format("2006-01-02 15:04:05"),
			r.Outcome,
			truncate(r.Initiator, 12),
			r.Steps,
			r.Fallbacks,
			r.Duration().Round(time.Millisecond))
		if r.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", r.Error)
		}
	}
	fmt.Fprintln(w)
}

type statsOutput struct {
	Summary results.Summary `json:"summary"`
	Recent  []gameOutput    `json:"recent"`
}

type gameOutput struct {
	ID        string    `json:"id"`
	Initiator string    `json:"initiator"`
	Outcome   string    `json:"outcome"`
	Steps     uint64    `json:"steps"`
	Fallbacks int       `json:"fallbacks"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Error     string    `json:"error,omitempty"`
}

func printStatsJSON(w io.Writer, summary results.Summary, recent []results.Record) error {
	out := statsOutput{Summary: summary, Recent: make([]gameOutput, 0, len(recent))}
	for _, r := range recent {
		out.Recent = append(out.Recent, gameOutput{
			ID:        r.ID,
			Initiator: r.Initiator,
			Outcome:   r.Outcome,
			Steps:     r.Steps,
			Fallbacks: r.Fallbacks,
			StartedAt: r.StartedAt,
			EndedAt:   r.EndedAt,
			Error:     r.Error,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
