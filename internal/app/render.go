package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/runtime"
	"github.com/colabtools/colabctl/pkg/format"
)

// renderResult prints one execution the way a terminal user expects:
// stdout on stdout, stderr and traceback on stderr, timing as a muted
// footer.
func renderResult(cmd *cobra.Command, result *domain.ExecutionResult) {
	out := cmd.OutOrStdout()

	if result.Stdout != "" {
		fmt.Fprint(out, result.Stdout)
		if !strings.HasSuffix(result.Stdout, "\n") {
			fmt.Fprintln(out)
		}
	}
	for _, data := range result.DisplayData {
		fmt.Fprintln(out, data)
	}
	if result.Stderr != "" {
		fmt.Fprint(os.Stderr, result.Stderr)
		if !strings.HasSuffix(result.Stderr, "\n") {
			fmt.Fprintln(os.Stderr)
		}
	}
	for _, line := range result.Traceback {
		fmt.Fprintln(os.Stderr, line)
	}
	if result.Error != nil && len(result.Traceback) == 0 {
		fmt.Fprintf(os.Stderr, "%s: %s\n", result.Error.Ename, result.Error.Evalue)
	}

	fmt.Fprintf(os.Stderr, "[%s] connect %s, execute %s\n",
		result.Status,
		format.Duration(time.Duration(result.ConnectionMS)*time.Millisecond),
		format.Duration(time.Duration(result.ExecutionMS)*time.Millisecond))
}

func renderStatus(cmd *cobra.Command, a *App, status *runtime.Status) {
	out := cmd.OutOrStdout()
	th := a.logger.Theme

	fmt.Fprintf(out, "Account:  %s (%s)\n",
		th.Highlight.Sprint(status.User.Email),
		th.Accent.Sprint(status.User.SubscriptionTier))
	fmt.Fprintf(out, "Compute:  %.1f units available", status.Ccu.AvailableComputeUnits)
	if status.Ccu.UsageRatePerHour > 0 {
		fmt.Fprintf(out, ", burning %.2f/h", status.Ccu.UsageRatePerHour)
	}
	fmt.Fprintln(out)

	if len(status.Assignments) == 0 {
		fmt.Fprintln(out, "Runtimes: none assigned")
	} else {
		fmt.Fprintln(out, "Runtimes:")
		for _, a2 := range status.Assignments {
			fmt.Fprintf(out, "  %s [%s] %s %s\n",
				th.Runtime.Sprint(a2.Label),
				th.Accent.Sprint(a2.Accelerator),
				a2.Variant,
				th.Endpoint.Sprint(a2.Endpoint))
		}
	}

	for _, sess := range status.Sessions {
		fmt.Fprintf(out, "Session:  %s on %s, %s, last activity %s\n",
			th.Highlight.Sprint(sess.SessionID),
			th.Endpoint.Sprint(sess.Assignment.Endpoint),
			sess.State,
			format.TimeAgo(sess.LastActivity))
	}
}

func renderHistory(cmd *cobra.Command, a *App, entries []*domain.HistoryEntry) {
	out := cmd.OutOrStdout()
	th := a.logger.Theme

	if len(entries) == 0 {
		fmt.Fprintln(out, "No history entries match.")
		return
	}

	for _, entry := range entries {
		status := th.Success.Sprint(entry.Status)
		if entry.Status != domain.ExecutionOK {
			status = th.Error.Sprint(entry.Status)
			if entry.Category != "" {
				status += th.Muted.Sprintf(" (%s)", entry.Category)
			}
		}
		fmt.Fprintf(out, "%s  %-8s %s  %s\n",
			th.Muted.Sprint(entry.Timestamp.Local().Format("2006-01-02 15:04:05")),
			entry.Mode,
			status,
			firstLine(entry.Command))
	}
}

func renderStats(cmd *cobra.Command, stats *domain.HistoryStats) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Executions: %d total, %d ok, %d failed, %d aborted (%s success)\n",
		stats.TotalExecutions,
		stats.SuccessfulExecutions,
		stats.FailedExecutions,
		stats.AbortedExecutions,
		format.Percentage(float64(stats.SuccessRate)))

	for mode, count := range stats.ExecutionsByMode {
		fmt.Fprintf(out, "  mode %-8s %d\n", mode, count)
	}
	for category, count := range stats.ErrorsByCategory {
		fmt.Fprintf(out, "  errors %-10s %d\n", category, count)
	}
	if stats.OldestEntry != nil {
		fmt.Fprintf(out, "Span: %s to %s\n",
			stats.OldestEntry.Local().Format(time.RFC3339),
			stats.NewestEntry.Local().Format(time.RFC3339))
	}
}

// firstLine truncates multi-line commands for the list view
func firstLine(code string) string {
	line, _, multi := strings.Cut(code, "\n")
	if len(line) > 80 {
		return line[:80] + "…"
	}
	if multi {
		return line + " …"
	}
	return line
}
