package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/colabtools/colabctl/internal/adapter/colab"
	"github.com/colabtools/colabctl/internal/core/domain"
	"github.com/colabtools/colabctl/internal/runtime"
	"github.com/colabtools/colabctl/internal/version"
)

func (a *App) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           version.Name,
		Short:         version.Description,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialise()
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "path to config file")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "emit JSON on stdout")

	root.AddCommand(
		a.newRunCmd(),
		a.newStatusCmd(),
		a.newHistoryCmd(),
		a.newClearCmd(),
		a.newAuthCmd(),
	)
	return root
}

func (a *App) newRunCmd() *cobra.Command {
	var (
		timeout  time.Duration
		variant  string
		forceNew bool
		silent   bool
	)

	cmd := &cobra.Command{
		Use:   "run <code>",
		Short: "Execute code on a Colab runtime",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := colab.AssignOptions{ForceNew: forceNew}
			if variant != "" {
				opts.Variant = domain.NormalizeVariant(variant)
			}
			a.runtime.SetAssignOptions(opts)

			result, err := a.runtime.Execute(cmd.Context(), runtime.ExecuteRequest{
				Code:    strings.Join(args, "\n"),
				Timeout: timeout,
				Silent:  silent,
			})
			if err != nil {
				return err
			}

			if a.jsonOut {
				if err := a.printJSON(result); err != nil {
					return err
				}
			} else {
				renderResult(cmd, result)
			}

			if result.Status != domain.ExecutionOK {
				return fmt.Errorf("execution finished with status %s (error code %d)", result.Status, result.ErrorCode)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the execution after this long (0 means no limit)")
	cmd.Flags().StringVar(&variant, "variant", "", "runtime variant preference (default, gpu, tpu)")
	cmd.Flags().BoolVar(&forceNew, "new", false, "request a fresh runtime instead of reusing one")
	cmd.Flags().BoolVar(&silent, "silent", false, "run without recording in the notebook's input history")
	return cmd
}

func (a *App) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show account, quota and runtime state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := a.runtime.Status(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(status)
			}
			renderStatus(cmd, a, status)
			return nil
		},
	}
}

func (a *App) newHistoryCmd() *cobra.Command {
	var (
		status   string
		mode     string
		category string
		since    string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the execution history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.HistoryFilter{
				Status:   domain.ExecutionStatus(strings.ToUpper(status)),
				Mode:     domain.ExecutionMode(strings.ToLower(mode)),
				Category: domain.ErrorCategory(strings.ToUpper(category)),
				Limit:    limit,
			}
			if since != "" {
				ts, err := parseSince(since)
				if err != nil {
					return err
				}
				filter.Since = ts
			}

			entries, err := a.history.Query(filter)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(entries)
			}
			renderHistory(cmd, a, entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (ok, error, abort)")
	cmd.Flags().StringVar(&mode, "mode", "", "filter by mode (kernel, terminal)")
	cmd.Flags().StringVar(&category, "category", "", "filter by error category (syntax, import, runtime, timeout, transport, canceled)")
	cmd.Flags().StringVar(&since, "since", "", "only entries newer than this (duration like 24h, or RFC3339)")
	cmd.Flags().IntVar(&limit, "limit", domain.DefaultHistoryLimit, "maximum entries to return")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Erase the execution history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.clearHistory(cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Summarise the execution history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := a.history.Stats()
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(stats)
			}
			renderStats(cmd, stats)
			return nil
		},
	})

	return cmd
}

// newClearCmd is the root-level alias for `history clear`
func (a *App) newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Erase the execution history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.clearHistory(cmd)
		},
	}
}

func (a *App) clearHistory(cmd *cobra.Command) error {
	if err := a.history.Clear(); err != nil {
		return err
	}
	if !a.jsonOut {
		cmd.Println("History cleared.")
	}
	return nil
}

func (a *App) newAuthCmd() *cobra.Command {
	var (
		force    bool
		validate bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Check stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.tokens.Token(cmd.Context(), force); err != nil {
				return err
			}

			if !validate {
				if a.jsonOut {
					return a.printJSON(map[string]bool{"authenticated": true})
				}
				cmd.Println("Access token available.")
				return nil
			}

			user, err := a.api.GetUserInfo(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(user)
			}
			cmd.Printf("Authenticated as %s (%s)\n", user.Email, user.SubscriptionTier)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "re-read credentials instead of serving the cached token")
	cmd.Flags().BoolVar(&validate, "validate", false, "verify the token against the user info endpoint")
	return cmd
}

// parseSince accepts a relative duration ("24h") or an absolute RFC3339
// timestamp
func parseSince(raw string) (time.Time, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return time.Now().Add(-d), nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse --since %q: want a duration like 24h or an RFC3339 timestamp", raw)
	}
	return ts, nil
}
