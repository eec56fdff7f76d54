package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	sqliteadapter "github.com/ericfisherdev/elvagent/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/elvagent/internal/application"
	"github.com/ericfisherdev/elvagent/internal/config"
	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

var historyFormat string

var historyCmd = &cobra.Command{
	Use:   "history <pr-number>",
	Short: "Print the ledger history of a pull request",
	Long: `History prints every event recorded for a pull request, oldest first,
together with its fix attempt count and circuit breaker state.

Examples:
  elvagent history 42
  elvagent history 42 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil || number < 1 {
			return fmt.Errorf("invalid pull request number %q", args[0])
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return err
		}

		db, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		svc := application.NewHistoryService(sqliteadapter.NewEventRepo(db), nil, cfg.MaxFixAttempts)
		h, err := svc.PRHistory(cmd.Context(), number)
		if err != nil {
			return err
		}

		if historyFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(h)
		}
		printHistory(os.Stdout, h)
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "text", "Output format (text, json)")
}

func printHistory(w io.Writer, h *application.PRHistory) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	_, _ = bold.Fprintf(w, "PR #%d\n", h.Number)

	attempts := color.New(color.FgGreen)
	switch {
	case h.BreakerOpen:
		attempts = color.New(color.FgRed)
	case h.FixAttempts > 0:
		attempts = color.New(color.FgYellow)
	}
	_, _ = attempts.Fprintf(w, "Fix attempts: %d/%d", h.FixAttempts, h.MaxAttempts)
	if h.BreakerOpen {
		_, _ = attempts.Fprint(w, " (circuit breaker open)")
	}
	_, _ = fmt.Fprintln(w)

	if len(h.Entries) == 0 {
		_, _ = dim.Fprintln(w, "No recorded events.")
		return
	}

	_, _ = fmt.Fprintln(w)
	for _, e := range h.Entries {
		_, _ = dim.Fprintf(w, "%s  %s  ", e.ProcessedAt.Local().Format(time.DateTime), shortSHA(e.HeadSHA))
		_, _ = fmt.Fprintf(w, "%-18s ", e.Kind)
		_, _ = actionColor(e.Action).Fprintln(w, e.Action)
	}
}

func actionColor(a model.Action) *color.Color {
	switch a {
	case model.ActionRuffFixPushed, model.ActionAIFixPushed, model.ActionDescriptionGenerated, model.ActionReviewPosted:
		return color.New(color.FgGreen)
	case model.ActionSecretAlertPosted, model.ActionCircuitBreakerTriggered, model.ActionNoFixFound:
		return color.New(color.FgYellow)
	default:
		return color.New(color.Reset)
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
