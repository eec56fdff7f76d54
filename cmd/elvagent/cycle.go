package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ericfisherdev/elvagent/internal/application"
	"github.com/ericfisherdev/elvagent/internal/config"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run exactly one poll, triage, act, record cycle and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load(ctx)
		if err != nil {
			return err
		}

		a, err := wire(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.loop.RunCycle(ctx)
		printCycle(os.Stdout, report)
		return err
	},
}

func printCycle(w io.Writer, r application.CycleReport) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	_, _ = bold.Fprintf(w, "Cycle %s\n", r.ID)
	_, _ = dim.Fprintf(w, "  %s, %s\n", r.StartedAt.Local().Format(time.DateTime), r.Duration().Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  snapshots %d, events %d, results %d\n", r.Snapshots, r.Events, r.Results)
	if r.Err != nil {
		_, _ = color.New(color.FgRed).Fprintf(w, "  error: %v\n", r.Err)
	}
}
