package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/0xmhha/session-metrics/pkg/monitor"
	"github.com/0xmhha/session-metrics/pkg/watcher"
)

// watchCommand keeps the record store in step with the segment directories.
type watchCommand struct {
	opts   *globalOptions
	export string
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	c := &watchCommand{opts: opts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Extract new and changed segments as they are written",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Execute(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&c.export, "export", "", "rewrite summary.json after each change (default path: storage.summary_path)")
	cmd.Flags().Lookup("export").NoOptDefVal = exportToConfigured

	return cmd
}

// Execute runs the watch command until interrupted.
func (c *watchCommand) Execute(ctx context.Context, out io.Writer) error {
	a, err := loadApp(c.opts)
	if err != nil {
		return err
	}

	exportPath := c.export
	if exportPath == exportToConfigured {
		exportPath = a.cfg.Storage.SummaryPath
	}

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer a.closeStore(st)

	w, err := watcher.New(watcher.Config{DebounceInterval: a.cfg.Watch.DebounceInterval}, a.log)
	if err != nil {
		return fmt.Errorf("failed to initialize watcher: %w", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			a.log.Error("failed to close watcher", "error", err)
		}
	}()

	mon := a.newMonitor(a.cfg.SegmentDirs, st, w, nil, exportPath)
	defer func() {
		if err := mon.Close(); err != nil {
			a.log.Error("failed to close monitor", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mon.Start(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "Watching %v - press Ctrl+C to stop\n", a.cfg.SegmentDirs)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Stopping watcher...")
			return nil

		case u, ok := <-mon.Updates():
			if !ok {
				return nil
			}
			printUpdate(out, u)
		}
	}
}

func printUpdate(out io.Writer, u monitor.Update) {
	status := fmt.Sprintf("%d extracted, %d skipped", u.Result.Extracted, u.Result.Skipped)
	switch {
	case u.Result.Unchanged > 0:
		status = "unchanged"
	case u.Result.Failed > 0:
		status = "failed to load"
	}

	fmt.Fprintf(out, "%s %-6s %s: %s (records: %d)\n",
		u.Timestamp.Format("15:04:05"), u.Op, u.Path, status, u.Records)
}
