package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/session-metrics/pkg/server"
	"github.com/0xmhha/session-metrics/pkg/watcher"
)

// serveCommand publishes the record store over HTTP.
type serveCommand struct {
	opts  *globalOptions
	addr  string
	watch bool
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	c := &serveCommand{opts: opts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve summary.json, the comparison report and process metrics",
		Long: `Serve the record store over HTTP:

  GET /metrics/summary.json   all session records
  GET /metrics/report.json    MCP vs control report (?cohorts=true for averages)
  GET /healthz                liveness
  GET /debug/metrics          Prometheus counters

With --watch, segment directories are ingested continuously while serving.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Execute(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&c.addr, "addr", "", "listen address (default: server.addr)")
	cmd.Flags().BoolVar(&c.watch, "watch", false, "ingest segment changes while serving")

	return cmd
}

// Execute runs the server until interrupted.
func (c *serveCommand) Execute(ctx context.Context) error {
	a, err := loadApp(c.opts)
	if err != nil {
		return err
	}

	addr := a.cfg.Server.Addr
	if c.addr != "" {
		addr = c.addr
	}

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer a.closeStore(st)

	m := server.NewMetrics()
	srv, err := server.New(server.Config{Addr: addr}, st, m, a.log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if c.watch {
		w, err := watcher.New(watcher.Config{DebounceInterval: a.cfg.Watch.DebounceInterval}, a.log)
		if err != nil {
			return fmt.Errorf("failed to initialize watcher: %w", err)
		}
		defer func() {
			if err := w.Close(); err != nil {
				a.log.Error("failed to close watcher", "error", err)
			}
		}()

		mon := a.newMonitor(a.cfg.SegmentDirs, st, w, m, "")
		defer func() {
			if err := mon.Close(); err != nil {
				a.log.Error("failed to close monitor", "error", err)
			}
		}()

		if err := mon.Start(gctx); err != nil {
			return err
		}

		// Drain updates; the HTTP routes read the store directly.
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case _, ok := <-mon.Updates():
					if !ok {
						return nil
					}
				}
			}
		})
	}

	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	return g.Wait()
}
