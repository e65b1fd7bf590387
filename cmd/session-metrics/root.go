package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/0xmhha/session-metrics/pkg/config"
	"github.com/0xmhha/session-metrics/pkg/discovery"
	"github.com/0xmhha/session-metrics/pkg/display"
	"github.com/0xmhha/session-metrics/pkg/logger"
	"github.com/0xmhha/session-metrics/pkg/metrics"
	"github.com/0xmhha/session-metrics/pkg/monitor"
	"github.com/0xmhha/session-metrics/pkg/store"
	"github.com/0xmhha/session-metrics/pkg/watcher"
)

// globalOptions are flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "session-metrics",
		Short: "Session metrics extractor and MCP cohort comparison",
		Long: `session-metrics turns recorded task segments into normalized session
records and compares sessions that used MCP tooling against a control
cohort (time efficiency, API call reduction, interaction reduction and
success rate).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate("session-metrics {{.Version}}\n")

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newExtractCmd(opts),
		newReportCmd(opts),
		newListCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
	)

	return root
}

// app bundles the loaded configuration and logger of one invocation.
type app struct {
	cfg *config.Config
	log logger.Logger
}

// loadApp loads configuration and builds the logger.
func loadApp(opts *globalOptions) (*app, error) {
	cfg, err := config.NewLoader(opts.configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.logLevel != "" {
		if !logger.ValidLevel(opts.logLevel) {
			return nil, fmt.Errorf("%w: %q", config.ErrInvalidLogLevel, opts.logLevel)
		}
		cfg.Logging.Level = opts.logLevel
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	return &app{cfg: cfg, log: log}, nil
}

// openStore opens the configured record store.
func (a *app) openStore() (store.Store, error) {
	st, err := store.Open(store.Config{DBPath: a.cfg.Storage.DBPath}, a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	return st, nil
}

// closeStore closes st, logging any failure.
func (a *app) closeStore(st store.Store) {
	if err := st.Close(); err != nil {
		a.log.Error("failed to close record store", "error", err)
	}
}

// extractor builds an extractor from the configured pricing and pool size.
func (a *app) extractor() metrics.Extractor {
	return metrics.New(metrics.Config{
		Pricing: metrics.Pricing{
			InputPer1K:  a.cfg.Pricing.InputPer1K,
			OutputPer1K: a.cfg.Pricing.OutputPer1K,
		},
		Workers: a.cfg.Extraction.WorkerPoolSize,
	}, a.log)
}

// newMonitor wires discovery, extraction and storage over dirs.
// w may be nil when no watching is needed.
func (a *app) newMonitor(dirs []string, st store.Store, w watcher.Watcher, obs monitor.Observer, exportPath string) monitor.Monitor {
	return monitor.New(monitor.Config{
		SegmentDirs:      dirs,
		FallbackTestType: a.cfg.Extraction.FallbackTestType,
		ExportPath:       exportPath,
	}, monitor.Deps{
		Discoverer: discovery.New(dirs, a.log),
		Watcher:    w,
		Extractor:  a.extractor(),
		Store:      st,
		Observer:   obs,
	}, a.log)
}

// formatter builds a formatter from a --format flag value, falling back
// to the configured default. Table output turns compact when w is not
// a terminal.
func (a *app) formatter(w io.Writer, format string, cohorts bool) (display.Formatter, error) {
	if format == "" {
		format = a.cfg.Display.DefaultFormat
	}

	f, err := display.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	return display.New(display.Config{
		Format:      f,
		ShowCohorts: cohorts || a.cfg.Display.ShowCohorts,
		Compact:     !isTerminal(w),
	}), nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
