package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xmhha/session-metrics/pkg/summary"
)

// reportCommand compares the MCP cohort against the control cohort.
type reportCommand struct {
	opts    *globalOptions
	input   string
	format  string
	cohorts bool
}

func newReportCmd(opts *globalOptions) *cobra.Command {
	c := &reportCommand{opts: opts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compare MCP sessions against control sessions",
		Long: `Build the comparative report from the record store, or from a
summary.json document given with --input. Values are percentage changes
of the MCP cohort relative to the control cohort; N/A means the control
average was zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Execute(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&c.input, "input", "i", "", "read sessions from a summary.json document instead of the store")
	cmd.Flags().StringVarP(&c.format, "format", "f", "", "output format (table, json, simple)")
	cmd.Flags().BoolVar(&c.cohorts, "cohorts", false, "include per-cohort averages")

	return cmd
}

// Execute runs the report command.
func (c *reportCommand) Execute(out io.Writer) error {
	a, err := loadApp(c.opts)
	if err != nil {
		return err
	}

	formatter, err := a.formatter(out, c.format, c.cohorts)
	if err != nil {
		return err
	}

	sessions, err := c.loadSessions(a)
	if err != nil {
		return err
	}

	result, err := summary.Compare(sessions)
	if err != nil {
		if errors.Is(err, summary.ErrEmptyCohort) {
			a.log.Error("cannot compare cohorts", "error", err)
		}
		return err
	}

	return formatter.FormatSummary(out, result)
}

// loadSessions reads sessions from --input or the record store.
func (c *reportCommand) loadSessions(a *app) ([]summary.Session, error) {
	if c.input != "" {
		f, err := os.Open(c.input)
		if err != nil {
			return nil, fmt.Errorf("failed to open summary: %w", err)
		}
		defer f.Close()

		return summary.Decode(f)
	}

	st, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer a.closeStore(st)

	records, err := st.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return summary.FromRecords(records), nil
}
