package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/0xmhha/session-metrics/pkg/metrics"
)

// listCommand lists stored session records.
type listCommand struct {
	opts   *globalOptions
	format string
	mode   string
}

func newListCmd(opts *globalOptions) *cobra.Command {
	c := &listCommand{opts: opts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored session records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Execute(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&c.format, "format", "f", "", "output format (table, json, simple)")
	cmd.Flags().StringVar(&c.mode, "mode", "", "only list sessions of this mode")

	return cmd
}

// Execute runs the list command.
func (c *listCommand) Execute(out io.Writer) error {
	a, err := loadApp(c.opts)
	if err != nil {
		return err
	}

	formatter, err := a.formatter(out, c.format, false)
	if err != nil {
		return err
	}

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer a.closeStore(st)

	records, err := st.List()
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if c.mode != "" {
		records = filterMode(records, c.mode)
	}

	return formatter.FormatRecords(out, records)
}

func filterMode(records []metrics.Record, mode string) []metrics.Record {
	filtered := make([]metrics.Record, 0, len(records))
	for _, rec := range records {
		if rec.Mode == mode {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}
