package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/0xmhha/session-metrics/pkg/config"
)

// configCommand handles configuration management subcommands.
type configCommand struct {
	opts *globalOptions
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	c := &configCommand{opts: opts}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management (show, path, init)",
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runShow(cmd.OutOrStdout(), format)
		},
	}
	show.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml, json)")

	path := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file search paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runPath(cmd.OutOrStdout())
		},
	}

	var output string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runInit(cmd.InOrStdin(), cmd.OutOrStdout(), output, force)
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: ~/.config/session-metrics/config.yaml)")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite without confirmation")

	cmd.AddCommand(show, path, initCmd)
	return cmd
}

// runShow displays the effective configuration.
func (c *configCommand) runShow(out io.Writer, format string) error {
	a, err := loadApp(c.opts)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(a.cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	switch format {
	case "json":
		return showJSON(out, data)
	case "yaml":
		fmt.Fprintln(out, "# Current Configuration")
		fmt.Fprintln(out, "# Source:", c.configSource())
		fmt.Fprintln(out)
		_, err = out.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// showJSON re-encodes YAML output as JSON so keys keep their YAML names.
func showJSON(out io.Writer, yamlData []byte) error {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(yamlData, &doc); err != nil {
		return fmt.Errorf("failed to convert config: %w", err)
	}

	data, err := sonic.ConfigStd.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	_, err = fmt.Fprintln(out, string(data))
	return err
}

// runPath shows the configuration file search paths.
func (c *configCommand) runPath(out io.Writer) error {
	paths := []string{
		"./config.yaml",
		config.DefaultConfigPath(),
	}
	if env := os.Getenv(config.EnvConfigPath); env != "" {
		paths = append([]string{env + " ($" + config.EnvConfigPath + ")"}, paths...)
	}
	if c.opts.configPath != "" {
		paths = append([]string{c.opts.configPath + " (--config)"}, paths...)
	}

	fmt.Fprintln(out, "Configuration file search paths (in order of precedence):")
	fmt.Fprintln(out)

	for i, p := range paths {
		exists := "not found"
		if _, err := os.Stat(strings.SplitN(p, " (", 2)[0]); err == nil {
			exists = "found"
		}
		fmt.Fprintf(out, "  %d. %s [%s]\n", i+1, p, exists)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Active configuration:", c.configSource())
	return nil
}

// runInit writes the default configuration.
func (c *configCommand) runInit(in io.Reader, out io.Writer, outputPath string, force bool) error {
	if outputPath == "" {
		outputPath = config.DefaultConfigPath()
	}

	if _, err := os.Stat(outputPath); err == nil && !force {
		fmt.Fprintf(out, "Configuration file already exists at: %s\n", outputPath)
		fmt.Fprint(out, "Overwrite? [y/N]: ")

		response, _ := bufio.NewReader(in).ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(out, "Init cancelled.")
			return nil
		}
	}

	if err := config.Save(config.Default(), outputPath); err != nil {
		return err
	}

	fmt.Fprintf(out, "Default configuration written to: %s\n", outputPath)
	return nil
}

// configSource returns the path of the active configuration file.
func (c *configCommand) configSource() string {
	if p := config.NewLoader(c.opts.configPath).Path(); p != "" {
		return p
	}
	return "defaults (no config file found)"
}
