// Package cli provides the tabschema command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/oleg578/tabschema"
	"github.com/oleg578/tabschema/internal/config"
	"github.com/oleg578/tabschema/schemayaml"
)

// Version is set at build time.
var Version = "0.1.0"

type configKey struct{}

type loggerKey struct{}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "tabschema",
		Short: "Schema driven reader and writer for delimited text",
		Long: `tabschema reads delimited text files with a YAML schema, validates
every line and cell, and writes the typed records as tables, JSON,
re-composed text or SQLite rows.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			if cfg.File != "" {
				logger.Debug("using config file", "path", cfg.File)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = context.WithValue(ctx, configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./tabschema.yaml)")
	pf.StringP("schema", "s", "", "YAML schema file")
	pf.String("encoding", "", "input character encoding, e.g. utf-8, windows-1252, iso-8859-1")
	pf.String("on-undefined-line-type", "", "action for lines no schema line matches (none|error|exception|ignore_line)")
	pf.String("on-line-insufficient", "", "action for lines with missing cells (none|error|exception|ignore_line)")
	pf.String("on-line-overflow", "", "action for lines with extra cells (none|error|exception)")
	pf.String("quote-syntax", "", "quote syntax for lines that do not set one (first_last|rfc4180)")
	pf.Int("max-line-length", 0, "maximum line length in characters")
	pf.BoolP("verbose", "v", false, "verbose output")

	actions := func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"none", "error", "exception", "ignore_line"}, cobra.ShellCompDirectiveNoFileComp
	}
	for _, name := range []string{"on-undefined-line-type", "on-line-insufficient", "on-line-overflow"} {
		_ = rootCmd.RegisterFlagCompletionFunc(name, actions)
	}

	rootCmd.AddCommand(NewVersionCommand(Version))
	rootCmd.AddCommand(NewParseCommand())
	rootCmd.AddCommand(NewConvertCommand())
	rootCmd.AddCommand(NewLoadCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func getConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return &config.Config{}
}

func getLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// loadSchema reads the schema named by path, falling back to the schema
// config key.
func loadSchema(cfg *config.Config, path string) (*tabschema.Schema, error) {
	if path == "" {
		path = cfg.Schema
	}
	if path == "" {
		return nil, fmt.Errorf("no schema given: use --schema or the schema config key")
	}
	return schemayaml.Load(path)
}
