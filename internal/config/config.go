// Package config loads the tabschema command configuration.
//
// Values are layered, lowest priority first: built-in defaults, the YAML
// config file, TABSCHEMA_ environment variables and explicitly set flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/oleg578/tabschema"
)

// Defaults applied before any other source.
const (
	DefaultEncoding      = "utf-8"
	DefaultAction        = "error"
	DefaultQuoteSyntax   = "first_last"
	DefaultMaxLineLength = 8192
	DefaultOutput        = "table"
	DefaultDatabase      = "tabschema.db"
)

const envPrefix = "TABSCHEMA_"

// configFileNames are looked up in the working directory when no config
// file is named explicitly.
var configFileNames = []string{"tabschema.yaml", "tabschema.yml"}

// Config holds every setting of the tabschema command.
type Config struct {
	Schema              string `koanf:"schema"`
	Encoding            string `koanf:"encoding"`
	OnUndefinedLineType string `koanf:"on_undefined_line_type"`
	OnLineInsufficient  string `koanf:"on_line_insufficient"`
	OnLineOverflow      string `koanf:"on_line_overflow"`
	QuoteSyntax         string `koanf:"quote_syntax"`
	MaxLineLength       int    `koanf:"max_line_length"`
	Output              string `koanf:"output"`
	Database            string `koanf:"database"`
	Verbose             bool   `koanf:"verbose"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// Load builds the configuration from defaults, cfgFile (or a tabschema.yaml
// in the working directory), the environment and the changed flags in flags.
// A nil flags is allowed.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"encoding":               DefaultEncoding,
		"on_undefined_line_type": DefaultAction,
		"on_line_insufficient":   DefaultAction,
		"on_line_overflow":       DefaultAction,
		"quote_syntax":           DefaultQuoteSyntax,
		"max_line_length":        DefaultMaxLineLength,
		"output":                 DefaultOutput,
		"database":               DefaultDatabase,
		"verbose":                false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// TABSCHEMA_MAX_LINE_LENGTH -> max_line_length
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used
	return &cfg, nil
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range configFileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Validate checks the values that cannot be checked by their consumers alone.
func (c *Config) Validate() error {
	var errs []error
	if c.MaxLineLength <= 0 {
		errs = append(errs, fmt.Errorf("max_line_length must be positive, got %d", c.MaxLineLength))
	}
	switch c.Output {
	case "table", "json", "lines":
	default:
		errs = append(errs, fmt.Errorf("output must be one of table, json, lines; got %q", c.Output))
	}
	if _, err := c.ParserConfig(nil); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParserConfig converts the policy settings into a tabschema.Config that
// logs through logger.
func (c *Config) ParserConfig(logger *slog.Logger) (tabschema.Config, error) {
	pc := tabschema.Config{
		MaxLineLength: c.MaxLineLength,
		Logger:        logger,
	}
	var err error
	if pc.OnUndefinedLineType, err = tabschema.ParseValidationAction(c.OnUndefinedLineType); err != nil {
		return pc, fmt.Errorf("on_undefined_line_type: %w", err)
	}
	if pc.OnLineInsufficient, err = tabschema.ParseValidationAction(c.OnLineInsufficient); err != nil {
		return pc, fmt.Errorf("on_line_insufficient: %w", err)
	}
	if pc.OnLineOverflow, err = tabschema.ParseValidationAction(c.OnLineOverflow); err != nil {
		return pc, fmt.Errorf("on_line_overflow: %w", err)
	}
	if pc.QuoteSyntax, err = tabschema.ParseQuoteSyntax(c.QuoteSyntax); err != nil {
		return pc, fmt.Errorf("quote_syntax: %w", err)
	}
	return pc, nil
}
