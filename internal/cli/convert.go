package cli

import (
	"context"
	"fmt"
	"runtime"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oleg578/tabschema"
)

// NewConvertCommand creates the convert command.
func NewConvertCommand() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "convert --to schema.yaml [file...]",
		Short: "Re-compose delimited text with another schema",
		Long: `Parse every input with the schema and write the records to standard
output using the target schema, whose line types must match. Inputs are
parsed concurrently and written in the order given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args, target)
		},
	}
	cmd.Flags().StringVar(&target, "to", "", "target YAML schema (default: the input schema)")
	return cmd
}

func runConvert(cmd *cobra.Command, args []string, target string) error {
	ctx := cmd.Context()
	cfg := getConfig(ctx)
	logger := getLogger(ctx)

	src, err := loadSchema(cfg, "")
	if err != nil {
		return err
	}
	dst := src
	if target != "" {
		if dst, err = loadSchema(cfg, target); err != nil {
			return err
		}
	}
	pc, err := cfg.ParserConfig(logger)
	if err != nil {
		return err
	}
	p, err := tabschema.NewParser(src, pc)
	if err != nil {
		return err
	}
	names, err := inputNames(args)
	if err != nil {
		return err
	}

	results := make([]*parsedInput, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			res, err := parseAll(gctx, p, name, cmd, cfg.Encoding)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failures := 0
	lines := make([][]tabschema.Line, len(results))
	for i, res := range results {
		for _, ve := range res.failures.Errors() {
			failures++
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", res.name, ve)
		}
		lines[i] = res.lines
	}

	w, err := tabschema.NewWriter(cmd.OutOrStdout(), dst)
	if err != nil {
		return err
	}
	if err := w.Compose(slices.Values(slices.Concat(lines...))); err != nil {
		return err
	}
	if failures > 0 {
		return fmt.Errorf("%w: %d failures", ErrValidationFailed, failures)
	}
	return nil
}

// parsedInput is what one input yielded.
type parsedInput struct {
	name     string
	lines    []tabschema.Line
	failures tabschema.ErrorCollector
}

// parseAll collects the lines of one input, stopping early once ctx is done.
func parseAll(ctx context.Context, p *tabschema.Parser, name string, cmd *cobra.Command, charset string) (*parsedInput, error) {
	in, err := openInput(name, cmd.InOrStdin(), charset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close() }()

	res := &parsedInput{name: in.name}
	_, err = p.Parse(in, func(l tabschema.Line) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		res.lines = append(res.lines, l)
		return nil
	}, res.failures.Collect)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in.name, err)
	}
	getLogger(cmd.Context()).Debug("parsed input", "input", in.name, "lines", len(res.lines))
	return res, nil
}
