package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/oleg578/tabschema"
)

// ErrValidationFailed is returned by commands whose inputs had reported
// validation failures.
var ErrValidationFailed = errors.New("validation failed")

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse [file...]",
		Short: "Parse and validate delimited text",
		Long: `Parse every input (standard input when none or "-" is given) with the
schema and print the typed records. Validation failures are written to
standard error and make the command fail once all inputs are read.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args)
		},
	}
	cmd.Flags().StringP("output", "o", "", "output format (table|json|lines)")
	_ = cmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "lines"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfig(ctx)
	logger := getLogger(ctx)

	schema, err := loadSchema(cfg, "")
	if err != nil {
		return err
	}
	pc, err := cfg.ParserConfig(logger)
	if err != nil {
		return err
	}
	p, err := tabschema.NewParser(schema, pc)
	if err != nil {
		return err
	}
	names, err := inputNames(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var emit tabschema.LineFunc
	var tables *tableRenderer
	switch cfg.Output {
	case "json":
		enc := json.NewEncoder(out)
		emit = func(l tabschema.Line) error { return enc.Encode(jsonLine(l)) }
	case "lines":
		emit = func(l tabschema.Line) error {
			_, err := fmt.Fprintln(out, l)
			return err
		}
	default:
		tables = &tableRenderer{}
		emit = tables.add
	}

	failures := 0
	for _, name := range names {
		in, err := openInput(name, cmd.InOrStdin(), cfg.Encoding)
		if err != nil {
			return err
		}
		n, err := p.Parse(in, emit, func(ve *tabschema.ValidationError) error {
			failures++
			_, err := fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", in.name, ve)
			return err
		})
		_ = in.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", in.name, err)
		}
		logger.Debug("parsed input", "input", in.name, "lines", n)
	}

	if tables != nil {
		tables.render(out)
	}
	if failures > 0 {
		return fmt.Errorf("%w: %d failures", ErrValidationFailed, failures)
	}
	return nil
}

type jsonCell struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

type jsonRecord struct {
	LineType string     `json:"line_type"`
	Number   int        `json:"line"`
	Cells    []jsonCell `json:"cells"`
}

func jsonLine(l tabschema.Line) jsonRecord {
	rec := jsonRecord{LineType: l.LineType, Number: l.Number, Cells: make([]jsonCell, len(l.Cells))}
	for i, c := range l.Cells {
		jc := jsonCell{Name: c.Name, Type: c.Type.String()}
		switch v := c.Value.(type) {
		case nil:
		case int64, float64, bool:
			jc.Value = v
		default:
			jc.Value = c.String()
		}
		if c.Empty {
			jc.Value = nil
		}
		rec.Cells[i] = jc
	}
	return rec
}

// tableRenderer groups lines by line type and renders one table per type,
// with the columns of the first line of that type.
type tableRenderer struct {
	order  []string
	groups map[string][]tabschema.Line
}

func (r *tableRenderer) add(l tabschema.Line) error {
	if r.groups == nil {
		r.groups = make(map[string][]tabschema.Line)
	}
	if _, ok := r.groups[l.LineType]; !ok {
		r.order = append(r.order, l.LineType)
	}
	r.groups[l.LineType] = append(r.groups[l.LineType], l)
	return nil
}

func (r *tableRenderer) render(w io.Writer) {
	if len(r.order) == 0 {
		_, _ = fmt.Fprintln(w, "(0 lines)")
		return
	}
	for _, lt := range r.order {
		lines := r.groups[lt]

		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.SetTitle("%s", lt)

		cols := make([]string, len(lines[0].Cells))
		header := table.Row{"#"}
		for i, c := range lines[0].Cells {
			cols[i] = c.Name
			header = append(header, c.Name)
		}
		t.AppendHeader(header)

		for _, l := range lines {
			row := table.Row{strconv.Itoa(l.Number)}
			for _, col := range cols {
				c, _ := l.Get(col)
				row = append(row, c.String())
			}
			t.AppendRow(row)
		}
		t.Render()
		_, _ = fmt.Fprintf(w, "(%d lines)\n", len(lines))
	}
}
