package tabschema

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oleg578/tabschema/internal/testutil"
)

type parseOutcome struct {
	lines []Line
	errs  []*ValidationError
	n     int
	err   error
}

func parseText(input string, schema *Schema, cfg Config) parseOutcome {
	var out parseOutcome
	out.n, out.err = Parse(strings.NewReader(input), schema, cfg,
		func(l Line) error {
			out.lines = append(out.lines, l)
			return nil
		},
		func(ve *ValidationError) error {
			out.errs = append(out.errs, ve)
			return nil
		})
	return out
}

func stringCells(names ...string) []*SchemaCell {
	cells := make([]*SchemaCell, len(names))
	for i, n := range names {
		cells[i] = &SchemaCell{Name: n}
	}
	return cells
}

func singleLine(sep string, cells ...*SchemaCell) *Schema {
	return &Schema{Lines: []*SchemaLine{{LineType: "L", CellSeparator: sep, Cells: cells}}}
}

func lineStrings(l Line) []string {
	out := make([]string, len(l.Cells))
	for i, c := range l.Cells {
		out[i] = c.Name + "=" + c.String()
	}
	return out
}

func lineTypes(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.LineType
	}
	return out
}

func TestParseSkipsBlankLines(t *testing.T) {
	t.Parallel()

	for _, sep := range []string{";", "||", ","} {
		input := strings.Join([]string{"a" + sep + "b", "   ", "", "\t", "c" + sep + "d", ""}, "\n")
		out := parseText(input, singleLine(sep, stringCells("x", "y")...), DefaultConfig())
		if out.err != nil {
			t.Fatalf("sep %q: Parse() error = %v", sep, out.err)
		}
		if out.n != 2 || len(out.lines) != 2 {
			t.Fatalf("sep %q: got %d lines (n=%d), want 2", sep, len(out.lines), out.n)
		}
		if out.lines[0].Number != 1 || out.lines[1].Number != 5 {
			t.Fatalf("sep %q: numbers = %d,%d, want 1,5", sep, out.lines[0].Number, out.lines[1].Number)
		}
		if len(out.errs) != 0 {
			t.Fatalf("sep %q: unexpected failures %v", sep, out.errs)
		}
	}
}

func TestParseComposeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "terminated", input: "a;b;c\nd;e;f\n", want: "a;b;c\nd;e;f\n"},
		{name: "unterminatedLastLine", input: "a;b;c\nd;e;f", want: "a;b;c\nd;e;f\n"},
		{name: "emptyCells", input: "a;;c\n;;\n", want: "a;;c\n;;\n"},
	}

	schema := singleLine(";", stringCells("c1", "c2", "c3")...)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := parseText(tc.input, schema, DefaultConfig())
			if out.err != nil {
				t.Fatalf("Parse() error = %v", out.err)
			}
			var buf bytes.Buffer
			w, err := NewWriter(&buf, schema)
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			if err := w.Compose(slices.Values(out.lines)); err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			if got := buf.String(); got != tc.want {
				t.Fatalf("round trip = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseQuoteSyntaxesAgree(t *testing.T) {
	t.Parallel()

	for _, syntax := range []QuoteSyntax{QuoteFirstLast, QuoteRFC4180} {
		schema := &Schema{Lines: []*SchemaLine{{
			LineType:      "L",
			CellSeparator: ";",
			QuoteChar:     '"',
			QuoteSyntax:   syntax,
			Cells:         stringCells("a", "b", "c", "d"),
		}}}
		out := parseText("A;B;;C\n", schema, DefaultConfig())
		if out.err != nil {
			t.Fatalf("%v: Parse() error = %v", syntax, out.err)
		}
		want := []string{"a=A", "b=B", "c=", "d=C"}
		if got := lineStrings(out.lines[0]); !slices.Equal(got, want) {
			t.Fatalf("%v: cells = %q, want %q", syntax, got, want)
		}
	}
}

func TestParseRFC4180Escaping(t *testing.T) {
	t.Parallel()

	schema := singleLine(";", stringCells("a", "b", "c")...)
	schema.Lines[0].QuoteChar = '"'
	cfg := DefaultConfig()
	cfg.QuoteSyntax = QuoteRFC4180

	out := parseText("A;\"\"\"B\"\"C\";D\n", schema, cfg)
	if out.err != nil {
		t.Fatalf("Parse() error = %v", out.err)
	}
	if got, _ := out.lines[0].Get("b"); got.Value != "\"B\"C" {
		t.Fatalf("cell b = %q, want %q", got.Value, "\"B\"C")
	}
}

func TestParseMandatoryWithDefault(t *testing.T) {
	t.Parallel()

	schema := singleLine(";",
		&SchemaCell{Name: "flag", Mandatory: true, Default: "yes"},
		&SchemaCell{Name: "other"},
	)
	out := parseText(";x\n", schema, DefaultConfig())
	if out.err != nil {
		t.Fatalf("Parse() error = %v", out.err)
	}
	flag, ok := out.lines[0].Get("flag")
	if !ok || flag.Value != "yes" || flag.Empty {
		t.Fatalf("flag = %+v, want value yes", flag)
	}
	if len(out.errs) != 1 || !errors.Is(out.errs[0], ErrMandatoryMissing) || out.errs[0].Cell != "flag" {
		t.Fatalf("failures = %v, want one mandatory failure for flag", out.errs)
	}
	if out.errs[0].Line != 1 {
		t.Fatalf("failure line = %d, want 1", out.errs[0].Line)
	}
}

func TestParseHeaderDrivenSchema(t *testing.T) {
	t.Parallel()

	schema := &Schema{Lines: []*SchemaLine{{
		LineType:          "person",
		CellSeparator:     ";",
		FirstLineAsSchema: true,
	}}}
	out := parseText("First Name;Last Name\nJonas;Stenberg", schema, DefaultConfig())
	if out.err != nil {
		t.Fatalf("Parse() error = %v", out.err)
	}
	if out.n != 1 || len(out.lines) != 1 {
		t.Fatalf("got %d lines (n=%d), want 1", len(out.lines), out.n)
	}
	l := out.lines[0]
	if l.Number != 1 {
		t.Fatalf("line number = %d, want 1", l.Number)
	}
	want := []string{"First Name=Jonas", "Last Name=Stenberg"}
	if got := lineStrings(l); !slices.Equal(got, want) {
		t.Fatalf("cells = %q, want %q", got, want)
	}
	if schema.Lines[0].Cells != nil || !schema.Lines[0].FirstLineAsSchema {
		t.Fatalf("schema line was modified by the header")
	}
}

func headerSchema() *Schema {
	return &Schema{Lines: []*SchemaLine{{
		LineType:          "row",
		CellSeparator:     ";",
		FirstLineAsSchema: true,
		Cells: []*SchemaCell{
			{Name: "id", Type: CellInteger},
			{Name: "name", Mandatory: true},
			{Name: "country", Default: "SE"},
		},
	}}}
}

func TestParseHeaderReusesDeclaredCells(t *testing.T) {
	t.Parallel()

	out := parseText("name; id ;extra;\nbob;7;x;ignored\n", headerSchema(), DefaultConfig())
	if out.err != nil {
		t.Fatalf("Parse() error = %v", out.err)
	}
	if len(out.errs) != 0 {
		t.Fatalf("unexpected failures %v", out.errs)
	}
	l := out.lines[0]
	want := []string{"name=bob", "id=7", "extra=x", "country=SE"}
	if got := lineStrings(l); !slices.Equal(got, want) {
		t.Fatalf("cells = %q, want %q", got, want)
	}
	if id, _ := l.Get("id"); id.Value != int64(7) {
		t.Fatalf("id = %#v, want int64(7)", id.Value)
	}
}

func TestParseHeaderMissingMandatory(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.OnLineInsufficient = ActionError
	out := parseText("id\n7\n8\n", headerSchema(), cfg)
	if out.err != nil {
		t.Fatalf("Parse() error = %v", out.err)
	}
	if len(out.errs) != 1 || !errors.Is(out.errs[0], ErrMandatoryMissing) || out.errs[0].Cell != "name" {
		t.Fatalf("failures = %v, want one missing mandatory name", out.errs)
	}
	if len(out.lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(out.lines))
	}
	want := []string{"id=7", "country=SE"}
	if got := lineStrings(out.lines[0]); !slices.Equal(got, want) {
		t.Fatalf("cells = %q, want %q", got, want)
	}

	cfg.OnLineInsufficient = ActionException
	out = parseText("id\n7\n", headerSchema(), cfg)
	var ve *ValidationError
	if !errors.As(out.err, &ve) || !errors.Is(ve, ErrMandatoryMissing) {
		t.Fatalf("Parse() error = %v, want mandatory ValidationError", out.err)
	}
	if out.n != 0 {
		t.Fatalf("n = %d, want 0", out.n)
	}
}

func TestParseInsufficientPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		action    ValidationAction
		third     *SchemaCell
		wantCells []string
		wantErrs  int
		wantErr   error
	}{
		{
			name:      "noneUsesDefault",
			action:    ActionNone,
			third:     &SchemaCell{Name: "c", Default: "z"},
			wantCells: []string{"a=1", "b=2", "c=z"},
		},
		{
			name:      "noneUsesEmpty",
			action:    ActionNone,
			third:     &SchemaCell{Name: "c"},
			wantCells: []string{"a=1", "b=2", "c="},
		},
		{
			name:      "errorReports",
			action:    ActionError,
			third:     &SchemaCell{Name: "c", Default: "z"},
			wantCells: []string{"a=1", "b=2", "c=z"},
			wantErrs:  1,
		},
		{
			name:    "exceptionAborts",
			action:  ActionException,
			third:   &SchemaCell{Name: "c"},
			wantErr: ErrInsufficientCells,
		},
		{
			name:   "ignoreLineDrops",
			action: ActionIgnoreLine,
			third:  &SchemaCell{Name: "c"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			schema := singleLine(";", &SchemaCell{Name: "a"}, &SchemaCell{Name: "b"}, tc.third)
			cfg := DefaultConfig()
			cfg.OnLineInsufficient = tc.action
			out := parseText("1;2\n", schema, cfg)

			if tc.wantErr != nil {
				if !errors.Is(out.err, tc.wantErr) {
					t.Fatalf("Parse() error = %v, want %v", out.err, tc.wantErr)
				}
				if len(out.lines) != 0 {
					t.Fatalf("got %d lines after abort", len(out.lines))
				}
				return
			}
			if out.err != nil {
				t.Fatalf("Parse() error = %v", out.err)
			}
			if len(out.errs) != tc.wantErrs {
				t.Fatalf("failures = %v, want %d", out.errs, tc.wantErrs)
			}
			for _, ve := range out.errs {
				if !errors.Is(ve, ErrInsufficientCells) || ve.Cell != "c" {
					t.Fatalf("failure = %v, want insufficient cell c", ve)
				}
			}
			if tc.wantCells == nil {
				if len(out.lines) != 0 || out.n != 0 {
					t.Fatalf("got %d lines, want the line dropped", len(out.lines))
				}
				return
			}
			if got := lineStrings(out.lines[0]); !slices.Equal(got, tc.wantCells) {
				t.Fatalf("cells = %q, want %q", got, tc.wantCells)
			}
		})
	}
}

func TestParseOverflowPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		action   ValidationAction
		wantErrs int
		abort    bool
	}{
		{name: "none", action: ActionNone},
		{name: "error", action: ActionError, wantErrs: 2},
		{name: "ignoreLineReports", action: ActionIgnoreLine, wantErrs: 2},
		{name: "exception", action: ActionException, abort: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			cfg.OnLineOverflow = tc.action
			out := parseText("1;2;3\n", singleLine(";", &SchemaCell{Name: "a"}), cfg)
			if tc.abort {
				if !errors.Is(out.err, ErrCellOverflow) {
					t.Fatalf("Parse() error = %v, want ErrCellOverflow", out.err)
				}
				return
			}
			if out.err != nil {
				t.Fatalf("Parse() error = %v", out.err)
			}
			want := []string{"a=1", "@@cell-2=2", "@@cell-3=3"}
			if got := lineStrings(out.lines[0]); !slices.Equal(got, want) {
				t.Fatalf("cells = %q, want %q", got, want)
			}
			if len(out.errs) != tc.wantErrs {
				t.Fatalf("failures = %v, want %d", out.errs, tc.wantErrs)
			}
			for _, ve := range out.errs {
				if !errors.Is(ve, ErrCellOverflow) {
					t.Fatalf("failure = %v, want overflow", ve)
				}
			}
		})
	}
}

func TestParseUndefinedLineType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		action      ValidationAction
		wantNumbers []int
		wantErrs    int
		abort       bool
	}{
		{name: "none", action: ActionNone, wantNumbers: []int{1, 3}},
		{name: "error", action: ActionError, wantNumbers: []int{1, 3}, wantErrs: 1},
		{name: "ignoreLine", action: ActionIgnoreLine, wantNumbers: []int{1, 3}},
		{name: "exception", action: ActionException, wantNumbers: []int{1}, abort: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			schema := &Schema{Lines: []*SchemaLine{typeLine("A", "N")}}
			cfg := DefaultConfig()
			cfg.OnUndefinedLineType = tc.action
			out := parseText("N;1\nX;\"2\nN;3\n", schema, cfg)

			if tc.abort != errors.Is(out.err, ErrUndefinedLineType) {
				t.Fatalf("Parse() error = %v, abort = %v", out.err, tc.abort)
			}
			if !tc.abort && out.err != nil {
				t.Fatalf("Parse() error = %v", out.err)
			}
			var numbers []int
			for _, l := range out.lines {
				numbers = append(numbers, l.Number)
			}
			if !slices.Equal(numbers, tc.wantNumbers) {
				t.Fatalf("line numbers = %v, want %v", numbers, tc.wantNumbers)
			}
			if len(out.errs) != tc.wantErrs {
				t.Fatalf("failures = %v, want %d", out.errs, tc.wantErrs)
			}
			if tc.wantErrs > 0 && out.errs[0].Line != 2 {
				t.Fatalf("failure line = %d, want 2", out.errs[0].Line)
			}
		})
	}
}

func TestParseDispatcherReordering(t *testing.T) {
	t.Parallel()

	schema := &Schema{Lines: []*SchemaLine{typeLine("A", "N"), typeLine("B", "A")}}
	out := parseText("A;1\nA;2\nA;3\nN;4\nA;5\nN;6\n", schema, DefaultConfig())
	if out.err != nil {
		t.Fatalf("Parse() error = %v", out.err)
	}
	want := []string{"B", "B", "B", "A", "B", "A"}
	if got := lineTypes(out.lines); !slices.Equal(got, want) {
		t.Fatalf("line types = %v, want %v", got, want)
	}
	if len(out.errs) != 0 {
		t.Fatalf("unexpected failures %v", out.errs)
	}
}

func TestParseOccurs(t *testing.T) {
	t.Parallel()

	schema := &Schema{Lines: []*SchemaLine{
		{LineType: "H", CellSeparator: ";", Occurs: 1},
		{LineType: "D", CellSeparator: ";", Occurs: OccursInfinite},
	}}
	out := parseText("h;1\nd;2\nd;3\n", schema, DefaultConfig())
	if out.err != nil {
		t.Fatalf("Parse() error = %v", out.err)
	}
	if got, want := lineTypes(out.lines), []string{"H", "D", "D"}; !slices.Equal(got, want) {
		t.Fatalf("line types = %v, want %v", got, want)
	}
}

func TestParseInputAfterLastSchemaLine(t *testing.T) {
	t.Parallel()

	schema := &Schema{Lines: []*SchemaLine{{LineType: "once", CellSeparator: ";", Occurs: 1}}}

	out := parseText("a\nb\nc\n", schema, DefaultConfig())
	if out.err != nil {
		t.Fatalf("Parse() error = %v", out.err)
	}
	if out.n != 1 {
		t.Fatalf("n = %d, want 1", out.n)
	}
	if len(out.errs) != 1 || !errors.Is(out.errs[0], ErrNoSchemaLine) || out.errs[0].Line != 2 {
		t.Fatalf("failures = %v, want one ErrNoSchemaLine on line 2", out.errs)
	}

	cfg := DefaultConfig()
	cfg.OnUndefinedLineType = ActionException
	out = parseText("a\nb\n", schema, cfg)
	if !errors.Is(out.err, ErrNoSchemaLine) {
		t.Fatalf("Parse() error = %v, want ErrNoSchemaLine", out.err)
	}

	out = parseText("a\n\n\n", schema, DefaultConfig())
	if out.err != nil || len(out.errs) != 0 {
		t.Fatalf("trailing blank lines: err = %v, failures = %v", out.err, out.errs)
	}
}

func TestParseCellConversion(t *testing.T) {
	t.Parallel()

	schema := singleLine(";",
		&SchemaCell{Name: "qty", Type: CellInteger, Min: "1", Max: "10"},
		&SchemaCell{Name: "price", Type: CellDecimal, Locale: "de"},
		&SchemaCell{Name: "when", Type: CellDate, Pattern: "dd.MM.yyyy"},
		&SchemaCell{Name: "ok", Type: CellBoolean, Pattern: "yes|Y;no|N"},
		&SchemaCell{Name: "code", Type: CellEnum, Pattern: "A|B"},
		&SchemaCell{Name: "ch", Type: CellCharacter},
		&SchemaCell{Name: "note", MaxLength: 3},
		&SchemaCell{Name: "ratio", Type: CellFloat},
		&SchemaCell{Name: "count", Type: CellInteger, EmptyPattern: "NULL|-", Default: "0"},
	)
	out := parseText("11;1.234,5;24.12.2023;Y;B;x;abcdef;0.25;NULL\n", schema, DefaultConfig())
	if out.err != nil {
		t.Fatalf("Parse() error = %v", out.err)
	}
	l := out.lines[0]

	check := func(name string, want any) {
		t.Helper()
		c, ok := l.Get(name)
		if !ok {
			t.Fatalf("cell %s missing", name)
		}
		if d, isDec := want.(decimal.Decimal); isDec {
			got, ok := c.Value.(decimal.Decimal)
			if !ok || !got.Equal(d) {
				t.Fatalf("cell %s = %#v, want %s", name, c.Value, d)
			}
			return
		}
		if tm, isTime := want.(time.Time); isTime {
			got, ok := c.Value.(time.Time)
			if !ok || !got.Equal(tm) {
				t.Fatalf("cell %s = %#v, want %s", name, c.Value, tm)
			}
			return
		}
		if c.Value != want {
			t.Fatalf("cell %s = %#v, want %#v", name, c.Value, want)
		}
	}
	check("qty", int64(11))
	check("price", decimal.RequireFromString("1234.5"))
	check("when", time.Date(2023, 12, 24, 0, 0, 0, 0, time.UTC))
	check("ok", true)
	check("code", "B")
	check("ch", 'x')
	check("note", "abc")
	check("ratio", 0.25)
	check("count", int64(0))

	if len(out.errs) != 1 || !errors.Is(out.errs[0], ErrRange) || out.errs[0].Cell != "qty" {
		t.Fatalf("failures = %v, want one range failure for qty", out.errs)
	}
}

func TestParseFormatFailure(t *testing.T) {
	t.Parallel()

	schema := singleLine(";",
		&SchemaCell{Name: "qty", Type: CellInteger},
		&SchemaCell{Name: "code", Pattern: `[A-Z]{2}\d`},
		&SchemaCell{Name: "n", Type: CellInteger, Default: "5"},
	)
	out := parseText("abc;ab1;x\n", schema, DefaultConfig())
	if out.err != nil {
		t.Fatalf("Parse() error = %v", out.err)
	}
	if len(out.errs) != 3 {
		t.Fatalf("failures = %v, want 3", out.errs)
	}
	first := out.errs[0]
	if !errors.Is(first, ErrFormat) || first.Cell != "qty" || first.Value != "abc" || first.Format != "integer" {
		t.Fatalf("failure = %+v", first)
	}
	if qty, _ := out.lines[0].Get("qty"); !qty.Empty {
		t.Fatalf("qty = %+v, want empty", qty)
	}
	if n, _ := out.lines[0].Get("n"); n.Value != int64(5) {
		t.Fatalf("n = %#v, want default 5", n.Value)
	}
	if out.n != 1 {
		t.Fatalf("n = %d, want 1", out.n)
	}
}

func TestParseStructuralErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		quote    rune
		maxLen   int
		wantErr  error
		wantLine int
	}{
		{
			name:     "lineTooLong",
			input:    "ok\nabcdefghijk\n",
			maxLen:   8,
			wantErr:  ErrLineTooLong,
			wantLine: 2,
		},
		{
			name:     "unterminatedQuote",
			input:    "a;\"bc\n",
			quote:    '"',
			wantErr:  ErrUnterminatedQuote,
			wantLine: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			schema := singleLine(";")
			schema.Lines[0].QuoteChar = tc.quote
			cfg := DefaultConfig()
			cfg.MaxLineLength = tc.maxLen
			out := parseText(tc.input, schema, cfg)

			var perr *ParseError
			if !errors.As(out.err, &perr) {
				t.Fatalf("Parse() error = %v, want *ParseError", out.err)
			}
			if !errors.Is(perr, tc.wantErr) {
				t.Fatalf("ParseError.Err = %v, want %v", perr.Err, tc.wantErr)
			}
			if perr.Line != tc.wantLine {
				t.Fatalf("ParseError.Line = %d, want %d", perr.Line, tc.wantLine)
			}
		})
	}
}

func TestParseStructuralErrorsWithConditionalLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		maxLen   int
		wantErr  error
		wantLine int
	}{
		{
			name:     "unterminatedQuoteAtEOF",
			input:    "A;ok\nA;\"bc",
			wantErr:  ErrUnterminatedQuote,
			wantLine: 2,
		},
		{
			name:     "lineTooLong",
			input:    "A;ok\nA;abcdefghijk\n",
			maxLen:   8,
			wantErr:  ErrLineTooLong,
			wantLine: 2,
		},
	}

	for _, tc := range tests {
		for _, action := range []ValidationAction{ActionNone, ActionError} {
			t.Run(tc.name+"/"+action.String(), func(t *testing.T) {
				t.Parallel()

				schema := singleLine(";")
				schema.Lines[0].QuoteChar = '"'
				schema.Lines[0].Condition = CellEquals{Position: 0, Value: "A"}
				cfg := DefaultConfig()
				cfg.OnUndefinedLineType = action
				cfg.MaxLineLength = tc.maxLen
				out := parseText(tc.input, schema, cfg)

				var perr *ParseError
				if !errors.As(out.err, &perr) {
					t.Fatalf("Parse() error = %v, failures = %v, want *ParseError", out.err, out.errs)
				}
				if !errors.Is(perr, tc.wantErr) {
					t.Fatalf("ParseError.Err = %v, want %v", perr.Err, tc.wantErr)
				}
				if perr.Line != tc.wantLine {
					t.Fatalf("ParseError.Line = %d, want %d", perr.Line, tc.wantLine)
				}
				if len(out.errs) != 0 {
					t.Fatalf("failures = %v, want none", out.errs)
				}
				if out.n != 1 {
					t.Fatalf("n = %d, want 1", out.n)
				}
			})
		}
	}
}

func TestParseMaxLineLengthBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      string
		wantErr    bool
		wantColumn int
	}{
		{name: "atLimit", input: "abcdefgh\n"},
		{name: "atLimitCRLF", input: "abcdefgh\r\n"},
		{name: "atLimitEOF", input: "abcdefgh"},
		{name: "overLimit", input: "abcdefghi\n", wantErr: true, wantColumn: 9},
		{name: "farOverLimit", input: strings.Repeat("x", 40) + "\n", wantErr: true, wantColumn: 9},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			cfg.MaxLineLength = 8
			out := parseText(tc.input, singleLine(";", &SchemaCell{Name: "s"}), cfg)

			if !tc.wantErr {
				if out.err != nil || out.n != 1 {
					t.Fatalf("Parse() = %d, %v; want 1, nil", out.n, out.err)
				}
				if s, _ := out.lines[0].Get("s"); s.Value != "abcdefgh" {
					t.Fatalf("s = %q, want %q", s.Value, "abcdefgh")
				}
				return
			}
			var perr *ParseError
			if !errors.As(out.err, &perr) || !errors.Is(perr, ErrLineTooLong) {
				t.Fatalf("Parse() error = %v, want ErrLineTooLong", out.err)
			}
			if perr.Column != tc.wantColumn {
				t.Fatalf("ParseError.Column = %d, want %d", perr.Column, tc.wantColumn)
			}
		})
	}
}

func TestParseSinkErrorsAbort(t *testing.T) {
	t.Parallel()

	stop := errors.New("stop")
	schema := singleLine(";", &SchemaCell{Name: "n", Type: CellInteger})

	n, err := Parse(strings.NewReader("1\n2\n"), schema, DefaultConfig(),
		func(Line) error { return stop }, nil)
	if !errors.Is(err, stop) || n != 0 {
		t.Fatalf("line sink: n = %d, err = %v", n, err)
	}

	n, err = Parse(strings.NewReader("x\n2\n"), schema, DefaultConfig(),
		nil, func(*ValidationError) error { return stop })
	if !errors.Is(err, stop) || n != 0 {
		t.Fatalf("error sink: n = %d, err = %v", n, err)
	}
}

func TestParseNilSinks(t *testing.T) {
	t.Parallel()

	n, err := Parse(strings.NewReader("1\nx\n3\n"), singleLine(";", &SchemaCell{Name: "n", Type: CellInteger}), Config{}, nil, nil)
	if err != nil || n != 3 {
		t.Fatalf("Parse() = %d, %v; want 3, nil", n, err)
	}
}

func TestParseLogsFailuresWithoutErrorSink(t *testing.T) {
	t.Parallel()

	var logged bytes.Buffer
	cfg := DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&logged, nil))

	n, err := Parse(strings.NewReader("1\nx\n"), singleLine(";", &SchemaCell{Name: "n", Type: CellInteger}), cfg, nil, nil)
	if err != nil || n != 2 {
		t.Fatalf("Parse() = %d, %v; want 2, nil", n, err)
	}
	out := logged.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "line=2") || !strings.Contains(out, "cell=n") {
		t.Fatalf("unexpected log output %q", out)
	}

	cfg.Logger = testutil.NewTestLogger(t)
	if out := parseText("name;id\nbob;1\n", headerSchema(), cfg); out.err != nil || len(out.lines) != 1 {
		t.Fatalf("Parse() with debug logging = %d lines, %v", len(out.lines), out.err)
	}
}

func TestParserConcurrentUse(t *testing.T) {
	t.Parallel()

	p, err := NewParser(headerSchema(), DefaultConfig())
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			input := "name;id;extra\nbob;" + strings.Repeat("1", i+1) + ";x\n"
			var names []string
			n, err := p.Parse(strings.NewReader(input), func(l Line) error {
				names = append(names, lineStrings(l)...)
				return nil
			}, nil)
			if err != nil || n != 1 {
				t.Errorf("worker %d: Parse() = %d, %v", i, n, err)
				return
			}
			if len(names) != 4 || names[2] != "extra=x" {
				t.Errorf("worker %d: cells = %q", i, names)
			}
		}()
	}
	wg.Wait()
}

func TestNewParserInvalidSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		schema *Schema
	}{
		{name: "nil", schema: nil},
		{name: "noLines", schema: &Schema{}},
		{name: "noSeparator", schema: &Schema{Lines: []*SchemaLine{{LineType: "L"}}}},
		{name: "separatorInLineSeparator", schema: &Schema{LineSeparator: "\r\n", Lines: []*SchemaLine{{LineType: "L", CellSeparator: "\n"}}}},
		{name: "duplicateCell", schema: singleLine(";", &SchemaCell{Name: "a"}, &SchemaCell{Name: "a"})},
		{name: "badDefault", schema: singleLine(";", &SchemaCell{Name: "a", Type: CellInteger, Default: "x"})},
		{name: "badPattern", schema: singleLine(";", &SchemaCell{Name: "a", Pattern: "("})},
		{name: "enumWithoutValues", schema: singleLine(";", &SchemaCell{Name: "a", Type: CellEnum})},
		{name: "badLocale", schema: singleLine(";", &SchemaCell{Name: "a", Type: CellFloat, Locale: "!!"})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := NewParser(tc.schema, Config{}); !errors.Is(err, ErrInvalidSchema) {
				t.Fatalf("NewParser() error = %v, want ErrInvalidSchema", err)
			}
		})
	}
}
