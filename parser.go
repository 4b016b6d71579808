package tabschema

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"
)

// LineFunc receives every parsed line in input order. A non-nil error ends
// the parse.
type LineFunc func(Line) error

// ErrorFunc receives every reported validation failure. A non-nil error ends
// the parse.
type ErrorFunc func(*ValidationError) error

// Config carries the parse policies. The zero Config is usable: it applies
// ActionNone everywhere, QuoteFirstLast and the default line length limit.
type Config struct {
	// OnUndefinedLineType applies when no schema line matches an input line
	// and when input remains after every schema line has been used up.
	OnUndefinedLineType ValidationAction
	// OnLineInsufficient applies per schema cell missing from a line and per
	// mandatory cell missing from a header line.
	OnLineInsufficient ValidationAction
	// OnLineOverflow applies per cell beyond the schema line's cells.
	OnLineOverflow ValidationAction
	// QuoteSyntax is used by schema lines that leave theirs at QuoteDefault.
	QuoteSyntax QuoteSyntax
	// MaxLineLength bounds a physical line in runes, its terminator
	// excluded. Default is 8192.
	MaxLineLength int
	// Logger receives debug events and, without an ErrorFunc, validation
	// failures. Nil discards.
	Logger *slog.Logger
}

// DefaultConfig reports undefined lines and accepts short and long lines.
func DefaultConfig() Config {
	return Config{
		OnUndefinedLineType: ActionError,
		QuoteSyntax:         QuoteFirstLast,
		MaxLineLength:       defaultMaxLineLength,
	}
}

// Parser parses text against one schema. It is safe for concurrent use; each
// Parse call keeps its own state.
type Parser struct {
	schema  *Schema
	cfg     Config
	logger  *slog.Logger
	formats map[*SchemaCell]*cellFormat
}

// NewParser validates schema and compiles its cell formats.
func NewParser(schema *Schema, cfg Config) (*Parser, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = defaultMaxLineLength
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	formats, err := compileSchema(schema)
	if err != nil {
		return nil, err
	}
	return &Parser{schema: schema, cfg: cfg, logger: logger, formats: formats}, nil
}

func compileSchema(schema *Schema) (map[*SchemaCell]*cellFormat, error) {
	formats := make(map[*SchemaCell]*cellFormat)
	for _, l := range schema.Lines {
		for _, c := range l.Cells {
			f, err := compileCell(c, schema.locale())
			if err != nil {
				return nil, err
			}
			formats[c] = f
		}
	}
	return formats, nil
}

// Parse reads src to the end, handing each line to onLine and each reported
// failure to onError. Either sink may be nil. It returns the number of lines
// handed to onLine.
func (p *Parser) Parse(src io.Reader, onLine LineFunc, onError ErrorFunc) (int, error) {
	if src == nil {
		return 0, errors.New("tabschema: parse source cannot be nil")
	}
	rr, ok := src.(io.RuneReader)
	if !ok {
		rr = bufio.NewReader(src)
	}
	lineSep := p.schema.lineSeparator()
	// Room for the terminator, plus the '\r' of a CRLF ending.
	buf := newReadBuffer(rr, p.cfg.MaxLineLength+utf8.RuneCountInString(lineSep)+1)
	tok := newTokenizer(buf, lineSep)
	tok.limit = p.cfg.MaxLineLength
	r := &run{
		p:       p,
		buf:     buf,
		tok:     tok,
		disp:    newDispatcher(p.schema.Lines, p.cfg.QuoteSyntax, buf, tok, p.logger),
		onLine:  onLine,
		onError: onError,
	}
	if r.onError == nil {
		r.onError = p.logFailure
	}
	err := r.loop()
	return r.count, err
}

func (p *Parser) logFailure(ve *ValidationError) error {
	p.logger.Warn("validation failure", "line", ve.Line, "line_type", ve.LineType, "cell", ve.Cell, "err", ve.Err)
	return nil
}

// Parse is a convenience wrapper around NewParser and Parser.Parse.
func Parse(src io.Reader, schema *Schema, cfg Config, onLine LineFunc, onError ErrorFunc) (int, error) {
	p, err := NewParser(schema, cfg)
	if err != nil {
		return 0, err
	}
	return p.Parse(src, onLine, onError)
}

// run is the state of one Parse call.
type run struct {
	p       *Parser
	buf     *readBuffer
	tok     *tokenizer
	disp    *dispatcher
	onLine  LineFunc
	onError ErrorFunc

	number int // physical lines consumed, header lines excluded
	count  int
	// synthesized holds formats of cells created from header lines.
	synthesized map[*SchemaCell]*cellFormat
}

func (r *run) loop() error {
	for {
		r.buf.markLine()
		more, err := r.buf.more()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		if r.disp.empty() {
			blank, err := r.blankLine()
			if err != nil {
				return err
			}
			if blank {
				continue
			}
			return r.exhausted()
		}

		c, err := r.disp.choose()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, ErrUndefinedLineType):
			if err := r.undefined(); err != nil {
				return err
			}
			continue
		case err != nil:
			return r.fatal(err)
		}

		cells, err := r.tok.readLine(c.settings)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return r.fatal(err)
		}
		if len(cells) == 0 {
			r.number++
			continue
		}
		if c.header {
			if err := r.header(c, cells); err != nil {
				return err
			}
			continue
		}

		r.number++
		r.disp.use(c)
		if err := r.emit(c.line, cells); err != nil {
			return err
		}
	}
}

// fatal wraps a structural failure with its position.
func (r *run) fatal(err error) error {
	column := r.buf.column()
	switch {
	case errors.Is(err, errBufferFull):
		err = fmt.Errorf("%w (limit %d runes)", ErrLineTooLong, r.p.cfg.MaxLineLength)
		column = min(column, r.p.cfg.MaxLineLength+1)
	case errors.Is(err, ErrUnterminatedQuote):
	default:
		return err
	}
	return &ParseError{Line: r.number + 1, Column: column, Err: err}
}

// blankLine consumes the line at the cursor when it is blank and otherwise
// leaves it in place.
func (r *run) blankLine() (bool, error) {
	cells, err := r.tok.readLine(lineSettings{syntax: QuoteFirstLast})
	switch {
	case errors.Is(err, io.EOF):
		return true, nil
	case errors.Is(err, errBufferFull):
	case err != nil:
		return false, err
	case len(cells) == 0:
		r.number++
		return true, nil
	}
	r.buf.resetLine()
	return false, nil
}

// exhausted handles input left over once no schema line can take it.
func (r *run) exhausted() error {
	ve := &ValidationError{Line: r.number + 1, Err: ErrNoSchemaLine}
	switch decide(failUndefinedLine, r.p.cfg.OnUndefinedLineType) {
	case verdictAbort:
		return ve
	case verdictReport:
		return r.report(ve)
	}
	r.p.logger.Debug("input left after last schema line", "line", ve.Line)
	return nil
}

func (r *run) undefined() error {
	r.number++
	ve := &ValidationError{Line: r.number, Err: ErrUndefinedLineType}
	switch decide(failUndefinedLine, r.p.cfg.OnUndefinedLineType) {
	case verdictAbort:
		return ve
	case verdictReport:
		if err := r.report(ve); err != nil {
			return err
		}
	}
	if err := r.disp.skip(); err != nil {
		return r.fatal(err)
	}
	return nil
}

// header replaces the candidate's schema line with one built from the
// header cell names. The header line is neither counted nor emitted.
func (r *run) header(c *candidate, names []string) error {
	nl, missing := c.line.withHeader(names)
	r.p.logger.Debug("schema line built from header", "line_type", nl.LineType, "cells", len(nl.Cells))
	c.line = nl
	c.header = false

	for _, name := range missing {
		ve := &ValidationError{Line: r.number + 1, LineType: nl.LineType, Cell: name, Err: ErrMandatoryMissing}
		switch decide(failInsufficient, r.p.cfg.OnLineInsufficient) {
		case verdictAbort:
			return ve
		case verdictReport:
			if err := r.report(ve); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) emit(sl *SchemaLine, cells []string) error {
	var short *SchemaCell
	for _, sc := range sl.Cells[min(len(cells), len(sl.Cells)):] {
		if !sc.IgnoreRead {
			short = sc
			break
		}
	}
	if short != nil {
		switch decide(failInsufficient, r.p.cfg.OnLineInsufficient) {
		case verdictAbort:
			return &ValidationError{Line: r.number, LineType: sl.LineType, Cell: short.Name, Err: ErrInsufficientCells}
		case verdictDrop:
			return nil
		}
	}

	line := Line{
		LineType: sl.LineType,
		Number:   r.number,
		Cells:    make([]Cell, 0, max(len(cells), len(sl.Cells))),
	}
	for i, sc := range sl.Cells {
		f, err := r.format(sc)
		if err != nil {
			return err
		}
		if i >= len(cells) {
			if err := r.missing(&line, f); err != nil {
				return err
			}
			continue
		}
		if err := r.convert(&line, f, cells[i]); err != nil {
			return err
		}
	}

	for i := len(sl.Cells); i < len(cells); i++ {
		name := fmt.Sprintf("@@cell-%d", i+1)
		switch decide(failOverflow, r.p.cfg.OnLineOverflow) {
		case verdictAbort:
			return &ValidationError{Line: r.number, LineType: sl.LineType, Cell: name, Value: cells[i], Err: ErrCellOverflow}
		case verdictReport:
			if err := r.report(&ValidationError{Line: r.number, LineType: sl.LineType, Cell: name, Value: cells[i], Err: ErrCellOverflow}); err != nil {
				return err
			}
		}
		line.Add(Cell{Name: name, Type: CellString, Value: cells[i]})
	}

	if r.onLine != nil {
		if err := r.onLine(line); err != nil {
			return fmt.Errorf("tabschema: line sink: %w", err)
		}
	}
	r.count++
	return nil
}

// missing fills in a cell the line did not supply.
func (r *run) missing(line *Line, f *cellFormat) error {
	sc := f.cell
	if sc.IgnoreRead {
		if f.hasDef {
			line.Add(f.emptyCell())
		}
		return nil
	}
	if decide(failInsufficient, r.p.cfg.OnLineInsufficient) == verdictReport {
		if err := r.report(&ValidationError{Line: line.Number, LineType: line.LineType, Cell: sc.Name, Err: ErrInsufficientCells}); err != nil {
			return err
		}
	}
	line.Add(f.emptyCell())
	if sc.Mandatory {
		return r.report(&ValidationError{Line: line.Number, LineType: line.LineType, Cell: sc.Name, Err: ErrMandatoryMissing})
	}
	return nil
}

// convert adds the typed cell for raw, reporting cell level failures.
func (r *run) convert(line *Line, f *cellFormat, raw string) error {
	sc := f.cell
	if sc.IgnoreRead {
		if f.hasDef {
			line.Add(f.emptyCell())
		}
		return nil
	}
	if f.isEmpty(raw) {
		line.Add(f.emptyCell())
		if sc.Mandatory {
			return r.report(&ValidationError{Line: line.Number, LineType: line.LineType, Cell: sc.Name, Value: raw, Err: ErrMandatoryMissing})
		}
		return nil
	}
	if sc.MaxLength > 0 && utf8.RuneCountInString(raw) > sc.MaxLength {
		raw = string([]rune(raw)[:sc.MaxLength])
	}

	v, err := f.parse(raw)
	if err != nil {
		line.Add(f.emptyCell())
		return r.report(&ValidationError{
			Line:     line.Number,
			LineType: line.LineType,
			Cell:     sc.Name,
			Value:    raw,
			Format:   f.describe(),
			Err:      fmt.Errorf("%w: %v", ErrFormat, err),
		})
	}
	line.Add(Cell{Name: sc.Name, Type: sc.Type, Value: v})
	if err := f.checkRange(v); err != nil {
		return r.report(&ValidationError{
			Line:     line.Number,
			LineType: line.LineType,
			Cell:     sc.Name,
			Value:    raw,
			Format:   f.describe(),
			Err:      err,
		})
	}
	return nil
}

func (r *run) format(sc *SchemaCell) (*cellFormat, error) {
	if f, ok := r.p.formats[sc]; ok {
		return f, nil
	}
	if f, ok := r.synthesized[sc]; ok {
		return f, nil
	}
	f, err := compileCell(sc, r.p.schema.locale())
	if err != nil {
		return nil, err
	}
	if r.synthesized == nil {
		r.synthesized = make(map[*SchemaCell]*cellFormat)
	}
	r.synthesized[sc] = f
	return f, nil
}

func (r *run) report(ve *ValidationError) error {
	if err := r.onError(ve); err != nil {
		return fmt.Errorf("tabschema: error sink: %w", err)
	}
	return nil
}
