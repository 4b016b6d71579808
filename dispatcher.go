package tabschema

import (
	"errors"
	"io"
	"log/slog"
)

// candidate is a live schema line together with its run state.
type candidate struct {
	line      *SchemaLine
	settings  lineSettings
	remaining int
	// header is set until the header line of a FirstLineAsSchema line is read.
	header bool
}

// dispatcher chooses the schema line for each physical line. Candidates are
// kept in priority order; a conditional candidate that matches after others
// were tried moves to the front.
type dispatcher struct {
	live   []*candidate
	buf    *readBuffer
	tok    *tokenizer
	logger *slog.Logger
}

func newDispatcher(lines []*SchemaLine, syntax QuoteSyntax, buf *readBuffer, tok *tokenizer, logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		live:   make([]*candidate, 0, len(lines)),
		buf:    buf,
		tok:    tok,
		logger: logger,
	}
	for _, l := range lines {
		d.live = append(d.live, &candidate{
			line:      l,
			settings:  settingsFor(l, syntax),
			remaining: l.Occurs,
			header:    l.FirstLineAsSchema,
		})
	}
	return d
}

func (d *dispatcher) empty() bool { return len(d.live) == 0 }

// choose returns the candidate for the line at the line mark and leaves the
// buffer rewound to it. It returns io.EOF when the input ended while peeking.
// A line that cannot be tokenized with a candidate's settings does not match
// that candidate; when no candidate matches, the first such failure is
// returned, and ErrUndefinedLineType otherwise.
func (d *dispatcher) choose() (*candidate, error) {
	var peekErr error
	for i, c := range d.live {
		if c.line.Condition == nil {
			return c, nil
		}
		cells, err := d.peek(c)
		switch {
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		case errors.Is(err, errBufferFull), errors.Is(err, ErrUnterminatedQuote):
			if peekErr == nil {
				peekErr = err
			}
			continue
		case err != nil:
			return nil, err
		}
		if len(cells) == 0 {
			// Blank lines are skipped by the caller whatever their type.
			return c, nil
		}
		if !c.line.Condition.Match(cells) {
			continue
		}
		if i > 0 {
			copy(d.live[1:i+1], d.live[:i])
			d.live[0] = c
			d.logger.Debug("schema line promoted", "line_type", c.line.LineType, "from", i)
		}
		return c, nil
	}
	if peekErr != nil {
		return nil, peekErr
	}
	return nil, ErrUndefinedLineType
}

func (d *dispatcher) peek(c *candidate) ([]string, error) {
	defer d.buf.resetLine()
	return d.tok.readLine(c.settings)
}

// use records one data line consumed by c and retires c once its occurs are spent.
func (d *dispatcher) use(c *candidate) {
	if c.line.infinite() {
		return
	}
	c.remaining--
	if c.remaining > 0 {
		return
	}
	for i, lc := range d.live {
		if lc == c {
			d.live = append(d.live[:i], d.live[i+1:]...)
			break
		}
	}
	d.logger.Debug("schema line exhausted", "line_type", c.line.LineType, "live", len(d.live))
}

// skip consumes the line at the cursor without quote handling.
func (d *dispatcher) skip() error {
	ls := lineSettings{syntax: QuoteFirstLast}
	if len(d.live) > 0 {
		ls.cellSep = d.live[0].settings.cellSep
	}
	_, err := d.tok.readLine(ls)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
