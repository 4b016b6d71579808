package tabschema

import (
	"errors"
	"io"
	"slices"
	"strings"
)

type tokenState uint8

const (
	stateBeginCell tokenState = iota
	stateUnquotedCell
	stateQuotedCell
	stateFoundEndQuote
	stateFoundEndQuoteWithin
)

type terminator uint8

const (
	termNone terminator = iota
	termPartial
	termCell
	termLine
)

var crlf = []rune{'\r', '\n'}

// lineSettings are the per schema line tokenizer parameters.
type lineSettings struct {
	cellSep []rune
	quote   rune
	syntax  QuoteSyntax
}

func settingsFor(l *SchemaLine, fallback QuoteSyntax) lineSettings {
	syntax := l.QuoteSyntax
	if syntax == QuoteDefault {
		syntax = fallback
	}
	if syntax == QuoteDefault {
		syntax = QuoteFirstLast
	}
	return lineSettings{cellSep: []rune(l.CellSeparator), quote: l.QuoteChar, syntax: syntax}
}

// tokenizer splits one physical line at a time into raw cells.
type tokenizer struct {
	buf     *readBuffer
	lineSep []rune
	// crlf accepts "\r\n" wherever the line separator is "\n".
	crlf bool
	// limit bounds the runes of a line, terminator excluded. Zero leaves
	// only the buffer capacity.
	limit int
	// term is the number of terminator runes that ended the last line.
	term int

	cell  []rune
	tail  []rune
	cells []string
}

func newTokenizer(buf *readBuffer, lineSep string) *tokenizer {
	return &tokenizer{
		buf:     buf,
		lineSep: []rune(lineSep),
		crlf:    lineSep == "\n",
		cell:    make([]rune, 0, 64),
		cells:   make([]string, 0, 16),
	}
}

// readLine reads the line at the cursor, which must be at the line mark. The
// returned slice is only valid until the next call. A blank line yields no
// cells. io.EOF is returned only when no rune was left to read.
func (t *tokenizer) readLine(ls lineSettings) ([]string, error) {
	cells, err := t.scan(ls)
	if err != nil {
		return nil, err
	}
	if t.limit > 0 && t.buf.cursor-t.buf.lineMark-t.term > t.limit {
		return nil, errBufferFull
	}
	return cells, nil
}

func (t *tokenizer) scan(ls lineSettings) ([]string, error) {
	t.term = 0
	t.cells = t.cells[:0]
	t.cell = t.cell[:0]
	t.tail = t.tail[:0]
	t.buf.markCell()

	state := stateBeginCell
	started := false
	singleSep := len(ls.cellSep) == 1

	for {
		r, err := t.buf.next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if !started {
					return nil, io.EOF
				}
				return t.endOfInput(state, ls)
			}
			return nil, err
		}
		started = true

		switch state {
		case stateBeginCell:
			switch {
			case ls.quote != 0 && r == ls.quote:
				state = stateQuotedCell
			case singleSep && r == ls.cellSep[0]:
				t.closeCell()
			case len(t.lineSep) == 1 && r == t.lineSep[0]:
				t.term = 1
				t.closeCell()
				return t.finishLine(), nil
			default:
				t.cell = append(t.cell, r)
				state = stateUnquotedCell
			}

		case stateUnquotedCell:
			t.cell = append(t.cell, r)
			if hasSuffix(t.cell, ls.cellSep) {
				t.cell = t.cell[:len(t.cell)-len(ls.cellSep)]
				t.closeCell()
				state = stateBeginCell
			} else if hasSuffix(t.cell, t.lineSep) {
				t.endLine()
				t.closeCell()
				return t.finishLine(), nil
			}

		case stateQuotedCell:
			if r == ls.quote {
				t.tail = t.tail[:0]
				state = stateFoundEndQuote
				continue
			}
			t.cell = append(t.cell, r)

		case stateFoundEndQuote:
			if len(t.tail) == 0 && r == ls.quote {
				t.cell = append(t.cell, r)
				if ls.syntax == QuoteRFC4180 {
					state = stateQuotedCell
				}
				continue
			}
			t.tail = append(t.tail, r)
			switch t.matchTerminator(ls) {
			case termCell:
				t.closeCell()
				state = stateBeginCell
			case termLine:
				t.term = len(t.tail)
				t.closeCell()
				return t.finishLine(), nil
			case termPartial:
				continue
			default:
				if ls.syntax == QuoteRFC4180 {
					// Bare quote: read the same runes again as an unquoted cell.
					t.buf.resetCell()
					t.cell = t.cell[:0]
					t.tail = t.tail[:0]
					state = stateUnquotedCell
					continue
				}
				// The quote is literal; the opening one binds only if a later
				// quote closes the cell.
				t.buf.unread()
				t.cell = append(t.cell, ls.quote)
				t.cell = append(t.cell, t.tail[:len(t.tail)-1]...)
				state = stateFoundEndQuoteWithin
			}
			t.tail = t.tail[:0]

		case stateFoundEndQuoteWithin:
			if r == ls.quote {
				t.tail = t.tail[:0]
				state = stateFoundEndQuote
				continue
			}
			t.cell = append(t.cell, r)
			if hasSuffix(t.cell, ls.cellSep) {
				t.cell = t.cell[:len(t.cell)-len(ls.cellSep)]
				t.reopen(ls)
				t.closeCell()
				state = stateBeginCell
			} else if hasSuffix(t.cell, t.lineSep) {
				t.endLine()
				t.reopen(ls)
				t.closeCell()
				return t.finishLine(), nil
			}
		}
	}
}

func (t *tokenizer) endOfInput(state tokenState, ls lineSettings) ([]string, error) {
	switch state {
	case stateQuotedCell:
		return nil, ErrUnterminatedQuote
	case stateFoundEndQuote:
		if len(t.tail) > 0 && !t.lineSepPrefix(t.tail) {
			t.cell = append(t.cell, ls.quote)
			t.cell = append(t.cell, t.tail...)
			t.reopen(ls)
		}
	case stateUnquotedCell:
		t.trimCR()
	case stateFoundEndQuoteWithin:
		t.trimCR()
		t.reopen(ls)
	}
	t.closeCell()
	return t.finishLine(), nil
}

func (t *tokenizer) matchTerminator(ls lineSettings) terminator {
	switch {
	case equalRunes(t.tail, ls.cellSep):
		return termCell
	case equalRunes(t.tail, t.lineSep), t.crlf && equalRunes(t.tail, crlf):
		return termLine
	case hasPrefix(ls.cellSep, t.tail), t.lineSepPrefix(t.tail):
		return termPartial
	}
	return termNone
}

func (t *tokenizer) lineSepPrefix(rs []rune) bool {
	return hasPrefix(t.lineSep, rs) || (t.crlf && hasPrefix(crlf, rs))
}

func (t *tokenizer) closeCell() {
	t.cells = append(t.cells, string(t.cell))
	t.cell = t.cell[:0]
	t.buf.markCell()
}

func (t *tokenizer) trimCR() bool {
	if t.crlf && len(t.cell) > 0 && t.cell[len(t.cell)-1] == '\r' {
		t.cell = t.cell[:len(t.cell)-1]
		return true
	}
	return false
}

// endLine strips the line separator ending the cell.
func (t *tokenizer) endLine() {
	t.cell = t.cell[:len(t.cell)-len(t.lineSep)]
	t.term = len(t.lineSep)
	if t.trimCR() {
		t.term++
	}
}

// reopen restores the opening quote of a cell whose closing quote never bound.
func (t *tokenizer) reopen(ls lineSettings) {
	t.cell = slices.Insert(t.cell, 0, ls.quote)
}

// finishLine treats a line holding a single blank cell as a line without cells.
func (t *tokenizer) finishLine() []string {
	if len(t.cells) == 1 && strings.TrimSpace(t.cells[0]) == "" {
		t.cells = t.cells[:0]
	}
	return t.cells
}

func hasSuffix(s, suffix []rune) bool {
	return len(suffix) > 0 && len(s) >= len(suffix) && equalRunes(s[len(s)-len(suffix):], suffix)
}

func hasPrefix(s, prefix []rune) bool {
	return len(s) >= len(prefix) && equalRunes(s[:len(prefix)], prefix)
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
