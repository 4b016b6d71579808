package tabschema

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

const (
	defaultWriteBufferSize = 4 << 10
	// separatorPlaceholder replaces cell separators inside values of lines
	// that have no quote character.
	separatorPlaceholder = "\u00a0"
	overflowPrefix       = "@@cell-"
)

var (
	errNilWriter      = errors.New("tabschema: writer is nil")
	errWriterNoTarget = errors.New("tabschema: writer destination cannot be nil")
)

// Writer composes lines into text using the separators, quoting and cell
// formats of a schema. Lines whose schema line has no quote character cannot
// carry the cell separator: each occurrence is written as a no-break space.
type Writer struct {
	dst    *bufio.Writer
	schema *Schema

	// QuoteSyntax is used by schema lines that leave theirs at QuoteDefault.
	// Default is QuoteFirstLast.
	QuoteSyntax QuoteSyntax

	lines   map[string]*SchemaLine
	formats map[*SchemaCell]*cellFormat
	headers map[string]bool
	err     error
}

// NewWriter creates a Writer on w, panicking if w is nil.
func NewWriter(w io.Writer, schema *Schema) (*Writer, error) {
	if w == nil {
		panic(errWriterNoTarget.Error())
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	formats, err := compileSchema(schema)
	if err != nil {
		return nil, err
	}
	lines := make(map[string]*SchemaLine, len(schema.Lines))
	for _, l := range schema.Lines {
		if _, dup := lines[l.LineType]; !dup {
			lines[l.LineType] = l
		}
	}
	return &Writer{
		dst:     bufio.NewWriterSize(w, defaultWriteBufferSize),
		schema:  schema,
		lines:   lines,
		formats: formats,
		headers: make(map[string]bool),
	}, nil
}

// Reset switches the destination and forgets which header rows were written.
func (w *Writer) Reset(dst io.Writer) {
	if w == nil {
		panic(errNilWriter.Error())
	}
	if dst == nil {
		panic(errWriterNoTarget.Error())
	}
	if w.dst == nil {
		w.dst = bufio.NewWriterSize(dst, defaultWriteBufferSize)
	} else {
		w.dst.Reset(dst)
	}
	clear(w.headers)
	w.err = nil
}

// Write emits one line with the schema line named by its LineType. The first
// line of a FirstLineAsSchema type is preceded by a header row.
func (w *Writer) Write(line Line) error {
	if w == nil {
		return errNilWriter
	}
	if w.dst == nil {
		return errWriterNoTarget
	}
	if w.err != nil {
		return w.err
	}
	sl, ok := w.lines[line.LineType]
	if !ok {
		return fmt.Errorf("%w: no schema line of type %q", ErrUndefinedLineType, line.LineType)
	}
	ls := settingsFor(sl, w.QuoteSyntax)

	values, names, err := w.values(sl, line)
	if err != nil {
		return err
	}
	if sl.FirstLineAsSchema && !w.headers[sl.LineType] {
		if err := w.writeRow(names, ls); err != nil {
			w.err = err
			return err
		}
		w.headers[sl.LineType] = true
	}
	if err := w.writeRow(values, ls); err != nil {
		w.err = err
		return err
	}
	return nil
}

// values formats the cells of line in schema order followed by overflow
// cells. A schema line without cells writes the line's cells as they are.
func (w *Writer) values(sl *SchemaLine, line Line) (values, names []string, err error) {
	if len(sl.Cells) == 0 {
		for _, c := range line.Cells {
			names = append(names, c.Name)
			values = append(values, c.String())
		}
		return values, names, nil
	}
	for _, sc := range sl.Cells {
		names = append(names, sc.Name)
		c, ok := line.Get(sc.Name)
		if !ok || c.Empty || sc.IgnoreRead {
			values = append(values, "")
			continue
		}
		s, err := w.formats[sc].format(c.Value)
		if err != nil {
			return nil, nil, err
		}
		values = append(values, s)
	}
	for _, c := range line.Cells {
		if strings.HasPrefix(c.Name, overflowPrefix) {
			values = append(values, c.String())
		}
	}
	return values, names, nil
}

// Compose writes every line of seq and flushes, stopping at the first error.
func (w *Writer) Compose(seq iter.Seq[Line]) error {
	if w == nil {
		return errNilWriter
	}
	for line := range seq {
		if err := w.Write(line); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Flush flushes pending buffered data to the underlying writer.
func (w *Writer) Flush() error {
	if w == nil {
		return errNilWriter
	}
	if w.dst == nil {
		return errWriterNoTarget
	}
	if w.err != nil {
		return w.err
	}
	if err := w.dst.Flush(); err != nil {
		w.err = err
		return err
	}
	return nil
}

// Error reports the first error encountered by the writer.
func (w *Writer) Error() error {
	if w == nil {
		return errNilWriter
	}
	return w.err
}

func (w *Writer) writeRow(values []string, ls lineSettings) error {
	sep := string(ls.cellSep)
	for i, v := range values {
		if i > 0 {
			if _, err := w.dst.WriteString(sep); err != nil {
				return err
			}
		}
		if err := w.writeCell(v, sep, ls); err != nil {
			return err
		}
	}
	_, err := w.dst.WriteString(w.schema.lineSeparator())
	return err
}

func (w *Writer) writeCell(v, sep string, ls lineSettings) error {
	if ls.quote == 0 {
		_, err := w.dst.WriteString(strings.ReplaceAll(v, sep, separatorPlaceholder))
		return err
	}
	if !w.needsQuote(v, sep, ls.quote) {
		_, err := w.dst.WriteString(v)
		return err
	}
	if _, err := w.dst.WriteRune(ls.quote); err != nil {
		return err
	}
	q := string(ls.quote)
	if ls.syntax == QuoteRFC4180 {
		v = strings.ReplaceAll(v, q, q+q)
	}
	if _, err := w.dst.WriteString(v); err != nil {
		return err
	}
	_, err := w.dst.WriteRune(ls.quote)
	return err
}

func (w *Writer) needsQuote(v, sep string, quote rune) bool {
	return strings.Contains(v, sep) ||
		strings.ContainsRune(v, quote) ||
		strings.ContainsAny(v, "\r\n") ||
		strings.Contains(v, w.schema.lineSeparator())
}
