package tabschema

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLineTooLong is returned when a line, terminator excluded, is longer than Config.MaxLineLength runes.
	ErrLineTooLong = errors.New("tabschema: line exceeds maximum line length")
	// ErrUnterminatedQuote is returned when a quoted cell is still open at end of input.
	ErrUnterminatedQuote = errors.New("tabschema: unterminated quoted cell")
	// ErrUndefinedLineType is reported when no schema line matches an input line.
	ErrUndefinedLineType = errors.New("tabschema: no schema line matches the input line")
	// ErrNoSchemaLine is reported when input remains after every schema line has been used up.
	ErrNoSchemaLine = errors.New("tabschema: no schema line consumes further input")
	// ErrInsufficientCells is reported when a line has fewer cells than its schema line declares.
	ErrInsufficientCells = errors.New("tabschema: insufficient cells in line")
	// ErrCellOverflow is reported when a line has more cells than its schema line declares.
	ErrCellOverflow = errors.New("tabschema: cell overflow in line")
	// ErrMandatoryMissing is reported when a mandatory cell is empty or absent.
	ErrMandatoryMissing = errors.New("tabschema: mandatory cell is missing")
	// ErrFormat is reported when a cell value cannot be converted to its declared type.
	ErrFormat = errors.New("tabschema: cell value does not match format")
	// ErrRange is reported when a cell value falls outside its declared min/max bounds.
	ErrRange = errors.New("tabschema: cell value out of range")
	// ErrInvalidSchema is returned when a schema cannot be used for parsing or composing.
	ErrInvalidSchema = errors.New("tabschema: invalid schema")
)

// errBufferFull signals that the read buffer cannot admit more runes for the current line.
var errBufferFull = errors.New("tabschema: read buffer full")

// ParseError reports a structural failure that ends the parse.
type ParseError struct {
	Line   int
	Column int
	Err    error
}

// Error formats the parse error message with the stored line, column, and Err values.
func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("tabschema: parse error on line %d, column %d: %v", e.Line, e.Column, e.Err)
}

// Unwrap returns the underlying Err so ParseError participates in errors.Unwrap.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError describes one recoverable failure. Cell is empty for
// line-level failures.
type ValidationError struct {
	Line     int
	LineType string
	Cell     string
	Value    string
	Format   string
	Err      error
}

// Error formats the failure with every location field that is set.
func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "line %d", e.Line)
	if e.LineType != "" {
		fmt.Fprintf(&b, " (%s)", e.LineType)
	}
	if e.Cell != "" {
		fmt.Fprintf(&b, ", cell %q", e.Cell)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	if e.Cell != "" {
		fmt.Fprintf(&b, " [value %q", e.Value)
		if e.Format != "" {
			fmt.Fprintf(&b, ", expected %s", e.Format)
		}
		b.WriteByte(']')
	}
	return b.String()
}

// Unwrap returns the underlying Err.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
