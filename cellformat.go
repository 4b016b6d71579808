package tabschema

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/oleg578/tabschema/internal/datefmt"
	"github.com/oleg578/tabschema/internal/locale"
)

const defaultDatePattern = "yyyy-MM-dd"

// cellFormat is the compiled form of a SchemaCell: how to read and write its
// values and the typed default and bounds.
type cellFormat struct {
	cell    *SchemaCell
	symbols locale.Symbols

	match      *regexp.Regexp // string pattern
	empty      *regexp.Regexp
	layout     string   // date
	trueWords  []string // boolean
	falseWords []string
	enum       []string

	grouping bool // numbers
	minFrac  int
	maxFrac  int // -1 prints the shortest exact form

	def      any
	hasDef   bool
	min, max any
}

func compileCell(c *SchemaCell, schemaLocale string) (*cellFormat, error) {
	loc := c.Locale
	if loc == "" {
		loc = schemaLocale
	}
	sym, err := locale.Lookup(loc)
	if err != nil {
		return nil, fmt.Errorf("%w: cell %q: %v", ErrInvalidSchema, c.Name, err)
	}
	f := &cellFormat{cell: c, symbols: sym, maxFrac: -1}

	if err := f.compilePattern(); err != nil {
		return nil, fmt.Errorf("%w: cell %q: %v", ErrInvalidSchema, c.Name, err)
	}
	if c.EmptyPattern != "" {
		re, err := regexp.Compile(`^(?:` + c.EmptyPattern + `)$`)
		if err != nil {
			return nil, fmt.Errorf("%w: cell %q empty pattern: %v", ErrInvalidSchema, c.Name, err)
		}
		f.empty = re
	}

	for _, bound := range []struct {
		text string
		dst  *any
		what string
	}{
		{c.Default, &f.def, "default"},
		{c.Min, &f.min, "min"},
		{c.Max, &f.max, "max"},
	} {
		if bound.text == "" {
			continue
		}
		v, err := f.parse(bound.text)
		if err != nil {
			return nil, fmt.Errorf("%w: cell %q %s %q: %v", ErrInvalidSchema, c.Name, bound.what, bound.text, err)
		}
		*bound.dst = v
	}
	f.hasDef = c.Default != ""
	return f, nil
}

func (f *cellFormat) compilePattern() error {
	p := f.cell.Pattern
	switch f.cell.Type {
	case CellString:
		if p != "" {
			re, err := regexp.Compile(`^(?:` + p + `)$`)
			if err != nil {
				return err
			}
			f.match = re
		}
	case CellInteger, CellFloat, CellDecimal:
		if p != "" {
			f.grouping, f.minFrac, f.maxFrac = numberPattern(p)
		}
	case CellDate:
		if p == "" {
			p = defaultDatePattern
		}
		layout, err := datefmt.Layout(p)
		if err != nil {
			return err
		}
		f.layout = layout
	case CellBoolean:
		if p == "" {
			return nil
		}
		t, fl, ok := strings.Cut(p, ";")
		if !ok {
			return fmt.Errorf("boolean pattern %q needs true and false words separated by ';'", p)
		}
		f.trueWords = splitWords(t)
		f.falseWords = splitWords(fl)
		if len(f.trueWords) == 0 || len(f.falseWords) == 0 {
			return fmt.Errorf("boolean pattern %q has no words", p)
		}
	case CellEnum:
		f.enum = splitWords(p)
		if len(f.enum) == 0 {
			return errors.New("enum cell needs its values as pattern, e.g. \"A|B\"")
		}
	case CellCharacter:
	default:
		return fmt.Errorf("unknown cell type %v", f.cell.Type)
	}
	return nil
}

// numberPattern reads the grouping flag and fraction digits of a pattern
// such as "#,##0.00" or "0.###".
func numberPattern(p string) (grouping bool, minFrac, maxFrac int) {
	intPart, frac, hasFrac := strings.Cut(p, ".")
	grouping = strings.Contains(intPart, ",")
	if !hasFrac {
		return grouping, 0, 0
	}
	for _, r := range frac {
		switch r {
		case '0':
			minFrac++
			maxFrac++
		case '#':
			maxFrac++
		}
	}
	return grouping, minFrac, maxFrac
}

func splitWords(s string) []string {
	var out []string
	for _, w := range strings.Split(s, "|") {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// isEmpty reports whether raw is logically empty for this cell.
func (f *cellFormat) isEmpty(raw string) bool {
	return raw == "" || (f.empty != nil && f.empty.MatchString(raw))
}

// emptyCell is the default value of the cell, or an explicit empty cell.
func (f *cellFormat) emptyCell() Cell {
	if f.hasDef {
		return Cell{Name: f.cell.Name, Type: f.cell.Type, Value: f.def}
	}
	return Cell{Name: f.cell.Name, Type: f.cell.Type, Empty: true}
}

// describe names the expected format in validation errors.
func (f *cellFormat) describe() string {
	c := f.cell
	switch {
	case c.Type == CellString && c.Pattern != "":
		return "string matching " + c.Pattern
	case c.Type == CellDate:
		if c.Pattern == "" {
			return "date " + defaultDatePattern
		}
		return "date " + c.Pattern
	case c.Pattern != "":
		return c.Type.String() + " " + c.Pattern
	}
	return c.Type.String()
}

// parse converts a non-empty raw value into the typed value of the cell.
func (f *cellFormat) parse(raw string) (any, error) {
	switch f.cell.Type {
	case CellString:
		if f.match != nil && !f.match.MatchString(raw) {
			return nil, errors.New("pattern mismatch")
		}
		return raw, nil
	case CellInteger:
		return strconv.ParseInt(f.symbols.Normalize(raw), 10, 64)
	case CellFloat:
		return strconv.ParseFloat(f.symbols.Normalize(raw), 64)
	case CellDecimal:
		return decimal.NewFromString(f.symbols.Normalize(raw))
	case CellBoolean:
		return f.parseBool(strings.TrimSpace(raw))
	case CellDate:
		return time.Parse(f.layout, strings.TrimSpace(raw))
	case CellEnum:
		for _, v := range f.enum {
			if v == raw {
				return raw, nil
			}
		}
		return nil, fmt.Errorf("%q is not one of %s", raw, strings.Join(f.enum, ", "))
	case CellCharacter:
		if utf8.RuneCountInString(raw) != 1 {
			return nil, errors.New("expected exactly one character")
		}
		r, _ := utf8.DecodeRuneInString(raw)
		return r, nil
	}
	return nil, fmt.Errorf("unknown cell type %v", f.cell.Type)
}

func (f *cellFormat) parseBool(s string) (any, error) {
	if f.trueWords == nil {
		return strconv.ParseBool(s)
	}
	for _, w := range f.trueWords {
		if strings.EqualFold(w, s) {
			return true, nil
		}
	}
	for _, w := range f.falseWords {
		if strings.EqualFold(w, s) {
			return false, nil
		}
	}
	return nil, fmt.Errorf("%q is not a boolean word", s)
}

// checkRange reports ErrRange when v lies outside the declared bounds.
func (f *cellFormat) checkRange(v any) error {
	if f.min != nil {
		if c, ok := compareValues(v, f.min); ok && c < 0 {
			return fmt.Errorf("%w: below minimum %s", ErrRange, f.cell.Min)
		}
	}
	if f.max != nil {
		if c, ok := compareValues(v, f.max); ok && c > 0 {
			return fmt.Errorf("%w: above maximum %s", ErrRange, f.cell.Max)
		}
	}
	return nil
}

// compareValues orders two values of the same cell type.
func compareValues(a, b any) (int, bool) {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return strings.Compare(x, y), ok
	case int64:
		y, ok := b.(int64)
		return cmp.Compare(x, y), ok
	case float64:
		y, ok := b.(float64)
		return cmp.Compare(x, y), ok
	case decimal.Decimal:
		y, ok := b.(decimal.Decimal)
		if !ok {
			return 0, false
		}
		return x.Cmp(y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case rune:
		y, ok := b.(rune)
		return cmp.Compare(x, y), ok
	case bool:
		y, ok := b.(bool)
		switch {
		case !ok || x == y:
			return 0, ok
		case !x:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

// format renders a typed value as text. Values that are already strings are
// written unchanged.
func (f *cellFormat) format(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case int64:
		return f.symbols.Format(strconv.FormatInt(x, 10), f.grouping), nil
	case int:
		return f.symbols.Format(strconv.Itoa(x), f.grouping), nil
	case float64:
		return f.symbols.Format(f.fraction(strconv.FormatFloat(x, 'f', f.maxFrac, 64)), f.grouping), nil
	case decimal.Decimal:
		s := x.String()
		if f.maxFrac >= 0 {
			s = x.StringFixed(int32(f.maxFrac))
		}
		return f.symbols.Format(f.fraction(s), f.grouping), nil
	case bool:
		if f.trueWords != nil {
			if x {
				return f.trueWords[0], nil
			}
			return f.falseWords[0], nil
		}
		return strconv.FormatBool(x), nil
	case time.Time:
		layout := f.layout
		if layout == "" {
			layout = time.RFC3339
		}
		return x.Format(layout), nil
	case rune:
		return string(x), nil
	}
	return "", fmt.Errorf("tabschema: cell %q: cannot format %T", f.cell.Name, v)
}

// fraction trims trailing fraction zeros down to the minimum fraction digits.
func (f *cellFormat) fraction(s string) string {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		if f.minFrac > 0 {
			return s + "." + strings.Repeat("0", f.minFrac)
		}
		return s
	}
	end := len(s)
	for end > dot+1+f.minFrac && s[end-1] == '0' {
		end--
	}
	if end == dot+1 {
		end = dot
	}
	return s[:end]
}
