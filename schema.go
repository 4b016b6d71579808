package tabschema

import (
	"fmt"
	"strings"
)

// OccursInfinite marks a schema line that may match any number of lines.
// Any Occurs value below one is treated the same way.
const OccursInfinite = 0

const (
	defaultLineSeparator = "\n"
	defaultLocale        = "en"
)

// QuoteSyntax selects how an embedded quote inside a quoted cell is read.
type QuoteSyntax uint8

const (
	// QuoteDefault defers to Config.QuoteSyntax.
	QuoteDefault QuoteSyntax = iota
	// QuoteFirstLast only treats a quote as syntax when it is the first or
	// last character of the cell.
	QuoteFirstLast
	// QuoteRFC4180 treats a doubled quote inside a quoted cell as one literal quote.
	QuoteRFC4180
)

// String returns the configuration name of the syntax.
func (q QuoteSyntax) String() string {
	switch q {
	case QuoteFirstLast:
		return "first_last"
	case QuoteRFC4180:
		return "rfc4180"
	default:
		return "default"
	}
}

// ParseQuoteSyntax maps a configuration name to a QuoteSyntax.
func ParseQuoteSyntax(s string) (QuoteSyntax, error) {
	switch normalizeName(s) {
	case "", "default":
		return QuoteDefault, nil
	case "firstlast":
		return QuoteFirstLast, nil
	case "rfc4180":
		return QuoteRFC4180, nil
	}
	return QuoteDefault, fmt.Errorf("tabschema: unknown quote syntax %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *QuoteSyntax) UnmarshalText(text []byte) error {
	v, err := ParseQuoteSyntax(string(text))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (q QuoteSyntax) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// Schema describes the expected structure of a text stream. It must not be
// modified once parsing or composing has started.
type Schema struct {
	// LineSeparator ends every line. Default is "\n", which also accepts "\r\n".
	LineSeparator string
	// Locale is the default locale of cells that do not name their own.
	Locale string
	// Lines are the candidate line types in priority order.
	Lines []*SchemaLine
}

func (s *Schema) lineSeparator() string {
	if s.LineSeparator == "" {
		return defaultLineSeparator
	}
	return s.LineSeparator
}

func (s *Schema) locale() string {
	if s.Locale == "" {
		return defaultLocale
	}
	return s.Locale
}

// Validate reports the first structural problem in the schema.
func (s *Schema) Validate() error {
	if s == nil || len(s.Lines) == 0 {
		return fmt.Errorf("%w: no schema lines", ErrInvalidSchema)
	}
	for i, l := range s.Lines {
		if l == nil {
			return fmt.Errorf("%w: schema line %d is nil", ErrInvalidSchema, i+1)
		}
		if l.CellSeparator == "" {
			return fmt.Errorf("%w: line type %q has no cell separator", ErrInvalidSchema, l.LineType)
		}
		if strings.Contains(s.lineSeparator(), l.CellSeparator) {
			return fmt.Errorf("%w: line type %q cell separator overlaps the line separator", ErrInvalidSchema, l.LineType)
		}
		seen := make(map[string]struct{}, len(l.Cells))
		for j, c := range l.Cells {
			if c == nil || c.Name == "" {
				return fmt.Errorf("%w: line type %q cell %d has no name", ErrInvalidSchema, l.LineType, j+1)
			}
			if _, dup := seen[c.Name]; dup {
				return fmt.Errorf("%w: line type %q declares cell %q twice", ErrInvalidSchema, l.LineType, c.Name)
			}
			seen[c.Name] = struct{}{}
		}
	}
	return nil
}

// SchemaLine is one recognized line shape.
type SchemaLine struct {
	// LineType labels every Line produced from this schema line.
	LineType string
	// CellSeparator splits cells. It may be longer than one character.
	CellSeparator string
	// QuoteChar opens and closes quoted cells. Zero disables quoting.
	QuoteChar rune
	// QuoteSyntax selects the quote dialect; QuoteDefault uses Config.QuoteSyntax.
	QuoteSyntax QuoteSyntax
	// Occurs is the number of lines this schema line consumes. See OccursInfinite.
	Occurs int
	// Condition recognizes this line among its siblings. Nil always matches.
	Condition LineCondition
	// FirstLineAsSchema reads the first matched line as cell names.
	FirstLineAsSchema bool
	Cells             []*SchemaCell
}

func (l *SchemaLine) infinite() bool { return l.Occurs < 1 }

// Cell returns the cell definition with the given name.
func (l *SchemaLine) Cell(name string) (*SchemaCell, bool) {
	for _, c := range l.Cells {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// withHeader builds the schema line that replaces l once its header line has
// been read. Cells named in the header keep their original definitions,
// unknown names become plain string cells and blank names are ignored.
// Cells missing from the header that carry a default are appended as
// ignore-read cells. It also returns the mandatory cells the header lacks.
func (l *SchemaLine) withHeader(names []string) (*SchemaLine, []string) {
	nl := *l
	nl.FirstLineAsSchema = false
	nl.Cells = make([]*SchemaCell, 0, len(names))

	used := make(map[string]struct{}, len(names))
	for i, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			nl.Cells = append(nl.Cells, &SchemaCell{
				Name:       fmt.Sprintf("@@blank-%d", i+1),
				Type:       CellString,
				IgnoreRead: true,
			})
			continue
		}
		if c, ok := l.Cell(name); ok {
			nl.Cells = append(nl.Cells, c)
		} else {
			nl.Cells = append(nl.Cells, &SchemaCell{Name: name, Type: CellString})
		}
		used[name] = struct{}{}
	}

	var missing []string
	for _, c := range l.Cells {
		if _, ok := used[c.Name]; ok {
			continue
		}
		if c.Default != "" {
			cp := *c
			cp.IgnoreRead = true
			nl.Cells = append(nl.Cells, &cp)
		}
		if c.Mandatory {
			missing = append(missing, c.Name)
		}
	}
	return &nl, missing
}

// SchemaCell is one column definition.
type SchemaCell struct {
	Name string
	Type CellType
	// Pattern is the type specific format: a regular expression for strings,
	// a number pattern such as "#,##0.00", a date pattern such as
	// "yyyy-MM-dd", "yes;no" for booleans or "A|B|C" for enums.
	Pattern string
	// Locale overrides Schema.Locale for this cell.
	Locale    string
	Mandatory bool
	// Default is parsed with the cell format and used for empty values.
	Default string
	// Min and Max bound the parsed value using the type's ordering.
	Min string
	Max string
	// EmptyPattern is a regular expression for values treated as empty, e.g. "NULL".
	EmptyPattern string
	// IgnoreRead consumes the raw value but only emits the default.
	IgnoreRead bool
	// MaxLength truncates the raw value before conversion. Zero means unlimited.
	MaxLength int
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}
