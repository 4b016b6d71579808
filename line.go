package tabschema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CellType is the declared type of a cell.
type CellType uint8

// Cell types, with the Go type a parsed Cell.Value holds.
const (
	CellString    CellType = iota // string
	CellInteger                   // int64
	CellFloat                     // float64
	CellDecimal                   // decimal.Decimal
	CellBoolean                   // bool
	CellDate                      // time.Time
	CellEnum                      // string, one of the pattern's values
	CellCharacter                 // rune
)

var cellTypeNames = [...]string{
	CellString:    "string",
	CellInteger:   "integer",
	CellFloat:     "float",
	CellDecimal:   "decimal",
	CellBoolean:   "boolean",
	CellDate:      "date",
	CellEnum:      "enum",
	CellCharacter: "character",
}

func (t CellType) String() string {
	if int(t) < len(cellTypeNames) {
		return cellTypeNames[t]
	}
	return "CellType(" + strconv.Itoa(int(t)) + ")"
}

// ParseCellType maps a type name to a CellType. The empty name is a string.
func ParseCellType(s string) (CellType, error) {
	switch normalizeName(s) {
	case "", "string", "text":
		return CellString, nil
	case "integer", "int", "long":
		return CellInteger, nil
	case "float", "double":
		return CellFloat, nil
	case "decimal", "bigdecimal":
		return CellDecimal, nil
	case "boolean", "bool":
		return CellBoolean, nil
	case "date", "datetime", "localdate", "localdatetime":
		return CellDate, nil
	case "enum":
		return CellEnum, nil
	case "character", "char":
		return CellCharacter, nil
	}
	return CellString, fmt.Errorf("tabschema: unknown cell type %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *CellType) UnmarshalText(text []byte) error {
	v, err := ParseCellType(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Cell is one named, typed value of a Line. Value holds a string, int64,
// float64, decimal.Decimal, bool, time.Time or rune depending on Type, and is
// nil when Empty is set.
type Cell struct {
	Name  string
	Type  CellType
	Value any
	Empty bool
}

// String renders the value without any schema format.
func (c Cell) String() string {
	if c.Empty || c.Value == nil {
		return ""
	}
	switch v := c.Value.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case decimal.Decimal:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case rune:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Line is one parsed record. Cells keep the order in which they were added.
type Line struct {
	LineType string
	// Number is the 1-based number of the physical line, not counting header lines.
	Number int
	Cells  []Cell
}

// Get returns the first cell with the given name.
func (l Line) Get(name string) (Cell, bool) {
	for _, c := range l.Cells {
		if c.Name == name {
			return c, true
		}
	}
	return Cell{}, false
}

// Add appends a cell.
func (l *Line) Add(c Cell) {
	l.Cells = append(l.Cells, c)
}

func (l Line) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", l.Number, l.LineType)
	for _, c := range l.Cells {
		fmt.Fprintf(&b, " %s=%q", c.Name, c.String())
	}
	return b.String()
}
