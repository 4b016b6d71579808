package tabschema

import "regexp"

// LineCondition recognizes the schema line that applies to a physical line
// from its raw cells.
type LineCondition interface {
	Match(cells []string) bool
}

// CellEquals matches when the cell at Position (0-based) equals Value.
type CellEquals struct {
	Position int
	Value    string
}

func (c CellEquals) Match(cells []string) bool {
	return c.Position >= 0 && c.Position < len(cells) && cells[c.Position] == c.Value
}

// CellMatches matches when the cell at Position (0-based) matches Pattern.
type CellMatches struct {
	Position int
	Pattern  *regexp.Regexp
}

func (c CellMatches) Match(cells []string) bool {
	return c.Position >= 0 && c.Position < len(cells) && c.Pattern.MatchString(cells[c.Position])
}

// AllOf matches when every condition matches.
type AllOf []LineCondition

func (a AllOf) Match(cells []string) bool {
	for _, c := range a {
		if !c.Match(cells) {
			return false
		}
	}
	return true
}
