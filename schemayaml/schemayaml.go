// Package schemayaml reads tabschema schemas from YAML documents.
//
// A document looks like this:
//
//	line_separator: "\n"
//	locale: de
//	lines:
//	  - type: order
//	    separator: ";"
//	    quote: '"'
//	    quote_syntax: rfc4180
//	    occurs: 1
//	    conditions:
//	      - position: 0
//	        equals: H
//	    cells:
//	      - name: id
//	        type: integer
//	        mandatory: true
//	      - name: amount
//	        type: decimal
//	        pattern: "#,##0.00"
//	        default: "0"
//
// Unknown keys are rejected.
package schemayaml

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/oleg578/tabschema"
)

// ErrEmptyDocument is returned for input without a YAML document.
var ErrEmptyDocument = errors.New("schemayaml: empty document")

type schemaYAML struct {
	LineSeparator string     `yaml:"line_separator"`
	Locale        string     `yaml:"locale"`
	Lines         []lineYAML `yaml:"lines"`
}

type lineYAML struct {
	Type              string          `yaml:"type"`
	Separator         string          `yaml:"separator"`
	Quote             string          `yaml:"quote"`
	QuoteSyntax       string          `yaml:"quote_syntax"`
	Occurs            int             `yaml:"occurs"`
	FirstLineAsSchema bool            `yaml:"first_line_as_schema"`
	Conditions        []conditionYAML `yaml:"conditions"`
	Cells             []cellYAML      `yaml:"cells"`
}

type conditionYAML struct {
	Position int     `yaml:"position"`
	Equals   *string `yaml:"equals"`
	Matches  string  `yaml:"matches"`
}

type cellYAML struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	Pattern      string `yaml:"pattern"`
	Locale       string `yaml:"locale"`
	Mandatory    bool   `yaml:"mandatory"`
	Default      string `yaml:"default"`
	Min          string `yaml:"min"`
	Max          string `yaml:"max"`
	EmptyPattern string `yaml:"empty_pattern"`
	IgnoreRead   bool   `yaml:"ignore_read"`
	MaxLength    int    `yaml:"max_length"`
}

// Load reads the schema file at path.
func Load(path string) (*tabschema.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schemayaml: %w", err)
	}
	defer func() { _ = f.Close() }()

	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Decode reads one YAML document from r and returns the validated schema.
func Decode(r io.Reader) (*tabschema.Schema, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc schemaYAML
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDocument
		}
		return nil, fmt.Errorf("schemayaml: %w", err)
	}

	s := &tabschema.Schema{
		LineSeparator: doc.LineSeparator,
		Locale:        doc.Locale,
		Lines:         make([]*tabschema.SchemaLine, 0, len(doc.Lines)),
	}
	for i, ly := range doc.Lines {
		l, err := ly.schemaLine()
		if err != nil {
			return nil, fmt.Errorf("schemayaml: lines[%d]: %w", i, err)
		}
		s.Lines = append(s.Lines, l)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (ly lineYAML) schemaLine() (*tabschema.SchemaLine, error) {
	l := &tabschema.SchemaLine{
		LineType:          ly.Type,
		CellSeparator:     ly.Separator,
		Occurs:            ly.Occurs,
		FirstLineAsSchema: ly.FirstLineAsSchema,
		Cells:             make([]*tabschema.SchemaCell, 0, len(ly.Cells)),
	}

	switch utf8.RuneCountInString(ly.Quote) {
	case 0:
	case 1:
		l.QuoteChar, _ = utf8.DecodeRuneInString(ly.Quote)
	default:
		return nil, fmt.Errorf("quote %q must be a single character", ly.Quote)
	}

	var err error
	if l.QuoteSyntax, err = tabschema.ParseQuoteSyntax(ly.QuoteSyntax); err != nil {
		return nil, err
	}
	if l.Condition, err = condition(ly.Conditions); err != nil {
		return nil, err
	}

	for j, cy := range ly.Cells {
		typ, err := tabschema.ParseCellType(cy.Type)
		if err != nil {
			return nil, fmt.Errorf("cells[%d]: %w", j, err)
		}
		l.Cells = append(l.Cells, &tabschema.SchemaCell{
			Name:         cy.Name,
			Type:         typ,
			Pattern:      cy.Pattern,
			Locale:       cy.Locale,
			Mandatory:    cy.Mandatory,
			Default:      cy.Default,
			Min:          cy.Min,
			Max:          cy.Max,
			EmptyPattern: cy.EmptyPattern,
			IgnoreRead:   cy.IgnoreRead,
			MaxLength:    cy.MaxLength,
		})
	}
	return l, nil
}

// condition combines the listed conditions. An empty list yields nil, which
// matches every line.
func condition(cs []conditionYAML) (tabschema.LineCondition, error) {
	all := make(tabschema.AllOf, 0, len(cs))
	for i, c := range cs {
		switch {
		case c.Equals != nil && c.Matches != "":
			return nil, fmt.Errorf("conditions[%d]: equals and matches are exclusive", i)
		case c.Equals != nil:
			all = append(all, tabschema.CellEquals{Position: c.Position, Value: *c.Equals})
		case c.Matches != "":
			re, err := regexp.Compile(c.Matches)
			if err != nil {
				return nil, fmt.Errorf("conditions[%d]: %w", i, err)
			}
			all = append(all, tabschema.CellMatches{Position: c.Position, Pattern: re})
		default:
			return nil, fmt.Errorf("conditions[%d]: needs equals or matches", i)
		}
	}
	switch len(all) {
	case 0:
		return nil, nil
	case 1:
		return all[0], nil
	}
	return all, nil
}
