// Package locale resolves the decimal and grouping symbols of a locale so
// that numbers can be read and written the way the locale prints them.
package locale

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// probeValue is printed with the locale to discover its symbols. It needs
// enough integer digits to be grouped in every locale.
const probeValue = 1234567.5

var cache sync.Map // normalized name -> Symbols

// Symbols are the number symbols of one locale.
type Symbols struct {
	Tag     language.Tag
	Decimal rune
	// Group is zero when the locale does not group integer digits.
	Group rune
}

// Lookup returns the symbols of the BCP 47 locale name. Underscores are
// accepted in place of hyphens and the empty name means English.
func Lookup(name string) (Symbols, error) {
	key := strings.ReplaceAll(strings.TrimSpace(name), "_", "-")
	if key == "" {
		key = "en"
	}
	if s, ok := cache.Load(key); ok {
		return s.(Symbols), nil
	}
	tag, err := language.Parse(key)
	if err != nil {
		return Symbols{}, fmt.Errorf("locale: %q: %w", name, err)
	}
	s := probe(tag)
	cache.Store(key, s)
	return s, nil
}

func probe(tag language.Tag) Symbols {
	p := message.NewPrinter(tag)
	printed := p.Sprint(number.Decimal(probeValue))

	s := Symbols{Tag: tag, Decimal: '.', Group: ','}
	var seps []rune
	for _, r := range printed {
		if unicode.IsDigit(r) || unicode.Is(unicode.Cf, r) {
			continue
		}
		seps = append(seps, r)
	}
	switch len(seps) {
	case 0:
	case 1:
		s.Decimal, s.Group = seps[0], 0
	default:
		s.Decimal, s.Group = seps[len(seps)-1], seps[0]
	}
	return s
}

// Normalize rewrites a localized number into the plain form accepted by
// strconv: grouping removed, '.' as the decimal point.
func (s Symbols) Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	spaceGroup := s.Group != 0 && unicode.IsSpace(s.Group)
	for _, r := range strings.TrimSpace(text) {
		switch {
		case r == s.Decimal:
			b.WriteByte('.')
		case s.Group != 0 && r == s.Group, spaceGroup && unicode.IsSpace(r):
		case r == '−':
			b.WriteByte('-')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Format localizes a plain number such as "-1234.50", inserting grouping
// symbols when grouping is set.
func (s Symbols) Format(plain string, grouping bool) string {
	var b strings.Builder
	if rest, ok := strings.CutPrefix(plain, "-"); ok {
		b.WriteByte('-')
		plain = rest
	}
	intPart, frac, hasFrac := strings.Cut(plain, ".")
	if grouping && s.Group != 0 && len(intPart) > 3 {
		lead := len(intPart) % 3
		if lead == 0 {
			lead = 3
		}
		b.WriteString(intPart[:lead])
		for i := lead; i < len(intPart); i += 3 {
			b.WriteRune(s.Group)
			b.WriteString(intPart[i : i+3])
		}
	} else {
		b.WriteString(intPart)
	}
	if hasFrac {
		b.WriteRune(s.Decimal)
		b.WriteString(frac)
	}
	return b.String()
}
