// Package datefmt converts letter based date patterns such as
// "yyyy-MM-dd'T'HH:mm:ss" into Go time layouts.
package datefmt

import (
	"errors"
	"fmt"
	"strings"
)

// Layout returns the Go layout equivalent to pattern. Text between single
// quotes is literal and "''" is a single quote. Literal text must not
// contain Go layout tokens such as digits or "Jan".
func Layout(pattern string) (string, error) {
	var b strings.Builder
	rs := []rune(pattern)
	for i := 0; i < len(rs); {
		r := rs[i]
		if r == '\'' {
			if i+1 < len(rs) && rs[i+1] == '\'' {
				b.WriteByte('\'')
				i += 2
				continue
			}
			end, err := literal(&b, rs, i+1)
			if err != nil {
				return "", fmt.Errorf("datefmt: %q: %w", pattern, err)
			}
			i = end
			continue
		}
		if !isLetter(r) {
			b.WriteRune(r)
			i++
			continue
		}

		n := 1
		for i+n < len(rs) && rs[i+n] == r {
			n++
		}
		tok, err := token(r, n)
		if err != nil {
			return "", fmt.Errorf("datefmt: %q: %w", pattern, err)
		}
		b.WriteString(tok)
		i += n
	}
	return b.String(), nil
}

// literal copies quoted text starting at i and returns the index after the
// closing quote.
func literal(b *strings.Builder, rs []rune, i int) (int, error) {
	for i < len(rs) {
		if rs[i] != '\'' {
			b.WriteRune(rs[i])
			i++
			continue
		}
		if i+1 < len(rs) && rs[i+1] == '\'' {
			b.WriteByte('\'')
			i += 2
			continue
		}
		return i + 1, nil
	}
	return 0, errors.New("unterminated quote")
}

func token(r rune, n int) (string, error) {
	switch r {
	case 'y', 'u':
		if n == 2 {
			return "06", nil
		}
		return "2006", nil
	case 'M', 'L':
		switch n {
		case 1:
			return "1", nil
		case 2:
			return "01", nil
		case 3:
			return "Jan", nil
		default:
			return "January", nil
		}
	case 'd':
		if n == 1 {
			return "2", nil
		}
		return "02", nil
	case 'D':
		return "002", nil
	case 'H', 'k':
		return "15", nil
	case 'h', 'K':
		if n == 1 {
			return "3", nil
		}
		return "03", nil
	case 'm':
		if n == 1 {
			return "4", nil
		}
		return "04", nil
	case 's':
		if n == 1 {
			return "5", nil
		}
		return "05", nil
	case 'S':
		return strings.Repeat("0", n), nil
	case 'a':
		return "PM", nil
	case 'E':
		if n <= 3 {
			return "Mon", nil
		}
		return "Monday", nil
	case 'z':
		return "MST", nil
	case 'Z':
		return "-0700", nil
	case 'X':
		switch n {
		case 1:
			return "Z07", nil
		case 2:
			return "Z0700", nil
		default:
			return "Z07:00", nil
		}
	case 'x':
		switch n {
		case 1:
			return "-07", nil
		case 2:
			return "-0700", nil
		default:
			return "-07:00", nil
		}
	}
	return "", fmt.Errorf("unsupported pattern letter %q", r)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
