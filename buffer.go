package tabschema

import (
	"errors"
	"io"
)

const (
	defaultMaxLineLength = 8 << 10
	loadIncrement        = 1 << 10 // runes pulled from the source per load
)

// readBuffer is a bounded rune window over the source. Runes before lineMark
// have been consumed and may be discarded on the next load.
//
// 0 <= lineMark <= cellMark <= cursor <= size <= len(buf)
type readBuffer struct {
	src io.RuneReader
	buf []rune

	lineMark int
	cellMark int
	cursor   int
	size     int

	eof bool
	err error
}

func newReadBuffer(src io.RuneReader, capacity int) *readBuffer {
	if capacity <= 0 {
		capacity = defaultMaxLineLength
	}
	return &readBuffer{src: src, buf: make([]rune, capacity)}
}

// load pulls more runes into the free tail of the buffer, compacting consumed
// runes out first when the tail cannot take a full increment. It returns 0
// and a nil error when the buffer is full of the current line.
func (b *readBuffer) load() (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.eof {
		return 0, io.EOF
	}

	if b.lineMark > 0 && len(b.buf)-b.size < loadIncrement {
		shift := b.lineMark
		b.size = copy(b.buf, b.buf[shift:b.size])
		b.lineMark = 0
		b.cellMark -= shift
		b.cursor -= shift
	}

	room := len(b.buf) - b.size
	if room == 0 {
		return 0, nil
	}

	want := min(room, loadIncrement)
	n := 0
	for n < want {
		r, _, err := b.src.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				b.eof = true
			} else {
				b.err = err
			}
			break
		}
		b.buf[b.size] = r
		b.size++
		n++
	}
	if n > 0 {
		return n, nil
	}
	if b.err != nil {
		return 0, b.err
	}
	return 0, io.EOF
}

// next returns the rune at the cursor and advances past it.
func (b *readBuffer) next() (rune, error) {
	if b.cursor == b.size {
		n, err := b.load()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, errBufferFull
		}
	}
	r := b.buf[b.cursor]
	b.cursor++
	return r, nil
}

// unread steps back over the rune most recently returned by next.
func (b *readBuffer) unread() {
	if b.cursor > b.cellMark {
		b.cursor--
	}
}

// more reports whether any input remains at the cursor.
func (b *readBuffer) more() (bool, error) {
	if b.cursor < b.size {
		return true, nil
	}
	n, err := b.load()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *readBuffer) markLine() {
	b.lineMark = b.cursor
	b.cellMark = b.cursor
}

func (b *readBuffer) resetLine() {
	b.cursor = b.lineMark
	b.cellMark = b.lineMark
}

func (b *readBuffer) markCell() {
	b.cellMark = b.cursor
}

func (b *readBuffer) resetCell() {
	b.cursor = b.cellMark
}

// column is the 1-based rune offset of the cursor within the current line.
func (b *readBuffer) column() int {
	return b.cursor - b.lineMark + 1
}
