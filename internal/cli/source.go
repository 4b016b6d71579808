package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const stdinName = "-"

// input is one named source of text.
type input struct {
	name string
	io.Reader
	close func() error
}

func (in *input) Close() error {
	if in.close == nil {
		return nil
	}
	return in.close()
}

// decoder returns the transformer from the named charset to UTF-8. UTF-8
// input has a leading byte order mark removed.
func decoder(charset string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM.NewDecoder(), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", charset, err)
	}
	return enc.NewDecoder(), nil
}

// inputNames maps an empty argument list to standard input and rejects more
// than one use of it.
func inputNames(args []string) ([]string, error) {
	if len(args) == 0 {
		return []string{stdinName}, nil
	}
	stdin := 0
	for _, a := range args {
		if a == stdinName {
			stdin++
		}
	}
	if stdin > 1 {
		return nil, fmt.Errorf("standard input can only be read once")
	}
	return args, nil
}

// openInput opens name, or stdin for "-", decoding from charset.
func openInput(name string, stdin io.Reader, charset string) (*input, error) {
	dec, err := decoder(charset)
	if err != nil {
		return nil, err
	}
	if name == stdinName {
		return &input{name: "<stdin>", Reader: transform.NewReader(stdin, dec)}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return &input{name: name, Reader: transform.NewReader(f, dec), close: f.Close}, nil
}
