// # tabschema: Schema-Driven Streaming Reader and Writer for Delimited Text
//
// tabschema turns a stream of delimited text into typed, named records using a
// declarative Schema, and composes records back into text with the same
// settings. A schema holds one or more line types; each has its own cell
// separator, quote character and quote syntax, repeat count and cell
// definitions.
//
// # Features
//
// - Streaming rune buffer bounded by a maximum line length, with line and cell marks for look-ahead.
// - Tokenizer supporting multi-character separators and two quote syntaxes (FirstLast, RFC4180).
// - Line dispatch over competing line types using per-line conditions and occurs counts.
// - Header-driven line types (first line as schema) synthesized without mutating the schema.
// - Typed cells: string, integer, float, decimal, boolean, date, enum and character, with locale-aware numbers.
// - Configurable validation policy for undefined line types, insufficient cells and overflowing cells.
// - Structured fatal errors via `ParseError` and recoverable ones via `ValidationError`.
//
// # Getting Started
//
//	n, err := tabschema.Parse(r, schema, tabschema.DefaultConfig(),
//		func(l tabschema.Line) error { fmt.Println(l); return nil },
//		func(e *tabschema.ValidationError) error { log.Print(e); return nil })
//
// Schemas can be built in code or loaded from YAML with the schemayaml package.
package tabschema
