// Package sqlsink stores parsed lines in SQL tables, one table per line type.
//
// The columns of a table are fixed by the first line of its type: a leading
// "_line" INTEGER column holding Line.Number followed by one column per cell.
// Cells of later lines that have no column are skipped.
package sqlsink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oleg578/tabschema"
)

// LineColumn holds Line.Number in every table.
const LineColumn = "_line"

const defaultTable = "lines"

// DB is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type table struct {
	name    string
	columns []string
	index   map[string]int
	insert  *sql.Stmt
	rows    int
}

// Sink writes lines through db. It is not safe for concurrent use.
type Sink struct {
	ctx    context.Context
	db     DB
	prefix string
	logger *slog.Logger
	tables map[string]*table
	order  []string
}

// New returns a sink that creates its tables in db, naming each one
// prefix + line type. A nil logger discards.
func New(ctx context.Context, db DB, prefix string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sink{
		ctx:    ctx,
		db:     db,
		prefix: prefix,
		logger: logger,
		tables: make(map[string]*table),
	}
}

// Line inserts l. It has the signature of a tabschema.LineFunc.
func (s *Sink) Line(l tabschema.Line) error {
	t, ok := s.tables[l.LineType]
	if !ok {
		var err error
		if t, err = s.create(l); err != nil {
			return err
		}
	}

	args := make([]any, len(t.columns))
	args[0] = l.Number
	for _, c := range l.Cells {
		i, ok := t.index[c.Name]
		if !ok {
			s.logger.Debug("cell has no column", "table", t.name, "cell", c.Name, "line", l.Number)
			continue
		}
		args[i] = value(c)
	}
	if _, err := t.insert.ExecContext(s.ctx, args...); err != nil {
		return fmt.Errorf("sqlsink: insert into %s: %w", t.name, err)
	}
	t.rows++
	return nil
}

func (s *Sink) create(l tabschema.Line) (*table, error) {
	name := l.LineType
	if name == "" {
		name = defaultTable
	}
	t := &table{
		name:    s.prefix + name,
		columns: []string{LineColumn},
		index:   map[string]int{LineColumn: 0},
	}
	defs := []string{quoteIdent(LineColumn) + " INTEGER"}
	for _, c := range l.Cells {
		if _, dup := t.index[c.Name]; dup {
			continue
		}
		t.index[c.Name] = len(t.columns)
		t.columns = append(t.columns, c.Name)
		defs = append(defs, quoteIdent(c.Name)+" "+columnType(c.Type))
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(t.name), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(s.ctx, ddl); err != nil {
		return nil, fmt.Errorf("sqlsink: create table %s: %w", t.name, err)
	}

	quoted := make([]string, len(t.columns))
	for i, c := range t.columns {
		quoted[i] = quoteIdent(c)
	}
	ins := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(t.name), strings.Join(quoted, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(quoted)), ", "))
	stmt, err := s.db.PrepareContext(s.ctx, ins)
	if err != nil {
		return nil, fmt.Errorf("sqlsink: prepare insert into %s: %w", t.name, err)
	}
	t.insert = stmt

	s.logger.Debug("created table", "table", t.name, "columns", len(t.columns))
	s.tables[l.LineType] = t
	s.order = append(s.order, l.LineType)
	return t, nil
}

// Counts returns the rows inserted per table name.
func (s *Sink) Counts() map[string]int {
	out := make(map[string]int, len(s.tables))
	for _, t := range s.tables {
		out[t.name] = t.rows
	}
	return out
}

// Tables returns the created table names in creation order.
func (s *Sink) Tables() []string {
	out := make([]string, len(s.order))
	for i, lt := range s.order {
		out[i] = s.tables[lt].name
	}
	return out
}

// Close releases the prepared statements.
func (s *Sink) Close() error {
	var errs []error
	for _, lt := range s.order {
		if err := s.tables[lt].insert.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func columnType(t tabschema.CellType) string {
	switch t {
	case tabschema.CellInteger:
		return "INTEGER"
	case tabschema.CellFloat:
		return "REAL"
	case tabschema.CellBoolean:
		return "BOOLEAN"
	case tabschema.CellDate:
		return "TIMESTAMP"
	default:
		// decimals stay TEXT so no precision is lost
		return "TEXT"
	}
}

func value(c tabschema.Cell) any {
	if c.Empty || c.Value == nil {
		return nil
	}
	switch v := c.Value.(type) {
	case string, int64, float64, bool, time.Time:
		return v
	case decimal.Decimal:
		return v.String()
	default:
		return c.String()
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
