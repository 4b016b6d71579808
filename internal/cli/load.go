package cli

import (
	"database/sql"
	"fmt"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/oleg578/tabschema"
	"github.com/oleg578/tabschema/sqlsink"
)

// NewLoadCommand creates the load command.
func NewLoadCommand() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "load [file...]",
		Short: "Load delimited text into a SQLite database",
		Long: `Parse every input with the schema and insert the records into a SQLite
database, one table per line type. All inputs are loaded in a single
transaction that is rolled back on the first error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, args, prefix)
		},
	}
	cmd.Flags().String("database", "", "SQLite database path (\":memory:\" for in-memory)")
	cmd.Flags().StringVar(&prefix, "table-prefix", "", "prefix for created table names")
	return cmd
}

func runLoad(cmd *cobra.Command, args []string, prefix string) (err error) {
	ctx := cmd.Context()
	cfg := getConfig(ctx)
	logger := getLogger(ctx)

	schema, err := loadSchema(cfg, "")
	if err != nil {
		return err
	}
	pc, err := cfg.ParserConfig(logger)
	if err != nil {
		return err
	}
	p, err := tabschema.NewParser(schema, pc)
	if err != nil {
		return err
	}
	names, err := inputNames(args)
	if err != nil {
		return err
	}

	db, err := sql.Open("sqlite", cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	sink := sqlsink.New(ctx, tx, prefix, logger)
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("failed to commit: %w", err)
		}
	}()

	var failures tabschema.ErrorCollector
	for _, name := range names {
		in, err := openInput(name, cmd.InOrStdin(), cfg.Encoding)
		if err != nil {
			return err
		}
		_, err = p.Parse(in, sink.Line, tabschema.MultiErrorFunc(failures.Collect, func(ve *tabschema.ValidationError) error {
			_, err := fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", in.name, ve)
			return err
		}))
		_ = in.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", in.name, err)
		}
	}

	counts := sink.Counts()
	tables := sink.Tables()
	slices.Sort(tables)

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"table", "rows"})
	for _, name := range tables {
		t.AppendRow(table.Row{name, counts[name]})
	}
	t.Render()
	logger.Debug("loaded inputs", "database", cfg.Database, "tables", len(tables))

	if n := len(failures.Errors()); n > 0 {
		logger.Warn("inputs had validation failures", "failures", n)
	}
	return nil
}
