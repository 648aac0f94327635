// Package executor runs SQL statements against a single database and turns
// driver results into report outcomes.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/dbsmedya/gofanout/internal/coerce"
	"github.com/dbsmedya/gofanout/internal/database"
	"github.com/dbsmedya/gofanout/internal/logger"
	"github.com/dbsmedya/gofanout/internal/sqlutil"
	"github.com/dbsmedya/gofanout/internal/types"
)

const pgTypeNameQuery = "SELECT typname FROM pg_type WHERE oid = $1"

// Executor runs exactly one statement per call on a fresh connection.
type Executor struct {
	open             database.Opener
	statementTimeout time.Duration
	logger           *logger.Logger
}

// NewExecutor creates an executor. A nil opener uses database.DefaultOpener.
// A zero statementTimeout disables the per-statement deadline.
func NewExecutor(open database.Opener, statementTimeout time.Duration) *Executor {
	if open == nil {
		open = database.DefaultOpener
	}
	return &Executor{
		open:             open,
		statementTimeout: statementTimeout,
		logger:           logger.NewDefault(),
	}
}

// SetLogger sets a custom logger for the executor.
func (e *Executor) SetLogger(log *logger.Logger) {
	e.logger = log
}

// Execute opens a connection, runs the statement and closes the connection.
// Every failure is reported as an error outcome; it never returns a Go error.
func (e *Executor) Execute(ctx context.Context, conn database.ConnString, statement string) (outcome types.StatementOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorw("Statement execution panicked", "panic", r)
			outcome = types.ErrorOutcome(fmt.Sprintf("internal error: %v", r))
		}
	}()

	if e.statementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.statementTimeout)
		defer cancel()
	}

	db, err := database.Open(ctx, e.open, conn)
	if err != nil {
		return types.ErrorOutcome(err.Error())
	}
	defer func() { _ = db.Close() }()

	if sqlutil.IsReadStatement(statement) {
		result, err := e.query(ctx, db, coerce.DialectFor(conn.Engine), statement)
		if err != nil {
			return types.ErrorOutcome(err.Error())
		}
		return types.SelectOutcome(result)
	}

	res, err := db.ExecContext(ctx, statement)
	if err != nil {
		return types.ErrorOutcome(err.Error())
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return types.ErrorOutcome(err.Error())
	}
	return types.MutationOutcome(affected)
}

func (e *Executor) query(ctx context.Context, db *sql.DB, dialect coerce.Dialect, statement string) (*types.TabularResult, error) {
	rows, err := db.QueryContext(ctx, statement)
	if err != nil {
		return nil, err
	}

	headers, typeNames, buffered, err := drain(rows)
	if err != nil {
		return nil, err
	}
	if len(buffered) == 0 {
		return types.EmptyResult(), nil
	}

	// The rows handle is closed, so the single connection is free again
	if dialect == coerce.DialectPostgres {
		e.resolveTypeNames(ctx, db, typeNames)
	}

	result := &types.TabularResult{
		Headers: headers,
		Rows:    make([][]string, 0, len(buffered)),
	}
	for _, raw := range buffered {
		row := make([]string, len(raw))
		for i, v := range raw {
			row[i] = coerce.Coerce(dialect, typeNames[i], v)
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

// drain buffers every row as driver values and closes rows.
func drain(rows *sql.Rows) (headers, typeNames []string, buffered [][]any, err error) {
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, nil, err
	}
	headers = make([]string, len(cols))
	typeNames = make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Name()
		typeNames[i] = c.DatabaseTypeName()
	}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, nil, err
		}
		buffered = append(buffered, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, err
	}
	return headers, typeNames, buffered, nil
}

// resolveTypeNames replaces numeric type names (OIDs of types the driver
// does not know, such as PostGIS geometry) with their pg_type name.
// Lookup failures leave the name as is, which renders as text.
func (e *Executor) resolveTypeNames(ctx context.Context, db *sql.DB, typeNames []string) {
	resolved := make(map[string]string)
	for i, name := range typeNames {
		oid, err := strconv.ParseUint(name, 10, 32)
		if err != nil {
			continue
		}
		if typname, ok := resolved[name]; ok {
			typeNames[i] = typname
			continue
		}

		var typname string
		if err := db.QueryRowContext(ctx, pgTypeNameQuery, int64(oid)).Scan(&typname); err != nil {
			e.logger.Debugw("Could not resolve column type", "oid", oid, "error", err)
			resolved[name] = name
			continue
		}
		resolved[name] = typname
		typeNames[i] = typname
	}
}
