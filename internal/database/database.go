// Package database provides connection string building and short-lived
// connections to the target server for gofanout.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver, registers "pgx"

	"github.com/dbsmedya/gofanout/internal/types"
)

// ConnString is a fully resolved connection target: driver plus DSN.
type ConnString struct {
	Engine types.Engine
	DSN    string
}

// DriverName returns the database/sql driver for the engine.
func (c ConnString) DriverName() string {
	return DriverName(c.Engine)
}

// DriverName returns the database/sql driver registered for an engine.
func DriverName(e types.Engine) string {
	if e == types.EngineMySQL {
		return "mysql"
	}
	return "pgx"
}

// Options tune connection strings independently of the profile.
type Options struct {
	ConnectTimeout int // seconds, 0 = driver default
}

// Opener opens a *sql.DB. It exists so tests can substitute sqlmock.
type Opener func(driverName, dsn string) (*sql.DB, error)

// DefaultOpener opens connections with database/sql.
var DefaultOpener Opener = sql.Open

// BuildDSN composes the profile's host, port, user and password with the
// target database name. An empty database name targets the server's
// default database.
func BuildDSN(p types.ConnectionProfile, database string, opts Options) (ConnString, error) {
	switch engine := p.EffectiveEngine(); engine {
	case types.EnginePostgres:
		return ConnString{Engine: engine, DSN: buildPostgresDSN(p, database, opts)}, nil
	case types.EngineMySQL:
		return ConnString{Engine: engine, DSN: buildMySQLDSN(p, database, opts)}, nil
	default:
		return ConnString{}, fmt.Errorf("unsupported engine %q", engine)
	}
}

// buildPostgresDSN renders a keyword/value connection string.
// Format: host=h port=p user=u password=pw dbname=d [sslmode=m] [connect_timeout=n]
func buildPostgresDSN(p types.ConnectionProfile, database string, opts Options) string {
	parts := []string{
		"host=" + quotePostgresValue(p.Host),
		"port=" + strconv.Itoa(p.EffectivePort()),
		"user=" + quotePostgresValue(p.User),
		"password=" + quotePostgresValue(p.Password),
	}
	if database != "" {
		parts = append(parts, "dbname="+quotePostgresValue(database))
	}
	if p.SSLMode != "" {
		parts = append(parts, "sslmode="+quotePostgresValue(p.SSLMode))
	}
	if opts.ConnectTimeout > 0 {
		parts = append(parts, "connect_timeout="+strconv.Itoa(opts.ConnectTimeout))
	}
	return strings.Join(parts, " ")
}

// quotePostgresValue single-quotes a value when it is empty or contains
// whitespace, quotes or backslashes.
func quotePostgresValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n\r'\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

func buildMySQLDSN(p types.ConnectionProfile, database string, opts Options) string {
	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(p.EffectivePort()))
	cfg.DBName = database
	switch p.SSLMode {
	case "", "preferred":
		cfg.TLSConfig = "preferred"
	case "disable", "false":
		cfg.TLSConfig = "false"
	case "required", "true":
		cfg.TLSConfig = "true"
	default:
		cfg.TLSConfig = p.SSLMode
	}
	if opts.ConnectTimeout > 0 {
		cfg.Timeout = time.Duration(opts.ConnectTimeout) * time.Second
	}
	return cfg.FormatDSN()
}

// Open opens a single-connection *sql.DB and verifies it with a ping.
// The caller must Close it.
func Open(ctx context.Context, open Opener, conn ConnString) (*sql.DB, error) {
	if open == nil {
		open = DefaultOpener
	}
	db, err := open(conn.DriverName(), conn.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const (
	listPostgresDatabases = "SELECT datname FROM pg_database WHERE datistemplate = false AND datname <> 'postgres'"
	listMySQLDatabases    = "SHOW DATABASES"
)

var mysqlSystemSchemas = map[string]bool{
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
}

// ListDatabases returns the user databases visible to the profile, sorted.
func ListDatabases(ctx context.Context, open Opener, p types.ConnectionProfile, opts Options) ([]string, error) {
	conn, err := BuildDSN(p, "", opts)
	if err != nil {
		return nil, err
	}
	if conn.Engine == types.EnginePostgres {
		// Without dbname libpq defaults to the user name, which may not exist
		conn, _ = BuildDSN(p, "postgres", opts)
	}

	db, err := Open(ctx, open, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer db.Close()

	query := listPostgresDatabases
	if conn.Engine == types.EngineMySQL {
		query = listMySQLDatabases
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan database name: %w", err)
		}
		if conn.Engine == types.EngineMySQL && mysqlSystemSchemas[strings.ToLower(name)] {
			continue
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}

	sort.Strings(names)
	return names, nil
}
