package cmd

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gofanout/internal/config"
	"github.com/dbsmedya/gofanout/internal/database"
	"github.com/dbsmedya/gofanout/internal/store"
	"github.com/dbsmedya/gofanout/internal/types"
)

const localConnection = `
connections:
  local:
    engine: postgres
    host: localhost
    user: app
`

// useMockOpener replaces the default opener with one that hands out a fresh
// sqlmock per connection, answering one query with a single row. DSNs for
// which refuse returns true fail to connect.
func useMockOpener(t *testing.T, refuse func(dsn string) bool) *atomic.Int32 {
	t.Helper()
	original := database.DefaultOpener
	t.Cleanup(func() { database.DefaultOpener = original })

	var calls atomic.Int32
	database.DefaultOpener = func(driverName, dsn string) (*sql.DB, error) {
		calls.Add(1)
		if refuse != nil && refuse(dsn) {
			return nil, errors.New("connection refused")
		}
		db, mock, err := sqlmock.New()
		if err != nil {
			return nil, err
		}
		mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(1)))
		mock.ExpectClose()
		return db, nil
	}
	return &calls
}

func refuseDatabase(name string) func(string) bool {
	return func(dsn string) bool {
		return strings.Contains(dsn, "dbname="+name)
	}
}

func TestRunCommandStructure(t *testing.T) {
	assert.Equal(t, "run", runCmd.Use)
	assert.NotEmpty(t, runCmd.Short)
	assert.NotNil(t, runCmd.RunE)
}

func TestRunCommandFlags(t *testing.T) {
	flags := runCmd.Flags()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"connection", "C", ""},
		{"database", "d", "[]"},
		{"all-databases", "", "false"},
		{"query", "q", ""},
		{"file", "f", ""},
		{"snippet", "", ""},
		{"save", "", ""},
		{"output-dir", "", ""},
		{"interactive", "", "false"},
		{"stop-on-error", "", "false"},
		{"format", "", "console"},
		{"max-rows", "", "20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := flags.Lookup(tt.name)
			require.NotNil(t, f)
			assert.Equal(t, tt.shorthand, f.Shorthand)
			assert.Equal(t, tt.defValue, f.DefValue)
		})
	}
}

func TestResolveDatabases(t *testing.T) {
	defer resetFlags()
	prof := types.ConnectionProfile{Name: "local", Engine: types.EnginePostgres, Host: "localhost", User: "app"}

	tests := []struct {
		name      string
		databases []string
		all       bool
		want      []string
		errMsg    string
	}{
		{
			name:      "repeated and comma separated",
			databases: []string{"a,b", " b ", "c"},
			want:      []string{"a", "b", "c"},
		},
		{
			name:      "order preserved",
			databases: []string{"zeta", "alpha"},
			want:      []string{"zeta", "alpha"},
		},
		{
			name:   "none given",
			errMsg: "at least one --database",
		},
		{
			name:      "only separators",
			databases: []string{", ,"},
			errMsg:    "at least one --database",
		},
		{
			name:      "both selectors",
			databases: []string{"a"},
			all:       true,
			errMsg:    "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			runDatabases = tt.databases
			runAllDatabases = tt.all

			got, err := resolveDatabases(context.Background(), prof, database.Options{})
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDatabases_AllDatabases(t *testing.T) {
	defer resetFlags()
	original := database.DefaultOpener
	defer func() { database.DefaultOpener = original }()

	var gotDSN string
	database.DefaultOpener = func(driverName, dsn string) (*sql.DB, error) {
		gotDSN = dsn
		db, mock, err := sqlmock.New()
		if err != nil {
			return nil, err
		}
		mock.ExpectQuery("pg_database").WillReturnRows(
			sqlmock.NewRows([]string{"datname"}).AddRow("sales").AddRow("billing"))
		mock.ExpectClose()
		return db, nil
	}

	resetFlags()
	runAllDatabases = true
	prof := types.ConnectionProfile{Name: "local", Engine: types.EnginePostgres, Host: "localhost", User: "app"}

	got, err := resolveDatabases(context.Background(), prof, database.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "sales"}, got)
	assert.Contains(t, gotDSN, "dbname=postgres")
}

func TestResolveQuery(t *testing.T) {
	defer resetFlags()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.HistoryFile = filepath.Join(dir, "history.sqlite")

	queryFile := filepath.Join(dir, "batch.sql")
	require.NoError(t, os.WriteFile(queryFile, []byte("SELECT 1; SELECT 2"), 0644))

	s, err := store.Open(context.Background(), cfg.Storage.HistoryFile)
	require.NoError(t, err)
	id, err := s.CreateSnippet(context.Background(), store.SnippetInput{Name: "sizes", Content: "SELECT pg_database_size(current_database())"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	tests := []struct {
		name    string
		query   string
		file    string
		snippet string
		want    string
		errMsg  string
	}{
		{name: "inline query", query: "SELECT now()", want: "SELECT now()"},
		{name: "query file", file: queryFile, want: "SELECT 1; SELECT 2"},
		{name: "snippet by name", snippet: "sizes", want: "SELECT pg_database_size(current_database())"},
		{name: "snippet by id", snippet: strconv.FormatInt(id, 10), want: "SELECT pg_database_size(current_database())"},
		{name: "no source", errMsg: "exactly one of"},
		{name: "two sources", query: "SELECT 1", file: queryFile, errMsg: "exactly one of"},
		{name: "missing file", file: filepath.Join(dir, "absent.sql"), errMsg: "failed to read query file"},
		{name: "unknown snippet", snippet: "ghost", errMsg: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			runQuery = tt.query
			runFile = tt.file
			runSnippet = tt.snippet

			got, err := resolveQuery(context.Background(), cfg)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFolderPicker(t *testing.T) {
	defer resetFlags()

	tests := []struct {
		name        string
		policy      types.SavePolicy
		interactive bool
		outputDir   string
		wantPicker  bool
	}{
		{name: "no export", policy: types.SaveNone, outputDir: "/out", wantPicker: false},
		{name: "interactive", policy: types.SaveSingle, interactive: true, wantPicker: true},
		{name: "configured folder", policy: types.SaveSeparate, outputDir: "/out", wantPicker: true},
		{name: "nothing configured", policy: types.SaveSingle, wantPicker: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			runInteractive = tt.interactive
			cfg := config.DefaultConfig()
			cfg.Execution.OutputDir = tt.outputDir

			picker := folderPicker(runCmd, cfg, tt.policy)
			assert.Equal(t, tt.wantPicker, picker != nil)
		})
	}
}

func TestRun_InvalidFormat(t *testing.T) {
	_, err := executeCommand(t, "run", "-C", "local", "-d", "a", "-q", "SELECT 1", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRun_JSONEventsAndHistory(t *testing.T) {
	cfgPath := writeTestConfig(t, localConnection)
	calls := useMockOpener(t, refuseDatabase("broken"))

	out, err := executeCommand(t, "run", "--config", cfgPath, "-C", "local",
		"-d", "good", "-d", "broken", "-q", "SELECT 1 AS n", "--format", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 database(s) failed")
	assert.Equal(t, int32(2), calls.Load())

	type event struct {
		Event   string               `json:"event"`
		Payload types.DatabaseReport `json:"payload"`
	}
	var events []event
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var e event
		require.NoError(t, json.Unmarshal([]byte(line), &e), line)
		events = append(events, e)
	}
	require.Len(t, events, 2)

	assert.Equal(t, "execution-status-update", events[0].Event)
	assert.Equal(t, "good", events[0].Payload.Name)
	assert.Equal(t, types.StatusSuccess, events[0].Payload.Status)
	require.Len(t, events[0].Payload.Results, 1)
	assert.Equal(t, [][]string{{"1"}}, events[0].Payload.Results[0].Result.Rows)

	assert.Equal(t, "broken", events[1].Payload.Name)
	assert.Equal(t, types.StatusError, events[1].Payload.Status)
	require.Len(t, events[1].Payload.Results, 1)
	assert.Contains(t, events[1].Payload.Results[0].Message, "Error in query 1")
	assert.Contains(t, events[1].Payload.Results[0].Message, "connection refused")

	s, err := store.Open(context.Background(), filepath.Join(filepath.Dir(cfgPath), "history.sqlite"))
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "SELECT 1 AS n", entries[0].QueryText)
	assert.Equal(t, "local", entries[0].ConnectionName)
	assert.Equal(t, "error", entries[0].Status)
}

func TestRun_SeparateExportWithConsoleOutput(t *testing.T) {
	cfgPath := writeTestConfig(t, localConnection)
	useMockOpener(t, nil)
	outDir := filepath.Join(t.TempDir(), "exports")

	out, err := executeCommand(t, "run", "--config", cfgPath, "-C", "local",
		"-d", "good", "-q", "SELECT 1 AS n", "--save", "separate", "--output-dir", outDir)
	require.NoError(t, err, out)

	data, err := os.ReadFile(filepath.Join(outDir, "good.csv"))
	require.NoError(t, err)
	assert.Equal(t, "n\n1\n", string(data))

	assert.Contains(t, out, "good [success]")
	assert.Contains(t, out, "1 database(s): 1 succeeded, 0 failed")
	assert.Contains(t, out, "Results saved to "+outDir)
}

func TestRun_SingleExportWithoutFolderFails(t *testing.T) {
	cfgPath := writeTestConfig(t, localConnection)
	calls := useMockOpener(t, nil)

	_, err := executeCommand(t, "run", "--config", cfgPath, "-C", "local",
		"-d", "good", "-q", "SELECT 1", "--save", "single")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use --output-dir or --interactive")
	assert.Equal(t, int32(0), calls.Load())
}

func TestRun_DeclinedFolderRunsNothing(t *testing.T) {
	cfgPath := writeTestConfig(t, localConnection)
	calls := useMockOpener(t, nil)

	out, err := executeCommand(t, "run", "--config", cfgPath, "-C", "local",
		"-d", "good", "-q", "SELECT 1", "--save", "single", "--interactive")
	require.NoError(t, err)
	assert.Contains(t, out, "Export folder (empty to cancel)")
	assert.Contains(t, out, "nothing was executed")
	assert.Equal(t, int32(0), calls.Load())
}

func TestRun_UnknownConnection(t *testing.T) {
	cfgPath := writeTestConfig(t, "")

	_, err := executeCommand(t, "run", "--config", cfgPath, "-C", "ghost", "-d", "a", "-q", "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `connection "ghost" not found`)
}

func TestRun_SingleExportWriteFailure(t *testing.T) {
	cfgPath := writeTestConfig(t, localConnection)
	useMockOpener(t, nil)
	outDir := t.TempDir()
	// A directory in place of the combined file makes the write fail
	require.NoError(t, os.Mkdir(filepath.Join(outDir, "resultado_unico.csv"), 0o755))

	out, err := executeCommand(t, "run", "--config", cfgPath, "-C", "local",
		"-d", "good", "-q", "SELECT 1 AS n", "--save", "single", "--output-dir", outDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save combined results")

	assert.Contains(t, out, "1 database(s): 1 succeeded, 0 failed")
	assert.Contains(t, out, "Combined results were not saved")
	assert.NotContains(t, out, "Results saved to")
}
