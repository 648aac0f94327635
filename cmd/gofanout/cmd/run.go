package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofanout/internal/config"
	"github.com/dbsmedya/gofanout/internal/database"
	"github.com/dbsmedya/gofanout/internal/executor"
	"github.com/dbsmedya/gofanout/internal/logger"
	"github.com/dbsmedya/gofanout/internal/orchestrator"
	"github.com/dbsmedya/gofanout/internal/store"
	"github.com/dbsmedya/gofanout/internal/types"
)

var (
	runConnection   string
	runDatabases    []string
	runAllDatabases bool
	runQuery        string
	runFile         string
	runSnippet      string
	runSave         string
	runOutputDir    string
	runInteractive  bool
	runStopOnError  bool
	runFormat       string
	runMaxRows      int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run SQL statements against one or more databases",
	Long: `Run splits the query on ';' and executes every statement, in order,
against each selected database. Databases are processed one at a time
and each statement uses its own connection.

A failing statement never affects other databases. With --stop-on-error
the remaining statements of the failing database are skipped.

Save options:
  none      no files are written
  separate  <database>.csv with the last result set of each database
  single    resultado_unico.csv with the results of every successful database

Example:
  gofanout run -C prod -d sales -d billing -q "SELECT count(*) FROM orders"
  gofanout run -C prod --all-databases -f migrate.sql --stop-on-error
  gofanout run -C prod --all-databases --snippet sizes --save single --output-dir ./out`,
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization cycle
	// (runRun -> ... -> GetCLIOverrides -> runCmd).
	runCmd.RunE = runRun

	runCmd.Flags().StringVarP(&runConnection, "connection", "C", "",
		"Connection name from config or the profile store (required)")
	runCmd.MarkFlagRequired("connection")

	runCmd.Flags().StringArrayVarP(&runDatabases, "database", "d", nil,
		"Target database (repeatable)")
	runCmd.Flags().BoolVar(&runAllDatabases, "all-databases", false,
		"Target every user database on the server")

	runCmd.Flags().StringVarP(&runQuery, "query", "q", "", "SQL to execute")
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Read SQL from a file")
	runCmd.Flags().StringVar(&runSnippet, "snippet", "", "Run a saved snippet (name or ID)")

	runCmd.Flags().StringVar(&runSave, "save", "",
		"Override save option (none, separate, single)")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "",
		"Override export folder")
	runCmd.Flags().BoolVar(&runInteractive, "interactive", false,
		"Prompt for the export folder")
	runCmd.Flags().BoolVar(&runStopOnError, "stop-on-error", false,
		"Stop a database's batch at its first failing statement")

	runCmd.Flags().StringVar(&runFormat, "format", "console",
		"Progress output format (console, json)")
	runCmd.Flags().IntVar(&runMaxRows, "max-rows", 20,
		"Rows of the last result set to print per database (0 to hide)")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if runFormat != "console" && runFormat != "json" {
		return fmt.Errorf("invalid format %q (expected console or json)", runFormat)
	}

	cfg, log, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer log.Sync()

	prof, err := resolveProfile(cfg, runConnection)
	if err != nil {
		return err
	}

	ctx, stop := database.SetupSignalHandlerWithCallback(func(sig os.Signal) {
		log.Warnw("Received signal, finishing the current run (repeat to abort)", "signal", sig.String())
	})
	defer stop()
	opts := database.Options{ConnectTimeout: cfg.Execution.ConnectTimeout}

	query, err := resolveQuery(ctx, cfg)
	if err != nil {
		return err
	}

	databases, err := resolveDatabases(ctx, prof, opts)
	if err != nil {
		return err
	}

	policy, err := types.ParseSavePolicy(cfg.Execution.Save)
	if err != nil {
		return err
	}

	log.Infow("Starting run",
		"connection", prof.Name,
		"databases", len(databases),
		"save", policy,
		"config", GetConfigFile(),
	)

	exec := executor.NewExecutor(database.DefaultOpener, cfg.Execution.StatementTimeout)
	exec.SetLogger(log)
	runner, err := executor.NewRunner(exec, opts)
	if err != nil {
		return err
	}
	runner.SetLogger(log)

	collector := newReportCollector(databases)
	var progress orchestrator.Emitter
	if runFormat == "json" {
		progress = newJSONEmitter(cmd.OutOrStdout())
	} else {
		progress = newConsoleEmitter(cmd.OutOrStdout(), runMaxRows)
	}

	orch, err := orchestrator.New(runner, folderPicker(cmd, cfg, policy), orchestrator.MultiEmitter(progress, collector))
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	orch.SetLogger(log)

	execution, err := orch.Execute(ctx, orchestrator.Request{
		Profile:     prof,
		Databases:   databases,
		Query:       query,
		SavePolicy:  policy,
		StopOnError: cfg.Execution.StopOnError,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrFolderSelection) {
			return fmt.Errorf("%w (use --output-dir or --interactive)", err)
		}
		return err
	}
	if execution.Cancelled() {
		cmd.PrintErrln("No export folder selected, nothing was executed.")
		return nil
	}

	summary := execution.Wait()
	if runFormat == "console" {
		printSummary(cmd.OutOrStdout(), collector.Reports(), summary)
	}

	status := string(types.StatusSuccess)
	if summary.Failed > 0 || summary.ExportErr != nil {
		status = string(types.StatusError)
	}
	recordHistory(context.Background(), cfg, log, query, prof.Name, status)

	switch {
	case summary.Failed > 0:
		cmd.SilenceUsage = true
		return fmt.Errorf("%d of %d database(s) failed", summary.Failed, summary.Processed)
	case summary.ExportErr != nil:
		cmd.SilenceUsage = true
		return fmt.Errorf("failed to save combined results: %w", summary.ExportErr)
	}
	return nil
}

// resolveQuery returns the SQL from exactly one of --query, --file or
// --snippet.
func resolveQuery(ctx context.Context, cfg *config.Config) (string, error) {
	sources := 0
	for _, s := range []string{runQuery, runFile, runSnippet} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return "", fmt.Errorf("exactly one of --query, --file or --snippet is required")
	}

	switch {
	case runQuery != "":
		return runQuery, nil
	case runFile != "":
		data, err := os.ReadFile(runFile)
		if err != nil {
			return "", fmt.Errorf("failed to read query file: %w", err)
		}
		return string(data), nil
	default:
		s, err := openStore(ctx, cfg)
		if err != nil {
			return "", err
		}
		defer s.Close()

		snippet, err := findSnippet(ctx, s, runSnippet)
		if err != nil {
			return "", err
		}
		return snippet.Content, nil
	}
}

// findSnippet looks a snippet up by numeric ID, then by name.
func findSnippet(ctx context.Context, s *store.Store, key string) (store.Snippet, error) {
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		sn, err := s.Snippet(ctx, id)
		if err == nil || !errors.Is(err, store.ErrNotFound) {
			return sn, err
		}
	}
	return s.SnippetByName(ctx, key)
}

// resolveDatabases returns the explicit targets, or every database on the
// server with --all-databases.
func resolveDatabases(ctx context.Context, prof types.ConnectionProfile, opts database.Options) ([]string, error) {
	if runAllDatabases && len(runDatabases) > 0 {
		return nil, fmt.Errorf("--database and --all-databases are mutually exclusive")
	}
	if runAllDatabases {
		names, err := database.ListDatabases(ctx, database.DefaultOpener, prof, opts)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("no databases found on %s", prof.Host)
		}
		return names, nil
	}

	var names []string
	seen := make(map[string]bool)
	for _, d := range runDatabases {
		for _, name := range strings.Split(d, ",") {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one --database (or --all-databases) is required")
	}
	return names, nil
}

// folderPicker selects how the export folder is chosen.
func folderPicker(cmd *cobra.Command, cfg *config.Config, policy types.SavePolicy) orchestrator.FolderPicker {
	if !policy.NeedsFolder() {
		return nil
	}
	if runInteractive {
		return promptPicker(cmd.InOrStdin(), cmd.ErrOrStderr(), cfg.Execution.OutputDir)
	}
	if cfg.Execution.OutputDir != "" {
		return staticPicker(cfg.Execution.OutputDir)
	}
	return nil
}

// recordHistory stores the run; failures are logged only.
func recordHistory(ctx context.Context, cfg *config.Config, log *logger.Logger, query, connection, status string) {
	s, err := openStore(ctx, cfg)
	if err != nil {
		log.Warnw("Failed to record history", "error", err)
		return
	}
	defer s.Close()

	if err := s.AddHistory(ctx, query, connection, status); err != nil {
		log.Warnw("Failed to record history", "error", err)
	}
}
