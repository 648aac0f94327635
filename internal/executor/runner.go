package executor

import (
	"context"
	"fmt"

	"github.com/dbsmedya/gofanout/internal/database"
	"github.com/dbsmedya/gofanout/internal/logger"
	"github.com/dbsmedya/gofanout/internal/types"
)

// StatementExecutor runs one statement against one resolved connection.
type StatementExecutor interface {
	Execute(ctx context.Context, conn database.ConnString, statement string) types.StatementOutcome
}

// Runner executes a statement batch against one database and aggregates the
// outcomes into a report.
type Runner struct {
	exec   StatementExecutor
	opts   database.Options
	logger *logger.Logger
}

// NewRunner creates a runner on top of a statement executor.
func NewRunner(exec StatementExecutor, opts database.Options) (*Runner, error) {
	if exec == nil {
		return nil, fmt.Errorf("statement executor is nil")
	}
	return &Runner{
		exec:   exec,
		opts:   opts,
		logger: logger.NewDefault(),
	}, nil
}

// SetLogger sets a custom logger for the runner.
func (r *Runner) SetLogger(log *logger.Logger) {
	r.logger = log
}

// Run executes statements in order against dbName. With stopOnError the
// batch halts right after the first failing statement.
func (r *Runner) Run(ctx context.Context, profile types.ConnectionProfile, dbName string, statements []string, stopOnError bool) types.DatabaseReport {
	report := types.DatabaseReport{
		Name:    dbName,
		Results: make([]types.StatementOutcome, 0, len(statements)),
	}
	log := r.logger.WithProfile(profile.Name).WithDatabase(dbName)

	conn, err := database.BuildDSN(profile, dbName, r.opts)
	if err != nil {
		report.Results = append(report.Results, types.ErrorOutcome(errorInQuery(0, err.Error())))
		finish(&report)
		return report
	}

	for i, stmt := range statements {
		outcome := r.exec.Execute(ctx, conn, stmt)
		if outcome.IsError() {
			outcome = types.ErrorOutcome(errorInQuery(i, outcome.Message))
		}
		log.WithStatement(i+1).Debugw("Statement finished", "kind", outcome.Kind)

		report.Results = append(report.Results, outcome)
		if outcome.IsError() && stopOnError {
			break
		}
	}

	finish(&report)
	return report
}

func errorInQuery(index int, msg string) string {
	return fmt.Sprintf("Error in query %d: %s", index+1, msg)
}

// finish derives status and the summary log line from the outcomes.
func finish(report *types.DatabaseReport) {
	successes, failures := report.Counts()
	if failures > 0 {
		report.Status = types.StatusError
		report.SetLog(fmt.Sprintf("%d succeeded, %d failed.", successes, failures))
		return
	}
	report.Status = types.StatusSuccess
	report.SetLog(fmt.Sprintf("%d statements executed successfully.", successes))
}
