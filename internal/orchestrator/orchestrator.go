// Package orchestrator fans a statement batch out to a list of databases on
// one server, exports the results and streams per-database progress.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dbsmedya/gofanout/internal/export"
	"github.com/dbsmedya/gofanout/internal/logger"
	"github.com/dbsmedya/gofanout/internal/sqlutil"
	"github.com/dbsmedya/gofanout/internal/types"
)

// ErrFolderSelection is returned when an export folder was required but the
// picker failed or never answered.
var ErrFolderSelection = errors.New("folder selection failed")

// FolderPicker chooses the export folder. ok is false when the user
// declined to pick one.
type FolderPicker interface {
	PickFolder(ctx context.Context) (path string, ok bool, err error)
}

// FolderPickerFunc adapts a function to the FolderPicker interface.
type FolderPickerFunc func(ctx context.Context) (string, bool, error)

// PickFolder calls f(ctx).
func (f FolderPickerFunc) PickFolder(ctx context.Context) (string, bool, error) {
	return f(ctx)
}

// DatabaseRunner executes a statement batch against one database.
type DatabaseRunner interface {
	Run(ctx context.Context, profile types.ConnectionProfile, database string, statements []string, stopOnError bool) types.DatabaseReport
}

// Request describes one execution.
type Request struct {
	Profile     types.ConnectionProfile
	Databases   []string
	Query       string
	SavePolicy  types.SavePolicy
	StopOnError bool
}

// Summary describes a finished execution.
type Summary struct {
	Processed    int
	Succeeded    int
	Failed       int
	Folder       string
	FilesWritten int    // CSV files actually written to Folder
	CombinedFile string // empty unless a combined export was written
	ExportErr    error  // combined export failure; per-database failures are in the reports
	StartedAt    time.Time
	CompletedAt  time.Time
}

// Duration returns the wall time of the execution.
func (s Summary) Duration() time.Duration {
	return s.CompletedAt.Sub(s.StartedAt)
}

// Execution is a handle on a launched (or cancelled) run.
type Execution struct {
	done      chan struct{}
	cancelled bool
	summary   Summary
}

func newExecution() *Execution {
	return &Execution{done: make(chan struct{})}
}

func cancelledExecution() *Execution {
	e := newExecution()
	e.cancelled = true
	close(e.done)
	return e
}

// Done is closed when the run has finished.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the run has finished and returns its summary.
func (e *Execution) Wait() Summary {
	<-e.done
	return e.summary
}

// Cancelled reports whether the run was abandoned because no folder was
// chosen. A cancelled execution touched no database.
func (e *Execution) Cancelled() bool {
	return e.cancelled
}

// Summary returns the summary of a finished run, or the zero value while
// it is still running.
func (e *Execution) Summary() Summary {
	select {
	case <-e.done:
		return e.summary
	default:
		return Summary{}
	}
}

// Orchestrator runs requests database by database.
type Orchestrator struct {
	runner  DatabaseRunner
	picker  FolderPicker
	emitter Emitter
	logger  *logger.Logger
}

// New creates an orchestrator. The picker may be nil when no request will
// ask for an export.
func New(runner DatabaseRunner, picker FolderPicker, emitter Emitter) (*Orchestrator, error) {
	if runner == nil {
		return nil, fmt.Errorf("database runner is nil")
	}
	if emitter == nil {
		return nil, fmt.Errorf("emitter is nil")
	}

	return &Orchestrator{
		runner:  runner,
		picker:  picker,
		emitter: emitter,
		logger:  logger.NewDefault(),
	}, nil
}

// SetLogger sets a custom logger for the orchestrator.
func (o *Orchestrator) SetLogger(log *logger.Logger) {
	o.logger = log
}

// Execute resolves the export folder, then launches the run in the
// background and returns immediately. Once launched, the run is not
// affected by cancellation of ctx.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Execution, error) {
	policy, err := types.ParseSavePolicy(string(req.SavePolicy))
	if err != nil {
		return nil, err
	}
	req.SavePolicy = policy

	var folder string
	if policy.NeedsFolder() {
		path, ok, err := o.pickFolder(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			o.logger.Infow("No export folder selected, execution cancelled")
			return cancelledExecution(), nil
		}
		folder = path
	}

	exec := newExecution()
	go o.run(context.WithoutCancel(ctx), req, folder, exec)
	return exec, nil
}

type pickResult struct {
	path string
	ok   bool
	err  error
}

// pickFolder asks the picker once and waits for its single answer.
func (o *Orchestrator) pickFolder(ctx context.Context) (string, bool, error) {
	if o.picker == nil {
		return "", false, fmt.Errorf("%w: no folder picker configured", ErrFolderSelection)
	}

	answer := make(chan pickResult, 1)
	go func() {
		path, ok, err := o.picker.PickFolder(ctx)
		answer <- pickResult{path: path, ok: ok, err: err}
	}()

	select {
	case r := <-answer:
		if r.err != nil {
			return "", false, fmt.Errorf("%w: %w", ErrFolderSelection, r.err)
		}
		return r.path, r.ok && r.path != "", nil
	case <-ctx.Done():
		return "", false, fmt.Errorf("%w: %w", ErrFolderSelection, ctx.Err())
	}
}

// process runs one database and applies the export policy. A panic is
// turned into an error report so every target still gets exactly one.
func (o *Orchestrator) process(ctx context.Context, req Request, db string, statements []string,
	folder string, summary *Summary, combined *[]export.Entry) (report types.DatabaseReport) {
	dbLog := o.logger.WithProfile(req.Profile.Name).WithDatabase(db)
	defer func() {
		if r := recover(); r != nil {
			dbLog.Errorw("Database run panicked", "panic", r)
			report = types.DatabaseReport{Name: db, Status: types.StatusError, Results: report.Results}
			report.SetLog(fmt.Sprintf("Internal error: %v", r))
		}
	}()

	report = o.runner.Run(ctx, req.Profile, db, statements, req.StopOnError)

	switch req.SavePolicy {
	case types.SaveSeparate:
		if result := report.LastTabular(); result != nil {
			path := filepath.Join(folder, export.FileNameFor(db))
			if err := export.WriteSingle(path, result); err != nil {
				dbLog.Warnw("Failed to save CSV", "path", path, "error", err)
				report.Status = types.StatusError
				report.SetLog(fmt.Sprintf("Query succeeded, but failed to save CSV: %v", err))
			} else {
				summary.FilesWritten++
			}
		}
	case types.SaveSingle:
		if result := report.LastTabular(); result != nil && report.Status == types.StatusSuccess {
			*combined = append(*combined, export.Entry{Database: db, Result: result})
		}
	}
	return report
}

func (o *Orchestrator) run(ctx context.Context, req Request, folder string, exec *Execution) {
	summary := Summary{Folder: folder, StartedAt: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Errorw("Execution aborted", "panic", r)
		}
		summary.CompletedAt = time.Now()
		exec.summary = summary
		close(exec.done)
	}()

	log := o.logger.WithProfile(req.Profile.Name)

	statements := sqlutil.SplitStatements(req.Query)
	if len(statements) == 0 {
		log.Infow("Nothing to execute")
		return
	}

	log.Infow("Starting execution",
		"databases", len(req.Databases),
		"statements", len(statements),
		"save", req.SavePolicy,
	)

	var combined []export.Entry
	for _, db := range req.Databases {
		report := o.process(ctx, req, db, statements, folder, &summary, &combined)
		dbLog := log.WithDatabase(db)

		summary.Processed++
		if report.Status == types.StatusSuccess {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		dbLog.Infow("Database processed", "status", report.Status, "log", report.LogLine())

		if err := o.emitter.Emit(EventExecutionStatusUpdate, report); err != nil {
			dbLog.Warnw("Failed to emit status update", "error", err)
		}
	}

	if req.SavePolicy == types.SaveSingle && len(combined) > 0 {
		path := filepath.Join(folder, export.CombinedFileName)
		if err := export.WriteCombined(path, combined); err != nil {
			log.Errorw("Failed to save combined CSV", "path", path, "error", err)
			summary.ExportErr = err
		} else {
			summary.CombinedFile = path
			summary.FilesWritten++
		}
	}

	log.Infow("Execution finished",
		"processed", summary.Processed,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
}
