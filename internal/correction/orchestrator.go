// Package correction applies pending lessons: protocol edits go through the
// protocol store, code changes become plans, and the protocol document is
// recompiled when anything changed.
package correction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/govern/internal/compiler"
	"github.com/steveyegge/govern/internal/events"
	"github.com/steveyegge/govern/internal/lessons"
	"github.com/steveyegge/govern/internal/logging"
	"github.com/steveyegge/govern/internal/protocol"
	"github.com/steveyegge/govern/internal/storage"
)

// lockHolder identifies this process in the journal lock file.
const lockHolder = "govern self-correction"

// UnknownCommandError marks a lesson whose action this version cannot apply.
// The lesson stays pending.
type UnknownCommandError struct {
	LessonID string
	Type     lessons.ActionType
	Command  string
}

func (e *UnknownCommandError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("lesson %s: unsupported action type %q; left pending", e.LessonID, e.Type)
	}
	return fmt.Sprintf("lesson %s: unsupported %s command %q; left pending", e.LessonID, e.Type, e.Command)
}

// Config wires an Orchestrator. Journal and Store are required.
type Config struct {
	Journal *lessons.Journal
	Store   *protocol.Store
	// Compiler regenerates the protocol document after a mutation. Nil skips it.
	Compiler *compiler.Compiler
	// Suggester handles code-change lessons. Nil uses the system temp dir.
	Suggester *Suggester
	// Activity receives a record per transition and per compilation.
	Activity *events.Writer
	// Recorder receives every transition too, typically the activity index.
	Recorder lessons.TransitionRecorder
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Outcome is what happened to one pending lesson.
type Outcome struct {
	LessonID string
	Action   string
	Status   lessons.Status
	// PlanPath is set for code-change lessons that produced a plan.
	PlanPath string
	Err      error
}

// Report summarizes an Orchestrator pass.
type Report struct {
	Outcomes []Outcome
	Applied  int
	Failed   int
	Skipped  int
	// Mutated is set when at least one protocol command succeeded.
	Mutated bool
	// Compile is the recompilation result, if one ran and produced a document.
	Compile    *compiler.Result
	CompileErr error
}

// PlanPaths returns the plans produced for code-change lessons, in order.
func (r *Report) PlanPaths() []string {
	var paths []string
	for _, o := range r.Outcomes {
		if o.PlanPath != "" {
			paths = append(paths, o.PlanPath)
		}
	}
	return paths
}

// Orchestrator runs self-correction passes over a lesson journal.
type Orchestrator struct {
	cfg      Config
	recorder lessons.TransitionRecorder
	logger   *zap.Logger
	now      func() time.Time
}

// New validates cfg and builds an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Journal == nil {
		return nil, fmt.Errorf("correction: lesson journal is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("correction: protocol store is required")
	}
	if cfg.Suggester == nil {
		cfg.Suggester = NewSuggester("", cfg.Logger)
	}

	var recorders lessons.MultiRecorder
	if cfg.Activity != nil {
		recorders = append(recorders, activityRecorder{log: cfg.Activity})
	}
	if cfg.Recorder != nil {
		recorders = append(recorders, cfg.Recorder)
	}

	o := &Orchestrator{
		cfg:    cfg,
		logger: logging.OrNop(cfg.Logger),
		now:    cfg.Clock,
	}
	if len(recorders) > 0 {
		o.recorder = recorders
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Run processes every pending lesson in journal order, rewrites the journal
// once with the new statuses, and recompiles protocols if any were mutated.
// Per-lesson failures are reported in the Report; Run itself fails only when
// the journal cannot be locked, read, or rewritten.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	lockPath, err := storage.AcquireExclusiveLock(o.cfg.Journal.Path(), lockHolder)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := storage.ReleaseExclusiveLock(lockPath); err != nil {
			o.logger.Warn("failed to release journal lock", zap.String("lock", lockPath), zap.Error(err))
		}
	}()

	all, err := o.cfg.Journal.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading lesson journal: %w", err)
	}

	report := &Report{}
	var runErr error
	for _, l := range lessons.Pending(all) {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		report.Outcomes = append(report.Outcomes, o.process(ctx, l, report))
	}

	if len(report.Outcomes) > 0 {
		if err := o.cfg.Journal.Rewrite(all); err != nil {
			return report, fmt.Errorf("rewriting lesson journal: %w", err)
		}
	}

	if report.Mutated && runErr == nil {
		o.recompile(ctx, report)
	}

	o.logger.Info("self-correction pass finished",
		zap.Int("applied", report.Applied),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Bool("recompiled", report.Compile != nil))
	return report, runErr
}

func (o *Orchestrator) process(ctx context.Context, l *lessons.Lesson, report *Report) Outcome {
	out := Outcome{LessonID: l.LessonID, Action: l.Action.Label(), Status: lessons.StatusPending}

	var err error
	switch l.Action.Type {
	case lessons.ActionUpdateProtocol:
		switch l.Action.Command {
		case lessons.CommandAddTool, lessons.CommandUpdateRule:
			if err = o.applyProtocolCommand(ctx, l.Action); err == nil {
				report.Mutated = true
			}
		default:
			err = &UnknownCommandError{LessonID: l.LessonID, Type: l.Action.Type, Command: l.Action.Command}
		}
	case lessons.ActionProposeCodeChange:
		out.PlanPath, err = o.cfg.Suggester.Suggest(
			l.Action.Parameters[lessons.ParamFilepath],
			l.Action.Parameters[lessons.ParamDiff],
		)
	default:
		err = &UnknownCommandError{LessonID: l.LessonID, Type: l.Action.Type}
	}

	var unknown *UnknownCommandError
	if errors.As(err, &unknown) {
		o.logger.Warn("skipping lesson", zap.String("lesson_id", l.LessonID), zap.Error(unknown))
		report.Skipped++
		out.Err = unknown
		return out
	}

	to, reason := lessons.StatusApplied, out.Action
	if err != nil {
		to, reason = lessons.StatusFailed, err.Error()
		o.logger.Warn("lesson failed", zap.String("lesson_id", l.LessonID), zap.Error(err))
		report.Failed++
	} else {
		report.Applied++
	}
	out.Status, out.Err = to, err

	if terr := lessons.TransitionStatus(ctx, l, to, reason, o.recorder, o.now()); terr != nil {
		o.logger.Warn("lesson transition", zap.String("lesson_id", l.LessonID), zap.Error(terr))
	}
	return out
}

func (o *Orchestrator) applyProtocolCommand(ctx context.Context, a lessons.Action) error {
	if err := a.Validate(); err != nil {
		return err
	}
	p := a.Parameters
	switch a.Command {
	case lessons.CommandAddTool:
		_, err := o.cfg.Store.AddTool(ctx, p[lessons.ParamProtocolID], p[lessons.ParamToolName])
		return err
	default:
		return o.cfg.Store.UpdateRule(ctx, p[lessons.ParamProtocolID], p[lessons.ParamRuleID], p[lessons.ParamDescription])
	}
}

func (o *Orchestrator) recompile(ctx context.Context, report *Report) {
	if o.cfg.Compiler == nil {
		return
	}
	res, err := o.cfg.Compiler.Compile(ctx)
	report.Compile, report.CompileErr = res, err
	if err != nil {
		o.logger.Error("protocol recompilation failed", zap.Error(err))
	}

	if o.cfg.Activity == nil {
		return
	}
	var rec events.Record
	switch {
	case res != nil:
		rec = events.NewCompileRecord(res.OutputFile, res.Protocols, res.UsedFallback, res.Cause)
	default:
		rec = events.NewCompileRecord("", 0, false, err)
		rec.Status = events.StatusFailure
		rec.Message = "protocol compilation aborted"
	}
	if _, lerr := o.cfg.Activity.Log(ctx, rec); lerr != nil {
		o.logger.Warn("failed to log compilation", zap.Error(lerr))
	}
}
