// Package batch runs batches of items, one engine session per item.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/browserprocess"
	"github.com/pagebatch/pagebatch/executable"
	"github.com/pagebatch/pagebatch/log"
	"github.com/pagebatch/pagebatch/operation"
	"github.com/pagebatch/pagebatch/osext"
	"github.com/pagebatch/pagebatch/session"
	"github.com/pagebatch/pagebatch/trace"
)

// Resolver finds engine executables.
type Resolver interface {
	Resolve(engine api.EngineType, installRoot string) (string, error)
}

// Installer provisions missing engine executables.
type Installer interface {
	EnsureInstalled(ctx context.Context, engine api.EngineType) error
}

// Launcher starts engine sessions on a loaded page.
type Launcher interface {
	Launch(ctx context.Context, engine api.EngineType, cfg session.LaunchConfig, url string) (*session.Session, error)
}

// Dispatcher runs operations on pages.
type Dispatcher interface {
	Dispatch(ctx context.Context, req operation.Request, page api.Page) (*operation.Result, error)
}

// Options tunes an Executor.
type Options struct {
	// ContinueOnFail records failed items as error outputs instead of
	// aborting the batch.
	ContinueOnFail bool
	InstallRoot    string

	// Observer defaults to a LogObserver.
	Observer Observer
	// Tracer defaults to a noop tracer.
	Tracer *trace.Tracer
	// Platform reports the host platform of error records.
	Platform func(context.Context) string
}

// Executor runs items one at a time, in order.
type Executor struct {
	resolver   Resolver
	installer  Installer
	launcher   Launcher
	dispatcher Dispatcher

	opts   Options
	logger *log.Logger
}

// NewExecutor returns an executor.
func NewExecutor(
	resolver Resolver, installer Installer, launcher Launcher, dispatcher Dispatcher,
	opts Options, logger *log.Logger,
) *Executor {
	if opts.Observer == nil {
		opts.Observer = NewLogObserver(logger)
	}
	if opts.Tracer == nil {
		opts.Tracer = trace.NewNoopTracer()
	}
	if opts.Platform == nil {
		opts.Platform = osext.Platform
	}
	return &Executor{
		resolver:   resolver,
		installer:  installer,
		launcher:   launcher,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
	}
}

// Outcome is the result of running a single item.
type Outcome struct {
	Result *operation.Result
	Err    error
}

// Run runs items and returns their outputs in input order. Unless
// ContinueOnFail is set, the first failed item stops the batch with an
// *ItemError and the outputs of the items before it.
func (e *Executor) Run(ctx context.Context, items []Item) ([]Output, error) {
	if osext.GetRunID(ctx) == "" {
		ctx = osext.WithRunID(ctx, uuid.NewString())
	}
	e.logger.Infof("Executor:Run", "runID:%s items:%d continueOnFail:%t",
		osext.GetRunID(ctx), len(items), e.opts.ContinueOnFail)

	outputs := make([]Output, 0, len(items))
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			return outputs, fmt.Errorf("running item %d: %w", i, err)
		}

		out := e.RunItem(ctx, i, it)
		if out.Err == nil {
			outputs = append(outputs, resultOutput(out.Result))
			continue
		}
		if !e.opts.ContinueOnFail {
			return outputs, &ItemError{
				Index:  i,
				Engine: api.EngineType(it.EngineName()),
				Kind:   KindOf(out.Err),
				Err:    out.Err,
			}
		}
		rec := ErrorRecord{
			Message:      out.Err.Error(),
			EngineType:   it.EngineName(),
			HostPlatform: e.opts.Platform(ctx),
		}
		outputs = append(outputs, rec.Output())
	}

	return outputs, nil
}

// RunItem runs the whole lifecycle of the item at index. A session opened
// for the item is closed before it returns.
func (e *Executor) RunItem(ctx context.Context, index int, it Item) (out Outcome) {
	itemID := osext.GetRunID(ctx) + "/" + strconv.Itoa(index)
	ctx = browserprocess.WithItemID(ctx, itemID)

	st := &tracker{index: index, observer: e.opts.Observer, logger: e.logger}
	rep := Report{Index: index, Engine: api.EngineType(it.EngineName()), Operation: operation.Kind(it.Operation)}
	start := time.Now()

	ctx, _ = e.opts.Tracer.TraceItem(ctx, itemID, index,
		attribute.String(trace.AttrEngine, it.EngineName()),
		attribute.String(trace.AttrOperation, it.Operation),
		attribute.String(trace.AttrURL, it.URL),
	)
	defer func() {
		if out.Err != nil {
			st.to(StateFailed)
		}
		e.opts.Tracer.EndItem(itemID, out.Err)
		rep.Duration = time.Since(start)
		rep.Err = out.Err
		e.opts.Observer.ItemFinished(rep)
	}()

	engine, err := it.Engine()
	if err != nil {
		return Outcome{Err: &session.LaunchError{Engine: api.EngineType(it.EngineName()), Err: err}}
	}
	req, err := it.Request()
	if err != nil {
		return Outcome{Err: err}
	}

	st.to(StateResolving)
	path, err := e.resolve(ctx, itemID, engine, st, &rep)
	if err != nil {
		return Outcome{Err: err}
	}

	st.to(StateLaunching)
	cfg := it.LaunchConfig()
	cfg.ExecutablePath = path
	hooks := &session.Hooks{OnStage: func(s session.Stage) {
		switch s {
		case session.StageContextReady:
			st.to(StateContextReady)
		case session.StageNavigated:
			st.to(StateNavigated)
		case session.StageLaunched:
		}
		e.opts.Tracer.AddItemEvent(itemID, string(s))
	}}
	lctx, span := e.opts.Tracer.TracePhase(ctx, itemID, "launch")
	sess, err := e.launcher.Launch(session.WithHooks(lctx, hooks), engine, cfg, req.TargetURL())
	span.End()
	if err != nil {
		return Outcome{Err: err}
	}

	st.to(StateDispatched)
	dctx, span := e.opts.Tracer.TracePhase(ctx, itemID, "dispatch")
	res, err := e.dispatcher.Dispatch(dctx, req, sess.Page)
	span.End()

	_, span = e.opts.Tracer.TracePhase(ctx, itemID, "close")
	if cerr := sess.Close(ctx); cerr != nil {
		e.logger.Warnf("Executor:RunItem", "item:%d closing session: %v", index, cerr)
	}
	span.End()

	if err != nil {
		return Outcome{Err: err}
	}
	st.to(StateClosed)
	st.to(StateDone)

	return Outcome{Result: res}
}

// resolve looks up the executable, installing the engine and looking again
// once if it is missing.
func (e *Executor) resolve(
	ctx context.Context, itemID string, engine api.EngineType, st *tracker, rep *Report,
) (string, error) {
	_, span := e.opts.Tracer.TracePhase(ctx, itemID, "resolve")
	defer span.End()

	rep.ResolveAttempts++
	path, err := e.resolver.Resolve(engine, e.opts.InstallRoot)
	if err == nil {
		return path, nil
	}
	if !errors.Is(err, executable.ErrNotFound) {
		return "", &session.LaunchError{Engine: engine, Err: fmt.Errorf("resolving executable: %w", err)}
	}
	e.logger.Errorf("Executor:resolve", "item:%d %v", st.index, err)

	st.to(StateInstalling)
	rep.Installed = true
	rep.InstallErr = e.installer.EnsureInstalled(ctx, engine)
	if rep.InstallErr != nil {
		e.logger.Errorf("Executor:resolve", "item:%d %v", st.index, rep.InstallErr)
	}

	st.to(StateResolvingRetry)
	rep.ResolveAttempts++
	path, err = e.resolver.Resolve(engine, e.opts.InstallRoot)
	if err != nil {
		if rep.InstallErr != nil {
			err = fmt.Errorf("%w (install: %w)", err, rep.InstallErr)
		}
		return "", &session.LaunchError{Engine: engine, Err: fmt.Errorf("resolving executable after install: %w", err)}
	}
	e.logger.Debugf("Executor:resolve", "item:%d engine:%s executablePath:%q", st.index, engine, path)

	return path, nil
}

// tracker holds the state of an item and reports its transitions.
type tracker struct {
	index    int
	state    State
	observer Observer
	logger   *log.Logger
}

func (t *tracker) to(next State) {
	if t.state.Terminal() {
		return
	}
	if !t.state.CanTransitionTo(next) {
		t.logger.Errorf("Executor:state", "item:%d unexpected transition %s -> %s", t.index, t.state, next)
	}
	from := t.state
	t.state = next
	t.observer.StateChanged(t.index, from, next)
}
