// Package inprocess implements the in-process executor: a single
// long-lived namespace dict and Env evaluated in the host process
// (spec.md §4.G.1).
package inprocess

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/evalengine"
	"github.com/kagent-dev/codesession/internal/executor"
	"github.com/kagent-dev/codesession/internal/namespace"
	"github.com/kagent-dev/codesession/internal/telemetry"
)

// Executor evaluates agent code directly against an in-memory
// evalengine.Interp. Timeout is best-effort: the interpreter checks
// ctx.Err() between top-level statements and loop iterations only, so
// a single long-running expression cannot be interrupted mid-evaluation
// (spec.md §4.G.1 — timeout support is implementation-defined).
type Executor struct {
	mu     sync.Mutex
	dict   *namespace.Dict
	interp *evalengine.Interp
	env    *evalengine.Env
	closed atomic.Bool

	stdout strings.Builder
}

func New() *Executor {
	return &Executor{}
}

func (e *Executor) Start(ctx context.Context, cfg executor.StartConfig) error {
	dict, err := namespace.Bootstrap(ctx, cfg.Storage, cfg.ToolsPath, namespace.DepsConfig{
		Installer:       cfg.Deps.Installer,
		MutationAllowed: cfg.Deps.MutationAllowed,
	})
	if err != nil {
		return errs.Wrap(errs.KindExecutorUnavailable, "bootstrapping in-process namespace", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dict = dict
	e.interp = dict.NewInterp(func(s string) { e.stdout.WriteString(s) })
	e.env = evalengine.NewEnv(nil)
	return nil
}

func (e *Executor) Execute(ctx context.Context, code string, timeout time.Duration) (executor.ExecutionResult, error) {
	if e.closed.Load() {
		return executor.ExecutionResult{}, errs.New(errs.KindExecutorClosed, "executor is closed")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	spanCtx, endSpan := telemetry.StartExecute(ctx, "inprocess", len(code))
	var errKind string
	defer func() { endSpan(errKind) }()

	runCtx := spanCtx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(spanCtx, timeout)
		defer cancel()
	}

	e.stdout.Reset()
	var stderr bytes.Buffer

	prog, err := evalengine.Compile(code)
	if err != nil {
		errKind = "SyntaxError"
		return executor.ExecutionResult{
			Stdout: e.stdout.String(),
			Stderr: stderr.String(),
			Error:  &executor.ErrorInfo{Kind: errKind, Message: err.Error()},
		}, nil
	}

	val, err := e.interp.Run(runCtx, e.env, prog.Stmts)
	if err != nil {
		kind := "RuntimeError"
		if runCtx.Err() != nil {
			kind = "Timeout"
		} else if k := errs.KindOf(err); k != "" {
			kind = mapErrKind(k)
		}
		errKind = kind
		return executor.ExecutionResult{
			Stdout: e.stdout.String(),
			Stderr: stderr.String(),
			Error:  &executor.ErrorInfo{Kind: kind, Message: err.Error()},
		}, nil
	}

	return executor.ExecutionResult{
		Value:  val,
		Stdout: e.stdout.String(),
		Stderr: stderr.String(),
	}, nil
}

// mapErrKind narrows the internal error taxonomy down to three of the
// five user-facing execute() error kinds (spec.md §4.G; Execute assigns
// SyntaxError and Timeout itself): tool/skill errors keep their own
// label, everything else becomes RuntimeError.
func mapErrKind(k errs.Kind) string {
	switch k {
	case errs.KindToolExecutionError, errs.KindToolTimeout:
		return "ToolError"
	case errs.KindSkillError:
		return "SkillError"
	default:
		return "RuntimeError"
	}
}

// Reset discards user bindings but preserves the injected namespaces
// (a fresh Env; the roots live in e.interp.Roots, untouched).
func (e *Executor) Reset(ctx context.Context) error {
	if e.closed.Load() {
		return errs.New(errs.KindExecutorClosed, "executor is closed")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env = evalengine.NewEnv(nil)
	return nil
}

func (e *Executor) Close(ctx context.Context) error {
	e.closed.Store(true)
	return nil
}

func (e *Executor) Capabilities() []executor.Capability {
	return []executor.Capability{executor.CapReset, executor.CapDepsInstall}
}
