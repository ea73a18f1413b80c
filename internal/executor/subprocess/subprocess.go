// Package subprocess implements the subprocess-kernel executor: a
// child interpreter kernel process communicating over stdio with a
// strictly ordered request/response channel (spec.md §4.G.2).
package subprocess

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/executor"
	"github.com/kagent-dev/codesession/internal/kernelproto"
	"github.com/kagent-dev/codesession/internal/logger"
	"github.com/kagent-dev/codesession/internal/telemetry"
)

// KernelCommand is the argv used to launch the child kernel process,
// overridable for tests. Defaults to the dedicated kernel binary built
// from cmd/sessionkernel.
var KernelCommand = []string{"sessionkernel"}

const (
	startupTimeout   = 30 * time.Second
	killGracePeriod  = 3 * time.Second
)

type Executor struct {
	mu sync.Mutex

	cmd    *exec.Cmd
	stdin  *bufio.Writer
	stdout *bufio.Reader

	cfg    executor.StartConfig
	closed bool
}

func New() *Executor { return &Executor{} }

func (e *Executor) Start(ctx context.Context, cfg executor.StartConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	return e.launch(ctx)
}

func (e *Executor) launch(ctx context.Context) error {
	cmd := exec.Command(KernelCommand[0], KernelCommand[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return errs.Wrap(errs.KindExecutorUnavailable, "creating kernel stdin pipe", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return errs.Wrap(errs.KindExecutorUnavailable, "creating kernel stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return errs.Wrap(errs.KindExecutorUnavailable, "starting kernel process", err)
	}

	e.cmd = cmd
	e.stdin = bufio.NewWriter(stdinPipe)
	e.stdout = bufio.NewReader(stdoutPipe)

	params := kernelproto.BootstrapParams{
		ToolsPath:           e.cfg.ToolsPath,
		DepsMutationAllowed: true,
	}
	if e.cfg.Storage.File != nil {
		params.StorageFileBasePath = e.cfg.Storage.File.BasePath
	}
	if e.cfg.Storage.KV != nil {
		params.StorageKVURL = e.cfg.Storage.KV.ConnectionURL
		params.StorageKVPrefix = e.cfg.Storage.KV.Prefix
	}
	if e.cfg.Deps.MutationAllowed != nil {
		params.DepsMutationAllowed = e.cfg.Deps.MutationAllowed()
	}

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if _, err := e.roundTrip(startCtx, kernelproto.MethodBootstrap, params); err != nil {
		_ = e.killLocked()
		return errs.Wrap(errs.KindExecutorUnavailable, "kernel bootstrap failed", err)
	}
	return nil
}

// roundTrip sends one framed request and waits for its matching
// response; the channel is strictly ordered so no correlation map is
// needed beyond the ID echo check.
func (e *Executor) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := uuid.NewString()
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req := kernelproto.Frame{ID: id, Method: method, Params: raw}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := e.stdin.Write(append(line, '\n')); err != nil {
		return nil, errs.Wrap(errs.KindTransportError, "writing to kernel", err)
	}
	if err := e.stdin.Flush(); err != nil {
		return nil, errs.Wrap(errs.KindTransportError, "flushing kernel stdin", err)
	}

	type readResult struct {
		frame kernelproto.Frame
		err   error
	}
	ch := make(chan readResult, 1)
	go func() {
		l, err := e.stdout.ReadBytes('\n')
		if err != nil {
			ch <- readResult{err: err}
			return
		}
		var resp kernelproto.Frame
		if err := json.Unmarshal(l, &resp); err != nil {
			ch <- readResult{err: err}
			return
		}
		ch <- readResult{frame: resp}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, errs.Wrap(errs.KindTransportError, "reading from kernel", r.err)
		}
		if r.frame.ID != id {
			return nil, errs.New(errs.KindTransportError, "kernel response id mismatch")
		}
		if r.frame.Error != "" {
			return nil, errs.New(errs.Kind(r.frame.ErrorKind), r.frame.Error)
		}
		return r.frame.Result, nil
	}
}

func (e *Executor) killLocked() error {
	if e.cmd == nil || e.cmd.Process == nil {
		return nil
	}
	_ = syscall.Kill(-e.cmd.Process.Pid, syscall.SIGKILL)
	_, _ = e.cmd.Process.Wait()
	return nil
}

func (e *Executor) Execute(ctx context.Context, code string, timeout time.Duration) (executor.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return executor.ExecutionResult{}, errs.New(errs.KindExecutorClosed, "executor is closed")
	}

	_, endSpan := telemetry.StartExecute(ctx, "subprocess", len(code))
	var errKind string
	defer func() { endSpan(errKind) }()

	params := kernelproto.ExecuteParams{Code: code}
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		params.TimeoutMs = timeout.Milliseconds()
		runCtx, cancel = context.WithTimeout(ctx, timeout+time.Second)
		defer cancel()
	}

	raw, err := e.roundTrip(runCtx, kernelproto.MethodExecute, params)
	if err != nil {
		// The kernel is unresponsive or crashed: kill and restart it,
		// losing state, either way (spec.md §4.G.2).
		logger.Get().Sugar().Warnw("kernel execute failed, restarting", "err", err)
		_ = e.killLocked()
		_ = e.launch(context.Background())

		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			// Our own deadline fired: a contained, user-facing Timeout.
			errKind = "Timeout"
			return executor.ExecutionResult{
				Error: &executor.ErrorInfo{Kind: errKind, Message: err.Error()},
			}, nil
		}
		// A genuine infra fault (kernel crash, broken pipe) with no
		// timeout involved must be raised to the caller, not contained
		// as a manufactured Timeout (spec.md §7 raise-vs-contain).
		kind := errs.KindOf(err)
		if kind == "" {
			kind = errs.KindTransportError
		}
		errKind = string(kind)
		return executor.ExecutionResult{}, errs.Wrap(kind, "kernel execute failed", err)
	}

	var res kernelproto.ExecuteResult
	if err := json.Unmarshal(raw, &res); err != nil {
		errKind = string(errs.KindTransportError)
		return executor.ExecutionResult{}, errs.Wrap(errs.KindTransportError, "decoding execute result", err)
	}
	out := executor.ExecutionResult{Value: res.Value, Stdout: res.Stdout, Stderr: res.Stderr}
	if res.Error != nil {
		out.Error = &executor.ErrorInfo{Kind: res.Error.Kind, Message: res.Error.Message}
		errKind = res.Error.Kind
	}
	return out, nil
}

// Reset restarts the kernel and re-bootstraps (spec.md §4.G.2).
func (e *Executor) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errs.New(errs.KindExecutorClosed, "executor is closed")
	}
	_ = e.killLocked()
	return e.launch(ctx)
}

func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.cmd != nil {
		_, _ = e.roundTrip(ctx, kernelproto.MethodClose, struct{}{})
		done := make(chan error, 1)
		go func() { done <- e.cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(killGracePeriod):
			_ = e.killLocked()
		}
	}
	return nil
}

func (e *Executor) Capabilities() []executor.Capability {
	return []executor.Capability{
		executor.CapTimeout,
		executor.CapProcessIsolation,
		executor.CapReset,
		executor.CapDepsInstall,
	}
}
