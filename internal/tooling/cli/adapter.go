package cli

import (
	"bytes"
	"context"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/logger"
	"github.com/kagent-dev/codesession/internal/tooling"
)

// Runner abstracts process execution so tests can stub tool invocation
// without spawning real processes (spec.md S3 stubs the curl adapter).
type Runner interface {
	Run(ctx context.Context, argv []string, timeout time.Duration) (stdout string, err error)
}

// execRunner is the real os/exec-backed Runner. It never invokes a shell:
// argv[0] is the executable, the rest are passed as a literal argument
// list (spec.md §4.B).
type execRunner struct{}

func (execRunner) Run(ctx context.Context, argv []string, timeout time.Duration) (string, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	setProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		killProcessGroup(cmd)
		return "", errs.New(errs.KindToolTimeout, "tool timed out after "+timeout.String())
	}
	if err != nil {
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		tail := tailLines(stderr.String(), 20)
		logger.Get().Error("cli.tool.exec", zap.Strings("argv", argv), zap.Int("exit_code", exitCode), zap.Duration("duration", duration))
		return "", errs.Wrap(errs.KindToolExecutionError, tail, err)
	}
	return stdout.String(), nil
}

func tailLines(s string, n int) string {
	if s == "" {
		return s
	}
	lines := splitLines(s)
	if len(lines) <= n {
		return s
	}
	return joinLines(lines[len(lines)-n:])
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

func joinLines(lines []string) string {
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out
}

// Adapter is the CLI tool adapter: it loads tool definitions from a
// directory of YAML files and dispatches recipe/escape-hatch calls
// through Build + Runner.
type Adapter struct {
	defs    map[string]ToolDefinition
	runner  Runner
	closed  atomic.Bool
}

// NewAdapter loads every tool definition under dir.
func NewAdapter(dir string) (*Adapter, error) {
	defs, err := LoadDirectory(dir)
	if err != nil {
		return nil, err
	}
	return newAdapterFromDefs(defs, execRunner{}), nil
}

// NewAdapterWithRunner is the test-facing constructor (spec.md S3 stubs
// the curl adapter's Runner rather than spawning a real process).
func NewAdapterWithRunner(defs []ToolDefinition, runner Runner) *Adapter {
	return newAdapterFromDefs(defs, runner)
}

func newAdapterFromDefs(defs []ToolDefinition, runner Runner) *Adapter {
	m := make(map[string]ToolDefinition, len(defs))
	for _, d := range defs {
		m[d.Name] = d
	}
	return &Adapter{defs: m, runner: runner}
}

func (a *Adapter) ListTools(ctx context.Context) ([]tooling.Tool, error) {
	var out []tooling.Tool
	for _, def := range a.defs {
		t := tooling.Tool{Name: def.Name, Description: def.Description, Tags: def.Tags}
		for name, r := range def.Recipes {
			var params []tooling.Parameter
			for pname, pspec := range r.Params {
				params = append(params, tooling.Parameter{Name: pname, Type: tooling.ParamString, Default: pspec.Default})
			}
			t.Callables = append(t.Callables, tooling.Callable{Name: name, Description: r.Description, Params: params})
		}
		if len(t.Callables) == 0 {
			// Every tool needs at least one callable (spec.md §3); the
			// escape hatch itself counts as the implicit callable.
			t.Callables = append(t.Callables, tooling.Callable{Name: "", Description: "escape hatch"})
		}
		out = append(out, t)
	}
	return out, nil
}

func (a *Adapter) Call(ctx context.Context, toolName, recipeName string, args map[string]any) (any, error) {
	if a.closed.Load() {
		return nil, errs.New(errs.KindExecutorClosed, "adapter closed")
	}
	def, ok := a.defs[toolName]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "unknown tool: "+toolName)
	}
	argv, err := Build(def, recipeName, args)
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(def.TimeoutSec) * time.Second
	start := time.Now()
	out, err := a.runner.Run(ctx, argv, timeout)
	logger.ToolCall(toolName, recipeName, time.Since(start).Seconds(), err)
	return out, err
}

func (a *Adapter) Close() error {
	a.closed.Store(true)
	return nil
}

var _ tooling.Adapter = (*Adapter)(nil)

// setProcessGroup/killProcessGroup place the child in its own process
// group so a timeout kill reaches any grandchildren it spawned. The engine
// targets Linux subprocess/container hosts, matching the session server's
// deployment model.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
