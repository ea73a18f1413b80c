package depctl

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"
	"time"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/logger"
)

// InstallResult reports which specs landed in which bucket; contract
// is "package importable after success" (spec.md §4.F).
type InstallResult struct {
	Installed      []string
	AlreadyPresent []string
	Failed         map[string]string
}

// Installer is the package-manager contract: install(specs) with a
// per-spec outcome.
type Installer interface {
	Install(ctx context.Context, specs []string) (InstallResult, error)
}

// ExecInstaller shells out to a configured package-manager command
// (e.g. "pip install" or "npm install") per spec, one invocation per
// spec so a single failure doesn't block the rest. Grounded on the CLI
// tool adapter's subprocess-with-timeout-and-stderr-tail pattern.
type ExecInstaller struct {
	Command string
	Args    []string
	Timeout time.Duration
}

func NewExecInstaller(command string, args []string) *ExecInstaller {
	return &ExecInstaller{Command: command, Args: args, Timeout: 2 * time.Minute}
}

func (e *ExecInstaller) Install(ctx context.Context, specs []string) (InstallResult, error) {
	res := InstallResult{Failed: map[string]string{}}
	for _, spec := range specs {
		if err := e.installOne(ctx, spec); err != nil {
			res.Failed[spec] = err.Error()
			continue
		}
		res.Installed = append(res.Installed, spec)
	}
	return res, nil
}

func (e *ExecInstaller) installOne(ctx context.Context, spec string) error {
	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	argv := append(append([]string{}, e.Args...), spec)
	cmd := exec.CommandContext(runCtx, e.Command, argv...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	logger.Get().Sugar().Debugw("dep install",
		"spec", spec, "duration_ms", time.Since(start).Milliseconds(), "err", err)
	if err != nil {
		tail := tailLines(stderr.String(), 20)
		return errs.Wrap(errs.KindInstallFailed, tail, err)
	}
	return nil
}

func tailLines(s string, n int) string {
	lines := splitLines(s)
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
