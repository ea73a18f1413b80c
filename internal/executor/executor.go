// Package executor defines the common Executor contract shared by the
// in-process, subprocess-kernel, and container backends (spec.md §4.G).
package executor

import (
	"context"
	"time"

	"github.com/kagent-dev/codesession/internal/depctl"
	"github.com/kagent-dev/codesession/internal/storage"
)

// Capability names the optional behaviors an Executor advertises.
type Capability string

const (
	CapTimeout            Capability = "timeout"
	CapProcessIsolation   Capability = "process_isolation"
	CapContainerIsolation Capability = "container_isolation"
	CapNetworkIsolation   Capability = "network_isolation"
	CapReset              Capability = "reset"
	CapDepsInstall        Capability = "deps_install"
)

// ErrorInfo is the populated-on-failure half of ExecutionResult; Kind
// is one of SyntaxError/RuntimeError/Timeout/ToolError/SkillError.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ExecutionResult is the uniform outcome of a single execute call.
// execute never raises for user-code errors; it raises only for
// infrastructure faults (ExecutorUnavailable, TransportError).
type ExecutionResult struct {
	Value  any        `json:"value"`
	Stdout string     `json:"stdout"`
	Stderr string     `json:"stderr"`
	Error  *ErrorInfo `json:"error,omitempty"`
}

// StartConfig is the input to Start: a storage descriptor plus the
// tool/deps configuration needed to bootstrap an identical namespace
// dict locally or in a remote process (spec.md §4.H).
type StartConfig struct {
	Storage   storage.Access
	ToolsPath string
	Deps      DepsStartConfig
}

// DepsStartConfig carries installer wiring across a process boundary.
// Out-of-process executors do not send Installer to the child, which
// constructs its own installer locally instead of serializing one.
type DepsStartConfig struct {
	Installer       depctl.Installer
	MutationAllowed func() bool
}

// Executor is the common contract every backend implements.
type Executor interface {
	Start(ctx context.Context, cfg StartConfig) error
	Execute(ctx context.Context, code string, timeout time.Duration) (ExecutionResult, error)
	Reset(ctx context.Context) error
	Close(ctx context.Context) error
	Capabilities() []Capability
}
