// Package session implements the session orchestrator: the facade that
// composes storage and an executor, drives start/close, and exposes
// every operation an agent-facing caller needs (spec.md §4.J).
package session

import (
	"context"
	"time"

	"github.com/kagent-dev/codesession/internal/artifact"
	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/executor"
	"github.com/kagent-dev/codesession/internal/namespace"
	"github.com/kagent-dev/codesession/internal/skill"
)

// Config selects the executor backend and bootstrap inputs.
type Config struct {
	Backend         string
	Registry        *executor.Registry
	StartConfig     executor.StartConfig
	SyncDepsOnStart bool
}

// Session is the scoped facade over one executor + namespace dict.
type Session struct {
	exec    executor.Executor
	dict    *namespace.Dict
	started bool
}

// Open constructs storage + executor, starts the executor, optionally
// syncs deps, and returns a Session plus a release func that is safe to
// call on every exit path (normal completion, error, cancellation).
func Open(ctx context.Context, cfg Config) (*Session, func(context.Context) error, error) {
	exec, err := cfg.Registry.New(cfg.Backend)
	if err != nil {
		return nil, nil, err
	}
	if err := exec.Start(ctx, cfg.StartConfig); err != nil {
		return nil, nil, err
	}

	dict, err := namespace.Bootstrap(ctx, cfg.StartConfig.Storage, cfg.StartConfig.ToolsPath, namespace.DepsConfig{
		Installer:       cfg.StartConfig.Deps.Installer,
		MutationAllowed: cfg.StartConfig.Deps.MutationAllowed,
	})
	if err != nil {
		_ = exec.Close(ctx)
		return nil, nil, err
	}

	s := &Session{exec: exec, dict: dict}
	release := func(releaseCtx context.Context) error { return s.exec.Close(releaseCtx) }

	if cfg.SyncDepsOnStart {
		if _, err := dict.Deps.Controller.Sync(ctx); err != nil {
			_ = release(ctx)
			return nil, nil, err
		}
	}
	s.started = true
	return s, release, nil
}

func (s *Session) requireStarted() error {
	if !s.started {
		return errs.New(errs.KindExecutorUnavailable, "session not started")
	}
	return nil
}

func (s *Session) Run(ctx context.Context, code string, timeout time.Duration) (executor.ExecutionResult, error) {
	if err := s.requireStarted(); err != nil {
		return executor.ExecutionResult{}, err
	}
	return s.exec.Execute(ctx, code, timeout)
}

func (s *Session) Reset(ctx context.Context) error {
	if err := s.requireStarted(); err != nil {
		return err
	}
	return s.exec.Reset(ctx)
}

func (s *Session) Supports(cap executor.Capability) bool {
	for _, c := range s.exec.Capabilities() {
		if c == cap {
			return true
		}
	}
	return false
}

func (s *Session) SupportedCapabilities() []executor.Capability {
	return s.exec.Capabilities()
}

// --- tools ---

func (s *Session) ListTools() []any {
	return toAnySlice(s.dict.Tools.Registry.List())
}

func (s *Session) SearchTools(query string) []any {
	return toAnySlice(s.dict.Tools.Registry.Search(query))
}

// --- skills ---

func (s *Session) ListSkills(ctx context.Context) ([]skill.Summary, error) {
	return s.dict.Skills.Library.List(ctx)
}

func (s *Session) SearchSkills(ctx context.Context, query string, limit int) ([]skill.Summary, error) {
	return s.dict.Skills.Library.Search(ctx, query, limit)
}

func (s *Session) GetSkill(ctx context.Context, name string) (skill.Record, error) {
	return s.dict.Skills.Library.Get(ctx, name)
}

func (s *Session) AddSkill(ctx context.Context, name, source, description string, overwrite bool) error {
	return s.dict.Skills.Library.Create(ctx, name, source, description, overwrite)
}

func (s *Session) RemoveSkill(ctx context.Context, name string) (bool, error) {
	return s.dict.Skills.Library.Delete(ctx, name)
}

// --- artifacts ---

func (s *Session) ListArtifacts(ctx context.Context) ([]artifact.Summary, error) {
	return s.dict.Artifacts.Store.List(ctx)
}

func (s *Session) SaveArtifact(ctx context.Context, name string, data []byte, description string, metadata map[string]any) error {
	return s.dict.Artifacts.Store.Save(ctx, name, data, description, metadata)
}

func (s *Session) LoadArtifact(ctx context.Context, name string) (artifact.Record, error) {
	return s.dict.Artifacts.Store.Load(ctx, name)
}

func (s *Session) DeleteArtifact(ctx context.Context, name string) (bool, error) {
	return s.dict.Artifacts.Store.Delete(ctx, name)
}

// --- deps ---

func (s *Session) ListDeps(ctx context.Context) ([]string, error) {
	return s.dict.Deps.Controller.List(ctx)
}

func (s *Session) AddDep(ctx context.Context, spec string) (string, error) {
	return s.dict.Deps.Controller.Add(ctx, spec)
}

func (s *Session) RemoveDep(ctx context.Context, spec string) (bool, error) {
	return s.dict.Deps.Controller.Remove(ctx, spec)
}

func (s *Session) SyncDeps(ctx context.Context) (any, error) {
	return s.dict.Deps.Controller.Sync(ctx)
}

func toAnySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
