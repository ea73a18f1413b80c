package namespace

import (
	"context"
	"testing"
	"time"

	"github.com/kagent-dev/codesession/internal/artifact"
	"github.com/kagent-dev/codesession/internal/depctl"
	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/evalengine"
	"github.com/kagent-dev/codesession/internal/skill"
	"github.com/kagent-dev/codesession/internal/storage"
	"github.com/kagent-dev/codesession/internal/storage/filestore"
	"github.com/kagent-dev/codesession/internal/tooling"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowAdapter blocks on a channel before returning, so tests can tell
// call_async apart from call_sync by whether Dispatch itself blocks.
type slowAdapter struct {
	release chan struct{}
}

func (a *slowAdapter) ListTools(ctx context.Context) ([]tooling.Tool, error) {
	return []tooling.Tool{{Name: "curl", Callables: []tooling.Callable{{Name: "get"}}}}, nil
}

func (a *slowAdapter) Call(ctx context.Context, toolName, recipeName string, args map[string]any) (any, error) {
	<-a.release
	return "done", nil
}

func (a *slowAdapter) Close() error { return nil }

func newMemStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := filestore.New(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	return s
}

func TestArtifactsRootDispatchSaveLoadDelete(t *testing.T) {
	root := &ArtifactsRoot{Store: artifact.NewStore(newMemStore(t))}
	ctx := context.Background()

	_, err := root.Dispatch(ctx, []string{"save"}, nil, map[string]any{
		"name": "out.txt", "data": "hello", "description": "greeting",
	})
	require.NoError(t, err)

	val, err := root.Dispatch(ctx, []string{"load"}, nil, map[string]any{"name": "out.txt"})
	require.NoError(t, err)
	m, ok := val.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "greeting", m["description"])

	deleted, err := root.Dispatch(ctx, []string{"delete"}, nil, map[string]any{"name": "out.txt"})
	require.NoError(t, err)
	assert.Equal(t, true, deleted)
}

func TestArtifactsRootRejectsUnknownMethod(t *testing.T) {
	root := &ArtifactsRoot{Store: artifact.NewStore(newMemStore(t))}
	_, err := root.Dispatch(context.Background(), []string{"rename"}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidRequest, errs.KindOf(err))
}

type alwaysOKInstaller struct{}

func (alwaysOKInstaller) Install(ctx context.Context, specs []string) (depctl.InstallResult, error) {
	return depctl.InstallResult{Installed: specs}, nil
}

func TestDepsRootDispatchAddListRemove(t *testing.T) {
	ctrl := depctl.NewController(newMemStore(t), alwaysOKInstaller{}, func() bool { return true })
	root := &DepsRoot{Controller: ctrl}
	ctx := context.Background()

	status, err := root.Dispatch(ctx, []string{"add"}, nil, map[string]any{"spec": "requests"})
	require.NoError(t, err)
	assert.Equal(t, "installed", status)

	listVal, err := root.Dispatch(ctx, []string{"list"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"requests"}, listVal)

	removed, err := root.Dispatch(ctx, []string{"remove"}, nil, map[string]any{"spec": "requests"})
	require.NoError(t, err)
	assert.Equal(t, true, removed)
}

func TestDepsRootRejectsMultiSegmentPath(t *testing.T) {
	ctrl := depctl.NewController(newMemStore(t), alwaysOKInstaller{}, func() bool { return true })
	root := &DepsRoot{Controller: ctrl}
	_, err := root.Dispatch(context.Background(), []string{"add", "extra"}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidRequest, errs.KindOf(err))
}

const skillSource = `
fn run(x) {
  return x + 1
}
`

func TestSkillsRootDefaultDispatchInvokesNamedSkill(t *testing.T) {
	lib := skill.NewLibrary(newMemStore(t), nil)
	require.NoError(t, lib.Create(context.Background(), "increment", skillSource, "", false))

	root := &SkillsRoot{Library: lib}
	ip := evalengine.NewInterp(map[string]evalengine.NamespaceRoot{"skills": root}, nil)
	root.bindInterp(ip)

	val, err := root.Dispatch(context.Background(), []string{"increment"}, []any{int64(41)}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), val)
}

func TestSkillsRootListAndCreateViaDispatch(t *testing.T) {
	lib := skill.NewLibrary(newMemStore(t), nil)
	root := &SkillsRoot{Library: lib}
	ip := evalengine.NewInterp(map[string]evalengine.NamespaceRoot{"skills": root}, nil)
	root.bindInterp(ip)
	ctx := context.Background()

	_, err := root.Dispatch(ctx, []string{"create"}, []any{"increment", skillSource, ""}, nil)
	require.NoError(t, err)

	listVal, err := root.Dispatch(ctx, []string{"list"}, nil, nil)
	require.NoError(t, err)
	items, ok := listVal.([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)
}

func TestSkillsRootInvokeWithEmptyPositionalArgsDoesNotPanic(t *testing.T) {
	lib := skill.NewLibrary(newMemStore(t), nil)
	require.NoError(t, lib.Create(context.Background(), "increment", skillSource, "", false))

	root := &SkillsRoot{Library: lib}
	ip := evalengine.NewInterp(map[string]evalengine.NamespaceRoot{"skills": root}, nil)
	root.bindInterp(ip)

	_, err := root.Dispatch(context.Background(), []string{"invoke"}, []any{"increment"}, map[string]any{"x": int64(1)})
	require.NoError(t, err)
}

func TestSkillsRootCallSyncBlocksAndReturnsTheResult(t *testing.T) {
	lib := skill.NewLibrary(newMemStore(t), nil)
	require.NoError(t, lib.Create(context.Background(), "increment", skillSource, "", false))

	root := &SkillsRoot{Library: lib}
	ip := evalengine.NewInterp(map[string]evalengine.NamespaceRoot{"skills": root}, nil)
	root.bindInterp(ip)

	val, err := root.Dispatch(context.Background(), []string{"increment", "call_sync"}, []any{int64(41)}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), val)
}

func TestSkillsRootCallAsyncReturnsAFutureResolvedByAwait(t *testing.T) {
	lib := skill.NewLibrary(newMemStore(t), nil)
	require.NoError(t, lib.Create(context.Background(), "increment", skillSource, "", false))

	root := &SkillsRoot{Library: lib}
	ip := evalengine.NewInterp(map[string]evalengine.NamespaceRoot{"skills": root}, nil)
	root.bindInterp(ip)

	val, err := root.Dispatch(context.Background(), []string{"increment", "call_async"}, []any{int64(41)}, nil)
	require.NoError(t, err)
	fut, ok := val.(*evalengine.Future)
	require.True(t, ok, "call_async must return a handle, not a blocking result")

	resolved, err := fut.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), resolved)
}

func TestToolsRootCallAsyncReturnsImmediatelyAndAwaitResolvesLater(t *testing.T) {
	registry := tooling.NewRegistry()
	adapter := &slowAdapter{release: make(chan struct{})}
	require.NoError(t, registry.Register(context.Background(), adapter))

	root := &ToolsRoot{Registry: registry}
	ip := evalengine.NewInterp(map[string]evalengine.NamespaceRoot{"tools": root}, nil)
	root.bindInterp(ip)

	start := make(chan any, 1)
	go func() {
		val, err := root.Dispatch(context.Background(), []string{"curl", "get", "call_async"}, nil, nil)
		require.NoError(t, err)
		start <- val
	}()

	var val any
	select {
	case val = <-start:
	case <-time.After(time.Second):
		t.Fatal("call_async blocked instead of returning a handle immediately")
	}
	fut, ok := val.(*evalengine.Future)
	require.True(t, ok, "call_async must return a handle, not block like call_sync")

	close(adapter.release)
	resolved, err := fut.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", resolved)
}

func TestToolsRootCallSyncBlocksUntilTheAdapterReturns(t *testing.T) {
	registry := tooling.NewRegistry()
	adapter := &slowAdapter{release: make(chan struct{})}
	require.NoError(t, registry.Register(context.Background(), adapter))
	close(adapter.release) // so call_sync below returns promptly

	root := &ToolsRoot{Registry: registry}
	val, err := root.Dispatch(context.Background(), []string{"curl", "get", "call_sync"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", val)
}

func TestRunAwaitsOutstandingCallAsyncFutureBeforeReturning(t *testing.T) {
	registry := tooling.NewRegistry()
	adapter := &slowAdapter{release: make(chan struct{})}
	require.NoError(t, registry.Register(context.Background(), adapter))

	root := &ToolsRoot{Registry: registry}
	ip := evalengine.NewInterp(map[string]evalengine.NamespaceRoot{"tools": root}, nil)
	root.bindInterp(ip)

	// Release the adapter shortly after Run starts, so the test fails by
	// timing out (not by a false pass) if Run returns before the
	// outstanding call_async goroutine is actually awaited.
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(adapter.release)
	}()

	val, err := root.Dispatch(context.Background(), []string{"curl", "get", "call_async"}, nil, nil)
	require.NoError(t, err)
	_, ok := val.(*evalengine.Future)
	require.True(t, ok)

	started := time.Now()
	done := make(chan struct{})
	go func() {
		ip.Run(context.Background(), evalengine.NewEnv(nil), nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not await the outstanding call_async future")
	}
	assert.GreaterOrEqual(t, time.Since(started), 15*time.Millisecond,
		"Run returned before the release delay, so it cannot have awaited the future")
}
