package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/codesession/internal/errs"
)

type stubRunner struct {
	lastArgv []string
	stdout   string
	err      error
}

func (s *stubRunner) Run(ctx context.Context, argv []string, timeout time.Duration) (string, error) {
	s.lastArgv = argv
	return s.stdout, s.err
}

func TestAdapterListToolsExposesCallablesFromRecipes(t *testing.T) {
	def := testDef()
	a := NewAdapterWithRunner([]ToolDefinition{def}, &stubRunner{})

	tools, err := a.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Len(t, tools[0].Callables, 1)
	assert.Equal(t, "get", tools[0].Callables[0].Name)
}

func TestAdapterListToolsAddsImplicitEscapeHatchWhenNoRecipes(t *testing.T) {
	def := testDef()
	def.Recipes = nil
	a := NewAdapterWithRunner([]ToolDefinition{def}, &stubRunner{})

	tools, err := a.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools[0].Callables, 1)
	assert.Equal(t, "", tools[0].Callables[0].Name)
}

func TestAdapterCallBuildsArgvAndInvokesRunner(t *testing.T) {
	def := testDef()
	runner := &stubRunner{stdout: "ok"}
	a := NewAdapterWithRunner([]ToolDefinition{def}, runner)

	out, err := a.Call(context.Background(), "curl", "get", map[string]any{"url": "http://x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, []string{"curl", "-X", "GET", "http://x"}, runner.lastArgv)
}

func TestAdapterCallUnknownToolReturnsNotFound(t *testing.T) {
	a := NewAdapterWithRunner(nil, &stubRunner{})
	_, err := a.Call(context.Background(), "ghost", "", nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestAdapterCallAfterCloseReturnsExecutorClosed(t *testing.T) {
	def := testDef()
	a := NewAdapterWithRunner([]ToolDefinition{def}, &stubRunner{})
	require.NoError(t, a.Close())

	_, err := a.Call(context.Background(), "curl", "get", map[string]any{"url": "http://x"})
	require.Error(t, err)
	assert.Equal(t, errs.KindExecutorClosed, errs.KindOf(err))
}

func TestAdapterCallPropagatesRunnerError(t *testing.T) {
	def := testDef()
	runner := &stubRunner{err: errs.New(errs.KindToolExecutionError, "boom")}
	a := NewAdapterWithRunner([]ToolDefinition{def}, runner)

	_, err := a.Call(context.Background(), "curl", "get", map[string]any{"url": "http://x"})
	require.Error(t, err)
	assert.Equal(t, errs.KindToolExecutionError, errs.KindOf(err))
}
