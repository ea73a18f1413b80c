package inprocess

import (
	"context"
	"testing"
	"time"

	"github.com/kagent-dev/codesession/internal/depctl"
	"github.com/kagent-dev/codesession/internal/executor"
	"github.com/kagent-dev/codesession/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStarted(t *testing.T) *Executor {
	t.Helper()
	e := New()
	cfg := executor.StartConfig{
		Storage: storage.Access{File: &storage.FileAccess{BasePath: t.TempDir()}},
		Deps: executor.DepsStartConfig{
			Installer:       &noopInstaller{},
			MutationAllowed: func() bool { return true },
		},
	}
	require.NoError(t, e.Start(context.Background(), cfg))
	return e
}

type noopInstaller struct{}

func (noopInstaller) Install(ctx context.Context, specs []string) (depctl.InstallResult, error) {
	return depctl.InstallResult{Installed: specs}, nil
}

func TestExecuteReturnsValueAndStdout(t *testing.T) {
	e := newStarted(t)
	res, err := e.Execute(context.Background(), `print("hi")
1 + 1`, 0)
	require.NoError(t, err)
	assert.Nil(t, res.Error)
	assert.Equal(t, int64(2), res.Value)
	assert.Contains(t, res.Stdout, "hi")
}

func TestExecuteSyntaxErrorIsReturnedNotRaised(t *testing.T) {
	e := newStarted(t)
	res, err := e.Execute(context.Background(), `this is not valid (((`, 0)
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, "SyntaxError", res.Error.Kind)
}

func TestExecutePersistsStateAcrossCalls(t *testing.T) {
	e := newStarted(t)
	_, err := e.Execute(context.Background(), `counter = 1`, 0)
	require.NoError(t, err)

	res, err := e.Execute(context.Background(), `counter = counter + 1
counter`, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Value)
}

func TestResetClearsStateButKeepsNamespaces(t *testing.T) {
	e := newStarted(t)
	_, err := e.Execute(context.Background(), `counter = 1`, 0)
	require.NoError(t, err)

	require.NoError(t, e.Reset(context.Background()))

	res, err := e.Execute(context.Background(), `counter`, 0)
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, "RuntimeError", res.Error.Kind)
}

func TestExecuteTimeoutStopsInfiniteLoop(t *testing.T) {
	e := newStarted(t)
	res, err := e.Execute(context.Background(), `
i = 0
for true {
  i = i + 1
}
i
`, 20*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, "Timeout", res.Error.Kind)
}

func TestCloseIsIdempotentAndRejectsFurtherExecute(t *testing.T) {
	e := newStarted(t)
	require.NoError(t, e.Close(context.Background()))
	require.NoError(t, e.Close(context.Background()))

	_, err := e.Execute(context.Background(), `1`, 0)
	require.Error(t, err)
}

func TestCapabilitiesExcludeTimeout(t *testing.T) {
	e := newStarted(t)
	caps := e.Capabilities()
	assert.Contains(t, caps, executor.CapReset)
	assert.Contains(t, caps, executor.CapDepsInstall)
	assert.NotContains(t, caps, executor.CapTimeout)
}

func TestStartWiresNamespaceRoots(t *testing.T) {
	e := newStarted(t)
	res, err := e.Execute(context.Background(), `tools.list()`, 0)
	require.NoError(t, err)
	assert.Nil(t, res.Error)
}
