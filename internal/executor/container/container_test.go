package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/executor"
)

func TestDefaultConfigSetsImage(t *testing.T) {
	cfg := DefaultConfig()
	assert.NotEmpty(t, cfg.Image)
}

func TestCapabilitiesIncludesNetworkIsolationOnlyWhenDisabled(t *testing.T) {
	e := New(Config{})
	assert.NotContains(t, e.Capabilities(), executor.CapNetworkIsolation)

	e = New(Config{DisableNetwork: true})
	assert.Contains(t, e.Capabilities(), executor.CapNetworkIsolation)
	assert.Contains(t, e.Capabilities(), executor.CapContainerIsolation)
	assert.Contains(t, e.Capabilities(), executor.CapDepsInstall)
}

func TestCloseOnNeverStartedExecutorIsANoop(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.Close(context.Background()))
	require.NoError(t, e.Close(context.Background()))
}

func TestExecuteAfterCloseReturnsExecutorClosed(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.Close(context.Background()))

	_, err := e.Execute(context.Background(), "1 + 1", 0)
	require.Error(t, err)
	assert.Equal(t, errs.KindExecutorClosed, errs.KindOf(err))
}

func TestResetAfterCloseReturnsExecutorClosed(t *testing.T) {
	e := New(DefaultConfig())
	require.NoError(t, e.Close(context.Background()))

	err := e.Reset(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.KindExecutorClosed, errs.KindOf(err))
}

func TestRandomTokenProducesDistinctHexValues(t *testing.T) {
	a, err := randomToken()
	require.NoError(t, err)
	b, err := randomToken()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
