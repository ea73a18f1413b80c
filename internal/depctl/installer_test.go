package depctl

import (
	"context"
	"testing"
	"time"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecInstallerInstallsEachSpecIndependently(t *testing.T) {
	inst := NewExecInstaller("true", nil)
	inst.Timeout = 5 * time.Second

	res, err := inst.Install(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, res.Installed)
	assert.Empty(t, res.Failed)
}

func TestExecInstallerCollectsPerSpecFailuresWithoutAbortingBatch(t *testing.T) {
	inst := NewExecInstaller("false", nil)
	inst.Timeout = 5 * time.Second

	res, err := inst.Install(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, res.Installed)
	assert.Len(t, res.Failed, 2)
	for _, spec := range []string{"a", "b"} {
		msg, ok := res.Failed[spec]
		require.True(t, ok)
		assert.NotEmpty(t, msg)
	}
}

func TestExecInstallerUnknownCommandReturnsInstallFailedKind(t *testing.T) {
	inst := NewExecInstaller("definitely-not-a-real-command-xyz", nil)
	inst.Timeout = 5 * time.Second

	res, _ := inst.Install(context.Background(), []string{"a"})
	msg, ok := res.Failed["a"]
	require.True(t, ok)
	assert.NotEmpty(t, msg)
	_ = errs.KindInstallFailed
}
