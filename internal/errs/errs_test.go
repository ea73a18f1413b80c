package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfUnwrapsWrappedChains(t *testing.T) {
	base := New(KindNotFound, "skill not found")
	wrapped := fmt.Errorf("loading skill: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain error")))
}

func TestIsMatchesByKindOnly(t *testing.T) {
	err := Wrap(KindInstallFailed, "pip exited 1", errors.New("boom"))
	assert.True(t, errors.Is(err, New(KindInstallFailed, "")))
	assert.False(t, errors.Is(err, New(KindTimeout, "")))
}

func TestErrorStringIncludesWrappedCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindStorageUnavailable, "opening store", cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "StorageUnavailable")
}
