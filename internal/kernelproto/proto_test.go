package kernelproto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTripsThroughJSON(t *testing.T) {
	params, err := json.Marshal(ExecuteParams{Code: `1 + 1`, TimeoutMs: 500})
	require.NoError(t, err)

	f := Frame{ID: "req-1", Method: MethodExecute, Params: params}
	data, err := json.Marshal(f)
	require.NoError(t, err)

	var got Frame
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "req-1", got.ID)
	assert.Equal(t, MethodExecute, got.Method)

	var p ExecuteParams
	require.NoError(t, json.Unmarshal(got.Params, &p))
	assert.Equal(t, "1 + 1", p.Code)
	assert.Equal(t, int64(500), p.TimeoutMs)
}

func TestFrameOmitsEmptyResultAndError(t *testing.T) {
	f := Frame{ID: "req-2", Method: MethodReset}
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"result"`)
	assert.NotContains(t, string(data), `"error"`)
}

func TestErrorFrameCarriesKindAndMessage(t *testing.T) {
	f := Frame{ID: "req-3", Error: "boom", ErrorKind: "RuntimeError"}
	data, err := json.Marshal(f)
	require.NoError(t, err)

	var got Frame
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "boom", got.Error)
	assert.Equal(t, "RuntimeError", got.ErrorKind)
}
