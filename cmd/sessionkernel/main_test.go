package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/codesession/internal/kernelproto"
)

func bootstrapKernel(t *testing.T) *kernel {
	t.Helper()
	k := &kernel{}
	params, err := json.Marshal(kernelproto.BootstrapParams{StorageFileBasePath: t.TempDir(), DepsMutationAllowed: true})
	require.NoError(t, err)
	resp := k.handle(kernelproto.Frame{ID: "1", Method: kernelproto.MethodBootstrap, Params: params})
	require.Empty(t, resp.Error)
	return k
}

func TestHandleBootstrapInitializesInterpreterAndEnv(t *testing.T) {
	k := bootstrapKernel(t)
	assert.NotNil(t, k.interp)
	assert.NotNil(t, k.env)
}

func TestHandleExecuteEvaluatesCodeAndReturnsValue(t *testing.T) {
	k := bootstrapKernel(t)
	params, err := json.Marshal(kernelproto.ExecuteParams{Code: "1 + 1"})
	require.NoError(t, err)

	resp := k.handle(kernelproto.Frame{ID: "2", Method: kernelproto.MethodExecute, Params: params})
	require.Empty(t, resp.Error)

	var result kernelproto.ExecuteResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Nil(t, result.Error)
	assert.Equal(t, float64(2), result.Value)
}

func TestHandleExecuteSyntaxErrorIsReturnedAsResultError(t *testing.T) {
	k := bootstrapKernel(t)
	params, err := json.Marshal(kernelproto.ExecuteParams{Code: "fn ("})
	require.NoError(t, err)

	resp := k.handle(kernelproto.Frame{ID: "3", Method: kernelproto.MethodExecute, Params: params})
	require.Empty(t, resp.Error)

	var result kernelproto.ExecuteResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.NotNil(t, result.Error)
	assert.Equal(t, "SyntaxError", result.Error.Kind)
}

func TestHandleResetClearsEnvBindings(t *testing.T) {
	k := bootstrapKernel(t)
	params, _ := json.Marshal(kernelproto.ExecuteParams{Code: "x = 5"})
	resp := k.handle(kernelproto.Frame{ID: "4", Method: kernelproto.MethodExecute, Params: params})
	require.Empty(t, resp.Error)

	resp = k.handle(kernelproto.Frame{ID: "5", Method: kernelproto.MethodReset})
	require.Empty(t, resp.Error)

	params, _ = json.Marshal(kernelproto.ExecuteParams{Code: "x"})
	resp = k.handle(kernelproto.Frame{ID: "6", Method: kernelproto.MethodExecute, Params: params})
	var result kernelproto.ExecuteResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.NotNil(t, result.Error)
	assert.Equal(t, "RuntimeError", result.Error.Kind)
}

func TestHandleUnknownMethodReturnsErrorFrame(t *testing.T) {
	k := &kernel{}
	resp := k.handle(kernelproto.Frame{ID: "7", Method: "bogus"})
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, "InvalidRequest", resp.ErrorKind)
}
