package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kagent-dev/codesession/internal/depctl"
	"github.com/kagent-dev/codesession/internal/executor"
	"github.com/kagent-dev/codesession/internal/executor/inprocess"
	"github.com/kagent-dev/codesession/internal/namespace"
	"github.com/kagent-dev/codesession/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopInstaller struct{}

func (noopInstaller) Install(ctx context.Context, specs []string) (depctl.InstallResult, error) {
	return depctl.InstallResult{Installed: specs}, nil
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	access := storage.Access{File: &storage.FileAccess{BasePath: t.TempDir()}}
	depsCfg := namespace.DepsConfig{Installer: noopInstaller{}, MutationAllowed: func() bool { return true }}

	dict, err := namespace.Bootstrap(context.Background(), access, "", depsCfg)
	require.NoError(t, err)

	exec := inprocess.New()
	require.NoError(t, exec.Start(context.Background(), executor.StartConfig{
		Storage: access,
		Deps:    executor.DepsStartConfig{Installer: depsCfg.Installer, MutationAllowed: depsCfg.MutationAllowed},
	}))

	srv, err := New(dict, exec, cfg)
	require.NoError(t, err)
	return srv
}

func TestNewRejectsUnconfiguredAuth(t *testing.T) {
	_, err := New(nil, nil, Config{})
	require.Error(t, err)
}

func TestNewAcceptsExplicitlyDisabledAuth(t *testing.T) {
	_, err := New(nil, nil, Config{DisableAuth: true})
	require.NoError(t, err)
}

func TestHealthEndpointRequiresBearerTokenWhenConfigured(t *testing.T) {
	srv := newTestServer(t, Config{Token: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpointIsUnprotectedWhenAuthDisabled(t *testing.T) {
	srv := newTestServer(t, Config{DisableAuth: true})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedEndpointRejectsMissingOrWrongToken(t *testing.T) {
	srv := newTestServer(t, Config{Token: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedEndpointAcceptsCorrectToken(t *testing.T) {
	srv := newTestServer(t, Config{Token: "secret"})
	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExecuteEndpointRunsCodeAndReturnsResult(t *testing.T) {
	srv := newTestServer(t, Config{DisableAuth: true})
	body, _ := json.Marshal(executeRequest{Code: `1 + 1`})
	req := httptest.NewRequest(http.MethodPost, "/execute", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, float64(2), got["value"])
}

func TestDepsAddAndListEndToEnd(t *testing.T) {
	srv := newTestServer(t, Config{DisableAuth: true})

	body, _ := json.Marshal(addDepRequest{Spec: "requests"})
	req := httptest.NewRequest(http.MethodPost, "/deps", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/deps", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "requests")
}
