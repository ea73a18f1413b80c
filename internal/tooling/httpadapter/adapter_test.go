package httpadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/codesession/internal/errs"
)

func TestListToolsExposesOneToolWithOneCallablePerEndpoint(t *testing.T) {
	a := NewAdapter(Config{
		ToolName: "github",
		Endpoints: []Endpoint{
			{Name: "get_repo", Method: http.MethodGet, PathTemplate: "/repos/{owner}/{repo}"},
		},
	})
	tools, err := a.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Len(t, tools[0].Callables, 1)
	assert.Equal(t, "get_repo", tools[0].Callables[0].Name)
}

func TestCallSubstitutesPathParamsAndSendsQueryParams(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	a := NewAdapter(Config{
		ToolName: "github",
		BaseURL:  srv.URL,
		Endpoints: []Endpoint{
			{Name: "get_repo", Method: http.MethodGet, PathTemplate: "/repos/{owner}/{repo}"},
		},
	})

	result, err := a.Call(context.Background(), "github", "get_repo", map[string]any{
		"owner":        "kagent-dev",
		"repo":         "kagent",
		"query_params": map[string]any{"page": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "/repos/kagent-dev/kagent", gotPath)
	assert.Equal(t, "page=2", gotQuery)
	assert.Equal(t, map[string]any{"ok": true}, result)
}

func TestCallSendsRemainingArgsAsJSONBodyForNonGET(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	a := NewAdapter(Config{
		ToolName: "github",
		BaseURL:  srv.URL,
		Endpoints: []Endpoint{
			{Name: "create_issue", Method: http.MethodPost, PathTemplate: "/repos/{owner}/{repo}/issues"},
		},
	})

	_, err := a.Call(context.Background(), "github", "create_issue", map[string]any{
		"owner": "o", "repo": "r", "title": "bug",
	})
	require.NoError(t, err)
	assert.Contains(t, gotBody, `"title":"bug"`)
}

func TestCallUnknownEndpointReturnsNotFound(t *testing.T) {
	a := NewAdapter(Config{ToolName: "github"})
	_, err := a.Call(context.Background(), "github", "ghost", nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestCallNonJSONBodyFallsBackToRawString(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	a := NewAdapter(Config{
		ToolName: "plain",
		BaseURL:  srv.URL,
		Endpoints: []Endpoint{{Name: "get", Method: http.MethodGet, PathTemplate: "/"}},
	})
	result, err := a.Call(context.Background(), "plain", "get", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", result)
}

func TestCallErrorStatusReturnsToolExecutionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	}))
	defer srv.Close()

	a := NewAdapter(Config{
		ToolName: "plain",
		BaseURL:  srv.URL,
		Endpoints: []Endpoint{{Name: "get", Method: http.MethodGet, PathTemplate: "/"}},
	})
	_, err := a.Call(context.Background(), "plain", "get", nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindToolExecutionError, errs.KindOf(err))
}
