// Package httpadapter implements the HTTP tool adapter: each tool is a set
// of endpoints with a method, a path template, and optional query params,
// matching spec.md §4.B's HTTP adapter contract.
package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/tooling"
)

// Endpoint describes one callable HTTP operation.
type Endpoint struct {
	Name        string
	Description string
	Method      string
	PathTemplate string // e.g. "/repos/{owner}/{repo}"
}

// Config is a single HTTP tool: a base URL plus its endpoints.
type Config struct {
	ToolName    string
	Description string
	BaseURL     string
	Endpoints   []Endpoint
	Timeout     time.Duration
}

// Adapter is the HTTP tool adapter.
type Adapter struct {
	cfg    Config
	client *http.Client
}

func NewAdapter(cfg Config) *Adapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Adapter{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (a *Adapter) ListTools(ctx context.Context) ([]tooling.Tool, error) {
	t := tooling.Tool{Name: a.cfg.ToolName, Description: a.cfg.Description}
	for _, e := range a.cfg.Endpoints {
		t.Callables = append(t.Callables, tooling.Callable{Name: e.Name, Description: e.Description, Binding: e})
	}
	return []tooling.Tool{t}, nil
}

func (a *Adapter) endpoint(name string) (Endpoint, bool) {
	for _, e := range a.cfg.Endpoints {
		if e.Name == name {
			return e, true
		}
	}
	return Endpoint{}, false
}

func (a *Adapter) Call(ctx context.Context, toolName, recipeName string, args map[string]any) (any, error) {
	ep, ok := a.endpoint(recipeName)
	if !ok {
		return nil, errs.New(errs.KindNotFound, "unknown endpoint: "+recipeName)
	}

	path := ep.PathTemplate
	query := url.Values{}
	body := map[string]any{}
	for k, v := range args {
		placeholder := "{" + k + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, fmt.Sprintf("%v", v))
			continue
		}
		if k == "query_params" {
			if qp, ok := v.(map[string]any); ok {
				for qk, qv := range qp {
					query.Set(qk, fmt.Sprintf("%v", qv))
				}
				continue
			}
		}
		body[k] = v
	}

	fullURL := strings.TrimRight(a.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if len(body) > 0 && ep.Method != http.MethodGet {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, fullURL, reqBody)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidRequest, "building HTTP request", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransportError, "HTTP call failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransportError, "reading HTTP response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, errs.New(errs.KindToolExecutionError, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody)))
	}

	var parsed any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return string(respBody), nil
	}
	return parsed, nil
}

func (a *Adapter) Close() error { return nil }

var _ tooling.Adapter = (*Adapter)(nil)
