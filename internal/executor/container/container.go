// Package container implements the container executor: launches the
// session server (internal/server) inside a Docker container and
// issues HTTP requests against it over a bearer token (spec.md §4.G.3).
package container

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/kagent-dev/codesession/internal/errs"
	"github.com/kagent-dev/codesession/internal/executor"
	"github.com/kagent-dev/codesession/internal/logger"
	"github.com/kagent-dev/codesession/internal/telemetry"
)

const (
	containerPort  = "8080/tcp"
	startupTimeout = 30 * time.Second
)

// Config configures the image and resource limits applied per spec.md
// §4.G.3 ("configured resource limits (memory, CPU, network-disable
// flag)").
type Config struct {
	Image           string
	MemoryBytes     int64
	NanoCPUs        int64
	DisableNetwork  bool
}

func DefaultConfig() Config {
	return Config{Image: "codesession/sessiond:latest"}
}

type Executor struct {
	cfg Config

	mu          sync.Mutex
	docker      *client.Client
	containerID string
	token       string
	baseURL     string
	httpClient  *http.Client
	closed      bool
}

func New(cfg Config) *Executor {
	return &Executor{cfg: cfg, httpClient: &http.Client{Timeout: 2 * time.Minute}}
}

func (e *Executor) Start(ctx context.Context, cfg executor.StartConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return errs.Wrap(errs.KindExecutorUnavailable, "creating docker client", err)
	}
	e.docker = cli

	token, err := randomToken()
	if err != nil {
		return errs.Wrap(errs.KindExecutorUnavailable, "generating auth token", err)
	}
	e.token = token

	if _, _, err := cli.ImageInspectWithRaw(ctx, e.cfg.Image); err != nil {
		rc, pullErr := cli.ImagePull(ctx, e.cfg.Image, image.PullOptions{})
		if pullErr != nil {
			return errs.Wrap(errs.KindExecutorUnavailable, "pulling session server image", pullErr)
		}
		_, _ = io.Copy(io.Discard, rc)
		_ = rc.Close()
	}

	env := []string{
		"CODESESSION_AUTH_TOKEN=" + token,
		"CODESESSION_SERVER_ADDR=:8080",
	}
	if cfg.Storage.File != nil {
		env = append(env, "CODESESSION_STORAGE_BASE_PATH="+cfg.Storage.File.BasePath)
	}
	if cfg.Storage.KV != nil {
		env = append(env,
			"CODESESSION_STORAGE_KV_URL="+cfg.Storage.KV.ConnectionURL,
			"CODESESSION_STORAGE_KV_PREFIX="+cfg.Storage.KV.Prefix,
		)
	}
	if cfg.ToolsPath != "" {
		env = append(env, "CODESESSION_TOOLS_PATH=/tools")
	}

	portSet, portBindings, err := nat.ParsePortSpecs([]string{containerPort})
	if err != nil {
		return errs.Wrap(errs.KindExecutorUnavailable, "parsing container port spec", err)
	}

	hostConfig := &container.HostConfig{
		PortBindings: portBindings,
		Resources: container.Resources{
			Memory:   e.cfg.MemoryBytes,
			NanoCPUs: e.cfg.NanoCPUs,
		},
	}
	if e.cfg.DisableNetwork {
		hostConfig.NetworkMode = "none"
	}

	created, err := cli.ContainerCreate(ctx, &container.Config{
		Image:        e.cfg.Image,
		Env:          env,
		ExposedPorts: portSet,
	}, hostConfig, nil, nil, "")
	if err != nil {
		return errs.Wrap(errs.KindExecutorUnavailable, "creating container", err)
	}
	e.containerID = created.ID

	if err := cli.ContainerStart(ctx, e.containerID, container.StartOptions{}); err != nil {
		return errs.Wrap(errs.KindExecutorUnavailable, "starting container", err)
	}

	inspect, err := cli.ContainerInspect(ctx, e.containerID)
	if err != nil {
		return errs.Wrap(errs.KindExecutorUnavailable, "inspecting container", err)
	}
	bindings := inspect.NetworkSettings.Ports[nat.Port(containerPort)]
	if len(bindings) == 0 {
		return errs.New(errs.KindExecutorUnavailable, "container did not publish its port")
	}
	e.baseURL = fmt.Sprintf("http://127.0.0.1:%s", bindings[0].HostPort)

	return e.waitHealthy(ctx)
}

func (e *Executor) waitHealthy(ctx context.Context) error {
	deadline := time.Now().Add(startupTimeout)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
		resp, err := e.httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
	return errs.New(errs.KindExecutorUnavailable, "session server did not become healthy in time")
}

func (e *Executor) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindTransportError, "calling session server", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return errs.New(errs.KindTransportError, fmt.Sprintf("session server returned %d: %s", resp.StatusCode, string(data)))
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

func (e *Executor) Execute(ctx context.Context, code string, timeout time.Duration) (executor.ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return executor.ExecutionResult{}, errs.New(errs.KindExecutorClosed, "executor is closed")
	}

	_, endSpan := telemetry.StartExecute(ctx, "container", len(code))
	var errKind string
	defer func() { endSpan(errKind) }()

	body := map[string]any{"code": code}
	if timeout > 0 {
		body["timeout"] = timeout.Seconds()
	}
	var result executor.ExecutionResult
	if err := e.do(ctx, http.MethodPost, "/execute", body, &result); err != nil {
		errKind = string(errs.KindTransportError)
		return executor.ExecutionResult{}, err
	}
	if result.Error != nil {
		errKind = result.Error.Kind
	}
	return result, nil
}

func (e *Executor) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errs.New(errs.KindExecutorClosed, "executor is closed")
	}
	return e.do(ctx, http.MethodPost, "/reset", nil, nil)
}

func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.docker == nil || e.containerID == "" {
		return nil
	}
	timeoutSec := 5
	if err := e.docker.ContainerStop(ctx, e.containerID, container.StopOptions{Timeout: &timeoutSec}); err != nil {
		logger.Get().Sugar().Warnw("stopping container", "err", err)
	}
	if err := e.docker.ContainerRemove(ctx, e.containerID, container.RemoveOptions{Force: true}); err != nil {
		logger.Get().Sugar().Warnw("removing container", "err", err)
	}
	return nil
}

func (e *Executor) Capabilities() []executor.Capability {
	caps := []executor.Capability{
		executor.CapTimeout,
		executor.CapProcessIsolation,
		executor.CapContainerIsolation,
		executor.CapReset,
		executor.CapDepsInstall,
	}
	if e.cfg.DisableNetwork {
		caps = append(caps, executor.CapNetworkIsolation)
	}
	return caps
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
