// Command sessiond runs the container session server: an in-process
// executor wrapped in an HTTP API, meant to run as the single process
// inside a session container (spec.md §4.G.3).
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kagent-dev/codesession/internal/depctl"
	"github.com/kagent-dev/codesession/internal/envcfg"
	"github.com/kagent-dev/codesession/internal/executor"
	"github.com/kagent-dev/codesession/internal/executor/inprocess"
	"github.com/kagent-dev/codesession/internal/logger"
	"github.com/kagent-dev/codesession/internal/namespace"
	"github.com/kagent-dev/codesession/internal/server"
	"github.com/kagent-dev/codesession/internal/storage"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		basePath     string
		kvURL        string
		kvPrefix     string
		toolsPath    string
		token        string
		disableAuth  bool
		addr         string
		depsMutation bool
	)

	cmd := &cobra.Command{
		Use:   "sessiond",
		Short: "Run the code execution session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), runConfig{
				basePath:     basePath,
				kvURL:        kvURL,
				kvPrefix:     kvPrefix,
				toolsPath:    toolsPath,
				token:        token,
				disableAuth:  disableAuth,
				addr:         addr,
				depsMutation: depsMutation,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&basePath, "base-path", envcfg.StorageBasePath.Get(), "Base directory for the file storage backend")
	flags.StringVar(&kvURL, "kv-url", envcfg.StorageKVURL.Get(), "NATS connection URL for the KV storage backend (overrides --base-path when set)")
	flags.StringVar(&kvPrefix, "kv-prefix", envcfg.StorageKVPrefix.Get(), "Key prefix for the KV storage backend")
	flags.StringVar(&toolsPath, "tools-path", envcfg.ToolsPath.Get(), "Directory of CLI tool YAML definitions")
	flags.StringVar(&token, "token", envcfg.ServerAuthToken.Get(), "Bearer token required on every request")
	flags.BoolVar(&disableAuth, "disable-auth", envcfg.ServerAuthDisabled.Get(), "Explicitly disable auth")
	flags.StringVar(&addr, "addr", envcfg.ServerAddr.Get(), "Listen address")
	flags.BoolVar(&depsMutation, "deps-mutation-allowed", envcfg.DepsRuntimeMutationAllowed.Get(), "Whether deps.add/deps.remove are permitted at runtime")

	return cmd
}

type runConfig struct {
	basePath     string
	kvURL        string
	kvPrefix     string
	toolsPath    string
	token        string
	disableAuth  bool
	addr         string
	depsMutation bool
}

func run(ctx context.Context, cfg runConfig) error {
	logger.Init()
	log := logger.Get().Sugar()

	access := storage.Access{File: &storage.FileAccess{BasePath: cfg.basePath}}
	if cfg.kvURL != "" {
		access = storage.Access{KV: &storage.KVAccess{ConnectionURL: cfg.kvURL, Prefix: cfg.kvPrefix}}
	}

	depsCfg := executor.DepsStartConfig{
		Installer:       depctl.NewExecInstaller("pip", []string{"install"}),
		MutationAllowed: func() bool { return cfg.depsMutation },
	}

	exec := inprocess.New()
	startCfg := executor.StartConfig{
		Storage:   access,
		ToolsPath: cfg.toolsPath,
		Deps:      depsCfg,
	}
	if err := exec.Start(ctx, startCfg); err != nil {
		return fmt.Errorf("starting executor: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := exec.Close(closeCtx); err != nil {
			log.Warnw("error closing executor", "error", err)
		}
	}()

	// The server talks to tools/skills/artifacts/deps directly through a
	// second namespace.Dict sharing the same storage backend; the executor
	// keeps its own so execute()/reset() stay isolated from the HTTP layer.
	dict, err := namespace.Bootstrap(ctx, access, cfg.toolsPath, namespace.DepsConfig{
		Installer:       depsCfg.Installer,
		MutationAllowed: depsCfg.MutationAllowed,
	})
	if err != nil {
		return fmt.Errorf("bootstrapping namespace: %w", err)
	}

	srv, err := server.New(dict, exec, server.Config{Token: cfg.token, DisableAuth: cfg.disableAuth})
	if err != nil {
		return fmt.Errorf("constructing server: %w", err)
	}

	httpServer := &http.Server{
		Addr:    cfg.addr,
		Handler: srv.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		srv.SetReady()
		log.Infow("sessiond listening", "addr", cfg.addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-sigCh:
		log.Infow("shutting down", "signal", sig.String())
		srv.SetUnhealthy()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warnw("graceful shutdown failed", "error", err)
		}
	}
	return nil
}
