package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRunServesHealthEndpointAndShutsDownOnSIGTERM(t *testing.T) {
	port := freePort(t)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(context.Background(), runConfig{
			basePath:    t.TempDir(),
			disableAuth: true,
			addr:        addr,
		})
	}()

	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/health")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	select {
	case runErr := <-errCh:
		assert.NoError(t, runErr)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after SIGTERM")
	}
}

func TestRunRejectsUnconfiguredAuth(t *testing.T) {
	port := freePort(t)
	err := run(context.Background(), runConfig{
		basePath: t.TempDir(),
		addr:     fmt.Sprintf("127.0.0.1:%d", port),
	})
	require.Error(t, err)
}
