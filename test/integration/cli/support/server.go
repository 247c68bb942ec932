package support

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// StartServer starts "cutout serve" with the given command line. The command
// must name --port, which becomes ServerPort.
func (testCtx *TestContext) StartServer(command string) error {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	for i, part := range parts {
		if part == "--port" && i+1 < len(parts) {
			if _, err := fmt.Sscanf(parts[i+1], "%d", &testCtx.ServerPort); err != nil {
				return fmt.Errorf("invalid port: %s", parts[i+1])
			}
		}
	}
	parts = testCtx.expand(parts)

	cmd := exec.Command(parts[0], parts[1:]...) //nolint:gosec,noctx // the process outlives this call
	cmd.Dir = testCtx.TempDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	testCtx.ServerProcess = cmd.Process

	if err := testCtx.waitForServerReady(); err != nil {
		if stopErr := testCtx.StopServerProcess(); stopErr != nil {
			return fmt.Errorf("server failed to start and also failed to stop: %w; stop error: %w", err, stopErr)
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// StopServerProcess stops the running server process with SIGTERM.
func (testCtx *TestContext) StopServerProcess() error {
	if testCtx.ServerProcess == nil {
		return nil
	}

	if err := testCtx.ServerProcess.Signal(syscall.SIGTERM); err != nil {
		if killErr := testCtx.ServerProcess.Kill(); killErr != nil {
			return fmt.Errorf("failed to kill server process: %w", killErr)
		}
	}

	state, err := testCtx.ServerProcess.Wait()
	testCtx.ServerProcess = nil
	if err != nil {
		return err
	}
	if !state.Success() {
		return fmt.Errorf("server exited with %v", state)
	}
	return nil
}

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// waitForServerReady waits for the server to respond to health checks.
func (testCtx *TestContext) waitForServerReady() error {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if testCtx.isServerHealthy() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return errors.New("server did not become ready within timeout")
}

// isServerHealthy checks if the server responds to health endpoint.
func (testCtx *TestContext) isServerHealthy() bool {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s:%d/health", testCtx.ServerHost, testCtx.ServerPort))
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}
