//go:build integration
// +build integration

package integration_tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestServerConfig contains configuration for test server setup
type TestServerConfig struct {
	ReadinessTimeout    time.Duration
	HealthCheckInterval time.Duration
	MaxRetries          int
}

// DefaultTestConfig returns a default test configuration
func DefaultTestConfig() *TestServerConfig {
	return &TestServerConfig{
		ReadinessTimeout:    10 * time.Second,
		HealthCheckInterval: 50 * time.Millisecond,
		MaxRetries:          100,
	}
}

// HealthResponse is the body served by /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Checks    map[string]interface{} `json:"checks"`
}

// WaitForServerReadiness polls /health until the server reports healthy.
func WaitForServerReadiness(ctx context.Context, baseURL string, config *TestServerConfig) (*HealthResponse, error) {
	if config == nil {
		config = DefaultTestConfig()
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, config.ReadinessTimeout)
	defer cancel()

	ticker := time.NewTicker(config.HealthCheckInterval)
	defer ticker.Stop()

	var lastErr error
	for retries := 0; retries < config.MaxRetries; retries++ {
		select {
		case <-timeoutCtx.Done():
			return nil, fmt.Errorf("server readiness timeout after %v: %v", config.ReadinessTimeout, lastErr)
		case <-ticker.C:
			health, err := checkServerHealth(timeoutCtx, baseURL)
			if err != nil {
				lastErr = err
				continue
			}
			if health.Status == "healthy" {
				return health, nil
			}
		}
	}
	return nil, fmt.Errorf("server failed to become healthy after %d retries: %v", config.MaxRetries, lastErr)
}

func checkServerHealth(ctx context.Context, baseURL string) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, err
	}
	return &health, nil
}

// FindAvailablePort asks the kernel for a free TCP port.
func FindAvailablePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// CreateTestDocument writes a wiki document into dir and returns its path.
func CreateTestDocument(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestTimeout bounds every blocking step of an integration test.
func TestTimeout() time.Duration {
	if os.Getenv("CI") != "" {
		return 30 * time.Second
	}
	return 10 * time.Second
}
