package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const liveData = `{
  "rtd": {"tempout": "68.0", "humout": "55", "bar": "30.01", "date": "2026/03/01", "time": "09:00:00"},
  "info": {"ver": "1.0", "stnmod": "16", "stnname": "Garden", "wid": "00AB12CD"}
}`

// freePort reserves and releases a loopback port for the API server.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close() //nolint:errcheck // port probe
	return port
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("VANTAGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is invalid.
func TestRun_MissingDatabasePath(t *testing.T) {
	t.Setenv("VANTAGE_CONFIG", writeConfig(t, `
site:
  id: test-site
database:
  path: ""
mqtt:
  enabled: false
logging:
  level: error
  format: text
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_InvalidStationInterval verifies station seeds are validated before startup.
func TestRun_InvalidStationInterval(t *testing.T) {
	t.Setenv("VANTAGE_CONFIG", writeConfig(t, `
site:
  id: test-site
database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"
mqtt:
  enabled: false
stations:
  - host: 192.168.1.50
    scan_interval: 5
logging:
  level: error
  format: text
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with out-of-range scan_interval")
	}
	if !strings.Contains(err.Error(), "scan_interval") {
		t.Errorf("error = %v, want mention of scan_interval", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("VANTAGE_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv("VANTAGE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_StartupWithoutBroker starts the bridge with MQTT disabled, checks the
// seeded stations through the API, then shuts down cleanly.
func TestRun_StartupWithoutBroker(t *testing.T) {
	station := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, liveData)
	}))
	defer station.Close()

	tmpDir := t.TempDir()
	port := freePort(t)
	t.Setenv("VANTAGE_CONFIG", writeConfig(t, fmt.Sprintf(`
site:
  id: test-site
  timezone: UTC
database:
  path: "%s"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: false
influxdb:
  enabled: false
metrics:
  enabled: true
api:
  host: "127.0.0.1"
  port: %d
  timeouts:
    read: 5
    write: 5
    idle: 5
stations:
  - host: "%s"
    name: Garden
    scan_interval: 30
  - host: "127.0.0.1:1"
    name: Offline
logging:
  level: error
  format: text
`, filepath.Join(tmpDir, "test.db"), port, strings.TrimPrefix(station.URL, "http://"))))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	var body struct {
		Count    int `json:"count"`
		Stations []struct {
			Loaded     bool   `json:"loaded"`
			SetupError string `json:"setup_error"`
		} `json:"stations"`
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		select {
		case err := <-errCh:
			t.Fatalf("run() returned early: %v", err)
		default:
		}
		resp, err := http.Get(base + "/api/v1/stations")
		if err == nil {
			decodeErr := json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()
			if decodeErr == nil && body.Count == 2 {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("API did not report both stations in time (last err: %v)", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	loaded, failed := 0, 0
	for _, st := range body.Stations {
		if st.Loaded {
			loaded++
		}
		if st.SetupError != "" {
			failed++
		}
	}
	if loaded != 1 || failed != 1 {
		t.Errorf("loaded = %d, failed = %d, want 1 and 1", loaded, failed)
	}

	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /metrics status = %d, want 200", resp.StatusCode)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() returned error on shutdown: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}
