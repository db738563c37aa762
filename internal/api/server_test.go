package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-weather/internal/entry"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-weather/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-weather/internal/integration"
	"github.com/nerrad567/gray-logic-weather/internal/sensor"
	_ "github.com/nerrad567/gray-logic-weather/migrations" // registers schema
)

const stationDocument = `{
  "rtd": {
    "tempin": "71.2", "tempout": "72.5", "humout": "40", "bar": "29.92",
    "bartr": "20", "rainr": "0.00", "uv": "---",
    "date": "2026/03/01", "time": "14:05:09"
  },
  "info": {"ver": "1.2.3", "stnmod": "16", "stnname": "Roof", "wid": "001D0A71"}
}`

// fakeStation serves the live-data document, or a bare status code when
// status is set to something other than 200.
type fakeStation struct {
	srv    *httptest.Server
	status atomic.Int32
}

func newFakeStation(t *testing.T) *fakeStation {
	t.Helper()
	f := &fakeStation{}
	f.status.Store(http.StatusOK)
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if code := int(f.status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, stationDocument)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeStation) host() string {
	return strings.TrimPrefix(f.srv.URL, "http://")
}

type testEnv struct {
	srv     *Server
	router  http.Handler
	manager *integration.Manager
	station *fakeStation
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "discard"}, "test")
}

// newTestEnv wires a server to a real manager backed by a temporary SQLite
// database, with the hub receiving the manager's updates.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "vantage.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	log := testLogger()
	wsCfg := config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
	hub := NewHub(wsCfg, log)
	hubCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	go hub.Run(hubCtx)

	m, err := integration.New(integration.Options{
		Repository:  entry.NewSQLiteRepository(db.DB),
		Location:    time.UTC,
		Logger:      log,
		Broadcaster: hub,
	})
	if err != nil {
		t.Fatalf("integration.New() error = %v", err)
	}
	t.Cleanup(m.Close)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:          wsCfg,
		Metrics:     config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Logger:      log,
		Stations:    m,
		DB:          db.DB,
		Exposition:  metrics.New().Handler(),
		ExternalHub: hub,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &testEnv{
		srv:     srv,
		router:  srv.buildRouter(),
		manager: m,
		station: newFakeStation(t),
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// addStation runs the add flow against the fake station and returns the entry ID.
func (e *testEnv) addStation(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/stations", `{"host":"`+e.station.host()+`"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add station status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var resp StationResponse
	decode(t, w, &resp)
	return resp.Entry.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var e Error
	decode(t, w, &e)
	return e.Code
}

// ─── Health and Middleware ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	decode(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
	if resp["mqtt"] != false {
		t.Errorf("mqtt = %v, want false without a client", resp["mqtt"])
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/health", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestRequestID_UnusableHeaderReplaced(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{strings.Repeat("x", maxRequestIDLen+1), "has space", "tab\tid"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set("X-Request-ID", id)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)

		got := w.Header().Get("X-Request-ID")
		if got == "" || got == id {
			t.Errorf("X-Request-ID for %q = %q, want a generated ID", id, got)
		}
	}
}

func TestRecovery(t *testing.T) {
	env := newTestEnv(t)

	h := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	abort := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler { //nolint:errorlint // panic value
			t.Errorf("recovered %v, want http.ErrAbortHandler re-raised", rec)
		}
	}()
	abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	env := newTestEnv(t)
	env.srv.cfg.CORS.AllowedOrigins = []string{"http://dashboard.local"}
	router := env.srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want none for a disallowed origin", got)
	}

	req.Header.Set("Origin", "http://dashboard.local")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://dashboard.local" {
		t.Errorf("ACAO = %q, want http://dashboard.local", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/stations", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want http://localhost:3000", got)
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/nonexistent", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if code := errorCode(t, w); code != ErrCodeNotFound {
		t.Errorf("code = %q, want %q", code, ErrCodeNotFound)
	}
}

// ─── Stations ──────────────────────────────────────────────────────

func TestAddStation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/stations", `{"host":"`+env.station.host()+`","scan_interval":120}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp StationResponse
	decode(t, w, &resp)
	if resp.Entry.UniqueID != "001D0A71" {
		t.Errorf("unique_id = %q, want 001D0A71", resp.Entry.UniqueID)
	}
	if resp.Entry.Title != "Roof" {
		t.Errorf("title = %q, want Roof", resp.Entry.Title)
	}
	if resp.Entry.Name != config.DefaultStationName {
		t.Errorf("name = %q, want %q", resp.Entry.Name, config.DefaultStationName)
	}
	if !resp.Loaded || !resp.Available {
		t.Errorf("loaded = %v, available = %v, want both true", resp.Loaded, resp.Available)
	}
	if resp.Device == nil || resp.Device.Model != "Vantage Pro/Pro2" {
		t.Errorf("device = %+v, want model Vantage Pro/Pro2", resp.Device)
	}
	if resp.Device != nil && resp.Device.ConfigurationURL != "http://"+env.station.host() {
		t.Errorf("configuration_url = %q", resp.Device.ConfigurationURL)
	}
	if resp.Refresh == nil || resp.Refresh.IntervalSeconds != 120 {
		t.Errorf("refresh = %+v, want interval 120", resp.Refresh)
	}
}

func TestAddStation_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       func(env *testEnv) string
		prepare    func(t *testing.T, env *testEnv)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid JSON",
			body:       func(*testEnv) string { return `{"host":` },
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeBadRequest,
		},
		{
			name:       "missing host",
			body:       func(*testEnv) string { return `{"host":"  "}` },
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name: "interval out of range",
			body: func(env *testEnv) string {
				return `{"host":"` + env.station.host() + `","scan_interval":5}`
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrCodeValidation,
		},
		{
			name: "station unreachable",
			body: func(env *testEnv) string { return `{"host":"` + env.station.host() + `"}` },
			prepare: func(_ *testing.T, env *testEnv) {
				env.station.status.Store(http.StatusInternalServerError)
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   ErrCodeCannotConnect,
		},
		{
			name:       "already configured",
			body:       func(env *testEnv) string { return `{"host":"` + env.station.host() + `"}` },
			prepare:    func(t *testing.T, env *testEnv) { env.addStation(t) },
			wantStatus: http.StatusConflict,
			wantCode:   ErrCodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.prepare != nil {
				tt.prepare(t, env)
			}
			w := env.do(t, http.MethodPost, "/api/v1/stations", tt.body(env))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if code := errorCode(t, w); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestListAndGetStation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/stations", "")
	var list struct {
		Stations []StationResponse `json:"stations"`
		Count    int               `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 0 {
		t.Fatalf("initial count = %d, want 0", list.Count)
	}

	id := env.addStation(t)

	w = env.do(t, http.MethodGet, "/api/v1/stations", "")
	decode(t, w, &list)
	if list.Count != 1 || list.Stations[0].Entry.ID != id {
		t.Fatalf("list = %+v, want one station %s", list, id)
	}

	w = env.do(t, http.MethodGet, "/api/v1/stations/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Code, http.StatusOK)
	}
	var got StationResponse
	decode(t, w, &got)
	if got.Entry.Host != env.station.host() {
		t.Errorf("host = %q, want %q", got.Entry.Host, env.station.host())
	}
	if got.Refresh == nil || !got.Refresh.LastUpdateSuccess || got.Refresh.LastSuccess == nil {
		t.Errorf("refresh = %+v, want a recorded success", got.Refresh)
	}

	w = env.do(t, http.MethodGet, "/api/v1/stations/does-not-exist", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing station status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetReadings(t *testing.T) {
	env := newTestEnv(t)
	id := env.addStation(t)

	w := env.do(t, http.MethodGet, "/api/v1/stations/"+id+"/readings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp ReadingsResponse
	decode(t, w, &resp)
	if resp.EntryID != id || !resp.Available {
		t.Errorf("entry_id = %q, available = %v", resp.EntryID, resp.Available)
	}

	byKey := make(map[string]sensor.Reading, len(resp.Readings))
	for _, r := range resp.Readings {
		byKey[r.Key] = r
	}
	if r := byKey["tempout"]; !r.Available || r.Value != 72.5 || r.Unit != sensor.UnitFahrenheit {
		t.Errorf("tempout = %+v, want 72.5 °F", r)
	}
	if r := byKey["uv"]; r.Value != nil {
		t.Errorf("uv = %+v, want no value for ---", r)
	}
	if r := byKey[sensor.KeyBaroTrend]; r.Value != sensor.TrendRisingSlowly {
		t.Errorf("baro_trend = %v, want %v", r.Value, sensor.TrendRisingSlowly)
	}

	w = env.do(t, http.MethodGet, "/api/v1/stations/unknown/readings", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown station status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRefresh_AuthFailureKeepsReadings(t *testing.T) {
	env := newTestEnv(t)
	id := env.addStation(t)

	w := env.do(t, http.MethodPost, "/api/v1/stations/"+id+"/refresh", "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	env.station.status.Store(http.StatusUnauthorized)
	w = env.do(t, http.MethodPost, "/api/v1/stations/"+id+"/refresh", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("refresh status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if code := errorCode(t, w); code != ErrCodeRefreshFailed {
		t.Errorf("code = %q, want %q", code, ErrCodeRefreshFailed)
	}

	w = env.do(t, http.MethodGet, "/api/v1/stations/"+id, "")
	var st StationResponse
	decode(t, w, &st)
	if st.Refresh == nil || !st.Refresh.ReauthRequired {
		t.Fatalf("refresh = %+v, want reauth_required", st.Refresh)
	}
	if st.Refresh.LastErrorKind != "auth" || st.Refresh.LastUpdateSuccess {
		t.Errorf("last_error_kind = %q, last_update_success = %v", st.Refresh.LastErrorKind, st.Refresh.LastUpdateSuccess)
	}
	if !st.Available {
		t.Error("station should stay available with cached data")
	}

	w = env.do(t, http.MethodGet, "/api/v1/health", "")
	var health map[string]any
	decode(t, w, &health)
	if health["status"] != "degraded" {
		t.Errorf("health status = %v, want degraded", health["status"])
	}

	w = env.do(t, http.MethodGet, "/api/v1/stations/"+id+"/readings", "")
	var readings ReadingsResponse
	decode(t, w, &readings)
	for _, r := range readings.Readings {
		if r.Key == "tempout" && r.Value != 72.5 {
			t.Errorf("tempout after failure = %v, want cached 72.5", r.Value)
		}
	}
}

func TestRefresh_NotLoaded(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/stations/nope/refresh", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestUpdateOptions(t *testing.T) {
	env := newTestEnv(t)
	id := env.addStation(t)

	w := env.do(t, http.MethodPatch, "/api/v1/stations/"+id+"/options", `{"scan_interval":300}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var resp StationResponse
	decode(t, w, &resp)
	if resp.Entry.ScanInterval != 300 {
		t.Errorf("scan_interval = %d, want 300", resp.Entry.ScanInterval)
	}
	if resp.Refresh == nil || resp.Refresh.IntervalSeconds != 300 {
		t.Errorf("refresh = %+v, want interval 300", resp.Refresh)
	}

	w = env.do(t, http.MethodPatch, "/api/v1/stations/"+id+"/options", `{"scan_interval":5}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("out of range status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = env.do(t, http.MethodPatch, "/api/v1/stations/missing/options", `{"scan_interval":60}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing station status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRemoveStation(t *testing.T) {
	env := newTestEnv(t)
	id := env.addStation(t)

	w := env.do(t, http.MethodDelete, "/api/v1/stations/"+id, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if _, ok := env.manager.Get(id); ok {
		t.Error("station still loaded after removal")
	}

	w = env.do(t, http.MethodGet, "/api/v1/stations/"+id, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/stations/"+id, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Metrics ───────────────────────────────────────────────────────

func TestSystemMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.addStation(t)

	w := env.do(t, http.MethodGet, "/api/v1/system/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var m SystemMetrics
	decode(t, w, &m)
	if m.Version != "test" {
		t.Errorf("version = %q, want test", m.Version)
	}
	if m.Stations.Loaded != 1 || m.Stations.Available != 1 {
		t.Errorf("stations = %+v, want one loaded and available", m.Stations)
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("goroutines should be reported")
	}
}

func TestPrometheusExposition(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("exposition should include runtime collectors")
	}
}

// ─── WebSocket Hub ─────────────────────────────────────────────────

func newTestClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
	hub.Register(client)
	return client
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	all := newTestClient(hub, ChannelStations)
	one := newTestClient(hub, StationChannel("e1"))
	other := newTestClient(hub, StationChannel("e2"))

	hub.Broadcast(integration.Update{Type: integration.UpdateReadings, EntryID: "e1", At: time.Now()})

	for name, client := range map[string]*WSClient{"all": all, "one": one} {
		select {
		case msg := <-client.send:
			var wsMsg WSMessage
			if err := json.Unmarshal(msg, &wsMsg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if wsMsg.Type != WSTypeEvent || wsMsg.EventType != integration.UpdateReadings {
				t.Errorf("%s: message = %+v", name, wsMsg)
			}
		case <-time.After(time.Second):
			t.Errorf("%s: timed out waiting for broadcast", name)
		}
	}

	select {
	case <-other.send:
		t.Error("client of another station should not receive the update")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}
	client := newTestClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_UnregisteredClientDropsFrames(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	client := newTestClient(hub, ChannelStations)
	hub.Unregister(client)

	if client.enqueue([]byte("{}")) {
		t.Error("enqueue after Unregister should report false")
	}
	hub.Broadcast(integration.Update{Type: integration.UpdateReadings, EntryID: "e1", At: time.Now()})
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed after Unregister")
	}
}

func TestValidChannel(t *testing.T) {
	tests := []struct {
		channel string
		want    bool
	}{
		{ChannelStations, true},
		{StationChannel("abc"), true},
		{"station.", false},
		{"devices", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := validChannel(tt.channel); got != tt.want {
			t.Errorf("validChannel(%q) = %v, want %v", tt.channel, got, tt.want)
		}
	}
}

// ─── WebSocket Connections ─────────────────────────────────────────

func dialWS(t *testing.T, ts *httptest.Server, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws" + query
	return websocket.DefaultDialer.Dial(url, nil)
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub client count = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocket_StationUpdates(t *testing.T) {
	env := newTestEnv(t)
	id := env.addStation(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	ws, resp, err := dialWS(t, ts, "?station="+id)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	defer ws.Close()
	waitForClients(t, env.srv.Hub(), 1)

	w := env.do(t, http.MethodPost, "/api/v1/stations/"+id+"/refresh", "")
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, want %d", w.Code, http.StatusOK)
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var msg struct {
		Type      string             `json:"type"`
		EventType string             `json:"event_type"`
		Payload   integration.Update `json:"payload"`
	}
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if msg.Type != WSTypeEvent || msg.EventType != integration.UpdateReadings {
		t.Errorf("message = %+v, want readings event", msg)
	}
	if msg.Payload.EntryID != id || len(msg.Payload.Readings) == 0 {
		t.Errorf("payload entry_id = %q with %d readings", msg.Payload.EntryID, len(msg.Payload.Readings))
	}
}

func TestWebSocket_PingAndSubscribe(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	ws, resp, err := dialWS(t, ts, "")
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline

	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p-1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong WSMessage
	if err := ws.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Type != WSTypePong || pong.ID != "p-1" {
		t.Errorf("pong = %+v", pong)
	}

	sub := WSMessage{Type: WSTypeSubscribe, ID: "s-1", Payload: WSSubscribePayload{Channels: []string{StationChannel("x")}}}
	if err := ws.WriteJSON(sub); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	var ack WSMessage
	if err := ws.ReadJSON(&ack); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if ack.Type != WSTypeResponse || ack.ID != "s-1" {
		t.Errorf("subscribe response = %+v", ack)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write invalid: %v", err)
	}
	var errMsg WSMessage
	if err := ws.ReadJSON(&errMsg); err != nil {
		t.Fatalf("read error response: %v", err)
	}
	if errMsg.Type != WSTypeError {
		t.Errorf("invalid message response type = %q, want %q", errMsg.Type, WSTypeError)
	}

	bad := WSMessage{Type: WSTypeSubscribe, ID: "s-2", Payload: WSSubscribePayload{Channels: []string{"devices"}}}
	if err := ws.WriteJSON(bad); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	var rejected WSMessage
	if err := ws.ReadJSON(&rejected); err != nil {
		t.Fatalf("read subscribe rejection: %v", err)
	}
	if rejected.Type != WSTypeError || rejected.ID != "s-2" {
		t.Errorf("unknown channel response = %+v, want error for s-2", rejected)
	}
}

func TestWebSocket_UnknownStation(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	_, resp, err := dialWS(t, ts, "?station=missing")
	if err == nil {
		t.Fatal("expected dial to fail for an unknown station")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("response = %v, want 404", resp)
	}
}

// ─── Lifecycle ─────────────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	env := newTestEnv(t)

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck before Start should fail")
	}
	if err := env.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without manager should fail")
	}
}
