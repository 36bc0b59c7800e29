package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"printer_history/exporter-go/internal/exportrun"
	"printer_history/exporter-go/internal/metrics"
	"printer_history/exporter-go/internal/ui"
)

type fakeRunner struct {
	status exportrun.Status
	busy   bool
}

func (f fakeRunner) Status() exportrun.Status { return f.status }
func (f fakeRunner) Busy() bool               { return f.busy }

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode body as json: %v\nbody=%s", err, rr.Body.String())
	}
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) any {
	t.Helper()
	body := decodeBody(t, rr)
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got: %v", body)
	}
	return errObj["code"]
}

func newPanel(trigger func() error) *Panel {
	state := ui.NewState()
	state.SetConnectionStatus(true)
	state.EnableFetchAction()
	return &Panel{
		State:   state,
		Events:  ui.NewBroadcaster(),
		Runner:  fakeRunner{status: exportrun.Status{State: exportrun.StateIdle}},
		Metrics: metrics.New(),
		Trigger: trigger,
	}
}

func TestHealthz(t *testing.T) {
	h := NewHandler(NewLogger("debug", "json"), nil)

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestRequestID_EchoesUpstreamHeader(t *testing.T) {
	h := NewHandler(NewLogger("debug", "json"), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "edge-42")
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-ID"); got != "edge-42" {
		t.Fatalf("expected upstream request id echoed, got %q", got)
	}
}

func TestStatus_ReportsBusyRunner(t *testing.T) {
	panel := newPanel(func() error { return nil })
	panel.Runner = fakeRunner{status: exportrun.Status{State: exportrun.StateFetchingJobs}, busy: true}
	h := NewHandler(NewLogger("debug", "json"), panel)

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["busy"] != true {
		t.Fatalf("expected busy=true, got %v", body["busy"])
	}
	if run := body["run"].(map[string]any); run["state"] != "fetching_jobs" {
		t.Fatalf("expected fetching_jobs, got %v", run)
	}
}

func TestStatus_OK(t *testing.T) {
	h := NewHandler(NewLogger("debug", "json"), newPanel(func() error { return nil }))

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("expected json content-type, got %q", got)
	}

	body := decodeBody(t, rr)
	if body["usable"] != true {
		t.Fatalf("expected usable=true, got %v", body["usable"])
	}
	if body["busy"] != false {
		t.Fatalf("expected busy=false, got %v", body["busy"])
	}
	surface := body["surface"].(map[string]any)
	if surface["connection_text"] != ui.ConnectedText || surface["fetch_enabled"] != true {
		t.Fatalf("unexpected surface %v", surface)
	}
	run := body["run"].(map[string]any)
	if run["state"] != "idle" {
		t.Fatalf("expected idle run, got %v", run)
	}
}

func TestStatus_Unconfigured(t *testing.T) {
	h := NewHandler(NewLogger("debug", "json"), nil)

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "panel_unavailable" {
		t.Fatalf("expected panel_unavailable, got %v", code)
	}
}

func TestExport_Accepted(t *testing.T) {
	calls := 0
	h := NewHandler(NewLogger("debug", "json"), newPanel(func() error { calls++; return nil }))

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/export", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if calls != 1 {
		t.Fatalf("expected trigger to fire once, got %d", calls)
	}
}

func TestExport_Busy(t *testing.T) {
	h := NewHandler(NewLogger("debug", "json"), newPanel(func() error { return exportrun.ErrBusy }))

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/export", nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "busy" {
		t.Fatalf("expected busy, got %v", code)
	}
}

func TestExport_TriggerFailure(t *testing.T) {
	h := NewHandler(NewLogger("debug", "json"), newPanel(func() error { return errors.New("boom") }))

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/export", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestExport_NotOnDashboard(t *testing.T) {
	h := NewHandler(NewLogger("debug", "json"), newPanel(nil))

	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/export", nil))
	if rr.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "navigation_required" {
		t.Fatalf("expected navigation_required, got %v", code)
	}
}

func TestMetrics_CountsPanelRequests(t *testing.T) {
	h := NewHandler(NewLogger("debug", "json"), newPanel(func() error { return nil }))
	router := h.Router()

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `jobexport_http_requests_total{method="GET",path="/api/v1/status",status="200"} 1`) {
		t.Fatalf("expected status request to be counted; body=%s", rr.Body.String())
	}
}

func TestEvents_StreamsRenders(t *testing.T) {
	panel := newPanel(func() error { return nil })
	srv := httptest.NewServer(NewHandler(NewLogger("debug", "json"), panel).Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap snapshotEvent
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snap.Kind != "snapshot" || !snap.Surface.Connected {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	panel.Events.UpdateProgress(40)

	var ev ui.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Kind != ui.EventProgress || ev.Text != "Fetching data... 40%" {
		t.Fatalf("unexpected event %+v", ev)
	}
}
