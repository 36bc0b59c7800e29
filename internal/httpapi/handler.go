package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"printer_history/exporter-go/internal/exportrun"
	"printer_history/exporter-go/internal/metrics"
	"printer_history/exporter-go/internal/session"
	"printer_history/exporter-go/internal/ui"
)

// Runner is the part of *exportrun.Runner the panel reads.
type Runner interface {
	Status() exportrun.Status
	Busy() bool
}

// Panel wires the local control panel to a running exporter.
type Panel struct {
	State   *ui.State
	Events  *ui.Broadcaster
	Runner  Runner
	Metrics *metrics.Metrics
	// Trigger starts an export. It is nil when the tab check failed, which
	// leaves the fetch action unreachable.
	Trigger func() error
}

type Handler struct {
	log      zerolog.Logger
	panel    *Panel
	upgrader websocket.Upgrader
}

func NewHandler(log zerolog.Logger, panel *Panel) *Handler {
	if panel == nil {
		panel = &Panel{}
	}
	return &Handler{
		log:   log,
		panel: panel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", h.panel.Metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(15 * time.Second))
				r.Get("/status", h.handleStatus)
				r.Post("/export", h.handleExport)
			})
			// Long-lived; no request timeout.
			r.Get("/events", h.handleEvents)
		})
	})

	return r
}

// echoRequestID returns the request id so clients can quote it in reports.
func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		h.panel.Metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type statusResponse struct {
	Usable  bool             `json:"usable"`
	Busy    bool             `json:"busy"`
	Surface ui.Snapshot      `json:"surface"`
	Run     exportrun.Status `json:"run"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if h.panel.State == nil || h.panel.Runner == nil {
		h.writeError(w, http.StatusServiceUnavailable, "panel_unavailable", "exporter not configured", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, statusResponse{
		Usable:  h.panel.Trigger != nil,
		Busy:    h.panel.Runner.Busy(),
		Surface: h.panel.State.Snapshot(),
		Run:     h.panel.Runner.Status(),
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.panel.Trigger == nil {
		h.writeError(w, http.StatusPreconditionFailed, "navigation_required", session.NavigationMessage, nil)
		return
	}

	if err := h.panel.Trigger(); err != nil {
		if errors.Is(err, exportrun.ErrBusy) {
			h.writeError(w, http.StatusConflict, "busy", err.Error(), nil)
			return
		}
		h.log.Error().Err(err).Msg("start export failed")
		h.writeError(w, http.StatusInternalServerError, "export_failed", "failed to start export", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

type snapshotEvent struct {
	Kind    string      `json:"kind"`
	Surface ui.Snapshot `json:"surface"`
}

// handleEvents streams every render to a websocket client, starting with a
// snapshot of the current surface.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.panel.Events == nil || h.panel.State == nil {
		h.writeError(w, http.StatusServiceUnavailable, "panel_unavailable", "event stream not configured", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, unsubscribe := h.panel.Events.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client never sends anything we act on; reading keeps control
	// frames flowing and tells us when it goes away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.writeEvent(conn, snapshotEvent{Kind: "snapshot", Surface: h.panel.State.Snapshot()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := h.writeEvent(conn, ev); err != nil {
				h.log.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func (h *Handler) writeEvent(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(v)
}
