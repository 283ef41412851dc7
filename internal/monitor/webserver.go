// Package monitor serves the live HTTP view of the tracker: JSON endpoints,
// echarts dashboards, the debug index and post-run trail plots.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/touchtrack/internal/blob"
	"github.com/banshee-data/touchtrack/internal/calibration"
	"github.com/banshee-data/touchtrack/internal/httputil"
	"github.com/banshee-data/touchtrack/internal/monitoring"
	"github.com/banshee-data/touchtrack/internal/pipeline"
	"github.com/banshee-data/touchtrack/internal/store"
	"github.com/banshee-data/touchtrack/internal/version"
)

// OutputSource exposes the published output map.
type OutputSource interface {
	Records() []blob.OutputRecord
}

// StatsSource exposes pipeline counters.
type StatsSource interface {
	Stats() pipeline.Stats
}

// Calibrator is the calibration session control surface.
type Calibrator interface {
	Start()
	Cancel()
	Status() calibration.Status
}

// TouchLog is the persisted touch history.
type TouchLog interface {
	ActiveSession() uuid.UUID
	Touches(session uuid.UUID, limit int) ([]store.Touch, error)
	Stats(session uuid.UUID) (store.TouchStats, error)
	AttachAdminRoutes(mux *http.ServeMux) error
}

// WebServer handles the HTTP interface for monitoring the tracker.
type WebServer struct {
	address    string
	server     *http.Server
	output     OutputSource
	stats      StatsSource
	activity   *Activity
	calibrator Calibrator
	touchLog   TouchLog
	width      float64
	height     float64
	startTime  time.Time
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address    string
	Output     OutputSource
	Stats      StatsSource // Optional
	Activity   *Activity   // Optional
	Calibrator Calibrator  // Optional
	TouchLog   TouchLog    // Optional; also mounts /debug/
	Width      float64     // Screen width used for chart axes
	Height     float64     // Screen height used for chart axes
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) (*WebServer, error) {
	ws := &WebServer{
		address:    config.Address,
		output:     config.Output,
		stats:      config.Stats,
		activity:   config.Activity,
		calibrator: config.Calibrator,
		touchLog:   config.TouchLog,
		width:      config.Width,
		height:     config.Height,
		startTime:  time.Now(),
	}
	mux, err := ws.setupRoutes()
	if err != nil {
		return nil, err
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws, nil
}

// Handler returns the root handler, for tests and embedding.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("[monitor] starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	monitoring.Logf("[monitor] shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("[monitor] HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("[monitor] HTTP server force close error: %v", err)
		}
	}
	return nil
}

func (ws *WebServer) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/touches", ws.handleTouches)
	mux.HandleFunc("/api/stats", ws.handleStats)
	mux.HandleFunc("/api/history", ws.handleHistory)
	mux.HandleFunc("/api/calibration", ws.handleCalibration)
	mux.HandleFunc("/charts/touches", ws.handleTouchesChart)
	mux.HandleFunc("/charts/activity", ws.handleActivityChart)

	if ws.touchLog != nil {
		if err := ws.touchLog.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

type healthResponse struct {
	Status    string       `json:"status"`
	Service   string       `json:"service"`
	Timestamp string       `json:"timestamp"`
	Build     version.Info `json:"build"`
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, healthResponse{
		Status:    "ok",
		Service:   "touchtrack",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Build:     version.Current(),
	})
}

// handleTouches returns the current output map ordered by id.
func (ws *WebServer) handleTouches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	records := ws.output.Records()
	httputil.WriteJSONOK(w, map[string]interface{}{
		"count":   len(records),
		"touches": records,
	})
}

type statsResponse struct {
	Uptime   string              `json:"uptime"`
	Pipeline *pipeline.Stats     `json:"pipeline,omitempty"`
	Session  string              `json:"session,omitempty"`
	Touches  *store.TouchStats   `json:"touches,omitempty"`
	Calib    *calibration.Status `json:"calibration,omitempty"`
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{Uptime: time.Since(ws.startTime).Round(time.Second).String()}
	if ws.stats != nil {
		s := ws.stats.Stats()
		resp.Pipeline = &s
	}
	if ws.touchLog != nil {
		if session := ws.touchLog.ActiveSession(); session != uuid.Nil {
			resp.Session = session.String()
			if ts, err := ws.touchLog.Stats(session); err == nil {
				resp.Touches = &ts
			} else {
				monitoring.Logf("[monitor] touch stats: %v", err)
			}
		}
	}
	if ws.calibrator != nil {
		st := ws.calibrator.Status()
		resp.Calib = &st
	}
	httputil.WriteJSONOK(w, resp)
}

// handleHistory returns completed touches from the touch log.
// Query params:
//
//	session (optional, default active session)
//	limit (optional, default 100)
func (ws *WebServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if ws.touchLog == nil {
		httputil.NotImplemented(w, "touch log")
		return
	}
	session := ws.touchLog.ActiveSession()
	if raw := r.URL.Query().Get("session"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid session: %v", err))
			return
		}
		session = id
	}
	if session == uuid.Nil {
		httputil.NotFound(w, "no active session")
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10000 {
			httputil.BadRequest(w, "limit must be between 1 and 10000")
			return
		}
		limit = n
	}

	touches, err := ws.touchLog.Touches(session, limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"session": session.String(),
		"touches": touches,
	})
}

// handleCalibration reports calibration progress on GET. POST with
// action=start or action=cancel controls the session.
func (ws *WebServer) handleCalibration(w http.ResponseWriter, r *http.Request) {
	if ws.calibrator == nil {
		httputil.NotImplemented(w, "calibration")
		return
	}
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		switch action := r.FormValue("action"); action {
		case "start":
			ws.calibrator.Start()
		case "cancel":
			ws.calibrator.Cancel()
		default:
			httputil.BadRequest(w, fmt.Sprintf("unknown action %q", action))
			return
		}
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}
	httputil.WriteJSONOK(w, ws.calibrator.Status())
}
