package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/formcheck/formcheck/pkg/pose"
	"github.com/formcheck/formcheck/server/internal/alerts"
	"github.com/formcheck/formcheck/server/internal/store"
)

// AlertSource lists current alerts. *alerts.Engine satisfies it.
type AlertSource interface {
	Active() []*alerts.Alert
}

// Handler is the HTTP handler for all /api/v1/* endpoints and /metrics.
// It reads session state from the store and returns JSON responses.
type Handler struct {
	store  *store.Store
	alerts AlertSource
	mux    *http.ServeMux
	now    func() time.Time
}

// New creates a Handler wired to the given store and alert source and
// registers all routes. al may be nil.
func New(st *store.Store, al AlertSource) *Handler {
	h := &Handler{store: st, alerts: al, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/sessions", h.listSessions)
	h.mux.HandleFunc("/api/v1/sessions/", h.getSession) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: mean form score and per-state counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.healthOf(h.store.List()))
}

// listSessions returns GET /api/v1/sessions: all live sessions.
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	out := make([]SessionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toSessionResponse(e))
	}
	jsonResp(w, http.StatusOK, out)
}

// getSession returns GET /api/v1/sessions/{id}: a single live session.
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	if id == "" {
		h.listSessions(w, r)
		return
	}

	e, ok := h.store.Get(id)
	if !ok || h.now().Sub(e.UpdatedAt) > h.store.TTL() {
		jsonErr(w, http.StatusNotFound, "session not found")
		return
	}
	jsonResp(w, http.StatusOK, toSessionResponse(e))
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	out := []*alerts.Alert{}
	if h.alerts != nil {
		out = h.alerts.Active()
	}
	jsonResp(w, http.StatusOK, out)
}

// snapshot returns GET /api/v1/snapshot: health plus every live session.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.Snapshot())
}

// Snapshot builds the payload served at /api/v1/snapshot.
func (h *Handler) Snapshot() SnapshotResponse {
	entries := h.store.List()
	sessions := make([]SessionResponse, 0, len(entries))
	for _, e := range entries {
		sessions = append(sessions, toSessionResponse(e))
	}
	return SnapshotResponse{
		Health:      h.healthOf(entries),
		Sessions:    sessions,
		GeneratedAt: h.now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) healthOf(entries []*store.Entry) HealthResponse {
	resp := HealthResponse{SessionCount: len(entries)}
	if h.alerts != nil {
		for _, a := range h.alerts.Active() {
			if a.State == alerts.StateFiring {
				resp.AlertCount++
			}
		}
	}

	var total float64
	scored := 0
	for _, e := range entries {
		if e.LastError != "" {
			resp.ErrorCount++
		}
		if e.Record == nil {
			resp.PendingCount++
			continue
		}
		scored++
		total += float64(e.Record.FormScore)
		if e.Record.Valid {
			resp.ValidCount++
		} else {
			resp.InvalidCount++
		}
	}

	if scored == 0 {
		resp.State = "unknown"
		return resp
	}
	resp.MeanScore = total / float64(scored)
	resp.State = stateFromScore(resp.MeanScore)
	return resp
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// stateFromScore converts a 0-100 form score to a state label.
func stateFromScore(score float64) string {
	switch {
	case score >= 85:
		return "good"
	case score >= 60:
		return "fair"
	default:
		return "poor"
	}
}

// toSessionResponse maps a store.Entry to its JSON representation.
func toSessionResponse(e *store.Entry) SessionResponse {
	resp := SessionResponse{
		SessionID:     e.SessionID,
		State:         "unknown",
		Angles:        map[string]*float64{},
		LowVisibility: []string{},
		Failures:      []pose.Failure{},
		Violations:    []pose.Violation{},
		Frames:        e.Frames,
		ValidFrames:   e.ValidFrames,
		ValidRatio:    e.ValidRatio(),
		Errors:        e.Errors,
		LastError:     e.LastError,
		Diagnostics:   computeDiagnostics(e),
		LastSeen:      e.UpdatedAt.UTC().Format(time.RFC3339),
	}
	rec := e.Record
	if rec == nil {
		return resp
	}
	resp.Exercise = rec.Exercise
	resp.State = stateFromScore(float64(rec.FormScore))
	resp.FormScore = rec.FormScore
	resp.Valid = rec.Valid
	resp.Jitter = rec.Jitter
	resp.Penalties = rec.Penalties
	if rec.Angles != nil {
		resp.Angles = rec.Angles
	}
	if rec.LowVisibility != nil {
		resp.LowVisibility = rec.LowVisibility
	}
	if rec.Failures != nil {
		resp.Failures = rec.Failures
	}
	if rec.Violations != nil {
		resp.Violations = rec.Violations
	}
	resp.Sequence = rec.Sequence
	if rec.TimestampUnixMs != 0 {
		resp.CapturedAt = time.UnixMilli(rec.TimestampUnixMs).UTC().Format(time.RFC3339Nano)
	}
	return resp
}
