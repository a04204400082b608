package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sandrayoe/mms-version2/export"
	"github.com/sandrayoe/mms-version2/ingest"
	"github.com/sandrayoe/mms-version2/internal/wallclock"
	"github.com/sandrayoe/mms-version2/iso"
	"github.com/sandrayoe/mms-version2/metrics"
	"github.com/sandrayoe/mms-version2/stream"
)

// apiHandler contains the control-surface handlers and shared dependencies.
type apiHandler struct {
	pipeline *ingest.Pipeline
	hub      *stream.Hub
	started  time.Time
	log      *slog.Logger
}

func newMux(h *apiHandler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /live", h.hub)
	mux.Handle("GET /metrics", metrics.Handler(h.pipeline))
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /api/state", h.handleState)
	mux.HandleFunc("POST /api/record/start", h.recordOp("start", h.pipeline.StartRecording))
	mux.HandleFunc("POST /api/record/stop", h.recordOp("stop", h.pipeline.StopRecording))
	mux.HandleFunc("POST /api/record/pause", h.recordOp("pause", h.pipeline.PauseRecording))
	mux.HandleFunc("POST /api/record/resume", h.recordOp("resume", h.pipeline.ResumeRecording))
	mux.HandleFunc("POST /api/snapshot", h.handleSnapshot)
	mux.HandleFunc("GET /api/export", h.handleExport)

	return mux
}

type stateResponse struct {
	State string `json:"state"`
}

type snapshotRequest struct {
	Time   *iso.DateTime     `json:"time"`
	Params map[string]string `json:"params"`
}

type snapshotResponse struct {
	Applied   bool `json:"applied"`
	Snapshots int  `json:"snapshots"`
}

type streamStatus struct {
	Clients       int    `json:"clients"`
	FramesSent    uint64 `json:"frames_sent"`
	FramesDropped uint64 `json:"frames_dropped"`
}

type statusResponse struct {
	State       string       `json:"state"`
	Uptime      iso.Duration `json:"uptime"`
	RecordingID string       `json:"recording_id,omitempty"`
	Ingest      ingest.Stats `json:"ingest"`
	Stream      streamStatus `json:"stream"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (h *apiHandler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (h *apiHandler) handleState(w http.ResponseWriter, _ *http.Request) {
	stats := h.pipeline.Stats()
	hubStats := h.hub.Stats()

	h.writeJSON(w, http.StatusOK, statusResponse{
		State:       stats.State.String(),
		Uptime:      iso.Duration(wallclock.Instance.Now().Sub(h.started)),
		RecordingID: h.pipeline.Recording().ID,
		Ingest:      stats,
		Stream: streamStatus{
			Clients:       hubStats.Clients,
			FramesSent:    hubStats.FramesSent,
			FramesDropped: hubStats.FramesDropped,
		},
	})
}

// recordOp adapts one recording lifecycle operation into a handler. State
// conflicts map to 409 so the control UI can surface them without parsing.
func (h *apiHandler) recordOp(name string, op func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := op(); err != nil {
			var stateErr *ingest.StateError
			if errors.As(err, &stateErr) {
				h.writeError(w, http.StatusConflict, err.Error())
				return
			}
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		h.log.Info("recording control applied", "op", name)
		h.writeJSON(w, http.StatusOK, stateResponse{State: h.pipeline.State().String()})
	}
}

func (h *apiHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid snapshot body")
		return
	}
	if len(req.Params) == 0 {
		h.writeError(w, http.StatusBadRequest, "params must not be empty")
		return
	}

	at := wallclock.Instance.Now()
	if req.Time != nil {
		at = time.Time(*req.Time)
	}

	applied := h.pipeline.ApplySnapshot(at, req.Params)
	h.writeJSON(w, http.StatusOK, snapshotResponse{
		Applied:   applied,
		Snapshots: h.pipeline.Stats().Snapshots,
	})
}

func (h *apiHandler) handleExport(w http.ResponseWriter, _ *http.Request) {
	rec := h.pipeline.Recording()
	if rec.ID == "" {
		h.writeError(w, http.StatusNotFound, "no recording to export")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "recording-"+rec.ID+".csv"))
	if err := export.Write(w, rec); err != nil {
		// The header is already on the wire, so the client sees a truncated
		// body; all that is left is to record it.
		h.log.Error("csv export failed", "recording_id", rec.ID, "error", err)
	}
}

func (h *apiHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message, Code: status})
}

func (h *apiHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
