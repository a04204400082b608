package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sandrayoe/mms-version2/ingest"
	"github.com/sandrayoe/mms-version2/stream"
)

func newTestAPI(t *testing.T) (*apiHandler, *http.ServeMux) {
	t.Helper()

	h := &apiHandler{
		pipeline: ingest.NewPipeline(),
		hub:      stream.NewHub(),
		started:  time.Now(),
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return h, newMux(h)
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func TestHealthz(t *testing.T) {
	_, mux := newTestAPI(t)

	rec := do(t, mux, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRecordStartConflictsWhileIdle(t *testing.T) {
	_, mux := newTestAPI(t)

	rec := do(t, mux, http.MethodPost, "/api/record/start", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "cannot start recording while idle", resp.Error)
	require.Equal(t, http.StatusConflict, resp.Code)
}

func TestRecordEndpointsRejectGet(t *testing.T) {
	_, mux := newTestAPI(t)

	rec := do(t, mux, http.MethodGet, "/api/record/start", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecordLifecycleOverHTTP(t *testing.T) {
	h, mux := newTestAPI(t)
	require.NoError(t, h.pipeline.Start(context.Background()))
	t.Cleanup(h.pipeline.Stop)

	for _, step := range []struct {
		path  string
		state string
	}{
		{"/api/record/start", "recording"},
		{"/api/record/pause", "paused"},
		{"/api/record/resume", "recording"},
		{"/api/record/stop", "measuring"},
	} {
		rec := do(t, mux, http.MethodPost, step.path, "")
		require.Equal(t, http.StatusOK, rec.Code, step.path)

		var resp stateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, step.state, resp.State, step.path)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	_, mux := newTestAPI(t)

	rec := do(t, mux, http.MethodPost, "/api/snapshot", `{"params":{"gain":"2"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Applied)
	require.Equal(t, 1, resp.Snapshots)

	// An identical parameter set is suppressed, not re-applied.
	rec = do(t, mux, http.MethodPost, "/api/snapshot", `{"params":{"gain":"2"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Applied)
	require.Equal(t, 1, resp.Snapshots)

	rec = do(t, mux, http.MethodPost, "/api/snapshot",
		`{"time":"2026-01-02T03:04:05Z","params":{"gain":"3"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Applied)
	require.Equal(t, 2, resp.Snapshots)
}

func TestSnapshotEndpointRejectsBadBodies(t *testing.T) {
	_, mux := newTestAPI(t)

	rec := do(t, mux, http.MethodPost, "/api/snapshot", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodPost, "/api/snapshot", `{"params":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportWithoutRecording(t *testing.T) {
	_, mux := newTestAPI(t)

	rec := do(t, mux, http.MethodGet, "/api/export", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportReturnsCSV(t *testing.T) {
	h, mux := newTestAPI(t)
	require.NoError(t, h.pipeline.Start(context.Background()))
	t.Cleanup(h.pipeline.Stop)

	require.True(t, h.pipeline.ApplySnapshot(time.Now(), map[string]string{"gain": "1"}))
	require.NoError(t, h.pipeline.StartRecording())

	rec := do(t, mux, http.MethodGet, "/api/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), `attachment; filename="recording-`)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Equal(t, "time,ch1,ch2,gain,marker", lines[0])
	// The start marker produces a row even before any samples arrive.
	require.Len(t, lines, 2)
	require.True(t, strings.HasSuffix(lines[1], ",start"))
}

func TestStateEndpoint(t *testing.T) {
	_, mux := newTestAPI(t)

	rec := do(t, mux, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "idle", resp.State)
	require.Equal(t, ingest.StateIdle, resp.Ingest.State)
	require.Empty(t, resp.RecordingID)
	require.Equal(t, 0, resp.Stream.Clients)
}
