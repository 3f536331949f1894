// Package api exposes the recording controller over HTTP: start/stop/status
// endpoints, a websocket stream of status events, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/holdthatthought/htt-recorder/internal/events"
	"github.com/holdthatthought/htt-recorder/internal/ipc"
	"github.com/holdthatthought/htt-recorder/internal/metrics"
	"github.com/holdthatthought/htt-recorder/internal/session"
	"github.com/holdthatthought/htt-recorder/internal/statemachine"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeRecorderError   = "RECORDER_ERROR"
)

// Controller is the part of the session controller the API drives.
type Controller interface {
	Dispatch(ctx context.Context, source string, cmd ipc.Command) error
	IsRecording() bool
	Current() statemachine.Session
	Elapsed() time.Duration
}

// StartRequest is the body of POST /v1/recording/start.
type StartRequest struct {
	FilePath string `json:"filePath"`
}

// StatusResponse is the body of GET /v1/recording and of successful
// start/stop calls.
type StatusResponse struct {
	Recording bool   `json:"recording"`
	SessionID string `json:"sessionId,omitempty"`
	FilePath  string `json:"filePath,omitempty"`
	ElapsedMs int64  `json:"elapsedMs,omitempty"`
}

// ErrorResponse is returned with every 4xx/5xx status.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler exposes recorder HTTP endpoints using go-chi.
type Handler struct {
	ctrl        Controller
	bus         *events.Bus
	log         *slog.Logger
	metrics     *metrics.Metrics
	eventBuffer int
}

// NewHandler returns a Handler. Metrics may be nil.
func NewHandler(ctrl Controller, bus *events.Bus, log *slog.Logger, m *metrics.Metrics, eventBuffer int) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{ctrl: ctrl, bus: bus, log: log.With("component", "api"), metrics: m, eventBuffer: eventBuffer}
}

// StartRecording handles POST /v1/recording/start.
// Body: { "filePath": "/home/me/thoughts/2025-03-01.m4a" }.
func (h *Handler) StartRecording(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug("invalid start body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, CodeInvalidArgument, "request body must be JSON")
		return
	}
	if req.FilePath == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidArgument, session.ErrPathRequired.Error())
		return
	}

	if err := h.ctrl.Dispatch(r.Context(), "api", ipc.Command{Action: ipc.ActionStart, FilePath: req.FilePath}); err != nil {
		if errors.Is(err, session.ErrPathRequired) {
			writeError(w, http.StatusBadRequest, CodeInvalidArgument, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, CodeRecorderError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.status())
}

// StopRecording handles POST /v1/recording/stop.
func (h *Handler) StopRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Dispatch(r.Context(), "api", ipc.Command{Action: ipc.ActionStop}); err != nil {
		writeError(w, http.StatusInternalServerError, CodeRecorderError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.status())
}

// GetRecording handles GET /v1/recording.
func (h *Handler) GetRecording(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (h *Handler) status() StatusResponse {
	if !h.ctrl.IsRecording() {
		return StatusResponse{}
	}
	sess := h.ctrl.Current()
	return StatusResponse{
		Recording: true,
		SessionID: sess.ID,
		FilePath:  sess.OutputPath,
		ElapsedMs: h.ctrl.Elapsed().Milliseconds(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
