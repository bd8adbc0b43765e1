// Package server exposes the daemon's control surface as an HTTP API
// served over the unix socket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/hyprpier/hyprpier/internal/api"
	"github.com/hyprpier/hyprpier/internal/eventbus"
	"github.com/hyprpier/hyprpier/internal/journal"
	"github.com/hyprpier/hyprpier/internal/profile"
)

const maxRequestBody = 64 << 10

// Controller is the daemon-side surface the API drives.
type Controller interface {
	Status(ctx context.Context) (api.Status, error)
	Notify(source eventbus.Source, reason string)
	Apply(ctx context.Context, req api.ApplyRequest) (api.ApplyResult, error)
	RequestShutdown()
}

// HistorySource reads back recorded daemon events.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// APIServer routes control requests to the daemon controller.
type APIServer struct {
	controller Controller
	history    HistorySource
	bus        *eventbus.Bus
}

// New creates an API server. history and bus may be nil, the matching
// endpoints then report unavailable.
func New(controller Controller, history HistorySource, bus *eventbus.Bus) *APIServer {
	return &APIServer{
		controller: controller,
		history:    history,
		bus:        bus,
	}
}

// Handler builds the HTTP mux for the control socket.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/notify", s.handleNotify)
	mux.HandleFunc("/apply", s.handleApply)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/shutdown", s.handleShutdown)
	return mux
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status, err := s.controller.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *APIServer) handleNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req api.NotifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = "external notify"
	}

	s.controller.Notify(eventbus.SourceUdev, req.Reason)
	w.WriteHeader(http.StatusAccepted)
}

func (s *APIServer) handleApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req api.ApplyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Profile == "" && !req.Auto {
		writeError(w, http.StatusBadRequest, "profile name or auto flag required")
		return
	}

	result, err := s.controller.Apply(r.Context(), req)
	if err != nil {
		if profile.IsNotFound(err) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *APIServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "event history unavailable")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := api.HistoryResponse{Entries: make([]api.HistoryEntry, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, api.HistoryEntry{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Kind:      e.Kind,
			Outcome:   e.Outcome,
			Profile:   e.Profile,
			Dock:      e.Dock,
			Detail:    e.Detail,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *APIServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	w.WriteHeader(http.StatusAccepted)
	s.controller.RequestShutdown()
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
