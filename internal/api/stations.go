package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-weather/internal/entry"
	"github.com/nerrad567/gray-logic-weather/internal/integration"
	"github.com/nerrad567/gray-logic-weather/internal/sensor"
	"github.com/nerrad567/gray-logic-weather/internal/station"
)

// refreshTimeout bounds an on-demand refresh triggered over HTTP.
const refreshTimeout = 30 * time.Second

// StationResponse describes one configured station.
type StationResponse struct {
	Entry        entry.Entry           `json:"entry"`
	Loaded       bool                  `json:"loaded"`
	Available    bool                  `json:"available"`
	Device       *station.DeviceInfo   `json:"device,omitempty"`
	DisplayUnits *station.DisplayUnits `json:"display_units,omitempty"`
	Refresh      *RefreshStatus        `json:"refresh,omitempty"`
	SetupError   string                `json:"setup_error,omitempty"`
}

// RefreshStatus is the coordinator bookkeeping of a loaded station.
type RefreshStatus struct {
	IntervalSeconds     int        `json:"interval_seconds"`
	Running             bool       `json:"running"`
	Refreshing          bool       `json:"refreshing"`
	LastAttempt         *time.Time `json:"last_attempt,omitempty"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastUpdateSuccess   bool       `json:"last_update_success"`
	LastError           string     `json:"last_error,omitempty"`
	LastErrorKind       string     `json:"last_error_kind,omitempty"`
	ReauthRequired      bool       `json:"reauth_required"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	SkippedTicks        uint64     `json:"skipped_ticks"`
}

// ReadingsResponse is the projected state of every entity of a station.
type ReadingsResponse struct {
	EntryID     string           `json:"entry_id"`
	Available   bool             `json:"available"`
	LastSuccess *time.Time       `json:"last_success,omitempty"`
	Readings    []sensor.Reading `json:"readings"`
}

// handleListStations returns every persisted entry with its runtime state.
func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	entries, err := s.stations.Entries(r.Context())
	if err != nil {
		s.logger.Error("failed to list stations", "error", err)
		writeInternalError(w, "failed to list stations")
		return
	}

	out := make([]StationResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, s.stationResponse(e))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stations": out,
		"count":    len(out),
	})
}

// handleAddStation runs the add flow for a new station.
func (s *Server) handleAddStation(w http.ResponseWriter, r *http.Request) {
	var in entry.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	e, _, err := s.stations.AddStation(r.Context(), in)
	if err != nil && e == nil {
		s.writeStationError(w, err, "failed to add station")
		return
	}
	if err != nil {
		// Stored but not running; report it so the client can retry setup.
		s.logger.Warn("station stored but setup failed", "entry_id", e.ID, "error", err)
		writeJSON(w, http.StatusAccepted, s.stationResponse(*e))
		return
	}

	writeJSON(w, http.StatusCreated, s.stationResponse(*e))
}

// handleGetStation returns one station.
func (s *Server) handleGetStation(w http.ResponseWriter, r *http.Request) {
	e, err := s.stations.Entry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStationError(w, err, "failed to get station")
		return
	}
	writeJSON(w, http.StatusOK, s.stationResponse(*e))
}

// handleRemoveStation unloads a station and deletes its entry.
func (s *Server) handleRemoveStation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.stations.RemoveStation(r.Context(), id); err != nil {
		s.writeStationError(w, err, "failed to remove station")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateOptions changes the polling interval of a station.
func (s *Server) handleUpdateOptions(w http.ResponseWriter, r *http.Request) {
	var opts entry.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	e, err := s.stations.UpdateOptions(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		s.writeStationError(w, err, "failed to update station options")
		return
	}
	writeJSON(w, http.StatusOK, s.stationResponse(*e))
}

// handleGetReadings projects the cached payload of a loaded station.
func (s *Server) handleGetReadings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := s.stations.Get(id)
	if !ok {
		writeNotFound(w, "station not loaded: "+id)
		return
	}

	writeJSON(w, http.StatusOK, readingsResponse(st))
}

// handleRefresh requests an immediate refresh and returns the new readings.
// A refresh already in flight is joined rather than duplicated.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	if err := s.stations.Refresh(ctx, id); err != nil {
		s.writeStationError(w, err, "refresh failed")
		return
	}

	st, ok := s.stations.Get(id)
	if !ok {
		writeNotFound(w, "station not loaded: "+id)
		return
	}
	writeJSON(w, http.StatusOK, readingsResponse(st))
}

// handleRetrySetup loads a stored entry whose setup previously failed.
func (s *Server) handleRetrySetup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.stations.RetrySetup(r.Context(), id); err != nil {
		s.writeStationError(w, err, "setup failed")
		return
	}

	e, err := s.stations.Entry(r.Context(), id)
	if err != nil {
		s.writeStationError(w, err, "failed to get station")
		return
	}
	writeJSON(w, http.StatusOK, s.stationResponse(*e))
}

// writeStationError maps a manager error to a response, logging the ones
// that have no client-facing meaning.
func (s *Server) writeStationError(w http.ResponseWriter, err error, message string) {
	if writeDomainError(w, err) {
		return
	}
	s.logger.Error(message, "error", err)
	writeInternalError(w, message)
}

// stationResponse combines a stored entry with its runtime state.
func (s *Server) stationResponse(e entry.Entry) StationResponse {
	resp := StationResponse{Entry: e}

	st, ok := s.stations.Get(e.ID)
	if !ok {
		if err := s.stations.SetupError(e.ID); err != nil {
			resp.SetupError = err.Error()
		}
		return resp
	}

	resp.Entry = st.Entry()
	resp.Loaded = true
	resp.Available = st.Available()
	device := st.Device()
	resp.Device = &device
	units := st.DisplayUnits()
	resp.DisplayUnits = &units

	status := st.Status()
	rs := &RefreshStatus{
		IntervalSeconds:     int(status.Interval / time.Second),
		Running:             status.Running,
		Refreshing:          status.Refreshing,
		LastAttempt:         timePtr(status.LastAttempt),
		LastSuccess:         timePtr(status.LastSuccess),
		LastUpdateSuccess:   status.LastUpdateSuccess,
		LastErrorKind:       string(status.LastErrorKind),
		ReauthRequired:      status.AuthFailed,
		ConsecutiveFailures: status.ConsecutiveFailures,
		SkippedTicks:        status.SkippedTicks,
	}
	if status.LastError != nil {
		rs.LastError = status.LastError.Error()
	}
	resp.Refresh = rs
	return resp
}

func readingsResponse(st *integration.Station) ReadingsResponse {
	return ReadingsResponse{
		EntryID:     st.ID(),
		Available:   st.Available(),
		LastSuccess: timePtr(st.Status().LastSuccess),
		Readings:    st.Readings(),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
