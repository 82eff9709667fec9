package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-doorbird/internal/bridges/doorbird"
	"github.com/nerrad567/gray-logic-doorbird/internal/host"
	"github.com/nerrad567/gray-logic-doorbird/internal/infrastructure/config"
)

// EntryResponse is a config entry with its lifecycle state. Device settings
// are shown with the password redacted.
type EntryResponse struct {
	host.EntryStatus
	Device  *config.DeviceConfig `json:"device,omitempty"`
	Station *doorbird.Station    `json:"station,omitempty"`
}

// EntriesResponse lists config entries.
type EntriesResponse struct {
	Entries []EntryResponse `json:"entries"`
	Count   int             `json:"count"`
}

func entryResponse(status host.EntryStatus) EntryResponse {
	resp := EntryResponse{EntryStatus: status}
	if status.Domain == doorbird.Domain {
		if cfg, err := config.ParseDeviceConfig(status.Data); err == nil {
			resp.Device = &cfg
		}
	}
	return resp
}

// handleListEntries returns every config entry.
func (s *Server) handleListEntries(w http.ResponseWriter, _ *http.Request) {
	entries := s.entries.Entries()
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse(e))
	}
	writeJSON(w, http.StatusOK, EntriesResponse{Entries: out, Count: len(out)})
}

// handleGetEntry returns one entry with its live station snapshot.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := s.entries.Entry(id)
	if err != nil {
		s.writeFailure(w, r, err, "entry_id", id)
		return
	}

	resp := entryResponse(status)
	if s.stations != nil && status.Domain == doorbird.Domain {
		station, ok, err := s.stations.Station(r.Context(), id)
		if err != nil {
			s.logger.Warn("station snapshot failed", "entry_id", id, "error", err)
		} else if ok {
			resp.Station = &station
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReloadEntry unloads and sets up an entry. A setup failure is not an
// HTTP error: the returned state and reason describe it.
func (s *Server) handleReloadEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.entries.Reload(r.Context(), id)
	if err != nil && !errors.Is(err, host.ErrSetupRetry) && !errors.Is(err, host.ErrSetupFailed) {
		s.writeFailure(w, r, err, "entry_id", id)
		return
	}

	status, err := s.entries.Entry(id)
	if err != nil {
		s.writeFailure(w, r, err, "entry_id", id)
		return
	}
	writeJSON(w, http.StatusOK, entryResponse(status))
}

// handleDeleteEntry unloads an entry and removes it from storage.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.entries.Remove(r.Context(), id); err != nil {
		s.writeFailure(w, r, err, "entry_id", id)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
