package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-doorbird/internal/host"
)

// EntityResponse describes one entity.
type EntityResponse struct {
	EntityID   string         `json:"entity_id"`
	Name       string         `json:"name"`
	Domain     string         `json:"domain"`
	EntryID    string         `json:"entry_id"`
	Pressable  bool           `json:"pressable"`
	Attributes map[string]any `json:"attributes"`
}

func entityResponse(e host.Entity) EntityResponse {
	_, pressable := e.(host.Pressable)
	return EntityResponse{
		EntityID:   e.EntityID(),
		Name:       e.Name(),
		Domain:     host.Domain(e.EntityID()),
		EntryID:    e.EntryID(),
		Pressable:  pressable,
		Attributes: e.Attributes(),
	}
}

// handleListEntities returns entities, optionally of one entry.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	var entities []host.Entity
	if entryID := r.URL.Query().Get("entry_id"); entryID != "" {
		entities = s.entities.ForEntry(entryID)
	} else {
		entities = s.entities.List()
	}

	out := make([]EntityResponse, 0, len(entities))
	for _, e := range entities {
		out = append(out, entityResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": out,
		"count":    len(out),
	})
}

// handleGetEntity returns one entity.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.entities.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entityResponse(e))
}

// handlePressEntity triggers a button.
func (s *Server) handlePressEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.entities.Press(r.Context(), id)
	if err != nil {
		// Device failures were already logged by the button.
		s.writeFailure(w, r, err, "entity_id", id)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"entity_id": id, "status": "pressed"})
}
