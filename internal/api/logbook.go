package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-doorbird/internal/logbook"
)

// handleLogbook lists described events, most recent first.
//
// Query: limit, offset, event_type, entry_id.
func (s *Server) handleLogbook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := logbook.Filter{
		EventType: q.Get("event_type"),
		EntryID:   q.Get("entry_id"),
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be a non-negative integer")
		return
	}

	page, err := s.logbook.List(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// intParam parses an optional non-negative query value; "" is 0.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
