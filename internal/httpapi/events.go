package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-storefront-cache/analytics"
)

// ingestEvent handles POST /api/events
//
// The payload is validated against the event type on decode and again by
// the store before it is written. Analytics caches are not invalidated; new
// events show up once the cached window expires.
func (s *Server) ingestEvent(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)

	var event analytics.Event
	if err := json.NewDecoder(body).Decode(&event); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, goerrors.New("event body too large", goerrors.CategoryBadInput).
				WithCode(http.StatusRequestEntityTooLarge))
			return
		}
		if !errors.Is(err, analytics.ErrInvalidPayload) {
			err = fmt.Errorf("%w: %v", analytics.ErrInvalidPayload, err)
		}
		writeError(w, err)
		return
	}

	stored, err := s.deps.Events.Append(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}
