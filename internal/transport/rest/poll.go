package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Poll returns the calling registrar's earliest undelivered message, or 204
// when the queue is empty.
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	m, err := h.poll.Poll(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if m == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toPollMessageDTO(m))
}

// AckPoll acknowledges a delivered message, removing it from the queue.
func (h *Handler) AckPoll(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, r, "invalid message id")
		return
	}
	if err := h.poll.Ack(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
