package rest

import (
	"errors"
	"net/http"

	"github.com/juniorpayne/registry-core/internal/domain"
	"github.com/juniorpayne/registry-core/pkg/ctxutil"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeDomainError translates domain sentinel errors into HTTP responses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch {
	case errors.Is(err, domain.ErrValidation):
		status, code = http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrNotAuthorized):
		status, code = http.StatusForbidden, "not_authorized"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAlreadyExists):
		status, code = http.StatusConflict, "already_exists"
	case errors.Is(err, domain.ErrStatusProhibited):
		status, code = http.StatusConflict, "status_prohibited"
	case errors.Is(err, domain.ErrExpirationMismatch):
		status, code = http.StatusConflict, "expiration_mismatch"
	case errors.Is(err, domain.ErrNotPendingTransfer):
		status, code = http.StatusConflict, "not_pending_transfer"
	case errors.Is(err, domain.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrTokenInvalid):
		status, code = http.StatusUnprocessableEntity, "token_invalid"
	case errors.Is(err, domain.ErrPolicyViolation):
		status, code = http.StatusUnprocessableEntity, "policy_violation"
	}

	resp := errorResponse{
		Error:     code,
		RequestID: ctxutil.RequestIDFromCtx(r.Context()),
	}
	// Internal details stay in the logs.
	if status != http.StatusInternalServerError {
		resp.Message = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:     "bad_request",
		Message:   message,
		RequestID: ctxutil.RequestIDFromCtx(r.Context()),
	})
}
