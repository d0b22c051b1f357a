package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/rulekeeper/internal/apperr"
	"github.com/starford/rulekeeper/internal/rulestore"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error      string                `json:"error" validate:"required"`
	Candidates []rulestore.Candidate `json:"candidates,omitempty"`
	Existing   *rulestore.Candidate  `json:"existing,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps store errors to status codes. Unclassified errors are
// logged and reported as internal.
func writeError(w http.ResponseWriter, op string, err error) {
	var (
		amb *rulestore.AmbiguousError
		dup *rulestore.DuplicateError
	)
	switch {
	case errors.As(err, &amb):
		writeJSON(w, http.StatusConflict, errResponse{Error: err.Error(), Candidates: amb.Candidates})
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, errResponse{Error: err.Error(), Existing: &dup.Existing})
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
