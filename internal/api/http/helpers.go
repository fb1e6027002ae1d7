package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/examhall/examhall/internal/exam"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the exam package's errors onto the API's status codes.
// Precondition failures (bad transition, ungraded answers, score bounds) are
// 422; ownership and lifecycle denials are 403.
func writeError(w http.ResponseWriter, err error) {
	var ve *exam.ValidationError
	var ue *exam.UngradedError
	switch {
	case errors.Is(err, exam.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, exam.ErrNotAvailable),
		errors.Is(err, exam.ErrAlreadySubmitted),
		errors.Is(err, exam.ErrNotSubmitted):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.As(err, &ue):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":          ue.Error(),
			"ungraded_count": ue.Count,
		})
	case errors.As(err, &ve),
		errors.Is(err, exam.ErrIllegalTransition),
		errors.Is(err, exam.ErrNotEditable),
		errors.Is(err, exam.ErrScoreOutOfRange),
		errors.Is(err, exam.ErrNotManualType):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
