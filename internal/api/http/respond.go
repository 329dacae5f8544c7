package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mind-engage/secacademy-lms/internal/quiz"
	"github.com/mind-engage/secacademy-lms/internal/session"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, quiz.ErrNotFound),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrUnavailable):
		return http.StatusNotFound
	case errors.Is(err, quiz.ErrInvalid),
		errors.Is(err, quiz.ErrNoQuestions),
		errors.Is(err, session.ErrUnknownQuestion):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoAttemptsLeft):
		return http.StatusForbidden
	case errors.Is(err, session.ErrNotInProgress),
		errors.Is(err, session.ErrAlreadyStarted),
		errors.Is(err, session.ErrNotGraded),
		errors.Is(err, session.ErrAlreadySubmitted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	http.Error(w, msg, status)
}
