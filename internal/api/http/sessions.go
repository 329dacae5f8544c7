package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/secacademy-lms/internal/rbac"
	"github.com/mind-engage/secacademy-lms/internal/session"
)

// POST /quizzes/{quizID}/sessions
func StartSessionHandler(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Start(r.Context(), chi.URLParam(r, "quizID"), rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, s.View())
	}
}

// GET /sessions/{sessionID}
func GetSessionHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		respondJSON(w, http.StatusOK, s.View())
	})
}

type answerReq struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

// POST /sessions/{sessionID}/answers
// For multiple-select questions each post toggles value in the stored set.
func AnswerHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		var req answerReq
		if err := decodeJSON(w, r, &req); err != nil || req.QuestionID == "" {
			http.Error(w, "questionId and value required", http.StatusBadRequest)
			return
		}
		if err := s.SelectAnswer(req.QuestionID, req.Value); err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, s.View())
	})
}

type navigateReq struct {
	Direction string `json:"direction"` // next | prev
	Index     *int   `json:"index"`
}

// POST /sessions/{sessionID}/navigate
func NavigateHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		var req navigateReq
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		var err error
		switch {
		case req.Index != nil:
			_, err = s.JumpTo(*req.Index)
		case strings.EqualFold(req.Direction, "next"):
			_, err = s.Navigate(session.Next)
		case strings.EqualFold(req.Direction, "prev"):
			_, err = s.Navigate(session.Prev)
		default:
			http.Error(w, "direction must be next or prev, or give an index", http.StatusBadRequest)
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, s.View())
	})
}

// POST /sessions/{sessionID}/submit
// Submitting again returns the stored result unchanged.
func SubmitSessionHandler(m *session.Manager) http.HandlerFunc {
	return withSession(m, func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		res, err := s.Submit()
		switch {
		case errors.Is(err, session.ErrAlreadySubmitted):
			respondJSON(w, http.StatusOK, res)
		case err != nil:
			writeError(w, err)
		default:
			respondJSON(w, http.StatusOK, res)
		}
	})
}

// POST /sessions/{sessionID}/retake
func RetakeSessionHandler(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Retake(r.Context(), chi.URLParam(r, "sessionID"), rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, s.View())
	}
}

// withSession resolves {sessionID} for the caller. Sessions of other users
// are reported as missing.
func withSession(m *session.Manager, h func(http.ResponseWriter, *http.Request, *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Get(chi.URLParam(r, "sessionID"), rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		h(w, r, s)
	}
}
