package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mind-engage/secacademy-lms/internal/quiz"
	"github.com/mind-engage/secacademy-lms/internal/rbac"
)

// POST /quizzes
// Body is the upstream quiz shape; options and correctAnswer may be arrays,
// encoded arrays or comma-separated strings.
func CreateQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw quiz.RawQuiz
		if err := decodeJSON(w, r, &raw); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(raw.ID) == "" {
			raw.ID = uuid.NewString()
		}
		q, err := quiz.Normalize(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		q.CreatedAt = time.Now().Unix()
		if err := store.PutQuiz(r.Context(), *q); err != nil {
			writeError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, q)
	}
}

// GET /quizzes?lesson_id=...&limit=50&offset=0
func ListQuizzesHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		list, err := store.ListQuizzes(r.Context(), quiz.ListOpts{
			LessonID: strings.TrimSpace(qs.Get("lesson_id")),
			Limit:    parseIntDefault(qs.Get("limit"), 50),
			Offset:   parseIntDefault(qs.Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		keys := rbac.Can(r.Context(), rbac.PermQuizViewKey)
		out := make([]*quiz.Quiz, 0, len(list))
		for i := range list {
			out = append(out, present(&list[i], keys))
		}
		respondJSON(w, http.StatusOK, out)
	}
}

// GET /quizzes/{quizID}
func GetQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.GetQuiz(r.Context(), chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, err)
			return
		}
		serveQuiz(w, r, store, q)
	}
}

// GET /lessons/{lessonID}/quiz
func GetLessonQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.GetQuizByLesson(r.Context(), chi.URLParam(r, "lessonID"))
		if err != nil {
			writeError(w, err)
			return
		}
		serveQuiz(w, r, store, q)
	}
}

// DELETE /quizzes/{quizID}
func DeleteQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteQuiz(r.Context(), chi.URLParam(r, "quizID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// serveQuiz fills the caller's attempt count and strips answer keys for roles
// that may not see them.
func serveQuiz(w http.ResponseWriter, r *http.Request, store quiz.Store, q quiz.Quiz) {
	if sub := rbac.SubjectFromContext(r.Context()); sub != "" {
		n, err := store.CountResults(r.Context(), q.ID, sub)
		if err != nil {
			writeError(w, err)
			return
		}
		q.Attempts = n
	}
	respondJSON(w, http.StatusOK, present(&q, rbac.Can(r.Context(), rbac.PermQuizViewKey)))
}

func present(q *quiz.Quiz, withKeys bool) *quiz.Quiz {
	if withKeys {
		return q
	}
	return q.WithoutKeys()
}
