package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/secacademy-lms/internal/eventlog"
	"github.com/mind-engage/secacademy-lms/internal/export"
	"github.com/mind-engage/secacademy-lms/internal/grading"
	"github.com/mind-engage/secacademy-lms/internal/quiz"
	"github.com/mind-engage/secacademy-lms/internal/rbac"
	"github.com/mind-engage/secacademy-lms/internal/session"
)

type submitReq struct {
	Answers   quiz.Answers `json:"answers"`
	TimeTaken int          `json:"timeTaken"`
}

// POST /quizzes/{quizID}/submit
// Grades the posted answers on the server. Any score the client sends is ignored.
// Attempts still running as sessions count towards the limit.
func SubmitQuizHandler(store quiz.Store, sessions *session.Manager, events session.EventSink, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sub := rbac.SubjectFromContext(ctx)
		if sub == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var req submitReq
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		q, err := store.GetQuiz(ctx, chi.URLParam(r, "quizID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if len(q.Questions) == 0 {
			writeError(w, session.ErrUnavailable)
			return
		}
		n, unlock, err := sessions.LockAttempts(ctx, q.ID, sub)
		if err != nil {
			writeError(w, err)
			return
		}
		defer unlock()
		q.Attempts = n
		if !q.CanAttempt() {
			writeError(w, session.ErrNoAttemptsLeft)
			return
		}
		for id := range req.Answers {
			if _, ok := q.Question(id); !ok {
				writeError(w, fmt.Errorf("%w: %s", session.ErrUnknownQuestion, id))
				return
			}
		}

		sum := grading.Grade(&q, req.Answers)
		res := quiz.Result{
			ID:             session.NewResultID(),
			QuizID:         q.ID,
			UserID:         sub,
			Score:          sum.Score,
			TotalQuestions: sum.TotalQuestions,
			CorrectAnswers: sum.CorrectAnswers,
			Passed:         sum.Passed,
			Answers:        req.Answers,
			Breakdown:      sum.Breakdown,
			CompletedAt:    time.Now().UTC(),
			TimeTaken:      clampTimeTaken(req.TimeTaken, q.TimeLimitSeconds()),
		}
		if err := store.SaveResult(ctx, res); err != nil {
			writeError(w, err)
			return
		}
		appendEvent(ctx, events, log, eventlog.ResultSubmitted, res.ID, map[string]any{
			"quizId": res.QuizID,
			"userId": res.UserID,
			"score":  res.Score,
			"passed": res.Passed,
		})
		respondJSON(w, http.StatusCreated, res)
	}
}

// GET /quizzes/{quizID}/results?user_id=...&limit=50&offset=0
// Callers without result:view-all only ever see their own results.
func ListQuizResultsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		userID := strings.TrimSpace(qs.Get("user_id"))
		if !rbac.Can(r.Context(), rbac.PermResultViewAll) {
			userID = rbac.SubjectFromContext(r.Context())
		}
		list, err := store.ListResults(r.Context(), quiz.ResultFilter{
			QuizID: chi.URLParam(r, "quizID"),
			UserID: userID,
			Limit:  parseIntDefault(qs.Get("limit"), 50),
			Offset: parseIntDefault(qs.Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []quiz.Result{}
		}
		respondJSON(w, http.StatusOK, list)
	}
}

// GET /results/{resultID}
// Someone else's result is reported as missing.
func GetResultHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := store.GetResult(r.Context(), chi.URLParam(r, "resultID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if res.UserID != rbac.SubjectFromContext(r.Context()) && !rbac.Can(r.Context(), rbac.PermResultViewAll) {
			writeError(w, quiz.ErrNotFound)
			return
		}
		respondJSON(w, http.StatusOK, res)
	}
}

// GET /quizzes/{quizID}/results/export?format=csv|xlsx
func ExportResultsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
		if format == "" {
			format = "csv"
		}
		if format != "csv" && format != "xlsx" {
			http.Error(w, "format must be csv or xlsx", http.StatusBadRequest)
			return
		}
		if _, err := store.GetQuiz(r.Context(), quizID); err != nil {
			writeError(w, err)
			return
		}
		list, err := store.ListResults(r.Context(), quiz.ResultFilter{QuizID: quizID})
		if err != nil {
			writeError(w, err)
			return
		}

		name := fmt.Sprintf("%s-results.%s", quizID, format)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		if format == "xlsx" {
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			err = export.XLSX(w, list)
		} else {
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			err = export.CSV(w, list)
		}
		if err != nil {
			// headers are gone already; nothing useful to send
			slog.Error("export failed", "quiz", quizID, "format", format, "err", err)
		}
	}
}

// clampTimeTaken keeps a client-reported duration within [0, limit].
// Untimed quizzes record 0, as session grading does.
func clampTimeTaken(v, limit int) int {
	switch {
	case limit <= 0 || v < 0:
		return 0
	case v > limit:
		return limit
	default:
		return v
	}
}

func appendEvent(ctx context.Context, events session.EventSink, log *slog.Logger, typ, key string, data any) {
	if events == nil {
		return
	}
	ev, err := eventlog.New(typ, key, data)
	if err == nil {
		err = events.Append(ctx, ev)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("event log append failed", "type", typ, "key", key, "err", err)
	}
}
