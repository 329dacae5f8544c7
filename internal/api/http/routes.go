package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	auth "github.com/mind-engage/secacademy-lms/internal/auth/middleware"
	"github.com/mind-engage/secacademy-lms/internal/quiz"
	"github.com/mind-engage/secacademy-lms/internal/rbac"
	"github.com/mind-engage/secacademy-lms/internal/session"
)

type Deps struct {
	Auth     *auth.AuthService
	Quizzes  quiz.Store
	Sessions *session.Manager
	Events   session.EventSink
	Feed     EventFeed // optional; GET /events is mounted only when set
	Upgrader *websocket.Upgrader
	Log      *slog.Logger

	// RequestTimeout bounds every route except the websocket stream.
	RequestTimeout time.Duration
}

// MountQuizAPI registers the protected quiz, result and session routes.
func MountQuizAPI(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Upgrader == nil {
		d.Upgrader = NewUpgrader(nil)
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		// long-lived; must not sit behind the request timeout
		pr.With(rbac.Require(rbac.PermSessionView)).
			Get("/sessions/{sessionID}/stream", SessionStreamHandler(d.Sessions, d.Upgrader, d.Log))

		pr.Group(func(pr chi.Router) {
			pr.Use(middleware.Timeout(d.RequestTimeout))

			// Quizzes
			pr.With(rbac.Require(rbac.PermQuizCreate)).
				Post("/quizzes", CreateQuizHandler(d.Quizzes))
			pr.With(rbac.Require(rbac.PermQuizView)).
				Get("/quizzes", ListQuizzesHandler(d.Quizzes))
			pr.With(rbac.Require(rbac.PermQuizView)).
				Get("/quizzes/{quizID}", GetQuizHandler(d.Quizzes))
			pr.With(rbac.Require(rbac.PermQuizView)).
				Get("/lessons/{lessonID}/quiz", GetLessonQuizHandler(d.Quizzes))
			pr.With(rbac.Require(rbac.PermQuizCreate)).
				Delete("/quizzes/{quizID}", DeleteQuizHandler(d.Quizzes))

			// Results
			pr.With(rbac.Require(rbac.PermResultSubmit)).
				Post("/quizzes/{quizID}/submit", SubmitQuizHandler(d.Quizzes, d.Sessions, d.Events, d.Log))
			pr.With(rbac.RequireAny(rbac.PermResultViewOwn, rbac.PermResultViewAll)).
				Get("/quizzes/{quizID}/results", ListQuizResultsHandler(d.Quizzes))
			pr.With(rbac.Require(rbac.PermResultExport)).
				Get("/quizzes/{quizID}/results/export", ExportResultsHandler(d.Quizzes))
			pr.With(rbac.RequireAny(rbac.PermResultViewOwn, rbac.PermResultViewAll)).
				Get("/results/{resultID}", GetResultHandler(d.Quizzes))

			// Sessions
			pr.With(rbac.Require(rbac.PermSessionCreate)).
				Post("/quizzes/{quizID}/sessions", StartSessionHandler(d.Sessions))
			pr.With(rbac.Require(rbac.PermSessionView)).
				Get("/sessions/{sessionID}", GetSessionHandler(d.Sessions))
			pr.With(rbac.Require(rbac.PermSessionAnswer)).
				Post("/sessions/{sessionID}/answers", AnswerHandler(d.Sessions))
			pr.With(rbac.Require(rbac.PermSessionAnswer)).
				Post("/sessions/{sessionID}/navigate", NavigateHandler(d.Sessions))
			pr.With(rbac.Require(rbac.PermSessionSubmit)).
				Post("/sessions/{sessionID}/submit", SubmitSessionHandler(d.Sessions))
			pr.With(rbac.Require(rbac.PermSessionCreate)).
				Post("/sessions/{sessionID}/retake", RetakeSessionHandler(d.Sessions))

			if d.Feed != nil {
				pr.With(rbac.Require(rbac.PermEventView)).
					Get("/events", ListEventsHandler(d.Feed))
			}
		})
	})
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// MountProbes registers /healthz and /readyz. readyz fails while db is unreachable.
func MountProbes(r chi.Router, db Pinger) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
}
