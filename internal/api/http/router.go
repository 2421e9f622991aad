package http

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/metrics"
	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

type Deps struct {
	Store  quiz.Store
	Auth   *auth.AuthService
	Users  *auth.UserStore // nil disables login and identity refresh
	DB     *sql.DB         // nil disables /events and the readiness ping
	Events *syncx.EventRepo

	EnableLocalAuth  bool
	TrustTokenClaims bool
	EnableMetrics    bool
	AccessLog        bool
	CORSOrigins      []string
	RequestTimeout   time.Duration
}

func NewRouter(d Deps) chi.Router {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if d.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.EnableLocalAuth && d.Users != nil {
		r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Users))
	}

	// Protected API (JWT → identity in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))
		if d.Users != nil {
			pr.Use(auth.AttachIdentityFromDB(d.Users, d.TrustTokenClaims))
		}

		// Learner flow
		pr.With(rbac.Require(rbac.PermAnswerSubmit)).
			Post("/user-answers/submit", SubmitAnswerHandler(d.Store))
		pr.With(rbac.Require(rbac.PermProgressViewOwn)).
			Get("/user-progress/my", MyProgressHandler(d.Store))

		// Role-scoped listings
		pr.With(rbac.RequireAny(rbac.PermAnswerViewOwn, rbac.PermAnswerViewSchool)).
			Get("/user-answers", ListAnswersHandler(d.Store))
		pr.With(rbac.RequireAny(rbac.PermProgressViewOwn, rbac.PermProgressViewSchool)).
			Get("/user-progress", ListProgressHandler(d.Store))

		// Quizzes: read for everyone, write for admin / content manager
		pr.With(rbac.Require(rbac.PermQuizView)).Get("/quizzes", ListQuizzesHandler(d.Store))
		pr.With(rbac.Require(rbac.PermQuizView)).Get("/quizzes/{quizID}", GetQuizHandler(d.Store))
		pr.With(rbac.Require(rbac.PermQuizView)).Get("/questions/{questionID}", GetQuestionHandler(d.Store))

		pr.With(rbac.Require(rbac.PermQuizEdit)).Post("/quizzes", CreateQuizHandler(d.Store))
		pr.With(rbac.Require(rbac.PermQuizEdit)).Patch("/quizzes/{quizID}", UpdateQuizHandler(d.Store))
		pr.With(rbac.Require(rbac.PermQuizEdit)).Delete("/quizzes/{quizID}", DeleteQuizHandler(d.Store))
		pr.With(rbac.Require(rbac.PermQuizEdit)).Post("/quizzes/{quizID}/questions", AddQuestionHandler(d.Store))
		pr.With(rbac.Require(rbac.PermQuizEdit)).Delete("/questions/{questionID}", DeleteQuestionHandler(d.Store))

		if d.Users != nil {
			pr.With(rbac.Require(rbac.PermChangePassword)).
				Post("/users/change-password", ChangePasswordHandler(d.Users))
		}

		if d.DB != nil && d.Events != nil {
			pr.With(rbac.Require(rbac.PermEventsRead)).Get("/events", ListEventsHandler(d.DB, d.Events))
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			if err := d.DB.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	if d.EnableMetrics {
		r.Handle("/metrics", metrics.Handler())
	}
	return r
}
