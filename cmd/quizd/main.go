package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/pflag"

	api "github.com/mind-engage/secacademy-lms/internal/api/http"
	"github.com/mind-engage/secacademy-lms/internal/auth"
	authmw "github.com/mind-engage/secacademy-lms/internal/auth/middleware"
	"github.com/mind-engage/secacademy-lms/internal/cache"
	"github.com/mind-engage/secacademy-lms/internal/config"
	"github.com/mind-engage/secacademy-lms/internal/db"
	"github.com/mind-engage/secacademy-lms/internal/eventlog"
	"github.com/mind-engage/secacademy-lms/internal/lib/slogcustom"
	"github.com/mind-engage/secacademy-lms/internal/quiz"
	"github.com/mind-engage/secacademy-lms/internal/session"
)

func main() {
	cfg := config.FromEnv()

	// flags override the environment
	pflag.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "listen address")
	pflag.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "database driver: sqlite or postgres")
	pflag.StringVar(&cfg.DBDSN, "db-dsn", cfg.DBDSN, "database DSN")
	pflag.StringSliceVar(&cfg.RedisAddrs, "redis", cfg.RedisAddrs, "redis addresses for the quiz cache (empty disables it)")
	pflag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	pflag.Parse()

	log := slog.New(slogcustom.NewCustomHandler(os.Stdout, slogcustom.ParseLevel(cfg.LogLevel)))
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("quizd stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		return err
	}
	defer dbh.Close()

	var store quiz.Store = quiz.NewSQLStore(dbh, cfg.DBDriver)

	// --- Cache (optional) ---
	if len(cfg.RedisAddrs) > 0 {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err := cache.NewRedisClient(pingCtx, cache.RedisOptions{
			Addrs:    cfg.RedisAddrs,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cancel()
		if err != nil {
			return err
		}
		defer rdb.Close()
		store = cache.NewQuizCache(store, cache.NewRedisBackend(rdb), cfg.QuizCacheTTL, log)
		log.Info("quiz cache enabled", "redis", cfg.RedisAddrs, "ttl", cfg.QuizCacheTTL)
	}

	events := eventlog.NewRepo(dbh)

	// --- Sessions ---
	mgr := session.NewManager(store, session.ManagerConfig{TTL: cfg.SessionTTL},
		session.WithEventSink(events),
		session.WithLogger(log),
	)
	defer mgr.Close()
	go mgr.Run(ctx)

	authSvc := authmw.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", authmw.LoginHandler(authSvc, authmw.LoginConfig{
		AdminUser:       cfg.AdminUser,
		AdminPassHash:   cfg.AdminPassHash,
		EnableLocalAuth: cfg.EnableLocalAuth,
	}))
	r.Post("/auth/guest", auth.GuestLoginHandler(authSvc, cfg.EnableGuestAuth))

	api.MountProbes(r, dbh)
	api.MountQuizAPI(r, api.Deps{
		Auth:     authSvc,
		Quizzes:  store,
		Sessions: mgr,
		Events:   events,
		Feed:     events,
		Upgrader: api.NewUpgrader(cfg.CORSOrigins()),
		Log:      log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
