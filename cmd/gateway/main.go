package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/dummy7679/testcraft/internal/api/http"
	auth "github.com/dummy7679/testcraft/internal/auth/middleware"
	"github.com/dummy7679/testcraft/internal/config"
	"github.com/dummy7679/testcraft/internal/db"
	"github.com/dummy7679/testcraft/internal/quiz"
	"github.com/dummy7679/testcraft/internal/rbac"
	"github.com/dummy7679/testcraft/internal/render"
	"github.com/dummy7679/testcraft/internal/session"
	"github.com/dummy7679/testcraft/internal/storage"
	syncx "github.com/dummy7679/testcraft/internal/sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := quiz.NewSQLStore(dbh, cfg.DBDriver)
	events := syncx.NewEventRepo(dbh)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- Sessions ---
	mgr := session.NewManager(store,
		session.WithThreshold(cfg.ViolationThreshold),
		session.WithTickInterval(time.Duration(cfg.TickIntervalMS)*time.Millisecond),
		session.WithEventSink(events),
	)

	// --- Auth ---
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, cfg.AdminUser, cfg.AdminPassHash))
	r.Post("/auth/student", auth.StudentLoginHandler(authSvc))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Authoring (educator)
		pr.With(rbac.Require("test:create")).
			Post("/tests", api.CreateTestHandler(store))
		pr.With(rbac.Require("test:view")).
			Get("/tests", api.ListTestsHandler(store))
		pr.With(rbac.Require("test:view")).
			Get("/tests/{testID}", api.GetTestHandler(store))
		pr.With(rbac.Require("test:edit")).
			Put("/tests/{testID}", api.UpdateTestHandler(store))
		pr.With(rbac.Require("test:delete")).
			Delete("/tests/{testID}", api.DeleteTestHandler(store))
		pr.With(rbac.Require("test:import")).
			Post("/tests/import", api.ImportTextHandler(bs, render.Passthrough{}))

		pr.With(rbac.Require("asset:upload")).
			Route("/assets", func(ar chi.Router) { api.MountAssets(ar, bs) })

		// Share-link view, answer keys stripped
		pr.With(rbac.Require("test:view-shared")).
			Get("/student-test/{testID}", api.StudentTestHandler(store))

		// Student attempt flow
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.BeginAttemptHandler(mgr))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/answers", api.RecordAnswerHandler(mgr))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/advance", api.AdvanceHandler(mgr))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/continue", api.ContinueHandler(mgr))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/violation", api.ViolationHandler(mgr))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(mgr))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/result", api.GetResultHandler(mgr))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(store))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	// Drain on SIGINT/SIGTERM: stop accepting, then flush live sessions.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	mgr.Shutdown()
}
