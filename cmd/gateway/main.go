package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/learnhub/learnhub-lms/internal/api/http"
	"github.com/learnhub/learnhub-lms/internal/attempt"
	auth "github.com/learnhub/learnhub-lms/internal/auth/middleware"
	"github.com/learnhub/learnhub-lms/internal/catalog"
	"github.com/learnhub/learnhub-lms/internal/config"
	"github.com/learnhub/learnhub-lms/internal/db"
	"github.com/learnhub/learnhub-lms/internal/enrollment"
	"github.com/learnhub/learnhub-lms/internal/grading"
	"github.com/learnhub/learnhub-lms/internal/lock"
	"github.com/learnhub/learnhub-lms/internal/progress"
	syncx "github.com/learnhub/learnhub-lms/internal/sync"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stderr, "", log.LstdFlags)

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	// --- Per-key locks ---
	var locker lock.Locker = lock.NewMemoryLocker()
	var redisLocker *lock.RedisLocker
	if cfg.LockDriver == "redis" {
		redisLocker = lock.NewRedisLocker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LockTTL)
		if err := redisLocker.Ping(ctx); err != nil {
			log.Fatalf("redis ping failed: %v", err)
		}
		defer redisLocker.Close()
		locker = redisLocker
	}

	// --- Services ---
	events := syncx.NewEventRepo(dbh, cfg.SiteID)
	cat := catalog.NewSQLStore(dbh)
	progStore := progress.NewSQLStore(dbh)
	projector := progress.NewProjector(progStore, locker, events, logger)

	grader := grading.NewDefaultGrader(grading.WithDedupeMulti(cfg.GradingDedupeMulti))
	attempts := attempt.NewService(attempt.NewSQLStore(dbh), cat, grader, locker,
		attempt.WithEvents(events), attempt.WithLogger(logger))
	enrollments := enrollment.NewService(enrollment.NewSQLStore(dbh), cat, projector, locker,
		enrollment.WithEvents(events), enrollment.WithLogger(logger))

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.MountAPI(r, api.Deps{
		DB:                 dbh,
		Auth:               auth.NewAuthService(cfg.AuthSecret),
		Users:              auth.NewUserStore(dbh),
		Catalog:            cat,
		Attempts:           attempts,
		Enrollments:        enrollments,
		Reporter:           progress.NewReporter(progStore),
		Events:             events,
		EnableLocalAuth:    cfg.EnableLocalAuth,
		Admin:              auth.AdminLogin{User: cfg.AdminUser, PassHash: cfg.AdminPassHash},
		AllowClaimFallback: cfg.Mode == config.ModeOffline,
	})
	api.Health(r, func(r *http.Request) error {
		if err := dbh.PingContext(r.Context()); err != nil {
			return err
		}
		if redisLocker != nil {
			return redisLocker.Ping(r.Context())
		}
		return nil
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("listening on %s (mode=%s, db=%s, locks=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.LockDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
