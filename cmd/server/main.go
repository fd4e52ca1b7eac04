// Command server wires the stores, services and HTTP transport, then runs
// the API with graceful shutdown. Business logic lives in the internal
// service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"frisk/internal/absence"
	"frisk/internal/audit"
	"frisk/internal/authz"
	"frisk/internal/checkin"
	"frisk/internal/identity"
	"frisk/internal/notify"
	"frisk/internal/platform/config"
	"frisk/internal/platform/httpserver"
	"frisk/internal/platform/logger"
	"frisk/internal/platform/metrics"
	"frisk/internal/platform/postgres"
	platformredis "frisk/internal/platform/redis"
	"frisk/internal/ratelimit"
	"frisk/internal/report"
	"frisk/internal/storage"
	"frisk/internal/student"
	httptransport "frisk/internal/transport/http"
	"frisk/internal/university"
	"frisk/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	// Backing stores degrade to in-process fakes when unconfigured so the
	// server still boots in development.
	var db *sql.DB
	if cfg.PostgresURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
	} else {
		log.Warn("FRISK_POSTGRES_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		log.Warn("FRISK_REDIS_URL not set, rate limits and revocations are process-local")
	}

	var objects storage.ObjectStore
	if cfg.S3AccessKey != "" || cfg.S3Endpoint != "" {
		objects, err = storage.NewS3Store(ctx, storage.S3Options{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return err
		}
	} else {
		log.Warn("object storage not configured, uploads are held in memory")
		objects = storage.NewMemoryStore()
	}

	var sender notify.Sender
	if cfg.SendGridAPIKey != "" {
		sender = notify.NewSendGridSender(cfg.SendGridAPIKey, cfg.EmailFromName, cfg.EmailFrom)
	} else {
		log.Warn("SENDGRID_API_KEY not set, notification mail is log-only")
		sender = notify.NewConsoleSender(log)
	}

	runner := tx.NewRunner(db)

	var (
		auditStore      audit.Store
		userStore       identity.UserStore
		universityStore university.Store
		studentStore    student.Store
		absenceStore    absence.Store
		checkinStore    checkin.Store
		revocations     identity.RevocationStore
		limitStore      ratelimit.Store
	)
	if db != nil {
		auditStore = audit.NewPostgresStore(db)
		userStore = identity.NewPostgresUserStore(db)
		universityStore = university.NewPostgresStore(db)
		studentStore = student.NewPostgresStore(db)
		absenceStore = absence.NewPostgresStore(db)
		checkinStore = checkin.NewPostgresStore(db)
	} else {
		auditStore = audit.NewMemoryStore()
		userStore = identity.NewMemoryUserStore()
		universityStore = university.NewMemoryStore()
		studentStore = student.NewMemoryStore()
		absenceStore = absence.NewMemoryStore()
		checkinStore = checkin.NewMemoryStore()
	}
	if redisClient != nil {
		revocations = identity.NewRedisRevocationStore(redisClient)
		limitStore = ratelimit.NewRedisStore(redisClient)
	} else {
		revocations = identity.NewMemoryRevocationStore()
		limitStore = ratelimit.NewMemoryStore()
	}

	recorder := audit.NewRecorder(auditStore, log, m)
	tokens := identity.NewTokenIssuer(cfg.JWTSigningKey, cfg.TokenTTL)
	identitySvc := identity.NewService(userStore, revocations, tokens, recorder, log, m)

	// A university with students or scoped accounts cannot be deleted.
	dependents := university.DependentFunc(func(ctx context.Context, universityID uuid.UUID) (bool, error) {
		n, err := studentStore.CountByUniversity(ctx, universityID)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
		users, err := userStore.List(ctx)
		if err != nil {
			return false, err
		}
		for _, u := range users {
			if u.UniversityID != nil && *u.UniversityID == universityID {
				return true, nil
			}
		}
		return false, nil
	})

	universitySvc := university.NewService(universityStore, dependents, recorder, log)
	studentSvc := student.NewService(studentStore, universityStore, objects,
		cfg.ConsentBucket, cfg.SignedURLExpiry, runner, recorder, log, m)
	notifySvc := notify.NewService(universityStore, sender, log)
	absenceSvc := absence.NewService(absenceStore, studentStore, objects,
		cfg.AbsenceBucket, cfg.SignedURLExpiry, notifySvc, recorder, log)
	checkinSvc := checkin.NewService(checkinStore, studentStore, runner, recorder, log, m)
	reportSvc := report.NewService(studentStore, absenceStore, universityStore, recorder, log)

	limiter := ratelimit.NewLimiter(limitStore, log, m, cfg.RateLimitDisabled)
	if cfg.RateLimitDisabled {
		log.Warn("rate limiting disabled by FRISK_RATELIMIT_DISABLED")
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:  log,
		Metrics: m,

		Identity: identitySvc,
		Limiter:  limiter,

		IdentityHandler:   identity.NewHandler(identitySvc),
		AuthzHandler:      authz.NewHandler(),
		AuditHandler:      audit.NewHandler(auditStore),
		UniversityHandler: university.NewHandler(universitySvc),
		StudentHandler:    student.NewHandler(studentSvc),
		AbsenceHandler:    absence.NewHandler(absenceSvc),
		CheckinHandler:    checkin.NewHandler(checkinSvc),
		NotifyHandler:     notify.NewHandler(notifySvc, absenceSvc),
		ReportHandler:     report.NewHandler(reportSvc),

		Health: func(ctx context.Context) error {
			if db != nil {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(ctx)
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting frisk server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
